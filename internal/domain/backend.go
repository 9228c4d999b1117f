package domain

import "strings"

// BackendInfo describes a simulator backend as advertised by /backends.
type BackendInfo struct {
	Name        string   `json:"backend_name"`
	NQubits     int      `json:"n_qubits"`
	BasisGates  []string `json:"basis_gates"`
	MaxShots    int      `json:"max_shots"`
	MaxCircuits int      `json:"max-circuits"`
}

// FilterBackends keeps the backends whose name contains name.
// An empty name keeps everything.
func FilterBackends(backends []BackendInfo, name string) []BackendInfo {
	if name == "" {
		return backends
	}
	out := make([]BackendInfo, 0, len(backends))
	for _, b := range backends {
		if strings.Contains(b.Name, name) {
			out = append(out, b)
		}
	}
	return out
}
