package result

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/c12qe/c12sim-go/internal/domain"
)

const (
	statevectorKeyPrefix   = "sv"
	densityMatrixKeyPrefix = "dm"
)

// Result is the numeric form of a simulator result block.
type Result struct {
	Counts        map[string]int
	Statevector   []complex128
	DensityMatrix [][]complex128

	// Mid-circuit snapshots keyed by barrier ordinal.
	MidStatevectors    map[int][]complex128
	MidDensityMatrices map[int][][]complex128
}

type wireStates struct {
	Statevector   map[string][]json.RawMessage   `json:"statevector"`
	DensityMatrix map[string][][]json.RawMessage `json:"density_matrix"`
}

type wireResult struct {
	Counts        map[string]int      `json:"counts"`
	Statevector   []json.RawMessage   `json:"statevector"`
	DensityMatrix [][]json.RawMessage `json:"density_matrix"`
	States        *wireStates         `json:"states"`
}

// Parse converts the server's JSON result block. Counts and statevector
// are mandatory; the density matrix and mid-circuit states are optional.
func Parse(raw json.RawMessage) (*Result, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("%w: empty result", domain.ErrMalformedResult)
	}

	var w wireResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResult, err)
	}
	if w.Counts == nil || w.Statevector == nil {
		return nil, fmt.Errorf("%w: counts and statevector are required", domain.ErrMalformedResult)
	}

	res := &Result{
		Counts:             w.Counts,
		MidStatevectors:    map[int][]complex128{},
		MidDensityMatrices: map[int][][]complex128{},
	}

	var err error
	if res.Statevector, err = ParseVector(w.Statevector); err != nil {
		return nil, fmt.Errorf("statevector: %w", err)
	}
	if w.DensityMatrix != nil {
		if res.DensityMatrix, err = ParseMatrix(w.DensityMatrix); err != nil {
			return nil, fmt.Errorf("density_matrix: %w", err)
		}
	}

	// Snapshots are only exposed when the server sent both kinds.
	if w.States != nil && w.States.Statevector != nil && w.States.DensityMatrix != nil {
		for key, entries := range w.States.Statevector {
			barrier, err := barrierOrdinal(key, statevectorKeyPrefix)
			if err != nil {
				return nil, err
			}
			if res.MidStatevectors[barrier], err = ParseVector(entries); err != nil {
				return nil, fmt.Errorf("states.statevector.%s: %w", key, err)
			}
		}
		for key, rows := range w.States.DensityMatrix {
			barrier, err := barrierOrdinal(key, densityMatrixKeyPrefix)
			if err != nil {
				return nil, err
			}
			if res.MidDensityMatrices[barrier], err = ParseMatrix(rows); err != nil {
				return nil, fmt.Errorf("states.density_matrix.%s: %w", key, err)
			}
		}
	}

	return res, nil
}

func barrierOrdinal(key, prefix string) (int, error) {
	rest, ok := strings.CutPrefix(key, prefix)
	if !ok {
		return 0, fmt.Errorf("%w: snapshot key %q lacks prefix %q", domain.ErrMalformedResult, key, prefix)
	}
	n, err := strconv.Atoi(rest)
	if err != nil {
		return 0, fmt.Errorf("%w: snapshot key %q has no barrier ordinal", domain.ErrMalformedResult, key)
	}
	return n, nil
}

// MidStatevector returns the statevector captured at barrier n, if any.
func (r *Result) MidStatevector(n int) ([]complex128, bool) {
	v, ok := r.MidStatevectors[n]
	return v, ok
}

// MidDensityMatrix returns the density matrix captured at barrier n, if any.
func (r *Result) MidDensityMatrix(n int) ([][]complex128, bool) {
	m, ok := r.MidDensityMatrices[n]
	return m, ok
}

// Shots is the total number of sampled outcomes.
func (r *Result) Shots() int {
	total := 0
	for _, n := range r.Counts {
		total += n
	}
	return total
}

// Probabilities returns the relative frequency of every observed bitstring.
func (r *Result) Probabilities() map[string]float64 {
	total := r.Shots()
	out := make(map[string]float64, len(r.Counts))
	if total == 0 {
		return out
	}
	for k, n := range r.Counts {
		out[k] = float64(n) / float64(total)
	}
	return out
}

// Bitstrings returns the observed bitstrings in lexical order.
func (r *Result) Bitstrings() []string {
	keys := make([]string, 0, len(r.Counts))
	for k := range r.Counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
