package tket

import (
	"fmt"

	"github.com/c12qe/c12sim-go/internal/domain"
	"github.com/c12qe/c12sim-go/internal/qasm"
)

// OpType names a tket operation.
type OpType string

const (
	OpRx   OpType = "Rx"
	OpRy   OpType = "Ry"
	OpRz   OpType = "Rz"
	OpCRx  OpType = "CRx"
	OpSWAP OpType = "SWAP"
)

// GateMapping translates simulator basis gates into tket operations.
var GateMapping = map[string]OpType{
	"rx":    OpRx,
	"ry":    OpRy,
	"rz":    OpRz,
	"crx":   OpCRx,
	"iswap": OpSWAP,
}

// FullyConnected is an architecture where every pair of qubits is coupled.
type FullyConnected struct {
	NNodes int
}

// Connected reports whether qubits a and b can interact.
func (f FullyConnected) Connected(a, b int) bool {
	return a != b && a >= 0 && b >= 0 && a < f.NNodes && b < f.NNodes
}

// BackendInfo is the tket view of a simulator backend.
type BackendInfo struct {
	Name         string
	DeviceName   string
	Version      string
	GateSet      []OpType
	Architecture FullyConnected
}

// NewBackendInfo converts a backend descriptor. Basis gates with no tket
// equivalent are left out of the gate set.
func NewBackendInfo(b domain.BackendInfo) *BackendInfo {
	info := &BackendInfo{
		Name:         b.Name,
		DeviceName:   "C12 emulator",
		Version:      "1.0.0",
		Architecture: FullyConnected{NNodes: b.NQubits},
	}
	for _, gate := range b.BasisGates {
		if op, ok := GateMapping[gate]; ok {
			info.GateSet = append(info.GateSet, op)
		}
	}
	return info
}

// Predicate is a requirement a circuit must satisfy before it is run.
type Predicate interface {
	Name() string
	Verify(circuit string) bool
}

type noMidMeasure struct{}

func (noMidMeasure) Name() string { return "NoMidMeasurePredicate" }

func (noMidMeasure) Verify(circuit string) bool { return !qasm.HasMidCircuitMeasure(circuit) }

type maxNQubits struct{ n int }

func (p maxNQubits) Name() string { return fmt.Sprintf("MaxNQubitsPredicate(%d)", p.n) }

func (p maxNQubits) Verify(circuit string) bool { return qasm.QubitCount(circuit) <= p.n }

type noClassicalControl struct{}

func (noClassicalControl) Name() string { return "NoClassicalControlPredicate" }

func (noClassicalControl) Verify(circuit string) bool { return !qasm.HasClassicalControl(circuit) }
