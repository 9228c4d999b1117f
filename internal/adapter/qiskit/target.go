package qiskit

import (
	"fmt"
	"sort"

	"github.com/c12qe/c12sim-go/internal/domain"
)

// gateArity lists the basis gates the simulator may advertise.
var gateArity = map[string]int{
	"rx":    1,
	"ry":    1,
	"rz":    1,
	"iswap": 2,
	"crx":   2,
	"cx":    2,
}

// Instruction is an operation and every qubit tuple it may act on.
type Instruction struct {
	Name      string
	NumQubits int
	Qargs     [][]int
}

// Equivalence records that Gate can be synthesised from Basis.
type Equivalence struct {
	Gate  string
	Basis string
}

// Target describes what a backend can execute.
type Target struct {
	Description  string
	NumQubits    int
	Instructions []Instruction
	Equivalences []Equivalence
}

// NewTarget expands a backend descriptor into a fully connected target:
// measure on every qubit, 1-qubit gates on every qubit and 2-qubit gates
// on every ordered pair.
func NewTarget(info domain.BackendInfo) (*Target, error) {
	t := &Target{
		Description: "Target for device: " + info.Name,
		NumQubits:   info.NQubits,
	}

	measure := Instruction{Name: "measure", NumQubits: 1}
	for i := 0; i < info.NQubits; i++ {
		measure.Qargs = append(measure.Qargs, []int{i})
	}
	t.Instructions = append(t.Instructions, measure)

	for _, gate := range info.BasisGates {
		arity, ok := gateArity[gate]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported basis gate %q on %s", domain.ErrInvalidArgument, gate, info.Name)
		}
		if gate == "crx" {
			t.Equivalences = append(t.Equivalences, Equivalence{Gate: "cx", Basis: "crx"})
		}

		inst := Instruction{Name: gate, NumQubits: arity}
		switch arity {
		case 1:
			for i := 0; i < info.NQubits; i++ {
				inst.Qargs = append(inst.Qargs, []int{i})
			}
		case 2:
			for i := 0; i < info.NQubits; i++ {
				for j := i + 1; j < info.NQubits; j++ {
					inst.Qargs = append(inst.Qargs, []int{i, j}, []int{j, i})
				}
			}
		}
		t.Instructions = append(t.Instructions, inst)
	}
	return t, nil
}

// Instruction looks up an operation by name.
func (t *Target) Instruction(name string) (Instruction, bool) {
	for _, inst := range t.Instructions {
		if inst.Name == name {
			return inst, true
		}
	}
	return Instruction{}, false
}

// OperationNames returns the sorted names of every supported operation.
func (t *Target) OperationNames() []string {
	names := make([]string, 0, len(t.Instructions))
	for _, inst := range t.Instructions {
		names = append(names, inst.Name)
	}
	sort.Strings(names)
	return names
}

// Supports reports whether name may act on exactly qargs.
func (t *Target) Supports(name string, qargs ...int) bool {
	inst, ok := t.Instruction(name)
	if !ok || len(qargs) != inst.NumQubits {
		return false
	}
	for _, q := range inst.Qargs {
		if equalInts(q, qargs) {
			return true
		}
	}
	return false
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
