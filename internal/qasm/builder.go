package qasm

import (
	"fmt"
	"strings"
)

// Builder builds small OpenQASM 2.0 circuits.
type Builder struct {
	qubits       int
	clbits       int
	gates        []string
	measurements []string
}

// NewBuilder creates a builder with a single qreg q and creg c.
func NewBuilder(numQubits, numClassical int) *Builder {
	return &Builder{qubits: numQubits, clbits: numClassical}
}

// Gate appends a gate applied to the given qubits, e.g. Gate("cx", 0, 1).
func (b *Builder) Gate(name string, qubits ...int) *Builder {
	args := make([]string, len(qubits))
	for i, q := range qubits {
		args[i] = fmt.Sprintf("q[%d]", q)
	}
	b.gates = append(b.gates, fmt.Sprintf("%s %s;", name, strings.Join(args, ",")))
	return b
}

// Barrier appends a barrier over every qubit. Barriers delimit mid-circuit snapshots.
func (b *Builder) Barrier() *Builder {
	b.gates = append(b.gates, "barrier q;")
	return b
}

// Measure measures qubit into classical bit.
func (b *Builder) Measure(qubit, classical int) *Builder {
	b.measurements = append(b.measurements, fmt.Sprintf("measure q[%d] -> c[%d];", qubit, classical))
	return b
}

// MeasureAll measures every qubit into the bit of the same index.
func (b *Builder) MeasureAll() *Builder {
	for i := 0; i < b.qubits && i < b.clbits; i++ {
		b.Measure(i, i)
	}
	return b
}

// Build generates the complete QASM circuit string.
func (b *Builder) Build() string {
	var circuit strings.Builder

	circuit.WriteString("OPENQASM 2.0;\n")
	circuit.WriteString("include \"qelib1.inc\";\n")
	fmt.Fprintf(&circuit, "qreg q[%d];\n", b.qubits)
	if b.clbits > 0 {
		fmt.Fprintf(&circuit, "creg c[%d];\n", b.clbits)
	}
	for _, g := range b.gates {
		circuit.WriteString(g + "\n")
	}
	for _, m := range b.measurements {
		circuit.WriteString(m + "\n")
	}

	return circuit.String()
}
