package qasm

import (
	"errors"
	"testing"

	"github.com/c12qe/c12sim-go/internal/domain"
)

func TestValidate_Builder(t *testing.T) {
	src := NewBuilder(2, 2).Gate("h", 0).Gate("cx", 0, 1).MeasureAll().Build()
	if err := Validate(src); err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, src)
	}
	if QubitCount(src) != 2 {
		t.Errorf("expected 2 qubits, got %d", QubitCount(src))
	}
}

func TestValidate_Failures(t *testing.T) {
	if err := Validate("   "); !errors.Is(err, domain.ErrEmptyCircuit) {
		t.Errorf("expected ErrEmptyCircuit, got %v", err)
	}
	if err := Validate("qreg q[1];"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for missing header, got %v", err)
	}
	if err := Validate("OPENQASM 2.0;\ninclude \"qelib1.inc\";"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for missing qreg, got %v", err)
	}
	if err := Validate("OPENQASM 2.0;\n// qreg q[2];\n"); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected commented qreg to be ignored, got %v", err)
	}
	if err := Validate("// only a comment\n"); !errors.Is(err, domain.ErrEmptyCircuit) {
		t.Errorf("expected ErrEmptyCircuit for comment-only source, got %v", err)
	}
}

func TestValidate_LeadingComment(t *testing.T) {
	src := "// bell pair\n\n" + NewBuilder(2, 2).Gate("h", 0).Gate("cx", 0, 1).MeasureAll().Build()
	if err := Validate(src); err != nil {
		t.Errorf("expected leading comment to be accepted, got %v", err)
	}
}

func TestQubitCount_MultipleRegisters(t *testing.T) {
	src := "OPENQASM 2.0;\nqreg a[2];\nqreg b[3];\ncreg c[5];\n"
	if got := QubitCount(src); got != 5 {
		t.Errorf("expected 5 qubits, got %d", got)
	}
}

func TestHasClassicalControl(t *testing.T) {
	src := "OPENQASM 2.0;\nqreg q[1];\ncreg c[1];\nmeasure q[0] -> c[0];\nif(c==1) x q[0];\n"
	if !HasClassicalControl(src) {
		t.Error("expected classical control to be detected")
	}
	if HasClassicalControl(NewBuilder(1, 1).Gate("x", 0).Build()) {
		t.Error("expected no classical control")
	}
}

func TestHasMidCircuitMeasure(t *testing.T) {
	final := NewBuilder(2, 2).Gate("h", 0).Gate("cx", 0, 1).MeasureAll().Build()
	if HasMidCircuitMeasure(final) {
		t.Errorf("final measurements flagged as mid-circuit:\n%s", final)
	}

	mid := "OPENQASM 2.0;\nqreg q[2];\ncreg c[2];\nmeasure q[0] -> c[0];\ncx q[0],q[1];\n"
	if !HasMidCircuitMeasure(mid) {
		t.Error("expected mid-circuit measurement to be detected")
	}

	whole := "OPENQASM 2.0;\nqreg q[2];\ncreg c[2];\nmeasure q -> c;\nx q[1];\n"
	if !HasMidCircuitMeasure(whole) {
		t.Error("expected register-wide measurement to be detected")
	}
}

func TestHasMidCircuitMeasure_BareRegisterOperands(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"gate on whole register after qubit measure", "OPENQASM 2.0;\nqreg q[2];\ncreg c[2];\nmeasure q[0] -> c[0];\nh q;\n", true},
		{"parameterised gate on whole register", "OPENQASM 2.0;\nqreg q[2];\ncreg c[2];\nmeasure q[1] -> c[1];\nrx(pi/2) q;\n", true},
		{"reset of measured register", "OPENQASM 2.0;\nqreg q[1];\ncreg c[1];\nmeasure q[0] -> c[0];\nreset q;\n", true},
		{"conditional gate on measured qubit", "OPENQASM 2.0;\nqreg q[1];\ncreg c[1];\nmeasure q[0] -> c[0];\nif(c==1) x q[0];\n", true},
		{"other register untouched", "OPENQASM 2.0;\nqreg a[1];\nqreg b[1];\ncreg c[1];\nmeasure a[0] -> c[0];\nh b;\n", false},
		{"gate definition before measure", "OPENQASM 2.0;\ngate flip q { x q; }\nqreg q[1];\ncreg c[1];\nflip q;\nmeasure q[0] -> c[0];\n", false},
		{"barrier after measure", "OPENQASM 2.0;\nqreg q[2];\ncreg c[2];\nmeasure q[0] -> c[0];\nbarrier q;\n", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HasMidCircuitMeasure(tt.src); got != tt.want {
				t.Errorf("HasMidCircuitMeasure = %v, want %v\n%s", got, tt.want, tt.src)
			}
		})
	}
}
