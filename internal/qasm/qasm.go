// Package qasm holds the few OpenQASM 2 inspections the adapters need to
// check circuits before they are sent to the simulator.
package qasm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/c12qe/c12sim-go/internal/domain"
)

var (
	headerRegex  = regexp.MustCompile(`^OPENQASM\s+[23](\.\d+)?$`)
	qregRegex    = regexp.MustCompile(`^qreg\s+\w+\s*\[\s*(\d+)\s*\]$`)
	ifRegex      = regexp.MustCompile(`^if\s*\([^)]*\)\s*`)
	measureRegex = regexp.MustCompile(`^measure\s+(\w+)(\s*\[\s*(\d+)\s*\])?`)
	opRegex      = regexp.MustCompile(`^\w+\s*(\([^)]*\))?\s*(.*)$`)
	operandRegex = regexp.MustCompile(`^(\w+)\s*(\[\s*(\d+)\s*\])?$`)
)

// statements splits src into trimmed statements with comments removed.
func statements(src string) []string {
	var out []string
	for _, line := range strings.Split(src, "\n") {
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		for _, stmt := range strings.Split(line, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt != "" {
				out = append(out, stmt)
			}
		}
	}
	return out
}

// Validate performs a cheap structural check: an OPENQASM header as the
// first statement and at least one quantum register.
func Validate(src string) error {
	stmts := statements(src)
	if len(stmts) == 0 {
		return domain.ErrEmptyCircuit
	}
	if !headerRegex.MatchString(stmts[0]) {
		return fmt.Errorf("%w: missing OPENQASM header", domain.ErrInvalidArgument)
	}
	if QubitCount(src) == 0 {
		return fmt.Errorf("%w: circuit declares no qreg", domain.ErrInvalidArgument)
	}
	return nil
}

// QubitCount sums the sizes of every qreg declaration.
func QubitCount(src string) int {
	total := 0
	for _, stmt := range statements(src) {
		if m := qregRegex.FindStringSubmatch(stmt); m != nil {
			n, _ := strconv.Atoi(m[1])
			total += n
		}
	}
	return total
}

// HasClassicalControl reports whether the circuit uses if(...) statements.
func HasClassicalControl(src string) bool {
	for _, stmt := range statements(src) {
		if ifRegex.MatchString(stmt) {
			return true
		}
	}
	return false
}

// operand is a quantum argument; index is -1 for a whole register.
type operand struct {
	reg   string
	index int
}

// operands returns the quantum arguments of a gate, reset or conditional
// statement.
func operands(stmt string) []operand {
	stmt = ifRegex.ReplaceAllString(stmt, "")
	m := opRegex.FindStringSubmatch(stmt)
	if m == nil {
		return nil
	}
	var out []operand
	for _, arg := range strings.Split(m[2], ",") {
		a := operandRegex.FindStringSubmatch(strings.TrimSpace(arg))
		if a == nil {
			continue
		}
		op := operand{reg: a[1], index: -1}
		if a[3] != "" {
			op.index, _ = strconv.Atoi(a[3])
		}
		out = append(out, op)
	}
	return out
}

// HasMidCircuitMeasure reports whether a qubit is acted on after it was
// measured. A bare register operand acts on every qubit of the register.
func HasMidCircuitMeasure(src string) bool {
	measured := map[string]map[int]bool{}
	registerMeasured := map[string]bool{}
	inGateBody := false

	for _, stmt := range statements(src) {
		if inGateBody {
			inGateBody = !strings.Contains(stmt, "}")
			continue
		}
		if strings.HasPrefix(stmt, "gate ") || strings.HasPrefix(stmt, "opaque ") {
			inGateBody = strings.Contains(stmt, "{") && !strings.Contains(stmt, "}")
			continue
		}
		if m := measureRegex.FindStringSubmatch(stmt); m != nil {
			if m[3] == "" {
				registerMeasured[m[1]] = true
			} else {
				if measured[m[1]] == nil {
					measured[m[1]] = map[int]bool{}
				}
				i, _ := strconv.Atoi(m[3])
				measured[m[1]][i] = true
			}
			continue
		}
		if strings.HasPrefix(stmt, "barrier") || strings.HasPrefix(stmt, "creg") ||
			strings.HasPrefix(stmt, "qreg") || strings.HasPrefix(stmt, "include") ||
			strings.HasPrefix(stmt, "OPENQASM") {
			continue
		}
		for _, op := range operands(stmt) {
			if registerMeasured[op.reg] {
				return true
			}
			if op.index < 0 && len(measured[op.reg]) > 0 {
				return true
			}
			if op.index >= 0 && measured[op.reg][op.index] {
				return true
			}
		}
	}
	return false
}
