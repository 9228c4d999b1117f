package result

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/c12qe/c12sim-go/internal/domain"
)

// ParseComplex decodes one statevector or density-matrix entry. The server
// encodes entries as Python complex strings ("1+0j", "(0.5-0.5j)") but
// plain JSON numbers are accepted as well.
func ParseComplex(raw json.RawMessage) (complex128, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return 0, fmt.Errorf("%w: entry %s is neither a string nor a number", domain.ErrMalformedResult, raw)
		}
		return complex(f, 0), nil
	}
	return ParseComplexString(s)
}

// ParseComplexString parses a Python-formatted complex number.
func ParseComplexString(s string) (complex128, error) {
	normalised := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\n':
			return -1
		case 'j', 'J':
			return 'i'
		}
		return r
	}, s)
	c, err := strconv.ParseComplex(normalised, 128)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a complex number", domain.ErrMalformedResult, s)
	}
	return c, nil
}

// ParseVector converts a JSON array of encoded complex numbers.
func ParseVector(entries []json.RawMessage) ([]complex128, error) {
	out := make([]complex128, len(entries))
	for i, e := range entries {
		c, err := ParseComplex(e)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = c
	}
	return out, nil
}

// ParseMatrix converts a row-wise JSON matrix of encoded complex numbers.
func ParseMatrix(rows [][]json.RawMessage) ([][]complex128, error) {
	out := make([][]complex128, len(rows))
	for i, row := range rows {
		v, err := ParseVector(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// FormatComplex renders c the way the server parses it back ("1+0j").
func FormatComplex(c complex128) string {
	re := strconv.FormatFloat(real(c), 'g', -1, 64)
	im := strconv.FormatFloat(imag(c), 'g', -1, 64)
	if !strings.HasPrefix(im, "-") && !strings.HasPrefix(im, "+") {
		im = "+" + im
	}
	return re + im + "j"
}

// FormatStatevector renders an initial statevector for the inistatevector field.
func FormatStatevector(v []complex128) string {
	parts := make([]string, len(v))
	for i, c := range v {
		parts[i] = FormatComplex(c)
	}
	return "[" + strings.Join(parts, ",") + "]"
}
