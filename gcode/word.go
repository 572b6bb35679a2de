package gcode

import (
	"strconv"
	"strings"
)

// Precision is the number of fraction digits words are written with.
const Precision = 3

type Word struct {
	W   byte
	Arg float64
}

func (w Word) IsAxis() bool {
	switch w.W {
	case 'X', 'Y', 'Z':
		return true
	}
	return false
}

func (w Word) IsValid() bool {
	return w.W >= 'A' && w.W <= 'Z'
}

// formatFloat writes f with at most prec fraction digits and no trailing
// zeros. Values that round to zero are written as "0", never "-0".
func formatFloat(f float64, prec int) string {
	s := strconv.FormatFloat(f, 'f', prec, 64)
	if strings.ContainsRune(s, '.') {
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
	}
	if s == "-0" {
		return "0"
	}
	return s
}

func (w Word) String() string {
	return string(w.W) + formatFloat(w.Arg, Precision)
}
