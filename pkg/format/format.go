// Package format provides positional message formatting and pseudo-localization.
package format

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// PseudoOpen and PseudoClose are the full-width brackets wrapped around pseudo-localized text.
	PseudoOpen  = "\uFF3B"
	PseudoClose = "\uFF3D"
)

var placeholderRegex = regexp.MustCompile(`\{(\d+)\}`)

type undefined struct{}

// Undefined is an argument value that renders as "undefined".
var Undefined = undefined{}

// Formatter substitutes {N} placeholders with positional arguments.
type Formatter struct {
	Pseudo bool
}

// Format applies the pseudo transform (when enabled) and substitutes the placeholders.
func (f Formatter) Format(template string, args ...any) string {
	if f.Pseudo {
		template = Pseudo(template)
	}
	if len(args) == 0 {
		return template
	}

	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		index, err := strconv.Atoi(match[1 : len(match)-1])
		if err != nil || index >= len(args) {
			return match
		}
		if replacement, ok := stringify(args[index]); ok {
			return replacement
		}
		return match
	})
}

// Message is a shorthand for Formatter{Pseudo: pseudo}.Format.
func Message(template string, pseudo bool, args ...any) string {
	return Formatter{Pseudo: pseudo}.Format(template, args...)
}

// Pseudo doubles every lowercase vowel and wraps the result in full-width brackets.
func Pseudo(template string) string {
	var result strings.Builder
	result.Grow(len(template) + len(PseudoOpen) + len(PseudoClose) + len(template)/3)
	result.WriteString(PseudoOpen)
	for _, r := range template {
		result.WriteRune(r)
		switch r {
		case 'a', 'o', 'u', 'e', 'i':
			result.WriteRune(r)
		}
	}
	result.WriteString(PseudoClose)
	return result.String()
}

func stringify(arg any) (string, bool) {
	switch v := arg.(type) {
	case nil:
		return "null", true
	case undefined:
		return "undefined", true
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.FormatInt(int64(v), 10), true
	case int8:
		return strconv.FormatInt(int64(v), 10), true
	case int16:
		return strconv.FormatInt(int64(v), 10), true
	case int32:
		return strconv.FormatInt(int64(v), 10), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case uint:
		return strconv.FormatUint(uint64(v), 10), true
	case uint8:
		return strconv.FormatUint(uint64(v), 10), true
	case uint16:
		return strconv.FormatUint(uint64(v), 10), true
	case uint32:
		return strconv.FormatUint(uint64(v), 10), true
	case uint64:
		return strconv.FormatUint(v, 10), true
	case float32:
		return formatFloat(float64(v), 32), true
	case float64:
		return formatFloat(v, 64), true
	default:
		return "", false
	}
}

func formatFloat(f float64, bitSize int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		// Covers negative zero
		return "0"
	}

	if abs := math.Abs(f); abs >= 1e21 || abs < 1e-6 {
		return exponentForm(strconv.FormatFloat(f, 'e', -1, bitSize))
	}
	return strconv.FormatFloat(f, 'f', -1, bitSize)
}

// exponentForm drops the leading zeros Go pads exponents with: 1e-07 becomes 1e-7.
func exponentForm(s string) string {
	mantissa, exponent, found := strings.Cut(s, "e")
	if !found || len(exponent) < 2 {
		return s
	}
	sign, digits := exponent[:1], strings.TrimLeft(exponent[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}
