// Package numeric extracts decimal numbers from recognized text and sums them.
//
// Two acceptance rules live side by side:
//
//   - ExtractNumbers parses whole lines as signed decimal literals. The
//     editable number list uses it, so a user may type "-3.5".
//   - FilterDigitTokens keeps raw OCR tokens made only of ASCII digits with at
//     most one '.', so "-10" is dropped. OCR output goes through this filter.
//
// Neither rule reports per-token failures: anything that does not qualify is
// skipped.
package numeric

import (
	"regexp"
	"strconv"
	"strings"
)

// Number is a parsed value with the text it came from.
type Number struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"`
}

var decimalLiteral = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)$`)

// ParseDecimal parses s as an optionally signed decimal literal with at most
// one decimal point. Exponents, hex, infinities and NaN are rejected.
func ParseDecimal(s string) (float64, bool) {
	if !decimalLiteral.MatchString(s) {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ExtractNumbers trims each line and keeps the ones that parse as decimals,
// in input order. Blank and non-numeric lines are skipped.
func ExtractNumbers(lines []string) []Number {
	numbers := make([]Number, 0, len(lines))
	for _, line := range lines {
		text := strings.TrimSpace(line)
		if text == "" {
			continue
		}
		v, ok := ParseDecimal(text)
		if !ok {
			continue
		}
		numbers = append(numbers, Number{Text: text, Value: v})
	}
	return numbers
}

// Values returns the parsed values of numbers.
func Values(numbers []Number) []float64 {
	values := make([]float64, len(numbers))
	for i, n := range numbers {
		values[i] = n.Value
	}
	return values
}

// Texts returns the original text of numbers.
func Texts(numbers []Number) []string {
	texts := make([]string, len(numbers))
	for i, n := range numbers {
		texts[i] = n.Text
	}
	return texts
}

// Sum adds values left to right. The sum of no values is 0.
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

// SumText splits freeform text into lines and sums the numeric ones.
func SumText(text string) ([]Number, float64) {
	numbers := ExtractNumbers(strings.Split(text, "\n"))
	return numbers, Sum(Values(numbers))
}

// IsDigitToken reports whether token is non-empty ASCII digits once a single
// '.' is removed. Signs, spaces and thousands separators disqualify it.
func IsDigitToken(token string) bool {
	stripped := strings.Replace(token, ".", "", 1)
	if stripped == "" {
		return false
	}
	for i := 0; i < len(stripped); i++ {
		if stripped[i] < '0' || stripped[i] > '9' {
			return false
		}
	}
	return true
}

// FilterDigitTokens keeps the tokens accepted by IsDigitToken, in order.
func FilterDigitTokens(tokens []string) []Number {
	numbers := make([]Number, 0, len(tokens))
	for _, token := range tokens {
		if !IsDigitToken(token) {
			continue
		}
		v, err := strconv.ParseFloat(token, 64)
		if err != nil {
			continue
		}
		numbers = append(numbers, Number{Text: token, Value: v})
	}
	return numbers
}

// FormatTotal renders v with the fewest digits that round-trip, always with a
// decimal point ("60.5", "20.0").
func FormatTotal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".nI") {
		s += ".0"
	}
	return s
}
