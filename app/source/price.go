package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// ParsePrice converts a display price such as "$ 1.499.900" into a number
// using the source's separators and multiplier. Non-numeric characters
// (currency symbols, codes, spaces) are ignored.
func ParsePrice(raw string, format PriceFormat) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsDigit(r):
			return r
		case format.ThousandsSeparator != "" && strings.ContainsRune(format.ThousandsSeparator, r):
			return r
		case format.DecimalSeparator != "" && strings.ContainsRune(format.DecimalSeparator, r):
			return r
		}
		return -1
	}, raw)

	if format.ThousandsSeparator != "" {
		cleaned = strings.ReplaceAll(cleaned, format.ThousandsSeparator, "")
	}
	if format.DecimalSeparator != "" && format.DecimalSeparator != "." {
		cleaned = strings.ReplaceAll(cleaned, format.DecimalSeparator, ".")
	}
	cleaned = strings.Trim(cleaned, ".")

	if cleaned == "" {
		return 0, fmt.Errorf("no digits in price %q", raw)
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", raw, err)
	}

	return scalePrice(value, format)
}

func scalePrice(value float64, format PriceFormat) (float64, error) {
	multiplier := format.Multiplier
	if multiplier == 0 {
		multiplier = 1
	}
	value *= multiplier

	if math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, fmt.Errorf("price must be positive and finite, got %v", value)
	}
	return value, nil
}
