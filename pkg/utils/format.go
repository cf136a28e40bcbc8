// Package utils provides shared market and formatting helpers.
package utils

import (
	"fmt"
	"strings"
)

// FormatIndianCurrency formats an amount with the Indian digit grouping
// (thousand, then lakhs and crores in pairs).
func FormatIndianCurrency(amount float64) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}

	str := fmt.Sprintf("%.2f", amount)
	parts := strings.Split(str, ".")

	result := "₹" + formatIndianNumber(parts[0]) + "." + parts[1]
	if negative {
		result = "-" + result
	}
	return result
}

func formatIndianNumber(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}

	// Rightmost group of 3, then groups of 2.
	result := s[n-3:]
	s = s[:n-3]
	for len(s) > 0 {
		if len(s) >= 2 {
			result = s[len(s)-2:] + "," + result
			s = s[:len(s)-2]
		} else {
			result = s + "," + result
			s = ""
		}
	}

	return result
}

// FormatPnL formats a profit-and-loss amount with an explicit sign on gains.
func FormatPnL(pnl float64) string {
	formatted := FormatIndianCurrency(pnl)
	if pnl > 0 {
		return "+" + formatted
	}
	return formatted
}
