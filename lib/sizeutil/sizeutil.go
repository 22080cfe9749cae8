package sizeutil

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// Sentinel is a large finite stand-in for "infinite" sizes and ratios.
// Sites render unlimited share ratios as ∞/Inf./无限; using a finite
// value keeps downstream arithmetic and ordering total. Note that the
// sentinel participates in sums and comparisons like any other number,
// so aggregates over sentinel-valued records are not meaningful.
const Sentinel = 1e20

var unitTable = map[string]float64{
	"B":   1,
	"KB":  1 << 10,
	"KIB": 1 << 10,
	"MB":  1 << 20,
	"MIB": 1 << 20,
	"GB":  1 << 30,
	"GIB": 1 << 30,
	"TB":  1 << 40,
	"TIB": 1 << 40,
	"PB":  1 << 50,
	"PIB": 1 << 50,
	"EB":  1 << 60,
	"EIB": 1 << 60,
	"ZB":  1 << 70,
	"ZIB": 1 << 70,
	"YB":  1 << 80,
	"YIB": 1 << 80,
}

var infiniteForms = map[string]bool{
	"inf":      true,
	"inf.":     true,
	"∞":        true,
	"无限":       true,
	"infinite": true,
}

// IsInfinite reports whether a raw cell value is one of the forms
// tracker sites use to render an unlimited value.
func IsInfinite(s string) bool {
	return infiniteForms[strings.ToLower(strings.TrimSpace(s))]
}

// NormalizeDecimal applies the locale comma rule: any comma with a
// digit immediately before and after it is treated as a thousands
// separator and removed, repeatedly; a remaining comma is converted to
// a decimal point. A decimal comma flanked by digits is therefore
// indistinguishable from a thousands separator and gets stripped.
func NormalizeDecimal(s string) string {
	for {
		stripped := false
		for i := 1; i < len(s)-1; i++ {
			if s[i] == ',' && isDigit(s[i-1]) && isDigit(s[i+1]) {
				s = s[:i] + s[i+1:]
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}
	return strings.ReplaceAll(s, ",", ".")
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

var sizeRegex = regexp.MustCompile(`(?i)([\d.]+)\s*([KMGTPEZY]?i?B)`)

// ParseSize converts a human-readable size ("1.46 GB", "1,234 KiB")
// to a byte count. Infinite forms map to Sentinel. Empty or
// unparseable input yields 0 with a logged warning; this function
// never fails so a single bad cell cannot abort a table parse.
func ParseSize(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		slog.Warn("empty size string")
		return 0
	}
	if IsInfinite(s) {
		return Sentinel
	}

	s = NormalizeDecimal(s)

	groups := sizeRegex.FindStringSubmatch(s)
	if groups == nil {
		value, err := strconv.ParseFloat(s, 64)
		if err != nil {
			slog.Warn("unparseable size string", "value", s)
			return 0
		}
		return value
	}

	value, err := strconv.ParseFloat(groups[1], 64)
	if err != nil {
		slog.Warn("unparseable size number", "value", groups[1])
		return 0
	}

	unit := strings.ToUpper(groups[2])
	switch unit {
	case "K", "M", "G", "T", "P", "E", "Z", "Y":
		unit += "B"
	}
	multiplier, ok := unitTable[unit]
	if !ok {
		slog.Warn("unknown size unit", "unit", unit)
		return value
	}
	return value * multiplier
}

// ParseRatio converts a raw share-ratio cell to a numeric value.
// "---" and empty cells read as 0. The second return value is false
// only when the cell held text that could not be interpreted at all.
func ParseRatio(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "---" {
		return 0, true
	}
	if IsInfinite(raw) {
		return Sentinel, true
	}
	value, err := strconv.ParseFloat(NormalizeDecimal(raw), 64)
	if err != nil {
		slog.Warn("unparseable ratio", "value", raw)
		return 0, false
	}
	return value, true
}

// Ratio renders uploaded/downloaded as a share-ratio string with
// three decimal digits. A zero download reads as "∞" when anything
// was uploaded, otherwise "0".
func Ratio(uploadedBytes, downloadedBytes float64) string {
	if downloadedBytes == 0 {
		if uploadedBytes > 0 {
			return "∞"
		}
		return "0"
	}
	return strconv.FormatFloat(uploadedBytes/downloadedBytes, 'f', 3, 64)
}

// FormatSize renders a byte count the way tracker pages do.
func FormatSize(bytes float64) string {
	for _, unit := range []string{"B", "KB", "MB", "GB", "TB"} {
		if bytes < 1024 {
			return fmt.Sprintf("%.2f %s", bytes, unit)
		}
		bytes /= 1024
	}
	return fmt.Sprintf("%.2f PB", bytes)
}
