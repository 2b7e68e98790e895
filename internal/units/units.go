// Package units formats and parses byte quantities the way aria2 and the
// progress notifications write them.
package units

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	KiB = 1024
	MiB = KiB * 1024
	GiB = MiB * 1024
	TiB = GiB * 1024
)

// FormatBytes formats b with binary units, one decimal place ("12.3MiB").
func FormatBytes(b int64) string {
	switch {
	case b >= TiB:
		return fmt.Sprintf("%.1fTiB", float64(b)/float64(TiB))
	case b >= GiB:
		return fmt.Sprintf("%.1fGiB", float64(b)/float64(GiB))
	case b >= MiB:
		return fmt.Sprintf("%.1fMiB", float64(b)/float64(MiB))
	case b >= KiB:
		return fmt.Sprintf("%.1fKiB", float64(b)/float64(KiB))
	default:
		return fmt.Sprintf("%dB", b)
	}
}

// ParseSize parses aria2 size values: a plain byte count or a number with a
// K or M suffix (1K = 1024). Fractions are not accepted, matching aria2.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	var multiplier int64 = 1
	switch s[len(s)-1] {
	case 'K', 'k':
		multiplier = KiB
		s = s[:len(s)-1]
	case 'M', 'm':
		multiplier = MiB
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size: %q", s)
	}

	return n * multiplier, nil
}
