// Package ui renders listings, transfer progress and logs for the
// bucketctl command line.
package ui

import (
	"strings"
	"time"

	"github.com/bamsammich/bucketctl/internal/stats"
)

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	return stats.FormatBytes(b)
}

// FormatSize formats an entry size. The backend reports -1 for buckets
// and for files whose size it does not know.
func FormatSize(b int64) string {
	if b < 0 {
		return "-"
	}
	return FormatBytes(b)
}

// FormatRate formats a throughput in bytes per second.
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec < 1 {
		return "0 B/s"
	}
	return FormatBytes(int64(bytesPerSec)) + "/s"
}

// FormatDuration rounds d to whole seconds.
func FormatDuration(d time.Duration) string {
	return d.Round(time.Second).String()
}

// FormatETA is FormatDuration with "--" for an unknown estimate.
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	return FormatDuration(d)
}

// ProgressBar draws frac (clamped to [0,1]) as [===>   ] with width cells
// between the brackets.
func ProgressBar(frac float64, width int) string {
	if width <= 0 {
		return ""
	}
	frac = min(max(frac, 0), 1)
	n := int(frac * float64(width))

	var b strings.Builder
	b.WriteByte('[')
	switch {
	case n >= width:
		b.WriteString(strings.Repeat("=", width))
	case n > 0:
		b.WriteString(strings.Repeat("=", n-1))
		b.WriteByte('>')
		b.WriteString(strings.Repeat(" ", width-n))
	default:
		b.WriteString(strings.Repeat(" ", width))
	}
	b.WriteByte(']')
	return b.String()
}
