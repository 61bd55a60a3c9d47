package output

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// FormatBytes renders a byte count with binary units, e.g. "1.5 MiB".
func FormatBytes[T ~int64 | ~uint64](n T) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

// FormatProgress renders completed/required resource counts. An imprecise
// required count is marked with a trailing "+".
func FormatProgress(completed, required uint64, precise bool) string {
	marker := ""
	if !precise {
		marker = "+"
	}
	if required == 0 {
		return fmt.Sprintf("%s/%d%s", humanize.Comma(int64(completed)), required, marker)
	}
	pct := float64(completed) / float64(required) * 100
	return fmt.Sprintf("%s/%s%s (%.1f%%)",
		humanize.Comma(int64(completed)), humanize.Comma(int64(required)), marker, pct)
}
