package calendar

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTime normalizes a time value to 12-hour "H:MM AM/PM" form.
//
// Values that already carry an AM/PM marker are passed through unchanged,
// which makes the function idempotent: FormatTime(FormatTime(x)) ==
// FormatTime(x). Anything that fails to parse as 24-hour "HH:MM" is also
// returned unchanged rather than raising.
func FormatTime(s string) string {
	trimmed := strings.TrimSpace(s)
	upper := strings.ToUpper(trimmed)
	if strings.Contains(upper, "AM") || strings.Contains(upper, "PM") {
		return trimmed
	}

	parts := strings.SplitN(trimmed, ":", 3)
	if len(parts) < 2 {
		return trimmed
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return trimmed
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return trimmed
	}

	marker := "AM"
	switch {
	case hour == 0:
		hour = 12
	case hour == 12:
		marker = "PM"
	case hour > 12:
		hour -= 12
		marker = "PM"
	}

	return fmt.Sprintf("%d:%02d %s", hour, minute, marker)
}
