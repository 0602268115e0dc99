package vsent

import (
	"fmt"
	"time"
)

// HumanizeSince renders the duration since a last-seen instant the way the
// dashboard and notifications show it: "just now", "N min ago", or "Nh ago".
func HumanizeSince(d time.Duration) (s string) {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%d min ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
