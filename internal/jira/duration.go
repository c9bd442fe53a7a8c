package jira

import (
	"fmt"
	"regexp"
	"strconv"
)

// SecondsToEstimate renders seconds as Jira's "Xh Ym" estimate text.
// Sub-minute remainders are dropped, zero renders as "0h 0m".
func SecondsToEstimate(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	return fmt.Sprintf("%dh %dm", hours, minutes)
}

var estimateRe = regexp.MustCompile(`(?:(\d+)h)?\s*(?:(\d+)m)?`)

// EstimateToSeconds parses the "Xh Ym" estimate text back to seconds.
// Unparseable input yields zero.
func EstimateToSeconds(estimate string) int64 {
	m := estimateRe.FindStringSubmatch(estimate)
	if m == nil {
		return 0
	}
	var seconds int64
	if m[1] != "" {
		h, _ := strconv.ParseInt(m[1], 10, 64)
		seconds += h * 3600
	}
	if m[2] != "" {
		min, _ := strconv.ParseInt(m[2], 10, 64)
		seconds += min * 60
	}
	return seconds
}
