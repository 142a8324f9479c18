package usecase

import (
	"regexp"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

var relativeDays = []struct {
	words  []string
	offset int
}{
	{[]string{"day after tomorrow", "모레", "내일모레"}, 2},
	{[]string{"day before yesterday", "그저께", "그제"}, -2},
	{[]string{"today", "tonight", "오늘"}, 0},
	{[]string{"yesterday", "어제"}, -1},
	{[]string{"tomorrow", "내일"}, 1},
}

var (
	dateLayouts = []string{dateLayout, "2006/01/02", "2006.01.02", "20060102", "2006-1-2"}
	reURL       = regexp.MustCompile(`https?://[^\s"'<>]+`)
)

// resolveDate normalizes a model-provided date to YYYY-MM-DD. Relative words
// are resolved against now. Anything unrecognized yields "".
func resolveDate(raw string, now time.Time) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout)
		}
	}
	if off, ok := relativeOffset(s, true); ok {
		return now.AddDate(0, 0, off).Format(dateLayout)
	}
	return ""
}

// relativeDateIn finds a relative day word anywhere in free text.
func relativeDateIn(text string, now time.Time) string {
	if off, ok := relativeOffset(strings.ToLower(text), false); ok {
		return now.AddDate(0, 0, off).Format(dateLayout)
	}
	return ""
}

func relativeOffset(s string, exact bool) (int, bool) {
	for _, rd := range relativeDays {
		for _, w := range rd.words {
			if (exact && s == w) || (!exact && strings.Contains(s, w)) {
				return rd.offset, true
			}
		}
	}
	return 0, false
}

// extractURL returns the first http(s) URL in text.
func extractURL(text string) string {
	return strings.TrimRight(reURL.FindString(text), ".,)")
}

func validURL(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
