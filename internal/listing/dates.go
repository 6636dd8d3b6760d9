package listing

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	yesterdayWord    = "Вчера"
	displayLayout    = "02.01.2006"
	fallbackTSLayout = "02.01.2006, 15:04:05"
)

var (
	absoluteDatePattern  = regexp.MustCompile(`\d{1,2}-\d{1,2}-\d{4},\s*\d{1,2}:\d{1,2}`)
	yesterdayPattern     = regexp.MustCompile(yesterdayWord + `,\s*(\d{1,2}:\d{1,2})`)
	publishDatePattern   = regexp.MustCompile(`(\d{1,2}-\d{1,2}-\d{4},\s*\d{1,2}:\d{1,2})|(` + yesterdayWord + `,\s*\d{1,2}:\d{1,2})`)
	sortableDatePattern  = regexp.MustCompile(`(\d{1,2})[-.](\d{1,2})[-.](\d{4}),\s*(\d{1,2}):(\d{1,2})`)
	leadingLabelsPattern = regexp.MustCompile(`(?i)^(Способ|Категория|Автор)`)
)

// NormalizeDateText turns an upstream date label into display text.
//
// "27-12-2025, 16:59 | обновлено" keeps the matched date verbatim. "Вчера, 11:15"
// becomes yesterday's calendar date relative to now. Anything else is returned
// trimmed, and empty input yields now formatted as a timestamp.
func NormalizeDateText(text string, now time.Time) string {
	if m := absoluteDatePattern.FindString(text); m != "" {
		return m
	}
	if m := yesterdayPattern.FindStringSubmatch(text); m != nil {
		return now.AddDate(0, 0, -1).Format(displayLayout) + ", " + m[1]
	}
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		return trimmed
	}
	return now.Format(fallbackTSLayout)
}

// ParseDateText converts normalized date text into a time for sorting.
// It understands "DD-MM-YYYY, HH:MM" and "DD.MM.YYYY, HH:MM"; any other text
// yields the zero time, so ordering across mixed formats is best-effort.
func ParseDateText(text string, loc *time.Location) time.Time {
	m := sortableDatePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}
	parts := make([]int, 0, 5)
	for _, raw := range m[1:] {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return time.Time{}
		}
		parts = append(parts, n)
	}
	day, month, year, hour, minute := parts[0], parts[1], parts[2], parts[3], parts[4]
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return time.Time{}
	}
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
}

func extractPublishDate(byline string) (string, bool) {
	m := publishDatePattern.FindString(byline)
	return m, m != ""
}
