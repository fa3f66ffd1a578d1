package utils

import (
	"time"
)

func GetDateDaysAgo(days int) time.Time {
	return time.Now().AddDate(0, 0, -days)
}

func IsWithinDays(postTime time.Time, days int) bool {
	cutoff := GetDateDaysAgo(days)
	return postTime.After(cutoff)
}

// ScrapedWithinDays reports whether an RFC 3339 scrape time falls inside the
// last days. Unparseable values are treated as outside the window.
func ScrapedWithinDays(scrapedAt string, days int) bool {
	t, err := time.Parse(time.RFC3339, scrapedAt)
	if err != nil {
		return false
	}
	return IsWithinDays(t, days)
}
