package analytics

import "time"

// Period is a reporting window ending now.
type Period struct {
	Name string
	Days int
}

var (
	PeriodDay   = Period{Name: "24h", Days: 1}
	PeriodWeek  = Period{Name: "7d", Days: 7}
	PeriodMonth = Period{Name: "30d", Days: 30}
)

// ParsePeriod maps the query value to a window. Empty or unknown values
// select the 7 day window.
func ParsePeriod(raw string) Period {
	switch raw {
	case "24h":
		return PeriodDay
	case "30d":
		return PeriodMonth
	default:
		return PeriodWeek
	}
}

// Since returns the start of the window that ends at now.
func (p Period) Since(now time.Time) time.Time {
	return now.Add(-time.Duration(p.Days) * 24 * time.Hour)
}
