package finance

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Period is a dashboard window ending today.
type Period string

const (
	PeriodToday      Period = "hoje"
	PeriodWeek       Period = "7d"
	PeriodMonth      Period = "30d"
	PeriodMonthToDay Period = "mtd"
)

// Periods lists the accepted values in display order.
var Periods = []Period{PeriodToday, PeriodWeek, PeriodMonth, PeriodMonthToDay}

// ParsePeriod accepts the backend names plus "today".
func ParsePeriod(s string) (Period, error) {
	switch s {
	case "", string(PeriodMonthToDay):
		return PeriodMonthToDay, nil
	case string(PeriodToday), "today":
		return PeriodToday, nil
	case string(PeriodWeek):
		return PeriodWeek, nil
	case string(PeriodMonth):
		return PeriodMonth, nil
	}
	return "", fmt.Errorf("invalid period %q (want hoje, 7d, 30d or mtd)", s)
}

// DateRange is an inclusive pair of YYYY-MM-DD dates.
type DateRange struct {
	Start string
	End   string
}

// Range maps p to calendar dates in now's location. 7d and 30d include
// today, so they start 6 and 29 days back.
func (p Period) Range(now time.Time) DateRange {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := today.Format(dateLayout)

	var start time.Time
	switch p {
	case PeriodToday:
		start = today
	case PeriodWeek:
		start = today.AddDate(0, 0, -6)
	case PeriodMonth:
		start = today.AddDate(0, 0, -29)
	default:
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
	return DateRange{Start: start.Format(dateLayout), End: end}
}
