package payroll

import (
	"time"
)

// =============================================================================
// CYCLE - The payment window payroll is computed for
// =============================================================================

// Cycle is the inclusive date window bounded by two consecutive configured
// payment days. For payment day 28 and period "2025-02" the cycle is
// [2025-01-29, 2025-02-28].
type Cycle struct {
	PeriodMonth string // "YYYY-MM" label the cycle was resolved for
	DateRange
}

// ParsePeriod validates a "YYYY-MM" label and returns its year and month.
// Rejection happens here, before any computation or store access.
func ParsePeriod(period string) (int, time.Month, error) {
	t, err := time.Parse("2006-01", period)
	if err != nil || len(period) != 7 {
		return 0, 0, &PeriodFormatError{Input: period}
	}
	return t.Year(), t.Month(), nil
}

// ResolveCycle computes the cycle window for a target period.
//
// CycleEnd is the configured payment day within the target month, clamped
// to the month's last actual day (payment day 31 in February lands on
// Feb 28/29). CycleStart is the day after the previous month's clamped
// payment day; the previous month of January is December of the previous
// year.
func ResolveCycle(period string, paymentDayOfMonth int) (Cycle, error) {
	year, month, err := ParsePeriod(period)
	if err != nil {
		return Cycle{}, err
	}

	end := paymentDayInMonth(year, month, paymentDayOfMonth)

	prevYear, prevMonth := year, month-1
	if month == time.January {
		prevYear, prevMonth = year-1, time.December
	}
	start := paymentDayInMonth(prevYear, prevMonth, paymentDayOfMonth).AddDays(1)

	return Cycle{PeriodMonth: period, DateRange: DateRange{Start: start, End: end}}, nil
}

// paymentDayInMonth clamps the configured day to the month's length.
func paymentDayInMonth(year int, month time.Month, day int) Date {
	if last := DaysInMonth(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}
