/*
active.go - Gap-aware active-period splitting

PURPOSE:
  A renewal paid after the package expired leaves a lapse: the days in
  [previousEnd, paymentDate) belong to no coach. This file clamps the cycle
  window to the student's package bounds and carves out every such gap,
  producing the billable sub-periods.

This pass is deliberately independent from ownership reconstruction
(ownership.go). The two interval splits are computed separately and
intersected by the aggregator, instead of one combined state machine per
student.

SEE ALSO:
  - ownership.go: the other splitting pass
  - engine.go: intersects the two per student
*/
package payroll

import "sort"

// ActivePeriods returns the billable sub-periods of the cycle for a student,
// excluding every day the package had lapsed. An empty result means the
// student contributes nothing this cycle.
//
// renewals must be the student's full renewal log; only in-cycle renewals
// whose payment came after the previous package end (a real gap) split the
// window.
func ActivePeriods(student Student, cycle Cycle, renewals []RenewalEvent) []DateRange {
	work := DateRange{
		Start: MaxDate(student.PackageStart, cycle.Start),
		End:   MinDate(student.PackageEnd, cycle.End),
	}
	if !work.IsValid() {
		// Package entirely outside the cycle: terminal zero contribution.
		return nil
	}

	gaps := gapRenewals(cycle, renewals)
	if len(gaps) == 0 {
		return []DateRange{work}
	}

	var active []DateRange
	cursor := work.Start
	for _, g := range gaps {
		gapStart, gapEnd := g.PreviousEnd, g.PaymentDate
		if gapStart.After(cursor) && work.Contains(gapStart) {
			// Billable days up to the lapse; gapStart itself is not billable.
			active = append(active, DateRange{
				Start: cursor,
				End:   MinDate(gapStart.AddDays(-1), work.End),
			})
		}
		if gapEnd.After(cursor) {
			cursor = gapEnd
		}
	}
	if cursor.BeforeOrEqual(work.End) {
		active = append(active, DateRange{Start: cursor, End: work.End})
	}

	return active
}

// HasGapInCycle reports whether any qualifying gap-renewal falls in the
// cycle; the aggregator stamps this on the student's breakdown line.
func HasGapInCycle(cycle Cycle, renewals []RenewalEvent) bool {
	return len(gapRenewals(cycle, renewals)) > 0
}

// gapRenewals selects in-cycle renewals with a real lapse, ascending by
// payment date.
func gapRenewals(cycle Cycle, renewals []RenewalEvent) []RenewalEvent {
	var gaps []RenewalEvent
	for _, r := range renewals {
		if cycle.Contains(r.PaymentDate) && r.HasGap() {
			gaps = append(gaps, r)
		}
	}
	sort.SliceStable(gaps, func(i, j int) bool {
		return gaps[i].PaymentDate.Before(gaps[j].PaymentDate)
	})
	return gaps
}
