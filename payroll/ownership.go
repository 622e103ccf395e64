/*
ownership.go - Coach ownership timeline reconstruction

PURPOSE:
  A student's "current coach" field is a cached projection, not a source of
  truth for past periods. This file rebuilds, for any work window, the
  sequence of (coach, start, end) ownership intervals from the student's
  chronologically ordered transfer log.

ALGORITHM:
  1. Find the owner at the window start:
     - most recent transfer strictly before the window -> its new coach
     - no prior transfer but transfers exist          -> first transfer's
       old coach (the original coach before any change)
     - no transfers at all                            -> current coach id
  2. Keep transfers dated inside the window ("relevant" transfers).
  3. Chain intervals: window start up to the day before the first relevant
     transfer, then transfer-to-transfer, then last transfer to window end.
  4. Drop inverted ranges: two transfers on the same day must not produce
     a negative interval for the intermediate coach.

INVARIANTS:
  - Intervals are contiguous and non-overlapping: every day in the window
    is owned by exactly one coach.
  - The new coach owns the student from the transfer date inclusive.

SEE ALSO:
  - active.go: produces the windows this runs against
  - engine.go: intersects both passes per student
*/
package payroll

import "sort"

// OwnershipInterval is a maximal date range during which exactly one coach
// is responsible for (and compensated for) a student.
type OwnershipInterval struct {
	CoachID CoachID
	Range   DateRange
}

// OwnershipTimeline reconstructs the ownership intervals covering window.
// transfers must be the student's full transfer log; order is normalized
// here so callers don't depend on store ordering.
func OwnershipTimeline(window DateRange, currentCoach CoachID, transfers []TransferEvent) []OwnershipInterval {
	if !window.IsValid() {
		return nil
	}

	sorted := make([]TransferEvent, len(transfers))
	copy(sorted, transfers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].TransferDate.Before(sorted[j].TransferDate)
	})

	owner := ownerAt(window.Start, currentCoach, sorted)

	var relevant []TransferEvent
	for _, tr := range sorted {
		if window.Contains(tr.TransferDate) {
			relevant = append(relevant, tr)
		}
	}

	if len(relevant) == 0 {
		return []OwnershipInterval{{CoachID: owner, Range: window}}
	}

	var intervals []OwnershipInterval
	emit := func(coach CoachID, start, end Date) {
		// Same-day double transfers would invert the middle range; skip it.
		if start.BeforeOrEqual(end) {
			intervals = append(intervals, OwnershipInterval{
				CoachID: coach,
				Range:   DateRange{Start: start, End: end},
			})
		}
	}

	emit(owner, window.Start, relevant[0].TransferDate.AddDays(-1))
	for i, tr := range relevant {
		end := window.End
		if i+1 < len(relevant) {
			end = relevant[i+1].TransferDate.AddDays(-1)
		}
		emit(tr.NewCoachID, tr.TransferDate, end)
	}

	return intervals
}

// ownerAt determines who owned the student as of a given date.
func ownerAt(at Date, currentCoach CoachID, sorted []TransferEvent) CoachID {
	owner := CoachID("")
	for _, tr := range sorted {
		if tr.TransferDate.Before(at) {
			owner = tr.NewCoachID
		}
	}
	if owner != "" {
		return owner
	}
	if len(sorted) > 0 {
		// No transfer predates the window: the first recorded transfer still
		// names the original coach on its old side.
		return sorted[0].OldCoachID
	}
	return currentCoach
}
