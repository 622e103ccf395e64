package payroll_test

import (
	"testing"

	"github.com/warp/tutor-payroll/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func window(start, end string) payroll.DateRange {
	return payroll.DateRange{Start: payroll.MustDate(start), End: payroll.MustDate(end)}
}

func transfer(from, to payroll.CoachID, date string) payroll.TransferEvent {
	return payroll.TransferEvent{
		OldCoachID:   from,
		NewCoachID:   to,
		TransferDate: payroll.MustDate(date),
	}
}

func assertInterval(t *testing.T, iv payroll.OwnershipInterval, coach payroll.CoachID, start, end string) {
	t.Helper()
	if iv.CoachID != coach {
		t.Errorf("expected coach %s, got %s", coach, iv.CoachID)
	}
	if !iv.Range.Start.Equal(payroll.MustDate(start)) || !iv.Range.End.Equal(payroll.MustDate(end)) {
		t.Errorf("expected [%s, %s], got %v", start, end, iv.Range)
	}
}

// =============================================================================
// OWNERSHIP TIMELINE TESTS
// =============================================================================

func TestOwnershipTimeline_NoTransfers_CurrentCoachOwnsWindow(t *testing.T) {
	// GIVEN: A student with no transfer history
	// WHEN: Reconstructing ownership over a cycle window
	// THEN: The current coach owns the entire window

	intervals := payroll.OwnershipTimeline(window("2025-01-29", "2025-02-28"), "coach-a", nil)

	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
	assertInterval(t, intervals[0], "coach-a", "2025-01-29", "2025-02-28")
}

func TestOwnershipTimeline_MidCycleTransfer_SplitsWindow(t *testing.T) {
	// GIVEN: A transfer from A to B on Feb 10
	// WHEN: Reconstructing ownership over [Jan 29, Feb 28]
	// THEN: A owns through Feb 9 (12 days), B from Feb 10 (19 days)

	intervals := payroll.OwnershipTimeline(
		window("2025-01-29", "2025-02-28"),
		"coach-b",
		[]payroll.TransferEvent{transfer("coach-a", "coach-b", "2025-02-10")},
	)

	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}
	assertInterval(t, intervals[0], "coach-a", "2025-01-29", "2025-02-09")
	assertInterval(t, intervals[1], "coach-b", "2025-02-10", "2025-02-28")

	if d := intervals[0].Range.Days(); d != 12 {
		t.Errorf("expected 12 days for old coach, got %d", d)
	}
	if d := intervals[1].Range.Days(); d != 19 {
		t.Errorf("expected 19 days for new coach, got %d", d)
	}
}

func TestOwnershipTimeline_TransferBeforeWindow_NewCoachOwnsAll(t *testing.T) {
	// GIVEN: A transfer dated before the window starts
	// WHEN: Reconstructing ownership
	// THEN: The transfer's new coach owns the entire window

	intervals := payroll.OwnershipTimeline(
		window("2025-01-29", "2025-02-28"),
		"coach-b",
		[]payroll.TransferEvent{transfer("coach-a", "coach-b", "2025-01-10")},
	)

	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
	assertInterval(t, intervals[0], "coach-b", "2025-01-29", "2025-02-28")
}

func TestOwnershipTimeline_TransferAfterWindow_OriginalCoachOwnsAll(t *testing.T) {
	// GIVEN: The only transfer happens after the window ends
	// THEN: The old side of that transfer owns the window, even though
	//       the student's cached current coach is already the new one

	intervals := payroll.OwnershipTimeline(
		window("2025-01-29", "2025-02-28"),
		"coach-b",
		[]payroll.TransferEvent{transfer("coach-a", "coach-b", "2025-03-15")},
	)

	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
	assertInterval(t, intervals[0], "coach-a", "2025-01-29", "2025-02-28")
}

func TestOwnershipTimeline_MultipleTransfers_Chained(t *testing.T) {
	// GIVEN: A -> B on Feb 5, B -> C on Feb 20
	// THEN: Three contiguous intervals covering every day exactly once

	intervals := payroll.OwnershipTimeline(
		window("2025-01-29", "2025-02-28"),
		"coach-c",
		[]payroll.TransferEvent{
			transfer("coach-a", "coach-b", "2025-02-05"),
			transfer("coach-b", "coach-c", "2025-02-20"),
		},
	)

	if len(intervals) != 3 {
		t.Fatalf("expected 3 intervals, got %d", len(intervals))
	}
	assertInterval(t, intervals[0], "coach-a", "2025-01-29", "2025-02-04")
	assertInterval(t, intervals[1], "coach-b", "2025-02-05", "2025-02-19")
	assertInterval(t, intervals[2], "coach-c", "2025-02-20", "2025-02-28")

	total := 0
	for _, iv := range intervals {
		total += iv.Range.Days()
	}
	if total != 31 {
		t.Errorf("intervals must cover the full window: expected 31 days, got %d", total)
	}
}

func TestOwnershipTimeline_UnsortedLog_NormalizedInternally(t *testing.T) {
	// GIVEN: The transfer log arrives out of order
	// THEN: The timeline is identical to the sorted case

	intervals := payroll.OwnershipTimeline(
		window("2025-01-29", "2025-02-28"),
		"coach-c",
		[]payroll.TransferEvent{
			transfer("coach-b", "coach-c", "2025-02-20"),
			transfer("coach-a", "coach-b", "2025-02-05"),
		},
	)

	if len(intervals) != 3 {
		t.Fatalf("expected 3 intervals, got %d", len(intervals))
	}
	assertInterval(t, intervals[0], "coach-a", "2025-01-29", "2025-02-04")
}

func TestOwnershipTimeline_TransferOnWindowStart_NoZeroInterval(t *testing.T) {
	// GIVEN: A transfer dated exactly on the window start
	// THEN: Only the new coach appears; no inverted interval for the old one

	intervals := payroll.OwnershipTimeline(
		window("2025-01-29", "2025-02-28"),
		"coach-b",
		[]payroll.TransferEvent{transfer("coach-a", "coach-b", "2025-01-29")},
	)

	if len(intervals) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(intervals))
	}
	assertInterval(t, intervals[0], "coach-b", "2025-01-29", "2025-02-28")
}

func TestOwnershipTimeline_SameDayDoubleTransfer_MiddleCoachSkipped(t *testing.T) {
	// GIVEN: A -> B and B -> C both dated Feb 10
	// THEN: B gets no days; A owns through Feb 9, C from Feb 10

	intervals := payroll.OwnershipTimeline(
		window("2025-01-29", "2025-02-28"),
		"coach-c",
		[]payroll.TransferEvent{
			transfer("coach-a", "coach-b", "2025-02-10"),
			transfer("coach-b", "coach-c", "2025-02-10"),
		},
	)

	if len(intervals) != 2 {
		t.Fatalf("expected 2 intervals, got %d", len(intervals))
	}
	assertInterval(t, intervals[0], "coach-a", "2025-01-29", "2025-02-09")
	assertInterval(t, intervals[1], "coach-c", "2025-02-10", "2025-02-28")
}

func TestOwnershipTimeline_InvalidWindow_Nil(t *testing.T) {
	intervals := payroll.OwnershipTimeline(window("2025-02-28", "2025-01-29"), "coach-a", nil)
	if intervals != nil {
		t.Errorf("expected nil for inverted window, got %v", intervals)
	}
}
