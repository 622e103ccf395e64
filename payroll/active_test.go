package payroll_test

import (
	"testing"

	"github.com/warp/tutor-payroll/payroll"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func testCycle(t *testing.T, period string, paymentDay int) payroll.Cycle {
	t.Helper()
	cycle, err := payroll.ResolveCycle(period, paymentDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return cycle
}

func packaged(start, end string) payroll.Student {
	return payroll.Student{
		ID:           "stu-1",
		PackageStart: payroll.MustDate(start),
		PackageEnd:   payroll.MustDate(end),
		IsActive:     true,
	}
}

func gapRenewal(previousEnd, paymentDate string) payroll.RenewalEvent {
	return payroll.RenewalEvent{
		StudentID:   "stu-1",
		PreviousEnd: payroll.MustDate(previousEnd),
		PaymentDate: payroll.MustDate(paymentDate),
	}
}

func assertRange(t *testing.T, r payroll.DateRange, start, end string) {
	t.Helper()
	if !r.Start.Equal(payroll.MustDate(start)) || !r.End.Equal(payroll.MustDate(end)) {
		t.Errorf("expected [%s, %s], got %v", start, end, r)
	}
}

// =============================================================================
// ACTIVE PERIOD TESTS
// =============================================================================

func TestActivePeriods_PackageCoversCycle_FullWindow(t *testing.T) {
	// GIVEN: A package spanning the whole cycle, no renewals
	// THEN: One active period equal to the cycle window

	cycle := testCycle(t, "2025-02", 28)
	active := payroll.ActivePeriods(packaged("2024-09-01", "2025-06-01"), cycle, nil)

	if len(active) != 1 {
		t.Fatalf("expected 1 period, got %d", len(active))
	}
	assertRange(t, active[0], "2025-01-29", "2025-02-28")
	if d := active[0].Days(); d != 31 {
		t.Errorf("expected 31 days, got %d", d)
	}
}

func TestActivePeriods_ClampedToPackageBounds(t *testing.T) {
	// GIVEN: A package starting and ending inside the cycle
	// THEN: The active period is clamped on both sides

	cycle := testCycle(t, "2025-02", 28)
	active := payroll.ActivePeriods(packaged("2025-02-03", "2025-02-20"), cycle, nil)

	if len(active) != 1 {
		t.Fatalf("expected 1 period, got %d", len(active))
	}
	assertRange(t, active[0], "2025-02-03", "2025-02-20")
}

func TestActivePeriods_PackageOutsideCycle_Empty(t *testing.T) {
	// GIVEN: A package that ended before the cycle starts
	// THEN: No active periods, which the aggregator treats as zero
	//       contribution rather than an error

	cycle := testCycle(t, "2025-02", 28)
	active := payroll.ActivePeriods(packaged("2024-01-01", "2024-12-15"), cycle, nil)

	if active != nil {
		t.Errorf("expected no active periods, got %v", active)
	}
}

func TestActivePeriods_GapRenewal_CarvesOutLapse(t *testing.T) {
	// GIVEN: Package lapsed Feb 10, renewed with payment on Feb 20
	// WHEN: Splitting the [Jan 29, Feb 28] cycle
	// THEN: [Jan 29, Feb 09] and [Feb 20, Feb 28] are billable; the lapse
	//        days [Feb 10, Feb 19] belong to no coach

	cycle := testCycle(t, "2025-02", 28)
	student := packaged("2024-09-01", "2025-05-20")
	active := payroll.ActivePeriods(student, cycle, []payroll.RenewalEvent{
		gapRenewal("2025-02-10", "2025-02-20"),
	})

	if len(active) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(active))
	}
	assertRange(t, active[0], "2025-01-29", "2025-02-09")
	assertRange(t, active[1], "2025-02-20", "2025-02-28")

	if total := active[0].Days() + active[1].Days(); total != 21 {
		t.Errorf("expected 21 billable days, got %d", total)
	}
}

func TestActivePeriods_SeamlessRenewal_NoSplit(t *testing.T) {
	// GIVEN: A renewal paid on or before the previous end (no lapse)
	// THEN: The window is not split

	cycle := testCycle(t, "2025-02", 28)
	active := payroll.ActivePeriods(packaged("2024-09-01", "2025-06-01"), cycle, []payroll.RenewalEvent{
		gapRenewal("2025-02-15", "2025-02-10"), // paid before expiry
	})

	if len(active) != 1 {
		t.Fatalf("expected 1 period, got %d", len(active))
	}
	assertRange(t, active[0], "2025-01-29", "2025-02-28")
}

func TestActivePeriods_GapRenewalOutsideCycle_Ignored(t *testing.T) {
	// GIVEN: A gap renewal whose payment date falls outside the cycle
	// THEN: It does not split this cycle's window

	cycle := testCycle(t, "2025-02", 28)
	active := payroll.ActivePeriods(packaged("2024-09-01", "2025-06-01"), cycle, []payroll.RenewalEvent{
		gapRenewal("2025-03-10", "2025-03-20"),
	})

	if len(active) != 1 {
		t.Fatalf("expected 1 period, got %d", len(active))
	}
}

func TestActivePeriods_GapSwallowsWindowStart(t *testing.T) {
	// GIVEN: The lapse started before the cycle and the renewal lands inside it
	// THEN: Only the post-renewal tail is billable

	cycle := testCycle(t, "2025-02", 28)
	student := packaged("2024-09-01", "2025-05-20")
	active := payroll.ActivePeriods(student, cycle, []payroll.RenewalEvent{
		gapRenewal("2025-01-15", "2025-02-20"),
	})

	if len(active) != 1 {
		t.Fatalf("expected 1 period, got %d", len(active))
	}
	assertRange(t, active[0], "2025-02-20", "2025-02-28")
}

func TestActivePeriods_GapReachesWindowEnd_NoTail(t *testing.T) {
	// GIVEN: A renewal paid on the last cycle day, lapse covering the tail
	// THEN: The billable part ends at the lapse start; the renewal day
	//       itself is the only post-gap day

	cycle := testCycle(t, "2025-02", 28)
	student := packaged("2024-09-01", "2025-05-20")
	active := payroll.ActivePeriods(student, cycle, []payroll.RenewalEvent{
		gapRenewal("2025-02-15", "2025-02-28"),
	})

	if len(active) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(active))
	}
	assertRange(t, active[0], "2025-01-29", "2025-02-14")
	assertRange(t, active[1], "2025-02-28", "2025-02-28")
}

func TestHasGapInCycle(t *testing.T) {
	cycle := testCycle(t, "2025-02", 28)

	if payroll.HasGapInCycle(cycle, nil) {
		t.Error("no renewals must mean no gap")
	}
	if !payroll.HasGapInCycle(cycle, []payroll.RenewalEvent{gapRenewal("2025-02-10", "2025-02-20")}) {
		t.Error("in-cycle lapse renewal must flag a gap")
	}
	if payroll.HasGapInCycle(cycle, []payroll.RenewalEvent{gapRenewal("2025-03-10", "2025-03-20")}) {
		t.Error("out-of-cycle renewal must not flag a gap")
	}
}
