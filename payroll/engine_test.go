package payroll_test

import (
	"context"
	"testing"

	"github.com/warp/tutor-payroll/payroll"
	"github.com/warp/tutor-payroll/payroll/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// newTestEngine seeds a memory store with the default settings
// (fee 1100.00, divisor 31, payment day 28) and two active coaches.
func newTestEngine(t *testing.T) (*payroll.Engine, *store.Memory) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemory()

	if err := mem.PutSettings(ctx, payroll.Settings{
		MonthlyFee:        payroll.MustParseMoney("1100.00"),
		BaseDaysDivisor:   31,
		PaymentDayOfMonth: 28,
	}); err != nil {
		t.Fatalf("seed settings: %v", err)
	}
	for _, c := range []payroll.Coach{
		{ID: "coach-a", Name: "Alice", IsActive: true},
		{ID: "coach-b", Name: "Bob", IsActive: true},
	} {
		if err := mem.SaveCoach(ctx, c); err != nil {
			t.Fatalf("seed coach: %v", err)
		}
	}

	return payroll.NewEngine(mem), mem
}

func addStudent(t *testing.T, mem *store.Memory, id payroll.StudentID, coach payroll.CoachID, start, end string) {
	t.Helper()
	err := mem.SaveStudent(context.Background(), payroll.Student{
		ID:             id,
		Name:           string(id),
		PackageStart:   payroll.MustDate(start),
		PackageEnd:     payroll.MustDate(end),
		CurrentCoachID: coach,
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("seed student: %v", err)
	}
}

func rowFor(t *testing.T, rows []payroll.PayrollRow, coach payroll.CoachID) payroll.PayrollRow {
	t.Helper()
	for _, row := range rows {
		if row.CoachID == coach {
			return row
		}
	}
	t.Fatalf("no row for coach %s", coach)
	return payroll.PayrollRow{}
}

// =============================================================================
// FULL CYCLE TESTS
// =============================================================================

func TestCalculate_FullCycle_ExactMonthlyFee(t *testing.T) {
	// GIVEN: Fee 1100.00, divisor 31, one student active the whole cycle
	// WHEN: Calculating February 2025 (a 31-day cycle)
	// THEN: The coach earns exactly 1100.00 with no rounding residue

	engine, mem := newTestEngine(t)
	addStudent(t, mem, "stu-1", "coach-a", "2024-09-01", "2025-06-01")

	rows, err := engine.Calculate(context.Background(), "2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row := rowFor(t, rows, "coach-a")
	if got := row.TotalAmount.String(); got != "1100.00" {
		t.Errorf("expected 1100.00, got %s", got)
	}
	if row.StudentCount != 1 {
		t.Errorf("expected 1 student, got %d", row.StudentCount)
	}
	if row.Breakdown[0].DaysWorked != 31 {
		t.Errorf("expected 31 days worked, got %d", row.Breakdown[0].DaysWorked)
	}
	if row.Status.IsPaid() {
		t.Error("freshly calculated row must be pending")
	}
}

func TestCalculate_GhostCoach_GetsZeroRow(t *testing.T) {
	// GIVEN: coach-b has no students at all
	// THEN: coach-b still gets an explicit 0.00 row, so a missing row
	//       stays distinguishable from a failed calculation

	engine, mem := newTestEngine(t)
	addStudent(t, mem, "stu-1", "coach-a", "2024-09-01", "2025-06-01")

	rows, err := engine.Calculate(context.Background(), "2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	ghost := rowFor(t, rows, "coach-b")
	if got := ghost.TotalAmount.String(); got != "0.00" {
		t.Errorf("expected 0.00, got %s", got)
	}
	if ghost.StudentCount != 0 {
		t.Errorf("expected 0 students, got %d", ghost.StudentCount)
	}
}

// =============================================================================
// TRANSFER SPLIT TESTS
// =============================================================================

func TestCalculate_MidCycleTransfer_SplitsProRata(t *testing.T) {
	// GIVEN: Student transferred from coach-a to coach-b on Feb 10
	// WHEN: Calculating the [Jan 29, Feb 28] cycle
	// THEN: coach-a gets 12 days (425.81), coach-b 19 days (674.19);
	//        the rounded halves still sum to exactly 1100.00

	engine, mem := newTestEngine(t)
	addStudent(t, mem, "stu-1", "coach-b", "2024-09-01", "2025-06-01")

	ctx := context.Background()
	if err := mem.AppendTransfer(ctx, payroll.TransferEvent{
		ID:           "tr-1",
		StudentID:    "stu-1",
		OldCoachID:   "coach-a",
		NewCoachID:   "coach-b",
		TransferDate: payroll.MustDate("2025-02-10"),
	}); err != nil {
		t.Fatalf("seed transfer: %v", err)
	}

	rows, err := engine.Calculate(ctx, "2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rowA := rowFor(t, rows, "coach-a")
	rowB := rowFor(t, rows, "coach-b")

	if got := rowA.TotalAmount.String(); got != "425.81" {
		t.Errorf("expected coach-a 425.81, got %s", got)
	}
	if got := rowB.TotalAmount.String(); got != "674.19" {
		t.Errorf("expected coach-b 674.19, got %s", got)
	}
	if rowA.Breakdown[0].DaysWorked != 12 || rowB.Breakdown[0].DaysWorked != 19 {
		t.Errorf("expected 12/19 day split, got %d/%d",
			rowA.Breakdown[0].DaysWorked, rowB.Breakdown[0].DaysWorked)
	}

	sum := rowA.TotalAmount.Add(rowB.TotalAmount)
	if got := sum.String(); got != "1100.00" {
		t.Errorf("split must preserve the monthly fee: expected 1100.00, got %s", got)
	}
}

func TestCalculate_TransferAwayAndBack_MergedIntoOneLine(t *testing.T) {
	// GIVEN: Student moves a -> b on Feb 5 and back b -> a on Feb 20
	// THEN: coach-a's breakdown has ONE line for the student with two
	//       sub-periods, not two separate lines

	engine, mem := newTestEngine(t)
	addStudent(t, mem, "stu-1", "coach-a", "2024-09-01", "2025-06-01")

	ctx := context.Background()
	transfers := []payroll.TransferEvent{
		{ID: "tr-1", StudentID: "stu-1", OldCoachID: "coach-a", NewCoachID: "coach-b", TransferDate: payroll.MustDate("2025-02-05")},
		{ID: "tr-2", StudentID: "stu-1", OldCoachID: "coach-b", NewCoachID: "coach-a", TransferDate: payroll.MustDate("2025-02-20")},
	}
	for _, tr := range transfers {
		if err := mem.AppendTransfer(ctx, tr); err != nil {
			t.Fatalf("seed transfer: %v", err)
		}
	}

	rows, err := engine.Calculate(ctx, "2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rowA := rowFor(t, rows, "coach-a")
	if len(rowA.Breakdown) != 1 {
		t.Fatalf("expected 1 merged line, got %d", len(rowA.Breakdown))
	}
	line := rowA.Breakdown[0]
	if len(line.SubPeriods) != 2 {
		t.Fatalf("expected 2 sub-periods, got %d", len(line.SubPeriods))
	}
	// [Jan 29, Feb 4] = 7 days, [Feb 20, Feb 28] = 9 days
	if line.DaysWorked != 16 {
		t.Errorf("expected 16 days, got %d", line.DaysWorked)
	}
	if !line.SubPeriods[0].Range.Start.Before(line.SubPeriods[1].Range.Start) {
		t.Error("sub-periods must be ordered by start date")
	}

	rowB := rowFor(t, rows, "coach-b")
	if rowB.Breakdown[0].DaysWorked != 15 {
		t.Errorf("expected 15 days for coach-b, got %d", rowB.Breakdown[0].DaysWorked)
	}
}

// =============================================================================
// GAP TESTS
// =============================================================================

func TestCalculate_RenewalGap_LapseDaysUnbilled(t *testing.T) {
	// GIVEN: Package lapsed Feb 10, renewed Feb 20
	// THEN: Only 21 of the cycle's 31 days are billed, and the line is
	//       flagged as gapped

	engine, mem := newTestEngine(t)
	addStudent(t, mem, "stu-1", "coach-a", "2024-09-01", "2025-05-20")

	ctx := context.Background()
	if err := mem.AppendRenewal(ctx, payroll.RenewalEvent{
		ID:          "rn-1",
		StudentID:   "stu-1",
		PreviousEnd: payroll.MustDate("2025-02-10"),
		PaymentDate: payroll.MustDate("2025-02-20"),
		NewEnd:      payroll.MustDate("2025-05-20"),
		Amount:      payroll.MustParseMoney("3300.00"),
	}); err != nil {
		t.Fatalf("seed renewal: %v", err)
	}

	rows, err := engine.Calculate(ctx, "2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row := rowFor(t, rows, "coach-a")
	line := row.Breakdown[0]
	if line.DaysWorked != 21 {
		t.Errorf("expected 21 billable days, got %d", line.DaysWorked)
	}
	if !line.HasGaps {
		t.Error("line must be flagged as gapped")
	}
	// 1100/31 * 21 = 745.16
	if got := row.TotalAmount.String(); got != "745.16" {
		t.Errorf("expected 745.16, got %s", got)
	}
}

func TestCalculate_StudentLapsedAllCycle_NoLine(t *testing.T) {
	// GIVEN: A student whose package ended before the cycle
	// THEN: The student contributes nothing; the coach keeps a zero row

	engine, mem := newTestEngine(t)
	addStudent(t, mem, "stu-1", "coach-a", "2024-01-01", "2024-12-01")

	rows, err := engine.Calculate(context.Background(), "2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	row := rowFor(t, rows, "coach-a")
	if row.StudentCount != 0 || !row.TotalAmount.IsZero() {
		t.Errorf("expected empty zero row, got %d students, %s",
			row.StudentCount, row.TotalAmount)
	}
}

// =============================================================================
// IDEMPOTENCY AND LOCKING TESTS
// =============================================================================

func TestCalculate_Recompute_Identical(t *testing.T) {
	// GIVEN: A calculated pending period
	// WHEN: Calculating the same period again with unchanged inputs
	// THEN: Row ids, totals, and ordering are identical

	engine, mem := newTestEngine(t)
	addStudent(t, mem, "stu-1", "coach-a", "2024-09-01", "2025-06-01")
	ctx := context.Background()

	first, err := engine.Calculate(ctx, "2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := engine.Calculate(ctx, "2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("row count changed: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("row %d id changed: %s vs %s", i, first[i].ID, second[i].ID)
		}
		if first[i].TotalAmount.String() != second[i].TotalAmount.String() {
			t.Errorf("row %d total changed: %s vs %s",
				i, first[i].TotalAmount, second[i].TotalAmount)
		}
	}
}

func TestCalculate_RecomputeAfterNewTransfer_PendingRowUpdated(t *testing.T) {
	// GIVEN: A pending period, then a back-dated transfer is recorded
	// WHEN: Recalculating
	// THEN: The pending rows reflect the new split

	engine, mem := newTestEngine(t)
	addStudent(t, mem, "stu-1", "coach-a", "2024-09-01", "2025-06-01")
	ctx := context.Background()

	if _, err := engine.Calculate(ctx, "2025-02"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := mem.AppendTransfer(ctx, payroll.TransferEvent{
		ID: "tr-1", StudentID: "stu-1",
		OldCoachID: "coach-a", NewCoachID: "coach-b",
		TransferDate: payroll.MustDate("2025-02-10"),
	}); err != nil {
		t.Fatalf("seed transfer: %v", err)
	}

	rows, err := engine.Calculate(ctx, "2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rowFor(t, rows, "coach-a").TotalAmount.String(); got != "425.81" {
		t.Errorf("expected updated split 425.81, got %s", got)
	}
}

func TestCalculate_PaidRowNeverOverwritten(t *testing.T) {
	// GIVEN: A distributed (paid) period, then roster history changes
	// WHEN: Recalculating
	// THEN: The paid row is returned unchanged, amounts frozen

	engine, mem := newTestEngine(t)
	addStudent(t, mem, "stu-1", "coach-a", "2024-09-01", "2025-06-01")
	ctx := context.Background()

	if _, err := engine.Calculate(ctx, "2025-02"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := engine.Distribute(ctx, "2025-02", "admin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Back-dated transfer recorded after payment.
	if err := mem.AppendTransfer(ctx, payroll.TransferEvent{
		ID: "tr-1", StudentID: "stu-1",
		OldCoachID: "coach-a", NewCoachID: "coach-b",
		TransferDate: payroll.MustDate("2025-02-10"),
	}); err != nil {
		t.Fatalf("seed transfer: %v", err)
	}

	rows, err := engine.Calculate(ctx, "2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rowA := rowFor(t, rows, "coach-a")
	if !rowA.Status.IsPaid() {
		t.Error("paid row must stay paid")
	}
	if got := rowA.TotalAmount.String(); got != "1100.00" {
		t.Errorf("paid amount must stay frozen at 1100.00, got %s", got)
	}

	locked, err := engine.IsPeriodLocked(ctx, "2025-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !locked {
		t.Error("period with a paid row must report locked")
	}
}

// =============================================================================
// PRECONDITION TESTS
// =============================================================================

func TestCalculate_MissingSettings_Fatal(t *testing.T) {
	// GIVEN: No settings row
	// THEN: Calculation refuses to default-fill and fails

	engine := payroll.NewEngine(store.NewMemory())
	_, err := engine.Calculate(context.Background(), "2025-02")
	if err != payroll.ErrSettingsMissing {
		t.Errorf("expected ErrSettingsMissing, got %v", err)
	}
}

func TestCalculate_InvalidPeriod_Rejected(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Calculate(context.Background(), "2025-2")
	if !payroll.IsClientError(err) {
		t.Errorf("expected client error, got %v", err)
	}
}
