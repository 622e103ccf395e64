/*
engine.go - Payroll aggregation and the engine contract

PURPOSE:
  Combines the two interval-splitting passes per student (active periods x
  ownership timeline), converts coach-attributed day ranges into money using
  the daily-rate formula, and upserts one pending row per coach for the
  period.

ROUNDING POLICY:
  dailyRate = monthlyFee / baseDaysDivisor, exact decimal division.
  Intermediate sums accumulate un-rounded; a breakdown line's amount is
  rounded to 2 decimals once, when the line is produced. A row's total is
  the sum of its rounded line amounts, so every stored row is internally
  consistent with its own breakdown.

GHOST COACHES:
  Every active coach receives a row, even with zero students: a missing row
  is indistinguishable from a calculation failure to downstream consumers.
  Inactive coaches receive a row only when the transfer history actually
  attributes days to them this cycle.

IDEMPOTENCY:
  Calculate is a pure read-then-compute-then-upsert: re-running it for a
  pending period recomputes identical rows (deterministic IDs and ordering).
  Rows already paid are returned unchanged and never overwritten.

SEE ALSO:
  - ownership.go, active.go: the two splitting passes
  - distribute.go: the paid transition
*/
package payroll

import (
	"context"
	"fmt"
	"sort"
)

// Engine is the payroll calculation engine. It is stateless between calls;
// every operation runs to completion synchronously against the store.
type Engine struct {
	store Store
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store}
}

// =============================================================================
// CALCULATE - Upsert pending rows for a period
// =============================================================================

// Calculate computes payroll for a period and upserts the pending rows.
// Rows already paid are skipped and returned unchanged. The returned slice
// is ordered by coach id; breakdown lines by student id.
func (e *Engine) Calculate(ctx context.Context, periodMonth string) ([]PayrollRow, error) {
	settings, err := e.settings(ctx)
	if err != nil {
		return nil, err
	}

	cycle, err := ResolveCycle(periodMonth, settings.PaymentDayOfMonth)
	if err != nil {
		return nil, err
	}

	coaches, err := e.store.ListCoaches(ctx)
	if err != nil {
		return nil, err
	}
	students, err := e.store.ListStudents(ctx)
	if err != nil {
		return nil, err
	}

	lines, err := e.accumulate(ctx, settings, cycle, students)
	if err != nil {
		return nil, err
	}

	rows := buildRows(cycle.PeriodMonth, coaches, lines)

	// Never overwrite a paid row: keep the stored one, upsert the rest.
	existing, err := e.store.RowsForPeriod(ctx, periodMonth)
	if err != nil {
		return nil, err
	}
	paid := make(map[CoachID]PayrollRow)
	for _, row := range existing {
		if row.Status.IsPaid() {
			paid[row.CoachID] = row
		}
	}

	for i, row := range rows {
		if frozen, ok := paid[row.CoachID]; ok {
			rows[i] = frozen
			continue
		}
		if err := e.store.UpsertPendingRow(ctx, row); err != nil {
			return nil, err
		}
	}

	return rows, nil
}

// IsPeriodLocked reports whether any row for the period is already paid.
func (e *Engine) IsPeriodLocked(ctx context.Context, periodMonth string) (bool, error) {
	if _, _, err := ParsePeriod(periodMonth); err != nil {
		return false, err
	}
	rows, err := e.store.RowsForPeriod(ctx, periodMonth)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		if row.Status.IsPaid() {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) settings(ctx context.Context) (*Settings, error) {
	settings, err := e.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, ErrSettingsMissing
	}
	return settings, nil
}

// =============================================================================
// ACCUMULATION - (coach, student) line building
// =============================================================================

type lineKey struct {
	Coach   CoachID
	Student StudentID
}

// lineAccum accumulates one (student, coach) pair's intervals un-rounded.
type lineAccum struct {
	days       int
	raw        Money
	subPeriods []SubPeriod
	hasGaps    bool
}

func (e *Engine) accumulate(ctx context.Context, settings *Settings, cycle Cycle, students []Student) (map[lineKey]*lineAccum, error) {
	dailyRate := settings.DailyRate()
	lines := make(map[lineKey]*lineAccum)

	for _, student := range students {
		renewals, err := e.store.RenewalsForStudent(ctx, student.ID)
		if err != nil {
			return nil, err
		}

		actives := ActivePeriods(student, cycle, renewals)
		if len(actives) == 0 {
			// Inactive for the whole cycle: contributes nothing, not an error.
			continue
		}

		transfers, err := e.store.TransfersForStudent(ctx, student.ID)
		if err != nil {
			return nil, err
		}

		hasGaps := HasGapInCycle(cycle, renewals)

		for _, sub := range actives {
			for _, iv := range OwnershipTimeline(sub, student.CurrentCoachID, transfers) {
				days := iv.Range.Days()
				key := lineKey{Coach: iv.CoachID, Student: student.ID}
				acc := lines[key]
				if acc == nil {
					acc = &lineAccum{}
					lines[key] = acc
				}
				acc.days += days
				acc.raw = acc.raw.Add(dailyRate.MulDays(days))
				acc.subPeriods = append(acc.subPeriods, SubPeriod{Range: iv.Range, Days: days})
				acc.hasGaps = acc.hasGaps || hasGaps
			}
		}
	}

	return lines, nil
}

// buildRows turns accumulated lines into one row per coach, adding a zero
// row for every active coach the accumulation never touched.
func buildRows(periodMonth string, coaches []Coach, lines map[lineKey]*lineAccum) []PayrollRow {
	byCoach := make(map[CoachID][]BreakdownLine)
	for key, acc := range lines {
		sort.Slice(acc.subPeriods, func(i, j int) bool {
			return acc.subPeriods[i].Range.Start.Before(acc.subPeriods[j].Range.Start)
		})
		byCoach[key.Coach] = append(byCoach[key.Coach], BreakdownLine{
			StudentID:  key.Student,
			Amount:     acc.raw.Round(),
			DaysWorked: acc.days,
			SubPeriods: acc.subPeriods,
			HasGaps:    acc.hasGaps,
		})
	}

	// Active coaches always get a row; earning coaches get one regardless.
	coachSet := make(map[CoachID]bool)
	for _, c := range coaches {
		if c.IsActive {
			coachSet[c.ID] = true
		}
	}
	for id := range byCoach {
		coachSet[id] = true
	}

	rows := make([]PayrollRow, 0, len(coachSet))
	for coachID := range coachSet {
		coachLines := byCoach[coachID]
		sort.Slice(coachLines, func(i, j int) bool {
			return coachLines[i].StudentID < coachLines[j].StudentID
		})

		total := ZeroMoney()
		for _, line := range coachLines {
			total = total.Add(line.Amount)
		}

		rows = append(rows, PayrollRow{
			ID:           rowID(periodMonth, coachID),
			CoachID:      coachID,
			PeriodMonth:  periodMonth,
			TotalAmount:  total.Round(),
			StudentCount: len(coachLines),
			Breakdown:    coachLines,
			Status:       StatusPending(),
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].CoachID < rows[j].CoachID })
	return rows
}

// rowID is deterministic so recomputing a pending period is a true no-op:
// same inputs, byte-identical rows.
func rowID(periodMonth string, coachID CoachID) string {
	return fmt.Sprintf("%s:%s", periodMonth, coachID)
}
