/*
Package payroll implements the prorated payroll engine for a tutoring
business.

PURPOSE:
  Given a payment cycle window, the students active during it, the history
  of coach reassignments, and the history of package renewals (which may
  contain a lapse between expiry and renewal), compute exactly how much each
  coach is owed for the cycle, split day by day across coach ownership
  periods, and commit the result as a single atomic "paid" transition.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money: decimal currency amount (never float)
  - Settings: monthly fee, base-days divisor, payment day of month
  - Coach/Student: roster entities; the student's current coach is a cached
    projection, never the source of truth for past periods
  - TransferEvent/RenewalEvent: immutable, append-only, time-ordered records
  - PayrollRow/BreakdownLine: the computed output, one row per coach+period

DESIGN PRINCIPLES:
  1. Events are the log: historical ownership is reconstructed from the
     transfer log, not from the current foreign key
  2. Precision: decimal.Decimal everywhere; rounding happens once, at the
     point a breakdown line is produced
  3. One-way latch: a row goes pending -> paid and never back
  4. Explicit zeros: a coach with no students still gets a 0.00 row, so
     omission stays distinguishable from failure

SEE ALSO:
  - cycle.go: payment-cycle window resolution
  - ownership.go: coach ownership timeline reconstruction
  - active.go: gap-aware active-period splitting
  - engine.go: aggregation and the engine contract
  - distribute.go: the atomic paid transition
*/
package payroll

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// MONEY - Decimal currency amount
// =============================================================================

// Money is a currency amount. The engine keeps Money un-rounded through all
// intermediate sums and rounds to 2 decimal places only when a value is
// stored or displayed.
type Money struct {
	Value decimal.Decimal
}

func NewMoney(value float64) Money          { return Money{Value: decimal.NewFromFloat(value)} }
func NewMoneyFromInt(value int) Money       { return Money{Value: decimal.NewFromInt(int64(value))} }
func ZeroMoney() Money                      { return Money{Value: decimal.Zero} }

// MustParseMoney parses a decimal string, returning zero on malformed input.
func MustParseMoney(s string) Money {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return ZeroMoney()
	}
	return Money{Value: d}
}

func (m Money) Add(other Money) Money          { return Money{Value: m.Value.Add(other.Value)} }
func (m Money) Sub(other Money) Money          { return Money{Value: m.Value.Sub(other.Value)} }
func (m Money) Mul(s decimal.Decimal) Money    { return Money{Value: m.Value.Mul(s)} }
func (m Money) Div(s decimal.Decimal) Money    { return Money{Value: m.Value.Div(s)} }
func (m Money) MulDays(days int) Money         { return m.Mul(decimal.NewFromInt(int64(days))) }
func (m Money) IsZero() bool                   { return m.Value.IsZero() }
func (m Money) Equal(other Money) bool         { return m.Value.Equal(other.Value) }

// Round returns the amount rounded half-up to 2 decimal places.
func (m Money) Round() Money { return Money{Value: m.Value.Round(2)} }

// String renders with exactly 2 decimal places ("0.00", "1100.00").
func (m Money) String() string { return m.Value.StringFixed(2) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CoachID string
type StudentID string

// =============================================================================
// SETTINGS - Single global row, supplied by the admin surface
// =============================================================================

// Settings holds the calculation inputs. The engine reads them, never
// mutates them, and treats a missing settings row as fatal: silently
// default-filling a fee or divisor would corrupt every row it touches.
type Settings struct {
	MonthlyFee        Money
	BaseDaysDivisor   int // 28..31; divisor for the daily rate
	PaymentDayOfMonth int // 1..31; clamped to short months per cycle
}

// DailyRate returns monthlyFee / baseDaysDivisor as an exact decimal.
// No truncation: 1100/31 stays 35.4838... until a line is rounded.
func (s Settings) DailyRate() Money {
	return s.MonthlyFee.Div(decimal.NewFromInt(int64(s.BaseDaysDivisor)))
}

// =============================================================================
// ROSTER ENTITIES
// =============================================================================

// Coach is a roster entry. Current student assignments hang off students;
// historical ownership is always reconstructed from transfer events.
type Coach struct {
	ID       CoachID
	Name     string
	IsActive bool
}

// Student carries the package bounds the engine clamps work windows to.
// PackageStart is immutable once set: renewals only ever move PackageEnd
// forward, and archival moves PackageEnd to the leave date.
type Student struct {
	ID             StudentID
	Name           string
	PackageStart   Date
	PackageEnd     Date
	CurrentCoachID CoachID
	IsActive       bool
}

// =============================================================================
// EVENTS - Immutable, append-only, time-ordered
// =============================================================================

// TransferEvent records an instantaneous reassignment: the new coach owns
// the student from TransferDate inclusive, the old coach through the day
// before.
type TransferEvent struct {
	ID           string
	StudentID    StudentID
	OldCoachID   CoachID
	NewCoachID   CoachID
	TransferDate Date
}

// RenewalEvent is a payment record extending a student's package.
// A gap exists iff PreviousEnd < PaymentDate: the package lapsed before
// being renewed, and no coach is compensated for [PreviousEnd, PaymentDate).
type RenewalEvent struct {
	ID             string
	StudentID      StudentID
	PaymentDate    Date
	PreviousEnd    Date
	NewEnd         Date
	DurationMonths int
	Amount         Money
}

// HasGap reports whether this renewal left a lapse before taking effect.
func (r RenewalEvent) HasGap() bool { return r.PreviousEnd.Before(r.PaymentDate) }

// =============================================================================
// ROW STATUS - One-way latch: pending -> paid, never back
// =============================================================================

// RowStatus is a tagged state rather than a free-form string, so an illegal
// backward transition has no representation: the only way to construct a
// paid status is through MarkPaid, and nothing turns a paid status back
// into pending.
type RowStatus struct {
	paid   bool
	paidAt Date
	paidBy string
}

// StatusPending is the zero-value status of a freshly computed row.
func StatusPending() RowStatus { return RowStatus{} }

// StatusPaid reconstructs a paid status, e.g. when loading from storage.
func StatusPaid(at Date, by string) RowStatus {
	return RowStatus{paid: true, paidAt: at, paidBy: by}
}

func (s RowStatus) IsPaid() bool { return s.paid }

// PaidInfo returns the payment stamp; ok is false while pending.
func (s RowStatus) PaidInfo() (at Date, by string, ok bool) {
	return s.paidAt, s.paidBy, s.paid
}

func (s RowStatus) String() string {
	if s.paid {
		return "paid"
	}
	return "pending"
}

// =============================================================================
// PAYROLL OUTPUT - One row per (coach, period), lines per student
// =============================================================================

// SubPeriod is one coach-attributed date range inside a breakdown line,
// kept for auditability after merging.
type SubPeriod struct {
	Range DateRange
	Days  int
}

// BreakdownLine is one student's contribution to a coach's row. Multiple
// ownership intervals for the same (student, coach) pair within a period
// merge into a single line: days and amounts sum, sub-period ranges append.
type BreakdownLine struct {
	StudentID  StudentID
	Amount     Money // rounded to 2 decimals at production time
	DaysWorked int
	SubPeriods []SubPeriod
	HasGaps    bool
}

// PayrollRow is the unit of payment: at most one row exists per
// (CoachID, PeriodMonth), and once paid it is immutable.
type PayrollRow struct {
	ID           string
	CoachID      CoachID
	PeriodMonth  string // "YYYY-MM"
	TotalAmount  Money
	StudentCount int
	Breakdown    []BreakdownLine
	Status       RowStatus
}

// MarkPaid transitions the row to paid, stamping timestamp and payer.
// It is the latch: marking an already-paid row fails.
func (r *PayrollRow) MarkPaid(at Date, by string) error {
	if r.Status.IsPaid() {
		return &PeriodPaidError{PeriodMonth: r.PeriodMonth, CoachID: r.CoachID}
	}
	r.Status = StatusPaid(at, by)
	return nil
}

// DistributionResult reports what a distribution run actually transitioned.
type DistributionResult struct {
	PeriodMonth    string
	ProcessedCount int
	TotalAmount    Money
	Details        []DistributionDetail
}

// DistributionDetail is one row's slice of the distribution.
type DistributionDetail struct {
	CoachID CoachID
	Amount  Money
}
