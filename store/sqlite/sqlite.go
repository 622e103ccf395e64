/*
Package sqlite provides the SQLite-backed implementation of the payroll
storage interfaces.

PURPOSE:
  Implements payroll.Store (settings, roster, event logs, payroll rows)
  using SQLite. The same patterns apply to PostgreSQL with minor dialect
  differences.

KEY TABLES:
  settings:        single global row (enforced by CHECK (id = 1))
  coaches:         roster, including archived entries
  students:        roster with package bounds, including archived entries
  transfer_events: append-only coach reassignment log
  renewal_events:  append-only package renewal log
  payroll_rows:    computed rows; UNIQUE(coach_id, period_month) is the
                   hard one-row-per-coach-per-period constraint

IMMUTABILITY ENFORCEMENT:
  - transfer_events and renewal_events have INSERT and SELECT only; no
    UPDATE or DELETE statements exist in this package
  - a paid payroll row is never updated: the pending upsert carries a
    `WHERE status = 'pending'` guard and the paid transition checks the
    previous status in its WHERE clause

CONCURRENCY:
  WAL mode plus a sync.RWMutex serializing writers. Distribution runs its
  precondition check and bulk update inside one WithTx transaction, so two
  concurrent distribution requests cannot both pass the check.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - payroll/store.go: interface definitions
  - payroll/store/memory.go: in-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/tutor-payroll/payroll"
)

// Store implements payroll.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Single global settings row
	CREATE TABLE IF NOT EXISTS settings (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		monthly_fee TEXT NOT NULL,
		base_days_divisor INTEGER NOT NULL,
		payment_day_of_month INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Coaches (roster, including archived)
	CREATE TABLE IF NOT EXISTS coaches (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	-- Students (roster, including archived)
	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		package_start TEXT NOT NULL,
		package_end TEXT NOT NULL,
		current_coach_id TEXT NOT NULL,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_students_coach
		ON students(current_coach_id);

	-- Transfer events (append-only)
	CREATE TABLE IF NOT EXISTS transfer_events (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		old_coach_id TEXT NOT NULL,
		new_coach_id TEXT NOT NULL,
		transfer_date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transfers_student_date
		ON transfer_events(student_id, transfer_date);

	-- Renewal events (append-only payment records)
	CREATE TABLE IF NOT EXISTS renewal_events (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		previous_end TEXT NOT NULL,
		new_end TEXT NOT NULL,
		duration_months INTEGER NOT NULL,
		amount TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_renewals_student_date
		ON renewal_events(student_id, payment_date);

	-- Payroll rows
	-- CRITICAL: one row per (coach_id, period_month), enforced here
	CREATE TABLE IF NOT EXISTS payroll_rows (
		id TEXT PRIMARY KEY,
		coach_id TEXT NOT NULL,
		period_month TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		student_count INTEGER NOT NULL,
		breakdown_json TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		paid_at TEXT,
		paid_by TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_payroll_rows_coach_period
		ON payroll_rows(coach_id, period_month);
	CREATE INDEX IF NOT EXISTS idx_payroll_rows_period
		ON payroll_rows(period_month);
	CREATE INDEX IF NOT EXISTS idx_payroll_rows_status
		ON payroll_rows(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

// =============================================================================
// SETTINGS (payroll.SettingsStore)
// =============================================================================

// GetSettings returns the settings row, or (nil, nil) when the environment
// bootstrap has not created one yet.
func (s *Store) GetSettings(ctx context.Context) (*payroll.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var fee string
	var settings payroll.Settings
	err := s.db.QueryRowContext(ctx,
		"SELECT monthly_fee, base_days_divisor, payment_day_of_month FROM settings WHERE id = 1",
	).Scan(&fee, &settings.BaseDaysDivisor, &settings.PaymentDayOfMonth)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	settings.MonthlyFee = payroll.MustParseMoney(fee)
	return &settings, nil
}

// PutSettings creates or replaces the single settings row.
func (s *Store) PutSettings(ctx context.Context, settings payroll.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO settings (id, monthly_fee, base_days_divisor, payment_day_of_month, updated_at)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			monthly_fee = excluded.monthly_fee,
			base_days_divisor = excluded.base_days_divisor,
			payment_day_of_month = excluded.payment_day_of_month,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		settings.MonthlyFee.String(),
		settings.BaseDaysDivisor,
		settings.PaymentDayOfMonth,
		now(),
	)
	return err
}

// =============================================================================
// COACHES (payroll.RosterStore)
// =============================================================================

// SaveCoach creates or updates a coach.
func (s *Store) SaveCoach(ctx context.Context, c payroll.Coach) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO coaches (id, name, is_active, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			is_active = excluded.is_active
	`

	_, err := s.db.ExecContext(ctx, query, c.ID, c.Name, c.IsActive, now())
	return err
}

// GetCoach retrieves a coach by ID; (nil, nil) when absent.
func (s *Store) GetCoach(ctx context.Context, id payroll.CoachID) (*payroll.Coach, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var c payroll.Coach
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, is_active FROM coaches WHERE id = ?", id,
	).Scan(&c.ID, &c.Name, &c.IsActive)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListCoaches returns all coaches, archived ones included.
func (s *Store) ListCoaches(ctx context.Context) ([]payroll.Coach, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, is_active FROM coaches ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var coaches []payroll.Coach
	for rows.Next() {
		var c payroll.Coach
		if err := rows.Scan(&c.ID, &c.Name, &c.IsActive); err != nil {
			return nil, err
		}
		coaches = append(coaches, c)
	}
	return coaches, rows.Err()
}

// =============================================================================
// STUDENTS (payroll.RosterStore)
// =============================================================================

// SaveStudent creates or updates a student. package_start is written once
// on insert and never moved afterwards; renewals only extend package_end.
func (s *Store) SaveStudent(ctx context.Context, st payroll.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO students (id, name, package_start, package_end, current_coach_id, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			package_end = excluded.package_end,
			current_coach_id = excluded.current_coach_id,
			is_active = excluded.is_active
	`

	_, err := s.db.ExecContext(ctx, query,
		st.ID, st.Name,
		st.PackageStart.String(),
		st.PackageEnd.String(),
		st.CurrentCoachID, st.IsActive, now(),
	)
	return err
}

// GetStudent retrieves a student by ID; (nil, nil) when absent.
func (s *Store) GetStudent(ctx context.Context, id payroll.StudentID) (*payroll.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := scanStudent(s.db.QueryRowContext(ctx,
		"SELECT id, name, package_start, package_end, current_coach_id, is_active FROM students WHERE id = ?", id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// ListStudents returns all students, archived ones included: historical
// payroll must still see students later archived.
func (s *Store) ListStudents(ctx context.Context) ([]payroll.Student, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, package_start, package_end, current_coach_id, is_active FROM students ORDER BY id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var students []payroll.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, err
		}
		students = append(students, *st)
	}
	return students, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(r rowScanner) (*payroll.Student, error) {
	var st payroll.Student
	var start, end string
	if err := r.Scan(&st.ID, &st.Name, &start, &end, &st.CurrentCoachID, &st.IsActive); err != nil {
		return nil, err
	}
	var err error
	if st.PackageStart, err = payroll.ParseDate(start); err != nil {
		return nil, err
	}
	if st.PackageEnd, err = payroll.ParseDate(end); err != nil {
		return nil, err
	}
	return &st, nil
}

// =============================================================================
// EVENT LOGS (payroll.EventStore) - INSERT and SELECT only
// =============================================================================

// AppendTransfer records a coach reassignment. Append-only.
func (s *Store) AppendTransfer(ctx context.Context, tr payroll.TransferEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfer_events (id, student_id, old_coach_id, new_coach_id, transfer_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tr.ID, tr.StudentID, tr.OldCoachID, tr.NewCoachID,
		tr.TransferDate.String(), now(),
	)
	return err
}

// AppendRenewal records a package renewal payment. Append-only.
func (s *Store) AppendRenewal(ctx context.Context, r payroll.RenewalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO renewal_events (id, student_id, payment_date, previous_end, new_end, duration_months, amount, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StudentID,
		r.PaymentDate.String(), r.PreviousEnd.String(), r.NewEnd.String(),
		r.DurationMonths, r.Amount.String(), now(),
	)
	return err
}

// TransfersForStudent returns the student's transfer log, ascending by date.
func (s *Store) TransfersForStudent(ctx context.Context, id payroll.StudentID) ([]payroll.TransferEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, old_coach_id, new_coach_id, transfer_date
		FROM transfer_events
		WHERE student_id = ?
		ORDER BY transfer_date ASC, created_at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []payroll.TransferEvent
	for rows.Next() {
		var tr payroll.TransferEvent
		var date string
		if err := rows.Scan(&tr.ID, &tr.StudentID, &tr.OldCoachID, &tr.NewCoachID, &date); err != nil {
			return nil, err
		}
		if tr.TransferDate, err = payroll.ParseDate(date); err != nil {
			return nil, err
		}
		events = append(events, tr)
	}
	return events, rows.Err()
}

// RenewalsForStudent returns the student's renewal log, ascending by
// payment date.
func (s *Store) RenewalsForStudent(ctx context.Context, id payroll.StudentID) ([]payroll.RenewalEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, student_id, payment_date, previous_end, new_end, duration_months, amount
		FROM renewal_events
		WHERE student_id = ?
		ORDER BY payment_date ASC, created_at ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []payroll.RenewalEvent
	for rows.Next() {
		var r payroll.RenewalEvent
		var payment, prevEnd, newEnd, amount string
		if err := rows.Scan(&r.ID, &r.StudentID, &payment, &prevEnd, &newEnd, &r.DurationMonths, &amount); err != nil {
			return nil, err
		}
		if r.PaymentDate, err = payroll.ParseDate(payment); err != nil {
			return nil, err
		}
		if r.PreviousEnd, err = payroll.ParseDate(prevEnd); err != nil {
			return nil, err
		}
		if r.NewEnd, err = payroll.ParseDate(newEnd); err != nil {
			return nil, err
		}
		r.Amount = payroll.MustParseMoney(amount)
		events = append(events, r)
	}
	return events, rows.Err()
}

// =============================================================================
// PAYROLL ROWS (payroll.PayrollStore)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	execer
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// RowsForPeriod returns every row for a period, any status.
func (s *Store) RowsForPeriod(ctx context.Context, periodMonth string) ([]payroll.PayrollRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return rowsForPeriod(ctx, s.db, periodMonth)
}

func rowsForPeriod(ctx context.Context, db querier, periodMonth string) ([]payroll.PayrollRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, coach_id, period_month, total_amount, student_count, breakdown_json, status, paid_at, paid_by
		FROM payroll_rows
		WHERE period_month = ?
		ORDER BY coach_id ASC`, periodMonth)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []payroll.PayrollRow
	for rows.Next() {
		row, err := scanPayrollRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

func scanPayrollRow(rows *sql.Rows) (payroll.PayrollRow, error) {
	var (
		row            payroll.PayrollRow
		total, status  string
		breakdownJSON  string
		paidAt, paidBy sql.NullString
	)

	err := rows.Scan(&row.ID, &row.CoachID, &row.PeriodMonth, &total,
		&row.StudentCount, &breakdownJSON, &status, &paidAt, &paidBy)
	if err != nil {
		return row, fmt.Errorf("failed to scan payroll row: %w", err)
	}

	row.TotalAmount = payroll.MustParseMoney(total)
	if row.Breakdown, err = decodeBreakdown(breakdownJSON); err != nil {
		return row, err
	}

	if status == "paid" && paidAt.Valid {
		at, err := payroll.ParseDate(paidAt.String)
		if err != nil {
			return row, err
		}
		row.Status = payroll.StatusPaid(at, paidBy.String)
	} else {
		row.Status = payroll.StatusPending()
	}

	return row, nil
}

// UpsertPendingRow creates or replaces the pending row for the row's
// (coach, period). The conflict update carries a status guard: if the
// existing row is paid, no write happens and the conflict is reported.
func (s *Store) UpsertPendingRow(ctx context.Context, row payroll.PayrollRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertPendingRow(ctx, s.db, row)
}

func upsertPendingRow(ctx context.Context, db execer, row payroll.PayrollRow) error {
	breakdownJSON, err := encodeBreakdown(row.Breakdown)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO payroll_rows (id, coach_id, period_month, total_amount, student_count, breakdown_json, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 'pending', ?)
		ON CONFLICT(coach_id, period_month) DO UPDATE SET
			total_amount = excluded.total_amount,
			student_count = excluded.student_count,
			breakdown_json = excluded.breakdown_json,
			updated_at = excluded.updated_at
		WHERE payroll_rows.status = 'pending'
	`

	res, err := db.ExecContext(ctx, query,
		row.ID, row.CoachID, row.PeriodMonth,
		row.TotalAmount.String(), row.StudentCount, breakdownJSON, now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert payroll row: %w", err)
	}

	// The guarded upsert silently skips paid rows; surface that as the
	// conflict it is.
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return &payroll.PeriodPaidError{PeriodMonth: row.PeriodMonth, CoachID: row.CoachID}
	}
	return nil
}

// MarkRowPaid transitions one pending row to paid. The previous status is
// part of the WHERE clause, so a repeated transition affects zero rows and
// fails instead of double-paying.
func (s *Store) MarkRowPaid(ctx context.Context, rowID string, at payroll.Date, by string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return markRowPaid(ctx, s.db, rowID, at, by)
}

func markRowPaid(ctx context.Context, db execer, rowID string, at payroll.Date, by string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE payroll_rows
		SET status = 'paid', paid_at = ?, paid_by = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		at.String(), by, now(), rowID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark row paid: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != 1 {
		return fmt.Errorf("%w: row %s missing or not pending", payroll.ErrDistributionFailed, rowID)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS (payroll.TxPayrollStore)
// =============================================================================

// WithTx executes fn within a database transaction. The mutex is held for
// the whole closure, so a distribution's precondition check and bulk update
// cannot interleave with a second distribution request.
func (s *Store) WithTx(ctx context.Context, fn func(payroll.PayrollStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) RowsForPeriod(ctx context.Context, periodMonth string) ([]payroll.PayrollRow, error) {
	return rowsForPeriod(ctx, ts.tx, periodMonth)
}

func (ts *txStore) UpsertPendingRow(ctx context.Context, row payroll.PayrollRow) error {
	return upsertPendingRow(ctx, ts.tx, row)
}

func (ts *txStore) MarkRowPaid(ctx context.Context, rowID string, at payroll.Date, by string) error {
	return markRowPaid(ctx, ts.tx, rowID, at, by)
}

// =============================================================================
// BREAKDOWN CODEC - JSON storage format for breakdown lines
// =============================================================================

type subPeriodJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

type breakdownLineJSON struct {
	StudentID  string          `json:"student_id"`
	Amount     string          `json:"amount"`
	DaysWorked int             `json:"days_worked"`
	SubPeriods []subPeriodJSON `json:"sub_periods"`
	HasGaps    bool            `json:"has_gaps"`
}

func encodeBreakdown(lines []payroll.BreakdownLine) (string, error) {
	encoded := make([]breakdownLineJSON, len(lines))
	for i, line := range lines {
		subs := make([]subPeriodJSON, len(line.SubPeriods))
		for j, sp := range line.SubPeriods {
			subs[j] = subPeriodJSON{
				Start: sp.Range.Start.String(),
				End:   sp.Range.End.String(),
				Days:  sp.Days,
			}
		}
		encoded[i] = breakdownLineJSON{
			StudentID:  string(line.StudentID),
			Amount:     line.Amount.String(),
			DaysWorked: line.DaysWorked,
			SubPeriods: subs,
			HasGaps:    line.HasGaps,
		}
	}

	data, err := json.Marshal(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to encode breakdown: %w", err)
	}
	return string(data), nil
}

func decodeBreakdown(data string) ([]payroll.BreakdownLine, error) {
	if strings.TrimSpace(data) == "" {
		return nil, nil
	}

	var encoded []breakdownLineJSON
	if err := json.Unmarshal([]byte(data), &encoded); err != nil {
		return nil, fmt.Errorf("failed to decode breakdown: %w", err)
	}

	lines := make([]payroll.BreakdownLine, len(encoded))
	for i, e := range encoded {
		subs := make([]payroll.SubPeriod, len(e.SubPeriods))
		for j, sp := range e.SubPeriods {
			start, err := payroll.ParseDate(sp.Start)
			if err != nil {
				return nil, err
			}
			end, err := payroll.ParseDate(sp.End)
			if err != nil {
				return nil, err
			}
			subs[j] = payroll.SubPeriod{
				Range: payroll.DateRange{Start: start, End: end},
				Days:  sp.Days,
			}
		}
		lines[i] = payroll.BreakdownLine{
			StudentID:  payroll.StudentID(e.StudentID),
			Amount:     payroll.MustParseMoney(e.Amount),
			DaysWorked: e.DaysWorked,
			SubPeriods: subs,
			HasGaps:    e.HasGaps,
		}
	}
	return lines, nil
}
