/*
store.go - Persistence interfaces between the engine and the database

PURPOSE:
  The engine is read-only over settings, rosters, and event logs, and
  read-write only over payroll rows. These interfaces keep that split
  explicit: CRUD collaborators mutate entities through their own surface,
  the engine only ever reads them as of calculation time.

KEY INTERFACES:
  SettingsStore: the single global settings row
  RosterStore:   coaches and students, including archived ones
  EventStore:    append-only transfer and renewal logs per student
  PayrollStore:  pending-row upserts and the paid transition
  TxPayrollStore: PayrollStore plus a transactional closure, so the
                  already-paid precondition check and the bulk update run in
                  ONE transaction

APPEND-ONLY CONTRACT:
  Transfer and renewal events have no update or delete operations anywhere.
  Historical reconstruction stays stable against later roster mutations
  because it is derived from whichever events existed at calculation time.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite store
  - payroll/store: in-memory store for tests

SEE ALSO:
  - engine.go: calculation over these interfaces
  - distribute.go: the atomic paid transition
*/
package payroll

import "context"

// =============================================================================
// READ-SIDE STORES - Inputs the engine never mutates
// =============================================================================

// SettingsStore provides the single settings row.
// Get returns (nil, nil) when no row exists; the engine turns that into
// ErrSettingsMissing rather than default-filling.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*Settings, error)
}

// RosterStore lists coaches and students. Both lists include archived
// entries: historical payroll must still see students later archived, and
// paid rows still reference coaches later deactivated.
type RosterStore interface {
	ListCoaches(ctx context.Context) ([]Coach, error)
	ListStudents(ctx context.Context) ([]Student, error)
}

// EventStore provides the append-only event logs per student.
type EventStore interface {
	// TransfersForStudent returns the student's transfer log, ascending by
	// transfer date.
	TransfersForStudent(ctx context.Context, id StudentID) ([]TransferEvent, error)

	// RenewalsForStudent returns the student's renewal log, ascending by
	// payment date.
	RenewalsForStudent(ctx context.Context, id StudentID) ([]RenewalEvent, error)
}

// =============================================================================
// PAYROLL STORE - The engine's only write surface
// =============================================================================

// PayrollStore persists computed rows. At most one row exists per
// (CoachID, PeriodMonth); implementations enforce this as a hard
// uniqueness constraint.
type PayrollStore interface {
	// RowsForPeriod returns every row for a period, any status.
	RowsForPeriod(ctx context.Context, periodMonth string) ([]PayrollRow, error)

	// UpsertPendingRow creates or replaces the pending row for the row's
	// (coach, period). It must refuse to touch a paid row: paid rows are
	// immutable, never recalculated or overwritten.
	UpsertPendingRow(ctx context.Context, row PayrollRow) error

	// MarkRowPaid transitions one pending row to paid, stamping the payment
	// date and payer identity. Fails if the row is missing or already paid.
	MarkRowPaid(ctx context.Context, rowID string, at Date, by string) error
}

// TxPayrollStore wraps PayrollStore with transaction support. Distribution
// runs its precondition check and bulk update inside one WithTx closure so
// two concurrent requests cannot both pass the check.
type TxPayrollStore interface {
	PayrollStore

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back and no row keeps a partial transition.
	WithTx(ctx context.Context, fn func(PayrollStore) error) error
}

// Store is the full surface the engine runs against.
type Store interface {
	SettingsStore
	RosterStore
	EventStore
	TxPayrollStore
}
