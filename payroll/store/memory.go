// Package store provides an in-memory payroll.Store implementation for
// tests and development.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/warp/tutor-payroll/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu        sync.RWMutex
	settings  *payroll.Settings
	coaches   map[payroll.CoachID]payroll.Coach
	students  map[payroll.StudentID]payroll.Student
	transfers map[payroll.StudentID][]payroll.TransferEvent
	renewals  map[payroll.StudentID][]payroll.RenewalEvent
	rows      map[string]payroll.PayrollRow
}

func NewMemory() *Memory {
	return &Memory{
		coaches:   make(map[payroll.CoachID]payroll.Coach),
		students:  make(map[payroll.StudentID]payroll.Student),
		transfers: make(map[payroll.StudentID][]payroll.TransferEvent),
		renewals:  make(map[payroll.StudentID][]payroll.RenewalEvent),
		rows:      make(map[string]payroll.PayrollRow),
	}
}

// =============================================================================
// SETTINGS
// =============================================================================

func (m *Memory) GetSettings(_ context.Context) (*payroll.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return nil, nil
	}
	s := *m.settings
	return &s, nil
}

func (m *Memory) PutSettings(_ context.Context, s payroll.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = &s
	return nil
}

// =============================================================================
// ROSTER
// =============================================================================

func (m *Memory) SaveCoach(_ context.Context, c payroll.Coach) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.coaches[c.ID] = c
	return nil
}

func (m *Memory) GetCoach(_ context.Context, id payroll.CoachID) (*payroll.Coach, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.coaches[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *Memory) ListCoaches(_ context.Context) ([]payroll.Coach, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coaches := make([]payroll.Coach, 0, len(m.coaches))
	for _, c := range m.coaches {
		coaches = append(coaches, c)
	}
	sort.Slice(coaches, func(i, j int) bool { return coaches[i].ID < coaches[j].ID })
	return coaches, nil
}

func (m *Memory) SaveStudent(_ context.Context, s payroll.Student) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.students[s.ID] = s
	return nil
}

func (m *Memory) GetStudent(_ context.Context, id payroll.StudentID) (*payroll.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.students[id]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *Memory) ListStudents(_ context.Context) ([]payroll.Student, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	students := make([]payroll.Student, 0, len(m.students))
	for _, s := range m.students {
		students = append(students, s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

// =============================================================================
// EVENT LOGS - Append-only; kept sorted on insert
// =============================================================================

func (m *Memory) AppendTransfer(_ context.Context, tr payroll.TransferEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := m.transfers[tr.StudentID]
	i := sort.Search(len(events), func(i int) bool {
		return events[i].TransferDate.After(tr.TransferDate)
	})
	events = append(events, payroll.TransferEvent{})
	copy(events[i+1:], events[i:])
	events[i] = tr
	m.transfers[tr.StudentID] = events
	return nil
}

func (m *Memory) AppendRenewal(_ context.Context, r payroll.RenewalEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := m.renewals[r.StudentID]
	i := sort.Search(len(events), func(i int) bool {
		return events[i].PaymentDate.After(r.PaymentDate)
	})
	events = append(events, payroll.RenewalEvent{})
	copy(events[i+1:], events[i:])
	events[i] = r
	m.renewals[r.StudentID] = events
	return nil
}

func (m *Memory) TransfersForStudent(_ context.Context, id payroll.StudentID) ([]payroll.TransferEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]payroll.TransferEvent, len(m.transfers[id]))
	copy(result, m.transfers[id])
	return result, nil
}

func (m *Memory) RenewalsForStudent(_ context.Context, id payroll.StudentID) ([]payroll.RenewalEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]payroll.RenewalEvent, len(m.renewals[id]))
	copy(result, m.renewals[id])
	return result, nil
}

// =============================================================================
// PAYROLL ROWS
// =============================================================================

func (m *Memory) RowsForPeriod(_ context.Context, periodMonth string) ([]payroll.PayrollRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rowsForPeriodLocked(periodMonth), nil
}

func (m *Memory) rowsForPeriodLocked(periodMonth string) []payroll.PayrollRow {
	var rows []payroll.PayrollRow
	for _, row := range m.rows {
		if row.PeriodMonth == periodMonth {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CoachID < rows[j].CoachID })
	return rows
}

func (m *Memory) UpsertPendingRow(_ context.Context, row payroll.PayrollRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsertPendingLocked(row)
}

func (m *Memory) upsertPendingLocked(row payroll.PayrollRow) error {
	// One row per (coach, period): replace by the same key, but a paid row
	// is immutable.
	for id, existing := range m.rows {
		if existing.CoachID == row.CoachID && existing.PeriodMonth == row.PeriodMonth {
			if existing.Status.IsPaid() {
				return &payroll.PeriodPaidError{PeriodMonth: row.PeriodMonth, CoachID: row.CoachID}
			}
			delete(m.rows, id)
		}
	}
	m.rows[row.ID] = row
	return nil
}

func (m *Memory) MarkRowPaid(_ context.Context, rowID string, at payroll.Date, by string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markPaidLocked(rowID, at, by)
}

func (m *Memory) markPaidLocked(rowID string, at payroll.Date, by string) error {
	row, ok := m.rows[rowID]
	if !ok {
		return payroll.ErrDistributionFailed
	}
	if err := row.MarkPaid(at, by); err != nil {
		return err
	}
	m.rows[rowID] = row
	return nil
}

// =============================================================================
// TRANSACTIONS - Snapshot + rollback on error
// =============================================================================

// WithTx executes fn against a transactional view. For the memory store
// this is simulated by snapshotting the payroll rows (the only state a
// transaction mutates) and restoring them if fn fails.
func (m *Memory) WithTx(ctx context.Context, fn func(payroll.PayrollStore) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := make(map[string]payroll.PayrollRow, len(m.rows))
	for id, row := range m.rows {
		snapshot[id] = row
	}

	if err := fn(&txView{parent: m}); err != nil {
		m.rows = snapshot
		return err
	}
	return nil
}

// txView routes PayrollStore calls to the already-locked parent.
type txView struct {
	parent *Memory
}

func (tv *txView) RowsForPeriod(_ context.Context, periodMonth string) ([]payroll.PayrollRow, error) {
	return tv.parent.rowsForPeriodLocked(periodMonth), nil
}

func (tv *txView) UpsertPendingRow(_ context.Context, row payroll.PayrollRow) error {
	return tv.parent.upsertPendingLocked(row)
}

func (tv *txView) MarkRowPaid(_ context.Context, rowID string, at payroll.Date, by string) error {
	return tv.parent.markPaidLocked(rowID, at, by)
}
