/*
distribute.go - The atomic paid transition for a period

PURPOSE:
  Commits a period's computed payroll as a single atomic operation. The
  state machine per (coach, period) row is pending -> paid, terminal: no
  reverse transition and no recalculation once paid.

CONCURRENCY:
  The only hazard in the system is two simultaneous distribution requests
  for the same period (a duplicate submit). Both the already-paid
  precondition check and the bulk update run inside one store transaction;
  a second request either sees the first one's committed rows and gets the
  conflict, or is serialized behind it.

FAILURE MODES:
  - Any row already paid: conflict (ErrPeriodPaid), nothing mutated.
  - Any row fails to transition: full rollback (ErrDistributionFailed),
    no row left paid.
  - Zero pending rows: success with zero processed. An empty period is not
    a failure.
*/
package payroll

import "context"

// Distribute transitions every pending row for the period to paid,
// stamping the payment date and payer identity. All-or-nothing.
func (e *Engine) Distribute(ctx context.Context, periodMonth, paidBy string) (*DistributionResult, error) {
	if _, _, err := ParsePeriod(periodMonth); err != nil {
		return nil, err
	}

	var result *DistributionResult
	err := e.store.WithTx(ctx, func(ps PayrollStore) error {
		rows, err := ps.RowsForPeriod(ctx, periodMonth)
		if err != nil {
			return err
		}

		// Precondition inside the transaction: a period is paid atomically,
		// never partially re-attempted.
		for _, row := range rows {
			if row.Status.IsPaid() {
				return &PeriodPaidError{PeriodMonth: periodMonth, CoachID: row.CoachID}
			}
		}

		paidAt := Today()
		total := ZeroMoney()
		var details []DistributionDetail

		for _, row := range rows {
			if err := ps.MarkRowPaid(ctx, row.ID, paidAt, paidBy); err != nil {
				return &DistributionError{PeriodMonth: periodMonth, CoachID: row.CoachID, Cause: err}
			}
			total = total.Add(row.TotalAmount)
			details = append(details, DistributionDetail{CoachID: row.CoachID, Amount: row.TotalAmount})
		}

		result = &DistributionResult{
			PeriodMonth:    periodMonth,
			ProcessedCount: len(rows),
			TotalAmount:    total.Round(),
			Details:        details,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
