/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry go-playground/validator struct tags; handlers run
  them through a shared Validate instance before touching the store.
  DTOs stay pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/tutor-payroll/payroll"
)

// =============================================================================
// SETTINGS
// =============================================================================

// SettingsDTO represents the global settings row.
type SettingsDTO struct {
	MonthlyFee        string `json:"monthly_fee"`
	BaseDaysDivisor   int    `json:"base_days_divisor"`
	PaymentDayOfMonth int    `json:"payment_day_of_month"`
}

// UpdateSettingsRequest replaces the settings row.
type UpdateSettingsRequest struct {
	MonthlyFee        string `json:"monthly_fee" validate:"required"`
	BaseDaysDivisor   int    `json:"base_days_divisor" validate:"required,min=28,max=31"`
	PaymentDayOfMonth int    `json:"payment_day_of_month" validate:"required,min=1,max=31"`
}

// =============================================================================
// ROSTER
// =============================================================================

// CoachDTO represents a coach in API responses.
type CoachDTO struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// CreateCoachRequest creates a coach; the ID is generated when omitted.
type CreateCoachRequest struct {
	ID   string `json:"id" validate:"omitempty,max=64"`
	Name string `json:"name" validate:"required,max=128"`
}

// StudentDTO represents a student in API responses.
type StudentDTO struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	PackageStart   string `json:"package_start"`
	PackageEnd     string `json:"package_end"`
	CurrentCoachID string `json:"current_coach_id"`
	IsActive       bool   `json:"is_active"`
}

// CreateStudentRequest creates a student with its initial package bounds.
type CreateStudentRequest struct {
	ID           string `json:"id" validate:"omitempty,max=64"`
	Name         string `json:"name" validate:"required,max=128"`
	PackageStart string `json:"package_start" validate:"required,datetime=2006-01-02"`
	PackageEnd   string `json:"package_end" validate:"required,datetime=2006-01-02"`
	CoachID      string `json:"coach_id" validate:"required"`
}

// ArchiveStudentRequest archives a student as of a leave date. The leave
// date becomes the package end, stopping all future accrual.
type ArchiveStudentRequest struct {
	LeaveDate string `json:"leave_date" validate:"required,datetime=2006-01-02"`
}

// =============================================================================
// EVENTS
// =============================================================================

// CreateTransferRequest reassigns a student to a new coach from the
// transfer date inclusive. The old coach is the student's current one.
type CreateTransferRequest struct {
	NewCoachID   string `json:"new_coach_id" validate:"required"`
	TransferDate string `json:"transfer_date" validate:"required,datetime=2006-01-02"`
}

// TransferDTO represents a transfer event in API responses.
type TransferDTO struct {
	ID           string `json:"id"`
	StudentID    string `json:"student_id"`
	OldCoachID   string `json:"old_coach_id"`
	NewCoachID   string `json:"new_coach_id"`
	TransferDate string `json:"transfer_date"`
}

// CreateRenewalRequest records a renewal payment. A payment date after the
// current package end leaves a gap that no coach is compensated for.
type CreateRenewalRequest struct {
	PaymentDate    string `json:"payment_date" validate:"required,datetime=2006-01-02"`
	DurationMonths int    `json:"duration_months" validate:"required,min=1,max=36"`
	Amount         string `json:"amount" validate:"required"`
}

// RenewalDTO represents a renewal event in API responses.
type RenewalDTO struct {
	ID             string `json:"id"`
	StudentID      string `json:"student_id"`
	PaymentDate    string `json:"payment_date"`
	PreviousEnd    string `json:"previous_end"`
	NewEnd         string `json:"new_end"`
	DurationMonths int    `json:"duration_months"`
	Amount         string `json:"amount"`
	HasGap         bool   `json:"has_gap"`
}

// =============================================================================
// PAYROLL
// =============================================================================

// SubPeriodDTO is one audited date range inside a breakdown line.
type SubPeriodDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Days  int    `json:"days"`
}

// BreakdownLineDTO is one student's contribution to a coach's row.
type BreakdownLineDTO struct {
	StudentID  string         `json:"student_id"`
	Amount     string         `json:"amount"`
	DaysWorked int            `json:"days_worked"`
	SubPeriods []SubPeriodDTO `json:"sub_periods"`
	HasGaps    bool           `json:"has_gaps"`
}

// PayrollRowDTO represents one coach's row for a period.
type PayrollRowDTO struct {
	ID           string             `json:"id"`
	CoachID      string             `json:"coach_id"`
	PeriodMonth  string             `json:"period_month"`
	TotalAmount  string             `json:"total_amount"`
	StudentCount int                `json:"student_count"`
	Breakdown    []BreakdownLineDTO `json:"breakdown"`
	Status       string             `json:"status"`
	PaidAt       string             `json:"paid_at,omitempty"`
	PaidBy       string             `json:"paid_by,omitempty"`
}

// PeriodResponse wraps a period's rows with its lock state.
type PeriodResponse struct {
	PeriodMonth string          `json:"period_month"`
	Locked      bool            `json:"locked"`
	Rows        []PayrollRowDTO `json:"rows"`
}

// DistributeRequest names the payer identity stamped on every row.
type DistributeRequest struct {
	PaidBy string `json:"paid_by" validate:"required,max=128"`
}

// DistributionDetailDTO is one coach's slice of a distribution.
type DistributionDetailDTO struct {
	CoachID string `json:"coach_id"`
	Amount  string `json:"amount"`
}

// DistributionResultDTO reports what a distribution run transitioned.
type DistributionResultDTO struct {
	Success        bool                    `json:"success"`
	PeriodMonth    string                  `json:"period_month"`
	ProcessedCount int                     `json:"processed_count"`
	TotalAmount    string                  `json:"total_amount"`
	Details        []DistributionDetailDTO `json:"details"`
}

// ErrorResponse is the standard error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func coachDTO(c payroll.Coach) CoachDTO {
	return CoachDTO{ID: string(c.ID), Name: c.Name, IsActive: c.IsActive}
}

func studentDTO(s payroll.Student) StudentDTO {
	return StudentDTO{
		ID:             string(s.ID),
		Name:           s.Name,
		PackageStart:   s.PackageStart.String(),
		PackageEnd:     s.PackageEnd.String(),
		CurrentCoachID: string(s.CurrentCoachID),
		IsActive:       s.IsActive,
	}
}

func transferDTO(tr payroll.TransferEvent) TransferDTO {
	return TransferDTO{
		ID:           tr.ID,
		StudentID:    string(tr.StudentID),
		OldCoachID:   string(tr.OldCoachID),
		NewCoachID:   string(tr.NewCoachID),
		TransferDate: tr.TransferDate.String(),
	}
}

func renewalDTO(r payroll.RenewalEvent) RenewalDTO {
	return RenewalDTO{
		ID:             r.ID,
		StudentID:      string(r.StudentID),
		PaymentDate:    r.PaymentDate.String(),
		PreviousEnd:    r.PreviousEnd.String(),
		NewEnd:         r.NewEnd.String(),
		DurationMonths: r.DurationMonths,
		Amount:         r.Amount.String(),
		HasGap:         r.HasGap(),
	}
}

func payrollRowDTO(row payroll.PayrollRow) PayrollRowDTO {
	breakdown := make([]BreakdownLineDTO, len(row.Breakdown))
	for i, line := range row.Breakdown {
		subs := make([]SubPeriodDTO, len(line.SubPeriods))
		for j, sp := range line.SubPeriods {
			subs[j] = SubPeriodDTO{
				Start: sp.Range.Start.String(),
				End:   sp.Range.End.String(),
				Days:  sp.Days,
			}
		}
		breakdown[i] = BreakdownLineDTO{
			StudentID:  string(line.StudentID),
			Amount:     line.Amount.String(),
			DaysWorked: line.DaysWorked,
			SubPeriods: subs,
			HasGaps:    line.HasGaps,
		}
	}

	dto := PayrollRowDTO{
		ID:           row.ID,
		CoachID:      string(row.CoachID),
		PeriodMonth:  row.PeriodMonth,
		TotalAmount:  row.TotalAmount.String(),
		StudentCount: row.StudentCount,
		Breakdown:    breakdown,
		Status:       row.Status.String(),
	}
	if at, by, ok := row.Status.PaidInfo(); ok {
		dto.PaidAt = at.String()
		dto.PaidBy = by
	}
	return dto
}

func payrollRowDTOs(rows []payroll.PayrollRow) []PayrollRowDTO {
	dtos := make([]PayrollRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = payrollRowDTO(row)
	}
	return dtos
}
