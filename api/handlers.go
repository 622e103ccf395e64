/*
handlers.go - HTTP API handlers for the tutoring payroll system

PURPOSE:
  Exposes the payroll engine and its CRUD collaborators via REST. Handles
  HTTP request/response, JSON serialization, validation, and delegates to
  the engine and store.

ENDPOINTS:
  Settings:
    GET    /api/settings                     Current settings
    PUT    /api/settings                     Replace settings

  Roster:
    GET    /api/coaches                      List coaches (incl. archived)
    POST   /api/coaches                      Create coach
    GET    /api/coaches/{id}                 Get coach
    POST   /api/coaches/{id}/archive         Deactivate coach
    GET    /api/students                     List students (incl. archived)
    POST   /api/students                     Create student
    GET    /api/students/{id}                Get student
    POST   /api/students/{id}/archive        Archive as of leave date

  Events (append-only):
    GET/POST /api/students/{id}/transfers    Transfer log / reassign coach
    GET/POST /api/students/{id}/renewals     Renewal log / record payment

  Payroll:
    POST   /api/payroll/{period}/calculate   Upsert pending rows
    POST   /api/payroll/{period}/distribute  Atomic paid transition
    GET    /api/payroll/{period}             Rows + locked flag

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid period format
  - 404: Entity not found
  - 409: Already-paid conflict (never mutates anything)
  - 500: Internal errors, missing settings row

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/warp/tutor-payroll/payroll"
	"github.com/warp/tutor-payroll/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Engine   *payroll.Engine
	validate *validator.Validate
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{
		Store:    store,
		Engine:   payroll.NewEngine(store),
		validate: validator.New(),
	}
}

// decodeValid decodes the body into req and runs struct validation.
func (h *Handler) decodeValid(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// GetSettings returns the global settings row.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.Store.GetSettings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	if settings == nil {
		writeError(w, http.StatusNotFound, "Settings not configured", nil)
		return
	}

	writeJSON(w, http.StatusOK, SettingsDTO{
		MonthlyFee:        settings.MonthlyFee.String(),
		BaseDaysDivisor:   settings.BaseDaysDivisor,
		PaymentDayOfMonth: settings.PaymentDayOfMonth,
	})
}

// UpdateSettings replaces the global settings row.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	settings := payroll.Settings{
		MonthlyFee:        payroll.MustParseMoney(req.MonthlyFee),
		BaseDaysDivisor:   req.BaseDaysDivisor,
		PaymentDayOfMonth: req.PaymentDayOfMonth,
	}
	if settings.MonthlyFee.IsZero() {
		writeError(w, http.StatusBadRequest, "Invalid monthly_fee", nil)
		return
	}

	if err := h.Store.PutSettings(r.Context(), settings); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings", err)
		return
	}

	writeJSON(w, http.StatusOK, SettingsDTO{
		MonthlyFee:        settings.MonthlyFee.String(),
		BaseDaysDivisor:   settings.BaseDaysDivisor,
		PaymentDayOfMonth: settings.PaymentDayOfMonth,
	})
}

// =============================================================================
// COACH HANDLERS
// =============================================================================

// ListCoaches returns all coaches, archived ones included.
func (h *Handler) ListCoaches(w http.ResponseWriter, r *http.Request) {
	coaches, err := h.Store.ListCoaches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list coaches", err)
		return
	}

	dtos := make([]CoachDTO, len(coaches))
	for i, c := range coaches {
		dtos[i] = coachDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateCoach creates a new active coach.
func (h *Handler) CreateCoach(w http.ResponseWriter, r *http.Request) {
	var req CreateCoachRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	coach := payroll.Coach{ID: payroll.CoachID(req.ID), Name: req.Name, IsActive: true}
	if err := h.Store.SaveCoach(r.Context(), coach); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create coach", err)
		return
	}

	writeJSON(w, http.StatusCreated, coachDTO(coach))
}

// GetCoach returns a single coach.
func (h *Handler) GetCoach(w http.ResponseWriter, r *http.Request) {
	coach, err := h.Store.GetCoach(r.Context(), payroll.CoachID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get coach", err)
		return
	}
	if coach == nil {
		writeError(w, http.StatusNotFound, "Coach not found", payroll.ErrCoachNotFound)
		return
	}
	writeJSON(w, http.StatusOK, coachDTO(*coach))
}

// ArchiveCoach deactivates a coach. The coach stays in the roster because
// paid rows still reference it; it simply stops receiving zero rows.
func (h *Handler) ArchiveCoach(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	coach, err := h.Store.GetCoach(ctx, payroll.CoachID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get coach", err)
		return
	}
	if coach == nil {
		writeError(w, http.StatusNotFound, "Coach not found", payroll.ErrCoachNotFound)
		return
	}

	coach.IsActive = false
	if err := h.Store.SaveCoach(ctx, *coach); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to archive coach", err)
		return
	}
	writeJSON(w, http.StatusOK, coachDTO(*coach))
}

// =============================================================================
// STUDENT HANDLERS
// =============================================================================

// ListStudents returns all students, archived ones included.
func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.Store.ListStudents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list students", err)
		return
	}

	dtos := make([]StudentDTO, len(students))
	for i, s := range students {
		dtos[i] = studentDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateStudent creates a student with its initial package bounds.
// The package start date is immutable from this point on.
func (h *Handler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req CreateStudentRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	start, _ := payroll.ParseDate(req.PackageStart)
	end, _ := payroll.ParseDate(req.PackageEnd)
	if end.Before(start) {
		writeError(w, http.StatusBadRequest, "package_end before package_start", nil)
		return
	}

	ctx := r.Context()
	coach, err := h.Store.GetCoach(ctx, payroll.CoachID(req.CoachID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get coach", err)
		return
	}
	if coach == nil {
		writeError(w, http.StatusNotFound, "Coach not found", payroll.ErrCoachNotFound)
		return
	}

	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	student := payroll.Student{
		ID:             payroll.StudentID(req.ID),
		Name:           req.Name,
		PackageStart:   start,
		PackageEnd:     end,
		CurrentCoachID: coach.ID,
		IsActive:       true,
	}
	if err := h.Store.SaveStudent(ctx, student); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create student", err)
		return
	}

	writeJSON(w, http.StatusCreated, studentDTO(student))
}

// GetStudent returns a single student.
func (h *Handler) GetStudent(w http.ResponseWriter, r *http.Request) {
	student, err := h.Store.GetStudent(r.Context(), payroll.StudentID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get student", err)
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "Student not found", payroll.ErrStudentNotFound)
		return
	}
	writeJSON(w, http.StatusOK, studentDTO(*student))
}

// ArchiveStudent archives a student as of an explicit leave date: the
// leave date becomes the package end, so no coach accrues anything past it.
func (h *Handler) ArchiveStudent(w http.ResponseWriter, r *http.Request) {
	var req ArchiveStudentRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	ctx := r.Context()
	student, err := h.Store.GetStudent(ctx, payroll.StudentID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get student", err)
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "Student not found", payroll.ErrStudentNotFound)
		return
	}

	leaveDate, _ := payroll.ParseDate(req.LeaveDate)
	if leaveDate.Before(student.PackageStart) {
		writeError(w, http.StatusBadRequest, "leave_date before package_start", nil)
		return
	}

	student.PackageEnd = leaveDate
	student.IsActive = false
	if err := h.Store.SaveStudent(ctx, *student); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to archive student", err)
		return
	}
	writeJSON(w, http.StatusOK, studentDTO(*student))
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

// ListTransfers returns a student's transfer log, ascending by date.
func (h *Handler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.Store.TransfersForStudent(r.Context(), payroll.StudentID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transfers", err)
		return
	}

	dtos := make([]TransferDTO, len(transfers))
	for i, tr := range transfers {
		dtos[i] = transferDTO(tr)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateTransfer reassigns a student to a new coach. The event is appended
// to the immutable transfer log; the student's current-coach projection is
// updated alongside it.
func (h *Handler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	ctx := r.Context()
	student, err := h.Store.GetStudent(ctx, payroll.StudentID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get student", err)
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "Student not found", payroll.ErrStudentNotFound)
		return
	}

	newCoach, err := h.Store.GetCoach(ctx, payroll.CoachID(req.NewCoachID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get coach", err)
		return
	}
	if newCoach == nil {
		writeError(w, http.StatusNotFound, "Coach not found", payroll.ErrCoachNotFound)
		return
	}
	if newCoach.ID == student.CurrentCoachID {
		writeError(w, http.StatusBadRequest, "Student already assigned to this coach", nil)
		return
	}

	transferDate, _ := payroll.ParseDate(req.TransferDate)
	event := payroll.TransferEvent{
		ID:           uuid.NewString(),
		StudentID:    student.ID,
		OldCoachID:   student.CurrentCoachID,
		NewCoachID:   newCoach.ID,
		TransferDate: transferDate,
	}
	if err := h.Store.AppendTransfer(ctx, event); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record transfer", err)
		return
	}

	student.CurrentCoachID = newCoach.ID
	if err := h.Store.SaveStudent(ctx, *student); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update student", err)
		return
	}

	writeJSON(w, http.StatusCreated, transferDTO(event))
}

// =============================================================================
// RENEWAL HANDLERS
// =============================================================================

// ListRenewals returns a student's renewal log, ascending by payment date.
func (h *Handler) ListRenewals(w http.ResponseWriter, r *http.Request) {
	renewals, err := h.Store.RenewalsForStudent(r.Context(), payroll.StudentID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list renewals", err)
		return
	}

	dtos := make([]RenewalDTO, len(renewals))
	for i, rn := range renewals {
		dtos[i] = renewalDTO(rn)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRenewal records a renewal payment and extends the package end.
// A lapsed package restarts at the payment date: the new end counts the
// purchased months from the payment date, not from the old expiry.
func (h *Handler) CreateRenewal(w http.ResponseWriter, r *http.Request) {
	var req CreateRenewalRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	ctx := r.Context()
	student, err := h.Store.GetStudent(ctx, payroll.StudentID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get student", err)
		return
	}
	if student == nil {
		writeError(w, http.StatusNotFound, "Student not found", payroll.ErrStudentNotFound)
		return
	}

	paymentDate, _ := payroll.ParseDate(req.PaymentDate)
	previousEnd := student.PackageEnd

	var newEnd payroll.Date
	if previousEnd.Before(paymentDate) {
		newEnd = paymentDate.AddMonths(req.DurationMonths)
	} else {
		newEnd = previousEnd.AddMonths(req.DurationMonths)
	}

	event := payroll.RenewalEvent{
		ID:             uuid.NewString(),
		StudentID:      student.ID,
		PaymentDate:    paymentDate,
		PreviousEnd:    previousEnd,
		NewEnd:         newEnd,
		DurationMonths: req.DurationMonths,
		Amount:         payroll.MustParseMoney(req.Amount),
	}
	if err := h.Store.AppendRenewal(ctx, event); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record renewal", err)
		return
	}

	student.PackageEnd = newEnd
	student.IsActive = true
	if err := h.Store.SaveStudent(ctx, *student); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update student", err)
		return
	}

	writeJSON(w, http.StatusCreated, renewalDTO(event))
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// CalculatePayroll computes and upserts pending rows for a period.
func (h *Handler) CalculatePayroll(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")

	rows, err := h.Engine.Calculate(r.Context(), period)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, PeriodResponse{
		PeriodMonth: period,
		Locked:      false,
		Rows:        payrollRowDTOs(rows),
	})
}

// DistributePayroll atomically transitions every pending row of a period
// to paid. A second call on the same period gets a 409 conflict.
func (h *Handler) DistributePayroll(w http.ResponseWriter, r *http.Request) {
	var req DistributeRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	result, err := h.Engine.Distribute(r.Context(), chi.URLParam(r, "period"), req.PaidBy)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	details := make([]DistributionDetailDTO, len(result.Details))
	for i, d := range result.Details {
		details[i] = DistributionDetailDTO{CoachID: string(d.CoachID), Amount: d.Amount.String()}
	}

	writeJSON(w, http.StatusOK, DistributionResultDTO{
		Success:        true,
		PeriodMonth:    result.PeriodMonth,
		ProcessedCount: result.ProcessedCount,
		TotalAmount:    result.TotalAmount.String(),
		Details:        details,
	})
}

// GetPeriod returns a period's stored rows and whether it is locked.
func (h *Handler) GetPeriod(w http.ResponseWriter, r *http.Request) {
	period := chi.URLParam(r, "period")
	ctx := r.Context()

	locked, err := h.Engine.IsPeriodLocked(ctx, period)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	rows, err := h.Store.RowsForPeriod(ctx, period)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load payroll rows", err)
		return
	}

	writeJSON(w, http.StatusOK, PeriodResponse{
		PeriodMonth: period,
		Locked:      locked,
		Rows:        payrollRowDTOs(rows),
	})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeEngineError maps engine errors to HTTP statuses. The conflict case
// is deliberately distinct from generic failure: the caller double-clicked,
// nothing is wrong with the data.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case payroll.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid period", err)
	case payroll.IsConflict(err):
		writeError(w, http.StatusConflict, "Period already paid", err)
	case payroll.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, payroll.ErrSettingsMissing):
		writeError(w, http.StatusInternalServerError, "Settings not configured", err)
	default:
		writeError(w, http.StatusInternalServerError, "Payroll operation failed", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
