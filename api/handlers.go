/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the domain services.

ENDPOINTS:
  Tenants:
    POST   /api/tenants                              Create tenant (seeds catalog, starts trial)
    GET    /api/tenants/{tenant}                     Tenant details + trial state

  Per-tenant (all under /api/tenants/{tenant}):
    GET    /leave-types                              List catalog
    POST   /leave-types                              Create leave type
    PUT    /leave-types/{code}                       Update leave type
    DELETE /leave-types/{code}                       Delete leave type
    GET    /employees                                List employees
    POST   /employees                                Create employee
    GET    /employees/{id}                           Employee details
    DELETE /employees/{id}                           Deactivate employee
    GET    /employees/{id}/balances?year=YYYY        Balance summary
    POST   /employees/{id}/balances/adjust           Manual adjustment
    POST   /requests                                 Submit leave request
    GET    /requests                                 List requests (filters)
    GET    /requests/{id}                            Request details
    POST   /requests/{id}/decide                     Approve/reject
    POST   /requests/{id}/cancel                     Cancel approved request
    GET    /conflicts?employee=&start=&end=          Team conflict check
    POST   /holidays                                 Add company holiday
    DELETE /holidays/{date}                          Remove company holiday
    POST   /trial/convert                            Convert trial to paid

  Admin:
    POST   /api/admin/accrual/run                    Run monthly accrual (body: {"period":"2024-03"})
    POST   /api/admin/rollover/run                   Run year rollover (body: {"from_year":2024})
    POST   /api/admin/trial/tick                     Run trial tick (body: {"date":"2024-03-06"}, optional)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (insufficient balance, invalid transition, duplicates)
  - 500: Internal errors

SECURITY NOTE:
  No authentication middleware. Tenancy comes from the URL path; a
  production deployment puts an auth layer in front that pins the
  tenant from credentials.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/leave"
	"github.com/loomhr/leave-engine/trial"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Directory *leave.Directory
	Catalog   *leave.Catalog
	Ledger    *leave.Ledger
	Workflow  *leave.Workflow
	Accrual   *leave.AccrualEngine
	Rollover  *leave.RolloverService
	Trials    *trial.Manager
	Balances  leave.BalanceStore
	Logger    *zap.Logger
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case leave.IsNotFound(err) || errors.Is(err, trial.ErrAccountNotFound):
		status = http.StatusNotFound
	case leave.IsConflict(err) || errors.Is(err, trial.ErrAlreadyStarted) || errors.Is(err, trial.ErrNotTrialing):
		status = http.StatusConflict
	case leave.IsClientError(err) || errors.Is(err, calendar.ErrInvalidRange):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string, err error) {
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func tenantParam(r *http.Request) leave.TenantID {
	return leave.TenantID(chi.URLParam(r, "tenant"))
}

func parseDays(s string) (leave.Days, error) {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return leave.Days{}, fmt.Errorf("invalid day quantity %q", s)
	}
	return leave.DaysFromDecimal(v), nil
}

// =============================================================================
// TENANT HANDLERS
// =============================================================================

func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body", err)
		return
	}
	if req.Name == "" {
		h.badRequest(w, "name is required", nil)
		return
	}

	t, err := h.Directory.CreateTenant(r.Context(), leave.Tenant{
		ID:   leave.TenantID(req.ID),
		Name: req.Name,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	// New tenants start on trial immediately.
	if _, err := h.Trials.Start(r.Context(), t.ID, calendar.Today()); err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toTenantDTO(t))
}

func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	t, err := h.Directory.GetTenant(r.Context(), tenantParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := struct {
		TenantDTO
		Trial *TrialAccountDTO `json:"trial,omitempty"`
	}{TenantDTO: toTenantDTO(t)}

	if acct, err := h.Trials.Get(r.Context(), t.ID); err == nil {
		dto := toTrialAccountDTO(acct)
		resp.Trial = &dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// LEAVE TYPE HANDLERS
// =============================================================================

func (h *Handler) ListLeaveTypes(w http.ResponseWriter, r *http.Request) {
	types, err := h.Catalog.List(r.Context(), tenantParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]LeaveTypeDTO, 0, len(types))
	for _, lt := range types {
		out = append(out, toLeaveTypeDTO(lt))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateLeaveType(w http.ResponseWriter, r *http.Request) {
	var dto LeaveTypeDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.badRequest(w, "invalid request body", err)
		return
	}
	lt, err := fromLeaveTypeDTO(tenantParam(r), dto)
	if err != nil {
		h.badRequest(w, "invalid leave type", err)
		return
	}
	created, err := h.Catalog.Create(r.Context(), lt)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveTypeDTO(created))
}

func (h *Handler) UpdateLeaveType(w http.ResponseWriter, r *http.Request) {
	var dto LeaveTypeDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.badRequest(w, "invalid request body", err)
		return
	}
	dto.Code = chi.URLParam(r, "code")
	lt, err := fromLeaveTypeDTO(tenantParam(r), dto)
	if err != nil {
		h.badRequest(w, "invalid leave type", err)
		return
	}
	updated, err := h.Catalog.Update(r.Context(), lt)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveTypeDTO(updated))
}

func (h *Handler) DeleteLeaveType(w http.ResponseWriter, r *http.Request) {
	err := h.Catalog.Delete(r.Context(), tenantParam(r), leave.LeaveTypeCode(chi.URLParam(r, "code")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	emps, err := h.Directory.ListEmployees(r.Context(), tenantParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]EmployeeDTO, 0, len(emps))
	for _, e := range emps {
		out = append(out, toEmployeeDTO(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body", err)
		return
	}
	if req.Name == "" {
		h.badRequest(w, "name is required", nil)
		return
	}

	emp := leave.Employee{
		TenantID: tenantParam(r),
		ID:       leave.EmployeeID(req.ID),
		Name:     req.Name,
		Email:    req.Email,
		TeamID:   req.TeamID,
	}
	if req.ContractStart != "" {
		start, err := calendar.ParseDate(req.ContractStart)
		if err != nil {
			h.badRequest(w, "invalid contract_start (use YYYY-MM-DD)", err)
			return
		}
		emp.ContractStart = start
	}

	created, err := h.Directory.CreateEmployee(r.Context(), emp)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(created))
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Directory.GetEmployee(r.Context(), tenantParam(r), leave.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

func (h *Handler) DeactivateEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := h.Directory.Deactivate(r.Context(), tenantParam(r), leave.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(emp))
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	year := time.Now().Year()
	if q := r.URL.Query().Get("year"); q != "" {
		var err error
		if year, err = strconv.Atoi(q); err != nil {
			h.badRequest(w, "invalid year", err)
			return
		}
	}

	entries, err := h.Balances.ListBalances(r.Context(), tenantParam(r),
		leave.EmployeeID(chi.URLParam(r, "id")), year)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]BalanceDTO, 0, len(entries))
	for _, b := range entries {
		out = append(out, toBalanceDTO(b))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	var req AdjustBalanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body", err)
		return
	}
	delta, err := parseDays(req.Delta)
	if err != nil {
		h.badRequest(w, "invalid delta", err)
		return
	}
	if req.Year == 0 {
		req.Year = time.Now().Year()
	}

	key := leave.BalanceKey{
		TenantID: tenantParam(r),
		Employee: leave.EmployeeID(chi.URLParam(r, "id")),
		Code:     leave.LeaveTypeCode(req.Code),
		Year:     req.Year,
	}
	entry, err := h.Ledger.Adjust(r.Context(), key, delta, req.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(entry))
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	var dto SubmitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.badRequest(w, "invalid request body", err)
		return
	}
	start, err := calendar.ParseDate(dto.StartDate)
	if err != nil {
		h.badRequest(w, "invalid start_date (use YYYY-MM-DD)", err)
		return
	}
	end, err := calendar.ParseDate(dto.EndDate)
	if err != nil {
		h.badRequest(w, "invalid end_date (use YYYY-MM-DD)", err)
		return
	}
	if end.Before(start) {
		h.badRequest(w, "end_date before start_date", nil)
		return
	}

	req, err := h.Workflow.Submit(r.Context(), leave.SubmitInput{
		TenantID:         tenantParam(r),
		Employee:         leave.EmployeeID(dto.EmployeeID),
		Code:             leave.LeaveTypeCode(dto.Code),
		StartDate:        start,
		EndDate:          end,
		StartHalfDay:     dto.StartHalfDay,
		EndHalfDay:       dto.EndHalfDay,
		Reason:           dto.Reason,
		JustificationRef: dto.JustificationRef,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(req))
}

func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	filter := leave.RequestFilter{
		Employee: leave.EmployeeID(r.URL.Query().Get("employee")),
		Status:   leave.RequestStatus(r.URL.Query().Get("status")),
	}
	if q := r.URL.Query().Get("year"); q != "" {
		year, err := strconv.Atoi(q)
		if err != nil {
			h.badRequest(w, "invalid year", err)
			return
		}
		filter.Year = year
	}

	reqs, err := h.Workflow.List(r.Context(), tenantParam(r), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]RequestDTO, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, toRequestDTO(req))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Workflow.Get(r.Context(), tenantParam(r), leave.RequestID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

func (h *Handler) DecideRequest(w http.ResponseWriter, r *http.Request) {
	var dto DecideRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.badRequest(w, "invalid request body", err)
		return
	}

	var decision leave.Decision
	switch dto.Decision {
	case "approve":
		decision = leave.DecisionApprove
	case "reject":
		decision = leave.DecisionReject
	default:
		h.badRequest(w, `decision must be "approve" or "reject"`, nil)
		return
	}

	req, err := h.Workflow.Decide(r.Context(), tenantParam(r),
		leave.RequestID(chi.URLParam(r, "id")), decision, dto.DecidedBy, dto.Reason)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

func (h *Handler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	req, err := h.Workflow.Cancel(r.Context(), tenantParam(r), leave.RequestID(chi.URLParam(r, "id")), calendar.Today())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(req))
}

func (h *Handler) CheckConflicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, err := calendar.ParseDate(q.Get("start"))
	if err != nil {
		h.badRequest(w, "invalid start (use YYYY-MM-DD)", err)
		return
	}
	end, err := calendar.ParseDate(q.Get("end"))
	if err != nil {
		h.badRequest(w, "invalid end (use YYYY-MM-DD)", err)
		return
	}

	report, err := h.Workflow.CheckConflicts(r.Context(), tenantParam(r),
		leave.EmployeeID(q.Get("employee")), start, end)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toConflictReportDTO(report))
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

func (h *Handler) AddHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body", err)
		return
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		h.badRequest(w, "invalid date (use YYYY-MM-DD)", err)
		return
	}
	if err := h.Directory.AddHoliday(r.Context(), tenantParam(r), date, req.Label); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) RemoveHoliday(w http.ResponseWriter, r *http.Request) {
	date, err := calendar.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		h.badRequest(w, "invalid date (use YYYY-MM-DD)", err)
		return
	}
	if err := h.Directory.RemoveHoliday(r.Context(), tenantParam(r), date); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TRIAL HANDLERS
// =============================================================================

func (h *Handler) ConvertTrial(w http.ResponseWriter, r *http.Request) {
	acct, err := h.Trials.Convert(r.Context(), tenantParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTrialAccountDTO(acct))
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RunAccrual triggers the monthly accrual for all tenants. The period
// defaults to the previous month, which is what a catch-up run wants.
func (h *Handler) RunAccrual(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Period string `json:"period"` // "2024-03"
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(w, "invalid request body", err)
		return
	}

	period := leave.PeriodOf(calendar.Today()).Previous()
	if body.Period != "" {
		t, err := time.Parse("2006-01", body.Period)
		if err != nil {
			h.badRequest(w, "invalid period (use YYYY-MM)", err)
			return
		}
		period = leave.Period{Year: t.Year(), Month: t.Month()}
	}

	reports, err := h.Accrual.RunAll(r.Context(), period)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *Handler) RunRollover(w http.ResponseWriter, r *http.Request) {
	var body struct {
		FromYear int `json:"from_year"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(w, "invalid request body", err)
		return
	}
	if body.FromYear == 0 {
		body.FromYear = calendar.Today().Year() - 1
	}

	reports, err := h.Rollover.RunAll(r.Context(), body.FromYear)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (h *Handler) RunTrialTick(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(w, "invalid request body", err)
		return
	}

	day := calendar.Today()
	if body.Date != "" {
		var err error
		if day, err = calendar.ParseDate(body.Date); err != nil {
			h.badRequest(w, "invalid date (use YYYY-MM-DD)", err)
			return
		}
	}

	report, err := h.Trials.Tick(r.Context(), day)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
