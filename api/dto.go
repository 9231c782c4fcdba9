/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for the API contract, decoupled from the domain types.
  Day quantities cross the wire as decimal strings ("2.5"), never
  floats; dates as "YYYY-MM-DD".

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/loomhr/leave-engine/calendar"
	"github.com/loomhr/leave-engine/leave"
	"github.com/loomhr/leave-engine/trial"
)

// =============================================================================
// TENANTS / EMPLOYEES
// =============================================================================

type TenantDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateTenantRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type EmployeeDTO struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	TeamID        string `json:"team_id"`
	ContractStart string `json:"contract_start"`
	ContractEnd   string `json:"contract_end,omitempty"`
	Active        bool   `json:"active"`
}

type CreateEmployeeRequest struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	TeamID        string `json:"team_id"`
	ContractStart string `json:"contract_start"`
}

// =============================================================================
// LEAVE TYPES
// =============================================================================

type LeaveTypeDTO struct {
	Code                  string `json:"code"`
	Name                  string `json:"name"`
	AnnualEntitlement     string `json:"annual_entitlement"`
	AccrualRatePerMonth   string `json:"accrual_rate_per_month"`
	CarryoverAllowed      bool   `json:"carryover_allowed"`
	CarryoverCap          string `json:"carryover_cap"`
	RequiresJustification bool   `json:"requires_justification"`
	MaxConsecutiveDays    int    `json:"max_consecutive_days"`
	AllowNegativeBalance  bool   `json:"allow_negative_balance"`
	Paid                  bool   `json:"paid"`
}

// =============================================================================
// BALANCES
// =============================================================================

type BalanceDTO struct {
	Code        string `json:"code"`
	Year        int    `json:"year"`
	Accrued     string `json:"accrued"`
	Used        string `json:"used"`
	CarriedOver string `json:"carried_over"`
	Available   string `json:"available"`
}

type AdjustBalanceRequest struct {
	Code   string `json:"code"`
	Year   int    `json:"year"`
	Delta  string `json:"delta"`
	Reason string `json:"reason"`
}

// =============================================================================
// REQUESTS
// =============================================================================

type SubmitRequestDTO struct {
	EmployeeID       string `json:"employee_id"`
	Code             string `json:"code"`
	StartDate        string `json:"start_date"`
	EndDate          string `json:"end_date"`
	StartHalfDay     bool   `json:"start_half_day"`
	EndHalfDay       bool   `json:"end_half_day"`
	Reason           string `json:"reason"`
	JustificationRef string `json:"justification_ref"`
}

type DecideRequestDTO struct {
	Decision  string `json:"decision"` // "approve" or "reject"
	DecidedBy string `json:"decided_by"`
	Reason    string `json:"reason"`
}

type RequestDTO struct {
	ID           string `json:"id"`
	EmployeeID   string `json:"employee_id"`
	Code         string `json:"code"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	StartHalfDay bool   `json:"start_half_day"`
	EndHalfDay   bool   `json:"end_half_day"`
	Days         string `json:"days"`
	Status       string `json:"status"`
	Reason       string `json:"reason,omitempty"`
	DecidedBy    string `json:"decided_by,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type ConflictReportDTO struct {
	TeamSize  int           `json:"team_size"`
	Severity  string        `json:"severity"`
	Conflicts []ConflictDTO `json:"conflicts"`
}

type ConflictDTO struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Status       string `json:"status"`
}

// =============================================================================
// HOLIDAYS
// =============================================================================

type HolidayRequest struct {
	Date  string `json:"date"`
	Label string `json:"label"`
}

// =============================================================================
// TRIAL
// =============================================================================

type TrialAccountDTO struct {
	State      string `json:"state"`
	TrialStart string `json:"trial_start"`
	TrialEnd   string `json:"trial_end"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toTenantDTO(t leave.Tenant) TenantDTO {
	return TenantDTO{
		ID:        string(t.ID),
		Name:      t.Name,
		CreatedAt: formatTime(t.CreatedAt),
	}
}

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:            string(e.ID),
		Name:          e.Name,
		Email:         e.Email,
		TeamID:        e.TeamID,
		ContractStart: e.ContractStart.String(),
		ContractEnd:   formatDate(e.ContractEnd),
		Active:        e.Active,
	}
}

func toLeaveTypeDTO(lt leave.LeaveType) LeaveTypeDTO {
	return LeaveTypeDTO{
		Code:                  string(lt.Code),
		Name:                  lt.Name,
		AnnualEntitlement:     lt.AnnualEntitlement.String(),
		AccrualRatePerMonth:   lt.AccrualRatePerMonth.String(),
		CarryoverAllowed:      lt.CarryoverAllowed,
		CarryoverCap:          lt.CarryoverCap.String(),
		RequiresJustification: lt.RequiresJustification,
		MaxConsecutiveDays:    lt.MaxConsecutiveDays,
		AllowNegativeBalance:  lt.AllowNegativeBalance,
		Paid:                  lt.Paid,
	}
}

func fromLeaveTypeDTO(tenant leave.TenantID, dto LeaveTypeDTO) (leave.LeaveType, error) {
	entitlement, err := parseDays(dto.AnnualEntitlement)
	if err != nil {
		return leave.LeaveType{}, err
	}
	rate, err := parseDays(dto.AccrualRatePerMonth)
	if err != nil {
		return leave.LeaveType{}, err
	}
	cap, err := parseDays(dto.CarryoverCap)
	if err != nil {
		return leave.LeaveType{}, err
	}
	return leave.LeaveType{
		TenantID:              tenant,
		Code:                  leave.LeaveTypeCode(dto.Code),
		Name:                  dto.Name,
		AnnualEntitlement:     entitlement,
		AccrualRatePerMonth:   rate,
		CarryoverAllowed:      dto.CarryoverAllowed,
		CarryoverCap:          cap,
		RequiresJustification: dto.RequiresJustification,
		MaxConsecutiveDays:    dto.MaxConsecutiveDays,
		AllowNegativeBalance:  dto.AllowNegativeBalance,
		Paid:                  dto.Paid,
	}, nil
}

func toBalanceDTO(b leave.BalanceEntry) BalanceDTO {
	return BalanceDTO{
		Code:        string(b.Key.Code),
		Year:        b.Key.Year,
		Accrued:     b.Accrued.String(),
		Used:        b.Used.String(),
		CarriedOver: b.CarriedOver.String(),
		Available:   b.Available().String(),
	}
}

func toRequestDTO(r leave.Request) RequestDTO {
	return RequestDTO{
		ID:           string(r.ID),
		EmployeeID:   string(r.Employee),
		Code:         string(r.Code),
		StartDate:    r.StartDate.String(),
		EndDate:      r.EndDate.String(),
		StartHalfDay: r.StartHalfDay,
		EndHalfDay:   r.EndHalfDay,
		Days:         r.ComputedDays.String(),
		Status:       string(r.Status),
		Reason:       r.Reason,
		DecidedBy:    r.DecidedBy,
		CreatedAt:    formatTime(r.CreatedAt),
	}
}

func toConflictReportDTO(report leave.ConflictReport) ConflictReportDTO {
	dto := ConflictReportDTO{
		TeamSize:  report.TeamSize,
		Severity:  string(report.Severity),
		Conflicts: []ConflictDTO{},
	}
	for _, c := range report.Conflicts {
		dto.Conflicts = append(dto.Conflicts, ConflictDTO{
			EmployeeID:   string(c.Employee.ID),
			EmployeeName: c.Employee.Name,
			StartDate:    c.Request.StartDate.String(),
			EndDate:      c.Request.EndDate.String(),
			Status:       string(c.Request.Status),
		})
	}
	return dto
}

func toTrialAccountDTO(a trial.Account) TrialAccountDTO {
	return TrialAccountDTO{
		State:      string(a.State),
		TrialStart: a.TrialStart.String(),
		TrialEnd:   a.TrialEnd.String(),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatDate(d calendar.Date) string {
	if d.IsZero() {
		return ""
	}
	return d.String()
}
