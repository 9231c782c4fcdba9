package leave

// Domain events emitted by the workflow and the batch engines. Payloads
// are plain structs; the event package handles delivery.

type RequestSubmittedEvent struct {
	TenantID  TenantID
	RequestID RequestID
	Employee  EmployeeID
	Code      LeaveTypeCode
	Days      Days
}

func (RequestSubmittedEvent) EventName() string { return "leave_request.submitted" }

type RequestApprovedEvent struct {
	TenantID  TenantID
	RequestID RequestID
	Employee  EmployeeID
	Code      LeaveTypeCode
	Days      Days
	DecidedBy string
}

func (RequestApprovedEvent) EventName() string { return "leave_request.approved" }

type RequestRejectedEvent struct {
	TenantID  TenantID
	RequestID RequestID
	Employee  EmployeeID
	Reason    string
	DecidedBy string
}

func (RequestRejectedEvent) EventName() string { return "leave_request.rejected" }

type RequestCancelledEvent struct {
	TenantID     TenantID
	RequestID    RequestID
	Employee     EmployeeID
	RestoredDays Days
}

func (RequestCancelledEvent) EventName() string { return "leave_request.cancelled" }

type AccrualAppliedEvent struct {
	TenantID TenantID
	Employee EmployeeID
	Code     LeaveTypeCode
	Period   Period
	Amount   Days
}

func (AccrualAppliedEvent) EventName() string { return "accrual.applied" }

type RolloverAppliedEvent struct {
	TenantID TenantID
	Employee EmployeeID
	Code     LeaveTypeCode
	FromYear int
	ToYear   int
	Carried  Days
	Lost     Days
}

func (RolloverAppliedEvent) EventName() string { return "rollover.applied" }
