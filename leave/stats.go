package leave

import (
	"github.com/shopspring/decimal"

	"github.com/warp/leave-engine/generic"
)

// Stats are the dashboard figures for HR.
type Stats struct {
	TotalEmployees int
	TotalRequests  int
	Pending        int
	Approved       int
	Rejected       int
	ByRole         map[Role]int
	ByLeaveType    map[LeaveType]int

	// AverageDurationDays is the mean DurationDays over all requests.
	AverageDurationDays decimal.Decimal
	// QuotaUtilization is annual days used across the roster as a share of
	// the roster's combined annual quota.
	QuotaUtilization generic.Amount
}

// ComputeStats aggregates a roster and ledger snapshot. Every role and leave
// type is present in the maps, zero when unused.
func ComputeStats(employees []Employee, requests []LeaveRequest) Stats {
	s := Stats{
		TotalEmployees: len(employees),
		TotalRequests:  len(requests),
		ByRole:         make(map[Role]int, len(Roles)),
		ByLeaveType:    make(map[LeaveType]int, len(LeaveTypes)),
	}
	for _, r := range Roles {
		s.ByRole[r] = 0
	}
	for _, t := range LeaveTypes {
		s.ByLeaveType[t] = 0
	}

	usedDays := 0
	for _, emp := range employees {
		s.ByRole[emp.Role]++
		usedDays += emp.AnnualLeaveUsed
	}

	totalDays := 0
	for _, req := range requests {
		switch req.Status {
		case StatusPending:
			s.Pending++
		case StatusApproved:
			s.Approved++
		case StatusRejected:
			s.Rejected++
		}
		s.ByLeaveType[req.LeaveType]++
		totalDays += req.DurationDays
	}

	s.AverageDurationDays = generic.Average(totalDays, len(requests))
	s.QuotaUtilization = generic.Percent(usedDays, len(employees)*AnnualQuotaDays)
	return s
}
