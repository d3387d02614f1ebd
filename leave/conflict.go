package leave

import (
	"fmt"

	"github.com/warp/leave-engine/generic"
)

// clashRule decides whether two employees may not be away at the same time.
// It returns the rule and message when they clash.
func clashRule(requester, other Employee, otherPeriod generic.Period) (ConflictRule, string, bool) {
	if requester.Role != other.Role {
		return RuleNone, "", false
	}

	switch requester.Role {
	case RoleCrewStore:
		if requester.StoreID != "" && requester.StoreID == other.StoreID {
			return RuleStoreClash, fmt.Sprintf(
				"schedule clash in same store: %s (%s) is on leave %s",
				other.Name, other.StoreID, otherPeriod), true
		}
	case RoleSupervisor:
		if requester.AreaID == other.AreaID {
			return RuleAreaClash, fmt.Sprintf(
				"schedule clash in same area: %s (%s) is on leave %s",
				other.Name, other.AreaID, otherPeriod), true
		}
	case RoleAreaManager:
		return RuleAreaManagerClash, fmt.Sprintf(
			"schedule clash with another Area Manager: %s is on leave %s",
			other.Name, otherPeriod), true
	case RoleOperationalManager, RoleHRD:
		// No coverage rule for these roles.
	}
	return RuleNone, "", false
}

// findClash scans approved requests of other employees in ledger order and
// returns the first one that overlaps the period and clashes by role.
func findClash(requester Employee, period generic.Period, ledger []LeaveRequest, roster map[string]Employee) ConflictResult {
	for _, req := range ledger {
		if req.Status != StatusApproved || req.EmployeeID == requester.ID {
			continue
		}
		if !req.Period().Overlaps(period) {
			continue
		}
		other, ok := roster[req.EmployeeID]
		if !ok {
			continue
		}
		if rule, msg, clash := clashRule(requester, other, req.Period()); clash {
			return ConflictResult{
				HasConflict:          true,
				Message:              msg,
				Rule:                 rule,
				ConflictingRequestID: req.ID,
			}
		}
	}
	return ConflictResult{}
}
