package leave

// AnnualQuotaDays is the yearly annual-leave allowance shared by every role.
const AnnualQuotaDays = 12

// Rule is the static constraint attached to a leave type.
type Rule struct {
	Type        LeaveType
	Label       string
	MaxDays     int
	Description string
}

var rules = map[LeaveType]Rule{
	LeaveAnnual:                {LeaveAnnual, "Annual Leave", 12, "Maximum 12 days per year"},
	LeaveMaternity:             {LeaveMaternity, "Maternity Leave", 90, "3 months"},
	LeaveMiscarriage:           {LeaveMiscarriage, "Miscarriage Leave", 45, "1.5 months"},
	LeaveSick:                  {LeaveSick, "Sick Leave", 365, "As prescribed by a doctor"},
	LeaveMenstruation:          {LeaveMenstruation, "Menstrual Leave", 2, "2 days per cycle"},
	LeaveMarriage:              {LeaveMarriage, "Marriage Leave", 3, "3 days"},
	LeaveChildMarriage:         {LeaveChildMarriage, "Child's Marriage", 2, "2 days"},
	LeaveCircumcisionOrBaptism: {LeaveCircumcisionOrBaptism, "Child's Circumcision or Baptism", 2, "2 days"},
	LeaveDeathCore:             {LeaveDeathCore, "Bereavement (Core Family)", 2, "2 days (core family)"},
	LeaveDeathHousehold:        {LeaveDeathHousehold, "Bereavement (Household Member)", 1, "1 day (household member)"},
}

// RuleFor returns the rule for a leave type.
func RuleFor(t LeaveType) (Rule, bool) {
	r, ok := rules[t]
	return r, ok
}

// Rules returns the whole table in display order.
func Rules() []Rule {
	out := make([]Rule, 0, len(LeaveTypes))
	for _, t := range LeaveTypes {
		out = append(out, rules[t])
	}
	return out
}
