package leave

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/warp/leave-engine/generic"
)

// seedEmployee is a demo roster entry with its plaintext password.
type seedEmployee struct {
	Employee
	Password string
}

var demoRoster = []seedEmployee{
	{Employee{ID: "1", Name: "Budi Santoso", Role: RoleCrewStore, StoreID: "STORE-001", AreaID: "AREA-01",
		JoinDate: generic.MustParseDate("2022-01-15"), AnnualLeaveUsed: 2, Username: "budi"}, "123"},
	{Employee{ID: "2", Name: "Siti Aminah", Role: RoleCrewStore, StoreID: "STORE-001", AreaID: "AREA-01",
		JoinDate: generic.MustParseDate("2022-03-10"), AnnualLeaveUsed: 5, Username: "siti"}, "123"},
	{Employee{ID: "3", Name: "Andi Wijaya", Role: RoleSupervisor, StoreID: "STORE-001", AreaID: "AREA-01",
		JoinDate: generic.MustParseDate("2020-05-20"), AnnualLeaveUsed: 0, Username: "andi"}, "123"},
	{Employee{ID: "4", Name: "Rina Marlina", Role: RoleSupervisor, StoreID: "STORE-002", AreaID: "AREA-01",
		JoinDate: generic.MustParseDate("2021-02-01"), AnnualLeaveUsed: 1, Username: "rina"}, "123"},
	{Employee{ID: "5", Name: "Doni Tata", Role: RoleAreaManager, AreaID: "AREA-01",
		JoinDate: generic.MustParseDate("2019-08-15"), AnnualLeaveUsed: 8, Username: "doni"}, "123"},
	{Employee{ID: "6", Name: "Eko Prasetyo", Role: RoleAreaManager, AreaID: "AREA-02",
		JoinDate: generic.MustParseDate("2018-11-01"), AnnualLeaveUsed: 4, Username: "eko"}, "123"},
	{Employee{ID: "7", Name: "Mega Putri", Role: RoleHRD,
		JoinDate: generic.MustParseDate("2015-01-01"), AnnualLeaveUsed: 0, Username: "admin"}, "admin"},
}

// SeedRoster loads the demo roster into an empty store. It returns the number
// of employees written, zero when the roster already has entries.
func SeedRoster(ctx context.Context, store Store, cost int) (int, error) {
	existing, err := store.ListEmployees(ctx)
	if err != nil {
		return 0, fmt.Errorf("list employees: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	for _, s := range demoRoster {
		hash, err := bcrypt.GenerateFromPassword([]byte(s.Password), cost)
		if err != nil {
			return 0, fmt.Errorf("hash password for %s: %w", s.Username, err)
		}
		emp := s.Employee
		emp.PasswordHash = string(hash)
		if err := store.SaveEmployee(ctx, emp); err != nil {
			return 0, fmt.Errorf("seed employee %s: %w", emp.ID, err)
		}
	}
	return len(demoRoster), nil
}
