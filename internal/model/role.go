package model

import "fmt"

// Role is the closed set of user roles. The ordering is total:
// user < moderator < admin. Access checks only ever ask "at least".
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

var roleRanks = map[Role]int{
	RoleUser:      1,
	RoleModerator: 2,
	RoleAdmin:     3,
}

// ParseRole validates a role string read from storage or input.
// Unknown values are a data-integrity error, never rank 0.
func ParseRole(value string) (Role, error) {
	role := Role(value)
	if _, ok := roleRanks[role]; !ok {
		return "", fmt.Errorf("unknown role %q", value)
	}
	return role, nil
}

func (r Role) Rank() int {
	return roleRanks[r]
}

// AtLeast reports whether r ranks at or above required.
func (r Role) AtLeast(required Role) bool {
	return roleRanks[r] >= roleRanks[required]
}
