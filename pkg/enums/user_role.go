package enums

import "fmt"

// UserRole is the platform role carried in access tokens.
type UserRole string

const (
	UserRoleArtist UserRole = "artist"
	UserRoleAdmin  UserRole = "admin"
)

// String implements fmt.Stringer.
func (r UserRole) String() string {
	return string(r)
}

// IsValid reports whether the value is a known UserRole.
func (r UserRole) IsValid() bool {
	return r == UserRoleArtist || r == UserRoleAdmin
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	r := UserRole(value)
	if !r.IsValid() {
		return "", fmt.Errorf("invalid user role %q", value)
	}
	return r, nil
}
