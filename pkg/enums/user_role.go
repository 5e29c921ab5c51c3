package enums

// UserRole maps to the user_role enum in Postgres and the role JWT claim.
type UserRole string

const (
	UserRoleBusiness  UserRole = "business"
	UserRoleRecipient UserRole = "recipient"
	UserRoleDriver    UserRole = "driver"
	UserRoleAdmin     UserRole = "admin"
)

var validUserRoles = []UserRole{
	UserRoleBusiness,
	UserRoleRecipient,
	UserRoleDriver,
	UserRoleAdmin,
}

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsValid() bool {
	return member(r, validUserRoles)
}

func ParseUserRole(value string) (UserRole, error) {
	return parse(value, "user role", validUserRoles)
}
