package enums

type Privilege string

const (
	PrivilegeAdmin    Privilege = "admin"
	PrivilegeNotAdmin Privilege = "not_admin"
	PrivilegeUnknown  Privilege = "unknown"
)

// Granted collapses the tri-state to a decision. Unknown means least privilege.
func (p Privilege) Granted() bool {
	return p == PrivilegeAdmin
}

// ErrorClass groups platform failures by how the caller should react.
type ErrorClass string

const (
	ErrorClassNone       ErrorClass = "none"
	ErrorClassPermission ErrorClass = "permission"
	ErrorClassPermanent  ErrorClass = "permanent"
	ErrorClassTransient  ErrorClass = "transient"
)

// Final reports whether retrying the same call can never succeed.
func (c ErrorClass) Final() bool {
	return c == ErrorClassPermission || c == ErrorClassPermanent
}
