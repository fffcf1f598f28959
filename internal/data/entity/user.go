package entity

type UserRole string

const (
	RoleCustomer UserRole = "customer"
	RoleStaff    UserRole = "staff"
	RoleAdmin    UserRole = "admin"
)

// User is the read-only projection of an account used for billing contacts.
type User struct {
	BaseNoDelete
	Name  string   `db:"name"`
	Email string   `db:"email"`
	Phone *string  `db:"phone"`
	Role  UserRole `db:"role"`
}
