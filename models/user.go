package models

// UserRole - роль из JWT. Учётные записи ведёт внешний сервис.
type UserRole string

const (
	RolePlayer UserRole = "player"
	RoleAdmin  UserRole = "admin"
)

func (r UserRole) Valid() bool {
	return r == RolePlayer || r == RoleAdmin
}
