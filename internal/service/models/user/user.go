package user

// RoleAdmin is the role allowed to override orders and push catalog changes.
const RoleAdmin = "ADMIN"

// User is the authenticated caller as read from the access token.
type User struct {
	ID   int64  `json:"id"`
	Role string `json:"role"`
}

// IsAdmin is safe on a nil receiver.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IDPtr returns nil for anonymous callers.
func (u *User) IDPtr() *int64 {
	if u == nil {
		return nil
	}
	id := u.ID

	return &id
}
