package models

import "time"

// User is a customer, staff member (PIC) or admin. Staff carry the parking
// they are responsible for; approvals and handovers are scoped to it.
type User struct {
	ID        string `json:"id" gorm:"primaryKey"`
	Name      string `json:"name"`
	Phone     string `json:"phone" gorm:"uniqueIndex"`
	Role      string `json:"role" gorm:"index"`
	ParkingID string `json:"parking_id,omitempty"` // staff assignment
	Verified  bool   `json:"verified"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Role constants
const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
	RoleAdmin    = "admin"
)

// IsStaff reports whether the user may perform on-site staff actions.
func (u *User) IsStaff() bool {
	return u.Role == RoleStaff || u.Role == RoleAdmin
}
