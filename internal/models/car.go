package models

import "time"

// Car is a rentable vehicle. The lifecycle engine reads its rates and
// writes its status on pickup, return and cancellation.
type Car struct {
	ID              string  `json:"id" gorm:"primaryKey"`
	Name            string  `json:"name"`
	RegistrationNo  string  `json:"registration_no" gorm:"uniqueIndex"`
	DailyRate       float64 `json:"daily_rate"`
	InsuranceAmount float64 `json:"insurance_amount"`
	DeliveryCharges float64 `json:"delivery_charges"`
	Status          string  `json:"status" gorm:"index"` // available, rented, maintenance
	ParkingID       string  `json:"parking_id" gorm:"index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Car status constants
const (
	CarStatusAvailable   = "available"
	CarStatusRented      = "rented"
	CarStatusMaintenance = "maintenance"
)

// Parking is a physical lot with assigned staff. Cars are picked up and
// dropped off at a parking; staff approvals are scoped to their parking.
type Parking struct {
	ID      string `json:"id" gorm:"primaryKey"`
	Name    string `json:"name"`
	Address string `json:"address"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
