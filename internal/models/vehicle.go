package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
	"time"
)

// Vehicle represents a fleet vehicle.
type Vehicle struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                string             `bson:"name" json:"name" validate:"required,max=80"`
	Plate               string             `bson:"plate" json:"plate" validate:"max=20"`
	Type                string             `bson:"type" json:"type" validate:"omitempty,oneof=truck trailer van"`
	Make                string             `bson:"make" json:"make"`
	Model               string             `bson:"model" json:"model"`
	Year                int                `bson:"year" json:"year" validate:"omitempty,gte=1950,lte=2100"`
	DriverID            string             `bson:"driver_id,omitempty" json:"driver_id,omitempty"`
	CurrentMileage      int                `bson:"current_mileage" json:"current_mileage" validate:"gte=0"` // in kilometers
	RegistrationMileage int                `bson:"registration_mileage" json:"registration_mileage" validate:"gte=0"`
	RegistrationDate    time.Time          `bson:"registration_date" json:"registration_date"`
	Status              string             `bson:"status" json:"status"` // "active" or "inactive"
	CreatedAt           time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt           time.Time          `bson:"updated_at" json:"updated_at"`
}

// Baseline returns the mileage and date a vehicle's first service interval is measured from.
// The registration date falls back to the creation time for vehicles imported without one.
func (v *Vehicle) Baseline() (int, time.Time) {
	date := v.RegistrationDate
	if date.IsZero() {
		date = v.CreatedAt
	}
	return v.RegistrationMileage, date
}
