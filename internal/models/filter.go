package models

import "time"

// DateRange is an inclusive time window. A zero bound is open.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range.
func (d DateRange) Contains(t time.Time) bool {
	if !d.Start.IsZero() && t.Before(d.Start) {
		return false
	}
	if !d.End.IsZero() && t.After(d.End) {
		return false
	}
	return true
}

// RecordFilter selects maintenance records. Empty fields do not filter.
type RecordFilter struct {
	Status    *RecordStatus `json:"status,omitempty"`
	VehicleID string        `json:"vehicle_id,omitempty"`
	DriverID  string        `json:"driver_id,omitempty"`
	// VehicleIDs restricts to a vehicle set; the service fills it from DriverID.
	VehicleIDs []string   `json:"-"`
	DateRange  *DateRange `json:"date_range,omitempty"`
}

// VehicleFilter selects vehicles. Empty fields do not filter.
type VehicleFilter struct {
	DriverID string `json:"driver_id,omitempty"`
	Status   string `json:"status,omitempty"`
}
