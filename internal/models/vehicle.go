package models

import (
	"github.com/google/uuid"
)

// VehicleType represents the category of a fleet vehicle
type VehicleType string

const (
	VehicleTypeMiniTruck VehicleType = "mini_truck"
	VehicleTypeTruck     VehicleType = "truck"
	VehicleTypeTrailer   VehicleType = "trailer"
	VehicleTypeTempo     VehicleType = "tempo"
	VehicleTypeContainer VehicleType = "container"
)

// Vehicle represents a fleet vehicle owned by a vendor
type Vehicle struct {
	Base
	VendorID           uuid.UUID   `gorm:"type:uuid;index;not null" json:"vendor_id"`
	Vendor             User        `gorm:"foreignKey:VendorID" json:"-"`
	RegistrationNumber string      `gorm:"type:varchar(20);not null;uniqueIndex" json:"registration_number"`
	Type               VehicleType `gorm:"type:varchar(20);not null" json:"type"`
	Make               string      `gorm:"type:varchar(100)" json:"make"`
	Model              string      `gorm:"type:varchar(100)" json:"model"`
	CapacityKg         int         `gorm:"default:0" json:"capacity_kg"`
	RCVerified         bool        `gorm:"default:false" json:"rc_verified"`
	Active             bool        `gorm:"default:true" json:"active"`
}
