package models

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents the role of a user on the marketplace
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleVendor   UserRole = "vendor"
	UserRoleAdmin    UserRole = "admin"
)

// User represents a registered user (shipper or fleet vendor)
type User struct {
	Base
	Name          string   `gorm:"type:varchar(255);not null" json:"name"`
	Email         string   `gorm:"type:varchar(255);uniqueIndex" json:"email"`
	Phone         string   `gorm:"type:varchar(20);not null;uniqueIndex" json:"phone"`
	Password      string   `gorm:"type:varchar(255)" json:"-"`
	Role          UserRole `gorm:"type:varchar(20);not null;default:'customer'" json:"role"`
	PhoneVerified bool     `gorm:"default:false" json:"phone_verified"`
	KYCVerified   bool     `gorm:"default:false" json:"kyc_verified"`
	// OTPSecret is a per-user base32 secret used to derive one-time codes;
	// OTPCounter advances on every issued code.
	OTPSecret  string     `gorm:"type:varchar(64)" json:"-"`
	OTPCounter uint64     `gorm:"default:0" json:"-"`
	LastLogin  *time.Time `json:"last_login"`
}

// VendorProfile holds fleet-vendor business detail for users with the vendor role
type VendorProfile struct {
	Base
	UserID       uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	User         User      `gorm:"foreignKey:UserID" json:"-"`
	BusinessName string    `gorm:"type:varchar(255);not null" json:"business_name"`
	GSTIN        string    `gorm:"type:varchar(20)" json:"gstin"`
	AddressLine  string    `gorm:"type:varchar(255)" json:"address_line"`
	City         string    `gorm:"type:varchar(100)" json:"city"`
	State        string    `gorm:"type:varchar(100)" json:"state"`
	Pincode      string    `gorm:"type:varchar(10)" json:"pincode"`
	Approved     bool      `gorm:"default:false" json:"approved"`
}

// OTPVerification records a single issued one-time code for phone onboarding
type OTPVerification struct {
	Base
	UserID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"user_id"`
	User       User       `gorm:"foreignKey:UserID" json:"-"`
	Phone      string     `gorm:"type:varchar(20);index;not null" json:"phone"`
	Purpose    string     `gorm:"type:varchar(30);not null" json:"purpose"` // registration, login
	Counter    uint64     `gorm:"not null" json:"-"`
	ExpiresAt  time.Time  `gorm:"not null" json:"expires_at"`
	VerifiedAt *time.Time `json:"verified_at"`
	Attempts   int        `gorm:"default:0" json:"attempts"`
}
