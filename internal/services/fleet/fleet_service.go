package fleet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/truckmitra/backend/internal/models"
	"gorm.io/gorm"
)

// ErrDuplicateRegistration is returned when a vehicle registration number is
// already on the marketplace.
var ErrDuplicateRegistration = errors.New("vehicle registration number already exists")

// Service handles vendor fleet management
type Service struct {
	db *gorm.DB
}

// NewService creates a fleet service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// AddVehicle registers a vehicle under a vendor
func (s *Service) AddVehicle(vendorID uuid.UUID, regNumber string, vtype models.VehicleType, vehicleMake, vehicleModel string, capacityKg int) (*models.Vehicle, error) {
	regNumber = strings.ToUpper(strings.ReplaceAll(regNumber, " ", ""))

	var existing models.Vehicle
	err := s.db.First(&existing, "registration_number = ?", regNumber).Error
	if err == nil {
		return nil, ErrDuplicateRegistration
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error checking registration: %w", err)
	}

	vehicle := models.Vehicle{
		VendorID:           vendorID,
		RegistrationNumber: regNumber,
		Type:               vtype,
		Make:               vehicleMake,
		Model:              vehicleModel,
		CapacityKg:         capacityKg,
		Active:             true,
	}
	if err := s.db.Create(&vehicle).Error; err != nil {
		return nil, fmt.Errorf("error creating vehicle: %w", err)
	}
	return &vehicle, nil
}

// VendorVehicles lists a vendor's vehicles
func (s *Service) VendorVehicles(vendorID uuid.UUID) ([]models.Vehicle, error) {
	var vehicles []models.Vehicle
	if err := s.db.Where("vendor_id = ?", vendorID).Order("created_at DESC").Find(&vehicles).Error; err != nil {
		return nil, fmt.Errorf("error listing vehicles: %w", err)
	}
	return vehicles, nil
}

// UpdateVehicle applies updates to a vehicle owned by the vendor
func (s *Service) UpdateVehicle(vendorID, vehicleID uuid.UUID, updates map[string]interface{}) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := s.db.First(&vehicle, "id = ? AND vendor_id = ?", vehicleID, vendorID).Error; err != nil {
		return nil, fmt.Errorf("error finding vehicle: %w", err)
	}

	if err := s.db.Model(&vehicle).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("error updating vehicle: %w", err)
	}
	return &vehicle, nil
}

// RemoveVehicle soft-deletes a vehicle owned by the vendor
func (s *Service) RemoveVehicle(vendorID, vehicleID uuid.UUID) error {
	result := s.db.Delete(&models.Vehicle{}, "id = ? AND vendor_id = ?", vehicleID, vendorID)
	if result.Error != nil {
		return fmt.Errorf("error deleting vehicle: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.New("vehicle not found or not owned by vendor")
	}
	return nil
}
