package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/truckmitra/backend/internal/models"
	"github.com/truckmitra/backend/internal/services/fleet"
)

// VehicleHandler handles vendor fleet management
type VehicleHandler struct {
	fleetSvc *fleet.Service
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(fleetSvc *fleet.Service) *VehicleHandler {
	return &VehicleHandler{fleetSvc: fleetSvc}
}

// AddVehicleRequest represents the request body for registering a vehicle
type AddVehicleRequest struct {
	RegistrationNumber string `json:"registration_number" binding:"required"`
	Type               string `json:"type" binding:"required,oneof=mini_truck truck trailer tempo container"`
	Make               string `json:"make"`
	Model              string `json:"model"`
	CapacityKg         int    `json:"capacity_kg" binding:"omitempty,min=0"`
}

// UpdateVehicleRequest represents the request body for updating a vehicle
type UpdateVehicleRequest struct {
	Make       *string `json:"make"`
	Model      *string `json:"model"`
	CapacityKg *int    `json:"capacity_kg"`
	Active     *bool   `json:"active"`
}

// AddVehicle registers a vehicle under the authenticated vendor
func (h *VehicleHandler) AddVehicle(c *gin.Context) {
	vendorID := currentUserID(c)

	var req AddVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vehicle, err := h.fleetSvc.AddVehicle(vendorID, req.RegistrationNumber, models.VehicleType(req.Type), req.Make, req.Model, req.CapacityKg)
	if err != nil {
		if errors.Is(err, fleet.ErrDuplicateRegistration) {
			c.JSON(http.StatusConflict, gin.H{"error": "Registration number already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add vehicle"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"vehicle": vehicle})
}

// ListVehicles lists the authenticated vendor's vehicles
func (h *VehicleHandler) ListVehicles(c *gin.Context) {
	vendorID := currentUserID(c)

	vehicles, err := h.fleetSvc.VendorVehicles(vendorID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vehicles"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"vehicles": vehicles})
}

// UpdateVehicle applies updates to a vehicle
func (h *VehicleHandler) UpdateVehicle(c *gin.Context) {
	vendorID := currentUserID(c)

	vehicleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle id"})
		return
	}

	var req UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updates := map[string]interface{}{}
	if req.Make != nil {
		updates["make"] = *req.Make
	}
	if req.Model != nil {
		updates["model"] = *req.Model
	}
	if req.CapacityKg != nil {
		updates["capacity_kg"] = *req.CapacityKg
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No updates provided"})
		return
	}

	vehicle, err := h.fleetSvc.UpdateVehicle(vendorID, vehicleID, updates)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"vehicle": vehicle})
}

// RemoveVehicle soft-deletes a vehicle
func (h *VehicleHandler) RemoveVehicle(c *gin.Context) {
	vendorID := currentUserID(c)

	vehicleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicle id"})
		return
	}

	if err := h.fleetSvc.RemoveVehicle(vendorID, vehicleID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Vehicle removed"})
}
