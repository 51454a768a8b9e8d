package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/truckmitra/backend/internal/services/geo"
)

// GeoHandler handles pincode resolution and distance queries
type GeoHandler struct {
	geoSvc *geo.Service
}

// NewGeoHandler creates a new geo handler
func NewGeoHandler(geoSvc *geo.Service) *GeoHandler {
	return &GeoHandler{geoSvc: geoSvc}
}

// Geocode resolves a pincode to a location
func (h *GeoHandler) Geocode(c *gin.Context) {
	pincode := c.Param("pincode")

	loc, err := h.geoSvc.Resolve(c.Request.Context(), pincode)
	if err != nil {
		if errors.Is(err, geo.ErrPincodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Pincode not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"location": loc})
}

// Distance returns the great-circle distance between two pincodes
func (h *GeoHandler) Distance(c *gin.Context) {
	from := c.Query("from")
	to := c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to pincodes required"})
		return
	}

	km, err := h.geoSvc.DistanceKm(c.Request.Context(), from, to)
	if err != nil {
		if errors.Is(err, geo.ErrPincodeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Pincode not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"from":        from,
		"to":          to,
		"distance_km": km,
	})
}
