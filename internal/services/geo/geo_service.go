package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	geocodeCacheTTL    = 24 * time.Hour
	geocodeCachePrefix = "geo:pin:"
	earthRadiusKm      = 6371.0
)

// ErrPincodeNotFound is returned when a pincode cannot be resolved.
var ErrPincodeNotFound = errors.New("pincode not found")

// Location is a resolved Indian pincode
type Location struct {
	Pincode   string  `json:"pincode"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Geocoder resolves pincodes to locations
type Geocoder interface {
	Geocode(ctx context.Context, pincode string) (*Location, error)
}

// HTTPGeocoder resolves pincodes against an external maps API
type HTTPGeocoder struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewHTTPGeocoder creates a geocoder backed by the configured maps provider
func NewHTTPGeocoder(apiKey, baseURL string) *HTTPGeocoder {
	return &HTTPGeocoder{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Geocode looks up a pincode via the maps provider
func (g *HTTPGeocoder) Geocode(ctx context.Context, pincode string) (*Location, error) {
	if g.baseURL == "" {
		return nil, errors.New("maps provider not configured")
	}

	endpoint := fmt.Sprintf("%s/geocode?postal_code=%s&key=%s", g.baseURL, url.QueryEscape(pincode), url.QueryEscape(g.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating geocode request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error calling maps provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPincodeNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("maps provider returned status %d", resp.StatusCode)
	}

	var loc Location
	if err := json.NewDecoder(resp.Body).Decode(&loc); err != nil {
		return nil, fmt.Errorf("error decoding geocode response: %w", err)
	}
	loc.Pincode = pincode
	return &loc, nil
}

// Service resolves pincodes with a redis cache in front of the geocoder
type Service struct {
	geocoder Geocoder
	redis    *redis.Client
}

// NewService creates a geo service
func NewService(geocoder Geocoder, redisClient *redis.Client) *Service {
	return &Service{
		geocoder: geocoder,
		redis:    redisClient,
	}
}

// Resolve returns the location for a pincode, serving from cache when possible
func (s *Service) Resolve(ctx context.Context, pincode string) (*Location, error) {
	pincode = strings.TrimSpace(pincode)
	if len(pincode) != 6 {
		return nil, errors.New("pincode must be 6 digits")
	}
	if _, err := strconv.Atoi(pincode); err != nil {
		return nil, errors.New("pincode must be 6 digits")
	}

	cacheKey := geocodeCachePrefix + pincode
	if s.redis != nil {
		cached, err := s.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var loc Location
			if err := json.Unmarshal([]byte(cached), &loc); err == nil {
				return &loc, nil
			}
		} else if err != redis.Nil {
			log.Printf("Warning: geocode cache read failed for %s: %v", pincode, err)
		}
	}

	loc, err := s.geocoder.Geocode(ctx, pincode)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		data, err := json.Marshal(loc)
		if err == nil {
			if err := s.redis.Set(ctx, cacheKey, data, geocodeCacheTTL).Err(); err != nil {
				log.Printf("Warning: geocode cache write failed for %s: %v", pincode, err)
			}
		}
	}
	return loc, nil
}

// DistanceKm computes the great-circle distance between two pincodes
func (s *Service) DistanceKm(ctx context.Context, fromPincode, toPincode string) (float64, error) {
	from, err := s.Resolve(ctx, fromPincode)
	if err != nil {
		return 0, fmt.Errorf("error resolving origin: %w", err)
	}
	to, err := s.Resolve(ctx, toPincode)
	if err != nil {
		return 0, fmt.Errorf("error resolving destination: %w", err)
	}
	return haversineKm(from.Latitude, from.Longitude, to.Latitude, to.Longitude), nil
}

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
