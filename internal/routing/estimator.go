package routing

import (
	"context"
	"log/slog"
	"math"

	"github.com/example/parcel-delivery/internal/geo"
	"github.com/example/parcel-delivery/internal/logging"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/observability"
)

// Road distance is rarely a straight line; city routes run about 30% longer.
const detourFactor = 1.3

const (
	SourceDirections = "directions"
	SourceEstimate   = "great_circle"
	SourceClient     = "client"
	SourceCache      = "cache"
)

// Geocoder is the subset of MapboxClient the estimator needs.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Coord, error)
	DrivingKm(ctx context.Context, from, to geo.Coord) (float64, error)
}

type Estimate struct {
	Km     float64 `json:"distanceKm"`
	Source string  `json:"source"`
}

// Estimator resolves the distance between two addresses.
type Estimator struct {
	geocoder Geocoder
	cache    *Cache
	logger   *slog.Logger
}

// NewEstimator accepts a nil geocoder, in which case callers must supply the distance.
func NewEstimator(g Geocoder, cache *Cache, logger *slog.Logger) *Estimator {
	return &Estimator{geocoder: g, cache: cache, logger: logging.OrDiscard(logger)}
}

func (e *Estimator) Enabled() bool { return e != nil && e.geocoder != nil }

// Distance prefers a client-supplied distance, then the cache, then Mapbox directions,
// and finally the great-circle distance between the geocoded points.
func (e *Estimator) Distance(ctx context.Context, pickup, delivery string, clientKm float64) (Estimate, error) {
	if clientKm > 0 {
		return Estimate{Km: round1(clientKm), Source: SourceClient}, nil
	}
	if !e.Enabled() {
		return Estimate{}, models.NewValidationError("distanceKm is required when route lookup is unavailable", "distanceKm")
	}
	if err := models.RequireFields("pickup", pickup, "delivery", delivery); err != nil {
		return Estimate{}, err
	}
	if e.cache != nil {
		if km, ok := e.cache.Get(pickup, delivery); ok {
			observability.CacheLookups.WithLabelValues("route", "hit").Inc()
			return Estimate{Km: km, Source: SourceCache}, nil
		}
		observability.CacheLookups.WithLabelValues("route", "miss").Inc()
	}

	from, err := e.geocoder.Geocode(ctx, pickup)
	if err != nil {
		e.logger.Warn("geocode_failed", "address", pickup, "error", err)
		return Estimate{}, models.ErrUnavailable
	}
	to, err := e.geocoder.Geocode(ctx, delivery)
	if err != nil {
		e.logger.Warn("geocode_failed", "address", delivery, "error", err)
		return Estimate{}, models.ErrUnavailable
	}

	est := Estimate{Source: SourceDirections}
	km, err := e.geocoder.DrivingKm(ctx, from, to)
	if err != nil || km <= 0 {
		e.logger.Warn("directions_failed", "pickup", pickup, "delivery", delivery, "error", err)
		km = geo.DistanceKm(from, to) * detourFactor
		est.Source = SourceEstimate
	}
	est.Km = round1(math.Max(km, 0.1))
	if e.cache != nil {
		e.cache.Set(pickup, delivery, est.Km)
	}
	return est, nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
