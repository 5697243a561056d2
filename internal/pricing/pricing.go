package pricing

import (
	"math"

	"github.com/example/parcel-delivery/internal/models"
)

// Calculator prices a delivery from its road distance.
type Calculator struct {
	PerKm    float64
	Minimum  float64
	Currency string
}

// Quote applies the per-km rate, lifts the result to the minimum fare and
// rounds to the nearest 10.
func (c Calculator) Quote(distanceKm float64) (float64, error) {
	if distanceKm <= 0 || math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) {
		return 0, models.NewValidationError("distance must be a positive number of kilometres", "distanceKm")
	}
	price := math.Max(distanceKm*c.PerKm, c.Minimum)
	return math.Round(price/10) * 10, nil
}

// Split divides a delivered order's cost between rider and company.
func Split(gross, commissionRate float64) (commission, net float64) {
	commission = math.Round(gross*commissionRate*100) / 100
	return commission, gross - commission
}
