package geo

import (
	"math"
	"testing"
)

func TestHaversineZero(t *testing.T) {
	d := Haversine(0, 0, 0, 0)
	if d != 0 {
		t.Fatalf("expected 0, got %f", d)
	}
}

func TestDistanceKmAcrossNairobi(t *testing.T) {
	// CBD to JKIA is about 12 km in a straight line
	jkia := Coord{Lat: -1.3192, Lon: 36.9278}
	d := DistanceKm(Nairobi, jkia)
	if math.Abs(d-12.2) > 1.0 {
		t.Fatalf("unexpected distance %.2f km", d)
	}
}
