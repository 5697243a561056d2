package matcher

import (
	"context"
	"testing"

	"github.com/example/parcel-delivery/internal/models"
)

func rider(id, area string, rating float64, deliveries int) *models.Rider {
	return &models.Rider{ID: id, Area: area, Rating: rating, TotalDeliveries: deliveries, Status: models.RiderApproved, IsActive: true}
}

func TestPrefersRiderServingPickupArea(t *testing.T) {
	order := &models.Order{Pickup: "Sarit Centre, Westlands"}
	cands := []Candidate{
		{Rider: rider("RD-001", "Karen", 5, 100)},
		{Rider: rider("RD-002", "CBD, Westlands", 3, 1), OpenOrders: 2},
	}
	got, ok := AreaPolicy{}.Pick(context.Background(), order, cands)
	if !ok || got.ID != "RD-002" {
		t.Fatalf("expected RD-002, got %+v", got)
	}
}

func TestPrefersLowerLoadThenHigherRating(t *testing.T) {
	order := &models.Order{Pickup: "Kilimani"}
	cands := []Candidate{
		{Rider: rider("RD-001", "Kilimani", 5, 10), OpenOrders: 1},
		{Rider: rider("RD-002", "Kilimani", 4, 10)},
		{Rider: rider("RD-003", "Kilimani", 4.5, 10)},
	}
	got, _ := AreaPolicy{}.Pick(context.Background(), order, cands)
	if got.ID != "RD-003" {
		t.Fatalf("expected RD-003, got %s", got.ID)
	}
}

func TestSkipsUnavailableAndReportsNone(t *testing.T) {
	off := rider("RD-001", "CBD", 5, 1)
	off.IsActive = false
	pending := rider("RD-002", "CBD", 5, 1)
	pending.Status = models.RiderPending
	_, ok := AreaPolicy{}.Pick(context.Background(), &models.Order{Pickup: "CBD"}, []Candidate{{Rider: off}, {Rider: pending}})
	if ok {
		t.Fatalf("expected no pick")
	}
}

func TestDeterministicTieBreak(t *testing.T) {
	cands := []Candidate{{Rider: rider("RD-009", "", 0, 0)}, {Rider: rider("RD-002", "", 0, 0)}}
	got, _ := AreaPolicy{}.Pick(context.Background(), &models.Order{Pickup: "x"}, cands)
	if got.ID != "RD-002" {
		t.Fatalf("expected lowest id, got %s", got.ID)
	}
}
