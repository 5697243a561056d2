package matcher

import (
	"context"
	"sort"
	"strings"

	"github.com/example/parcel-delivery/internal/models"
)

// Candidate is an assignable rider together with how many orders they are working.
type Candidate struct {
	Rider      *models.Rider
	OpenOrders int
}

// Policy chooses a rider for a newly confirmed order.
type Policy interface {
	Name() string
	Pick(ctx context.Context, order *models.Order, candidates []Candidate) (*models.Rider, bool)
}

// AreaPolicy prefers riders whose declared service area appears in the pickup
// address, then the least loaded, then the best rated and most experienced.
// Ties fall back to rider id so the choice is deterministic.
type AreaPolicy struct{}

func (AreaPolicy) Name() string { return "area" }

func (AreaPolicy) Pick(ctx context.Context, order *models.Order, candidates []Candidate) (*models.Rider, bool) {
	type scored struct {
		c      Candidate
		inArea bool
	}
	pickup := strings.ToLower(order.Pickup)
	list := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		if c.Rider == nil || !c.Rider.Available() {
			continue
		}
		list = append(list, scored{c: c, inArea: servesArea(pickup, c.Rider.Area)})
	}
	if len(list) == 0 {
		return nil, false
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.inArea != b.inArea {
			return a.inArea
		}
		if a.c.OpenOrders != b.c.OpenOrders {
			return a.c.OpenOrders < b.c.OpenOrders
		}
		if a.c.Rider.Rating != b.c.Rider.Rating {
			return a.c.Rider.Rating > b.c.Rider.Rating
		}
		if a.c.Rider.TotalDeliveries != b.c.Rider.TotalDeliveries {
			return a.c.Rider.TotalDeliveries > b.c.Rider.TotalDeliveries
		}
		return a.c.Rider.ID < b.c.Rider.ID
	})
	return list[0].c.Rider, true
}

// servesArea matches any comma or slash separated area token against the address.
func servesArea(pickup, area string) bool {
	for _, tok := range strings.FieldsFunc(strings.ToLower(area), func(r rune) bool { return r == ',' || r == '/' || r == ';' }) {
		tok = strings.TrimSpace(tok)
		if tok != "" && strings.Contains(pickup, tok) {
			return true
		}
	}
	return false
}
