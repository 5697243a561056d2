package pricing

import (
	"errors"
	"testing"

	"github.com/example/parcel-delivery/internal/models"
)

func TestQuote(t *testing.T) {
	c := Calculator{PerKm: 30, Minimum: 200, Currency: "KES"}
	cases := map[float64]float64{
		1:    200, // minimum fare
		6.66: 200,
		7:    210,
		12.4: 370, // 372 rounds down
		12.5: 380, // 375 rounds half up
		40:   1200,
	}
	for km, want := range cases {
		got, err := c.Quote(km)
		if err != nil || got != want {
			t.Fatalf("%.2f km: expected %.0f, got %.0f (%v)", km, want, got, err)
		}
	}
	if _, err := c.Quote(0); !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected validation error for zero distance, got %v", err)
	}
}

func TestSplit(t *testing.T) {
	commission, net := Split(450, 0.2)
	if commission != 90 || net != 360 {
		t.Fatalf("unexpected split %v/%v", commission, net)
	}
}
