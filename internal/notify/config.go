package notify

import "github.com/example/parcel-delivery/internal/config"

// BrandFor is DefaultBrand with the configured currency and per-km rate.
func BrandFor(p config.PricingConfig) Brand {
	b := DefaultBrand()
	if p.Currency != "" {
		b.Currency = p.Currency
	}
	if p.PricePerKm > 0 {
		b.PricePerKm = p.PricePerKm
	}
	return b
}

func SMTPConfigFrom(c config.SMTPConfig) SMTPConfig {
	return SMTPConfig{Host: c.Host, Port: c.Port, Username: c.Username, Password: c.Password, From: c.From}
}
