package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/example/parcel-delivery/internal/models"
)

// Email is a rendered message, independent of how it is delivered.
type Email struct {
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	Text    string `json:"text"`
}

// Brand holds the company details printed on every email.
type Brand struct {
	Name         string
	Tagline      string
	SupportEmail string
	SupportPhone string
	Currency     string
	PricePerKm   float64
}

func DefaultBrand() Brand {
	return Brand{
		Name:         "Rocs Crew",
		Tagline:      "Fast, Reliable Motorcycle Delivery Service",
		SupportEmail: "support@rocscrew.co.ke",
		SupportPhone: "+254 712 345 678",
		Currency:     "KES",
		PricePerKm:   30,
	}
}

var nairobi = time.FixedZone("EAT", 3*60*60)

var funcs = map[string]any{
	"money":       func(cur string, v float64) string { return fmt.Sprintf("%s %.2f", cur, v) },
	"km":          func(v float64) string { return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".") },
	"percent":     func(v float64) string { return fmt.Sprintf("%.0f%%", v*100) },
	"localTime":   func(t time.Time) string { return t.In(nairobi).Format("2 January 2006, 15:04") },
	"statusLabel": func(s models.OrderStatus) string { return strings.ToUpper(strings.ReplaceAll(string(s), "_", " ")) },
}

type pair struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

func mustPair(name, htmlContent, textBody string) pair {
	h := htmltemplate.Must(htmltemplate.New(name).Funcs(htmltemplate.FuncMap(funcs)).Parse(layoutHTML))
	h = htmltemplate.Must(h.Parse(htmlContent))
	t := texttemplate.Must(texttemplate.New(name).Funcs(texttemplate.FuncMap(funcs)).Parse(textBody))
	return pair{html: h, text: t}
}

// Renderer produces emails. HTML bodies go through html/template, so every
// customer-supplied field is escaped.
type Renderer struct {
	brand       Brand
	receipt     pair
	adminNotice pair
	earnings    pair
	partnership pair
}

func NewRenderer(b Brand) *Renderer {
	return &Renderer{
		brand:       b,
		receipt:     mustPair("receipt", receiptHTML, receiptText),
		adminNotice: mustPair("admin", adminNoticeHTML, adminNoticeText),
		earnings:    mustPair("earnings", earningsHTML, earningsText),
		partnership: mustPair("partnership", partnershipHTML, partnershipText),
	}
}

func (r *Renderer) render(p pair, subject string, data map[string]any) (Email, error) {
	data["Brand"] = r.brand
	var hb, tb bytes.Buffer
	if err := p.html.ExecuteTemplate(&hb, "layout", data); err != nil {
		return Email{}, fmt.Errorf("render html: %w", err)
	}
	if err := p.text.Execute(&tb, data); err != nil {
		return Email{}, fmt.Errorf("render text: %w", err)
	}
	return Email{Subject: headerSafe(subject), HTML: hb.String(), Text: tb.String()}, nil
}

// RenderReceipt is the customer receipt for a confirmed or paid order.
func (r *Renderer) RenderReceipt(o *models.Order) (Email, error) {
	headline := "Your delivery order has been confirmed!"
	if o.PaymentStatus == models.PaymentPaid {
		headline = "Payment confirmed. Thank you!"
	}
	return r.render(r.receipt, fmt.Sprintf("Order Confirmed - Receipt for %s | %s", o.ID, r.brand.Name), map[string]any{
		"Title":          "Delivery Receipt",
		"Order":          o,
		"Headline":       headline,
		"DistanceCharge": o.Distance * r.brand.PricePerKm,
	})
}

func (r *Renderer) RenderAdminNotice(o *models.Order) (Email, error) {
	return r.render(r.adminNotice, fmt.Sprintf("Order Confirmed - %s | Admin Notification", o.ID), map[string]any{
		"Title": "Admin Notification",
		"Order": o,
	})
}

func (r *Renderer) RenderEarningsStatement(rd *models.Rider, e models.Earning, at time.Time) (Email, error) {
	return r.render(r.earnings, fmt.Sprintf("Earnings Statement - %s | %s", e.OrderID, r.brand.Name), map[string]any{
		"Title":   "Rider Earnings Statement",
		"Rider":   rd,
		"Earning": e,
		"At":      at,
	})
}

func (r *Renderer) RenderPartnershipNotice(p *models.PartnershipRequest) (Email, error) {
	return r.render(r.partnership, fmt.Sprintf("New Partnership Request - %s | %s", p.CompanyName, r.brand.Name), map[string]any{
		"Title":   "Partnership Request",
		"Request": p,
	})
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
