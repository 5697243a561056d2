package payments

import (
	"context"
	"strings"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"

	"github.com/example/parcel-delivery/internal/models"
)

// StripeProvider is a thin wrapper around stripe-go for PaymentIntent hold/capture/cancel flows.
type StripeProvider struct{}

// NewStripeProvider initializes the stripe client with the given secret key.
func NewStripeProvider(apiKey string) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{}
}

func (s *StripeProvider) Method() models.PaymentMethod { return models.MethodCard }

// Create creates a PaymentIntent with capture_method=manual to hold funds.
// The storefront confirms it with the returned client secret.
func (s *StripeProvider) Create(ctx context.Context, amountMinor int64, currency, reference string) (ProviderOrder, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(strings.ToLower(currency)),
	}
	params.Context = ctx
	params.CaptureMethod = stripe.String(string(stripe.PaymentIntentCaptureMethodManual))
	params.AddMetadata("order_id", reference)
	pi, err := paymentintent.New(params)
	if err != nil {
		return ProviderOrder{}, err
	}
	return ProviderOrder{Ref: pi.ID, Status: string(pi.Status), ClientSecret: pi.ClientSecret}, nil
}

// Capture finalizes a previously-held PaymentIntent.
func (s *StripeProvider) Capture(ctx context.Context, ref string) (Result, error) {
	params := &stripe.PaymentIntentCaptureParams{}
	params.Context = ctx
	pi, err := paymentintent.Capture(ref, params)
	if err != nil {
		return Result{}, err
	}
	return intentResult(pi), nil
}

func (s *StripeProvider) Verify(ctx context.Context, ref string) (Result, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := paymentintent.Get(ref, params)
	if err != nil {
		return Result{}, err
	}
	return intentResult(pi), nil
}

// Cancel releases the hold on a PaymentIntent.
func (s *StripeProvider) Cancel(ctx context.Context, ref string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx
	_, err := paymentintent.Cancel(ref, params)
	return err
}

func intentResult(pi *stripe.PaymentIntent) Result {
	r := Result{
		Ref:       pi.ID,
		Status:    string(pi.Status),
		Completed: pi.Status == stripe.PaymentIntentStatusSucceeded,
		Failed:    pi.Status == stripe.PaymentIntentStatusCanceled,
	}
	if pi.LatestCharge != nil {
		r.TransactionID = pi.LatestCharge.ID
	}
	return r
}
