package payments

import (
	"context"

	"github.com/example/parcel-delivery/internal/models"
)

// ProviderOrder is what the storefront needs to let the customer approve a payment.
type ProviderOrder struct {
	Ref          string `json:"id"`
	Status       string `json:"status"`
	ApprovalURL  string `json:"approvalUrl,omitempty"`
	ClientSecret string `json:"clientSecret,omitempty"`
}

// Result is the provider's view of a payment after capture or lookup.
type Result struct {
	Ref           string
	Status        string
	TransactionID string
	Completed     bool
	Failed        bool
}

// Provider is a card or wallet processor. Amounts are in minor units of currency.
type Provider interface {
	Method() models.PaymentMethod
	Create(ctx context.Context, amountMinor int64, currency, reference string) (ProviderOrder, error)
	Capture(ctx context.Context, ref string) (Result, error)
	Verify(ctx context.Context, ref string) (Result, error)
}

// Canceler is implemented by providers that can release an uncaptured hold.
type Canceler interface {
	Cancel(ctx context.Context, ref string) error
}
