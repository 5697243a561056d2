package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/example/parcel-delivery/internal/models"
)

// PayPalProvider talks to the PayPal v2 checkout orders API.
type PayPalProvider struct {
	Endpoint string
	ClientID string
	Secret   string
	Client   *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

func NewPayPalProvider(endpoint, clientID, secret string) *PayPalProvider {
	return &PayPalProvider{
		Endpoint: strings.TrimRight(endpoint, "/"),
		ClientID: clientID,
		Secret:   secret,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *PayPalProvider) Method() models.PaymentMethod { return models.MethodPayPal }

// accessToken returns a cached client-credentials token, refreshing it a minute early.
func (p *PayPalProvider) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && time.Now().Before(p.expires) {
		return p.token, nil
	}
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(p.ClientID, p.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := p.send(req, &out); err != nil {
		return "", fmt.Errorf("paypal token: %w", err)
	}
	p.token = out.AccessToken
	p.expires = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - time.Minute)
	return p.token, nil
}

type paypalOrder struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []struct {
		Href string `json:"href"`
		Rel  string `json:"rel"`
	} `json:"links"`
	PurchaseUnits []struct {
		Payments struct {
			Captures []struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"captures"`
		} `json:"payments"`
	} `json:"purchase_units"`
}

func (o paypalOrder) result() Result {
	r := Result{Ref: o.ID, Status: o.Status, Completed: o.Status == "COMPLETED", Failed: o.Status == "VOIDED"}
	for _, pu := range o.PurchaseUnits {
		for _, c := range pu.Payments.Captures {
			r.TransactionID = c.ID
			if c.Status == "DECLINED" || c.Status == "FAILED" {
				r.Failed, r.Completed = true, false
			}
		}
	}
	return r
}

func (p *PayPalProvider) call(ctx context.Context, method, path string, body any, out any) error {
	tok, err := p.accessToken(ctx)
	if err != nil {
		return err
	}
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.Endpoint+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	return p.send(req, out)
}

func (p *PayPalProvider) send(req *http.Request, out any) error {
	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("paypal: %s %s returned %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func formatMinor(minor int64) string {
	return fmt.Sprintf("%d.%02d", minor/100, minor%100)
}

// Create opens a CAPTURE-intent checkout order for the given amount.
func (p *PayPalProvider) Create(ctx context.Context, amountMinor int64, currency, reference string) (ProviderOrder, error) {
	body := map[string]any{
		"intent": "CAPTURE",
		"purchase_units": []map[string]any{{
			"reference_id": reference,
			"description":  "Rocs Crew delivery " + reference,
			"amount":       map[string]string{"currency_code": strings.ToUpper(currency), "value": formatMinor(amountMinor)},
		}},
	}
	var out paypalOrder
	if err := p.call(ctx, http.MethodPost, "/v2/checkout/orders", body, &out); err != nil {
		return ProviderOrder{}, err
	}
	po := ProviderOrder{Ref: out.ID, Status: out.Status}
	for _, l := range out.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			po.ApprovalURL = l.Href
		}
	}
	return po, nil
}

func (p *PayPalProvider) Capture(ctx context.Context, ref string) (Result, error) {
	var out paypalOrder
	if err := p.call(ctx, http.MethodPost, "/v2/checkout/orders/"+url.PathEscape(ref)+"/capture", map[string]any{}, &out); err != nil {
		return Result{}, err
	}
	return out.result(), nil
}

func (p *PayPalProvider) Verify(ctx context.Context, ref string) (Result, error) {
	var out paypalOrder
	if err := p.call(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(ref), nil, &out); err != nil {
		return Result{}, err
	}
	return out.result(), nil
}
