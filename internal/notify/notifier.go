package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/example/parcel-delivery/internal/logging"
	"github.com/example/parcel-delivery/internal/models"
	"github.com/example/parcel-delivery/internal/observability"
)

const (
	KindReceipt     = "receipt"
	KindAdminNotice = "admin_notice"
	KindEarnings    = "earnings_statement"
	KindPartnership = "partnership_notice"
)

// Notifier renders and sends the business emails. Background sends never
// fail the operation that triggered them; failures are logged and counted.
type Notifier struct {
	renderer   *Renderer
	sender     Sender
	adminEmail string
	timeout    time.Duration
	logger     *slog.Logger
	wg         sync.WaitGroup
}

func NewNotifier(r *Renderer, s Sender, adminEmail string, timeout time.Duration, logger *slog.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{renderer: r, sender: s, adminEmail: adminEmail, timeout: timeout, logger: logging.OrDiscard(logger)}
}

func (n *Notifier) deliver(ctx context.Context, kind string, to string, e Email) error {
	err := n.sender.Send(ctx, Envelope{Kind: kind, To: []string{to}, Email: e})
	observability.EmailsSent.WithLabelValues(kind, observability.Result(err)).Inc()
	return err
}

// background runs fn detached from the request with its own timeout.
func (n *Notifier) background(kind, ref string, fn func(ctx context.Context) error) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			n.logger.Error("email delivery failed", "kind", kind, "ref", ref, "error", err)
		}
	}()
}

// Wait blocks until in-flight background sends finish.
func (n *Notifier) Wait() { n.wg.Wait() }

// ReceiptNow renders and sends the customer receipt synchronously.
func (n *Notifier) ReceiptNow(ctx context.Context, o *models.Order) error {
	e, err := n.renderer.RenderReceipt(o)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	return n.deliver(ctx, KindReceipt, o.CustomerEmail, e)
}

// Receipt sends the customer receipt in the background.
func (n *Notifier) Receipt(o *models.Order) {
	o = o.Clone()
	n.background(KindReceipt, o.ID, func(ctx context.Context) error {
		e, err := n.renderer.RenderReceipt(o)
		if err != nil {
			return err
		}
		return n.deliver(ctx, KindReceipt, o.CustomerEmail, e)
	})
}

// OrderConfirmed sends the receipt to the customer and a notice to the admin.
func (n *Notifier) OrderConfirmed(o *models.Order) {
	o = o.Clone()
	n.Receipt(o)
	if n.adminEmail == "" {
		return
	}
	n.background(KindAdminNotice, o.ID, func(ctx context.Context) error {
		e, err := n.renderer.RenderAdminNotice(o)
		if err != nil {
			return err
		}
		return n.deliver(ctx, KindAdminNotice, n.adminEmail, e)
	})
}

func (n *Notifier) DeliveryEarnings(r *models.Rider, e models.Earning) {
	r = r.Clone()
	at := time.Now()
	n.background(KindEarnings, e.OrderID, func(ctx context.Context) error {
		mail, err := n.renderer.RenderEarningsStatement(r, e, at)
		if err != nil {
			return err
		}
		return n.deliver(ctx, KindEarnings, r.Email, mail)
	})
}

func (n *Notifier) PartnershipReceived(p *models.PartnershipRequest) {
	if n.adminEmail == "" {
		return
	}
	req := *p
	n.background(KindPartnership, req.ID, func(ctx context.Context) error {
		e, err := n.renderer.RenderPartnershipNotice(&req)
		if err != nil {
			return err
		}
		return n.deliver(ctx, KindPartnership, n.adminEmail, e)
	})
}
