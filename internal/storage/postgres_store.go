package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/example/parcel-delivery/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// DB exposes the pool for migrations and readiness probes.
func (p *PostgresStore) DB() *sql.DB { return p.db }

func (p *PostgresStore) Close() error { return p.db.Close() }

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s (%s): %w", what, pqErr.Constraint, models.ErrConflict)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func nextSeq(ctx context.Context, q querier, seq string) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx, "SELECT nextval('"+seq+"')").Scan(&n)
	return n, err
}

func expectAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, models.ErrNotFound)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time
	return &t
}

// runUpdate locks one row, applies fn and persists through save, all in one transaction.
func runUpdate[T any](ctx context.Context, p *PostgresStore, what string,
	load func(tx *sql.Tx) (T, error), fn UpdateFunc[T], save func(tx *sql.Tx, v T) error) (T, error) {
	var out T
	err := p.inTx(ctx, func(tx *sql.Tx) error {
		v, err := load(tx)
		if err != nil {
			return mapErr(err, what)
		}
		out = v
		if err := fn(v); err != nil {
			return err
		}
		return save(tx, v)
	})
	if errors.Is(err, ErrSkip) {
		return out, nil
	}
	var zero T
	if err != nil {
		return zero, err
	}
	return out, nil
}

// orders

const orderColumns = `id, customer_name, customer_email, customer_phone, pickup, delivery, distance_km, cost,
	package_details, notes, status, payment_status, payment_method, payment_reference, paid_at,
	rider_id, rider_name, rider_phone, estimated_delivery, delivered_at, created_at, updated_at`

func scanOrder(s scanner) (*models.Order, error) {
	var o models.Order
	var paidAt, deliveredAt sql.NullTime
	err := s.Scan(&o.ID, &o.CustomerName, &o.CustomerEmail, &o.CustomerPhone, &o.Pickup, &o.Delivery,
		&o.Distance, &o.Cost, &o.PackageDetails, &o.Notes, &o.Status, &o.PaymentStatus, &o.PaymentMethod,
		&o.PaymentReference, &paidAt, &o.RiderID, &o.RiderName, &o.RiderPhone, &o.EstimatedDelivery,
		&deliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.PaidAt = timePtr(paidAt)
	o.DeliveredAt = timePtr(deliveredAt)
	return &o, nil
}

func loadHistory(ctx context.Context, q querier, orders ...*models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*models.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	rows, err := q.QueryContext(ctx, `SELECT order_id, status, description, created_at
		FROM order_status_history WHERE order_id = ANY($1) ORDER BY order_id, position`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var ev models.StatusEvent
		if err := rows.Scan(&id, &ev.Status, &ev.Description, &ev.Timestamp); err != nil {
			return err
		}
		if o := byID[id]; o != nil {
			o.StatusHistory = append(o.StatusHistory, ev)
		}
	}
	return rows.Err()
}

func insertHistory(ctx context.Context, q querier, o *models.Order, from int) error {
	for i := from; i < len(o.StatusHistory); i++ {
		ev := o.StatusHistory[i]
		if _, err := q.ExecContext(ctx, `INSERT INTO order_status_history(order_id, position, status, description, created_at)
			VALUES($1,$2,$3,$4,$5)`, o.ID, i, ev.Status, ev.Description, ev.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresStore) CreateOrder(ctx context.Context, o *models.Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	return p.inTx(ctx, func(tx *sql.Tx) error {
		seq, err := nextSeq(ctx, tx, "order_seq")
		if err != nil {
			return err
		}
		o.ID = models.FormatOrderID(o.CreatedAt.Year(), seq)
		_, err = tx.ExecContext(ctx, `INSERT INTO orders(seq, `+orderColumns+`)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23)`,
			seq, o.ID, o.CustomerName, o.CustomerEmail, o.CustomerPhone, o.Pickup, o.Delivery, o.Distance, o.Cost,
			o.PackageDetails, o.Notes, o.Status, o.PaymentStatus, o.PaymentMethod, o.PaymentReference, nullTime(o.PaidAt),
			o.RiderID, o.RiderName, o.RiderPhone, o.EstimatedDelivery, nullTime(o.DeliveredAt), o.CreatedAt, o.UpdatedAt)
		if err != nil {
			return mapErr(err, "insert order")
		}
		return insertHistory(ctx, tx, o, 0)
	})
}

func (p *PostgresStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	o, err := scanOrder(p.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "order "+id)
	}
	if err := loadHistory(ctx, p.db, o); err != nil {
		return nil, err
	}
	return o, nil
}

func (p *PostgresStore) ListOrders(ctx context.Context, f OrderFilter) ([]*models.Order, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}
	if f.Status != "" {
		add("status = ?", f.Status)
	}
	if f.RiderID != "" {
		add("rider_id = ?", f.RiderID)
	}
	if f.CustomerEmail != "" {
		add("lower(customer_email) = ?", models.NormalizeEmail(f.CustomerEmail))
	}
	if f.OpenOnly {
		where = append(where, "status IN ('confirmed','picked_up','in_transit')")
	}
	q := `SELECT ` + orderColumns + ` FROM orders`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY seq DESC"
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := loadHistory(ctx, p.db, out...); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *PostgresStore) UpdateOrder(ctx context.Context, id string, fn UpdateFunc[*models.Order]) (*models.Order, error) {
	var before int
	load := func(tx *sql.Tx) (*models.Order, error) {
		o, err := scanOrder(tx.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return nil, err
		}
		if err := loadHistory(ctx, tx, o); err != nil {
			return nil, err
		}
		before = len(o.StatusHistory)
		return o, nil
	}
	save := func(tx *sql.Tx, o *models.Order) error {
		_, err := tx.ExecContext(ctx, `UPDATE orders SET customer_name=$2, customer_email=$3, customer_phone=$4,
			pickup=$5, delivery=$6, distance_km=$7, cost=$8, package_details=$9, notes=$10, status=$11,
			payment_status=$12, payment_method=$13, payment_reference=$14, paid_at=$15, rider_id=$16,
			rider_name=$17, rider_phone=$18, estimated_delivery=$19, delivered_at=$20, updated_at=$21
			WHERE id=$1`,
			o.ID, o.CustomerName, o.CustomerEmail, o.CustomerPhone, o.Pickup, o.Delivery, o.Distance, o.Cost,
			o.PackageDetails, o.Notes, o.Status, o.PaymentStatus, o.PaymentMethod, o.PaymentReference,
			nullTime(o.PaidAt), o.RiderID, o.RiderName, o.RiderPhone, o.EstimatedDelivery, nullTime(o.DeliveredAt), o.UpdatedAt)
		if err != nil {
			return err
		}
		return insertHistory(ctx, tx, o, before)
	}
	return runUpdate(ctx, p, "order "+id, load, fn, save)
}

func (p *PostgresStore) DeleteOrder(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, "order "+id)
}

// riders

const riderColumns = `id, account_id, full_name, email, phone, national_id, motorcycle, experience, area,
	motivation, status, is_active, rating, total_deliveries, total_earnings, balance, joined_at, updated_at`

func scanRider(s scanner) (*models.Rider, error) {
	var r models.Rider
	err := s.Scan(&r.ID, &r.AccountID, &r.FullName, &r.Email, &r.Phone, &r.NationalID, &r.Motorcycle,
		&r.Experience, &r.Area, &r.Motivation, &r.Status, &r.IsActive, &r.Rating, &r.TotalDeliveries,
		&r.TotalEarnings, &r.Balance, &r.JoinedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *PostgresStore) CreateRider(ctx context.Context, r *models.Rider) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		seq, err := nextSeq(ctx, tx, "rider_seq")
		if err != nil {
			return err
		}
		r.ID = models.FormatRiderID(seq)
		_, err = tx.ExecContext(ctx, `INSERT INTO riders(seq, `+riderColumns+`)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
			seq, r.ID, r.AccountID, r.FullName, models.NormalizeEmail(r.Email), r.Phone, r.NationalID, r.Motorcycle,
			r.Experience, r.Area, r.Motivation, r.Status, r.IsActive, r.Rating, r.TotalDeliveries,
			r.TotalEarnings, r.Balance, r.JoinedAt, r.UpdatedAt)
		return mapErr(err, "insert rider")
	})
}

func (p *PostgresStore) GetRider(ctx context.Context, id string) (*models.Rider, error) {
	r, err := scanRider(p.db.QueryRowContext(ctx, `SELECT `+riderColumns+` FROM riders WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "rider "+id)
	}
	return r, nil
}

func (p *PostgresStore) ListRiders(ctx context.Context) ([]*models.Rider, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+riderColumns+` FROM riders ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Rider
	for rows.Next() {
		r, err := scanRider(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateRider(ctx context.Context, id string, fn UpdateFunc[*models.Rider]) (*models.Rider, error) {
	load := func(tx *sql.Tx) (*models.Rider, error) {
		return scanRider(tx.QueryRowContext(ctx, `SELECT `+riderColumns+` FROM riders WHERE id = $1 FOR UPDATE`, id))
	}
	save := func(tx *sql.Tx, r *models.Rider) error {
		_, err := tx.ExecContext(ctx, `UPDATE riders SET account_id=$2, full_name=$3, email=$4, phone=$5,
			national_id=$6, motorcycle=$7, experience=$8, area=$9, motivation=$10, status=$11, is_active=$12,
			rating=$13, total_deliveries=$14, total_earnings=$15, balance=$16, updated_at=$17 WHERE id=$1`,
			r.ID, r.AccountID, r.FullName, models.NormalizeEmail(r.Email), r.Phone, r.NationalID, r.Motorcycle,
			r.Experience, r.Area, r.Motivation, r.Status, r.IsActive, r.Rating, r.TotalDeliveries,
			r.TotalEarnings, r.Balance, r.UpdatedAt)
		return mapErr(err, "update rider")
	}
	return runUpdate(ctx, p, "rider "+id, load, fn, save)
}

func (p *PostgresStore) DeleteRider(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM riders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, "rider "+id)
}

// accounts

const accountColumns = `id, full_name, email, phone, kind, password_hash, rider_id, is_active, created_at, updated_at, last_login_at`

func scanAccount(s scanner) (*models.Account, error) {
	var a models.Account
	var lastLogin sql.NullTime
	err := s.Scan(&a.ID, &a.FullName, &a.Email, &a.Phone, &a.Kind, &a.PasswordHash, &a.RiderID,
		&a.IsActive, &a.CreatedAt, &a.UpdatedAt, &lastLogin)
	if err != nil {
		return nil, err
	}
	a.LastLoginAt = timePtr(lastLogin)
	return &a, nil
}

func (p *PostgresStore) CreateAccount(ctx context.Context, a *models.Account) error {
	a.Email = models.NormalizeEmail(a.Email)
	return p.inTx(ctx, func(tx *sql.Tx) error {
		seq, err := nextSeq(ctx, tx, "account_seq")
		if err != nil {
			return err
		}
		a.ID = models.FormatAccountID(seq)
		_, err = tx.ExecContext(ctx, `INSERT INTO accounts(seq, `+accountColumns+`)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			seq, a.ID, a.FullName, a.Email, a.Phone, a.Kind, a.PasswordHash, a.RiderID, a.IsActive,
			a.CreatedAt, a.UpdatedAt, nullTime(a.LastLoginAt))
		return mapErr(err, "insert account")
	})
}

func (p *PostgresStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	a, err := scanAccount(p.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "account "+id)
	}
	return a, nil
}

func (p *PostgresStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	email = models.NormalizeEmail(email)
	a, err := scanAccount(p.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email))
	if err != nil {
		return nil, mapErr(err, "account "+email)
	}
	return a, nil
}

func (p *PostgresStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateAccount(ctx context.Context, id string, fn UpdateFunc[*models.Account]) (*models.Account, error) {
	load := func(tx *sql.Tx) (*models.Account, error) {
		return scanAccount(tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	}
	save := func(tx *sql.Tx, a *models.Account) error {
		_, err := tx.ExecContext(ctx, `UPDATE accounts SET full_name=$2, phone=$3, kind=$4, password_hash=$5,
			rider_id=$6, is_active=$7, updated_at=$8, last_login_at=$9 WHERE id=$1`,
			a.ID, a.FullName, a.Phone, a.Kind, a.PasswordHash, a.RiderID, a.IsActive, a.UpdatedAt, nullTime(a.LastLoginAt))
		return mapErr(err, "update account")
	}
	return runUpdate(ctx, p, "account "+id, load, fn, save)
}

func (p *PostgresStore) DeleteAccount(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, "account "+id)
}

// messages

const messageColumns = `id, name, email, phone, subject, body, status, created_at, updated_at`

func scanMessage(s scanner) (*models.Message, error) {
	var m models.Message
	if err := s.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Subject, &m.Body, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *PostgresStore) CreateMessage(ctx context.Context, m *models.Message) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		seq, err := nextSeq(ctx, tx, "message_seq")
		if err != nil {
			return err
		}
		m.ID = models.FormatMessageID(seq)
		_, err = tx.ExecContext(ctx, `INSERT INTO messages(seq, `+messageColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			seq, m.ID, m.Name, m.Email, m.Phone, m.Subject, m.Body, m.Status, m.CreatedAt, m.UpdatedAt)
		return mapErr(err, "insert message")
	})
}

func (p *PostgresStore) ListMessages(ctx context.Context) ([]*models.Message, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+messageColumns+` FROM messages ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateMessage(ctx context.Context, id string, fn UpdateFunc[*models.Message]) (*models.Message, error) {
	load := func(tx *sql.Tx) (*models.Message, error) {
		return scanMessage(tx.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = $1 FOR UPDATE`, id))
	}
	save := func(tx *sql.Tx, m *models.Message) error {
		_, err := tx.ExecContext(ctx, `UPDATE messages SET status=$2, updated_at=$3 WHERE id=$1`, m.ID, m.Status, m.UpdatedAt)
		return err
	}
	return runUpdate(ctx, p, "message "+id, load, fn, save)
}

// partnership requests

const partnershipColumns = `id, company_name, contact_person, email, phone, business_category, monthly_volume,
	message, status, created_at, updated_at`

func scanPartnership(s scanner) (*models.PartnershipRequest, error) {
	var r models.PartnershipRequest
	err := s.Scan(&r.ID, &r.CompanyName, &r.ContactPerson, &r.Email, &r.Phone, &r.BusinessCategory,
		&r.MonthlyVolume, &r.Message, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *PostgresStore) CreatePartnership(ctx context.Context, r *models.PartnershipRequest) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		seq, err := nextSeq(ctx, tx, "partnership_seq")
		if err != nil {
			return err
		}
		r.ID = models.FormatPartnershipID(seq)
		_, err = tx.ExecContext(ctx, `INSERT INTO partnership_requests(seq, `+partnershipColumns+`)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			seq, r.ID, r.CompanyName, r.ContactPerson, r.Email, r.Phone, r.BusinessCategory, r.MonthlyVolume,
			r.Message, r.Status, r.CreatedAt, r.UpdatedAt)
		return mapErr(err, "insert partnership request")
	})
}

func (p *PostgresStore) ListPartnerships(ctx context.Context) ([]*models.PartnershipRequest, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+partnershipColumns+` FROM partnership_requests ORDER BY seq DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.PartnershipRequest
	for rows.Next() {
		r, err := scanPartnership(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdatePartnership(ctx context.Context, id string, fn UpdateFunc[*models.PartnershipRequest]) (*models.PartnershipRequest, error) {
	load := func(tx *sql.Tx) (*models.PartnershipRequest, error) {
		return scanPartnership(tx.QueryRowContext(ctx, `SELECT `+partnershipColumns+` FROM partnership_requests WHERE id = $1 FOR UPDATE`, id))
	}
	save := func(tx *sql.Tx, r *models.PartnershipRequest) error {
		_, err := tx.ExecContext(ctx, `UPDATE partnership_requests SET status=$2, updated_at=$3 WHERE id=$1`, r.ID, r.Status, r.UpdatedAt)
		return err
	}
	return runUpdate(ctx, p, "partnership request "+id, load, fn, save)
}

func (p *PostgresStore) DeletePartnership(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `DELETE FROM partnership_requests WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectAffected(res, "partnership request "+id)
}

// payments

const paymentColumns = `id, order_id, method, status, amount, currency, provider_ref, provider_status,
	transaction_id, created_at, updated_at, completed_at`

func scanPayment(s scanner) (*models.Payment, error) {
	var p models.Payment
	var completed sql.NullTime
	err := s.Scan(&p.ID, &p.OrderID, &p.Method, &p.Status, &p.Amount, &p.Currency, &p.ProviderRef,
		&p.ProviderStatus, &p.TransactionID, &p.CreatedAt, &p.UpdatedAt, &completed)
	if err != nil {
		return nil, err
	}
	p.CompletedAt = timePtr(completed)
	return &p, nil
}

func (p *PostgresStore) CreatePayment(ctx context.Context, pm *models.Payment) error {
	_, err := p.db.ExecContext(ctx, `INSERT INTO payments(`+paymentColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		pm.ID, pm.OrderID, pm.Method, pm.Status, pm.Amount, pm.Currency, pm.ProviderRef, pm.ProviderStatus,
		pm.TransactionID, pm.CreatedAt, pm.UpdatedAt, nullTime(pm.CompletedAt))
	return mapErr(err, "insert payment")
}

func (p *PostgresStore) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	pm, err := scanPayment(p.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "payment "+id)
	}
	return pm, nil
}

func (p *PostgresStore) GetPaymentByProviderRef(ctx context.Context, method models.PaymentMethod, ref string) (*models.Payment, error) {
	pm, err := scanPayment(p.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments
		WHERE method = $1 AND provider_ref = $2 ORDER BY created_at DESC LIMIT 1`, method, ref))
	if err != nil {
		return nil, mapErr(err, "payment "+ref)
	}
	return pm, nil
}

func (p *PostgresStore) ListPayments(ctx context.Context, orderID string) ([]*models.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments`
	var args []any
	if orderID != "" {
		q += ` WHERE order_id = $1`
		args = append(args, orderID)
	}
	rows, err := p.db.QueryContext(ctx, q+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Payment
	for rows.Next() {
		pm, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pm)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdatePayment(ctx context.Context, id string, fn UpdateFunc[*models.Payment]) (*models.Payment, error) {
	load := func(tx *sql.Tx) (*models.Payment, error) {
		return scanPayment(tx.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, id))
	}
	save := func(tx *sql.Tx, pm *models.Payment) error {
		_, err := tx.ExecContext(ctx, `UPDATE payments SET status=$2, provider_ref=$3, provider_status=$4,
			transaction_id=$5, updated_at=$6, completed_at=$7 WHERE id=$1`,
			pm.ID, pm.Status, pm.ProviderRef, pm.ProviderStatus, pm.TransactionID, pm.UpdatedAt, nullTime(pm.CompletedAt))
		return err
	}
	return runUpdate(ctx, p, "payment "+id, load, fn, save)
}

// rider activities

func (p *PostgresStore) AppendActivity(ctx context.Context, a *models.RiderActivity) error {
	return p.inTx(ctx, func(tx *sql.Tx) error {
		seq, err := nextSeq(ctx, tx, "activity_seq")
		if err != nil {
			return err
		}
		a.ID = models.FormatActivityID(seq)
		_, err = tx.ExecContext(ctx, `INSERT INTO rider_activities(id, seq, rider_id, rider_name, type, description, order_id, amount, created_at)
			VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			a.ID, seq, a.RiderID, a.RiderName, a.Type, a.Description, a.OrderID, a.Amount, a.CreatedAt)
		return err
	})
}

func (p *PostgresStore) ListActivities(ctx context.Context, f ActivityFilter) ([]*models.RiderActivity, error) {
	q := `SELECT id, rider_id, rider_name, type, description, order_id, amount, created_at FROM rider_activities WHERE 1=1`
	var args []any
	if f.RiderID != "" {
		args = append(args, f.RiderID)
		q += ` AND rider_id = $` + strconv.Itoa(len(args))
	}
	if !f.Since.IsZero() {
		args = append(args, f.Since)
		q += ` AND created_at >= $` + strconv.Itoa(len(args))
	}
	rows, err := p.db.QueryContext(ctx, q+` ORDER BY seq DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.RiderActivity
	for rows.Next() {
		var a models.RiderActivity
		if err := rows.Scan(&a.ID, &a.RiderID, &a.RiderName, &a.Type, &a.Description, &a.OrderID, &a.Amount, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
