package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/changefeed"
	"github.com/terrakit/terrakit/internal/database"
	"github.com/terrakit/terrakit/internal/parcel"
	"github.com/terrakit/terrakit/internal/plan"
	"github.com/terrakit/terrakit/internal/sale"
)

type Store struct {
	db   *sql.DB
	caps database.Capabilities
}

func New(db *sql.DB, caps database.Capabilities) *Store {
	return &Store{db: db, caps: caps}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// selectColumns returns the joined sale projection. Deployments without the
// promise columns select NULL in their place so the scan shape never varies.
func (s *Store) selectColumns() string {
	partial := "s.partial_payment_amount, s.remaining_payment_amount"
	if !s.caps.PromiseColumns {
		partial = "NULL::bigint AS partial_payment_amount, NULL::bigint AS remaining_payment_amount"
	}

	return `
		s.id, s.client_id, s.parcel_id, s.batch_id, s.payment_offer_id,
		s.sale_price, s.deposit_amount, ` + partial + `,
		s.company_fee_amount, s.payment_method, s.status, s.deadline_date, s.sale_date,
		s.sold_by, s.confirmed_by, s.confirmed_at, s.created_at, s.updated_at,
		c.name AS client_name, c.phone AS client_phone,
		p.number AS parcel_number, p.surface_m2, p.status AS parcel_status,
		b.name AS batch_name,
		o.name AS offer_name, o.price_per_m2, o.advance_mode, o.advance_value,
		o.calc_mode, o.monthly_amount, o.months
	`
}

const fromJoined = `
	FROM sales s
	JOIN clients c ON s.client_id = c.id
	JOIN land_pieces p ON s.parcel_id = p.id
	JOIN land_batches b ON s.batch_id = b.id
	LEFT JOIN payment_offers o ON s.payment_offer_id = o.id
`

// scanSale normalizes one joined row into a fully-typed Sale. The joined
// shapes never leak past this function: callers always get the same record
// layout regardless of which optional columns or joins produced it.
func scanSale(sc scanner) (*sale.Sale, error) {
	var (
		row       sale.Sale
		method    sql.NullString
		statusStr string

		clientName, clientPhone string
		parcelNumber            string
		surfaceM2               float64
		parcelStatus            string
		batchName               string

		offerName     sql.NullString
		pricePerM2    sql.NullInt64
		advanceMode   sql.NullString
		advanceValue  sql.NullInt64
		calcMode      sql.NullString
		monthlyAmount sql.NullInt64
		months        sql.NullInt64
	)

	if err := sc.Scan(
		&row.ID, &row.ClientID, &row.ParcelID, &row.BatchID, &row.OfferID,
		&row.Price, &row.Deposit, &row.PartialPayment, &row.RemainingPayment,
		&row.CompanyFee, &method, &statusStr, &row.Deadline, &row.SaleDate,
		&row.SoldBy, &row.ConfirmedBy, &row.ConfirmedAt, &row.CreatedAt, &row.UpdatedAt,
		&clientName, &clientPhone,
		&parcelNumber, &surfaceM2, &parcelStatus,
		&batchName,
		&offerName, &pricePerM2, &advanceMode, &advanceValue,
		&calcMode, &monthlyAmount, &months,
	); err != nil {
		return nil, err
	}

	row.Method = sale.PaymentMethod(method.String)
	row.Status = sale.Status(statusStr)

	row.Client = &sale.Client{ID: row.ClientID, Name: clientName, Phone: clientPhone}
	row.Batch = &sale.Batch{ID: row.BatchID, Name: batchName}
	row.Parcel = &parcel.Parcel{
		ID:        row.ParcelID,
		BatchID:   row.BatchID,
		Number:    parcelNumber,
		SurfaceM2: surfaceM2,
		Status:    parcel.Status(parcelStatus),
	}

	if row.OfferID != nil {
		row.Offer = &plan.Offer{
			ID:            *row.OfferID,
			Name:          offerName.String,
			PricePerM2:    pricePerM2.Int64,
			AdvanceMode:   plan.AdvanceMode(advanceMode.String),
			AdvanceValue:  advanceValue.Int64,
			CalcMode:      plan.CalcMode(calcMode.String),
			MonthlyAmount: monthlyAmount.Int64,
			Months:        int(months.Int64),
		}
	}

	return &row, nil
}

func (s *Store) GetSale(ctx context.Context, id uuid.UUID) (*sale.Sale, error) {
	query := `SELECT ` + s.selectColumns() + fromJoined + ` WHERE s.id = $1`

	row, err := scanSale(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, sale.ErrNotFound
		}

		return nil, fmt.Errorf("getting sale: %w", err)
	}

	return row, nil
}

func (s *Store) ListSales(ctx context.Context, filter sale.ListFilter) ([]*sale.Sale, error) {
	query := `SELECT ` + s.selectColumns() + fromJoined + ` WHERE 1=1`

	var args []any

	argIdx := 1

	if filter.Status != nil {
		query += fmt.Sprintf(" AND s.status = $%d", argIdx)

		args = append(args, *filter.Status)
		argIdx++
	}

	if filter.BatchID != nil {
		query += fmt.Sprintf(" AND s.batch_id = $%d", argIdx)

		args = append(args, *filter.BatchID)
		argIdx++
	}

	if filter.ClientID != nil {
		query += fmt.Sprintf(" AND s.client_id = $%d", argIdx)

		args = append(args, *filter.ClientID)
		argIdx++
	}

	if filter.Method != nil {
		// The legacy-data inference rule applies on the read side too:
		// offer-linked rows without a stored method are installment sales.
		if *filter.Method == sale.MethodInstallment {
			query += " AND (s.payment_method = 'installment' OR (s.payment_method IS NULL AND s.payment_offer_id IS NOT NULL))"
		} else {
			query += fmt.Sprintf(" AND s.payment_method = $%d", argIdx)

			args = append(args, *filter.Method)
			argIdx++
		}
	}

	query += " ORDER BY s.sale_date DESC, s.created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)

		args = append(args, filter.Limit)
		argIdx++
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)

		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sales: %w", err)
	}
	defer rows.Close()

	var sales []*sale.Sale

	for rows.Next() {
		row, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning sale: %w", err)
		}

		sales = append(sales, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sale rows: %w", err)
	}

	return sales, nil
}

func (s *Store) ListInstallments(ctx context.Context, saleID uuid.UUID) ([]*sale.InstallmentPayment, error) {
	query := `
		SELECT id, sale_id, seq, amount, due_date, paid_at, created_at
		FROM installment_payments
		WHERE sale_id = $1
		ORDER BY seq ASC
	`

	rows, err := s.db.QueryContext(ctx, query, saleID)
	if err != nil {
		return nil, fmt.Errorf("listing installments: %w", err)
	}
	defer rows.Close()

	var payments []*sale.InstallmentPayment

	for rows.Next() {
		var p sale.InstallmentPayment

		if err := rows.Scan(&p.ID, &p.SaleID, &p.Seq, &p.Amount, &p.DueDate, &p.PaidAt, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning installment: %w", err)
		}

		payments = append(payments, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating installment rows: %w", err)
	}

	return payments, nil
}

func (s *Store) Begin(ctx context.Context) (sale.TransitionTx, error) {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transition tx: %w", err)
	}

	return &transitionTx{tx: dbTx, caps: s.caps}, nil
}

type transitionTx struct {
	tx   *sql.Tx
	caps database.Capabilities
}

func (t *transitionTx) Commit() error   { return t.tx.Commit() }
func (t *transitionTx) Rollback() error { return t.tx.Rollback() }

func (t *transitionTx) CreateSale(ctx context.Context, row *sale.Sale) error {
	columns := []string{
		"client_id", "parcel_id", "batch_id", "payment_offer_id",
		"sale_price", "deposit_amount", "payment_method", "status",
		"deadline_date", "sale_date", "sold_by",
	}
	values := []any{
		row.ClientID, row.ParcelID, row.BatchID, row.OfferID,
		row.Price, row.Deposit, nullableMethod(row.Method), row.Status,
		row.Deadline, row.SaleDate, row.SoldBy,
	}

	if t.caps.PromiseColumns {
		columns = append(columns, "partial_payment_amount", "remaining_payment_amount")
		values = append(values, row.PartialPayment, row.RemainingPayment)
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`
		INSERT INTO sales (%s, created_at, updated_at)
		VALUES (%s, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`, strings.Join(columns, ", "), strings.Join(placeholders, ", "))

	if err := t.tx.QueryRowContext(ctx, query, values...).Scan(&row.ID, &row.CreatedAt, &row.UpdatedAt); err != nil {
		return fmt.Errorf("creating sale: %w", err)
	}

	return nil
}

func (t *transitionTx) UpdateSale(ctx context.Context, row *sale.Sale) error {
	query := `
		UPDATE sales
		SET sale_price = $1, deposit_amount = $2, payment_method = $3,
		    payment_offer_id = $4, deadline_date = $5, updated_at = NOW()
	`
	args := []any{row.Price, row.Deposit, nullableMethod(row.Method), row.OfferID, row.Deadline}

	if t.caps.PromiseColumns {
		query += `, partial_payment_amount = $6, remaining_payment_amount = $7
		WHERE id = $8 AND status = 'pending'`
		args = append(args, row.PartialPayment, row.RemainingPayment, row.ID)
	} else {
		query += ` WHERE id = $6 AND status = 'pending'`
		args = append(args, row.ID)
	}

	return t.conditional(ctx, "updating sale", query, args...)
}

func (t *transitionTx) MarkConfirmed(ctx context.Context, id uuid.UUID, upd sale.ConfirmedUpdate) error {
	query := `
		UPDATE sales
		SET status = 'completed', confirmed_by = $1, confirmed_at = $2,
		    company_fee_amount = $3, updated_at = NOW()
		WHERE id = $4 AND status = 'pending'
	`

	return t.conditional(ctx, "confirming sale", query, upd.By, upd.At, upd.CompanyFee, id)
}

func (t *transitionTx) MarkCancelled(ctx context.Context, id uuid.UUID, from sale.Status) error {
	query := `
		UPDATE sales
		SET status = 'cancelled', updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	return t.conditional(ctx, "cancelling sale", query, id, from)
}

func (t *transitionTx) MarkReverted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE sales
		SET status = 'pending', confirmed_by = NULL, confirmed_at = NULL, updated_at = NOW()
	`

	if t.caps.PromiseColumns {
		query += `, partial_payment_amount = NULL, remaining_payment_amount = NULL`
	}

	query += ` WHERE id = $1 AND status = 'completed'`

	return t.conditional(ctx, "reverting sale", query, id)
}

func (t *transitionTx) DeleteSale(ctx context.Context, id uuid.UUID) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM sales WHERE id = $1`, id); err != nil {
		return fmt.Errorf("deleting sale: %w", err)
	}

	return nil
}

func (t *transitionTx) InsertInstallments(ctx context.Context, rows []sale.InstallmentPayment) error {
	query := `
		INSERT INTO installment_payments (sale_id, seq, amount, due_date, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`

	for _, row := range rows {
		if _, err := t.tx.ExecContext(ctx, query, row.SaleID, row.Seq, row.Amount, row.DueDate); err != nil {
			return fmt.Errorf("inserting installment %d: %w", row.Seq, err)
		}
	}

	return nil
}

func (t *transitionTx) DeleteInstallments(ctx context.Context, saleID uuid.UUID) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM installment_payments WHERE sale_id = $1`, saleID); err != nil {
		return fmt.Errorf("deleting installments: %w", err)
	}

	return nil
}

func (t *transitionTx) UpdateParcelStatus(ctx context.Context, parcelID uuid.UUID, from, to parcel.Status) error {
	query := `
		UPDATE land_pieces
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
	`

	return t.conditional(ctx, "updating parcel status", query, to, parcelID, from)
}

// PublishChange queues a change cue on the sales channel. pg_notify inside
// the transaction means the cue only goes out if the transition commits.
func (t *transitionTx) PublishChange(ctx context.Context, ev changefeed.Event) error {
	payload, err := ev.Payload()
	if err != nil {
		return fmt.Errorf("encoding change payload: %w", err)
	}

	if _, err := t.tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, changefeed.ChannelName(), payload); err != nil {
		return fmt.Errorf("publishing change: %w", err)
	}

	return nil
}

// conditional runs a guarded update and maps a zero-row result to
// sale.ErrConflict: the row is no longer in the status the caller expected.
func (t *transitionTx) conditional(ctx context.Context, op, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: reading affected rows: %w", op, err)
	}

	if affected == 0 {
		return sale.ErrConflict
	}

	return nil
}

func nullableMethod(m sale.PaymentMethod) any {
	if m == "" {
		return nil
	}

	return string(m)
}
