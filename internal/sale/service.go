package sale

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/terrakit/terrakit/internal/actor"
	"github.com/terrakit/terrakit/internal/changefeed"
	"github.com/terrakit/terrakit/internal/parcel"
	"github.com/terrakit/terrakit/internal/plan"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=sale
type Repository interface {
	GetSale(ctx context.Context, id uuid.UUID) (*Sale, error)
	ListSales(ctx context.Context, filter ListFilter) ([]*Sale, error)
	ListInstallments(ctx context.Context, saleID uuid.UUID) ([]*InstallmentPayment, error)

	Begin(ctx context.Context) (TransitionTx, error)
}

// ConfirmedUpdate carries the fields set when a sale moves to completed.
type ConfirmedUpdate struct {
	By         uuid.UUID
	At         time.Time
	CompanyFee int64
}

// TransitionTx is one atomic lifecycle transition. Every Mark* method is a
// conditional update guarded by the expected prior status and returns
// ErrConflict when zero rows match, so a lost race rolls the whole
// transition back instead of half-applying side effects.
type TransitionTx interface {
	CreateSale(ctx context.Context, s *Sale) error
	UpdateSale(ctx context.Context, s *Sale) error
	MarkConfirmed(ctx context.Context, id uuid.UUID, upd ConfirmedUpdate) error
	MarkCancelled(ctx context.Context, id uuid.UUID, from Status) error
	MarkReverted(ctx context.Context, id uuid.UUID) error
	DeleteSale(ctx context.Context, id uuid.UUID) error

	InsertInstallments(ctx context.Context, rows []InstallmentPayment) error
	DeleteInstallments(ctx context.Context, saleID uuid.UUID) error

	UpdateParcelStatus(ctx context.Context, parcelID uuid.UUID, from, to parcel.Status) error

	PublishChange(ctx context.Context, ev changefeed.Event) error

	Commit() error
	Rollback() error
}

// MutationKind classifies a committed mutation for post-commit consumers.
type MutationKind string

const (
	MutationCreated MutationKind = "created"
	MutationUpdated MutationKind = "updated"
	MutationDeleted MutationKind = "deleted"
)

// Mutation describes a committed sale change. Before is nil for creations,
// After is nil for deletions.
type Mutation struct {
	Kind   MutationKind
	Before *Sale
	After  *Sale
	Actor  actor.Actor
}

// MutationHook runs after a transition commits. Hooks are best-effort: they
// report nothing back and must do their own failure logging, so audit and
// notification problems can never fail a committed transition.
type MutationHook func(ctx context.Context, m Mutation)

type Service struct {
	repo  Repository
	hooks []MutationHook
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AfterCommit registers a post-commit hook. Not safe to call once the
// service is serving requests.
func (s *Service) AfterCommit(h MutationHook) {
	s.hooks = append(s.hooks, h)
}

func (s *Service) dispatch(ctx context.Context, m Mutation) {
	for _, h := range s.hooks {
		h(ctx, m)
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Sale, error) {
	return s.repo.GetSale(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Sale, error) {
	return s.repo.ListSales(ctx, filter)
}

func (s *Service) Installments(ctx context.Context, saleID uuid.UUID) ([]*InstallmentPayment, error) {
	return s.repo.ListInstallments(ctx, saleID)
}

type ReserveParams struct {
	ClientID uuid.UUID
	ParcelID uuid.UUID
	BatchID  uuid.UUID
	OfferID  *uuid.UUID

	Price          int64
	Deposit        int64
	PartialPayment *int64

	Method   PaymentMethod
	Deadline *time.Time
	SaleDate time.Time
}

// Reserve creates a pending sale and claims the parcel. The parcel move from
// available to reserved is conditional, so two clients reserving the same
// parcel resolve to exactly one winner.
func (s *Service) Reserve(ctx context.Context, act actor.Actor, params ReserveParams) (*Sale, error) {
	if err := validateReserve(params); err != nil {
		return nil, err
	}

	sale := &Sale{
		ClientID: params.ClientID,
		ParcelID: params.ParcelID,
		BatchID:  params.BatchID,
		OfferID:  params.OfferID,
		Price:    params.Price,
		Deposit:  params.Deposit,
		Method:   params.Method,
		Deadline: params.Deadline,
		SaleDate: params.SaleDate,
		Status:   StatusPending,
		SoldBy:   act.ID,
	}

	if params.PartialPayment != nil {
		sale.PartialPayment = params.PartialPayment
		remaining := params.Price - *params.PartialPayment
		sale.RemainingPayment = &remaining
	}

	if sale.SaleDate.IsZero() {
		sale.SaleDate = time.Now()
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin reservation: %w", err)
	}
	defer tx.Rollback()

	if err := tx.UpdateParcelStatus(ctx, params.ParcelID, parcel.StatusAvailable, parcel.StatusReserved); err != nil {
		return nil, fmt.Errorf("claim parcel: %w", err)
	}

	if err := tx.CreateSale(ctx, sale); err != nil {
		return nil, fmt.Errorf("create sale: %w", err)
	}

	if err := tx.PublishChange(ctx, changefeed.Event{Table: "sales", Action: "created", ID: sale.ID}); err != nil {
		return nil, fmt.Errorf("publish change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit reservation: %w", err)
	}

	s.dispatch(ctx, Mutation{Kind: MutationCreated, After: sale, Actor: act})

	return sale, nil
}

// Confirm moves a pending sale to completed: confirmation provenance and the
// company fee are recorded, the parcel becomes sold, and installment sales
// get their payment ledger materialized from the offer terms as they stand
// right now. The materialized rows freeze those terms: later offer edits
// never reach a confirmed sale.
func (s *Service) Confirm(ctx context.Context, act actor.Actor, id uuid.UUID, companyFee int64) (*Sale, error) {
	if companyFee < 0 {
		return nil, &ValidationError{Field: "company_fee_amount", Reason: "must not be negative"}
	}

	// Snapshot once; every branch decision below uses this copy so a
	// concurrent edit cannot flip the method mid-transition.
	before, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}

	if before.Status != StatusPending {
		return nil, fmt.Errorf("confirm sale in status %q: %w", before.Status, ErrConflict)
	}

	method := before.EffectiveMethod()
	if method == "" {
		return nil, &ValidationError{Field: "payment_method", Reason: "no payment method selected"}
	}

	now := time.Now()

	var ledger []InstallmentPayment

	switch method {
	case MethodPromise:
		if before.PartialPayment != nil && *before.PartialPayment > before.Price {
			return nil, &ValidationError{Field: "partial_payment_amount", Reason: "exceeds sale price"}
		}
	case MethodInstallment:
		ledger, err = s.materializeLedger(before, now)
		if err != nil {
			return nil, err
		}
	case MethodFull:
	default:
		return nil, &ValidationError{Field: "payment_method", Reason: fmt.Sprintf("unknown method %q", method)}
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin confirmation: %w", err)
	}
	defer tx.Rollback()

	upd := ConfirmedUpdate{By: act.ID, At: now, CompanyFee: companyFee}
	if err := tx.MarkConfirmed(ctx, id, upd); err != nil {
		return nil, fmt.Errorf("mark confirmed: %w", err)
	}

	if err := tx.UpdateParcelStatus(ctx, before.ParcelID, parcel.StatusReserved, parcel.StatusSold); err != nil {
		return nil, fmt.Errorf("mark parcel sold: %w", err)
	}

	if len(ledger) > 0 {
		if err := tx.InsertInstallments(ctx, ledger); err != nil {
			return nil, fmt.Errorf("materialize installments: %w", err)
		}
	}

	if err := tx.PublishChange(ctx, changefeed.Event{Table: "sales", Action: "updated", ID: id}); err != nil {
		return nil, fmt.Errorf("publish change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit confirmation: %w", err)
	}

	after := *before
	after.Status = StatusCompleted
	after.ConfirmedBy = &act.ID
	after.ConfirmedAt = &now
	after.CompanyFee = &companyFee

	s.dispatch(ctx, Mutation{Kind: MutationUpdated, Before: before, After: &after, Actor: act})

	return &after, nil
}

// Cancel terminates a pending or completed sale and releases the parcel.
// Cancellation is terminal: there is no path back to pending.
func (s *Service) Cancel(ctx context.Context, act actor.Actor, id uuid.UUID) (*Sale, error) {
	before, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}

	if before.Status == StatusCancelled {
		return nil, fmt.Errorf("cancel already cancelled sale: %w", ErrConflict)
	}

	parcelFrom := parcel.StatusReserved
	if before.Status == StatusCompleted {
		parcelFrom = parcel.StatusSold
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cancellation: %w", err)
	}
	defer tx.Rollback()

	if err := tx.MarkCancelled(ctx, id, before.Status); err != nil {
		return nil, fmt.Errorf("mark cancelled: %w", err)
	}

	if err := tx.UpdateParcelStatus(ctx, before.ParcelID, parcelFrom, parcel.StatusAvailable); err != nil {
		return nil, fmt.Errorf("release parcel: %w", err)
	}

	if err := tx.DeleteInstallments(ctx, id); err != nil {
		return nil, fmt.Errorf("delete installments: %w", err)
	}

	if err := tx.PublishChange(ctx, changefeed.Event{Table: "sales", Action: "updated", ID: id}); err != nil {
		return nil, fmt.Errorf("publish change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit cancellation: %w", err)
	}

	after := *before
	after.Status = StatusCancelled

	s.dispatch(ctx, Mutation{Kind: MutationUpdated, Before: before, After: &after, Actor: act})

	return &after, nil
}

// Revert undoes a confirmation: the sale returns to pending, the parcel to
// reserved, the installment ledger is dropped, and promise partial amounts
// are cleared.
func (s *Service) Revert(ctx context.Context, act actor.Actor, id uuid.UUID) (*Sale, error) {
	before, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}

	if before.Status != StatusCompleted {
		return nil, fmt.Errorf("revert sale in status %q: %w", before.Status, ErrConflict)
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin revert: %w", err)
	}
	defer tx.Rollback()

	if err := tx.MarkReverted(ctx, id); err != nil {
		return nil, fmt.Errorf("mark reverted: %w", err)
	}

	if err := tx.UpdateParcelStatus(ctx, before.ParcelID, parcel.StatusSold, parcel.StatusReserved); err != nil {
		return nil, fmt.Errorf("restore parcel: %w", err)
	}

	if err := tx.DeleteInstallments(ctx, id); err != nil {
		return nil, fmt.Errorf("delete installments: %w", err)
	}

	if err := tx.PublishChange(ctx, changefeed.Event{Table: "sales", Action: "updated", ID: id}); err != nil {
		return nil, fmt.Errorf("publish change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit revert: %w", err)
	}

	after := *before
	after.Status = StatusPending
	after.ConfirmedBy = nil
	after.ConfirmedAt = nil
	after.PartialPayment = nil
	after.RemainingPayment = nil

	s.dispatch(ctx, Mutation{Kind: MutationUpdated, Before: before, After: &after, Actor: act})

	return &after, nil
}

// Remove deletes the sale and its installment rows entirely and restores the
// parcel to available. Cancelled sales already released their parcel.
func (s *Service) Remove(ctx context.Context, act actor.Actor, id uuid.UUID) error {
	before, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return err
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin removal: %w", err)
	}
	defer tx.Rollback()

	if err := tx.DeleteInstallments(ctx, id); err != nil {
		return fmt.Errorf("delete installments: %w", err)
	}

	if err := tx.DeleteSale(ctx, id); err != nil {
		return fmt.Errorf("delete sale: %w", err)
	}

	if before.Status != StatusCancelled {
		parcelFrom := parcel.StatusReserved
		if before.Status == StatusCompleted {
			parcelFrom = parcel.StatusSold
		}

		if err := tx.UpdateParcelStatus(ctx, before.ParcelID, parcelFrom, parcel.StatusAvailable); err != nil {
			return fmt.Errorf("release parcel: %w", err)
		}
	}

	if err := tx.PublishChange(ctx, changefeed.Event{Table: "sales", Action: "deleted", ID: id}); err != nil {
		return fmt.Errorf("publish change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit removal: %w", err)
	}

	s.dispatch(ctx, Mutation{Kind: MutationDeleted, Before: before, Actor: act})

	return nil
}

type UpdateParams struct {
	Price          *int64
	Deposit        *int64
	PartialPayment *int64
	Method         *PaymentMethod
	OfferID        *uuid.UUID
	Deadline       *time.Time
}

// Update edits a pending sale. Completed and cancelled sales are immutable
// through this path; a non-pending hit means the caller's view is stale.
func (s *Service) Update(ctx context.Context, act actor.Actor, id uuid.UUID, params UpdateParams) (*Sale, error) {
	before, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return nil, err
	}

	if before.Status != StatusPending {
		return nil, fmt.Errorf("update sale in status %q: %w", before.Status, ErrConflict)
	}

	after := *before
	applyUpdate(&after, params)

	if err := validateAmounts(after.Price, after.Deposit, after.PartialPayment); err != nil {
		return nil, err
	}

	if after.PartialPayment != nil && after.EffectiveMethod() != MethodPromise {
		return nil, &ValidationError{Field: "partial_payment_amount", Reason: "only applies to promise sales"}
	}

	if after.EffectiveMethod() == MethodPromise && after.PartialPayment != nil {
		remaining := after.Price - *after.PartialPayment
		after.RemainingPayment = &remaining
	}

	tx, err := s.repo.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	if err := tx.UpdateSale(ctx, &after); err != nil {
		return nil, fmt.Errorf("update sale: %w", err)
	}

	if err := tx.PublishChange(ctx, changefeed.Event{Table: "sales", Action: "updated", ID: id}); err != nil {
		return nil, fmt.Errorf("publish change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}

	s.dispatch(ctx, Mutation{Kind: MutationUpdated, Before: before, After: &after, Actor: act})

	return &after, nil
}

func (s *Service) materializeLedger(before *Sale, confirmedAt time.Time) ([]InstallmentPayment, error) {
	if before.Offer == nil {
		return nil, &ValidationError{Field: "payment_offer_id", Reason: "installment sale has no payment offer"}
	}

	if before.Parcel == nil {
		return nil, &ValidationError{Field: "parcel_id", Reason: "sale has no parcel record"}
	}

	p, err := plan.Compute(before.Parcel.SurfaceM2, *before.Offer, before.Deposit)
	if err != nil {
		return nil, fmt.Errorf("compute plan: %w", err)
	}

	ledger := make([]InstallmentPayment, len(p.Schedule))
	for i, amount := range p.Schedule {
		ledger[i] = InstallmentPayment{
			SaleID:  before.ID,
			Seq:     i + 1,
			Amount:  amount,
			DueDate: confirmedAt.AddDate(0, i+1, 0),
		}
	}

	return ledger, nil
}

func applyUpdate(s *Sale, params UpdateParams) {
	if params.Price != nil {
		s.Price = *params.Price
	}

	if params.Deposit != nil {
		s.Deposit = *params.Deposit
	}

	if params.PartialPayment != nil {
		s.PartialPayment = params.PartialPayment
	}

	if params.Method != nil {
		s.Method = *params.Method
	}

	if params.OfferID != nil {
		s.OfferID = params.OfferID
	}

	if params.Deadline != nil {
		s.Deadline = params.Deadline
	}
}

func validateReserve(params ReserveParams) error {
	if params.ClientID == uuid.Nil {
		return &ValidationError{Field: "client_id", Reason: "required"}
	}

	if params.ParcelID == uuid.Nil {
		return &ValidationError{Field: "parcel_id", Reason: "required"}
	}

	if params.BatchID == uuid.Nil {
		return &ValidationError{Field: "batch_id", Reason: "required"}
	}

	switch params.Method {
	case "", MethodFull, MethodInstallment, MethodPromise:
	default:
		return &ValidationError{Field: "payment_method", Reason: fmt.Sprintf("unknown method %q", params.Method)}
	}

	if params.Method == MethodInstallment && params.OfferID == nil {
		return &ValidationError{Field: "payment_offer_id", Reason: "required for installment sales"}
	}

	// Partial and remaining amounts belong to promise sales only.
	if params.PartialPayment != nil && params.Method != MethodPromise {
		return &ValidationError{Field: "partial_payment_amount", Reason: "only applies to promise sales"}
	}

	return validateAmounts(params.Price, params.Deposit, params.PartialPayment)
}

func validateAmounts(price, deposit int64, partial *int64) error {
	if price <= 0 {
		return &ValidationError{Field: "sale_price", Reason: "must be positive"}
	}

	if deposit < 0 {
		return &ValidationError{Field: "deposit_amount", Reason: "must not be negative"}
	}

	if partial != nil {
		if *partial < 0 {
			return &ValidationError{Field: "partial_payment_amount", Reason: "must not be negative"}
		}

		if *partial > price {
			return &ValidationError{Field: "partial_payment_amount", Reason: "exceeds sale price"}
		}
	}

	return nil
}
