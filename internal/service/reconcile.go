package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/internal/events"
	"golang.org/x/sync/singleflight"
)

// FailureRecorder stores reconciliation failures for support.
type FailureRecorder interface {
	Create(ctx context.Context, f *domain.ReconciliationFailure) error
}

// ReconcileRequest identifies a paid item.
type ReconcileRequest struct {
	CheckoutID     string
	TransactionID  string
	Kind           domain.ItemKind
	ItemID         int64
	OrganizationID int64
	Gateway        string
}

// Outcome is what the buyer is shown after reconciliation.
type Outcome struct {
	OK           bool
	Redirect     string
	Notification domain.Notification
}

// Reconciler tells the owning system that an item has been paid for.
// A failure is reported and recorded; the payment is neither retried nor
// refunded.
type Reconciler struct {
	owner    OwningSystem
	failures FailureRecorder
	events   events.Publisher
	sink     NotificationSink
	redirect string
	timeout  time.Duration
	group    singleflight.Group
}

// DefaultActivationTimeout bounds one owning-system confirmation.
const DefaultActivationTimeout = 30 * time.Second

// NewReconciler creates a Reconciler that redirects to redirect on success.
func NewReconciler(owner OwningSystem, failures FailureRecorder, pub events.Publisher, sink NotificationSink, redirect string) *Reconciler {
	return &Reconciler{
		owner:    owner,
		failures: failures,
		events:   pub,
		sink:     sink,
		redirect: redirect,
		timeout:  DefaultActivationTimeout,
	}
}

// Reconcile calls the owning system once per checkout, even when the same
// checkout is confirmed from several requests at the same time. The call is
// detached from ctx's cancellation: a buyer closing the tab after paying
// must not abort the activation.
func (r *Reconciler) Reconcile(ctx context.Context, req ReconcileRequest) Outcome {
	actCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()
	v, _, _ := r.group.Do(req.CheckoutID, func() (interface{}, error) {
		return r.reconcile(actCtx, req), nil
	})
	return v.(Outcome)
}

func (r *Reconciler) reconcile(ctx context.Context, req ReconcileRequest) Outcome {
	var err error
	switch req.Kind {
	case domain.ItemPlan:
		err = r.owner.ConfirmPlanPayment(ctx, req.TransactionID, req.OrganizationID)
	case domain.ItemModule:
		err = r.owner.ConfirmModulePayment(ctx, req.TransactionID)
	default:
		err = fmt.Errorf("unknown item kind %q", req.Kind)
	}

	if err != nil {
		return r.fail(ctx, req, err)
	}

	log.Printf("[Reconcile] ✅ %s %d paid by %s (checkout %s)", req.Kind, req.ItemID, req.TransactionID, req.CheckoutID)
	r.publish(ctx, req, events.TypeReconciled, "")

	n := domain.NewNotification("Payment confirmed", "Your purchase is active. Please sign in to continue.", domain.SeveritySuccess)
	r.sink.Notify(req.CheckoutID, n)
	return Outcome{OK: true, Redirect: r.redirect, Notification: n}
}

func (r *Reconciler) fail(ctx context.Context, req ReconcileRequest, cause error) Outcome {
	log.Printf("[Reconcile] ❌ %s %d paid by %s but activation failed: %v", req.Kind, req.ItemID, req.TransactionID, cause)

	// The buyer has already been charged, so the record must outlive a
	// cancelled request.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	f := &domain.ReconciliationFailure{
		ID:             uuid.New().String(),
		CheckoutID:     req.CheckoutID,
		TransactionID:  req.TransactionID,
		ItemKind:       req.Kind,
		ItemID:         req.ItemID,
		OrganizationID: req.OrganizationID,
		Error:          cause.Error(),
		CreatedAt:      time.Now(),
	}
	if err := r.failures.Create(recCtx, f); err != nil {
		log.Printf("[Reconcile] failed to record reconciliation failure for %s: %v", req.TransactionID, err)
	}
	r.publish(recCtx, req, events.TypeReconciliationFailed, cause.Error())

	n := domain.NewNotification(
		"Payment received, activation pending",
		fmt.Sprintf("Your payment went through but we could not activate your purchase. Please contact support and quote transaction %s.", req.TransactionID),
		domain.SeverityError,
	)
	r.sink.Notify(req.CheckoutID, n)
	return Outcome{OK: false, Notification: n}
}

func (r *Reconciler) publish(ctx context.Context, req ReconcileRequest, typ, msg string) {
	err := r.events.Publish(ctx, events.Event{
		Type:           typ,
		CheckoutID:     req.CheckoutID,
		TransactionID:  req.TransactionID,
		ItemKind:       string(req.Kind),
		ItemID:         req.ItemID,
		OrganizationID: req.OrganizationID,
		Gateway:        req.Gateway,
		Message:        msg,
	})
	if err != nil {
		log.Printf("[Reconcile] event publish failed: %v", err)
	}
}
