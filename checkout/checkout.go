// Package checkout orchestrates a checkout: it resolves the Stripe customer
// of the buyer, binds the payment method, links the customer to the user
// profile, creates the payment intents of the one-time items and the
// subscription of the recurring ones.
package checkout

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/lysco/checkout-backend/db"
	"github.com/lysco/checkout-backend/stripe"
	stripeapi "github.com/stripe/stripe-go/v81"
	"go.vocdoni.io/dvote/log"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxConcurrency bounds the payment intents created at once.
	DefaultMaxConcurrency = 8
	// customerLookupLimit is enough to detect several customers sharing an
	// email.
	customerLookupLimit = 2
)

// Config holds the collaborators of the orchestrator. Store and Notifier
// are optional.
type Config struct {
	Gateway             stripe.Gateway
	Stripe              *stripe.Config
	Store               db.ProfileStore
	Locks               *stripe.LockManager
	Notifier            *Notifier
	ProfileLinkRequired bool
	MaxConcurrency      int
}

// Orchestrator runs the checkouts.
type Orchestrator struct {
	gateway             stripe.Gateway
	stripeConf          *stripe.Config
	store               db.ProfileStore
	locks               *stripe.LockManager
	notifier            *Notifier
	profileLinkRequired bool
	maxConcurrency      int
}

// New creates an orchestrator.
func New(conf *Config) (*Orchestrator, error) {
	if conf == nil || conf.Gateway == nil {
		return nil, fmt.Errorf("gateway is required")
	}
	if conf.Stripe == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if conf.Store == nil && conf.ProfileLinkRequired {
		return nil, fmt.Errorf("profile link required but no profile store configured")
	}
	locks := conf.Locks
	if locks == nil {
		locks = stripe.NewLockManager()
	}
	maxConcurrency := conf.MaxConcurrency
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}
	return &Orchestrator{
		gateway:             conf.Gateway,
		stripeConf:          conf.Stripe,
		store:               conf.Store,
		locks:               locks,
		notifier:            conf.Notifier,
		profileLinkRequired: conf.ProfileLinkRequired,
		maxConcurrency:      maxConcurrency,
	}, nil
}

// Checkout runs the whole checkout of the order. The steps run in order and
// the first failure aborts the checkout, nothing is rolled back. Once the
// payment handles are created the order notification is enqueued, its
// failures are only logged.
func (o *Orchestrator) Checkout(ctx context.Context, order *Order) (*Result, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	customer, err := o.ResolveCustomer(ctx, order.Email, order.PaymentMethodID)
	if err != nil {
		return nil, err
	}
	if err := o.BindPaymentMethod(ctx, customer.ID, order.PaymentMethodID); err != nil {
		return nil, err
	}
	if err := o.LinkProfile(ctx, order.UserID, customer.ID); err != nil {
		return nil, err
	}
	intents, err := o.IssueOneTimeCharges(ctx, customer.ID, order.PaymentMethodID, order.OneTimeItems)
	if err != nil {
		return nil, err
	}
	subIntent, err := o.PlanSubscription(ctx, customer.ID, order.SubscriptionItems)
	if err != nil {
		return nil, err
	}
	result, err := aggregate(intents, subIntent)
	if err != nil {
		return nil, err
	}
	result.Customer = customer
	log.Infow("checkout completed",
		"customer", customer.ID,
		"user", order.UserID,
		"oneTimeIntents", len(result.OneTimePaymentIntents),
		"subscription", result.SubscriptionPaymentIntent != nil)

	if o.notifier != nil {
		o.notifier.OrderPlaced(ctx, order)
	}
	return result, nil
}

// ResolveCustomer returns the customer of the email, creating it with the
// payment method and the configured locale when there is none. The lookup
// and the creation run under the lock of the email.
func (o *Orchestrator) ResolveCustomer(ctx context.Context, email, paymentMethodID string) (*Customer, error) {
	unlock := o.locks.LockEmail(email)
	defer unlock()

	found, err := o.gateway.ListCustomersByEmail(ctx, email, customerLookupLimit)
	if err != nil {
		return nil, fmt.Errorf("cannot look up customer: %w", err)
	}
	if len(found) > 0 {
		if len(found) > 1 {
			log.Warnw("several stripe customers share the same email, using the first one",
				"email", email, "customer", found[0].ID, "other", found[1].ID)
		}
		return &Customer{ID: found[0].ID, Email: email}, nil
	}
	created, err := o.gateway.CreateCustomer(ctx, &stripe.CustomerParams{
		Email:           email,
		PaymentMethodID: paymentMethodID,
		Locale:          o.stripeConf.Locale,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create customer: %w", err)
	}
	log.Infow("stripe customer created", "customer", created.ID, "email", email)
	return &Customer{ID: created.ID, Email: email, Created: true}, nil
}

// BindPaymentMethod attaches the payment method to the customer and makes
// it the default one for invoices. Attach errors do not abort the checkout,
// a payment method already attached being the usual case.
func (o *Orchestrator) BindPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	if err := o.gateway.AttachPaymentMethod(ctx, paymentMethodID, customerID); err != nil {
		if stripe.IsAlreadyExists(err) {
			log.Debugw("payment method already attached", "customer", customerID, "paymentMethod", paymentMethodID)
		} else {
			log.Warnw("cannot attach payment method", "customer", customerID,
				"paymentMethod", paymentMethodID, "error", err)
		}
	}
	if err := o.gateway.SetDefaultPaymentMethod(ctx, customerID, paymentMethodID, o.stripeConf.Locale); err != nil {
		return fmt.Errorf("cannot set default payment method: %w", err)
	}
	return nil
}

// LinkProfile writes the customer id on the profile of the user. Failures
// abort the checkout only when the link is required.
func (o *Orchestrator) LinkProfile(ctx context.Context, userID, customerID string) error {
	if o.store == nil {
		log.Warnw("no profile store configured, customer not linked", "user", userID, "customer", customerID)
		return nil
	}
	err := o.store.SetStripeCustomerID(ctx, userID, customerID)
	if err == nil {
		return nil
	}
	if o.profileLinkRequired {
		return fmt.Errorf("%w: %w", ErrProfileLink, err)
	}
	log.Warnw("cannot link profile to stripe customer", "user", userID, "customer", customerID, "error", err)
	return nil
}

// IssueOneTimeCharges creates one unconfirmed payment intent per item, at
// most maxConcurrency at a time. Each intent carries the index of its item
// in its metadata. The first failure cancels the remaining ones.
func (o *Orchestrator) IssueOneTimeCharges(ctx context.Context, customerID, paymentMethodID string,
	items []OneTimeItem,
) ([]*stripeapi.PaymentIntent, error) {
	intents := make([]*stripeapi.PaymentIntent, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxConcurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			intent, err := o.gateway.CreatePaymentIntent(gctx, &stripe.PaymentIntentParams{
				Amount:          item.Amount,
				Currency:        o.stripeConf.Currency,
				CustomerID:      customerID,
				PaymentMethodID: paymentMethodID,
				Metadata:        map[string]string{MetadataReservationIndex: strconv.Itoa(item.Index)},
			})
			if err != nil {
				return fmt.Errorf("cannot create payment intent for item %d: %w", item.Index, err)
			}
			intents[i] = intent
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return intents, nil
}

// NewPlan returns the plan of the subscription items. Only the first item
// is inspected: when its price is the engagement price of a tier the plan
// is phased, otherwise it is a standard subscription of every item.
func NewPlan(conf *stripe.Config, items []stripe.SubscriptionItem) *Plan {
	if len(items) == 0 {
		return nil
	}
	normalized := make([]stripe.SubscriptionItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		normalized = append(normalized, item)
	}
	first := normalized[0]
	tier, ok := conf.TierByEngagementPrice(first.Price)
	if !ok {
		return &Plan{Kind: PlanStandard, Items: normalized}
	}
	return &Plan{
		Kind: PlanPhased,
		Tier: tier,
		Phases: []Phase{
			{Price: tier.EngagementPrice, Quantity: first.Quantity, Iterations: stripe.PhaseIterations},
			{Price: tier.StandardPrice, Quantity: first.Quantity, Iterations: stripe.PhaseIterations},
		},
	}
}

// PlanSubscription creates the subscription of the items and returns the
// payment intent of its first invoice, or nil when there are no items.
func (o *Orchestrator) PlanSubscription(ctx context.Context, customerID string,
	items []stripe.SubscriptionItem,
) (*stripeapi.PaymentIntent, error) {
	plan := NewPlan(o.stripeConf, items)
	if plan == nil {
		return nil, nil
	}
	if plan.Kind == PlanPhased {
		return o.phasedSubscription(ctx, customerID, plan)
	}
	sub, err := o.gateway.CreateSubscription(ctx, customerID, plan.Items)
	if err != nil {
		return nil, fmt.Errorf("cannot create subscription: %w", err)
	}
	if sub.LatestInvoice == nil {
		return nil, stripe.ErrInvoiceNotFound.With(sub.ID)
	}
	if sub.LatestInvoice.PaymentIntent == nil {
		return nil, stripe.ErrPaymentIntentMissing.With(sub.LatestInvoice.ID)
	}
	log.Debugw("subscription created", "customer", customerID, "subscription", sub.ID)
	return sub.LatestInvoice.PaymentIntent, nil
}

// phasedSubscription creates the schedule of the plan, then finalizes and
// pays the first invoice of its subscription.
func (o *Orchestrator) phasedSubscription(ctx context.Context, customerID string,
	plan *Plan,
) (*stripeapi.PaymentIntent, error) {
	phases := make([]stripe.SchedulePhase, 0, len(plan.Phases))
	for _, p := range plan.Phases {
		phases = append(phases, stripe.SchedulePhase{
			Items:      []stripe.SubscriptionItem{{Price: p.Price, Quantity: p.Quantity}},
			Iterations: p.Iterations,
		})
	}
	schedule, err := o.gateway.CreateSubscriptionSchedule(ctx, customerID, phases)
	if err != nil {
		return nil, fmt.Errorf("cannot create subscription schedule: %w", err)
	}
	if schedule.Subscription == nil {
		return nil, fmt.Errorf("subscription schedule %s has no subscription", schedule.ID)
	}
	sub, err := o.gateway.GetSubscription(ctx, schedule.Subscription.ID)
	if err != nil {
		return nil, err
	}
	if sub.LatestInvoice == nil {
		return nil, stripe.ErrInvoiceNotFound.With(sub.ID)
	}
	invoiceID := sub.LatestInvoice.ID
	if _, err := o.gateway.FinalizeInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	if _, err := o.gateway.PayInvoice(ctx, invoiceID); err != nil {
		return nil, err
	}
	inv, err := o.gateway.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv.PaymentIntent == nil {
		return nil, stripe.ErrPaymentIntentMissing.With(invoiceID)
	}
	log.Infow("engagement schedule created",
		"customer", customerID,
		"tier", plan.Tier.Name,
		"schedule", schedule.ID,
		"subscription", sub.ID,
		"invoice", invoiceID)
	return inv.PaymentIntent, nil
}

// ClientSecretOnly creates a payment intent of total euros without customer
// and returns its client secret.
func (o *Orchestrator) ClientSecretOnly(ctx context.Context, total float64) (string, error) {
	amount := int64(math.Round(total * 100))
	if amount <= 0 {
		return "", ErrInvalidAmount
	}
	intent, err := o.gateway.CreatePaymentIntent(ctx, &stripe.PaymentIntentParams{
		Amount:   amount,
		Currency: o.stripeConf.Currency,
	})
	if err != nil {
		return "", err
	}
	return intent.ClientSecret, nil
}

// aggregate builds the result of the checkout. The index of each one-time
// intent is read back from its metadata.
func aggregate(intents []*stripeapi.PaymentIntent, subIntent *stripeapi.PaymentIntent) (*Result, error) {
	result := &Result{OneTimePaymentIntents: make([]IntentResult, 0, len(intents))}
	for _, intent := range intents {
		index, err := strconv.Atoi(intent.Metadata[MetadataReservationIndex])
		if err != nil {
			return nil, fmt.Errorf("%w: %s has no valid %s", ErrInvalidIntent, intent.ID, MetadataReservationIndex)
		}
		result.OneTimePaymentIntents = append(result.OneTimePaymentIntents, IntentResult{
			Index:        index,
			ID:           intent.ID,
			ClientSecret: intent.ClientSecret,
		})
	}
	if subIntent != nil {
		result.SubscriptionPaymentIntent = &SubscriptionIntent{
			ID:           subIntent.ID,
			ClientSecret: subIntent.ClientSecret,
		}
	}
	return result, nil
}
