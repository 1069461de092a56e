// Package stripetest provides an in-memory stripe.Gateway for tests.
package stripetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lysco/checkout-backend/stripe"
	stripeapi "github.com/stripe/stripe-go/v81"
)

// Names of the gateway methods, used as keys of Calls and Errors.
const (
	ListCustomersByEmail       = "ListCustomersByEmail"
	CreateCustomer             = "CreateCustomer"
	AttachPaymentMethod        = "AttachPaymentMethod"
	SetDefaultPaymentMethod    = "SetDefaultPaymentMethod"
	CreatePaymentIntent        = "CreatePaymentIntent"
	CreateSubscription         = "CreateSubscription"
	CreateSubscriptionSchedule = "CreateSubscriptionSchedule"
	GetSubscription            = "GetSubscription"
	FinalizeInvoice            = "FinalizeInvoice"
	PayInvoice                 = "PayInvoice"
	GetInvoice                 = "GetInvoice"
	CreatePortalSession        = "CreatePortalSession"
	CreateRefund               = "CreateRefund"
	ListSubscriptions          = "ListSubscriptions"
	ListInvoices               = "ListInvoices"
	GetProduct                 = "GetProduct"
)

var _ stripe.Gateway = (*Gateway)(nil)

// Gateway records every call and answers with predictable objects. Set an
// entry of Errors to make a method fail.
type Gateway struct {
	mu sync.Mutex
	n  int

	// Customers are the customers returned by ListCustomersByEmail, created
	// customers are appended to it.
	Customers []*stripeapi.Customer
	// Errors maps a method name to the error it returns.
	Errors map[string]error
	// IntentDelay, when set, delays the creation of each payment intent.
	IntentDelay func(p *stripe.PaymentIntentParams) time.Duration

	Calls            map[string]int
	CreatedCustomers []*stripe.CustomerParams
	Attached         []string
	Defaults         []string
	PaymentIntents   []*stripe.PaymentIntentParams
	Subscriptions    [][]stripe.SubscriptionItem
	Schedules        [][]stripe.SchedulePhase
	Finalized        []string
	Paid             []string
	Refunds          []string
	PortalSessions   []string

	// SubscriptionList, InvoiceList and Products feed the billing reads.
	SubscriptionList []*stripeapi.Subscription
	InvoiceList      []*stripeapi.Invoice
	Products         map[string]string
}

// New returns an empty fake gateway.
func New() *Gateway {
	return &Gateway{
		Errors:   map[string]error{},
		Calls:    map[string]int{},
		Products: map[string]string{},
	}
}

// TotalCalls returns the number of calls of every method.
func (g *Gateway) TotalCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	total := 0
	for _, n := range g.Calls {
		total += n
	}
	return total
}

// CallCount returns the number of calls of the given method.
func (g *Gateway) CallCount(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Calls[method]
}

// call records the call and returns the configured error. Must be called
// with the lock held.
func (g *Gateway) call(method string) error {
	g.Calls[method]++
	return g.Errors[method]
}

func (g *Gateway) nextID(prefix string) string {
	g.n++
	return fmt.Sprintf("%s_test%04d", prefix, g.n)
}

func (g *Gateway) newIntent() *stripeapi.PaymentIntent {
	id := g.nextID("pi")
	return &stripeapi.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_test",
		Status:       stripeapi.PaymentIntentStatusRequiresPaymentMethod,
		Metadata:     map[string]string{},
	}
}

func (g *Gateway) ListCustomersByEmail(_ context.Context, email string, limit int64) ([]*stripeapi.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(ListCustomersByEmail); err != nil {
		return nil, err
	}
	var found []*stripeapi.Customer
	for _, c := range g.Customers {
		if c.Email == email && int64(len(found)) < limit {
			found = append(found, c)
		}
	}
	return found, nil
}

func (g *Gateway) CreateCustomer(_ context.Context, p *stripe.CustomerParams) (*stripeapi.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(CreateCustomer); err != nil {
		return nil, err
	}
	customer := &stripeapi.Customer{
		ID:               g.nextID("cus"),
		Email:            p.Email,
		PreferredLocales: []string{p.Locale},
	}
	g.CreatedCustomers = append(g.CreatedCustomers, p)
	g.Customers = append(g.Customers, customer)
	return customer, nil
}

func (g *Gateway) AttachPaymentMethod(_ context.Context, paymentMethodID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(AttachPaymentMethod); err != nil {
		return err
	}
	g.Attached = append(g.Attached, paymentMethodID)
	return nil
}

func (g *Gateway) SetDefaultPaymentMethod(_ context.Context, customerID, paymentMethodID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(SetDefaultPaymentMethod); err != nil {
		return err
	}
	g.Defaults = append(g.Defaults, customerID+":"+paymentMethodID)
	return nil
}

func (g *Gateway) CreatePaymentIntent(_ context.Context, p *stripe.PaymentIntentParams) (*stripeapi.PaymentIntent, error) {
	g.mu.Lock()
	delay := g.IntentDelay
	g.mu.Unlock()
	if delay != nil {
		time.Sleep(delay(p))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(CreatePaymentIntent); err != nil {
		return nil, err
	}
	g.PaymentIntents = append(g.PaymentIntents, p)
	intent := g.newIntent()
	intent.Amount = p.Amount
	intent.Currency = stripeapi.Currency(p.Currency)
	for k, v := range p.Metadata {
		intent.Metadata[k] = v
	}
	return intent, nil
}

func (g *Gateway) CreateSubscription(_ context.Context, customerID string,
	items []stripe.SubscriptionItem,
) (*stripeapi.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(CreateSubscription); err != nil {
		return nil, err
	}
	g.Subscriptions = append(g.Subscriptions, items)
	return &stripeapi.Subscription{
		ID:       g.nextID("sub"),
		Customer: &stripeapi.Customer{ID: customerID},
		Status:   stripeapi.SubscriptionStatusIncomplete,
		LatestInvoice: &stripeapi.Invoice{
			ID:            g.nextID("in"),
			Status:        stripeapi.InvoiceStatusOpen,
			PaymentIntent: g.newIntent(),
		},
	}, nil
}

func (g *Gateway) CreateSubscriptionSchedule(_ context.Context, customerID string,
	phases []stripe.SchedulePhase,
) (*stripeapi.SubscriptionSchedule, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(CreateSubscriptionSchedule); err != nil {
		return nil, err
	}
	g.Schedules = append(g.Schedules, phases)
	return &stripeapi.SubscriptionSchedule{
		ID:           g.nextID("sub_sched"),
		Customer:     &stripeapi.Customer{ID: customerID},
		Subscription: &stripeapi.Subscription{ID: g.nextID("sub")},
	}, nil
}

func (g *Gateway) GetSubscription(_ context.Context, subscriptionID string) (*stripeapi.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(GetSubscription); err != nil {
		return nil, err
	}
	return &stripeapi.Subscription{
		ID:     subscriptionID,
		Status: stripeapi.SubscriptionStatusIncomplete,
		LatestInvoice: &stripeapi.Invoice{
			ID:     g.nextID("in"),
			Status: stripeapi.InvoiceStatusDraft,
		},
	}, nil
}

func (g *Gateway) FinalizeInvoice(_ context.Context, invoiceID string) (*stripeapi.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(FinalizeInvoice); err != nil {
		return nil, err
	}
	g.Finalized = append(g.Finalized, invoiceID)
	return &stripeapi.Invoice{ID: invoiceID, Status: stripeapi.InvoiceStatusOpen}, nil
}

func (g *Gateway) PayInvoice(_ context.Context, invoiceID string) (*stripeapi.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(PayInvoice); err != nil {
		return nil, err
	}
	g.Paid = append(g.Paid, invoiceID)
	return &stripeapi.Invoice{ID: invoiceID, Status: stripeapi.InvoiceStatusPaid}, nil
}

func (g *Gateway) GetInvoice(_ context.Context, invoiceID string) (*stripeapi.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(GetInvoice); err != nil {
		return nil, err
	}
	intent := g.newIntent()
	intent.Status = stripeapi.PaymentIntentStatusSucceeded
	return &stripeapi.Invoice{ID: invoiceID, Status: stripeapi.InvoiceStatusPaid, PaymentIntent: intent}, nil
}

func (g *Gateway) CreatePortalSession(_ context.Context, customerID, returnURL string,
) (*stripeapi.BillingPortalSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(CreatePortalSession); err != nil {
		return nil, err
	}
	g.PortalSessions = append(g.PortalSessions, customerID)
	id := g.nextID("bps")
	return &stripeapi.BillingPortalSession{
		ID:        id,
		Customer:  customerID,
		ReturnURL: returnURL,
		URL:       "https://billing.stripe.com/p/session/" + id,
	}, nil
}

func (g *Gateway) CreateRefund(_ context.Context, paymentIntentID string) (*stripeapi.Refund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(CreateRefund); err != nil {
		return nil, err
	}
	g.Refunds = append(g.Refunds, paymentIntentID)
	return &stripeapi.Refund{
		ID:            g.nextID("re"),
		PaymentIntent: &stripeapi.PaymentIntent{ID: paymentIntentID},
		Status:        stripeapi.RefundStatusSucceeded,
	}, nil
}

func (g *Gateway) ListSubscriptions(_ context.Context, _ string) ([]*stripeapi.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(ListSubscriptions); err != nil {
		return nil, err
	}
	return g.SubscriptionList, nil
}

func (g *Gateway) ListInvoices(_ context.Context, _ string, limit int64) ([]*stripeapi.Invoice, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(ListInvoices); err != nil {
		return nil, err
	}
	if int64(len(g.InvoiceList)) > limit {
		return g.InvoiceList[:limit], nil
	}
	return g.InvoiceList, nil
}

func (g *Gateway) GetProduct(_ context.Context, productID string) (*stripeapi.Product, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.call(GetProduct); err != nil {
		return nil, err
	}
	name, ok := g.Products[productID]
	if !ok {
		return nil, stripe.NewStripeError(stripe.ErrAPICallFailed.Code, "failed to get product",
			&stripeapi.Error{Code: stripeapi.ErrorCodeResourceMissing, HTTPStatusCode: 404})
	}
	return &stripeapi.Product{ID: productID, Name: name}, nil
}
