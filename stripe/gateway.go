package stripe

import (
	"context"

	stripeapi "github.com/stripe/stripe-go/v81"
)

// Gateway is the subset of the Stripe API used by the checkout. Client
// implements it against the real API, tests provide fakes.
type Gateway interface {
	ListCustomersByEmail(ctx context.Context, email string, limit int64) ([]*stripeapi.Customer, error)
	CreateCustomer(ctx context.Context, params *CustomerParams) (*stripeapi.Customer, error)
	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) error
	SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID, locale string) error
	CreatePaymentIntent(ctx context.Context, params *PaymentIntentParams) (*stripeapi.PaymentIntent, error)
	CreateSubscription(ctx context.Context, customerID string, items []SubscriptionItem) (*stripeapi.Subscription, error)
	CreateSubscriptionSchedule(ctx context.Context, customerID string, phases []SchedulePhase) (*stripeapi.SubscriptionSchedule, error)
	GetSubscription(ctx context.Context, subscriptionID string) (*stripeapi.Subscription, error)
	FinalizeInvoice(ctx context.Context, invoiceID string) (*stripeapi.Invoice, error)
	PayInvoice(ctx context.Context, invoiceID string) (*stripeapi.Invoice, error)
	GetInvoice(ctx context.Context, invoiceID string) (*stripeapi.Invoice, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*stripeapi.BillingPortalSession, error)
	CreateRefund(ctx context.Context, paymentIntentID string) (*stripeapi.Refund, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]*stripeapi.Subscription, error)
	ListInvoices(ctx context.Context, customerID string, limit int64) ([]*stripeapi.Invoice, error)
	GetProduct(ctx context.Context, productID string) (*stripeapi.Product, error)
}

// CustomerParams holds the fields set when a customer is created.
type CustomerParams struct {
	Email           string
	PaymentMethodID string
	Locale          string
}

// PaymentIntentParams holds parameters for creating a payment intent. Amount
// is expressed in minor currency units. When CustomerID is empty the intent
// is created without customer and payment method.
type PaymentIntentParams struct {
	Amount          int64
	Currency        string
	CustomerID      string
	PaymentMethodID string
	Metadata        map[string]string
}

// SubscriptionItem is a price and its quantity.
type SubscriptionItem struct {
	Price    string
	Quantity int64
}

// SchedulePhase is a phase of a subscription schedule.
type SchedulePhase struct {
	Items      []SubscriptionItem
	Iterations int64
}
