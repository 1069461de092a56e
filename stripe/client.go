// Package stripe wraps the Stripe API calls needed by the checkout: customers,
// payment methods, payment intents, subscriptions, subscription schedules,
// invoices and billing portal sessions.
package stripe

import (
	"context"
	"fmt"

	stripeapi "github.com/stripe/stripe-go/v81"
	stripeclient "github.com/stripe/stripe-go/v81/client"
)

var _ Gateway = (*Client)(nil)

// Client wraps the Stripe API client. Every call carries the context of the
// request that triggered it.
type Client struct {
	config *Config
	api    *stripeclient.API
}

// NewClient creates a new Stripe client with the given configuration. The
// backends argument allows pointing the client to a mock server, nil uses the
// default Stripe backends.
func NewClient(config *Config, backends *stripeapi.Backends) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config: config,
		api:    stripeclient.New(config.APIKey, backends),
	}, nil
}

// Config returns the configuration used by the client.
func (c *Client) Config() *Config {
	return c.config
}

// ListCustomersByEmail returns up to limit customers whose email matches
// exactly. Only the first page is requested.
func (c *Client) ListCustomersByEmail(ctx context.Context, email string, limit int64) ([]*stripeapi.Customer, error) {
	params := &stripeapi.CustomerListParams{
		Email: stripeapi.String(email),
	}
	params.Context = ctx
	params.Limit = stripeapi.Int64(limit)
	params.Single = true

	var customers []*stripeapi.Customer
	iter := c.api.Customers.List(params)
	for iter.Next() {
		customers = append(customers, iter.Customer())
	}
	if err := iter.Err(); err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to list customers", err)
	}
	return customers, nil
}

// CreateCustomer creates a customer with the payment method attached and the
// preferred locale set.
func (c *Client) CreateCustomer(ctx context.Context, p *CustomerParams) (*stripeapi.Customer, error) {
	params := &stripeapi.CustomerParams{
		Email: stripeapi.String(p.Email),
	}
	if p.PaymentMethodID != "" {
		params.PaymentMethod = stripeapi.String(p.PaymentMethodID)
	}
	if p.Locale != "" {
		params.PreferredLocales = stripeapi.StringSlice([]string{p.Locale})
	}
	params.Context = ctx
	customer, err := c.api.Customers.New(params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to create customer", err)
	}
	return customer, nil
}

// AttachPaymentMethod attaches the payment method to the customer.
func (c *Client) AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) error {
	params := &stripeapi.PaymentMethodAttachParams{
		Customer: stripeapi.String(customerID),
	}
	params.Context = ctx
	if _, err := c.api.PaymentMethods.Attach(paymentMethodID, params); err != nil {
		return NewStripeError(ErrAPICallFailed.Code, "failed to attach payment method", err)
	}
	return nil
}

// SetDefaultPaymentMethod sets the payment method as the default one for the
// customer invoices and refreshes the preferred locale.
func (c *Client) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID, locale string) error {
	params := &stripeapi.CustomerParams{
		InvoiceSettings: &stripeapi.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripeapi.String(paymentMethodID),
		},
	}
	if locale != "" {
		params.PreferredLocales = stripeapi.StringSlice([]string{locale})
	}
	params.Context = ctx
	if _, err := c.api.Customers.Update(customerID, params); err != nil {
		return NewStripeError(ErrAPICallFailed.Code, "failed to update customer default payment method", err)
	}
	return nil
}

// CreatePaymentIntent creates a payment intent that is not confirmed, the
// client confirms it with the returned client secret.
func (c *Client) CreatePaymentIntent(ctx context.Context, p *PaymentIntentParams) (*stripeapi.PaymentIntent, error) {
	currency := p.Currency
	if currency == "" {
		currency = c.config.Currency
	}
	params := &stripeapi.PaymentIntentParams{
		Amount:   stripeapi.Int64(p.Amount),
		Currency: stripeapi.String(currency),
		Confirm:  stripeapi.Bool(false),
	}
	if p.CustomerID != "" {
		params.Customer = stripeapi.String(p.CustomerID)
	}
	if p.PaymentMethodID != "" {
		params.PaymentMethod = stripeapi.String(p.PaymentMethodID)
	}
	for k, v := range p.Metadata {
		params.AddMetadata(k, v)
	}
	params.Context = ctx
	intent, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to create payment intent", err)
	}
	return intent, nil
}

// CreateSubscription creates a subscription whose first invoice stays open
// until the client confirms its payment intent (default_incomplete). The
// latest invoice and its payment intent are expanded.
func (c *Client) CreateSubscription(ctx context.Context, customerID string,
	items []SubscriptionItem,
) (*stripeapi.Subscription, error) {
	params := &stripeapi.SubscriptionParams{
		Customer:        stripeapi.String(customerID),
		PaymentBehavior: stripeapi.String("default_incomplete"),
	}
	for _, item := range items {
		params.Items = append(params.Items, &stripeapi.SubscriptionItemsParams{
			Price:    stripeapi.String(item.Price),
			Quantity: stripeapi.Int64(item.Quantity),
		})
	}
	params.AddExpand("latest_invoice.payment_intent")
	params.Context = ctx
	sub, err := c.api.Subscriptions.New(params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to create subscription", err)
	}
	return sub, nil
}

// CreateSubscriptionSchedule creates a schedule starting now that cancels the
// subscription once every phase has been completed.
func (c *Client) CreateSubscriptionSchedule(ctx context.Context, customerID string,
	phases []SchedulePhase,
) (*stripeapi.SubscriptionSchedule, error) {
	params := &stripeapi.SubscriptionScheduleParams{
		Customer:     stripeapi.String(customerID),
		StartDateNow: stripeapi.Bool(true),
		EndBehavior:  stripeapi.String(string(stripeapi.SubscriptionScheduleEndBehaviorCancel)),
	}
	for _, phase := range phases {
		phaseParams := &stripeapi.SubscriptionSchedulePhaseParams{
			Iterations: stripeapi.Int64(phase.Iterations),
		}
		for _, item := range phase.Items {
			phaseParams.Items = append(phaseParams.Items, &stripeapi.SubscriptionSchedulePhaseItemParams{
				Price:    stripeapi.String(item.Price),
				Quantity: stripeapi.Int64(item.Quantity),
			})
		}
		params.Phases = append(params.Phases, phaseParams)
	}
	params.Context = ctx
	schedule, err := c.api.SubscriptionSchedules.New(params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to create subscription schedule", err)
	}
	return schedule, nil
}

// GetSubscription retrieves a subscription with its latest invoice and the
// invoice payment intent expanded.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*stripeapi.Subscription, error) {
	params := &stripeapi.SubscriptionParams{}
	params.AddExpand("latest_invoice.payment_intent")
	params.Context = ctx
	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to get subscription", err)
	}
	return sub, nil
}

// FinalizeInvoice finalizes a draft invoice.
func (c *Client) FinalizeInvoice(ctx context.Context, invoiceID string) (*stripeapi.Invoice, error) {
	params := &stripeapi.InvoiceFinalizeInvoiceParams{}
	params.Context = ctx
	inv, err := c.api.Invoices.FinalizeInvoice(invoiceID, params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to finalize invoice", err)
	}
	return inv, nil
}

// PayInvoice attempts to pay a finalized invoice.
func (c *Client) PayInvoice(ctx context.Context, invoiceID string) (*stripeapi.Invoice, error) {
	params := &stripeapi.InvoicePayParams{}
	params.Context = ctx
	inv, err := c.api.Invoices.Pay(invoiceID, params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to pay invoice", err)
	}
	return inv, nil
}

// GetInvoice retrieves an invoice with its payment intent expanded.
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*stripeapi.Invoice, error) {
	params := &stripeapi.InvoiceParams{}
	params.AddExpand("payment_intent")
	params.Context = ctx
	inv, err := c.api.Invoices.Get(invoiceID, params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to get invoice", err)
	}
	return inv, nil
}

// CreatePortalSession creates a billing portal session for a customer. An
// empty returnURL falls back to the configured one.
func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string,
) (*stripeapi.BillingPortalSession, error) {
	params := &stripeapi.BillingPortalSessionParams{
		Customer: stripeapi.String(customerID),
	}
	if returnURL == "" {
		returnURL = c.config.PortalReturnURL
	}
	if returnURL != "" {
		params.ReturnURL = stripeapi.String(returnURL)
	}
	params.Context = ctx
	session, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to create portal session", err)
	}
	return session, nil
}

// CreateRefund refunds the whole amount of a payment intent.
func (c *Client) CreateRefund(ctx context.Context, paymentIntentID string) (*stripeapi.Refund, error) {
	params := &stripeapi.RefundParams{
		PaymentIntent: stripeapi.String(paymentIntentID),
	}
	params.Context = ctx
	refund, err := c.api.Refunds.New(params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to create refund", err)
	}
	return refund, nil
}

// ListSubscriptions returns every subscription of the customer whatever its
// status, with the item prices expanded.
func (c *Client) ListSubscriptions(ctx context.Context, customerID string) ([]*stripeapi.Subscription, error) {
	params := &stripeapi.SubscriptionListParams{
		Customer: stripeapi.String(customerID),
		Status:   stripeapi.String("all"),
	}
	params.AddExpand("data.items.data.price")
	params.Context = ctx

	var subs []*stripeapi.Subscription
	iter := c.api.Subscriptions.List(params)
	for iter.Next() {
		subs = append(subs, iter.Subscription())
	}
	if err := iter.Err(); err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to list subscriptions", err)
	}
	return subs, nil
}

// ListInvoices returns the last invoices of the customer, at most limit.
func (c *Client) ListInvoices(ctx context.Context, customerID string, limit int64) ([]*stripeapi.Invoice, error) {
	params := &stripeapi.InvoiceListParams{
		Customer: stripeapi.String(customerID),
	}
	params.Context = ctx
	params.Limit = stripeapi.Int64(limit)
	params.Single = true

	var invoices []*stripeapi.Invoice
	iter := c.api.Invoices.List(params)
	for iter.Next() {
		invoices = append(invoices, iter.Invoice())
	}
	if err := iter.Err(); err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to list invoices", err)
	}
	return invoices, nil
}

// GetProduct retrieves a product.
func (c *Client) GetProduct(ctx context.Context, productID string) (*stripeapi.Product, error) {
	params := &stripeapi.ProductParams{}
	params.Context = ctx
	product, err := c.api.Products.Get(productID, params)
	if err != nil {
		return nil, NewStripeError(ErrAPICallFailed.Code, "failed to get product", err)
	}
	return product, nil
}
