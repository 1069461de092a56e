// Package apicommon holds the request and response types of the API.
package apicommon

import (
	"github.com/lysco/checkout-backend/billing"
	"github.com/lysco/checkout-backend/checkout"
	"github.com/lysco/checkout-backend/stripe"
)

// OneTimeItem is a line charged once, amount in cents.
type OneTimeItem struct {
	Amount int64 `json:"amount" validate:"gt=0"`
	Index  int   `json:"index" validate:"gte=0"`
}

// SubscriptionItem is a recurring line of the checkout. A missing quantity
// means one.
type SubscriptionItem struct {
	Price    string `json:"price" validate:"required,stripeid=price"`
	Quantity int64  `json:"quantity,omitempty" validate:"gte=0"`
}

// CartItem is a line of the cart as displayed to the customer.
type CartItem struct {
	Title    string  `json:"title" validate:"max=512"`
	Quantity int     `json:"quantity" validate:"gte=0"`
	Price    float64 `json:"price" validate:"gte=0"`
	SKU      string  `json:"sku,omitempty" validate:"max=128"`
}

// ClientInfo is the billing identity of the customer.
type ClientInfo struct {
	FirstName   string `json:"firstName" validate:"max=128"`
	LastName    string `json:"lastName" validate:"max=128"`
	Address     string `json:"address" validate:"max=512"`
	SiretNumber string `json:"siretNumber" validate:"max=32"`
}

// CheckoutRequest is the body of the checkout endpoint. When
// RequestOnlyClientSecret is set only Total is read and the other fields
// are ignored.
type CheckoutRequest struct {
	RequestOnlyClientSecret bool               `json:"requestOnlyClientSecret,omitempty"`
	Email                   string             `json:"email" validate:"required,email"`
	PaymentMethodID         string             `json:"paymentMethodId" validate:"required,stripeid=pm"`
	UserID                  string             `json:"userId" validate:"required,max=128"`
	OneTimeItems            []OneTimeItem      `json:"oneTimeItems" validate:"dive"`
	SubscriptionItems       []SubscriptionItem `json:"subscriptionItems" validate:"dive"`
	Items                   []CartItem         `json:"items" validate:"dive"`
	Total                   float64            `json:"total" validate:"gte=0"`
	ClientInfo              ClientInfo         `json:"clientInfo"`
}

// Order converts the request into the order run by the checkout.
func (cr *CheckoutRequest) Order() *checkout.Order {
	order := &checkout.Order{
		Email:           cr.Email,
		PaymentMethodID: cr.PaymentMethodID,
		UserID:          cr.UserID,
		Total:           cr.Total,
		Client: checkout.ClientInfo{
			FirstName:   cr.ClientInfo.FirstName,
			LastName:    cr.ClientInfo.LastName,
			Address:     cr.ClientInfo.Address,
			SiretNumber: cr.ClientInfo.SiretNumber,
		},
	}
	for _, item := range cr.OneTimeItems {
		order.OneTimeItems = append(order.OneTimeItems, checkout.OneTimeItem{Amount: item.Amount, Index: item.Index})
	}
	for _, item := range cr.SubscriptionItems {
		order.SubscriptionItems = append(order.SubscriptionItems, stripe.SubscriptionItem{
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}
	for _, item := range cr.Items {
		order.Items = append(order.Items, checkout.CartItem{
			Title:    item.Title,
			Quantity: item.Quantity,
			Price:    item.Price,
			SKU:      item.SKU,
		})
	}
	return order
}

// ClientSecretResponse is returned in client secret only mode.
type ClientSecretResponse struct {
	ClientSecret string `json:"clientSecret"`
}

// CheckoutResponse is the result of a checkout.
type CheckoutResponse = checkout.Result

// CustomerRequest identifies a Stripe customer, used by the portal and the
// billing data endpoints.
type CustomerRequest struct {
	StripeCustomerID string `json:"stripeCustomerId" validate:"required,stripeid=cus"`
	ReturnURL        string `json:"returnUrl,omitempty" validate:"omitempty,url"`
}

// PortalSessionResponse holds the URL of a billing portal session.
type PortalSessionResponse struct {
	URL string `json:"url"`
}

// BillingDataResponse is the billing data of a customer.
type BillingDataResponse = billing.Data

// DocumentNotificationRequest announces a document to a user.
type DocumentNotificationRequest struct {
	Email    string `json:"email" validate:"required,email"`
	FileName string `json:"fileName" validate:"required,max=256"`
	FileURL  string `json:"fileUrl" validate:"required,url"`
}

// SendInvoiceRequest asks for the invoice of the given lines to be emailed
// to the client, with the responsible address in copy.
type SendInvoiceRequest struct {
	Email      string     `json:"email" validate:"required,email"`
	FullName   string     `json:"fullName,omitempty" validate:"max=256"`
	Items      []CartItem `json:"items" validate:"required,min=1,dive"`
	ClientInfo ClientInfo `json:"clientInfo"`
}

// Order converts the request into the order printed on the invoice.
func (sr *SendInvoiceRequest) Order() *checkout.Order {
	order := &checkout.Order{
		Email: sr.Email,
		Client: checkout.ClientInfo{
			FirstName:   sr.ClientInfo.FirstName,
			LastName:    sr.ClientInfo.LastName,
			Address:     sr.ClientInfo.Address,
			SiretNumber: sr.ClientInfo.SiretNumber,
		},
	}
	for _, item := range sr.Items {
		order.Items = append(order.Items, checkout.CartItem{
			Title:    item.Title,
			Quantity: item.Quantity,
			Price:    item.Price,
			SKU:      item.SKU,
		})
	}
	return order
}

// SendInvoiceResponse is returned once the invoice mail was queued.
type SendInvoiceResponse struct {
	Success       bool   `json:"success"`
	ID            string `json:"id"`
	InvoiceNumber string `json:"invoiceNumber"`
}

// QueuedResponse is returned when a notification was queued.
type QueuedResponse struct {
	Queued bool   `json:"queued"`
	ID     string `json:"id"`
}

// ContactRequest is a message of the contact form when Subject is set, a
// quote request otherwise.
type ContactRequest struct {
	FirstName   string `json:"firstName" validate:"required,max=128"`
	LastName    string `json:"lastName" validate:"required,max=128"`
	Email       string `json:"email" validate:"required,email"`
	Subject     string `json:"subject,omitempty" validate:"max=256"`
	Message     string `json:"message" validate:"required,max=10000"`
	Phone       string `json:"phone,omitempty" validate:"required_without=Subject,phone"`
	Company     string `json:"company,omitempty" validate:"max=256"`
	ServiceType string `json:"serviceType,omitempty" validate:"required_without=Subject,max=256"`
	Budget      string `json:"budget,omitempty" validate:"max=128"`
}

// IsQuote reports whether the request is a quote request.
func (cr *ContactRequest) IsQuote() bool {
	return cr.Subject == ""
}

// ContactResponse is returned once the message was queued.
type ContactResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// RefundRequest asks for the full refund of a payment.
type RefundRequest struct {
	PaymentIntentID string `json:"paymentIntentId" validate:"required,stripeid=pi"`
	UserEmail       string `json:"userEmail" validate:"required,email"`
	ReservationDate string `json:"reservationDate,omitempty" validate:"max=64"`
	ReservationType string `json:"reservationType,omitempty" validate:"max=256"`
}

// RefundResponse describes the refund created.
type RefundResponse struct {
	Success  bool   `json:"success"`
	RefundID string `json:"refundId"`
	Status   string `json:"status"`
}
