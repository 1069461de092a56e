package checkout

import (
	"fmt"
	"strings"

	"github.com/lysco/checkout-backend/stripe"
)

// MetadataReservationIndex is the metadata key holding the index of the
// one-time item a payment intent was created for.
const MetadataReservationIndex = "reservationIndex"

// OneTimeItem is a line charged once. Amount is in minor currency units.
type OneTimeItem struct {
	Amount int64
	Index  int
}

// CartItem is a line of the cart as displayed to the customer. It only
// feeds the order email and the invoice.
type CartItem struct {
	Title    string
	Quantity int
	Price    float64
	SKU      string
}

// ClientInfo is the billing identity of the customer.
type ClientInfo struct {
	FirstName   string
	LastName    string
	Address     string
	SiretNumber string
}

// Name returns the full name of the client or "–" when unknown.
func (ci ClientInfo) Name() string {
	name := strings.TrimSpace(ci.FirstName + " " + ci.LastName)
	if name == "" {
		return "–"
	}
	return name
}

// Order is a checkout submission.
type Order struct {
	Email             string
	PaymentMethodID   string
	UserID            string
	OneTimeItems      []OneTimeItem
	SubscriptionItems []stripe.SubscriptionItem
	Items             []CartItem
	Total             float64
	Client            ClientInfo
}

// Validate checks the fields the orchestration cannot run without.
func (o *Order) Validate() error {
	var missing []string
	if o.Email == "" {
		missing = append(missing, "email")
	}
	if o.PaymentMethodID == "" {
		missing = append(missing, "paymentMethodId")
	}
	if o.UserID == "" {
		missing = append(missing, "userId")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	for _, item := range o.OneTimeItems {
		if item.Amount <= 0 {
			return fmt.Errorf("%w: item %d has no amount", ErrInvalidItems, item.Index)
		}
	}
	for _, item := range o.SubscriptionItems {
		if item.Price == "" {
			return fmt.Errorf("%w: subscription item without price", ErrInvalidItems)
		}
	}
	return nil
}

// Customer is the gateway customer of an email.
type Customer struct {
	ID      string
	Email   string
	Created bool
}

// PlanKind is the kind of subscription created for an order.
type PlanKind string

const (
	// PlanStandard is a single subscription of every submitted item.
	PlanStandard PlanKind = "standard"
	// PlanPhased is a schedule of an engagement phase followed by a phase
	// at the standard price.
	PlanPhased PlanKind = "phased"
)

// Phase is a phase of a phased plan.
type Phase struct {
	Price      string
	Quantity   int64
	Iterations int64
}

// Plan describes the subscription to create.
type Plan struct {
	Kind   PlanKind
	Tier   stripe.Tier
	Items  []stripe.SubscriptionItem
	Phases []Phase
}

// IntentResult is the payment handle of a one-time item.
type IntentResult struct {
	Index        int    `json:"index"`
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

// SubscriptionIntent is the payment handle of the subscription.
type SubscriptionIntent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

// Result is the outcome of a checkout.
type Result struct {
	OneTimePaymentIntents     []IntentResult      `json:"oneTimePaymentIntents"`
	SubscriptionPaymentIntent *SubscriptionIntent `json:"subscriptionPaymentIntent"`
	Customer                  *Customer           `json:"-"`
}
