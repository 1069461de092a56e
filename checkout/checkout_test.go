package checkout

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/lysco/checkout-backend/db"
	"github.com/lysco/checkout-backend/notifications/mailtemplates"
	"github.com/lysco/checkout-backend/stripe"
	"github.com/lysco/checkout-backend/stripe/stripetest"
	stripeapi "github.com/stripe/stripe-go/v81"
)

const (
	testEmail         = "marie.dupont@example.com"
	testPaymentMethod = "pm_TestCard01"
	testUserID        = "8c6b3f4e-5a2d-4c11-9b7e-0f2d7c1a9e10"

	testEngagementPrice = "price_SocieteEngagement"
	testStandardPrice   = "price_SocieteStandard"
	testMonthlyPrice    = "price_SocieteMonthly"
)

func TestMain(m *testing.M) {
	if err := mailtemplates.Load(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// memStore is an in-memory db.ProfileStore.
type memStore struct {
	mu       sync.Mutex
	profiles map[string]string
	err      error
}

func newMemStore() *memStore {
	return &memStore{profiles: map[string]string{}}
}

func (s *memStore) SetStripeCustomerID(_ context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.profiles[userID] = customerID
	return nil
}

func (s *memStore) Profile(_ context.Context, userID string) (*db.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.profiles[userID]
	if !ok {
		return nil, db.ErrNotFound
	}
	return &db.Profile{UserID: userID, StripeCustomerID: id}, nil
}

func (*memStore) Close() {}

func testStripeConfig(c *qt.C) *stripe.Config {
	conf, err := stripe.NewConfig("sk_test_123", []string{
		"societe:" + testEngagementPrice + ":" + testStandardPrice,
	})
	c.Assert(err, qt.IsNil)
	return conf
}

func newTestOrchestrator(c *qt.C, gw *stripetest.Gateway, store db.ProfileStore, required bool) *Orchestrator {
	o, err := New(&Config{
		Gateway:             gw,
		Stripe:              testStripeConfig(c),
		Store:               store,
		ProfileLinkRequired: required,
	})
	c.Assert(err, qt.IsNil)
	return o
}

func testOrder() *Order {
	return &Order{
		Email:           testEmail,
		PaymentMethodID: testPaymentMethod,
		UserID:          testUserID,
		OneTimeItems: []OneTimeItem{
			{Amount: 4500, Index: 0},
			{Amount: 2500, Index: 1},
		},
	}
}

func TestNew(t *testing.T) {
	c := qt.New(t)
	_, err := New(nil)
	c.Assert(err, qt.Not(qt.IsNil))
	_, err = New(&Config{Gateway: stripetest.New()})
	c.Assert(err, qt.Not(qt.IsNil))
	_, err = New(&Config{Gateway: stripetest.New(), Stripe: testStripeConfig(c), ProfileLinkRequired: true})
	c.Assert(err, qt.Not(qt.IsNil))
}

func TestCheckoutOneTimeItems(t *testing.T) {
	c := qt.New(t)
	gw := stripetest.New()
	store := newMemStore()
	o := newTestOrchestrator(c, gw, store, false)

	result, err := o.Checkout(context.Background(), testOrder())
	c.Assert(err, qt.IsNil)
	c.Assert(result.SubscriptionPaymentIntent, qt.IsNil)
	c.Assert(result.OneTimePaymentIntents, qt.HasLen, 2)
	indexes := map[int]bool{}
	for _, intent := range result.OneTimePaymentIntents {
		indexes[intent.Index] = true
		c.Assert(intent.ID, qt.Not(qt.Equals), "")
		c.Assert(intent.ClientSecret, qt.Not(qt.Equals), "")
	}
	c.Assert(indexes, qt.DeepEquals, map[int]bool{0: true, 1: true})

	// every intent is unconfirmed, in euros, for the customer and the card
	c.Assert(gw.PaymentIntents, qt.HasLen, 2)
	for _, p := range gw.PaymentIntents {
		c.Assert(p.Currency, qt.Equals, "eur")
		c.Assert(p.CustomerID, qt.Equals, result.Customer.ID)
		c.Assert(p.PaymentMethodID, qt.Equals, testPaymentMethod)
		c.Assert(p.Metadata[MetadataReservationIndex], qt.Not(qt.Equals), "")
	}
	c.Assert(gw.CallCount(stripetest.CreateSubscription), qt.Equals, 0)
	c.Assert(gw.CallCount(stripetest.CreateSubscriptionSchedule), qt.Equals, 0)

	// the profile is linked to the customer
	profile, err := store.Profile(context.Background(), testUserID)
	c.Assert(err, qt.IsNil)
	c.Assert(profile.StripeCustomerID, qt.Equals, result.Customer.ID)
}

func TestCheckoutIndexesIgnoreCompletionOrder(t *testing.T) {
	c := qt.New(t)
	gw := stripetest.New()
	// the first items finish last
	gw.IntentDelay = func(p *stripe.PaymentIntentParams) time.Duration {
		return time.Duration(10000-p.Amount) * time.Microsecond
	}
	o := newTestOrchestrator(c, gw, newMemStore(), false)

	order := testOrder()
	order.OneTimeItems = nil
	for i := 0; i < 6; i++ {
		order.OneTimeItems = append(order.OneTimeItems, OneTimeItem{Amount: int64(1000 + i*1000), Index: i})
	}
	result, err := o.Checkout(context.Background(), order)
	c.Assert(err, qt.IsNil)
	c.Assert(result.OneTimePaymentIntents, qt.HasLen, 6)
	seen := map[int]int{}
	for _, intent := range result.OneTimePaymentIntents {
		seen[intent.Index]++
	}
	for i := 0; i < 6; i++ {
		c.Assert(seen[i], qt.Equals, 1, qt.Commentf("index %d", i))
	}
}

func TestCheckoutMissingFields(t *testing.T) {
	c := qt.New(t)
	for name, mutate := range map[string]func(o *Order){
		"email":         func(o *Order) { o.Email = "" },
		"paymentMethod": func(o *Order) { o.PaymentMethodID = "" },
		"user":          func(o *Order) { o.UserID = "" },
	} {
		c.Run(name, func(c *qt.C) {
			gw := stripetest.New()
			o := newTestOrchestrator(c, gw, newMemStore(), false)
			order := testOrder()
			mutate(order)
			_, err := o.Checkout(context.Background(), order)
			c.Assert(err, qt.ErrorIs, ErrMissingFields)
			c.Assert(gw.TotalCalls(), qt.Equals, 0)
		})
	}
}

func TestResolveCustomer(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("new email", func(c *qt.C) {
		gw := stripetest.New()
		o := newTestOrchestrator(c, gw, nil, false)
		customer, err := o.ResolveCustomer(ctx, testEmail, testPaymentMethod)
		c.Assert(err, qt.IsNil)
		c.Assert(customer.Created, qt.IsTrue)
		c.Assert(gw.CreatedCustomers, qt.HasLen, 1)
		c.Assert(gw.CreatedCustomers[0].PaymentMethodID, qt.Equals, testPaymentMethod)
		c.Assert(gw.CreatedCustomers[0].Locale, qt.Equals, "fr")
	})

	c.Run("existing email", func(c *qt.C) {
		gw := stripetest.New()
		gw.Customers = []*stripeapi.Customer{{ID: "cus_Existing", Email: testEmail}}
		o := newTestOrchestrator(c, gw, nil, false)
		customer, err := o.ResolveCustomer(ctx, testEmail, testPaymentMethod)
		c.Assert(err, qt.IsNil)
		c.Assert(customer.ID, qt.Equals, "cus_Existing")
		c.Assert(customer.Created, qt.IsFalse)
		c.Assert(gw.CallCount(stripetest.CreateCustomer), qt.Equals, 0)
	})

	c.Run("several customers", func(c *qt.C) {
		gw := stripetest.New()
		gw.Customers = []*stripeapi.Customer{
			{ID: "cus_First", Email: testEmail},
			{ID: "cus_Second", Email: testEmail},
		}
		o := newTestOrchestrator(c, gw, nil, false)
		customer, err := o.ResolveCustomer(ctx, testEmail, testPaymentMethod)
		c.Assert(err, qt.IsNil)
		c.Assert(customer.ID, qt.Equals, "cus_First")
		c.Assert(gw.CallCount(stripetest.CreateCustomer), qt.Equals, 0)
	})

	c.Run("lookup failure", func(c *qt.C) {
		gw := stripetest.New()
		gw.Errors[stripetest.ListCustomersByEmail] = fmt.Errorf("stripe unavailable")
		o := newTestOrchestrator(c, gw, nil, false)
		_, err := o.ResolveCustomer(ctx, testEmail, testPaymentMethod)
		c.Assert(err, qt.ErrorMatches, ".*stripe unavailable")
		c.Assert(gw.CallCount(stripetest.CreateCustomer), qt.Equals, 0)
	})
}

func TestResolveCustomerConcurrentSameEmail(t *testing.T) {
	c := qt.New(t)
	gw := stripetest.New()
	o := newTestOrchestrator(c, gw, nil, false)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			customer, err := o.ResolveCustomer(context.Background(), testEmail, testPaymentMethod)
			if err == nil {
				ids[i] = customer.ID
			}
		}()
	}
	wg.Wait()
	c.Assert(gw.CallCount(stripetest.CreateCustomer), qt.Equals, 1)
	for _, id := range ids {
		c.Assert(id, qt.Equals, ids[0])
	}
}

func TestBindPaymentMethod(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	c.Run("already attached", func(c *qt.C) {
		gw := stripetest.New()
		gw.Errors[stripetest.AttachPaymentMethod] = stripe.NewStripeError(stripe.ErrAPICallFailed.Code,
			"failed to attach payment method",
			&stripeapi.Error{Code: stripeapi.ErrorCodeResourceAlreadyExists, Msg: "already attached"})
		o := newTestOrchestrator(c, gw, newMemStore(), false)
		result, err := o.Checkout(ctx, testOrder())
		c.Assert(err, qt.IsNil)
		c.Assert(result.OneTimePaymentIntents, qt.HasLen, 2)
		c.Assert(gw.Defaults, qt.HasLen, 1)
	})

	c.Run("other attach error", func(c *qt.C) {
		gw := stripetest.New()
		gw.Errors[stripetest.AttachPaymentMethod] = fmt.Errorf("card declined")
		o := newTestOrchestrator(c, gw, newMemStore(), false)
		c.Assert(o.BindPaymentMethod(ctx, "cus_1", testPaymentMethod), qt.IsNil)
		c.Assert(gw.CallCount(stripetest.SetDefaultPaymentMethod), qt.Equals, 1)
	})

	c.Run("default update failure", func(c *qt.C) {
		gw := stripetest.New()
		gw.Errors[stripetest.SetDefaultPaymentMethod] = fmt.Errorf("no such customer")
		o := newTestOrchestrator(c, gw, newMemStore(), false)
		_, err := o.Checkout(ctx, testOrder())
		c.Assert(err, qt.ErrorMatches, ".*no such customer")
		c.Assert(gw.CallCount(stripetest.CreatePaymentIntent), qt.Equals, 0)
	})
}

func TestLinkProfilePolicy(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	store := newMemStore()
	store.err = db.ErrNotFound

	gw := stripetest.New()
	o := newTestOrchestrator(c, gw, store, false)
	_, err := o.Checkout(ctx, testOrder())
	c.Assert(err, qt.IsNil)

	gw = stripetest.New()
	o = newTestOrchestrator(c, gw, store, true)
	_, err = o.Checkout(ctx, testOrder())
	c.Assert(err, qt.ErrorIs, ErrProfileLink)
	c.Assert(err, qt.ErrorIs, db.ErrNotFound)
	c.Assert(gw.CallCount(stripetest.CreatePaymentIntent), qt.Equals, 0)

	// without store the link is skipped
	o = newTestOrchestrator(c, stripetest.New(), nil, false)
	c.Assert(o.LinkProfile(ctx, testUserID, "cus_1"), qt.IsNil)
}

func TestIssueOneTimeChargesFailure(t *testing.T) {
	c := qt.New(t)
	gw := stripetest.New()
	gw.Errors[stripetest.CreatePaymentIntent] = fmt.Errorf("amount too small")
	o := newTestOrchestrator(c, gw, newMemStore(), false)
	result, err := o.Checkout(context.Background(), testOrder())
	c.Assert(err, qt.ErrorMatches, ".*amount too small")
	c.Assert(result, qt.IsNil)
	c.Assert(gw.CallCount(stripetest.CreateSubscription), qt.Equals, 0)
}

func TestNewPlan(t *testing.T) {
	c := qt.New(t)
	conf := testStripeConfig(c)

	c.Assert(NewPlan(conf, nil), qt.IsNil)

	plan := NewPlan(conf, []stripe.SubscriptionItem{{Price: testEngagementPrice, Quantity: 2}})
	c.Assert(plan.Kind, qt.Equals, PlanPhased)
	c.Assert(plan.Phases, qt.DeepEquals, []Phase{
		{Price: testEngagementPrice, Quantity: 2, Iterations: 3},
		{Price: testStandardPrice, Quantity: 2, Iterations: 3},
	})

	// only the first item decides, quantities default to one
	plan = NewPlan(conf, []stripe.SubscriptionItem{{Price: testMonthlyPrice}, {Price: testEngagementPrice}})
	c.Assert(plan.Kind, qt.Equals, PlanStandard)
	c.Assert(plan.Items, qt.DeepEquals, []stripe.SubscriptionItem{
		{Price: testMonthlyPrice, Quantity: 1},
		{Price: testEngagementPrice, Quantity: 1},
	})
}

func TestCheckoutPhasedSubscription(t *testing.T) {
	c := qt.New(t)
	gw := stripetest.New()
	o := newTestOrchestrator(c, gw, newMemStore(), false)

	order := testOrder()
	order.OneTimeItems = nil
	order.SubscriptionItems = []stripe.SubscriptionItem{{Price: testEngagementPrice}}
	result, err := o.Checkout(context.Background(), order)
	c.Assert(err, qt.IsNil)
	c.Assert(result.OneTimePaymentIntents, qt.HasLen, 0)
	c.Assert(result.SubscriptionPaymentIntent, qt.Not(qt.IsNil))
	c.Assert(result.SubscriptionPaymentIntent.ClientSecret, qt.Not(qt.Equals), "")

	c.Assert(gw.Schedules, qt.HasLen, 1)
	phases := gw.Schedules[0]
	c.Assert(phases, qt.HasLen, 2)
	c.Assert(phases[0].Iterations, qt.Equals, int64(3))
	c.Assert(phases[1].Iterations, qt.Equals, int64(3))
	c.Assert(phases[0].Items, qt.DeepEquals, []stripe.SubscriptionItem{{Price: testEngagementPrice, Quantity: 1}})
	c.Assert(phases[1].Items, qt.DeepEquals, []stripe.SubscriptionItem{{Price: testStandardPrice, Quantity: 1}})
	c.Assert(gw.CallCount(stripetest.CreateSubscription), qt.Equals, 0)

	// the first invoice is finalized and paid
	c.Assert(gw.Finalized, qt.HasLen, 1)
	c.Assert(gw.Paid, qt.DeepEquals, gw.Finalized)
	c.Assert(gw.CallCount(stripetest.GetInvoice), qt.Equals, 1)
}

func TestCheckoutStandardSubscription(t *testing.T) {
	c := qt.New(t)
	gw := stripetest.New()
	o := newTestOrchestrator(c, gw, newMemStore(), false)

	order := testOrder()
	order.SubscriptionItems = []stripe.SubscriptionItem{{Price: testMonthlyPrice, Quantity: 1}}
	result, err := o.Checkout(context.Background(), order)
	c.Assert(err, qt.IsNil)
	c.Assert(result.OneTimePaymentIntents, qt.HasLen, 2)
	c.Assert(result.SubscriptionPaymentIntent, qt.Not(qt.IsNil))
	c.Assert(gw.Subscriptions, qt.HasLen, 1)
	c.Assert(gw.CallCount(stripetest.CreateSubscriptionSchedule), qt.Equals, 0)
	c.Assert(gw.CallCount(stripetest.FinalizeInvoice), qt.Equals, 0)
}

func TestCheckoutSubscriptionFailure(t *testing.T) {
	c := qt.New(t)
	gw := stripetest.New()
	gw.Errors[stripetest.PayInvoice] = fmt.Errorf("card declined")
	o := newTestOrchestrator(c, gw, newMemStore(), false)

	order := testOrder()
	order.SubscriptionItems = []stripe.SubscriptionItem{{Price: testEngagementPrice}}
	_, err := o.Checkout(context.Background(), order)
	c.Assert(err, qt.ErrorMatches, ".*card declined")
	c.Assert(gw.CallCount(stripetest.GetInvoice), qt.Equals, 0)
}

func TestClientSecretOnly(t *testing.T) {
	c := qt.New(t)
	gw := stripetest.New()
	o := newTestOrchestrator(c, gw, nil, false)
	ctx := context.Background()

	secret, err := o.ClientSecretOnly(ctx, 12.5)
	c.Assert(err, qt.IsNil)
	c.Assert(secret, qt.Not(qt.Equals), "")
	c.Assert(gw.PaymentIntents[0].Amount, qt.Equals, int64(1250))
	c.Assert(gw.PaymentIntents[0].CustomerID, qt.Equals, "")

	_, err = o.ClientSecretOnly(ctx, 19.99)
	c.Assert(err, qt.IsNil)
	c.Assert(gw.PaymentIntents[1].Amount, qt.Equals, int64(1999))

	for _, total := range []float64{0, -3, 0.001} {
		_, err = o.ClientSecretOnly(ctx, total)
		c.Assert(err, qt.Equals, ErrInvalidAmount)
	}
	c.Assert(gw.CallCount(stripetest.CreatePaymentIntent), qt.Equals, 2)
}

func TestAggregateInvalidMetadata(t *testing.T) {
	c := qt.New(t)
	_, err := aggregate([]*stripeapi.PaymentIntent{{ID: "pi_1", Metadata: map[string]string{}}}, nil)
	c.Assert(err, qt.ErrorIs, ErrInvalidIntent)
}
