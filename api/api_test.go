package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/google/uuid"
	"github.com/lysco/checkout-backend/api/apicommon"
	"github.com/lysco/checkout-backend/billing"
	"github.com/lysco/checkout-backend/checkout"
	"github.com/lysco/checkout-backend/db"
	"github.com/lysco/checkout-backend/errors"
	"github.com/lysco/checkout-backend/invoice"
	"github.com/lysco/checkout-backend/notifications"
	"github.com/lysco/checkout-backend/notifications/mailtemplates"
	"github.com/lysco/checkout-backend/stripe"
	"github.com/lysco/checkout-backend/stripe/stripetest"
	stripeapi "github.com/stripe/stripe-go/v81"
)

const (
	testEmail         = "marie.dupont@example.com"
	testPaymentMethod = "pm_TestCard01"
	testUserID        = "8c6b3f4e-5a2d-4c11-9b7e-0f2d7c1a9e10"
	testCustomerID    = "cus_TestCustomer01"
	testResponsible   = "contact@lysco.fr"
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
}

func (s *memStore) SetStripeCustomerID(_ context.Context, userID, customerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
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

// memQueue keeps the pushed notifications by kind.
type memQueue struct {
	mu    sync.Mutex
	items map[string][]*notifications.Notification
}

func (q *memQueue) Push(kind string, n *notifications.Notification) (uuid.UUID, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := n.Validate(); err != nil {
		return uuid.Nil, err
	}
	q.items[kind] = append(q.items[kind], n)
	return uuid.New(), nil
}

func (q *memQueue) kind(kind string) []*notifications.Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items[kind]
}

type testEnv struct {
	api      *API
	gateway  *stripetest.Gateway
	store    *memStore
	queue    *memQueue
	notifier *checkout.Notifier
}

// newTestEnv builds an API backed by the fake gateway. Without notifier
// the notification routes are unavailable.
func newTestEnv(c *qt.C, withNotifier bool) *testEnv {
	return newTestEnvWithRenderer(c, withNotifier, nil)
}

// newTestEnvWithRenderer is newTestEnv with an invoice renderer on the
// notifier.
func newTestEnvWithRenderer(c *qt.C, withNotifier bool, renderer checkout.DocumentRenderer) *testEnv {
	env := &testEnv{
		gateway: stripetest.New(),
		store:   &memStore{profiles: map[string]string{}},
		queue:   &memQueue{items: map[string][]*notifications.Notification{}},
	}
	stripeConf, err := stripe.NewConfig("sk_test_123", []string{
		"societe:price_SocieteEngagement:price_SocieteStandard",
	})
	c.Assert(err, qt.IsNil)

	var notifier *checkout.Notifier
	if withNotifier {
		notifier, err = checkout.NewNotifier(&checkout.NotifierConfig{
			Queue:            env.queue,
			Renderer:         renderer,
			ResponsibleEmail: testResponsible,
		})
		c.Assert(err, qt.IsNil)
		env.notifier = notifier
	}
	orchestrator, err := checkout.New(&checkout.Config{
		Gateway:  env.gateway,
		Stripe:   stripeConf,
		Store:    env.store,
		Notifier: notifier,
	})
	c.Assert(err, qt.IsNil)
	env.api, err = New(&Config{
		Checkout: orchestrator,
		Gateway:  env.gateway,
		Notifier: notifier,
		Billing:  billing.NewService(env.gateway, time.Minute),
	})
	c.Assert(err, qt.IsNil)
	return env
}

// do sends the request to the router and returns the recorded response.
func (env *testEnv) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		reader = bytes.NewReader(mustMarshal(b))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.api.Router().ServeHTTP(rec, req)
	return rec
}

// mustMarshal helper function marshalls the input interface into a byte slice.
// It panics if the marshalling fails.
func mustMarshal(i any) []byte {
	b, err := json.Marshal(i)
	if err != nil {
		panic(err)
	}
	return b
}

// assertAPIError checks the status and the code of an error response.
func assertAPIError(c *qt.C, rec *httptest.ResponseRecorder, want errors.Error) {
	c.Helper()
	c.Assert(rec.Code, qt.Equals, want.HTTPstatus, qt.Commentf("body: %s", rec.Body.String()))
	var body struct {
		Error string `json:"error"`
		Code  int    `json:"code"`
	}
	c.Assert(json.Unmarshal(rec.Body.Bytes(), &body), qt.IsNil)
	c.Assert(body.Code, qt.Equals, want.Code)
}

func checkoutRequest() *apicommon.CheckoutRequest {
	return &apicommon.CheckoutRequest{
		Email:           testEmail,
		PaymentMethodID: testPaymentMethod,
		UserID:          testUserID,
		OneTimeItems: []apicommon.OneTimeItem{
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
}

func TestRouting(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, true)

	c.Run("ping", func(c *qt.C) {
		rec := env.do(http.MethodGet, pingEndpoint, nil)
		c.Assert(rec.Code, qt.Equals, http.StatusOK)
		c.Assert(rec.Body.String(), qt.Equals, ".")
	})

	c.Run("preflight", func(c *qt.C) {
		for _, path := range []string{
			createPaymentIntentEndpoint, createPortalSessionEndpoint, refundPaymentEndpoint,
			billingDataEndpoint, documentNotificationEndpoint, contactEndpoint, sendInvoiceEndpoint,
		} {
			rec := env.do(http.MethodOptions, path, nil)
			c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf(path))
			c.Assert(rec.Header().Get("Access-Control-Allow-Origin"), qt.Equals, "*")
			c.Assert(rec.Header().Get("Access-Control-Allow-Methods"), qt.Equals, "POST, OPTIONS")
			c.Assert(rec.Header().Get("Access-Control-Allow-Headers"), qt.Equals, "Content-Type")
			c.Assert(rec.Body.Len(), qt.Equals, 0)
		}
	})

	c.Run("method not allowed", func(c *qt.C) {
		rec := env.do(http.MethodGet, createPaymentIntentEndpoint, nil)
		assertAPIError(c, rec, errors.ErrMethodNotAllowed)
		c.Assert(rec.Header().Get("Allow"), qt.Equals, "POST, OPTIONS")
	})

	c.Run("not found", func(c *qt.C) {
		rec := env.do(http.MethodPost, "/unknown", nil)
		assertAPIError(c, rec, errors.ErrRouteNotFound)
	})

	c.Assert(env.gateway.TotalCalls(), qt.Equals, 0)
}

func TestCreatePaymentIntent(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, true)

	rec := env.do(http.MethodPost, createPaymentIntentEndpoint, checkoutRequest())
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))

	var raw map[string]json.RawMessage
	c.Assert(json.Unmarshal(rec.Body.Bytes(), &raw), qt.IsNil)
	c.Assert(string(raw["subscriptionPaymentIntent"]), qt.Equals, "null")

	resp := &checkout.Result{}
	c.Assert(json.Unmarshal(rec.Body.Bytes(), resp), qt.IsNil)
	c.Assert(resp.OneTimePaymentIntents, qt.HasLen, 2)
	indexes := map[int]string{}
	for _, intent := range resp.OneTimePaymentIntents {
		c.Assert(intent.ClientSecret, qt.Not(qt.Equals), "")
		indexes[intent.Index] = intent.ID
	}
	c.Assert(indexes, qt.HasLen, 2)
	c.Assert(indexes[0], qt.Not(qt.Equals), "")
	c.Assert(indexes[1], qt.Not(qt.Equals), "")

	// the customer was created and linked to the profile
	c.Assert(env.gateway.CreatedCustomers, qt.HasLen, 1)
	profile, err := env.store.Profile(context.Background(), testUserID)
	c.Assert(err, qt.IsNil)
	c.Assert(profile.StripeCustomerID, qt.Not(qt.Equals), "")
	env.notifier.Wait()
	c.Assert(env.queue.kind(checkout.KindOrder), qt.HasLen, 1)
}

type panickingRenderer struct{}

func (panickingRenderer) Render(*invoice.Document) ([]byte, error) {
	panic("font table corrupted")
}

func TestCreatePaymentIntentRendererPanics(t *testing.T) {
	c := qt.New(t)
	env := newTestEnvWithRenderer(c, true, panickingRenderer{})

	// the intents exist, so the client must get them whatever the invoice
	rec := env.do(http.MethodPost, createPaymentIntentEndpoint, checkoutRequest())
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	resp := &checkout.Result{}
	c.Assert(json.Unmarshal(rec.Body.Bytes(), resp), qt.IsNil)
	c.Assert(resp.OneTimePaymentIntents, qt.HasLen, 2)

	env.notifier.Wait()
	orders := env.queue.kind(checkout.KindOrder)
	c.Assert(orders, qt.HasLen, 1)
	c.Assert(orders[0].Attachments, qt.HasLen, 0)
}

func TestCreatePaymentIntentSubscription(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, false)

	req := checkoutRequest()
	req.OneTimeItems = nil
	req.SubscriptionItems = []apicommon.SubscriptionItem{{Price: "price_SocieteEngagement"}}
	rec := env.do(http.MethodPost, createPaymentIntentEndpoint, req)
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))

	resp := &checkout.Result{}
	c.Assert(json.Unmarshal(rec.Body.Bytes(), resp), qt.IsNil)
	c.Assert(resp.OneTimePaymentIntents, qt.HasLen, 0)
	c.Assert(resp.SubscriptionPaymentIntent, qt.Not(qt.IsNil))
	c.Assert(resp.SubscriptionPaymentIntent.ClientSecret, qt.Not(qt.Equals), "")
	c.Assert(env.gateway.CallCount(stripetest.CreateSubscriptionSchedule), qt.Equals, 1)
}

func TestCreatePaymentIntentInvalid(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, true)

	c.Run("missing fields", func(c *qt.C) {
		for _, edit := range []func(*apicommon.CheckoutRequest){
			func(r *apicommon.CheckoutRequest) { r.Email = "" },
			func(r *apicommon.CheckoutRequest) { r.PaymentMethodID = "" },
			func(r *apicommon.CheckoutRequest) { r.UserID = "" },
		} {
			req := checkoutRequest()
			edit(req)
			assertAPIError(c, env.do(http.MethodPost, createPaymentIntentEndpoint, req),
				errors.ErrMissingCheckoutFields)
		}
	})

	c.Run("invalid items", func(c *qt.C) {
		req := checkoutRequest()
		req.OneTimeItems[1].Amount = 0
		assertAPIError(c, env.do(http.MethodPost, createPaymentIntentEndpoint, req),
			errors.ErrInvalidCheckoutItems)

		req = checkoutRequest()
		req.PaymentMethodID = "card_123"
		assertAPIError(c, env.do(http.MethodPost, createPaymentIntentEndpoint, req),
			errors.ErrInvalidCheckoutItems)
	})

	c.Run("malformed body", func(c *qt.C) {
		assertAPIError(c, env.do(http.MethodPost, createPaymentIntentEndpoint, "{not json"),
			errors.ErrMalformedBody)
		// unknown fields are rejected
		body := `{"email":"` + testEmail + `","paymentMethodId":"pm_1","userId":"u","coupon":"FREE"}`
		assertAPIError(c, env.do(http.MethodPost, createPaymentIntentEndpoint, body),
			errors.ErrMalformedBody)
	})

	// nothing reached the payment provider
	c.Assert(env.gateway.TotalCalls(), qt.Equals, 0)

	c.Run("provider failure", func(c *qt.C) {
		env.gateway.Errors[stripetest.CreatePaymentIntent] = fmt.Errorf("card declined")
		assertAPIError(c, env.do(http.MethodPost, createPaymentIntentEndpoint, checkoutRequest()),
			errors.ErrStripeError)
	})
}

func TestClientSecretOnly(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, false)

	rec := env.do(http.MethodPost, createPaymentIntentEndpoint, &apicommon.CheckoutRequest{
		RequestOnlyClientSecret: true,
		Total:                   89.9,
	})
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	resp := &apicommon.ClientSecretResponse{}
	c.Assert(json.Unmarshal(rec.Body.Bytes(), resp), qt.IsNil)
	c.Assert(resp.ClientSecret, qt.Not(qt.Equals), "")

	c.Assert(env.gateway.PaymentIntents, qt.HasLen, 1)
	c.Assert(env.gateway.PaymentIntents[0].Amount, qt.Equals, int64(8990))
	c.Assert(env.gateway.PaymentIntents[0].CustomerID, qt.Equals, "")
	c.Assert(env.gateway.CallCount(stripetest.CreateCustomer), qt.Equals, 0)

	rec = env.do(http.MethodPost, createPaymentIntentEndpoint, &apicommon.CheckoutRequest{
		RequestOnlyClientSecret: true,
	})
	assertAPIError(c, rec, errors.ErrInvalidAmount)
}

func TestCreatePortalSession(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, false)

	rec := env.do(http.MethodPost, createPortalSessionEndpoint, &apicommon.CustomerRequest{
		StripeCustomerID: testCustomerID,
		ReturnURL:        "https://lysco.fr/compte",
	})
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	resp := &apicommon.PortalSessionResponse{}
	c.Assert(json.Unmarshal(rec.Body.Bytes(), resp), qt.IsNil)
	c.Assert(resp.URL, qt.Matches, `https://billing\.stripe\.com/p/session/.+`)
	c.Assert(env.gateway.PortalSessions, qt.DeepEquals, []string{testCustomerID})

	assertAPIError(c, env.do(http.MethodPost, createPortalSessionEndpoint, &apicommon.CustomerRequest{}),
		errors.ErrMissingStripeCustomer)

	env.gateway.Errors[stripetest.CreatePortalSession] = fmt.Errorf("no portal configuration")
	assertAPIError(c, env.do(http.MethodPost, createPortalSessionEndpoint, &apicommon.CustomerRequest{
		StripeCustomerID: testCustomerID,
	}), errors.ErrPortalSessionFailed)
}

func TestRefundPayment(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, true)

	rec := env.do(http.MethodPost, refundPaymentEndpoint, &apicommon.RefundRequest{
		PaymentIntentID: "pi_Reservation01",
		UserEmail:       testEmail,
		ReservationDate: "2025-03-14",
		ReservationType: "formation-room-2025-03-14-morning",
	})
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	resp := &apicommon.RefundResponse{}
	c.Assert(json.Unmarshal(rec.Body.Bytes(), resp), qt.IsNil)
	c.Assert(resp.Success, qt.IsTrue)
	c.Assert(resp.RefundID, qt.Not(qt.Equals), "")
	c.Assert(resp.Status, qt.Equals, string(stripeapi.RefundStatusSucceeded))
	c.Assert(env.gateway.Refunds, qt.DeepEquals, []string{"pi_Reservation01"})

	c.Assert(env.queue.kind(checkout.KindRefundAdmin), qt.HasLen, 1)
	customer := env.queue.kind(checkout.KindRefundCustomer)
	c.Assert(customer, qt.HasLen, 1)
	c.Assert(customer[0].ToAddress, qt.Equals, testEmail)

	assertAPIError(c, env.do(http.MethodPost, refundPaymentEndpoint, &apicommon.RefundRequest{
		PaymentIntentID: "pi_Reservation01",
	}), errors.ErrInvalidRefundRequest)

	env.gateway.Errors[stripetest.CreateRefund] = fmt.Errorf("charge already refunded")
	assertAPIError(c, env.do(http.MethodPost, refundPaymentEndpoint, &apicommon.RefundRequest{
		PaymentIntentID: "pi_Reservation01",
		UserEmail:       testEmail,
	}), errors.ErrRefundFailed)
}

func TestBillingData(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, false)
	env.gateway.SubscriptionList = []*stripeapi.Subscription{{
		ID:     "sub_Test01",
		Status: stripeapi.SubscriptionStatusActive,
		Items: &stripeapi.SubscriptionItemList{Data: []*stripeapi.SubscriptionItem{{
			ID:       "si_Test01",
			Quantity: 1,
			Price: &stripeapi.Price{
				ID:         "price_SocieteStandard",
				Currency:   stripeapi.CurrencyEUR,
				UnitAmount: 4900,
				Product:    &stripeapi.Product{ID: "prod_Societe"},
			},
		}}},
	}}
	env.gateway.Products["prod_Societe"] = "Domiciliation société"

	rec := env.do(http.MethodPost, billingDataEndpoint, &apicommon.CustomerRequest{StripeCustomerID: testCustomerID})
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	data := &billing.Data{}
	c.Assert(json.Unmarshal(rec.Body.Bytes(), data), qt.IsNil)
	c.Assert(data.Subscriptions, qt.HasLen, 1)
	c.Assert(data.Subscriptions[0].Items, qt.HasLen, 1)
	c.Assert(data.Subscriptions[0].Items[0].ProductName, qt.Equals, "Domiciliation société")
	c.Assert(data.Invoices, qt.HasLen, 0)

	// served from the cache the second time
	rec = env.do(http.MethodPost, billingDataEndpoint, &apicommon.CustomerRequest{StripeCustomerID: testCustomerID})
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(env.gateway.CallCount(stripetest.ListSubscriptions), qt.Equals, 1)

	assertAPIError(c, env.do(http.MethodPost, billingDataEndpoint, &apicommon.CustomerRequest{}),
		errors.ErrMissingStripeCustomer)

	env.gateway.Errors[stripetest.ListSubscriptions] = fmt.Errorf("rate limited")
	assertAPIError(c, env.do(http.MethodPost, billingDataEndpoint, &apicommon.CustomerRequest{
		StripeCustomerID: "cus_TestCustomer02",
	}), errors.ErrBillingDataFailed)
}

func TestDocumentNotification(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, true)

	rec := env.do(http.MethodPost, documentNotificationEndpoint, &apicommon.DocumentNotificationRequest{
		Email:    testEmail,
		FileName: "Contrat de domiciliation.pdf",
		FileURL:  "https://files.lysco.fr/contrat.pdf",
	})
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	resp := &apicommon.QueuedResponse{}
	c.Assert(json.Unmarshal(rec.Body.Bytes(), resp), qt.IsNil)
	c.Assert(resp.Queued, qt.IsTrue)
	c.Assert(resp.ID, qt.Not(qt.Equals), "")
	docs := env.queue.kind(checkout.KindDocument)
	c.Assert(docs, qt.HasLen, 1)
	c.Assert(docs[0].ToAddress, qt.Equals, testEmail)

	assertAPIError(c, env.do(http.MethodPost, documentNotificationEndpoint, &apicommon.DocumentNotificationRequest{
		Email:    testEmail,
		FileName: "contrat.pdf",
		FileURL:  "not a url",
	}), errors.ErrInvalidDocumentRequest)

	assertAPIError(c, env.do(http.MethodPost, documentNotificationEndpoint, &apicommon.DocumentNotificationRequest{
		Email:    "marie.dupont",
		FileName: "contrat.pdf",
		FileURL:  "https://files.lysco.fr/contrat.pdf",
	}), errors.ErrEmailMalformed)

	// without notifier the route is unavailable
	env = newTestEnv(c, false)
	assertAPIError(c, env.do(http.MethodPost, documentNotificationEndpoint, &apicommon.DocumentNotificationRequest{
		Email:    testEmail,
		FileName: "contrat.pdf",
		FileURL:  "https://files.lysco.fr/contrat.pdf",
	}), errors.ErrServiceUnavailable)
}

func TestSendInvoice(t *testing.T) {
	c := qt.New(t)
	env := newTestEnvWithRenderer(c, true, &invoice.Renderer{Uncompressed: true})
	request := func() *apicommon.SendInvoiceRequest {
		return &apicommon.SendInvoiceRequest{
			Email:    testEmail,
			FullName: "Marie Dupont",
			Items:    []apicommon.CartItem{{Title: "Domiciliation société", Quantity: 1, Price: 29.99}},
			ClientInfo: apicommon.ClientInfo{
				FirstName: "Marie",
				LastName:  "Dupont",
				Address:   "12 rue des Lys, Paris",
			},
		}
	}

	rec := env.do(http.MethodPost, sendInvoiceEndpoint, request())
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	resp := &apicommon.SendInvoiceResponse{}
	c.Assert(json.Unmarshal(rec.Body.Bytes(), resp), qt.IsNil)
	c.Assert(resp.Success, qt.IsTrue)
	c.Assert(resp.ID, qt.Not(qt.Equals), "")
	c.Assert(resp.InvoiceNumber, qt.Matches, `INV-\d{8}-\d{6}`)
	invoices := env.queue.kind(checkout.KindInvoice)
	c.Assert(invoices, qt.HasLen, 1)
	c.Assert(invoices[0].ToAddress, qt.Equals, testEmail)
	c.Assert(invoices[0].CCAddress, qt.Equals, testResponsible)
	c.Assert(invoices[0].Attachments, qt.HasLen, 1)
	c.Assert(invoices[0].Attachments[0].Filename, qt.Equals, "facture-"+resp.InvoiceNumber+".pdf")
	c.Assert(env.gateway.TotalCalls(), qt.Equals, 0)

	req := request()
	req.Email = ""
	assertAPIError(c, env.do(http.MethodPost, sendInvoiceEndpoint, req), errors.ErrInvalidInvoiceRequest)
	req = request()
	req.Items = nil
	assertAPIError(c, env.do(http.MethodPost, sendInvoiceEndpoint, req), errors.ErrInvalidInvoiceRequest)
	req = request()
	req.Email = "marie.dupont"
	assertAPIError(c, env.do(http.MethodPost, sendInvoiceEndpoint, req), errors.ErrEmailMalformed)

	// a broken renderer fails the request and queues nothing
	env = newTestEnvWithRenderer(c, true, panickingRenderer{})
	assertAPIError(c, env.do(http.MethodPost, sendInvoiceEndpoint, request()), errors.ErrInvoiceRenderFailed)
	c.Assert(env.queue.kind(checkout.KindInvoice), qt.HasLen, 0)

	// without renderer or notifier the route is unavailable
	env = newTestEnv(c, true)
	assertAPIError(c, env.do(http.MethodPost, sendInvoiceEndpoint, request()), errors.ErrServiceUnavailable)
	env = newTestEnv(c, false)
	assertAPIError(c, env.do(http.MethodPost, sendInvoiceEndpoint, request()), errors.ErrServiceUnavailable)
}

func TestContact(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c, true)

	c.Run("message", func(c *qt.C) {
		rec := env.do(http.MethodPost, contactEndpoint, &apicommon.ContactRequest{
			FirstName: "Marie",
			LastName:  "Dupont",
			Email:     testEmail,
			Subject:   "Horaires",
			Message:   "Bonjour, quels sont vos horaires ?",
		})
		c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
		resp := &apicommon.ContactResponse{}
		c.Assert(json.Unmarshal(rec.Body.Bytes(), resp), qt.IsNil)
		c.Assert(resp.Status, qt.Equals, "success")
		msgs := env.queue.kind(checkout.KindContact)
		c.Assert(msgs, qt.HasLen, 1)
		c.Assert(msgs[0].ToAddress, qt.Equals, testResponsible)
		c.Assert(msgs[0].ReplyTo, qt.Equals, testEmail)
	})

	c.Run("quote", func(c *qt.C) {
		rec := env.do(http.MethodPost, contactEndpoint, &apicommon.ContactRequest{
			FirstName:   "Marie",
			LastName:    "Dupont",
			Email:       testEmail,
			Phone:       "06 12 34 56 78",
			ServiceType: "domiciliation",
			Message:     "Devis pour une SAS",
		})
		c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
		quotes := env.queue.kind(checkout.KindQuote)
		c.Assert(quotes, qt.HasLen, 1)
		c.Assert(quotes[0].PlainBody, qt.Contains, "+33612345678")
	})

	c.Run("invalid", func(c *qt.C) {
		// a quote needs a phone number and a service type
		assertAPIError(c, env.do(http.MethodPost, contactEndpoint, &apicommon.ContactRequest{
			FirstName: "Marie",
			LastName:  "Dupont",
			Email:     testEmail,
			Message:   "Devis",
		}), errors.ErrInvalidContactRequest)

		assertAPIError(c, env.do(http.MethodPost, contactEndpoint, &apicommon.ContactRequest{
			FirstName:   "Marie",
			LastName:    "Dupont",
			Email:       testEmail,
			Phone:       "12",
			ServiceType: "domiciliation",
			Message:     "Devis",
		}), errors.ErrInvalidPhoneNumber)
	})
}
