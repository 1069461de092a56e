// Package api provides the HTTP API of the checkout backend.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/lysco/checkout-backend/billing"
	"github.com/lysco/checkout-backend/checkout"
	"github.com/lysco/checkout-backend/stripe"
	"github.com/lysco/checkout-backend/validator"
	"go.vocdoni.io/dvote/log"
)

// DefaultRequestTimeout bounds the handling of a request.
const DefaultRequestTimeout = 45 * time.Second

// Config holds the dependencies of the API. Notifier and Billing are
// optional, the endpoints needing them answer 503 when missing.
type Config struct {
	Host           string
	Port           int
	Checkout       *checkout.Orchestrator
	Gateway        stripe.Gateway
	Notifier       *checkout.Notifier
	Billing        *billing.Service
	RequestTimeout time.Duration
}

// API type represents the API HTTP server.
type API struct {
	host           string
	port           int
	router         *chi.Mux
	server         *http.Server
	checkout       *checkout.Orchestrator
	gateway        stripe.Gateway
	notifier       *checkout.Notifier
	billing        *billing.Service
	validator      *validator.Validator
	requestTimeout time.Duration
}

// New creates a new API HTTP server. It does not start the server. Use Start() for that.
func New(conf *Config) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("missing API configuration")
	}
	if conf.Checkout == nil || conf.Gateway == nil {
		return nil, fmt.Errorf("checkout and gateway are required")
	}
	timeout := conf.RequestTimeout
	if timeout == 0 {
		timeout = DefaultRequestTimeout
	}
	a := &API{
		host:           conf.Host,
		port:           conf.Port,
		checkout:       conf.Checkout,
		gateway:        conf.Gateway,
		notifier:       conf.Notifier,
		billing:        conf.Billing,
		validator:      validator.New(),
		requestTimeout: timeout,
	}
	a.initRouter()
	return a, nil
}

// Router returns the HTTP handler of the API.
func (a *API) Router() http.Handler {
	return a.router
}

// Start starts the API HTTP server (non blocking).
func (a *API) Start() {
	a.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", a.host, a.port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Infow("starting API server", "host", a.host, "port", a.port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
}

// Shutdown stops the server once the running requests are done.
func (a *API) Shutdown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	return a.server.Shutdown(ctx)
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() {
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:     []string{"*"},
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"Content-Type"},
		OptionsPassthrough: true,
		MaxAge:             300, // Maximum value not ignored by any of major browsers
	}).Handler)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Throttle(100))
	r.Use(middleware.Timeout(a.requestTimeout))
	r.MethodNotAllowed(methodNotAllowedHandler)
	r.NotFound(notFoundHandler)

	r.Get(pingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(".")); err != nil {
			log.Warnw("failed to write ping response", "error", err)
		}
	})

	routes := []struct {
		path    string
		handler handlerFunc
	}{
		// run a checkout or get a bare client secret
		{createPaymentIntentEndpoint, a.createPaymentIntentHandler},
		// open the billing portal of a customer
		{createPortalSessionEndpoint, a.createPortalSessionHandler},
		// queue the new document email
		{documentNotificationEndpoint, a.documentNotificationHandler},
		// forward a contact message or a quote request
		{contactEndpoint, a.contactHandler},
		// email an invoice to a client
		{sendInvoiceEndpoint, a.sendInvoiceHandler},
		// refund a reservation
		{refundPaymentEndpoint, a.refundPaymentHandler},
		// subscriptions and invoices of a customer
		{billingDataEndpoint, a.billingDataHandler},
	}
	for _, route := range routes {
		log.Infow("new route", "method", "POST", "path", route.path)
		r.Post(route.path, a.handle(route.handler))
		r.Options(route.path, optionsHandler)
	}
	a.router = r
}
