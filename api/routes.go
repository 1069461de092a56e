package api

const (
	// checkout routes

	// POST /create-payment-intent to run a checkout
	createPaymentIntentEndpoint = "/create-payment-intent"
	// POST /create-stripe-portal-session to open the billing portal
	createPortalSessionEndpoint = "/create-stripe-portal-session"
	// POST /refund-stripe-payment to refund a reservation
	refundPaymentEndpoint = "/refund-stripe-payment"
	// POST /get-stripe-data to get the subscriptions and invoices of a customer
	billingDataEndpoint = "/get-stripe-data"

	// notification routes

	// POST /send-document-notification to tell a user a document is available
	documentNotificationEndpoint = "/send-document-notification"
	// POST /send-contact to forward a contact message or a quote request
	contactEndpoint = "/send-contact"
	// POST /send-invoice to email an invoice to a client
	sendInvoiceEndpoint = "/send-invoice"

	// GET /ping to check the service is alive
	pingEndpoint = "/ping"
)
