// Package mailtemplates provides the email templates of the service (order
// confirmation, document notification, contact and quote requests, refunds)
// along with utilities for rendering them.
package mailtemplates

import "github.com/lysco/checkout-backend/notifications"

const (
	// LogoURL is the logo shown in the header of the emails.
	LogoURL = "https://lys-and-co.com/wp-content/uploads/2025/03/logo-lysco.jpg"
	// SiteURL is the public website linked in the footer of the emails.
	SiteURL = "https://lys-and-co.com"
)

// Brand holds the values shared by every branded template.
type Brand struct {
	LogoURL string
	SiteURL string
}

// DefaultBrand returns the brand values of Lys&Co.
func DefaultBrand() Brand {
	return Brand{LogoURL: LogoURL, SiteURL: SiteURL}
}

// OrderLine is a line of the order confirmation.
type OrderLine struct {
	Title    string
	Quantity int
	Price    float64
}

// OrderData feeds OrderConfirmationNotification.
type OrderData struct {
	Brand
	ClientName    string
	Email         string
	Address       string
	SiretNumber   string
	Items         []OrderLine
	Total         float64
	InvoiceNumber string
	InvoiceDate   string
}

// OrderConfirmationNotification is sent to the customer, with the
// responsible address in copy, once the checkout succeeded. The invoice is
// attached to it.
var OrderConfirmationNotification = MailTemplate{
	File: "order_confirmation",
	Placeholder: notifications.Notification{
		Subject: "Nouvelle commande & Facture Lys & Co",
		PlainBody: `Nouvelle commande Lys & Co

Client : {{.ClientName}} ({{.Email}})
Adresse : {{or .Address "–"}}
SIRET : {{or .SiretNumber "–"}}
Facture : {{.InvoiceNumber}} du {{.InvoiceDate}}

{{range .Items}}- {{.Title}} x{{.Quantity}} : {{euros .Price}}
{{end}}
Total : {{euros .Total}}

Merci,
L’équipe Lys & Co`,
	},
}

// DocumentData feeds DocumentNotification.
type DocumentData struct {
	Brand
	FileName string
	FileURL  string
}

// DocumentNotification tells a user that a new document is available.
var DocumentNotification = MailTemplate{
	File: "document_notification",
	Placeholder: notifications.Notification{
		Subject: "Nouveau document : {{.FileName}}",
		PlainBody: `Bonjour,

Un nouveau document vous a été envoyé : {{.FileName}}
Vous pouvez le consulter ou le télécharger ici : {{.FileURL}}

Merci,
L’équipe Lys & Co`,
	},
}

// InvoiceData feeds InvoiceNotification.
type InvoiceData struct {
	Brand
	FullName      string
	InvoiceNumber string
}

// InvoiceNotification sends an invoice to a client, the PDF is attached to
// it.
var InvoiceNotification = MailTemplate{
	File: "invoice",
	Placeholder: notifications.Notification{
		Subject: "Votre facture Lys & Co",
		PlainBody: `Bonjour{{if .FullName}} {{.FullName}}{{end}},

Merci pour votre commande chez Lys & Co.
Veuillez trouver en pièce jointe votre facture {{.InvoiceNumber}} au format PDF.

À très bientôt,
L’équipe Lys & Co`,
	},
}

// ContactData feeds ContactMessageNotification.
type ContactData struct {
	FirstName string
	LastName  string
	Email     string
	Subject   string
	Message   string
}

// ContactMessageNotification forwards a message of the contact form to the
// responsible address.
var ContactMessageNotification = MailTemplate{
	File: "contact_message",
	Placeholder: notifications.Notification{
		Subject: "Nouveau message de {{.FirstName}} {{.LastName}} - Sujet: {{.Subject}}",
		PlainBody: `Nom : {{.FirstName}} {{.LastName}}
Email : {{.Email}}
Sujet : {{.Subject}}

{{.Message}}`,
	},
}

// QuoteData feeds QuoteRequestNotification.
type QuoteData struct {
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Company     string
	ServiceType string
	Budget      string
	Message     string
}

// QuoteRequestNotification forwards a quote request to the responsible
// address.
var QuoteRequestNotification = MailTemplate{
	File: "quote_request",
	Placeholder: notifications.Notification{
		Subject: "Demande de devis de {{.FirstName}} {{.LastName}}",
		PlainBody: `Nom : {{.FirstName}} {{.LastName}}
Email : {{.Email}}
Téléphone : {{.Phone}}
Entreprise : {{or .Company "-"}}
Type de service : {{.ServiceType}}
Budget : {{or .Budget "-"}}

{{.Message}}`,
	},
}

// RefundData feeds the refund notifications.
type RefundData struct {
	Brand
	UserEmail       string
	ReservationDate string
	ReservationType string
	PaymentIntentID string
}

// RefundAdminNotification tells the responsible address that a reservation
// was cancelled and refunded.
var RefundAdminNotification = MailTemplate{
	File: "refund_admin",
	Placeholder: notifications.Notification{
		Subject: "Notification d'annulation de réservation",
		PlainBody: `Utilisateur : {{.UserEmail}}
{{if .ReservationDate}}Date : {{.ReservationDate}}
{{end}}{{if .ReservationType}}Type : {{.ReservationType}}
{{end}}La réservation a été annulée et remboursée (PaymentIntent : {{.PaymentIntentID}}).`,
	},
}

// RefundCustomerNotification confirms the refund to the user.
var RefundCustomerNotification = MailTemplate{
	File: "refund_customer",
	Placeholder: notifications.Notification{
		Subject: "Annulation et remboursement de votre réservation",
		PlainBody: `Bonjour,

Votre réservation{{if .ReservationDate}} du {{.ReservationDate}}{{end}}{{if .ReservationType}} ({{.ReservationType}}){{end}} a bien été annulée.
Le montant a été remboursé sur votre moyen de paiement initial (PaymentIntent : {{.PaymentIntentID}}).

Merci de votre compréhension,
L’équipe Lys & Co`,
	},
}
