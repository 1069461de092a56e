package checkout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lysco/checkout-backend/internal"
	"github.com/lysco/checkout-backend/invoice"
	"github.com/lysco/checkout-backend/notifications"
	"github.com/lysco/checkout-backend/notifications/mailtemplates"
	"github.com/lysco/checkout-backend/objectstorage"
	"go.vocdoni.io/dvote/log"
)

// Kinds of the queued notifications.
const (
	KindOrder          = "order"
	KindDocument       = "document"
	KindContact        = "contact"
	KindQuote          = "quote"
	KindRefundAdmin    = "refund-admin"
	KindRefundCustomer = "refund-customer"
	KindInvoice        = "invoice"

	archiveTimeout = 15 * time.Second
)

// Enqueuer queues notifications for delivery.
type Enqueuer interface {
	Push(kind string, n *notifications.Notification) (uuid.UUID, error)
}

// DocumentRenderer renders an invoice.
type DocumentRenderer interface {
	Render(doc *invoice.Document) ([]byte, error)
}

// Archiver stores a rendered invoice.
type Archiver interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// NotifierConfig holds the collaborators of the Notifier. Renderer and
// Archive are optional.
type NotifierConfig struct {
	Queue            Enqueuer
	Renderer         DocumentRenderer
	Archive          Archiver
	ResponsibleEmail string
	Brand            mailtemplates.Brand
	// Now returns the current time, used for the invoice numbers.
	Now func() time.Time
}

// Notifier builds the emails of the service and queues them.
type Notifier struct {
	queue       Enqueuer
	renderer    DocumentRenderer
	archive     Archiver
	responsible string
	brand       mailtemplates.Brand
	now         func() time.Time
	// pending tracks the order notifications still being built.
	pending sync.WaitGroup
}

// NewNotifier creates a notifier.
func NewNotifier(conf *NotifierConfig) (*Notifier, error) {
	if conf == nil || conf.Queue == nil {
		return nil, fmt.Errorf("notification queue is required")
	}
	if conf.ResponsibleEmail != "" && !internal.ValidEmail(conf.ResponsibleEmail) {
		return nil, fmt.Errorf("invalid responsible email %q", conf.ResponsibleEmail)
	}
	now := conf.Now
	if now == nil {
		now = time.Now
	}
	brand := conf.Brand
	if brand.LogoURL == "" && brand.SiteURL == "" {
		brand = mailtemplates.DefaultBrand()
	}
	return &Notifier{
		queue:       conf.Queue,
		renderer:    conf.Renderer,
		archive:     conf.Archive,
		responsible: conf.ResponsibleEmail,
		brand:       brand,
		now:         now,
	}, nil
}

// InvoiceDocument returns the invoice of the order, numbered after t.
func InvoiceDocument(order *Order, t time.Time) *invoice.Document {
	numbers := invoice.NewNumbers(t)
	doc := &invoice.Document{
		ClientName:    internal.SanitizeText(order.Client.Name()),
		Email:         order.Email,
		Address:       internal.SanitizeText(order.Client.Address),
		SiretNumber:   internal.SanitizeText(order.Client.SiretNumber),
		InvoiceNumber: numbers.Invoice,
		OrderNumber:   numbers.Order,
		InvoiceDate:   numbers.Date,
		OrderDate:     numbers.Date,
		PaymentMethod: invoice.PaymentMethodCard,
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, invoice.Line{
			Title:    internal.SanitizeText(item.Title),
			Quantity: item.Quantity,
			Price:    item.Price,
			SKU:      internal.SanitizeText(item.SKU),
		})
	}
	return doc
}

// OrderPlaced renders the invoice of the order, archives it and queues the
// order confirmation with the invoice attached. The work runs in the
// background, detached from the request context, so it never delays nor
// fails the checkout that already succeeded. Errors and panics are logged.
func (n *Notifier) OrderPlaced(ctx context.Context, order *Order) {
	ctx = context.WithoutCancel(ctx)
	n.pending.Add(1)
	go func() {
		defer n.pending.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Errorw(fmt.Errorf("%v", r), "order notification aborted")
			}
		}()
		if _, err := n.orderPlaced(ctx, order); err != nil {
			log.Warnw("order notification not queued", "email", order.Email, "error", err)
		}
	}()
}

// Wait blocks until every order notification started so far is queued or
// dropped.
func (n *Notifier) Wait() {
	n.pending.Wait()
}

func (n *Notifier) orderPlaced(ctx context.Context, order *Order) (uuid.UUID, error) {
	now := n.now()
	doc := InvoiceDocument(order, now)
	data := mailtemplates.OrderData{
		Brand:         n.brand,
		ClientName:    doc.ClientName,
		Email:         order.Email,
		Address:       doc.Address,
		SiretNumber:   doc.SiretNumber,
		Total:         order.Total,
		InvoiceNumber: doc.InvoiceNumber,
		InvoiceDate:   doc.InvoiceDate,
	}
	for _, line := range doc.Items {
		data.Items = append(data.Items, mailtemplates.OrderLine{
			Title:    line.Title,
			Quantity: line.Quantity,
			Price:    line.Price,
		})
	}
	notif, err := mailtemplates.OrderConfirmationNotification.ExecTemplate(data)
	if err != nil {
		return uuid.Nil, err
	}
	notif.ToName = doc.ClientName
	notif.ToAddress = order.Email
	notif.CCAddress = n.responsible

	if n.renderer != nil {
		pdf, err := n.render(doc)
		if err != nil {
			log.Warnw("cannot render invoice, sending the order without it",
				"invoice", doc.InvoiceNumber, "error", err)
		} else {
			n.archiveInvoice(ctx, doc.InvoiceNumber, now, pdf)
			notif.Attachments = append(notif.Attachments, invoiceAttachment(doc.InvoiceNumber, pdf))
		}
	}
	return n.queue.Push(KindOrder, notif)
}

// InvoiceRequested renders the invoice of the order, archives it and queues
// it for the client with the responsible address in copy. The greeting uses
// fullName when set. It returns the queued notification id and the invoice
// number.
func (n *Notifier) InvoiceRequested(ctx context.Context, fullName string, order *Order) (uuid.UUID, string, error) {
	if n.renderer == nil {
		return uuid.Nil, "", ErrNoRenderer
	}
	now := n.now()
	doc := InvoiceDocument(order, now)
	pdf, err := n.render(doc)
	if err != nil {
		return uuid.Nil, "", err
	}
	notif, err := mailtemplates.InvoiceNotification.ExecTemplate(mailtemplates.InvoiceData{
		Brand:         n.brand,
		FullName:      internal.SanitizeText(fullName),
		InvoiceNumber: doc.InvoiceNumber,
	})
	if err != nil {
		return uuid.Nil, "", err
	}
	notif.ToName = internal.SanitizeText(fullName)
	notif.ToAddress = order.Email
	notif.CCAddress = n.responsible
	notif.Attachments = append(notif.Attachments, invoiceAttachment(doc.InvoiceNumber, pdf))
	n.archiveInvoice(ctx, doc.InvoiceNumber, now, pdf)
	id, err := n.queue.Push(KindInvoice, notif)
	return id, doc.InvoiceNumber, err
}

// render returns the PDF of the invoice, turning a renderer panic into an
// error.
func (n *Notifier) render(doc *invoice.Document) (pdf []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			pdf, err = nil, fmt.Errorf("invoice renderer panicked: %v", r)
		}
	}()
	return n.renderer.Render(doc)
}

func invoiceAttachment(number string, pdf []byte) notifications.Attachment {
	return notifications.Attachment{
		Filename:    fmt.Sprintf("facture-%s.pdf", number),
		ContentType: objectstorage.ContentTypePDF,
		Data:        pdf,
	}
}

func (n *Notifier) archiveInvoice(ctx context.Context, number string, t time.Time, pdf []byte) {
	if n.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()
	location, err := n.archive.Put(ctx, objectstorage.InvoiceKey(number, t), pdf, objectstorage.ContentTypePDF)
	if err != nil {
		log.Warnw("cannot archive invoice", "invoice", number, "error", err)
		return
	}
	log.Infow("invoice archived", "invoice", number, "location", location)
}

// DocumentAvailable queues the email telling the user a new document can
// be downloaded.
func (n *Notifier) DocumentAvailable(email, fileName, fileURL string) (uuid.UUID, error) {
	notif, err := mailtemplates.DocumentNotification.ExecTemplate(mailtemplates.DocumentData{
		Brand:    n.brand,
		FileName: internal.SanitizeText(fileName),
		FileURL:  fileURL,
	})
	if err != nil {
		return uuid.Nil, err
	}
	notif.ToAddress = email
	return n.queue.Push(KindDocument, notif)
}

// ContactMessage forwards a message of the contact form to the responsible
// address. Replies go to the visitor.
func (n *Notifier) ContactMessage(data mailtemplates.ContactData) (uuid.UUID, error) {
	data.FirstName = internal.SanitizeText(data.FirstName)
	data.LastName = internal.SanitizeText(data.LastName)
	data.Subject = internal.SanitizeText(data.Subject)
	data.Message = internal.SanitizeText(data.Message)
	notif, err := mailtemplates.ContactMessageNotification.ExecTemplate(data)
	if err != nil {
		return uuid.Nil, err
	}
	notif.ToAddress = n.responsible
	notif.ReplyTo = data.Email
	return n.queue.Push(KindContact, notif)
}

// QuoteRequest forwards a quote request to the responsible address. The
// phone number must already be normalized.
func (n *Notifier) QuoteRequest(data mailtemplates.QuoteData) (uuid.UUID, error) {
	data.FirstName = internal.SanitizeText(data.FirstName)
	data.LastName = internal.SanitizeText(data.LastName)
	data.Company = internal.SanitizeText(data.Company)
	data.ServiceType = internal.SanitizeText(data.ServiceType)
	data.Budget = internal.SanitizeText(data.Budget)
	data.Message = internal.SanitizeText(data.Message)
	notif, err := mailtemplates.QuoteRequestNotification.ExecTemplate(data)
	if err != nil {
		return uuid.Nil, err
	}
	notif.ToAddress = n.responsible
	notif.ReplyTo = data.Email
	return n.queue.Push(KindQuote, notif)
}

// RefundIssued queues the cancellation notice for the responsible address
// and the refund confirmation for the user. The reservation type is
// humanized.
func (n *Notifier) RefundIssued(data mailtemplates.RefundData) ([]uuid.UUID, error) {
	data.Brand = n.brand
	data.ReservationType = internal.HumanizeReservationType(internal.SanitizeText(data.ReservationType))
	data.ReservationDate = internal.SanitizeText(data.ReservationDate)

	admin, err := mailtemplates.RefundAdminNotification.ExecTemplate(data)
	if err != nil {
		return nil, err
	}
	admin.ToAddress = n.responsible
	admin.ReplyTo = data.UserEmail
	customer, err := mailtemplates.RefundCustomerNotification.ExecTemplate(data)
	if err != nil {
		return nil, err
	}
	customer.ToAddress = data.UserEmail

	adminID, err := n.queue.Push(KindRefundAdmin, admin)
	if err != nil {
		return nil, err
	}
	customerID, err := n.queue.Push(KindRefundCustomer, customer)
	if err != nil {
		return []uuid.UUID{adminID}, err
	}
	return []uuid.UUID{adminID, customerID}, nil
}
