// Package invoice builds the invoice documents attached to the order
// confirmations and renders them as A4 PDF files.
package invoice

import (
	"fmt"
	"math"
	"time"
)

const (
	// VATRate is the flat VAT rate applied to every invoice.
	VATRate = 0.20
	// PaymentMethodCard is the payment method printed on checkout invoices.
	PaymentMethodCard = "Carte"
	// DateLayout is the layout of the dates printed on the invoices.
	DateLayout = "02/01/2006"
)

// Line is a line of the invoice. Price is the unit price before tax.
type Line struct {
	Title    string
	Quantity int
	Price    float64
	SKU      string
}

// Total returns the line total before tax.
func (l Line) Total() float64 {
	return l.Price * float64(l.Quantity)
}

// Document holds everything printed on an invoice.
type Document struct {
	ClientName    string
	Email         string
	Address       string
	SiretNumber   string
	Items         []Line
	InvoiceNumber string
	OrderNumber   string
	InvoiceDate   string
	OrderDate     string
	PaymentMethod string
}

// Numbers are the identifiers and the date of a new invoice.
type Numbers struct {
	Invoice string
	Order   string
	Date    string
}

// NewNumbers derives the invoice and order numbers from the issue time,
// e.g. INV-20250314-101500 and ORD-20250314-101500.
func NewNumbers(t time.Time) Numbers {
	stamp := t.Format("20060102-150405")
	return Numbers{
		Invoice: "INV-" + stamp,
		Order:   "ORD-" + stamp,
		Date:    t.Format(DateLayout),
	}
}

// Subtotal returns the sum of the line totals before tax.
func (d *Document) Subtotal() float64 {
	var subtotal float64
	for _, item := range d.Items {
		subtotal += item.Total()
	}
	return roundCents(subtotal)
}

// VAT returns the tax amount of the invoice.
func (d *Document) VAT() float64 {
	return roundCents(d.Subtotal() * VATRate)
}

// Total returns the amount including tax.
func (d *Document) Total() float64 {
	return roundCents(d.Subtotal() + d.VAT())
}

// Validate checks that the document can be rendered.
func (d *Document) Validate() error {
	if d.InvoiceNumber == "" {
		return fmt.Errorf("missing invoice number")
	}
	for i, item := range d.Items {
		if item.Quantity < 0 || item.Price < 0 {
			return fmt.Errorf("invalid invoice line %d", i)
		}
	}
	return nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
