package invoice

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/lysco/checkout-backend/internal"
)

const (
	margin       = 50.0
	headerHeight = 100.0
	footerMargin = 80.0
	logoImage    = "logo"

	sellerName    = "Lys&Co"
	sellerStreet  = "28 Rue de l’église"
	sellerCity    = "95170 Deuil-la-Barre"
	sellerPhone   = "Tel : +33 (0)9 53 42 11 63"
	footerMessage = "Merci pour votre confiance ! Pour toute question, contactez-nous à " +
		"contact@lys-and-co.com | +33 (0)9 53 42 11 63"
)

type rgb struct{ r, g, b int }

var (
	primaryColor   = rgb{0xf9, 0x42, 0x9e}
	secondaryColor = rgb{0x5c, 0xb9, 0xbc}
	textColor      = rgb{0x33, 0x33, 0x33}
	lightTextColor = rgb{0x66, 0x66, 0x66}
	white          = rgb{0xff, 0xff, 0xff}
	rowAltColor    = rgb{0xf9, 0xfb, 0xfd}
	gridColor      = rgb{0xdd, 0xdd, 0xdd}
)

// table columns, x positions in points
const (
	col1X = 50.0
	col2X = 300.0
	col3X = 380.0
	col4X = 460.0
)

// Renderer renders invoices as PDF. Logo is an optional JPEG drawn in the
// header band.
type Renderer struct {
	Logo []byte
	// Uncompressed disables the compression of the page streams.
	Uncompressed bool
}

// NewRenderer returns a renderer drawing the given logo, nil draws none.
func NewRenderer(logo []byte) *Renderer {
	return &Renderer{Logo: logo}
}

// Render draws the invoice on A4 pages and returns the PDF file.
func (r *Renderer) Render(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("nil document")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(!r.Uncompressed)
	pdf.SetTitle("Facture "+doc.InvoiceNumber, true)
	pdf.SetAuthor(sellerName, true)
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(false, 0)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()

	pdf.SetFooterFunc(func() {
		footerY := pageH - footerMargin
		setDrawColor(pdf, secondaryColor)
		pdf.SetLineWidth(1)
		pdf.Line(margin, footerY-10, pageW-margin, footerY-10)
		pdf.SetFont("Helvetica", "", 9)
		setTextColor(pdf, lightTextColor)
		pdf.SetXY(30, footerY)
		pdf.MultiCell(pageW-60, 11, tr(footerMessage), "", "C", false)
	})
	pdf.AddPage()

	// header band
	setFillColor(pdf, primaryColor)
	pdf.Rect(0, 0, pageW, headerHeight, "F")
	if len(r.Logo) > 0 {
		opts := fpdf.ImageOptions{ImageType: "JPG"}
		pdf.RegisterImageOptionsReader(logoImage, opts, bytes.NewReader(r.Logo))
		if pdf.Ok() {
			pdf.ImageOptions(logoImage, 50, 10, 120, 80, false, opts, 0, "")
		} else {
			// broken logos are skipped
			pdf.ClearError()
		}
	}
	setTextColor(pdf, white)
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetXY(pageW-250, 30)
	pdf.CellFormat(200, 20, tr(sellerName), "", 2, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{sellerStreet, sellerCity, sellerPhone} {
		pdf.SetX(pageW - 250)
		pdf.CellFormat(200, 13, tr(line), "", 2, "R", false, 0, "")
	}

	// title
	titleY := headerHeight + 20
	setTextColor(pdf, textColor)
	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetXY(margin, titleY)
	pdf.CellFormat(200, 26, "FACTURE", "", 0, "L", false, 0, "")

	// client and invoice boxes
	boxY := titleY + 40
	boxH := 80.0
	boxW := (pageW - 120) / 2
	setFillColor(pdf, secondaryColor)
	pdf.Rect(margin, boxY, boxW, boxH, "F")
	invoiceBoxX := 60 + boxW
	pdf.Rect(invoiceBoxX, boxY, boxW, boxH, "F")

	setTextColor(pdf, white)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetXY(60, boxY+8)
	pdf.CellFormat(boxW-20, 13, "Client :", "", 2, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range []string{doc.ClientName, doc.Address, doc.Email, "SIRET : " + doc.SiretNumber} {
		pdf.SetX(60)
		pdf.CellFormat(boxW-20, 13, tr(line), "", 2, "L", false, 0, "")
	}
	infoY := boxY + 8
	for _, info := range [][2]string{
		{"N° Facture :", doc.InvoiceNumber},
		{"Date Facture :", doc.InvoiceDate},
		{"N° Commande :", doc.OrderNumber},
		{"Date Commande :", doc.OrderDate},
		{"Paiement :", doc.PaymentMethod},
	} {
		pdf.SetFont("Helvetica", "B", 10)
		pdf.SetXY(invoiceBoxX+10, infoY)
		pdf.CellFormat(100, 13, tr(info[0]), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		pdf.SetXY(invoiceBoxX+110, infoY)
		pdf.CellFormat(boxW-120, 13, tr(info[1]), "", 0, "L", false, 0, "")
		infoY += 14
	}

	// items table
	tableRight := pageW - margin
	bottomLimit := pageH - footerMargin - 30
	tableTop := boxY + boxH + 40
	drawTableHeader(pdf, tr, tableTop, tableRight)
	y := tableTop + 20
	descW := col2X - col1X - 10
	for i, item := range doc.Items {
		pdf.SetFont("Helvetica", "", 10)
		titleLines := pdf.SplitLines([]byte(tr(item.Title)), descW)
		cellH := float64(len(titleLines))*12 + 10
		if item.SKU != "" {
			cellH += 10
		}
		if cellH < 20 {
			cellH = 20
		}
		if y+cellH > bottomLimit {
			drawGrid(pdf, tableTop, y, tableRight)
			pdf.AddPage()
			tableTop = margin
			drawTableHeader(pdf, tr, tableTop, tableRight)
			y = tableTop + 20
		}
		bg := white
		if i%2 == 1 {
			bg = rowAltColor
		}
		setFillColor(pdf, bg)
		pdf.Rect(col1X, y, tableRight-col1X, cellH, "F")

		setTextColor(pdf, textColor)
		pdf.SetFont("Helvetica", "", 10)
		lineY := y + 5
		for _, line := range titleLines {
			pdf.SetXY(col1X+5, lineY)
			pdf.CellFormat(descW, 12, string(line), "", 0, "L", false, 0, "")
			lineY += 12
		}
		if item.SKU != "" {
			pdf.SetFont("Helvetica", "I", 8)
			setTextColor(pdf, lightTextColor)
			pdf.SetXY(col1X+5, lineY)
			pdf.CellFormat(descW, 10, tr("SKU : "+item.SKU), "", 0, "L", false, 0, "")
			pdf.SetFont("Helvetica", "", 10)
			setTextColor(pdf, textColor)
		}
		pdf.SetXY(col2X+5, y+5)
		pdf.CellFormat(col3X-col2X-10, 12, fmt.Sprintf("%d", item.Quantity), "", 0, "R", false, 0, "")
		pdf.SetXY(col3X+5, y+5)
		pdf.CellFormat(col4X-col3X-10, 12, tr(internal.FormatEuros(item.Price)), "", 0, "R", false, 0, "")
		pdf.SetXY(col4X+5, y+5)
		pdf.CellFormat(tableRight-col4X-10, 12, tr(internal.FormatEuros(item.Total())), "", 0, "R", false, 0, "")
		y += cellH
	}
	drawGrid(pdf, tableTop, y, tableRight)

	// totals
	y += 20
	if y+60 > bottomLimit {
		pdf.AddPage()
		y = margin
	}
	totals := []struct {
		label string
		value float64
	}{
		{"Sous-total HT :", doc.Subtotal()},
		{fmt.Sprintf("TVA (%d%%) :", int(VATRate*100)), doc.VAT()},
		{"Total TTC :", doc.Total()},
	}
	for i, t := range totals {
		size := 10.0
		color := textColor
		if i == len(totals)-1 {
			size = 12
			color = primaryColor
		}
		setTextColor(pdf, color)
		pdf.SetFont("Helvetica", "B", size)
		pdf.SetXY(col3X, y)
		pdf.CellFormat(100, 14, tr(t.label), "", 0, "L", false, 0, "")
		if i < len(totals)-1 {
			pdf.SetFont("Helvetica", "", size)
		}
		pdf.SetXY(col3X+100, y)
		pdf.CellFormat(tableRight-col3X-100, 14, tr(internal.FormatEuros(t.value)), "", 0, "R", false, 0, "")
		y += 15
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("could not render invoice %s: %w", doc.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

func drawTableHeader(pdf *fpdf.Fpdf, tr func(string) string, top, right float64) {
	setFillColor(pdf, primaryColor)
	pdf.Rect(col1X, top, right-col1X, 20, "F")
	setTextColor(pdf, white)
	pdf.SetFont("Helvetica", "B", 11)
	for _, h := range []struct {
		x     float64
		label string
	}{
		{col1X, "Description"},
		{col2X, "Qté"},
		{col3X, "Prix Unitaire"},
		{col4X, "Total HT"},
	} {
		pdf.SetXY(h.x+5, top+4)
		pdf.CellFormat(80, 12, tr(h.label), "", 0, "L", false, 0, "")
	}
}

// drawGrid draws the column separators and the bottom border of the table.
func drawGrid(pdf *fpdf.Fpdf, top, bottom, right float64) {
	setDrawColor(pdf, gridColor)
	pdf.SetLineWidth(0.5)
	pdf.Line(col1X, bottom, right, bottom)
	for _, x := range []float64{col1X, col2X, col3X, col4X, right} {
		pdf.Line(x, top, x, bottom)
	}
}

func setFillColor(pdf *fpdf.Fpdf, c rgb) { pdf.SetFillColor(c.r, c.g, c.b) }
func setTextColor(pdf *fpdf.Fpdf, c rgb) { pdf.SetTextColor(c.r, c.g, c.b) }
func setDrawColor(pdf *fpdf.Fpdf, c rgb) { pdf.SetDrawColor(c.r, c.g, c.b) }
