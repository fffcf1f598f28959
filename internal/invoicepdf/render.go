// Package invoicepdf renders invoices as printable A4 documents.
package invoicepdf

import (
	"bytes"
	"fmt"
	"strings"

	"carwash-payments/internal/data/entity"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
)

const dateLayout = "02 Jan 2006"

// Document is everything printed on an invoice.
type Document struct {
	Invoice  *entity.Invoice
	Customer *entity.User
	// Payment is the settling payment, nil while the invoice is open.
	Payment *entity.Payment
	Issuer  string
}

// Filename is the download name for an invoice.
func Filename(inv *entity.Invoice) string {
	return inv.InvoiceNumber + ".pdf"
}

func Render(doc Document) ([]byte, error) {
	if doc.Invoice == nil {
		return nil, fmt.Errorf("render invoice: no invoice")
	}
	inv := doc.Invoice

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+inv.InvoiceNumber, false)
	pdf.SetAuthor(safe(doc.Issuer, "Car Wash"), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "INVOICE")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 7, "Invoice no : "+inv.InvoiceNumber)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Issued     : "+inv.CreatedAt.Format(dateLayout))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Due        : "+inv.DueDate.Format(dateLayout))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Status     : "+strings.ToUpper(string(inv.Status)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Billed to:")
	pdf.Ln(7)

	pdf.SetFont("Helvetica", "", 12)
	if doc.Customer != nil {
		pdf.Cell(0, 7, "Name  : "+safe(doc.Customer.Name, "-"))
		pdf.Ln(7)
		pdf.Cell(0, 7, "Email : "+safe(doc.Customer.Email, "-"))
		pdf.Ln(7)
		if doc.Customer.Phone != nil {
			pdf.Cell(0, 7, "Phone : "+*doc.Customer.Phone)
			pdf.Ln(7)
		}
	} else {
		pdf.Cell(0, 7, "Customer "+inv.UserID.String())
		pdf.Ln(7)
	}
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 7, "Details:")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	pdf.MultiCell(0, 6, "Car wash booking "+inv.BookingID.String(), "", "", false)
	pdf.Ln(2)
	line(pdf, "Amount", inv.Amount, inv.Currency)
	line(pdf, "Tax", inv.TaxAmount, inv.Currency)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, "Total: "+money(inv.TotalAmount, inv.Currency))
	pdf.Ln(12)

	if doc.Payment != nil && inv.PaidAt != nil {
		pdf.SetFont("Helvetica", "", 11)
		pdf.Cell(0, 6, fmt.Sprintf("Paid %s via %s, reference %s",
			inv.PaidAt.Format(dateLayout), methodLabel(doc.Payment.Method), paymentReference(doc.Payment)))
		pdf.Ln(8)
	}

	if inv.Notes != nil && *inv.Notes != "" {
		pdf.SetFont("Helvetica", "I", 10)
		pdf.MultiCell(0, 6, *inv.Notes, "", "", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

func line(pdf *gofpdf.Fpdf, label string, amount decimal.Decimal, currency string) {
	pdf.Cell(0, 6, fmt.Sprintf("%-8s: %s", label, money(amount, currency)))
	pdf.Ln(6)
}

func money(amount decimal.Decimal, currency string) string {
	return strings.ToUpper(currency) + " " + amount.StringFixed(2)
}

func methodLabel(m entity.PaymentMethod) string {
	switch m {
	case entity.PaymentMethodMobileMoney:
		return "M-Pesa"
	case entity.PaymentMethodCard:
		return "card"
	default:
		return string(m)
	}
}

func paymentReference(p *entity.Payment) string {
	if p.MpesaReceiptNumber != nil {
		return *p.MpesaReceiptNumber
	}
	return p.TransactionID
}

func safe(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
