package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ==================== INVOICE NUMBER ====================

// InvoicePeriod is the sequence scope of an invoice number, e.g. "202501".
func InvoicePeriod(t time.Time) string {
	return t.Format("200601")
}

// FormatInvoiceNumber renders INV-YYYYMM-####.
func FormatInvoiceNumber(period string, seq int64) string {
	return fmt.Sprintf("INV-%s-%04d", period, seq)
}

// ==================== PAYMENT REFERENCES ====================

// GenerateManualReference creates the correlation id of a payment settled outside any provider.
func GenerateManualReference(method string) string {
	return fmt.Sprintf("%s-%s", strings.ToUpper(method), strings.ToUpper(uuid.New().String()[:13]))
}

// AccountReference derives the short merchant reference shown on the payer's phone.
// Daraja truncates anything longer than 12 characters.
func AccountReference(bookingID uuid.UUID) string {
	ref := "BK" + strings.ToUpper(strings.ReplaceAll(bookingID.String(), "-", ""))
	return ref[:12]
}
