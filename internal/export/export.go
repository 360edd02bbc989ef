package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"repairdesk/backend/internal/domain"
)

var transactionHeader = []string{
	"id", "receiptId", "date", "customerId", "items", "units",
	"subtotal", "taxRate", "tax", "total", "change",
	"paymentMethods", "refunded", "balance", "editedAt",
}

var catalogHeader = []string{"id", "name", "type", "price", "quantityOnHand", "lowStockThreshold"}

// WriteTransactions writes one CSV row per transaction after a header row.
// Fields that contain commas or quotes are quoted.
func WriteTransactions(w io.Writer, txs []domain.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(transactionHeader); err != nil {
		return err
	}
	for _, tx := range txs {
		units := 0
		names := make([]string, 0, len(tx.Items))
		for _, item := range tx.Items {
			units += item.Quantity
			names = append(names, item.Name)
		}
		editedAt := ""
		if tx.EditedAt != nil {
			editedAt = tx.EditedAt.UTC().Format(time.RFC3339)
		}
		refunded := tx.RefundedTotal()

		row := []string{
			strconv.FormatInt(tx.ID, 10),
			tx.ReceiptID,
			tx.Date.UTC().Format(time.RFC3339),
			tx.CustomerID,
			strings.Join(names, "; "),
			strconv.Itoa(units),
			tx.Subtotal.StringFixed(2),
			tx.TaxRate.String(),
			tx.Tax.StringFixed(2),
			tx.Total.StringFixed(2),
			tx.Change.StringFixed(2),
			strings.Join(tx.PaymentMethods, "; "),
			refunded.StringFixed(2),
			tx.Total.Sub(refunded).StringFixed(2),
			editedAt,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func WriteCatalog(w io.Writer, items []domain.CatalogItem) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(catalogHeader); err != nil {
		return err
	}
	for _, item := range items {
		row := []string{
			item.ID,
			item.Name,
			item.Type,
			item.Price.StringFixed(2),
			strconv.Itoa(item.QuantityOnHand),
			strconv.Itoa(item.LowStockThreshold),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
