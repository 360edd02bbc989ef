package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Persisted records and API payloads carry money as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	ItemTypeDevice    = "device"
	ItemTypeAccessory = "accessory"
	ItemTypePart      = "part"
	ItemTypeCustom    = "custom"
)

const (
	PaymentCash  = "cash"
	PaymentCard  = "card"
	PaymentOther = "other"
)

const (
	RefundModeItems  = "items"
	RefundModeAmount = "amount"
)

type CatalogItem struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Type              string          `json:"type"`
	Price             decimal.Decimal `json:"price"`
	QuantityOnHand    int             `json:"quantityOnHand"`
	LowStockThreshold int             `json:"lowStockThreshold"`
}

// ItemDraft is the loosely typed input for creating or updating catalog
// items. Numeric fields accept JSON numbers or strings.
type ItemDraft struct {
	ID                string     `json:"id,omitempty"`
	Name              string     `json:"name"`
	Type              string     `json:"type"`
	Price             FlexNumber `json:"price"`
	QuantityOnHand    FlexNumber `json:"quantityOnHand"`
	LowStockThreshold FlexNumber `json:"lowStockThreshold"`
}

type CartLine struct {
	ID             string          `json:"id"`
	CatalogItemID  string          `json:"catalogItemId,omitempty"`
	Name           string          `json:"name"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Quantity       int             `json:"quantity"`
	WarrantyMonths int             `json:"warrantyMonths,omitempty"`
	IsCustom       bool            `json:"isCustom"`
}

func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Totals struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type PaymentEntry struct {
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

type Transaction struct {
	ID             int64           `json:"id"`
	ReceiptID      string          `json:"receiptId"`
	Date           time.Time       `json:"date"`
	CustomerID     string          `json:"customerId,omitempty"`
	Items          []CartLine      `json:"items"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	Change         decimal.Decimal `json:"change"`
	PaymentMethods []string        `json:"paymentMethods"`
	Refunds        []RefundRecord  `json:"refunds"`
	EditedAt       *time.Time      `json:"editedAt,omitempty"`
}

// RefundedTotal sums every refund recorded against the transaction.
func (t Transaction) RefundedTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, r := range t.Refunds {
		sum = sum.Add(r.RefundTotal)
	}
	return sum
}

type RefundItem struct {
	ID        string `json:"id"`
	RefundQty int    `json:"refundQty"`
	Restock   bool   `json:"restock"`
}

type RefundRecord struct {
	ID               string          `json:"id"`
	TransactionID    int64           `json:"transactionId"`
	Mode             string          `json:"mode"`
	Items            []RefundItem    `json:"items,omitempty"`
	RefundTotal      decimal.Decimal `json:"refundTotal"`
	OriginalTotal    decimal.Decimal `json:"originalTotal"`
	RemainingBalance decimal.Decimal `json:"remainingBalance"`
	Reason           string          `json:"reason,omitempty"`
	Date             time.Time       `json:"date"`
}

type Draft struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Timestamp  time.Time  `json:"timestamp"`
	CustomerID string     `json:"customerId,omitempty"`
	Cart       []CartLine `json:"cart"`
}

type VATRate struct {
	Name    string          `json:"name"`
	Rate    decimal.Decimal `json:"rate"`
	Default bool            `json:"default"`
}

type ReceiptTemplate struct {
	ShopName       string   `json:"shopName"`
	HeaderLines    []string `json:"headerLines,omitempty"`
	FooterLines    []string `json:"footerLines,omitempty"`
	CurrencySymbol string   `json:"currencySymbol"`
}

type TillState struct {
	TerminalID     string          `json:"terminalId"`
	CustomerID     string          `json:"customerId,omitempty"`
	EditingID      int64           `json:"editingTransactionId,omitempty"`
	TaxRate        decimal.Decimal `json:"taxRate"`
	Lines          []CartLine      `json:"lines"`
	Totals         Totals          `json:"totals"`
	Payments       []PaymentEntry  `json:"payments"`
	Paid           decimal.Decimal `json:"paid"`
	Remaining      decimal.Decimal `json:"remaining"`
	Change         decimal.Decimal `json:"change"`
	CanComplete    bool            `json:"canComplete"`
	PaymentStrings []string        `json:"paymentMethods"`
}

type PaymentMethodTotal struct {
	Method string          `json:"method"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

type SalesSummary struct {
	From          time.Time            `json:"from"`
	To            time.Time            `json:"to"`
	Transactions  int                  `json:"transactions"`
	GrossTotal    decimal.Decimal      `json:"grossTotal"`
	TaxTotal      decimal.Decimal      `json:"taxTotal"`
	RefundedTotal decimal.Decimal      `json:"refundedTotal"`
	NetTotal      decimal.Decimal      `json:"netTotal"`
	ByPayment     []PaymentMethodTotal `json:"byPayment"`
}
