package receipt

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"repairdesk/backend/internal/cart"
	"repairdesk/backend/internal/domain"
)

const (
	KindReceipt = "receipt"
	KindQuote   = "quote"

	width = 32
)

type Line struct {
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Total          decimal.Decimal `json:"total"`
	WarrantyMonths int             `json:"warrantyMonths,omitempty"`
}

type Refund struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason,omitempty"`
}

// Receipt is a printable projection of a transaction or an open cart.
type Receipt struct {
	Kind          string          `json:"kind"`
	ShopName      string          `json:"shopName"`
	HeaderLines   []string        `json:"headerLines,omitempty"`
	FooterLines   []string        `json:"footerLines,omitempty"`
	ReceiptID     string          `json:"receiptId,omitempty"`
	TransactionID int64           `json:"transactionId,omitempty"`
	Date          time.Time       `json:"date"`
	CustomerID    string          `json:"customerId,omitempty"`
	Lines         []Line          `json:"lines"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	TaxRate       decimal.Decimal `json:"taxRate"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Change        decimal.Decimal `json:"change"`
	Payments      []string        `json:"paymentMethods,omitempty"`
	Refunds       []Refund        `json:"refunds,omitempty"`
	Balance       decimal.Decimal `json:"balance"`
	Text          string          `json:"text"`
	HTML          string          `json:"html"`
	ESCPOS        []byte          `json:"escposBase64"`

	symbol string
}

// Renderer formats receipts with a shop template. It never writes anything.
type Renderer struct {
	tmpl domain.ReceiptTemplate
}

func NewRenderer(tmpl domain.ReceiptTemplate) *Renderer {
	if strings.TrimSpace(tmpl.CurrencySymbol) == "" {
		tmpl.CurrencySymbol = "$"
	}
	if strings.TrimSpace(tmpl.ShopName) == "" {
		tmpl.ShopName = "Repair Desk"
	}
	return &Renderer{tmpl: tmpl}
}

func (r *Renderer) Transaction(tx domain.Transaction) (Receipt, error) {
	rec := r.base(KindReceipt, tx.Date, tx.CustomerID, tx.Items)
	rec.ReceiptID = tx.ReceiptID
	rec.TransactionID = tx.ID
	rec.Subtotal = tx.Subtotal
	rec.TaxRate = tx.TaxRate
	rec.Tax = tx.Tax
	rec.Total = tx.Total
	rec.Change = tx.Change
	rec.Payments = tx.PaymentMethods
	for _, refund := range tx.Refunds {
		rec.Refunds = append(rec.Refunds, Refund{Date: refund.Date, Amount: refund.RefundTotal, Reason: refund.Reason})
	}
	rec.Balance = tx.Total.Sub(tx.RefundedTotal())
	return r.render(rec)
}

// Quote renders an open cart at the given tax rate.
func (r *Renderer) Quote(lines []domain.CartLine, taxRate decimal.Decimal, customerID string, at time.Time) (Receipt, error) {
	rec := r.base(KindQuote, at, customerID, lines)
	totals := cart.ComputeTotals(lines, taxRate)
	rec.Subtotal = totals.Subtotal
	rec.TaxRate = taxRate
	rec.Tax = totals.Tax
	rec.Total = totals.Total
	rec.Change = decimal.Zero
	rec.Balance = totals.Total
	return r.render(rec)
}

func (r *Renderer) base(kind string, at time.Time, customerID string, lines []domain.CartLine) Receipt {
	rec := Receipt{
		Kind:        kind,
		ShopName:    r.tmpl.ShopName,
		HeaderLines: r.tmpl.HeaderLines,
		FooterLines: r.tmpl.FooterLines,
		Date:        at,
		CustomerID:  customerID,
		Lines:       make([]Line, 0, len(lines)),
		symbol:      r.tmpl.CurrencySymbol,
	}
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		rec.Lines = append(rec.Lines, Line{
			Name:           l.Name,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			Total:          l.LineTotal(),
			WarrantyMonths: l.WarrantyMonths,
		})
	}
	return rec
}

func (r *Renderer) render(rec Receipt) (Receipt, error) {
	text := rec.textLines()
	rec.Text = strings.Join(text, "\n")

	escpos := []byte{0x1b, 0x40}
	for _, line := range text {
		escpos = append(escpos, []byte(line)...)
		escpos = append(escpos, '\n')
	}
	escpos = append(escpos, []byte{0x1d, 0x56, 0x41, 0x10}...)
	rec.ESCPOS = escpos

	var buf bytes.Buffer
	if err := htmlTmpl.Execute(&buf, rec); err != nil {
		return Receipt{}, fmt.Errorf("render receipt html: %w", err)
	}
	rec.HTML = buf.String()
	return rec, nil
}

func (rec Receipt) Money(d decimal.Decimal) string {
	return rec.symbol + d.StringFixed(2)
}

func (rec Receipt) Title() string {
	if rec.Kind == KindQuote {
		return "QUOTE"
	}
	return "Receipt " + rec.ReceiptID
}

func (rec Receipt) textLines() []string {
	sep := strings.Repeat("-", width)
	lines := []string{rec.ShopName}
	lines = append(lines, rec.HeaderLines...)
	lines = append(lines,
		strings.Repeat("=", width),
		rec.Title(),
		"Date: "+rec.Date.Format("2006-01-02 15:04"),
	)
	if rec.CustomerID != "" {
		lines = append(lines, "Customer: "+rec.CustomerID)
	}
	lines = append(lines, sep)
	for _, l := range rec.Lines {
		lines = append(lines, fmt.Sprintf("%s x%d", l.Name, l.Quantity))
		lines = append(lines, columns("  @ "+rec.Money(l.UnitPrice), rec.Money(l.Total)))
		if l.WarrantyMonths > 0 {
			lines = append(lines, fmt.Sprintf("  Warranty: %d months", l.WarrantyMonths))
		}
	}
	lines = append(lines,
		sep,
		columns("Subtotal", rec.Money(rec.Subtotal)),
		columns("Tax "+rec.TaxRate.Mul(decimal.NewFromInt(100)).String()+"%", rec.Money(rec.Tax)),
		columns("Total", rec.Money(rec.Total)),
	)
	for _, p := range rec.Payments {
		lines = append(lines, "Paid "+p)
	}
	if rec.Kind == KindReceipt {
		lines = append(lines, columns("Change", rec.Money(rec.Change)))
	}
	for _, refund := range rec.Refunds {
		lines = append(lines, columns("Refund "+refund.Date.Format("2006-01-02"), "-"+rec.Money(refund.Amount)))
	}
	if len(rec.Refunds) > 0 {
		lines = append(lines, columns("Balance", rec.Money(rec.Balance)))
	}
	lines = append(lines, strings.Repeat("=", width))
	lines = append(lines, rec.FooterLines...)
	return lines
}

func columns(left string, right string) string {
	pad := width - len(left) - len(right)
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + right
}

var htmlTmpl = template.Must(template.New("receipt").Parse(`<!doctype html>
<html>
<head>
  <meta charset="utf-8" />
  <title>{{.Title}}</title>
  <style>
    body { font-family: monospace; margin: 16px; max-width: 380px; }
    table { width: 100%; border-collapse: collapse; margin-top: 8px; }
    td { padding: 2px 0; font-size: 13px; }
    .num { text-align: right; }
  </style>
</head>
<body>
  <h2>{{.ShopName}}</h2>
  {{range .HeaderLines}}<p>{{.}}</p>{{end}}
  <h3>{{.Title}}</h3>
  <p>Date: {{.Date.Format "2006-01-02 15:04"}}</p>
  {{if .CustomerID}}<p>Customer: {{.CustomerID}}</p>{{end}}
  <table>
    <tbody>{{range .Lines}}<tr><td>{{.Name}} x{{.Quantity}}{{if .WarrantyMonths}} ({{.WarrantyMonths}} months warranty){{end}}</td><td class="num">{{$.Money .Total}}</td></tr>{{end}}</tbody>
  </table>
  <table>
    <tr><td>Subtotal</td><td class="num">{{.Money .Subtotal}}</td></tr>
    <tr><td>Tax</td><td class="num">{{.Money .Tax}}</td></tr>
    <tr><td><strong>Total</strong></td><td class="num"><strong>{{.Money .Total}}</strong></td></tr>
    {{range .Payments}}<tr><td colspan="2">Paid {{.}}</td></tr>{{end}}
    {{if eq .Kind "receipt"}}<tr><td>Change</td><td class="num">{{.Money .Change}}</td></tr>{{end}}
    {{range .Refunds}}<tr><td>Refund {{.Date.Format "2006-01-02"}}</td><td class="num">-{{$.Money .Amount}}</td></tr>{{end}}
    {{if .Refunds}}<tr><td>Balance</td><td class="num">{{.Money .Balance}}</td></tr>{{end}}
  </table>
  {{range .FooterLines}}<p>{{.}}</p>{{end}}
</body>
</html>
`))
