package domain

type AddItemRequest struct {
	CatalogItemID string `json:"catalogItemId"`
}

type CustomItemRequest struct {
	Name           string     `json:"name"`
	UnitPrice      FlexNumber `json:"unitPrice"`
	WarrantyMonths FlexNumber `json:"warrantyMonths"`
}

type QuantityRequest struct {
	Quantity FlexNumber `json:"quantity"`
}

type CustomerRequest struct {
	CustomerID string `json:"customerId"`
}

// TaxRateRequest selects a configured VAT rate by name or sets a raw rate.
type TaxRateRequest struct {
	VATRateName string     `json:"vatRateName,omitempty"`
	TaxRate     FlexNumber `json:"taxRate,omitempty"`
}

// PaymentUpdateRequest changes the fields that are present.
type PaymentUpdateRequest struct {
	Method *string     `json:"method,omitempty"`
	Amount *FlexNumber `json:"amount,omitempty"`
}

type DraftSaveRequest struct {
	Name string `json:"name"`
}

type CheckoutResponse struct {
	Transaction Transaction `json:"transaction"`
	Edited      bool        `json:"edited"`
}
