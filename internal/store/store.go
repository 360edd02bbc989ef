package store

import (
	"context"
	"errors"

	"repairdesk/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUndeclaredKey     = errors.New("key not declared for transaction")
	ErrConflict          = errors.New("concurrent update conflict")
)

// Collection keys. Every collection is persisted as one JSON document.
const (
	KeyInventory         = "inventory_data"
	KeyTransactions      = "pos_transactions"
	KeyLastTransactionID = "lastTransactionId"
	KeyDrafts            = "pos_drafts"
	KeyVATRates          = "vatRates"
	KeyReceiptTemplate   = "receiptTemplate"
)

// AllKeys lists every collection the till persists.
var AllKeys = []string{
	KeyInventory,
	KeyTransactions,
	KeyLastTransactionID,
	KeyDrafts,
	KeyVATRates,
	KeyReceiptTemplate,
}

// BlobStore is a key/value store of whole JSON documents.
//
// Update runs fn against a view restricted to keys; writes made through the
// view are persisted together only if fn returns nil. Implementations
// serialize Update calls (or detect conflicting writers), which is the
// single-writer contract the till relies on.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Update(ctx context.Context, keys []string, fn func(ctx context.Context, tx BlobStore) error) error
}

type CatalogRepository interface {
	LoadCatalog(ctx context.Context) ([]domain.CatalogItem, error)
	SaveCatalog(ctx context.Context, items []domain.CatalogItem) error
}

type LedgerRepository interface {
	LoadTransactions(ctx context.Context) ([]domain.Transaction, error)
	SaveTransactions(ctx context.Context, txs []domain.Transaction) error
	LoadLastTransactionID(ctx context.Context) (int64, error)
	SaveLastTransactionID(ctx context.Context, id int64) error
}

type DraftRepository interface {
	LoadDrafts(ctx context.Context) ([]domain.Draft, error)
	SaveDrafts(ctx context.Context, drafts []domain.Draft) error
}

type SettingsRepository interface {
	LoadVATRates(ctx context.Context) ([]domain.VATRate, error)
	SaveVATRates(ctx context.Context, rates []domain.VATRate) error
	LoadReceiptTemplate(ctx context.Context) (*domain.ReceiptTemplate, error)
	SaveReceiptTemplate(ctx context.Context, tmpl domain.ReceiptTemplate) error
}

type Repository interface {
	CatalogRepository
	LedgerRepository
	DraftRepository
	SettingsRepository

	// WithTransaction loads the collections named by keys, runs fn against a
	// repository bound to them and persists every collection fn saved in one
	// atomic write. Reading or saving a collection outside keys fails with
	// ErrUndeclaredKey.
	WithTransaction(ctx context.Context, keys []string, fn func(ctx context.Context, repo Repository) error) error
}
