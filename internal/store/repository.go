package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"repairdesk/backend/internal/domain"
)

// BlobRepository maps the typed collections onto JSON documents in a
// BlobStore.
type BlobRepository struct {
	blobs BlobStore
}

func NewRepository(blobs BlobStore) *BlobRepository {
	return &BlobRepository{blobs: blobs}
}

func (r *BlobRepository) WithTransaction(ctx context.Context, keys []string, fn func(ctx context.Context, repo Repository) error) error {
	return r.blobs.Update(ctx, keys, func(ctx context.Context, tx BlobStore) error {
		return fn(ctx, &BlobRepository{blobs: tx})
	})
}

func (r *BlobRepository) LoadCatalog(ctx context.Context) ([]domain.CatalogItem, error) {
	items := []domain.CatalogItem{}
	if _, err := r.load(ctx, KeyInventory, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *BlobRepository) SaveCatalog(ctx context.Context, items []domain.CatalogItem) error {
	if items == nil {
		items = []domain.CatalogItem{}
	}
	return r.save(ctx, KeyInventory, items)
}

func (r *BlobRepository) LoadTransactions(ctx context.Context) ([]domain.Transaction, error) {
	txs := []domain.Transaction{}
	if _, err := r.load(ctx, KeyTransactions, &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (r *BlobRepository) SaveTransactions(ctx context.Context, txs []domain.Transaction) error {
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return r.save(ctx, KeyTransactions, txs)
}

func (r *BlobRepository) LoadLastTransactionID(ctx context.Context) (int64, error) {
	var id int64
	if _, err := r.load(ctx, KeyLastTransactionID, &id); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *BlobRepository) SaveLastTransactionID(ctx context.Context, id int64) error {
	return r.save(ctx, KeyLastTransactionID, id)
}

func (r *BlobRepository) LoadDrafts(ctx context.Context) ([]domain.Draft, error) {
	drafts := []domain.Draft{}
	if _, err := r.load(ctx, KeyDrafts, &drafts); err != nil {
		return nil, err
	}
	return drafts, nil
}

func (r *BlobRepository) SaveDrafts(ctx context.Context, drafts []domain.Draft) error {
	if drafts == nil {
		drafts = []domain.Draft{}
	}
	return r.save(ctx, KeyDrafts, drafts)
}

// LoadVATRates returns nil when no rates were ever saved.
func (r *BlobRepository) LoadVATRates(ctx context.Context) ([]domain.VATRate, error) {
	var rates []domain.VATRate
	if _, err := r.load(ctx, KeyVATRates, &rates); err != nil {
		return nil, err
	}
	return rates, nil
}

func (r *BlobRepository) SaveVATRates(ctx context.Context, rates []domain.VATRate) error {
	return r.save(ctx, KeyVATRates, rates)
}

// LoadReceiptTemplate returns nil when no template was ever saved.
func (r *BlobRepository) LoadReceiptTemplate(ctx context.Context) (*domain.ReceiptTemplate, error) {
	var tmpl domain.ReceiptTemplate
	found, err := r.load(ctx, KeyReceiptTemplate, &tmpl)
	if err != nil || !found {
		return nil, err
	}
	return &tmpl, nil
}

func (r *BlobRepository) SaveReceiptTemplate(ctx context.Context, tmpl domain.ReceiptTemplate) error {
	return r.save(ctx, KeyReceiptTemplate, tmpl)
}

func (r *BlobRepository) load(ctx context.Context, key string, dest any) (bool, error) {
	raw, err := r.blobs.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (r *BlobRepository) save(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.blobs.Put(ctx, key, payload); err != nil {
		return fmt.Errorf("save %s: %w", key, err)
	}
	return nil
}
