package drafts

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"repairdesk/backend/internal/domain"
	"repairdesk/backend/internal/store"
	"repairdesk/backend/internal/xid"
)

var (
	ErrConfirmationRequired = errors.New("deleting a draft must be confirmed")
	ErrEmptyDraft           = fmt.Errorf("%w: draft has no items", store.ErrInvalidInput)
)

// Book is the persisted collection of parked carts.
type Book struct {
	repo store.Repository
	now  func() time.Time
}

func NewBook(repo store.Repository) *Book {
	return &Book{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// Save parks lines under name. A blank name is replaced by the save time.
func (b *Book) Save(ctx context.Context, name string, lines []domain.CartLine, customerID string) (domain.Draft, error) {
	if len(lines) == 0 {
		return domain.Draft{}, ErrEmptyDraft
	}

	now := b.now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Draft " + now.Format("2006-01-02 15:04")
	}
	draft := domain.Draft{
		ID:         xid.New("draft"),
		Name:       name,
		Timestamp:  now,
		CustomerID: strings.TrimSpace(customerID),
		Cart:       slices.Clone(lines),
	}

	err := b.repo.WithTransaction(ctx, []string{store.KeyDrafts}, func(ctx context.Context, tx store.Repository) error {
		drafts, err := tx.LoadDrafts(ctx)
		if err != nil {
			return err
		}
		return tx.SaveDrafts(ctx, append(drafts, draft))
	})
	if err != nil {
		return domain.Draft{}, err
	}
	return draft, nil
}

// List returns drafts, most recent first.
func (b *Book) List(ctx context.Context) ([]domain.Draft, error) {
	drafts, err := b.repo.LoadDrafts(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(drafts, func(i, j int) bool { return drafts[i].Timestamp.After(drafts[j].Timestamp) })
	return drafts, nil
}

// Load returns draft id. The caller replaces its cart with the snapshot.
func (b *Book) Load(ctx context.Context, id string) (domain.Draft, error) {
	drafts, err := b.repo.LoadDrafts(ctx)
	if err != nil {
		return domain.Draft{}, err
	}
	idx := indexOf(drafts, id)
	if idx < 0 {
		return domain.Draft{}, store.ErrNotFound
	}
	return drafts[idx], nil
}

func (b *Book) Delete(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return ErrConfirmationRequired
	}
	return b.repo.WithTransaction(ctx, []string{store.KeyDrafts}, func(ctx context.Context, tx store.Repository) error {
		drafts, err := tx.LoadDrafts(ctx)
		if err != nil {
			return err
		}
		idx := indexOf(drafts, id)
		if idx < 0 {
			return store.ErrNotFound
		}
		return tx.SaveDrafts(ctx, slices.Delete(drafts, idx, idx+1))
	})
}

func indexOf(drafts []domain.Draft, id string) int {
	return slices.IndexFunc(drafts, func(d domain.Draft) bool { return d.ID == id })
}
