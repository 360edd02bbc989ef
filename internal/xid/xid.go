package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed random identifier such as "item-9f0c...".
func New(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

// ReceiptID formats a ledger transaction id the way printed receipts show it.
func ReceiptID(id int64) string {
	return fmt.Sprintf("REC-%04d", id)
}
