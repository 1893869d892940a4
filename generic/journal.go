/*
journal.go - Append-only audit journal of balance changes

PURPOSE:
  Balances are mutable rows (allocated_days / used_days). The journal is the
  record of WHY they hold their current values: every deduction, restoration,
  pair re-pricing, monthly credit and comp-off movement appends one entry.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IDEMPOTENT: Same idempotency key = same entry (second append fails with
     ErrDuplicateIdempotencyKey). The monthly scheduler relies on this.

CORRECTIONS:
  A wrong deduction is never edited. A reversal or adjustment entry with the
  opposite sign is appended and both stay in the journal.

SEE ALSO:
  - leave/ledger.go: writes an entry for every balance mutation
  - accrual/allocator.go: keys monthly credits by user/type/month
*/
package generic

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JournalStore persists journal entries.
// IMPORTANT: append-only. There is no update or delete.
type JournalStore interface {
	// AppendTransaction persists an entry. Returns ErrDuplicateIdempotencyKey
	// if the key is already present.
	AppendTransaction(ctx context.Context, tx Transaction) error

	// TransactionExists checks whether an idempotency key has been used.
	TransactionExists(ctx context.Context, idempotencyKey string) (bool, error)

	// ListTransactions returns entries matching filter, oldest first.
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
}

// Journal stamps and appends entries on top of a JournalStore.
type Journal struct {
	Store JournalStore
	Now   func() time.Time
}

func NewJournal(store JournalStore) *Journal {
	return &Journal{Store: store, Now: time.Now}
}

// Append assigns an ID and timestamp when missing and checks the idempotency
// key before writing.
func (j *Journal) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := j.Store.TransactionExists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	if tx.ID == "" {
		tx.ID = TransactionID(uuid.NewString())
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = j.now()
	}
	if tx.CreatedBy == "" {
		tx.CreatedBy = ActorSystem
	}
	return j.Store.AppendTransaction(ctx, tx)
}

func (j *Journal) now() time.Time {
	if j.Now == nil {
		return time.Now().UTC()
	}
	return j.Now().UTC()
}
