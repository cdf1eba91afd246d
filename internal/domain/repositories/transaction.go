package repositories

import (
	"context"
)

// TxFn is a function executed within a transaction
type TxFn func(ctx context.Context) error

// TransactionManager coordinates multi-statement mutations. The
// cascading subtree delete relies on this: a reader must never observe
// a partially removed subtree.
type TransactionManager interface {
	// ExecTx executes fn within a transaction. The transaction is
	// stored in the context so repositories participate automatically.
	ExecTx(ctx context.Context, fn TxFn) error
}
