// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"

	"github.com/brightpath-edu/learning-analytics/internal/domain/interaction"
	"github.com/brightpath-edu/learning-analytics/internal/domain/mastery"
	"github.com/brightpath-edu/learning-analytics/internal/domain/progress"
	"github.com/brightpath-edu/learning-analytics/internal/domain/usage"
)

// Stores bundles the repositories a command touches inside one transaction.
// Every repository in the bundle operates on the same transaction handle.
type Stores struct {
	Interactions interaction.Repository
	Mastery      mastery.Repository
	Progress     progress.Repository
	Usage        usage.Repository
}

// TxManager runs a function inside a single serializable transaction.
// The store guarantees the writes are all-or-nothing and that concurrent
// updates for the same student do not produce lost updates.
type TxManager interface {
	// InTx begins a transaction, calls fn with transaction-scoped stores,
	// and commits on nil error or rolls back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
