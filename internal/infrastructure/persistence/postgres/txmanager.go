package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/brightpath-edu/learning-analytics/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSACTION MANAGER
// ══════════════════════════════════════════════════════════════════════════════

// TxManager implements command.TxManager on top of a Connection. Each InTx
// call opens a serializable transaction and hands the callback repositories
// bound to that transaction, so every store operation inside the callback
// commits or rolls back together.
type TxManager struct {
	conn *Connection
}

// NewTxManager creates a new TxManager.
func NewTxManager(conn *Connection) *TxManager {
	return &TxManager{conn: conn}
}

// InTx runs fn inside a single serializable transaction.
func (m *TxManager) InTx(ctx context.Context, fn func(ctx context.Context, s command.Stores) error) error {
	return m.conn.WithTx(ctx, SerializableTxOptions(), func(tx pgx.Tx) error {
		stores := command.Stores{
			Interactions: NewInteractionRepository(tx),
			Mastery:      NewMasteryRepository(tx),
			Progress:     NewProgressRepository(tx),
			Usage:        NewUsageRepository(tx),
		}
		return fn(ctx, stores)
	})
}
