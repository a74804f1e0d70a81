package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"bookstore_back_end/internal/models"

	"github.com/gocql/gocql"
)

const (
	cqlInsertMovement = `INSERT INTO stock_movements (book_id, id, order_id, quantity, reason, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	cqlInsertAudit    = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, success, ip, user_agent, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	ledgerWriteTimeout = 5 * time.Second
)

// Ledger écrit dans ScyllaDB les mouvements de stock et le journal d'audit.
// Les écritures partent en arrière-plan : un échec est loggé, jamais remonté à la requête.
type Ledger struct {
	session *gocql.Session
	wg      sync.WaitGroup
}

func NewLedger(session *gocql.Session) *Ledger {
	return &Ledger{session: session}
}

func (l *Ledger) Enabled() bool { return l != nil && l.session != nil }

func (l *Ledger) async(ctx context.Context, what string, fn func(ctx context.Context) error) {
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), ledgerWriteTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			slog.ErrorContext(ctx, "❌ écriture ledger échouée", "what", what, "error", err)
		}
	}()
}

// Wait attend les écritures en cours (arrêt du serveur).
func (l *Ledger) Wait() {
	if l != nil {
		l.wg.Wait()
	}
}

func movementArgs(m models.StockMovement) []any {
	return []any{gocql.UUID(m.BookID), gocql.UUIDFromTime(m.CreatedAt), gocql.UUID(m.OrderID), m.Quantity, m.Reason, m.CreatedAt}
}

func (l *Ledger) RecordStockMovements(ctx context.Context, movements []models.StockMovement) {
	if !l.Enabled() || len(movements) == 0 {
		return
	}
	l.async(ctx, "stock_movements", func(ctx context.Context) error {
		batch := l.session.NewBatch(gocql.UnloggedBatch).WithContext(ctx)
		for _, m := range movements {
			batch.Query(cqlInsertMovement, movementArgs(m)...)
		}
		return l.session.ExecuteBatch(batch)
	})
}

func auditArgs(a models.AuditLog) []any {
	return []any{gocql.UUIDFromTime(a.Timestamp), a.UserID, a.Action, a.Resource, a.ResourceID, a.Success, a.IPAddress, a.UserAgent, a.Timestamp}
}

func (l *Ledger) RecordAudit(ctx context.Context, entry models.AuditLog) {
	if !l.Enabled() {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	l.async(ctx, "audit_logs", func(ctx context.Context) error {
		return l.session.Query(cqlInsertAudit, auditArgs(entry)...).WithContext(ctx).Exec()
	})
}
