// Package audit records payments and request logs without ever failing the
// request that produced them.
package audit

import (
	"context"

	"github.com/relay402/server/internal/logger"
	"github.com/relay402/server/internal/storage"
)

// Writer wraps a Store with best-effort semantics: storage errors are logged
// and swallowed. A lost audit row is a diagnostics gap; a failed client
// request over it would be a revenue gap.
type Writer struct {
	store storage.Store
}

// NewWriter creates an audit writer over the given store.
func NewWriter(store storage.Store) *Writer {
	return &Writer{store: store}
}

// RecordPayment stores a payment record, returning its ID.
// Returns the ID even when the write fails so callers can still reference it.
func (w *Writer) RecordPayment(ctx context.Context, payment storage.Payment) string {
	if payment.ID == "" {
		payment.ID = storage.NewID()
	}
	if err := w.store.RecordPayment(ctx, payment); err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("payment_id", payment.ID).
			Str("tenant_id", payment.TenantID).
			Msg("audit.record_payment_failed")
	}
	return payment.ID
}

// UpdatePayment applies a partial update to a payment record.
func (w *Writer) UpdatePayment(ctx context.Context, id string, update storage.PaymentUpdate) {
	if err := w.store.UpdatePayment(ctx, id, update); err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("payment_id", id).
			Str("status", string(update.Status)).
			Msg("audit.update_payment_failed")
	}
}

// RecordRequest stores a request log entry.
func (w *Writer) RecordRequest(ctx context.Context, entry storage.RequestLog) {
	if entry.ID == "" {
		entry.ID = storage.NewID()
	}
	if err := w.store.RecordRequestLog(ctx, entry); err != nil {
		log := logger.FromContext(ctx)
		log.Error().
			Err(err).
			Str("tenant_id", entry.TenantID).
			Msg("audit.record_request_failed")
	}
}
