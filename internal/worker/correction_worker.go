// Package worker applies queued category corrections to the bank.
package worker

import (
	"context"
	"errors"
	"fmt"

	"upspend/internal/amqp"
	"upspend/internal/backend"
	"upspend/internal/fixer"
	"upspend/internal/log"
	"upspend/internal/upbank"
)

// CorrectionWorker handles correction messages consumed from AMQP.
type CorrectionWorker struct {
	corrector fixer.Corrector
	history   backend.CorrectionLog
	logger    *log.Logger
}

// NewCorrectionWorker creates a worker. history may be nil, in which case
// redelivered messages are applied again.
func NewCorrectionWorker(corrector fixer.Corrector, history backend.CorrectionLog, logger *log.Logger) *CorrectionWorker {
	if logger == nil {
		logger = log.Nop()
	}
	return &CorrectionWorker{
		corrector: corrector,
		history:   history,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleCorrection applies one correction. A nil return acknowledges the
// message. Rejections from the bank are recorded and acknowledged; transient
// failures are returned so the message is requeued.
func (w *CorrectionWorker) HandleCorrection(ctx context.Context, msg *amqp.CorrectionMessage) error {
	fields := []any{"message_id", msg.ID, log.FieldTxID, msg.TransactionID, log.FieldCategory, msg.CategoryID}

	if w.history != nil {
		done, err := w.history.CorrectionProcessed(ctx, msg.ID)
		if err != nil {
			return fmt.Errorf("check correction log: %w", err)
		}
		if done {
			w.logger.InfoContext(ctx, "Skipping already applied correction", fields...)
			return nil
		}
	}

	w.logger.InfoContext(ctx, "Applying category correction", fields...)
	applyErr := w.corrector.Correct(ctx, msg.TransactionID, msg.CategoryID)
	w.record(ctx, msg, applyErr)

	if applyErr == nil {
		w.logger.InfoContext(ctx, "Category correction applied", fields...)
		return nil
	}
	if permanent(applyErr) {
		w.logger.ErrorContext(ctx, "Category correction rejected, dropping", append(fields, log.FieldError, applyErr)...)
		return nil
	}
	return fmt.Errorf("apply correction: %w", applyErr)
}

func (w *CorrectionWorker) record(ctx context.Context, msg *amqp.CorrectionMessage, applyErr error) {
	if w.history == nil {
		return
	}
	if err := w.history.RecordCorrection(ctx, msg.ID, msg.TransactionID, msg.CategoryID, applyErr); err != nil {
		w.logger.ErrorContext(ctx, "Failed to record correction", "message_id", msg.ID, log.FieldError, err)
	}
}

// permanent reports a bank response that retrying will not change.
func permanent(err error) bool {
	var apiErr *upbank.APIError
	return errors.As(err, &apiErr) && !apiErr.Temporary()
}
