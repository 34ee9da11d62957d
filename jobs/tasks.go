// Package jobs holds the asynq background worker and its banking tasks.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridianbank/meridian/internal/account"
	"github.com/meridianbank/meridian/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdraftScan lists active accounts below zero and logs exposure.
	TaskOverdraftScan = "bank:overdraft_scan"
	// TaskIdempotencyCleanup removes correlation keys past retention.
	TaskIdempotencyCleanup = "bank:idempotency_cleanup"
)

// OverdraftScanPayload configures an overdraft scan run.
type OverdraftScanPayload struct {
	RequestedBy string `json:"requested_by"`
}

// IdempotencyCleanupPayload configures a cleanup run.
type IdempotencyCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewOverdraftScanTask constructs an asynq task.
func NewOverdraftScanTask(payload OverdraftScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdraftScan, data), nil
}

// NewIdempotencyCleanupTask constructs an asynq task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}

// OverdraftLister supplies accounts currently below zero.
type OverdraftLister interface {
	ListOverdrawn(ctx context.Context) ([]account.Account, error)
}

// NewOverdraftScanHandler builds the handler for TaskOverdraftScan. It logs
// one line per overdrawn account so operators can watch exposure drift.
func NewOverdraftScanHandler(lister OverdraftLister, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload OverdraftScanPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		accounts, err := lister.ListOverdrawn(ctx)
		if err != nil {
			return err
		}
		for _, acct := range accounts {
			logger.Warn("overdrawn account",
				slog.String("account_id", acct.ID.String()),
				slog.String("number", acct.Number),
				slog.String("type", string(acct.Type)),
				slog.String("balance", acct.Balance.String()),
			)
		}
		logger.Info("overdraft scan complete", slog.Int("overdrawn", len(accounts)))
		return nil
	}
}

// NewIdempotencyCleanupHandler builds the handler for TaskIdempotencyCleanup.
func NewIdempotencyCleanupHandler(store *shared.IdempotencyStore, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload IdempotencyCleanupPayload
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.Retention <= 0 {
			payload.Retention = 7 * 24 * time.Hour
		}
		removed, err := store.Cleanup(ctx, payload.Retention)
		if err != nil {
			return err
		}
		logger.Info("idempotency cleanup complete", slog.Int64("removed", removed))
		return nil
	}
}
