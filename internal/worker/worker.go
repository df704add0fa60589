// Package worker provides async check processing for the Pro tier.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harrierhq/harrier/internal/bus"
	"github.com/harrierhq/harrier/internal/domain"
	"github.com/harrierhq/harrier/internal/fraud"
)

// historyLookback bounds how far back transaction history is loaded for a
// check. Wide enough to cover the annual threshold windows.
const historyLookback = 400 * 24 * time.Hour

// checkQueueGroup is the queue group all check workers join. Group
// members split the pending checks, so running several workers scales
// throughput instead of duplicating results.
const checkQueueGroup = "check-workers"

// Worker processes check requests asynchronously from the EventBus.
type Worker struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	detector *fraud.Detector

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// OrgIDs is the list of orgs to process (empty = global subscription)
	OrgIDs []string

	// WorkerCount is how many queue-group members to run per org.
	// Members split the pending checks between them.
	WorkerCount int
}

// NewWorker creates a new async worker. cache may be nil; history is then
// always loaded from the repository.
func NewWorker(bus domain.EventBus, repo domain.Repository, cache domain.Cache, detector *fraud.Detector) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		detector: detector,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing check requests for the given orgs.
func (w *Worker) Start(cfg Config) error {
	members := cfg.WorkerCount
	if members <= 0 {
		members = 1
	}

	if len(cfg.OrgIDs) == 0 {
		return w.startWorkers(domain.GlobalOrgID, members)
	}

	for _, orgID := range cfg.OrgIDs {
		if err := w.startWorkers(orgID, members); err != nil {
			slog.Error("failed to start worker for org",
				"org_id", orgID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"org_count", len(cfg.OrgIDs),
		"members_per_org", members,
	)

	return nil
}

// startWorkers joins the check queue group for an org. GlobalOrgID
// subscribes as a wildcard covering every org. Members of the group
// split the pending checks between them.
func (w *Worker) startWorkers(orgID string, members int) error {
	for i := 0; i < members; i++ {
		sub, err := bus.SubscribeCheckRequests(w.ctx, w.bus, orgID, checkQueueGroup, w.processCheck)
		if err != nil {
			return err
		}
		w.subscriptions = append(w.subscriptions, sub)
	}

	slog.Info("org worker started",
		"org_id", orgID,
		"queue_group", checkQueueGroup,
		"members", members,
	)

	return nil
}

// processCheck runs one transaction through the fraud pipeline.
func (w *Worker) processCheck(ctx context.Context, req bus.CheckRequest) error {
	start := time.Now()
	orgID := req.OrgID

	tx := req.Transaction.ToTransaction(orgID)
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	slog.Debug("processing check",
		"tx_id", tx.ID,
		"org_id", orgID,
		"trace_id", req.TraceID,
	)

	// 1. Load the org's transaction history
	history, err := w.loadHistory(ctx, orgID)
	if err != nil {
		slog.Error("failed to load history",
			"tx_id", tx.ID,
			"org_id", orgID,
			"error", err,
		)
		return err
	}

	// 2. Run the detection engine
	result := w.detector.CheckTransaction(*tx, history, req.CountryCode)

	// 3. Persist transaction, alerts, and audit record
	if w.repo != nil {
		if err := w.repo.SaveTransaction(ctx, orgID, tx); err != nil {
			slog.Error("failed to save transaction",
				"tx_id", tx.ID,
				"error", err,
			)
		}
		if len(result.Alerts) > 0 {
			if err := w.repo.SaveAlerts(ctx, orgID, result.Alerts); err != nil {
				slog.Error("failed to save alerts",
					"tx_id", tx.ID,
					"error", err,
				)
			}
		}
		if err := w.repo.SaveCheckResult(ctx, orgID, &result); err != nil {
			slog.Error("failed to save check result",
				"tx_id", tx.ID,
				"error", err,
			)
		}
	}

	// 4. The saved transaction is now part of history
	if w.cache != nil {
		_ = w.cache.InvalidateHistory(ctx, orgID)
	}

	// 5. Publish result to completed topic
	if err := bus.PublishCheckCompleted(ctx, w.bus, req.TraceID, &result); err != nil {
		slog.Error("failed to publish check result",
			"tx_id", tx.ID,
			"error", err,
		)
	}

	// 6. If the check raised alerts, publish to the alert topic
	if result.HasFraudSignals {
		if err := bus.PublishAlertRaised(ctx, w.bus, &result); err != nil {
			slog.Error("failed to publish alert",
				"tx_id", tx.ID,
				"error", err,
			)
		}
	}

	slog.Info("check processed",
		"tx_id", tx.ID,
		"org_id", orgID,
		"action", result.RecommendedAction,
		"alerts", len(result.Alerts),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// loadHistory returns the org's transaction history, from cache when warm.
func (w *Worker) loadHistory(ctx context.Context, orgID string) ([]domain.Transaction, error) {
	if w.cache != nil {
		history, err := w.cache.GetHistory(ctx, orgID)
		if err == nil && history != nil {
			return history, nil
		}
	}

	if w.repo == nil {
		return nil, nil
	}

	since := time.Now().Add(-historyLookback)
	history, err := w.repo.ListTransactions(ctx, orgID, since)
	if err != nil {
		return nil, err
	}

	if w.cache != nil {
		_ = w.cache.SetHistory(ctx, orgID, history, 5*time.Minute)
	}

	return history, nil
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	// Unsubscribe all
	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
