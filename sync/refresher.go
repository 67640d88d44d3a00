// Package sync keeps tenant credentials fresh ahead of expiry. A sweeper
// scans active installations and enqueues refresh jobs; a worker drains the
// queue and performs the refresh through the service.
package sync

import (
	"context"
	"fmt"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	gojob "github.com/goliatone/go-whatsapp-bridge/adapters/gojob"
	"github.com/goliatone/go-whatsapp-bridge/core"
)

const defaultRefreshLead = 300 * time.Second

type InstallationLister interface {
	ListActive(ctx context.Context) ([]core.Installation, error)
}

type TokenRefresher interface {
	RefreshTenantToken(ctx context.Context, resourceID string) (core.Installation, error)
}

type DedupPurger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

var _ DedupPurger = (*core.MemoryDedupCache)(nil)

// Refresher sweeps active installations and enqueues a refresh job for every
// tenant whose token expires inside the lead window. Duplicate enqueues for
// the same expiry collapse on the idempotency key.
type Refresher struct {
	Store    InstallationLister
	Enqueuer core.JobEnqueuer
	Lead     time.Duration
	Logger   core.Logger
	Now      func() time.Time
}

func NewRefresher(store InstallationLister, enqueuer core.JobEnqueuer, lead time.Duration) *Refresher {
	if lead <= 0 {
		lead = defaultRefreshLead
	}
	return &Refresher{
		Store:    store,
		Enqueuer: enqueuer,
		Lead:     lead,
		Logger:   glog.Nop(),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SweepOnce runs a single scan and returns how many refresh jobs it enqueued.
func (r *Refresher) SweepOnce(ctx context.Context) (int, error) {
	if r == nil || r.Store == nil || r.Enqueuer == nil {
		return 0, fmt.Errorf("sync: refresher requires a store and an enqueuer")
	}

	installations, err := r.Store.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	now := r.now()
	horizon := now.Add(r.Lead)
	enqueued := 0
	for _, installation := range installations {
		if installation.TokenValid(horizon) {
			continue
		}
		resourceID := installation.ResourceID()
		if resourceID == "" {
			continue
		}
		expiresAt := installation.UpdatedAt.Add(time.Duration(installation.ExpiresIn) * time.Second)
		msg := &core.JobExecutionMessage{
			JobID: gojob.JobIDRefresh,
			Parameters: map[string]any{
				"resource_id": resourceID,
			},
			IdempotencyKey: fmt.Sprintf("%s::%s::%d", gojob.JobIDRefresh, resourceID, expiresAt.Unix()),
			DedupPolicy:    "drop",
		}
		if enqueueErr := r.Enqueuer.Enqueue(ctx, msg); enqueueErr != nil {
			r.logger().Error("refresh enqueue failed",
				"resource_id", resourceID,
				"error", enqueueErr.Error(),
			)
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// SchedulePurge enqueues a dedup maintenance job. The idempotency key is
// bucketed to the minute so repeat schedules inside one bucket collapse.
func (r *Refresher) SchedulePurge(ctx context.Context) error {
	if r == nil || r.Enqueuer == nil {
		return fmt.Errorf("sync: refresher requires an enqueuer")
	}
	now := r.now()
	return r.Enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
		JobID:          gojob.JobIDDedupPurge,
		IdempotencyKey: fmt.Sprintf("%s::%d", gojob.JobIDDedupPurge, now.Truncate(time.Minute).Unix()),
		DedupPolicy:    "drop",
	})
}

// Run sweeps on the given interval until the context is cancelled. Each pass
// also schedules a dedup purge so pair tracking stays bounded.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) error {
	if r == nil {
		return fmt.Errorf("sync: refresher is nil")
	}
	if interval <= 0 {
		return fmt.Errorf("sync: sweep interval must be positive")
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := r.SweepOnce(ctx); err != nil {
			r.logger().Error("refresh sweep failed", "error", err.Error())
		}
		if err := r.SchedulePurge(ctx); err != nil {
			r.logger().Error("purge schedule failed", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (r *Refresher) now() time.Time {
	if r != nil && r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Refresher) logger() core.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return glog.Nop()
}

// Worker drains bridge maintenance deliveries from the queue: token
// refreshes and dedup purges. Failures are nacked with a delay so the broker
// retries; unknown job ids are dead-lettered.
type Worker struct {
	Dequeuer   core.JobDequeuer
	Refresher  TokenRefresher
	Purger     DedupPurger
	Logger     core.Logger
	RetryDelay time.Duration
}

func NewWorker(dequeuer core.JobDequeuer, refresher TokenRefresher) *Worker {
	return &Worker{
		Dequeuer:   dequeuer,
		Refresher:  refresher,
		Logger:     glog.Nop(),
		RetryDelay: 30 * time.Second,
	}
}

// ProcessOne handles a single delivery. It blocks until the dequeuer yields.
func (w *Worker) ProcessOne(ctx context.Context) error {
	if w == nil || w.Dequeuer == nil || w.Refresher == nil {
		return fmt.Errorf("sync: worker requires a dequeuer and a refresher")
	}
	delivery, err := w.Dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	msg := delivery.Message()
	if msg == nil {
		return delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "missing message",
		})
	}
	switch strings.TrimSpace(msg.JobID) {
	case gojob.JobIDRefresh:
		return w.processRefresh(ctx, delivery, msg)
	case gojob.JobIDDedupPurge:
		return w.processPurge(ctx, delivery)
	default:
		return delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "unexpected job id",
		})
	}
}

func (w *Worker) processRefresh(ctx context.Context, delivery core.JobDelivery, msg *core.JobExecutionMessage) error {
	resourceID, _ := msg.Parameters["resource_id"].(string)
	if strings.TrimSpace(resourceID) == "" {
		return delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "missing resource id",
		})
	}

	if _, refreshErr := w.Refresher.RefreshTenantToken(ctx, resourceID); refreshErr != nil {
		// Tenants that must re-install cannot be fixed by retrying.
		if core.IsAuthError(refreshErr) {
			w.logger().Error("refresh requires re-authorization",
				"resource_id", resourceID,
				"error", refreshErr.Error(),
			)
			return delivery.Ack(ctx)
		}
		return delivery.Nack(ctx, core.JobNackOptions{
			Delay:   w.RetryDelay,
			Requeue: true,
			Reason:  refreshErr.Error(),
		})
	}
	return delivery.Ack(ctx)
}

// processPurge is maintenance work; with no purger attached the job is a
// harmless no-op, acked rather than dead-lettered.
func (w *Worker) processPurge(ctx context.Context, delivery core.JobDelivery) error {
	if w.Purger == nil {
		return delivery.Ack(ctx)
	}
	pruned, purgeErr := w.Purger.PurgeExpired(ctx)
	if purgeErr != nil {
		return delivery.Nack(ctx, core.JobNackOptions{
			Delay:   w.RetryDelay,
			Requeue: true,
			Reason:  purgeErr.Error(),
		})
	}
	if pruned > 0 {
		w.logger().Info("dedup purge completed", "pruned", pruned)
	}
	return delivery.Ack(ctx)
}

// Run processes deliveries until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return fmt.Errorf("sync: worker is nil")
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := w.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.logger().Error("refresh delivery failed", "error", err.Error())
		}
	}
}

func (w *Worker) logger() core.Logger {
	if w != nil && w.Logger != nil {
		return w.Logger
	}
	return glog.Nop()
}
