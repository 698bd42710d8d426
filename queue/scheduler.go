// Package queue drives the durable delivery queue: a polling scheduler
// claims due (event, destination) rows and executes the matching adapter,
// with fixed-table backoff and a terminal-failure ceiling. State lives in
// the store, so deliveries survive process restarts; polling is at-least-
// once, and every adapter is idempotent per logical event.
package queue

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/chdigius/activityhub/store"
	"github.com/chdigius/activityhub/types"
)

var tracer = otel.Tracer("queue")

// WakeChannel carries enqueue notifications from ingestion so new work is
// picked up before the next tick. Purely an optimization: the ticker alone
// is sufficient for correctness.
const WakeChannel = "activityhub:deliveries"

const (
	defaultInterval  = 60 * time.Second
	defaultBatchSize = 10
)

// Destination is a pluggable delivery strategy.
type Destination interface {
	Name() string
	Deliver(ctx context.Context, event types.Event) error
}

// deliveryError is the structured last-error payload persisted on a row.
type deliveryError struct {
	Error string `json:"error"`
}

// Scheduler is the single active delivery loop.
type Scheduler struct {
	store        *store.Store
	rdb          *redis.Client
	destinations map[string]Destination
	interval     time.Duration
	batchSize    int
	running      atomic.Bool
}

func NewScheduler(store *store.Store, rdb *redis.Client, destinations ...Destination) *Scheduler {
	byName := make(map[string]Destination, len(destinations))
	for _, dest := range destinations {
		byName[dest.Name()] = dest
	}
	return &Scheduler{
		store:        store,
		rdb:          rdb,
		destinations: byName,
		interval:     defaultInterval,
		batchSize:    defaultBatchSize,
	}
}

// Run executes a pass immediately, then on every tick and wake signal until
// the context is cancelled. The in-flight pass always finishes before Run
// returns, so a claimed row is never left without its status update.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("queue: scheduler started (interval=%v, batch=%d)", s.interval, s.batchSize)

	var wake <-chan *redis.Message
	if s.rdb != nil {
		pubsub := s.rdb.Subscribe(ctx, WakeChannel)
		defer pubsub.Close()
		wake = pubsub.Channel()
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.RunOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("queue: scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		case <-wake:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce executes one scheduling pass: claim a bounded batch of due rows,
// oldest-due first, and execute each. Overlapping passes are skipped.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		log.Printf("queue: skip pass, previous still active")
		return
	}
	defer s.running.Store(false)

	ctx, span := tracer.Start(ctx, "QueueRunOnce")
	defer span.End()

	due, err := s.store.GetDueDeliveries(ctx, time.Now(), s.batchSize)
	if err != nil {
		span.RecordError(err)
		log.Printf("queue: claim failed: %v", err)
		return
	}

	for _, row := range due {
		if err := s.deliver(ctx, row); err != nil {
			s.recordFailure(ctx, row, err)
			continue
		}
		if err := s.store.MarkDeliveryOK(ctx, row.ID); err != nil {
			log.Printf("queue: mark ok %d: %v", row.ID, err)
		}
	}
}

// deliver resolves the destination adapter for a claimed row and invokes it.
// A missing event or unknown destination means enqueue and store disagree;
// both are hard failures for the row, subject to the same retry ceiling.
func (s *Scheduler) deliver(ctx context.Context, row types.Delivery) error {
	ctx, span := tracer.Start(ctx, "QueueDeliver")
	defer span.End()

	event, err := s.store.GetEventByID(ctx, row.EventID)
	if err != nil {
		return errors.Wrapf(err, "event %s not found", row.EventID)
	}

	dest, ok := s.destinations[row.Dest]
	if !ok {
		return errors.Errorf("unknown dest %s", row.Dest)
	}

	return dest.Deliver(ctx, event)
}

func (s *Scheduler) recordFailure(ctx context.Context, row types.Delivery, deliverErr error) {
	attempts := row.Attempts + 1
	delay := Backoff(attempts)
	terminal := attempts >= MaxAttempts

	lastError, err := json.Marshal(deliveryError{Error: deliverErr.Error()})
	if err != nil {
		lastError = []byte(`{"error":"unserializable"}`)
	}

	log.Printf("queue: delivery %d (%s→%s) attempt %d failed: %v", row.ID, row.EventID, row.Dest, attempts, deliverErr)

	err = s.store.RecordDeliveryFailure(ctx, row.ID, attempts, time.Now().Add(delay), lastError, terminal)
	if err != nil {
		log.Printf("queue: record failure %d: %v", row.ID, err)
	}
}
