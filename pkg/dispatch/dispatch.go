package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"github.com/example/ecomshop/pkg/events"
	"github.com/example/ecomshop/pkg/repository"
)

const auditService = "ecomshop"

// AuditWriter is satisfied by *repository.MongoRepository.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *repository.AuditLog) error
}

// Flush asks the event actor for its counters. Mailboxes are FIFO, so the
// reply comes after every event sent before it has been handled.
type Flush struct{}

type Stats struct {
	Handled int
	Failed  int
}

// EventActor writes each event to the audit log and forwards it to the
// broker. Failures are logged and counted; they never reach the request
// that caused the event.
type EventActor struct {
	audit     AuditWriter
	publisher events.Publisher
	timeout   time.Duration
	logger    *zap.Logger
	stats     Stats
}

func (a *EventActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *events.Event:
		a.handle(msg)

	case *Flush:
		ctx.Respond(&Stats{Handled: a.stats.Handled, Failed: a.stats.Failed})

	case *actor.Started:
		a.logger.Info("Event actor started")

	case *actor.Stopping:
		a.logger.Info("Event actor stopping")

	case *actor.Stopped:
		a.logger.Info("Event actor stopped")
	}
}

func (a *EventActor) handle(e *events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	failed := false
	if a.audit != nil {
		err := a.audit.CreateAuditLog(ctx, &repository.AuditLog{
			Service:   auditService,
			Action:    e.Type,
			EntityID:  e.EntityID,
			UserID:    e.UserID,
			Data:      bson.M(e.Data),
			CreatedAt: e.OccurredAt,
		})
		if err != nil {
			failed = true
			a.logger.Error("Failed to write audit log",
				zap.String("type", e.Type), zap.String("entity_id", e.EntityID), zap.Error(err))
		}
	}

	if err := a.publisher.Publish(ctx, *e); err != nil {
		failed = true
		a.logger.Error("Failed to publish event",
			zap.String("type", e.Type), zap.String("entity_id", e.EntityID), zap.Error(err))
	}

	a.stats.Handled++
	if failed {
		a.stats.Failed++
	}
}

// Dispatcher owns the actor system and hands events to the event actor
// without waiting for them to be processed.
type Dispatcher struct {
	system    *actor.ActorSystem
	pid       *actor.PID
	publisher events.Publisher
	logger    *zap.Logger
}

// NewDispatcher spawns the event actor. audit may be nil when no audit
// store is configured.
func NewDispatcher(audit AuditWriter, publisher events.Publisher, timeout time.Duration, logger *zap.Logger) (*Dispatcher, error) {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	system := actor.NewActorSystem()
	props := actor.PropsFromProducer(func() actor.Actor {
		return &EventActor{
			audit:     audit,
			publisher: publisher,
			timeout:   timeout,
			logger:    logger.Named("event-actor"),
		}
	})
	pid, err := system.Root.SpawnNamed(props, "event-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn event actor: %w", err)
	}

	return &Dispatcher{
		system:    system,
		pid:       pid,
		publisher: publisher,
		logger:    logger,
	}, nil
}

func (d *Dispatcher) Notify(e events.Event) {
	d.system.Root.Send(d.pid, &e)
}

// Stats waits until all previously sent events are handled and returns the
// actor's counters.
func (d *Dispatcher) Stats(timeout time.Duration) (*Stats, error) {
	result, err := d.system.Root.RequestFuture(d.pid, &Flush{}, timeout).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query event actor: %w", err)
	}
	stats, ok := result.(*Stats)
	if !ok {
		return nil, fmt.Errorf("unexpected reply %T from event actor", result)
	}
	return stats, nil
}

// Shutdown drains the mailbox, stops the actor and closes the publisher.
func (d *Dispatcher) Shutdown() error {
	if err := d.system.Root.PoisonFuture(d.pid).Wait(); err != nil {
		d.logger.Warn("Event actor did not stop cleanly", zap.Error(err))
	}
	return d.publisher.Close()
}
