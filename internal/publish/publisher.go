// Package publish implements the outbound lane: a bounded queue drained by a
// confirmed, retrying AMQP publish.
package publish

import (
	"context"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/looksrare/ord-indexer/internal/amqpconn"
	"github.com/looksrare/ord-indexer/internal/events"
)

const (
	queueCapacity = 1
	maxAttempts   = 8
	initialBackoff = time.Second
)

// FatalErr is sent on Publisher.Fatal when the retry budget for a single
// message is exhausted. The Supervisor treats this as a request to shut the
// whole process down: losing a message silently would desynchronize
// downstream state, and operator-driven replay from source is the only safe
// recovery.
type FatalErr struct {
	Event events.Event
	Err   error
}

func (e *FatalErr) Error() string {
	return fmt.Sprintf("publish: exhausted retries for %s: %v", e.Event.Kind, e.Err)
}

// Publisher owns the outbound channel to a single exchange.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string

	queue chan events.Event
	Fatal chan *FatalErr
}

// New builds a Publisher against an already-open connection/channel pair,
// publishing to exchange.
func New(conn *amqp.Connection, ch *amqp.Channel, exchange string) *Publisher {
	return &Publisher{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
		queue:    make(chan events.Event, queueCapacity),
		Fatal:    make(chan *FatalErr, 1),
	}
}

// Enqueue submits an event for publishing. It blocks if the bounded queue is
// full, providing backpressure to producers.
func (p *Publisher) Enqueue(ctx context.Context, e events.Event) error {
	select {
	case p.queue <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue until ctx is canceled. Each event is published in
// strict receive order; the in-flight message is always either completed or
// escalated via Fatal before the next one starts. Canceling ctx does not
// interrupt an in-flight publish or its retries.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case e := <-p.queue:
			if err := p.publishWithRetry(context.WithoutCancel(ctx), e); err != nil {
				p.Fatal <- &FatalErr{Event: e, Err: err}
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Publisher) publishWithRetry(ctx context.Context, e events.Event) error {
	body, err := events.Serialize(e)
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}
	routingKey := events.RoutingKey(e)

	backoff := initialBackoff
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		confirmation, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		})
		if err == nil {
			ok, confirmErr := confirmation.WaitContext(ctx)
			if confirmErr == nil && ok {
				return nil
			}
			if confirmErr != nil {
				lastErr = confirmErr
			} else {
				lastErr = fmt.Errorf("broker nacked publish of %s", routingKey)
			}
		} else {
			lastErr = err
		}

		log.Printf("[publish] attempt %d/%d for %s failed: %v", attempt+1, maxAttempts, routingKey, lastErr)

		if attempt == maxAttempts-1 {
			break
		}

		if ch, reopenErr := amqpconn.OpenChannel(p.conn); reopenErr == nil {
			p.ch = ch
		} else {
			log.Printf("[publish] failed to reopen channel, retrying on existing one: %v", reopenErr)
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}

	return lastErr
}
