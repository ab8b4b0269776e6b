// Package consume implements the per-queue delivery loop shared by the
// block and inscription consumers: deserialize, process, ack, with
// delivery-count-aware redelivery of processing failures.
package consume

import (
	"context"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/looksrare/ord-indexer/internal/events"
)

// MaxDelivery is the number of times a message may be redelivered before it
// is dropped (rejected without requeue).
const MaxDelivery = 3

const deliveryCountHeader = "x-delivery-count"

// Handler processes a single decoded event. A non-nil error marks the
// delivery for bounded redelivery.
type Handler func(ctx context.Context, e events.Event) error

// Loop consumes from queueName on ch using consumerTag, invoking handle for
// every delivery until ctx is canceled. On cancellation the current
// delivery, if any, is abandoned in place (neither acked nor rejected) so
// the broker redelivers it after restart.
func Loop(ctx context.Context, ch *amqp.Channel, queueName, consumerTag string, handle Handler) error {
	deliveries, err := ch.ConsumeWithContext(ctx, queueName, consumerTag, false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: register consumer for %s: %w", queueName, err)
	}

	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := handleDelivery(ctx, ch, d, handle); err != nil {
				return fmt.Errorf("consume: %s: %w", queueName, err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func handleDelivery(ctx context.Context, ch *amqp.Channel, d amqp.Delivery, handle Handler) error {
	e, err := events.Deserialize(d.Body)
	if err != nil {
		log.Printf("[consume] poison message, rejecting: %v", err)
		return d.Reject(false)
	}

	if err := handle(ctx, e); err != nil {
		if ctx.Err() != nil {
			// Shutting down: abandon the delivery in place so the broker
			// redelivers it after restart.
			log.Printf("[consume] shutdown during %s, leaving delivery unacked", e.Kind)
			return nil
		}
		log.Printf("[consume] handler error for %s: %v", e.Kind, err)
		return republishOrDrop(ctx, ch, d)
	}

	return d.Ack(false)
}

func republishOrDrop(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) error {
	count := deliveryCount(d)
	if count >= MaxDelivery {
		log.Printf("[consume] delivery count %d reached max %d, dropping", count, MaxDelivery)
		return d.Reject(false)
	}

	headers := amqp.Table{}
	for k, v := range d.Headers {
		headers[k] = v
	}
	headers[deliveryCountHeader] = count + 1

	err := ch.PublishWithContext(ctx, d.Exchange, d.RoutingKey, false, false, amqp.Publishing{
		ContentType: d.ContentType,
		Body:        d.Body,
		Headers:     headers,
	})
	if err != nil {
		return fmt.Errorf("republish with bumped delivery count: %w", err)
	}
	return d.Reject(false)
}

func deliveryCount(d amqp.Delivery) int32 {
	if d.Headers == nil {
		return 0
	}
	v, ok := d.Headers[deliveryCountHeader]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int32:
		return n
	case int64:
		return int32(n)
	case int16:
		return int32(n)
	case int:
		return int32(n)
	default:
		return 0
	}
}
