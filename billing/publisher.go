// Package billing hands rejected listings over to the billing service, which refunds
// any posting fee that was charged for them.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// ListingRejectedEvent is published once per listing rejected by the pipeline.
type ListingRejectedEvent struct {
	ListingId  string `json:"listing_id"`
	Title      string `json:"title"`
	Reason     string `json:"reason"`
	RejectedAt string `json:"rejected_at"`
}

type Publisher interface {
	PublishListingRejected(ctx context.Context, event ListingRejectedEvent) error
}

func NewPublisher(amqpUrl string, queueName string) Publisher {
	if amqpUrl == "" {
		return &NoopPublisher{}
	}
	return &AmqpPublisher{
		url:       amqpUrl,
		queueName: queueName,
	}
}

// AmqpPublisher dials the broker for every event and publishes it as a persistent message to a durable queue.
type AmqpPublisher struct {
	url       string
	queueName string
}

func (ap *AmqpPublisher) PublishListingRejected(ctx context.Context, event ListingRejectedEvent) error {
	conn, err := amqp.Dial(ap.url)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		ap.queueName, // name
		true,         // durable
		false,        // autoDelete
		false,        // exclusive
		false,        // noWait
		nil,          // args
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = ch.PublishWithContext(ctx,
		"",           // default exchange
		ap.queueName, // routing key = queue name
		false,        // mandatory
		false,        // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

type NoopPublisher struct {
}

func (np *NoopPublisher) PublishListingRejected(ctx context.Context, event ListingRejectedEvent) error {
	log.Debug().Str("listing_id", event.ListingId).Msg("billing hand-off disabled, skipping rejection event")
	return nil
}
