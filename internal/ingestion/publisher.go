package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"BetBank/internal/bank"
)

// SnapshotPublisher drains the engine's update channel and publishes ledger
// snapshots and round results to NATS for the controller UIs. Publishing is
// best-effort: a failed publish is logged and skipped, the next mutation
// produces a fresher snapshot anyway.
//
// Subjects:
//
//	bank.ledger.snapshot            full ledger view after every mutation
//	bank.ledger.rounds.{round_id}   settlement result of one round
type SnapshotPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan bank.Update
}

func NewSnapshotPublisher(js jetstream.JetStream, inputChan <-chan bank.Update) *SnapshotPublisher {
	return &SnapshotPublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the publisher loop. Returns when ctx is cancelled or the input
// channel closes.
func (sp *SnapshotPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case update, ok := <-sp.inputChan:
			if !ok {
				return nil
			}

			if err := sp.publishSnapshot(ctx, update); err != nil {
				log.Printf("WARN: snapshot publish failed: %v", err)
			}
			if update.Result != nil {
				if err := sp.publishResult(ctx, update); err != nil {
					log.Printf("WARN: round result publish failed round=%d: %v", update.Result.RoundID, err)
				}
			}
		}
	}
}

func (sp *SnapshotPublisher) publishSnapshot(ctx context.Context, update bank.Update) error {
	data, err := json.Marshal(update.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = sp.js.Publish(ctx, "bank.ledger.snapshot", data)
	return err
}

func (sp *SnapshotPublisher) publishResult(ctx context.Context, update bank.Update) error {
	data, err := json.Marshal(update.Result)
	if err != nil {
		return fmt.Errorf("marshal round result: %w", err)
	}
	subject := fmt.Sprintf("bank.ledger.rounds.%d", update.Result.RoundID)
	_, err = sp.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound ledger stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "BANK_LEDGER",
		Subjects:  []string{"bank.ledger.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream BANK_LEDGER")
	return nil
}
