package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"example.com/chizen/internal/events"
)

// insertOutbox stages an event in the caller's transaction. Re-inserting the same dedupe key is a no-op.
func insertOutbox(ctx context.Context, tx pgx.Tx, env events.Envelope) error {
	meta, err := events.Lookup(env.Type)
	if err != nil {
		return err
	}
	body, err := json.Marshal(env.Payload)
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		meta.AggregateType,
		env.AggregateID,
		env.Type,
		meta.Topic,
		meta.SchemaSubject,
		env.PartitionKey,
		body,
		env.DedupeKey(),
	)
	return err
}
