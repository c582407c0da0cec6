package cataloger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/avaldria/reportwatch/internal/pipeline"
	"github.com/avaldria/reportwatch/pkg/kafka"
)

// HandleEvent adapts the Cataloger to the Kafka consumer. Each message
// carries one ChangeEvent; after a successful insert the optional notify
// callback fires so the extractor can be triggered. Undecodable or malformed
// payloads are logged and committed, not retried forever. A store failure is
// returned so the offset stays uncommitted and Kafka redelivers the event.
func HandleEvent(c *Cataloger, notify func(ctx context.Context, inserted int)) kafka.MessageHandler {
	logger := slog.Default().With("component", "cataloger-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[pipeline.ChangeEvent](value)
		if err != nil {
			logger.Error("dropping undecodable change event", "key", string(key), "error", err)
			return nil
		}
		summary := c.Ingest(ctx, []pipeline.ChangeEvent{event})
		for _, d := range summary.Errors {
			if d.Kind == pipeline.DiagStoreFailed {
				return fmt.Errorf("cataloging %s: %s", d.Path, d.Detail)
			}
		}
		if summary.Processed > 0 && notify != nil {
			notify(ctx, summary.Processed)
		}
		return nil
	}
}
