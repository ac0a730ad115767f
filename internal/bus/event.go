package bus

import "time"

// Event represents a domain event published on the pipeline's internal bus.
// Kind follows the dotted namespace convention used throughout the pipeline
// ("messages.upsert", "message-receipt.update", ...) so subscribers can
// filter by prefix.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
