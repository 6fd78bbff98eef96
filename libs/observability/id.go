package observability

import (
	"fmt"

	"github.com/google/uuid"
)

// NewRunID generates a unique identifier for an ingestion-engine or
// scheduler run.
func NewRunID() string {
	return newID("run")
}

// NewFlowID generates a unique identifier for a single stream-connect →
// parse → batch-write lifecycle, so log lines for one batch can be
// correlated end to end.
func NewFlowID() string {
	return newID("flow")
}

func newID(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
