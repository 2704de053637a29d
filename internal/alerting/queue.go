package alerting

import (
	"sync"

	"github.com/rs/zerolog"

	"fare-alerts/internal/docfile"
	"fare-alerts/internal/model"
)

// Queue is the append-only alert document. The engine only ever appends;
// individual entries are never trimmed, the consumer clears the whole
// collection once delivered.
type Queue struct {
	path   string
	logger zerolog.Logger
	mu     sync.Mutex
}

// NewQueue builds a queue over the alert document path.
func NewQueue(path string, logger zerolog.Logger) *Queue {
	return &Queue{
		path:   path,
		logger: logger.With().Str("component", "alert_queue").Logger(),
	}
}

// Append adds one batch to the stored collection.
func (q *Queue) Append(batch model.AlertBatch) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	batches := docfile.Load[model.AlertBatch](q.path)
	batches = append(batches, batch)
	if err := docfile.Save(q.path, batches); err != nil {
		return err
	}

	q.logger.Info().
		Str("monitor_id", batch.MonitorID).
		Int("messages", len(batch.Messages)).
		Msg("alert batch queued")
	return nil
}

// List returns the full stored collection without consuming it.
func (q *Queue) List() []model.AlertBatch {
	q.mu.Lock()
	defer q.mu.Unlock()
	return docfile.Load[model.AlertBatch](q.path)
}

// Clear resets the document to an empty collection, to be called by the
// notifier once a delivery pass completes.
func (q *Queue) Clear() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return docfile.Save(q.path, []model.AlertBatch{})
}
