// Package handshake implements the asynchronous, file-mediated exchange with
// the external cash-price checker. The engine writes fare-check requests into
// a shared request document and later consumes matching entries from a shared
// result document; the actual fare lookup happens outside this process.
package handshake

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fare-alerts/internal/docfile"
	"fare-alerts/internal/model"
)

// Request is one outstanding fare-check handed to the external checker,
// keyed uniquely by monitor id. RequestID is a monotonic stamp so a result
// produced for a superseded request is never misapplied.
type Request struct {
	MonitorID   string    `json:"monitorId"`
	RequestID   int64     `json:"requestId"`
	Label       string    `json:"label"`
	Outbound    model.Leg `json:"outbound"`
	Return      model.Leg `json:"return"`
	Cabins      []string  `json:"cabins"`
	RequestedAt time.Time `json:"requestedAt"`
}

// ResultPrice is the checker's per-cabin answer, quoted in the reference
// currency.
type ResultPrice struct {
	AUD          decimal.Decimal `json:"aud"`
	OutboundDate string          `json:"outboundDate"`
	ReturnDate   string          `json:"returnDate"`
	IsDirect     bool            `json:"isDirect"`
	SeenAt       time.Time       `json:"seenAt,omitzero"`
}

// Result is one completed fare-check. RequestID may be zero when the checker
// does not echo it.
type Result struct {
	MonitorID string                 `json:"monitorId"`
	RequestID int64                  `json:"requestId,omitempty"`
	CheckedAt time.Time              `json:"checkedAt,omitzero"`
	Prices    map[string]ResultPrice `json:"prices"`
}

// Options locate the shared documents.
type Options struct {
	RequestPath string
	ResultPath  string
}

// Coordinator manages the request/response handshake documents.
type Coordinator struct {
	opts   Options
	logger zerolog.Logger
	mu     sync.Mutex
}

// New constructs a coordinator over the configured document paths.
func New(opts Options, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		opts:   opts,
		logger: logger.With().Str("component", "cash_handshake").Logger(),
	}
}

// EnqueueRequest writes (or replaces, keyed by monitor id) a fare-check
// request for the monitor and returns its request id. Callers mark the
// monitor pending with the returned id.
func (c *Coordinator) EnqueueRequest(m model.Monitor, now time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cabins := make([]string, 0, len(m.Cabins))
	for _, cabin := range m.Cabins {
		cabins = append(cabins, string(cabin))
	}

	req := Request{
		MonitorID:   m.ID,
		RequestID:   now.UnixNano(),
		Label:       m.Label,
		Outbound:    m.Outbound,
		Return:      m.Return,
		Cabins:      cabins,
		RequestedAt: now,
	}

	requests := docfile.Load[Request](c.opts.RequestPath)
	replaced := false
	for i := range requests {
		if requests[i].MonitorID == m.ID {
			requests[i] = req
			replaced = true
			break
		}
	}
	if !replaced {
		requests = append(requests, req)
	}

	if err := docfile.Save(c.opts.RequestPath, requests); err != nil {
		return 0, err
	}

	c.logger.Info().
		Str("monitor_id", m.ID).
		Int64("request_id", req.RequestID).
		Msg("cash fare-check request queued")
	return req.RequestID, nil
}

// RemoveRequest drops any outstanding request for the monitor, used when a
// monitor is deleted or its tracking scope changes.
func (c *Coordinator) RemoveRequest(monitorID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	requests := docfile.Load[Request](c.opts.RequestPath)
	kept := requests[:0]
	for _, req := range requests {
		if req.MonitorID != monitorID {
			kept = append(kept, req)
		}
	}
	if len(kept) == len(requests) {
		return nil
	}
	return docfile.Save(c.opts.RequestPath, kept)
}

// ConsumeResults reads every entry from the result document and resets it to
// an empty collection. Results are consumed exactly once per poll; a crash
// between read and clear can double-apply, which is accepted.
func (c *Coordinator) ConsumeResults() ([]Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	results := docfile.Load[Result](c.opts.ResultPath)
	if len(results) == 0 {
		return nil, nil
	}
	if err := docfile.Save(c.opts.ResultPath, []Result{}); err != nil {
		return nil, err
	}
	return results, nil
}
