package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"fare-alerts/internal/model"
)

var (
	// ErrNotFound indicates the requested monitor does not exist.
	ErrNotFound = errors.New("storage: monitor not found")
)

const (
	createMonitorsTableSQL = `CREATE TABLE IF NOT EXISTS monitors (
        id          TEXT PRIMARY KEY,
        label       TEXT NOT NULL,
        channel     TEXT NOT NULL,
        mode        TEXT NOT NULL,
        cabins      TEXT NOT NULL,
        out_leg     TEXT NOT NULL,
        ret_leg     TEXT NOT NULL,
        tracking    TEXT NOT NULL,
        created_at  TIMESTAMP NOT NULL,
        checked_at  TIMESTAMP
    );`

	createFareHistoryTableSQL = `CREATE TABLE IF NOT EXISTS fare_history (
        id            INTEGER PRIMARY KEY AUTOINCREMENT,
        monitor_id    TEXT NOT NULL,
        cabin         TEXT NOT NULL,
        channel       TEXT NOT NULL,
        points        INTEGER,
        cash_amount   TEXT,
        total_taxes   TEXT NOT NULL,
        currency      TEXT NOT NULL,
        outbound_date TEXT NOT NULL,
        return_date   TEXT NOT NULL,
        direct        INTEGER NOT NULL,
        observed_at   TIMESTAMP NOT NULL
    );`

	insertMonitorSQL = `INSERT INTO monitors (
        id, label, channel, mode, cabins, out_leg, ret_leg, tracking, created_at, checked_at
    ) VALUES (?,?,?,?,?,?,?,?,?,?);`

	updateMonitorSQL = `UPDATE monitors
    SET label = ?, channel = ?, mode = ?, cabins = ?, out_leg = ?, ret_leg = ?,
        tracking = ?, checked_at = ?
    WHERE id = ?;`

	updateTrackingSQL = `UPDATE monitors
    SET tracking = ?, checked_at = ?
    WHERE id = ?;`

	selectMonitorSQL = `SELECT
        id, label, channel, mode, cabins, out_leg, ret_leg, tracking, created_at, checked_at
    FROM monitors WHERE id = ?;`

	listMonitorsSQL = `SELECT
        id, label, channel, mode, cabins, out_leg, ret_leg, tracking, created_at, checked_at
    FROM monitors ORDER BY created_at;`

	deleteMonitorSQL = `DELETE FROM monitors WHERE id = ?;`

	deleteFareHistorySQL = `DELETE FROM fare_history WHERE monitor_id = ?;`

	insertFareSampleSQL = `INSERT INTO fare_history (
        monitor_id, cabin, channel, points, cash_amount, total_taxes, currency,
        outbound_date, return_date, direct, observed_at
    ) VALUES (?,?,?,?,?,?,?,?,?,?,?);`

	listFareSamplesSQL = `SELECT
        id, monitor_id, cabin, channel, points, cash_amount, total_taxes, currency,
        outbound_date, return_date, direct, observed_at
    FROM fare_history
    WHERE monitor_id = ?
      AND observed_at >= ?
      AND observed_at < ?
    ORDER BY observed_at;`
)

// MonitorStore defines monitor persistence. UpdateTracking is a per-row
// atomic update: refresh cycles never rewrite the whole collection.
type MonitorStore interface {
	InsertMonitor(ctx context.Context, m model.Monitor) error
	GetMonitor(ctx context.Context, id string) (model.Monitor, error)
	ListMonitors(ctx context.Context) ([]model.Monitor, error)
	UpdateMonitor(ctx context.Context, m model.Monitor) error
	UpdateTracking(ctx context.Context, id string, checkedAt *time.Time, tracking model.TrackingState) error
	DeleteMonitor(ctx context.Context, id string) error
}

// FareHistoryStore defines observation persistence for show/export.
type FareHistoryStore interface {
	InsertFareSample(ctx context.Context, sample FareSample) error
	ListFareSamples(ctx context.Context, monitorID string, from, to time.Time) ([]FareSample, error)
}

// Store aggregates monitor and fare-history access over one SQLite handle.
type Store struct {
	db *sql.DB
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InsertMonitor persists a new monitor.
func (s *Store) InsertMonitor(ctx context.Context, m model.Monitor) error {
	cabins, outLeg, retLeg, tracking, err := encodeMonitor(m)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, insertMonitorSQL,
		m.ID, m.Label, string(m.Channel), string(m.Mode),
		cabins, outLeg, retLeg, tracking, m.CreatedAt, nullableTime(m.CheckedAt),
	)
	if err != nil {
		return fmt.Errorf("insert monitor: %w", err)
	}
	return nil
}

// UpdateMonitor rewrites a monitor's full row.
func (s *Store) UpdateMonitor(ctx context.Context, m model.Monitor) error {
	cabins, outLeg, retLeg, tracking, err := encodeMonitor(m)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, updateMonitorSQL,
		m.Label, string(m.Channel), string(m.Mode), cabins, outLeg, retLeg,
		tracking, nullableTime(m.CheckedAt), m.ID,
	)
	if err != nil {
		return fmt.Errorf("update monitor: %w", err)
	}
	return checkAffected(res)
}

// UpdateTracking atomically replaces one monitor's tracking state and
// checked timestamp.
func (s *Store) UpdateTracking(ctx context.Context, id string, checkedAt *time.Time, tracking model.TrackingState) error {
	encoded, err := json.Marshal(tracking)
	if err != nil {
		return fmt.Errorf("encode tracking state: %w", err)
	}
	res, err := s.db.ExecContext(ctx, updateTrackingSQL, string(encoded), nullableTime(checkedAt), id)
	if err != nil {
		return fmt.Errorf("update tracking: %w", err)
	}
	return checkAffected(res)
}

// GetMonitor fetches one monitor by id.
func (s *Store) GetMonitor(ctx context.Context, id string) (model.Monitor, error) {
	row := s.db.QueryRowContext(ctx, selectMonitorSQL, id)
	m, err := scanMonitor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Monitor{}, ErrNotFound
	}
	if err != nil {
		return model.Monitor{}, fmt.Errorf("get monitor: %w", err)
	}
	return m, nil
}

// ListMonitors lists all monitors in creation order.
func (s *Store) ListMonitors(ctx context.Context) ([]model.Monitor, error) {
	rows, err := s.db.QueryContext(ctx, listMonitorsSQL)
	if err != nil {
		return nil, fmt.Errorf("list monitors: %w", err)
	}
	defer rows.Close()

	monitors := make([]model.Monitor, 0)
	for rows.Next() {
		m, scanErr := scanMonitor(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		monitors = append(monitors, m)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return monitors, nil
}

// DeleteMonitor removes a monitor and its fare history.
func (s *Store) DeleteMonitor(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, deleteMonitorSQL, id)
	if err != nil {
		return fmt.Errorf("delete monitor: %w", err)
	}
	if err := checkAffected(res); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, deleteFareHistorySQL, id); err != nil {
		return fmt.Errorf("delete fare history: %w", err)
	}
	return nil
}

// InsertFareSample appends one observation row.
func (s *Store) InsertFareSample(ctx context.Context, sample FareSample) error {
	var points interface{}
	if sample.Points != nil {
		points = *sample.Points
	}
	var cash interface{}
	if sample.CashAmount != nil {
		cash = sample.CashAmount.String()
	}

	_, err := s.db.ExecContext(ctx, insertFareSampleSQL,
		sample.MonitorID, string(sample.Cabin), string(sample.Channel),
		points, cash, sample.TotalTaxes.String(), sample.Currency,
		sample.OutboundDate, sample.ReturnDate, sample.Direct, sample.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("insert fare sample: %w", err)
	}
	return nil
}

// ListFareSamples lists one monitor's observations within a window.
func (s *Store) ListFareSamples(ctx context.Context, monitorID string, from, to time.Time) ([]FareSample, error) {
	rows, err := s.db.QueryContext(ctx, listFareSamplesSQL, monitorID, from, to)
	if err != nil {
		return nil, fmt.Errorf("list fare samples: %w", err)
	}
	defer rows.Close()

	samples := make([]FareSample, 0)
	for rows.Next() {
		var (
			sample   FareSample
			cabin    string
			channel  string
			points   sql.NullInt64
			cash     sql.NullString
			taxesStr string
		)
		if err := rows.Scan(
			&sample.ID, &sample.MonitorID, &cabin, &channel,
			&points, &cash, &taxesStr, &sample.Currency,
			&sample.OutboundDate, &sample.ReturnDate, &sample.Direct, &sample.ObservedAt,
		); err != nil {
			return nil, err
		}
		sample.Cabin = model.Cabin(cabin)
		sample.Channel = model.Channel(channel)
		if points.Valid {
			v := points.Int64
			sample.Points = &v
		}
		if cash.Valid {
			amount, convErr := decimal.NewFromString(cash.String)
			if convErr != nil {
				return nil, fmt.Errorf("parse cash amount: %w", convErr)
			}
			sample.CashAmount = &amount
		}
		taxes, convErr := decimal.NewFromString(taxesStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse taxes: %w", convErr)
		}
		sample.TotalTaxes = taxes
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

func encodeMonitor(m model.Monitor) (cabins, outLeg, retLeg, tracking string, err error) {
	rawCabins, err := json.Marshal(m.Cabins)
	if err != nil {
		return "", "", "", "", fmt.Errorf("encode cabins: %w", err)
	}
	rawOut, err := json.Marshal(m.Outbound)
	if err != nil {
		return "", "", "", "", fmt.Errorf("encode outbound leg: %w", err)
	}
	rawRet, err := json.Marshal(m.Return)
	if err != nil {
		return "", "", "", "", fmt.Errorf("encode return leg: %w", err)
	}
	rawTracking, err := json.Marshal(m.Tracking)
	if err != nil {
		return "", "", "", "", fmt.Errorf("encode tracking state: %w", err)
	}
	return string(rawCabins), string(rawOut), string(rawRet), string(rawTracking), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMonitor(row rowScanner) (model.Monitor, error) {
	var (
		m         model.Monitor
		channel   string
		mode      string
		cabins    string
		outLeg    string
		retLeg    string
		tracking  string
		checkedAt sql.NullTime
	)
	if err := row.Scan(
		&m.ID, &m.Label, &channel, &mode, &cabins, &outLeg, &retLeg,
		&tracking, &m.CreatedAt, &checkedAt,
	); err != nil {
		return model.Monitor{}, err
	}

	m.Channel = model.Channel(channel)
	m.Mode = model.AvailabilityMode(mode)
	if err := json.Unmarshal([]byte(cabins), &m.Cabins); err != nil {
		return model.Monitor{}, fmt.Errorf("decode cabins: %w", err)
	}
	if err := json.Unmarshal([]byte(outLeg), &m.Outbound); err != nil {
		return model.Monitor{}, fmt.Errorf("decode outbound leg: %w", err)
	}
	if err := json.Unmarshal([]byte(retLeg), &m.Return); err != nil {
		return model.Monitor{}, fmt.Errorf("decode return leg: %w", err)
	}
	if err := json.Unmarshal([]byte(tracking), &m.Tracking); err != nil {
		return model.Monitor{}, fmt.Errorf("decode tracking state: %w", err)
	}
	if checkedAt.Valid {
		t := checkedAt.Time
		m.CheckedAt = &t
	}
	return m, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func checkAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

var _ MonitorStore = (*Store)(nil)
var _ FareHistoryStore = (*Store)(nil)
