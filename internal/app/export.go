package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"fare-alerts/internal/model"
	"fare-alerts/internal/storage"
)

// Export renders one monitor's fare history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}
	if opts.MonitorID == "" {
		return errors.New("--id is required")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	m, err := store.GetMonitor(ctx, opts.MonitorID)
	if err != nil {
		return err
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}
	from := m.CreatedAt.UTC()
	if opts.From != nil {
		from = opts.From.UTC()
	}
	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	samples, err := store.ListFareSamples(ctx, m.ID, from, to)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		a.Logger.Info().Msg("no fare samples found for export window")
		return nil
	}

	downsampled := downsampleSamples(samples, opts.MaxPoints)
	a.Logger.Info().Int("total", len(samples)).Int("exported", len(downsampled)).Msg("exporting fare samples")

	if opts.CSVPath != "" {
		if err := writeSamplesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeSamplesPNG(opts.PNGPath, m, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleSamples(samples []storage.FareSample, max int) []storage.FareSample {
	if max <= 0 || len(samples) <= max {
		return samples
	}

	result := make([]storage.FareSample, 0, max)
	step := float64(len(samples)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(samples) {
			idx = len(samples) - 1
		}
		result = append(result, samples[idx])
	}
	return result
}

func writeSamplesCSV(path string, samples []storage.FareSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"observed_at", "cabin", "channel", "points", "cash_amount", "total_taxes", "currency", "outbound_date", "return_date", "direct"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, sample := range samples {
		points := ""
		if sample.Points != nil {
			points = fmt.Sprintf("%d", *sample.Points)
		}
		cash := ""
		if sample.CashAmount != nil {
			cash = sample.CashAmount.String()
		}
		record := []string{
			sample.ObservedAt.UTC().Format(time.RFC3339),
			string(sample.Cabin),
			string(sample.Channel),
			points,
			cash,
			sample.TotalTaxes.String(),
			sample.Currency,
			sample.OutboundDate,
			sample.ReturnDate,
			fmt.Sprintf("%t", sample.Direct),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeSamplesPNG(path string, m model.Monitor, samples []storage.FareSample) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	byCabin := make(map[model.Cabin][]storage.FareSample)
	for _, sample := range samples {
		byCabin[sample.Cabin] = append(byCabin[sample.Cabin], sample)
	}

	cabins := make([]model.Cabin, 0, len(byCabin))
	for cabin := range byCabin {
		cabins = append(cabins, cabin)
	}
	sort.Slice(cabins, func(i, j int) bool { return cabins[i] < cabins[j] })

	yAxisName := "Combined cost (pts)"
	if m.Channel == model.ChannelCash {
		yAxisName = fmt.Sprintf("Fare (%s)", model.ReferenceCurrency)
	}

	series := make([]chart.Series, 0, len(cabins))
	for _, cabin := range cabins {
		rows := byCabin[cabin]
		x := make([]time.Time, len(rows))
		y := make([]float64, len(rows))
		for i, row := range rows {
			x[i] = row.ObservedAt
			switch {
			case row.Points != nil:
				y[i] = float64(*row.Points)
			case row.CashAmount != nil:
				y[i] = row.CashAmount.InexactFloat64()
			}
		}
		series = append(series, chart.TimeSeries{
			Name:    string(cabin),
			XValues: x,
			YValues: y,
		})
	}

	graph := chart.Chart{
		Title:  m.Label,
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: yAxisName,
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
