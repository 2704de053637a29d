package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"fare-alerts/internal/model"
)

// Show prints monitor status, or the queued alert batches with --alerts.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	if opts.Alerts {
		return a.showAlerts()
	}

	monitors, err := a.ListMonitors(ctx)
	if err != nil {
		return err
	}
	if len(monitors) == 0 {
		fmt.Fprintln(os.Stdout, "no monitors configured")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tLabel\tChannel\tRoute\tCabin\tLowest\tWhen\tChecked (UTC)")

	for _, m := range monitors {
		route := fmt.Sprintf("%s-%s", m.Outbound.Origin, m.Outbound.Destination)
		checked := "never"
		if m.CheckedAt != nil {
			checked = m.CheckedAt.UTC().Format(time.RFC3339)
		}
		if m.Channel == model.ChannelCash && m.Tracking.CashPending {
			checked += " (pending)"
		}

		rows := 0
		for _, cabin := range m.Cabins {
			lowest, when := lowestForCabin(m, cabin)
			if lowest == "" {
				continue
			}
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				shortID(m.ID), m.Label, m.Channel, route, cabin, lowest, when, checked)
			rows++
		}
		if rows == 0 {
			fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t-\t-\t-\t%s\n",
				shortID(m.ID), m.Label, m.Channel, route, checked)
		}
	}

	writer.Flush()
	return nil
}

func lowestForCabin(m model.Monitor, cabin model.Cabin) (string, string) {
	if m.Channel == model.ChannelCash {
		fare, ok := m.Tracking.CashLowest[cabin]
		if !ok {
			return "", ""
		}
		return model.FormatCash(fare.Amount), fare.OutboundDate + "/" + fare.ReturnDate
	}
	fare, ok := m.Tracking.Lowest[cabin]
	if !ok {
		return "", ""
	}
	return model.FormatPoints(fare.Points) + " pts", fare.OutboundDate + "/" + fare.ReturnDate
}

func (a *App) showAlerts() error {
	batches := a.newQueue().List()
	if len(batches) == 0 {
		fmt.Fprintln(os.Stdout, "no queued alerts")
		return nil
	}

	for _, batch := range batches {
		fmt.Fprintf(os.Stdout, "%s  %s (%s)\n",
			batch.CreatedAt.UTC().Format(time.RFC3339), batch.MonitorLabel, shortID(batch.MonitorID))
		for _, msg := range batch.Messages {
			fmt.Fprintf(os.Stdout, "  - %s\n", sanitizeInline(msg))
		}
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
