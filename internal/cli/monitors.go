package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"fare-alerts/internal/app"
	"fare-alerts/internal/model"
)

var (
	addLabel   string
	addCabins  []string
	addChannel string
	addMode    string
	addOut     string
	addRet     string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a monitored route",
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := parseLeg(addOut)
		if err != nil {
			return fmt.Errorf("invalid --out value: %w", err)
		}
		ret, err := parseLeg(addRet)
		if err != nil {
			return fmt.Errorf("invalid --return value: %w", err)
		}

		input := app.MonitorInput{
			Label:    addLabel,
			Cabins:   addCabins,
			Channel:  addChannel,
			Mode:     addMode,
			Outbound: out,
			Return:   ret,
		}

		m, err := getApp().AddMonitor(cmd.Context(), input)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "created monitor %s (%s)\n", m.ID, m.Label)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List monitored routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		monitors, err := getApp().ListMonitors(cmd.Context())
		if err != nil {
			return err
		}

		if len(monitors) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no monitors configured")
			return nil
		}

		for _, m := range monitors {
			cabins := make([]string, 0, len(m.Cabins))
			for _, cabin := range m.Cabins {
				cabins = append(cabins, string(cabin))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s/%s\t%s -> %s\t[%s]\n",
				m.ID, m.Label, m.Channel, m.Mode, m.Outbound.String(), m.Return.String(), strings.Join(cabins, ","))
		}
		return nil
	},
}

var (
	editID     string
	editLabel  string
	editCabins []string
	editMode   string
	editOut    string
	editRet    string
)

var editCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit a monitored route",
	RunE: func(cmd *cobra.Command, args []string) error {
		if editID == "" {
			return fmt.Errorf("--id is required")
		}

		var edit app.MonitorEdit
		if cmd.Flags().Changed("label") {
			edit.Label = &editLabel
		}
		if cmd.Flags().Changed("cabins") {
			edit.Cabins = editCabins
		}
		if cmd.Flags().Changed("mode") {
			edit.Mode = &editMode
		}
		if cmd.Flags().Changed("out") {
			leg, err := parseLeg(editOut)
			if err != nil {
				return fmt.Errorf("invalid --out value: %w", err)
			}
			edit.Outbound = &leg
		}
		if cmd.Flags().Changed("return") {
			leg, err := parseLeg(editRet)
			if err != nil {
				return fmt.Errorf("invalid --return value: %w", err)
			}
			edit.Return = &leg
		}

		m, reset, err := getApp().EditMonitor(cmd.Context(), editID, edit)
		if err != nil {
			return err
		}

		if reset {
			fmt.Fprintf(cmd.OutOrStdout(), "updated monitor %s (tracking state reset)\n", m.ID)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "updated monitor %s\n", m.ID)
		}
		return nil
	},
}

var removeID string

var removeCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove a monitored route",
	RunE: func(cmd *cobra.Command, args []string) error {
		if removeID == "" {
			return fmt.Errorf("--id is required")
		}
		if err := getApp().DeleteMonitor(cmd.Context(), removeID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed monitor %s\n", removeID)
		return nil
	},
}

var refreshID string

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh one monitor, or all when no id is given",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Refresh(cmd.Context(), refreshID)
	},
}

// parseLeg reads "SYD-BOS:2026-09-01..2026-09-05".
func parseLeg(raw string) (model.Leg, error) {
	route, window, ok := strings.Cut(raw, ":")
	if !ok {
		return model.Leg{}, fmt.Errorf("expected ROUTE:WINDOW, got %q", raw)
	}
	origin, destination, ok := strings.Cut(route, "-")
	if !ok {
		return model.Leg{}, fmt.Errorf("expected ORIGIN-DESTINATION, got %q", route)
	}
	from, to, ok := strings.Cut(window, "..")
	if !ok {
		return model.Leg{}, fmt.Errorf("expected FROM..TO dates, got %q", window)
	}
	return model.Leg{
		Origin:      strings.ToUpper(strings.TrimSpace(origin)),
		Destination: strings.ToUpper(strings.TrimSpace(destination)),
		DateFrom:    strings.TrimSpace(from),
		DateTo:      strings.TrimSpace(to),
	}, nil
}

func init() {
	addCmd.Flags().StringVar(&addLabel, "label", "", "Human-readable monitor label")
	addCmd.Flags().StringSliceVar(&addCabins, "cabins", nil, "Cabins to watch (business, premium, economy, first)")
	addCmd.Flags().StringVar(&addChannel, "channel", "awards", "Fare channel: awards or cash")
	addCmd.Flags().StringVar(&addMode, "mode", "", "Availability mode for awards: rewards or any")
	addCmd.Flags().StringVar(&addOut, "out", "", "Outbound leg as ORIGIN-DEST:FROM..TO")
	addCmd.Flags().StringVar(&addRet, "return", "", "Return leg as ORIGIN-DEST:FROM..TO")

	editCmd.Flags().StringVar(&editID, "id", "", "Monitor id")
	editCmd.Flags().StringVar(&editLabel, "label", "", "Human-readable monitor label")
	editCmd.Flags().StringSliceVar(&editCabins, "cabins", nil, "Cabins to watch")
	editCmd.Flags().StringVar(&editMode, "mode", "", "Availability mode for awards")
	editCmd.Flags().StringVar(&editOut, "out", "", "Outbound leg as ORIGIN-DEST:FROM..TO")
	editCmd.Flags().StringVar(&editRet, "return", "", "Return leg as ORIGIN-DEST:FROM..TO")

	removeCmd.Flags().StringVar(&removeID, "id", "", "Monitor id")

	refreshCmd.Flags().StringVar(&refreshID, "id", "", "Monitor id (all monitors when empty)")
}
