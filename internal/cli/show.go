package cli

import (
	"github.com/spf13/cobra"

	"fare-alerts/internal/app"
)

var showAlerts bool

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display monitor status and queued alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ShowOptions{
			Alerts: showAlerts,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().BoolVar(&showAlerts, "alerts", false, "Include queued alert batches")
}
