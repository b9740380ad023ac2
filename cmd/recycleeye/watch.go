package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/recycleeye/pkg/app"
	"github.com/teslashibe/recycleeye/pkg/web"
)

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a running dashboard's state",
		Long: `Connect to the status stream of a running "recycleeye serve" and print
every state change.

Examples:
  recycleeye watch
  recycleeye watch --url ws://kitchen-pi:8080/ws/status`,
		RunE: runWatch,
	}

	cmd.Flags().String("url", "ws://localhost:8080/ws/status", "status stream URL")

	return cmd
}

func runWatch(cmd *cobra.Command, _ []string) error {
	url, _ := cmd.Flags().GetString("url")
	out := cmd.OutOrStdout()

	return web.Watch(cmd.Context(), url, func(st app.State) {
		fmt.Fprintln(out, formatState(st))
	})
}

func formatState(st app.State) string {
	line := fmt.Sprintf("%s  %-7s", st.UpdatedAt.Local().Format(time.TimeOnly), st.Mode)
	switch {
	case st.Busy:
		line += "  analysing..."
	case st.Label != "":
		line += "  " + st.Label
	}
	if st.Alert != "" {
		line += "  ! " + st.Alert
	}
	return line
}
