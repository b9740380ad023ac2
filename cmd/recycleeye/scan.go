package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teslashibe/recycleeye/internal/log"
	"github.com/teslashibe/recycleeye/pkg/app"
	"github.com/teslashibe/recycleeye/pkg/tui"
	"github.com/teslashibe/recycleeye/pkg/web"
)

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan interactively in the terminal",
		Long: `Open the terminal scanner. Keys switch between camera, gallery and live-scan
modes. With the remote camera source the device endpoint is served as well,
so a phone can stream frames while you watch results here.

Examples:
  recycleeye scan
  recycleeye scan --live --interval 2s`,
		RunE: runScan,
	}

	cmd.Flags().Bool("live", false, "start in live-scan mode")
	cmd.Flags().Duration("interval", 0, "live-scan interval (default 1.5s)")
	_ = viper.BindPFlag("scan.interval", cmd.Flags().Lookup("interval"))

	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := setup(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	orch := s.newApp()
	defer orch.Close()

	logger := log.Component("scan")

	if s.remote != nil {
		server := web.NewServer(orch,
			web.WithPort(s.cfg.Web.Port),
			web.WithRemoteCamera(s.remote),
			web.WithLogger(s.logger),
		)
		go func() {
			if err := server.Start(ctx); err != nil {
				logger.Error("device endpoint stopped", "error", err)
			}
		}()
		defer server.Shutdown()
	}

	if live, _ := cmd.Flags().GetBool("live"); live {
		if err := orch.SetMode(ctx, app.ModeLive); err != nil {
			logger.Warn("live scan not started", "error", err)
		}
	}

	return tui.Run(ctx, orch)
}
