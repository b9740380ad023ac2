package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/recycleeye/internal/log"
	"github.com/teslashibe/recycleeye/pkg/telegram"
	"github.com/teslashibe/recycleeye/pkg/web"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web dashboard",
		Long: `Serve the dashboard and REST API. With the remote camera source, phones
connect to /ws/device/<id> and stream JPEG frames that camera and live-scan
modes capture from.

Examples:
  recycleeye serve
  recycleeye serve --port 9000 --telegram`,
		RunE: runServe,
	}

	cmd.Flags().String("port", "", "listen port (default 8080)")
	cmd.Flags().Bool("telegram", false, "also run the Telegram bot")
	_ = viper.BindPFlag("web.port", cmd.Flags().Lookup("port"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := setup(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	orch := s.newApp()
	defer orch.Close()

	opts := []web.Option{web.WithPort(s.cfg.Web.Port), web.WithLogger(s.logger)}
	if s.remote != nil {
		opts = append(opts, web.WithRemoteCamera(s.remote))
	}
	server := web.NewServer(orch, opts...)

	var bot *telegram.Bot
	if withBot, _ := cmd.Flags().GetBool("telegram"); withBot {
		if s.cfg.Telegram.Token == "" {
			return errors.New("telegram.token is required with --telegram")
		}
		bot, err = telegram.NewFromToken(s.cfg.Telegram.Token, orch, s.botOptions()...)
		if err != nil {
			return err
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Start(ctx) })
	if bot != nil {
		g.Go(func() error { return bot.Run(ctx) })
	}

	log.Component("serve").Info("recycleeye serving", "port", s.cfg.Web.Port, "camera", s.cfg.Camera.Source, "classifier", s.classifier.Name())
	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
