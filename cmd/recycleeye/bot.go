package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teslashibe/recycleeye/pkg/telegram"
)

func botCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Long: `Long-poll Telegram and answer every photo with its waste category.
The token is read from telegram.token or RECYCLEEYE_TELEGRAM_TOKEN.`,
		RunE: runBot,
	}

	cmd.Flags().String("token", "", "Telegram bot token")
	_ = viper.BindPFlag("telegram.token", cmd.Flags().Lookup("token"))

	return cmd
}

func runBot(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := setup(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if s.cfg.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}

	orch := s.newApp()
	defer orch.Close()

	bot, err := telegram.NewFromToken(s.cfg.Telegram.Token, orch, s.botOptions()...)
	if err != nil {
		return err
	}
	return bot.Run(ctx)
}
