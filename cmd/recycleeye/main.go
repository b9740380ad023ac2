// Package main is the recycleeye command: a dashboard server, a terminal
// scanner, a batch classifier and a Telegram bot over one classifier stack.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/teslashibe/recycleeye/internal/config"
	"github.com/teslashibe/recycleeye/internal/log"
)

var (
	cfgFile string
	version = "dev"
	rootCmd = &cobra.Command{
		Use:   "recycleeye",
		Short: "Point a camera at waste and get its recycling category",
		Long: `recycleeye classifies photos of household waste through an image-classification
endpoint. It can scan a live camera feed, analyse single photos, serve a web
dashboard phones stream frames to, or answer photos sent to a Telegram bot.`,
		PersistentPreRunE: initConfig,
		SilenceUsage:      true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.config/recycleeye/recycleeye.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("endpoint", "", "inference endpoint URL")
	rootCmd.PersistentFlags().String("encoding", "", "request encoding (base64, multipart)")

	_ = viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("endpoint.url", rootCmd.PersistentFlags().Lookup("endpoint"))
	_ = viper.BindPFlag("endpoint.encoding", rootCmd.PersistentFlags().Lookup("encoding"))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(classifyCmd())
	rootCmd.AddCommand(botCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("received interrupt signal, shutting down")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	if err := config.Setup(viper.GetViper(), cfgFile); err != nil {
		return err
	}
	if err := log.Init(viper.GetString("logging.level"), viper.GetString("logging.format")); err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	if f := viper.ConfigFileUsed(); f != "" {
		log.Debug("config loaded", "file", f)
	}
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "version",
		Short:             "Print the version",
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "recycleeye %s\n", version)
		},
	}
}
