package main

import (
	"clip-queue/internal"
	"log/slog"

	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

type commandContext struct {
	envFile      string
	settingsFile string
	config       internal.Config
	log          *slog.Logger
}

func (c *commandContext) load() error {
	config, err := internal.LoadConfig(c.envFile)
	if err != nil {
		return err
	}
	c.config = config
	if c.settingsFile == "" {
		c.settingsFile = config.SettingsFile
	}
	c.log = logs.GetLoggerFromString(config.LogLevel)
	return nil
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "clipqueue",
		Short:         "Share the clipboard with the machines of your LAN",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&ctx.envFile, "env", ".env", "Optional .env file")
	rootCmd.PersistentFlags().StringVarP(&ctx.settingsFile, "settings", "s", "", "Queue settings file (defaults to SETTINGS_FILE)")

	rootCmd.AddCommand(newHostCommand(ctx))
	rootCmd.AddCommand(newJoinCommand(ctx))
	rootCmd.AddCommand(newRunCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newSettingsCommand(ctx))

	return rootCmd
}
