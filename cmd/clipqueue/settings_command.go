package main

import (
	"clip-queue/domain"
	"clip-queue/internal"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the saved queue settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, exists, err := internal.LoadSettings(ctx.settingsFile)
			if err != nil {
				return err
			}
			printSettings(cmd, ctx.settingsFile, settings, exists)
			return nil
		},
	}
	cmd.AddCommand(newSettingsSetCommand(ctx))
	return cmd
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	var role, host, password, queue, name string
	var port int
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update the saved queue settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, _, err := internal.LoadSettings(ctx.settingsFile)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("role") {
				settings.Role = domain.Role(strings.ToLower(role))
			}
			if flags.Changed("host") {
				settings.Host = host
			}
			if flags.Changed("port") {
				settings.Port = port
			}
			if flags.Changed("password") {
				settings.Password = password
			}
			if flags.Changed("queue") {
				settings.QueueName = queue
			}
			if flags.Changed("name") {
				settings.MemberName = name
			}
			if err := internal.SaveSettings(ctx.settingsFile, settings); err != nil {
				return err
			}
			printSettings(cmd, ctx.settingsFile, settings, true)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&role, "role", "", "off, hosting or connected")
	flags.StringVar(&host, "host", "", "Host to join")
	flags.IntVarP(&port, "port", "p", internal.DefaultQueuePort, "Queue port")
	flags.StringVar(&password, "password", "", "Queue password")
	flags.StringVar(&queue, "queue", "", "Queue name")
	flags.StringVar(&name, "name", "", "Display name")
	return cmd
}

func printSettings(cmd *cobra.Command, path string, settings internal.Settings, exists bool) {
	out := cmd.OutOrStdout()
	source := path
	if !exists {
		source += " (not saved yet, defaults)"
	}
	fmt.Fprintf(out, "Settings: %s\n", source)
	table := newTable(out, []string{"Key", "Value"})
	table.Append([]string{"role", string(settings.Role)})
	table.Append([]string{"host", settings.Host})
	table.Append([]string{"port", fmt.Sprint(settings.Port)})
	table.Append([]string{"password", strings.Repeat("*", len(settings.Password))})
	table.Append([]string{"queue_name", settings.QueueName})
	table.Append([]string{"member_name", settings.MemberName})
	table.Render()
}
