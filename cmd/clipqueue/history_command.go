package main

import (
	"clip-queue/domain"
	"clip-queue/repositories"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var cursor string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List clipboard items received from the queue, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := badger.DefaultOptions(ctx.config.BadgerFilepath).
				WithReadOnly(true).
				WithBypassLockGuard(true).
				WithLoggingLevel(badger.WARNING)
			db, err := badger.Open(opts)
			if err != nil {
				return fmt.Errorf("database opening failed: %w", err)
			}
			defer db.Close()

			repository := repositories.NewHistoryRepository(db, ctx.log, lo.ToPtr(limit))
			items, next, err := repository.GetHistory(lo.EmptyableToPtr(cursor))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			renderItems(out, lo.Map(items, func(d repositories.DiskItem, _ int) domain.ClipboardItem { return d.ToClipboardItem() }))
			if next != nil && len(items) == limit {
				fmt.Fprintf(out, "\nNext page: clipqueue history --cursor %s\n", *next)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Items per page")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Cursor printed by the previous page")
	return cmd
}
