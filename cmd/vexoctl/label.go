package main

import (
	"errors"

	"github.com/spf13/cobra"
)

func labelCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Shipping labels",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "mint [order-id]",
		Short: "Mint a fresh scan token and print the label",
		Long: `Mint a new courier scan token for the order. Any label printed
earlier stops working.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			l, err := a.Console.MintLabel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), l)
		},
	})
	return cmd
}

func notificationsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Notification delivery log",
	}

	var limit int
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show the most recent delivery attempts",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.New("--limit must be positive")
			}
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			logs, err := a.Stores.Logs.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), logs)
		},
	}
	tail.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries")
	cmd.AddCommand(tail)
	return cmd
}
