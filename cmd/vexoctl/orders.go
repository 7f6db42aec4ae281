package main

import (
	"github.com/example/vexokart/internal/domain/order"
	"github.com/spf13/cobra"
)

func ordersCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and move orders",
	}
	cmd.AddCommand(ordersGetCmd(c))
	cmd.AddCommand(ordersListCmd(c))
	cmd.AddCommand(ordersSetStatusCmd(c))
	return cmd
}

func ordersGetCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "get [order-id]",
		Short: "Show one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			o, err := a.Orders.GetOrder(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), o)
		},
	}
}

func ordersListCmd(c *cli) *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var want order.Status
			if status != "" {
				st, err := order.ParseStatus(status)
				if err != nil {
					return err
				}
				want = st
			}

			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			orders, err := a.Console.Orders(cmd.Context())
			if err != nil {
				return err
			}
			if want != "" {
				filtered := orders[:0]
				for _, o := range orders {
					if o.Status == want {
						filtered = append(filtered, o)
					}
				}
				orders = filtered
			}
			return c.print(cmd.OutOrStdout(), orders)
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only orders in this status")
	return cmd
}

func ordersSetStatusCmd(c *cli) *cobra.Command {
	var details order.Details
	cmd := &cobra.Command{
		Use:   "set-status [order-id] [status]",
		Short: "Move an order to a new status as admin",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := order.ParseStatus(args[1])
			if err != nil {
				return err
			}
			a, err := c.application(cmd.Context())
			if err != nil {
				return err
			}
			o, err := a.Console.AdminSetStatus(cmd.Context(), args[0], status, details)
			if err != nil {
				return err
			}
			return c.print(cmd.OutOrStdout(), o)
		},
	}
	cmd.Flags().StringVar(&details.CourierName, "courier", "", "Courier name (required for Shipped)")
	cmd.Flags().StringVar(&details.TrackingID, "tracking", "", "Tracking id (required for Shipped)")
	return cmd
}
