package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/example/vexokart/internal/app"
	"github.com/example/vexokart/internal/config"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var Version = "dev"

// cli carries what every subcommand shares. The app is opened on first
// use so commands like token issue never touch the stores.
type cli struct {
	cfg    *config.Config
	logger *slog.Logger
	format string

	app *app.App
}

func main() {
	cfg, err := config.Load(config.ModeCLI)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	// A one-shot process has nobody to drain an in-process bus.
	if cfg.Bus == config.BusLocal {
		cfg.Bus = config.BusNone
	}

	c := &cli{cfg: cfg, logger: app.NewLogger(cfg, os.Stderr)}
	err = newRootCmd(c).Execute()
	c.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(c *cli) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "vexoctl",
		Short:         "vexoctl - VexoKart order operations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&c.format, "output", "o", "json", "Output format (json, yaml)")

	rootCmd.AddCommand(ordersCmd(c))
	rootCmd.AddCommand(labelCmd(c))
	rootCmd.AddCommand(notificationsCmd(c))
	rootCmd.AddCommand(tokenCmd(c))
	return rootCmd
}

func (c *cli) application(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	a, err := app.New(ctx, c.cfg, c.logger, app.Options{})
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close() {
	if c.app == nil {
		return
	}
	if err := c.app.Close(); err != nil {
		c.logger.Warn("close failed", slog.String("error", err.Error()))
	}
}

// print renders v with its JSON field names in either format.
func (c *cli) print(w io.Writer, v any) error {
	switch c.format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q", c.format)
	}
}
