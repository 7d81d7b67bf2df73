package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type cli struct {
	out        io.Writer
	configPath string
	cfg        Config
	logger     *zap.Logger
}

func newRootCommand(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	cmd := &cobra.Command{
		Use:           "newscache",
		Short:         "Cache consistency tooling for the news archive",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(viper.New(), c.configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			c.cfg, c.logger = cfg, logger
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}
	cmd.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "path to a yaml config file")
	cmd.AddCommand(
		newServeCmd(c),
		newLookupCmd(c),
		newInvalidateCmd(c),
		newPreheatCmd(c),
		newFlushCmd(c),
		newBloomCmd(c),
	)
	return cmd
}

// open wires the components for a subcommand. Callers must Close the app.
func (c *cli) open(ctx context.Context, withFilter bool) (*app, error) {
	return newApp(ctx, c.cfg, c.logger, withFilter)
}

func (c *cli) print(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
