package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goforj/newscache/archive"
	"github.com/goforj/newscache/keyschema"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the preheater and expose /metrics until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.open(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if c.cfg.Preheat.Enabled {
				if err := a.preheater.Start(ctx); err != nil {
					return err
				}
			}

			var srv *http.Server
			errc := make(chan error, 1)
			if addr := c.cfg.Metrics.Addr; addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
				mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
					if err := a.db.Ping(r.Context()); err != nil {
						http.Error(w, err.Error(), http.StatusServiceUnavailable)
						return
					}
					w.WriteHeader(http.StatusNoContent)
				})
				srv = &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errc <- err
					}
				}()
				c.logger.Info("metrics listening", zap.String("addr", addr))
			}

			select {
			case <-ctx.Done():
			case err := <-errc:
				return fmt.Errorf("metrics server: %w", err)
			}
			c.logger.Info("shutting down")
			if srv != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					c.logger.Warn("metrics shutdown failed", zap.Error(err))
				}
			}
			return nil
		},
	}
}

// parseKey decodes a canonical key. keyword moves the value of a four
// segment news key from the category to the keyword dimension.
func parseKey(s string, keyword bool) (keyschema.Key, error) {
	k, err := keyschema.Decode(s)
	if err != nil {
		return nil, err
	}
	if n, ok := k.(keyschema.News); ok && keyword && n.Keyword == "" && n.Category != "" {
		n.Keyword, n.Category = n.Category, ""
		return n, nil
	}
	return k, nil
}

func newLookupCmd(c *cli) *cobra.Command {
	var keyword bool
	cmd := &cobra.Command{
		Use:   "lookup KEY",
		Short: "Read a key through the guarded cache-aside path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := parseKey(args[0], keyword)
			if err != nil {
				return err
			}
			a, err := c.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.reader.Lookup(cmd.Context(), key)
			if err != nil {
				return err
			}
			var value any
			if err := a.reader.Decode(res, &value); err != nil {
				return err
			}
			return c.print(map[string]any{
				"key":      res.Key,
				"found":    res.Found,
				"source":   res.Source.String(),
				"degraded": res.Degraded,
				"value":    value,
			})
		},
	}
	cmd.Flags().BoolVar(&keyword, "keyword", false, "treat news:<year>:<month>:<value> as a keyword lookup")
	return cmd
}

func newInvalidateCmd(c *cli) *cobra.Command {
	var keyword, cacheOnly bool
	cmd := &cobra.Command{
		Use:   "invalidate KEY...",
		Short: "Soft delete the addressed rows and drop their cache entries",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			if cacheOnly {
				report, err := a.invalidator.InvalidateKeys(cmd.Context(), args...)
				if err != nil {
					return err
				}
				return c.print(report)
			}
			scopes := make([]archive.Scope, 0, len(args))
			for _, arg := range args {
				key, err := parseKey(arg, keyword)
				if err != nil {
					return err
				}
				scope, err := archive.ScopeFor(key)
				if err != nil {
					return err
				}
				scopes = append(scopes, scope)
			}
			report, err := a.invalidator.Invalidate(cmd.Context(), scopes...)
			if err != nil {
				return err
			}
			return c.print(report)
		},
	}
	cmd.Flags().BoolVar(&keyword, "keyword", false, "treat news:<year>:<month>:<value> as a keyword scope")
	cmd.Flags().BoolVar(&cacheOnly, "cache-only", false, "delete cache entries without touching the archive")
	return cmd
}

func newPreheatCmd(c *cli) *cobra.Command {
	var topN int
	cmd := &cobra.Command{
		Use:   "preheat",
		Short: "Refresh the cache entries of the hottest keywords once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			if topN <= 0 {
				topN = c.cfg.Preheat.TopN
			}
			report, err := a.preheater.Preheat(cmd.Context(), topN)
			if err != nil {
				return err
			}
			return c.print(report)
		},
	}
	cmd.Flags().IntVar(&topN, "top", 0, "number of ranked keywords to refresh (default preheat.top_n)")
	return cmd
}

func newFlushCmd(c *cli) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "flush",
		Short: "Remove every cache entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("flush removes every cache entry; pass --yes to confirm")
			}
			a, err := c.open(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.cache.Flush(cmd.Context()); err != nil {
				return err
			}
			c.logger.Info("cache flushed", zap.String("driver", string(a.cache.Driver())))
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the flush")
	return cmd
}

func newBloomCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bloom",
		Short: "Inspect the keyword membership filter",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check KEYWORD-MONTH-KEY...",
		Short: "Load the filter from the archive and report membership",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.filter == nil {
				return errors.New("membership filter is disabled")
			}
			out := make(map[string]bool, len(args))
			for _, arg := range args {
				out[arg] = a.filter.Check(arg)
			}
			return c.print(out)
		},
	})
	return cmd
}
