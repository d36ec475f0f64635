// Command resultsctl runs portal lookups from the command line and prints
// the results as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Sternrassler/portal-results/internal/app"
	"github.com/Sternrassler/portal-results/internal/config"
	"github.com/Sternrassler/portal-results/pkg/identifier"
	"github.com/Sternrassler/portal-results/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd(app.Deps{}).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// cli carries state shared by the subcommands.
type cli struct {
	cfgFile string
	deps    app.Deps
	cfg     *config.Config
}

func newRootCmd(deps app.Deps) *cobra.Command {
	c := &cli{deps: deps}

	root := &cobra.Command{
		Use:   "resultsctl",
		Short: "Look up results on a captcha-gated results portal",
		Long: `resultsctl fetches result pages for one identifier or an identifier
range. Configuration is read from --config and RESULTS_* environment
variables.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.loadConfig,
	}
	root.PersistentFlags().StringVarP(&c.cfgFile, "config", "c", "", "config file (yaml, toml or json)")
	root.PersistentFlags().String("log-level", "", "log level (overrides log.level)")
	root.PersistentFlags().Int("workers", 0, "concurrent lookups for range (overrides dispatch.workers)")

	root.AddCommand(c.singleCmd(), c.rangeCmd(), expandCmd())
	return root
}

func (c *cli) loadConfig(cmd *cobra.Command, _ []string) error {
	v, err := config.NewViper(c.cfgFile)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	bind(v, cmd, "log.level", "log-level")
	bind(v, cmd, "dispatch.workers", "workers")

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	logging.Setup(cfg.LoggingConfig("resultsctl"))
	c.cfg = cfg
	return nil
}

// bind overrides key with flag only when the flag was set.
func bind(v *viper.Viper, cmd *cobra.Command, key, flag string) {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		v.Set(key, f.Value.String())
	}
}

func (c *cli) singleCmd() *cobra.Command {
	var indexURL, usn string
	cmd := &cobra.Command{
		Use:   "single",
		Short: "Fetch the result page for one identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), c.cfg, c.deps)
			if err != nil {
				return err
			}
			defer a.Close()

			out, err := a.Service.Single(cmd.Context(), indexURL, usn)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]string{"usn": out.Identifier, "html": out.Value()})
		},
	}
	cmd.Flags().StringVar(&indexURL, "url", "", "portal index page URL")
	cmd.Flags().StringVar(&usn, "usn", "", "identifier to look up")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("usn")
	return cmd
}

func (c *cli) rangeCmd() *cobra.Command {
	var indexURL, start, end string
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Fetch result pages for an inclusive identifier range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), c.cfg, c.deps)
			if err != nil {
				return err
			}
			defer a.Close()

			results, err := a.Service.Range(cmd.Context(), indexURL, start, end)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), results.Values())
		},
	}
	cmd.Flags().StringVar(&indexURL, "url", "", "portal index page URL")
	cmd.Flags().StringVar(&start, "start", "", "first identifier")
	cmd.Flags().StringVar(&end, "end", "", "last identifier (inclusive)")
	for _, f := range []string{"url", "start", "end"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func expandCmd() *cobra.Command {
	var start, end string
	cmd := &cobra.Command{
		Use:   "expand",
		Short: "Print the identifiers in an inclusive range, one per line",
		Args:  cobra.NoArgs,
		// expand needs no config or logging
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := identifier.ParseRange(strings.TrimSpace(start), strings.TrimSpace(end))
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for id := range r.Seq() {
				if _, err := fmt.Fprintln(w, id); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "first identifier")
	cmd.Flags().StringVar(&end, "end", "", "last identifier (inclusive)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
