package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coolbeans/inelegis/pkg/config"
	"github.com/coolbeans/inelegis/pkg/extract"
	"github.com/coolbeans/inelegis/pkg/resolve"
	"github.com/coolbeans/inelegis/pkg/server"
	"github.com/coolbeans/inelegis/pkg/session"
	"github.com/coolbeans/inelegis/pkg/table"
	"github.com/coolbeans/inelegis/pkg/validate"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "inelegis",
		Short: "Consult the ineligibility table of Brazilian electoral law",
		Long: `Inelegis reads the published table of offenses that make a candidate
ineligible and answers, for a law and an article, whether a conviction
under that article leads to ineligibility or falls under one of the
table's exceptions.

Tables are read from CSV, JSON, YAML or SQLite sources:
  inelegis consulta CP 121 --source tabela.csv
  inelegis serve --source 'tabelas/**/*.csv' --watch`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Config file (default: ./inelegis.yaml, then ~/.inelegis/inelegis.yaml)")
	flags.StringSliceP("source", "s", nil, "Table file or doublestar glob (repeatable)")
	flags.String("format", "", "Table format: csv, json, yaml, sqlite (default: from extension)")
	flags.String("sqlite-query", "", "Query for SQLite sources (default: SELECT from table 'tabela')")
	flags.String("log-level", "", "Log level: debug, info, warn, error")
	flags.String("log-format", "", "Log format: text, json")

	rootCmd.AddCommand(lawsCmd())
	rootCmd.AddCommand(recordsCmd())
	rootCmd.AddCommand(suggestionsCmd())
	rootCmd.AddCommand(consultCmd())
	rootCmd.AddCommand(articlesCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// loadConfig resolves the configuration for cmd and installs its logger as
// the default.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger := cfg.Log.NewLogger(cmd.ErrOrStderr())
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func newHolder(cmd *cobra.Command) (*session.Holder, *config.Config, *slog.Logger, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(cfg.Sources) == 0 {
		return nil, nil, nil, errors.New("no table sources: use --source or set sources in the config file")
	}
	loader := table.NewLoader(cfg.TableOptions(), logger)
	return session.NewHolder(loader, cfg.Sources, logger), cfg, logger, nil
}

func loadSession(cmd *cobra.Command) (*session.Session, error) {
	holder, _, _, err := newHolder(cmd)
	if err != nil {
		return nil, err
	}
	return holder.Reload(cmd.Context())
}

func outputFlag(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "table", "Output format (table, json)")
}

func wantJSON(cmd *cobra.Command) (bool, error) {
	output, _ := cmd.Flags().GetString("output")
	switch output {
	case "table", "":
		return false, nil
	case "json":
		return true, nil
	default:
		return false, fmt.Errorf("unknown output format %q (want table or json)", output)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func lawsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leis",
		Short: "List the laws present in the table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := wantJSON(cmd)
			if err != nil {
				return err
			}
			sess, err := loadSession(cmd)
			if err != nil {
				return err
			}

			laws := sess.Index.Laws()
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, laws)
			}

			fmt.Fprintf(out, "%-16s %s\n", "CODIGO", "LEI")
			fmt.Fprintln(out, strings.Repeat("-", 72))
			for _, law := range laws {
				fmt.Fprintf(out, "%-16s %s\n", law.Codigo, truncateString(law.Label, 55))
			}
			fmt.Fprintf(out, "\n%d lei(s)\n", len(laws))
			return nil
		},
	}
	outputFlag(cmd)
	return cmd
}

func recordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registros <codigo>",
		Short: "List the table records of a law",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := wantJSON(cmd)
			if err != nil {
				return err
			}
			sess, err := loadSession(cmd)
			if err != nil {
				return err
			}

			records := sess.Index.RecordsForLaw(args[0])
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, records)
			}
			if len(records) == 0 {
				fmt.Fprintf(out, "No records for law %s. Run 'inelegis leis' to list law codes.\n", args[0])
				return nil
			}

			fmt.Fprintf(out, "%-24s %-24s %s\n", "ARTIGOS", "EXCECOES", "CRIME")
			fmt.Fprintln(out, strings.Repeat("-", 90))
			for _, rec := range records {
				fmt.Fprintf(out, "%-24s %-24s %s\n",
					truncateString(strings.Join(rec.Artigos, ", "), 24),
					truncateString(strings.Join(rec.Excecoes, "; "), 24),
					truncateString(rec.Crime, 40),
				)
			}
			fmt.Fprintf(out, "\n%d record(s)\n", len(records))
			return nil
		},
	}
	outputFlag(cmd)
	return cmd
}

func suggestionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sugestoes <codigo> <prefixo>",
		Short: "Suggest articles of a law starting with a prefix",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := wantJSON(cmd)
			if err != nil {
				return err
			}
			sess, err := loadSession(cmd)
			if err != nil {
				return err
			}

			suggestions := sess.Index.Suggestions(args[0], args[1])
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, suggestions)
			}
			for _, s := range suggestions {
				fmt.Fprintln(out, s)
			}
			return nil
		},
	}
	outputFlag(cmd)
	return cmd
}

func consultCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "consulta <codigo> <artigo>",
		Short: "Check whether an article of a law leads to ineligibility",
		Long: `Check whether a conviction under an article of a law leads to
ineligibility, applying the exceptions listed in the table.

Example:
  inelegis consulta CP 121 --source tabela.csv
  inelegis consulta LEI_9.504 "Art. 299" -o json`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := wantJSON(cmd)
			if err != nil {
				return err
			}
			sess, err := loadSession(cmd)
			if err != nil {
				return err
			}

			res := sess.Resolver.Resolve(args[0], args[1])
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, res)
			}
			printResolution(out, res)
			if res.Status == resolve.StatusInvalidQuery {
				return fmt.Errorf("invalid article reference %q", args[1])
			}
			return nil
		},
	}
	outputFlag(cmd)
	return cmd
}

func printResolution(w io.Writer, res resolve.Resolution) {
	switch {
	case res.Status == resolve.StatusInvalidQuery:
		fmt.Fprintln(w, "Invalid query: the article reference has no number.")
		return
	case !res.Found():
		fmt.Fprintf(w, "%s, Art. %s: no matching rule (eligible)\n", res.Codigo, res.Artigo)
		return
	}

	verdict := res.Verdict
	if verdict.Inelegivel {
		fmt.Fprintf(w, "%s, Art. %s: INELEGIVEL\n", res.Codigo, res.Artigo)
	} else {
		fmt.Fprintf(w, "%s, Art. %s: ELEGIVEL (exception: %s)\n", res.Codigo, res.Artigo, verdict.Motivo)
	}
	fmt.Fprintf(w, "  Norma:  %s\n", verdict.Record.Norma)
	if verdict.Record.Crime != "" {
		fmt.Fprintf(w, "  Crime:  %s\n", verdict.Record.Crime)
	}
	if res.Status == resolve.StatusFallback {
		fmt.Fprintln(w, "  Matched by re-reading the norma text.")
	}
}

func articlesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artigos <texto>",
		Short: "Extract article numbers from a citation",
		Long: `Extract the article numbers cited in a legal reference.

Example:
  inelegis artigos "Arts. 121, 121-A e 122, § 1º"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := wantJSON(cmd)
			if err != nil {
				return err
			}
			artigos := extract.ExtractArticles(strings.Join(args, " "))
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, artigos)
			}
			for _, a := range artigos {
				fmt.Fprintln(out, a)
			}
			return nil
		},
	}
	outputFlag(cmd)
	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verificar",
		Short: "Run quality gates against the loaded table",
		Long: `Run quality gates against the loaded table.

Gates:
  V0  rows yield records (has_records, row_yield)
  V1  normas name a known law and cite articles (law_recognition, article_coverage)
  V2  exceptions name articles of their record (exception_targets)
  V3  every cited article resolves to its record (article_reachability)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := wantJSON(cmd)
			if err != nil {
				return err
			}
			strict, _ := cmd.Flags().GetBool("strict")
			failOnWarn, _ := cmd.Flags().GetBool("fail-on-warn")
			skipGates, _ := cmd.Flags().GetStringSlice("skip-gates")

			sess, err := loadSession(cmd)
			if err != nil {
				return err
			}

			gateConfig := validate.DefaultValidationConfig()
			gateConfig.StrictMode = strict
			gateConfig.FailOnWarn = failOnWarn
			gateConfig.SkipGates = skipGates

			pipeline := validate.NewGatePipeline(gateConfig)
			pipeline.RegisterDefaultGates()
			report := pipeline.Run(sess)

			out := cmd.OutOrStdout()
			stats := sess.Stats()
			if asJSON {
				result := struct {
					Stats  session.Stats        `json:"stats"`
					Issues []table.Issue        `json:"issues"`
					Report *validate.GateReport `json:"report"`
				}{Stats: stats, Issues: sess.Issues, Report: report}
				if err := writeJSON(out, result); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(out, "Sources: %d\n", stats.Sources)
				fmt.Fprintf(out, "Records: %d\n", stats.Records)
				fmt.Fprintf(out, "Laws:    %d\n", stats.Laws)
				fmt.Fprintf(out, "Skipped: %d missing, %d corrupt\n\n",
					stats.Issues[table.IssueMissing], stats.Issues[table.IssueCorrupt])
				fmt.Fprint(out, report.String())
			}

			if !report.OverallPass {
				return fmt.Errorf("table failed validation (%d gate(s) failed)", report.GatesFailed)
			}
			return nil
		},
	}
	outputFlag(cmd)
	cmd.Flags().Bool("strict", false, "Stop at the first failed gate")
	cmd.Flags().Bool("fail-on-warn", false, "Fail when any metric is close to its threshold")
	cmd.Flags().StringSlice("skip-gates", nil, "Gates to skip (e.g. V0,V3)")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the consultation API over HTTP",
		Long: `Serve the consultation API over HTTP.

Endpoints:
  GET  /api/leis
  GET  /api/leis/{codigo}/registros
  GET  /api/leis/{codigo}/sugestoes?prefixo=
  GET  /api/consulta?codigo=&artigo=
  GET  /api/artigos?texto=
  POST /api/recarregar
  GET  /healthz
  GET  /metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			holder, cfg, logger, err := newHolder(cmd)
			if err != nil {
				return err
			}
			if _, err := holder.Reload(cmd.Context()); err != nil {
				return err
			}

			srv, err := server.New(holder, server.Options{
				SuggestionCacheSize: cfg.Cache.SuggestionSize,
				VerdictTTL:          cfg.Cache.VerdictTTL,
				ReadTimeout:         cfg.Server.ReadTimeout,
				WriteTimeout:        cfg.Server.WriteTimeout,
				ShutdownTimeout:     cfg.Server.ShutdownTimeout,
			}, logger)
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return srv.Run(ctx, cfg.Server.Addr)
			})
			if cfg.Watch.Enabled {
				watcher := session.NewWatcher(holder, cfg.Watch.Debounce, logger)
				g.Go(func() error {
					return watcher.Run(ctx)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().String("addr", "", "Listen address (default: :8080)")
	cmd.Flags().Bool("watch", false, "Reload the table when source files change")
	cmd.Flags().Duration("debounce", 0, "Wait this long after a change before reloading (default: 500ms)")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect inelegis configuration",
		Long: `Inspect inelegis configuration.

Configuration hierarchy (highest to lowest priority):
  1. CLI flags
  2. Environment variables (INELEGIS_*, also read from .env)
  3. Config file (./inelegis.yaml or ~/.inelegis/inelegis.yaml)
  4. Defaults`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.File != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", cfg.File)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n\n")
			}
			data, err := cfg.YAML()
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "inelegis v%s\n", version)
		},
	}
}

func truncateString(inputStr string, maxLength int) string {
	runes := []rune(inputStr)
	if len(runes) <= maxLength {
		return inputStr
	}
	return string(runes[:maxLength-3]) + "..."
}
