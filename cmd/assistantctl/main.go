package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	api "email-assistant/cmd/api"
	emaildomain "email-assistant/internal/email/domain"
	emailUsecase "email-assistant/internal/email/usecase"
	knowledgedomain "email-assistant/internal/knowledge/domain"
	knowledgeUsecase "email-assistant/internal/knowledge/usecase"
	"email-assistant/pkg/config"
	"email-assistant/pkg/logger"

	"github.com/spf13/cobra"
)

// AppFactory builds the wired application (allows a test database)
type AppFactory func(ctx context.Context) (*api.App, error)

// DefaultAppFactory loads config from the environment
func DefaultAppFactory(ctx context.Context) (*api.App, error) {
	cfg := config.Load()
	if err := logger.Init(cfg.LogLevel); err != nil {
		return nil, err
	}
	return api.Bootstrap(ctx, cfg, logger.Get())
}

func main() {
	if err := newRootCmd(DefaultAppFactory, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(factory AppFactory, out io.Writer) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "assistantctl",
		Short:         "assistantctl - operate the support email assistant",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.SetOut(out)

	withApp := func(fn func(ctx context.Context, app *api.App, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			app, err := factory(ctx)
			if err != nil {
				return fmt.Errorf("initialize: %w", err)
			}
			defer app.Close(context.Background())
			return fn(ctx, app, args)
		}
	}

	var (
		seedFile    string
		seedReplace bool
	)
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load knowledge base entries (built-in set when --file is empty)",
		RunE: withApp(func(ctx context.Context, app *api.App, _ []string) error {
			items := knowledgeUsecase.DefaultSeed
			if seedFile != "" {
				loaded, err := readSeedFile(seedFile)
				if err != nil {
					return err
				}
				items = loaded
			}
			n, err := app.Knowledge.Seed(ctx, items, seedReplace)
			if err != nil {
				return err
			}
			if n == 0 && !seedReplace {
				fmt.Fprintln(out, "knowledge base already populated, nothing seeded (use --replace)")
				return nil
			}
			fmt.Fprintf(out, "seeded %d knowledge base entries\n", n)
			return nil
		}),
	}
	seedCmd.Flags().StringVarP(&seedFile, "file", "f", "", "JSON file with [{question, answer, category}]")
	seedCmd.Flags().BoolVar(&seedReplace, "replace", false, "Delete existing entries first")

	var hoursBack int
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch recent mail once and ingest it",
		RunE: withApp(func(ctx context.Context, app *api.App, _ []string) error {
			result := app.Triage.Sync(ctx, emailUsecase.SyncRequest{HoursBack: hoursBack, Source: emaildomain.SourceManual})
			if err := writeJSON(out, result); err != nil {
				return err
			}
			if !result.Success {
				return fmt.Errorf("sync failed: %s", result.Message)
			}
			return nil
		}),
	}
	syncCmd.Flags().IntVar(&hoursBack, "hours", 0, "Hours of mail to fetch (default SYNC_HOURS_BACK)")

	var day string
	analyticsCmd := &cobra.Command{
		Use:   "analytics",
		Short: "Recompute and print the daily analytics row",
		RunE: withApp(func(ctx context.Context, app *api.App, _ []string) error {
			loc := app.Config.Location()
			d := time.Now().In(loc)
			if day != "" {
				parsed, err := time.ParseInLocation(emaildomain.DayLayout, day, loc)
				if err != nil {
					return fmt.Errorf("invalid --date %q, want YYYY-MM-DD", day)
				}
				d = parsed
			}
			row, err := app.Triage.RecomputeAnalytics(ctx, d)
			if err != nil {
				return err
			}
			return writeJSON(out, row)
		}),
	}
	analyticsCmd.Flags().StringVar(&day, "date", "", "Day to recompute (YYYY-MM-DD, default today)")

	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Print the pending priority queue",
		RunE: withApp(func(ctx context.Context, app *api.App, _ []string) error {
			emails, err := app.Triage.PriorityQueue(ctx)
			if err != nil {
				return err
			}
			for _, e := range emails {
				fmt.Fprintf(out, "%-6s %-8s %-26s %s\n", e.Priority, e.Sentiment, e.SenderEmail, e.Subject)
			}
			fmt.Fprintf(out, "%d pending\n", len(emails))
			return nil
		}),
	}

	var subject string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token",
		RunE: withApp(func(_ context.Context, app *api.App, _ []string) error {
			tok, err := app.Auth.IssueToken(subject)
			if err != nil {
				return err
			}
			return writeJSON(out, tok)
		}),
	}
	tokenCmd.Flags().StringVar(&subject, "subject", "support-team", "Token subject")

	rootCmd.AddCommand(seedCmd, syncCmd, analyticsCmd, queueCmd, tokenCmd)
	return rootCmd
}

func readSeedFile(path string) ([]knowledgedomain.EntryInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var items []knowledgedomain.EntryInput
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("seed file %s has no entries", path)
	}
	return items, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
