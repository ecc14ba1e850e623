// Command pcactl processes and inspects conversations without the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"conversation-analytics-service/internal/app"
	"conversation-analytics-service/internal/config"
	"conversation-analytics-service/internal/observability/metrics"
	"conversation-analytics-service/internal/service/stt"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type options struct {
	format string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "pcactl",
		Short:         "Process and inspect analyzed conversations",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.format != formatJSON && opts.format != formatYAML {
				return fmt.Errorf("unknown format %q, want json or yaml", opts.format)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVarP(&opts.format, "format", "o", formatJSON, "output format (json|yaml)")

	root.AddCommand(
		newProcessCmd(opts),
		newJobCmd(opts),
		newRefreshCmd(opts),
		newShowCmd(opts),
	)
	return root
}

// withServices loads configuration, wires the services and runs fn.
func withServices(cmd *cobra.Command, fn func(ctx context.Context, s *app.Services) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	application := app.NewWithOutput(cfg, cmd.ErrOrStderr())

	services, err := application.Build(cmd.Context(), metrics.DefaultMetrics)
	if err != nil {
		return err
	}
	defer services.Close()

	return fn(cmd.Context(), services)
}

func newProcessCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "process JOB...",
		Short: "Run finished ASR jobs through the engine and store the records",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, s *app.Services) error {
				var errs []error
				for _, job := range args {
					res, err := s.Conversations.Process(ctx, job)
					if err != nil {
						errs = append(errs, fmt.Errorf("%s: %w", job, err))
						continue
					}
					out := processed{
						JobName:   job,
						RunID:     res.RunID,
						ResultURI: res.ResultURI,
						Turns:     len(res.Record.SpeechSegments),
						Duration:  res.Record.ConversationAnalytics.Duration,
					}
					if err := render(cmd.OutOrStdout(), opts.format, out); err != nil {
						return err
					}
				}
				return errors.Join(errs...)
			})
		},
	}
}

func newJobCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "job JOB",
		Short: "Show the ASR job metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, s *app.Services) error {
				job, _, err := s.Source.Fetch(ctx, args[0])
				if err != nil && !(errors.Is(err, stt.ErrJobNotCompleted) && job != nil) {
					return err
				}
				return render(cmd.OutOrStdout(), opts.format, job)
			})
		},
	}
}

func newRefreshCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Reprocess every stored conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, func(ctx context.Context, s *app.Services) error {
				done, err := s.Conversations.Refresh(ctx)
				if rerr := render(cmd.OutOrStdout(), opts.format, refreshed{Refreshed: done}); rerr != nil {
					return rerr
				}
				return err
			})
		},
	}
}

func newShowCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "show [JOB]",
		Short: "List stored conversations, or show one record",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, func(ctx context.Context, s *app.Services) error {
				if len(args) == 0 {
					list, err := s.Conversations.List(ctx, limit)
					if err != nil {
						return err
					}
					return render(cmd.OutOrStdout(), opts.format, list)
				}
				_, record, err := s.Conversations.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.format, record)
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum conversations to list (0 for all)")
	return cmd
}

type processed struct {
	JobName   string  `json:"jobName"`
	RunID     string  `json:"runId"`
	ResultURI string  `json:"resultUri"`
	Turns     int     `json:"turns"`
	Duration  float64 `json:"duration"`
}

type refreshed struct {
	Refreshed int `json:"refreshed"`
}

