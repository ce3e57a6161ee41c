package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"wellness-backend/internal/protocols/catalogstore"
	"wellness-backend/internal/protocols/engine"
	"wellness-backend/internal/queue"
	"wellness-backend/internal/shared/config"
)

// newSender builds the queue client used by enqueue.
var newSender = func(ctx context.Context, queueURL, region string) (queue.Client, error) {
	return queue.NewSQSClient(ctx, queueURL, region)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "protocolctl",
		Short:         "Operate the daily protocol engine from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("catalog", os.Getenv("PROTOCOL_CATALOG_PATH"), "catalog path or s3://bucket/key (embedded catalog when empty)")
	root.PersistentFlags().String("region", os.Getenv("AWS_REGION"), "AWS region for s3 and sqs")
	root.AddCommand(newGenerateCmd(), newCatalogCmd(), newEnqueueCmd())
	return root
}

type signalFlags struct {
	stress     float64
	overall    float64
	lis        float64
	cyclePhase string
	glp1       bool
	tags       []string
}

func (f *signalFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.stress, "stress", 0, "stress level (required)")
	cmd.Flags().Float64Var(&f.overall, "overall", 0, "overall wellness score")
	cmd.Flags().Float64Var(&f.lis, "lis", 0, "LIS score, used when --overall is not set")
	cmd.Flags().StringVar(&f.cyclePhase, "cycle-phase", "", "menstrual cycle phase")
	cmd.Flags().BoolVar(&f.glp1, "glp1", false, "user is on a GLP-1 medication")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "user tag (repeatable)")
	_ = cmd.MarkFlagRequired("stress")
}

func (f *signalFlags) signal(cmd *cobra.Command) engine.DailySignal {
	sig := engine.DailySignal{Stress: f.stress}
	if cmd.Flags().Changed("overall") {
		v := f.overall
		sig.Overall = &v
	}
	if cmd.Flags().Changed("lis") {
		v := f.lis
		sig.LIS = &v
	}
	return sig
}

func (f *signalFlags) metadata(cmd *cobra.Command) engine.UserMetadata {
	meta := engine.UserMetadata{Tags: f.tags}
	if cmd.Flags().Changed("glp1") {
		v := f.glp1
		meta.IsGLP1 = &v
	}
	return meta
}

func newGenerateCmd() *cobra.Command {
	var (
		flags       signalFlags
		historyPath string
		now         string
		uniform     bool
		explain     bool
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Run the engine once and print the recommendation as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := loadEngine(cmd, uniform)
			if err != nil {
				return err
			}
			opts := engine.Options{}
			if historyPath != "" {
				if opts.History, err = readHistory(historyPath); err != nil {
					return err
				}
			}
			if now != "" {
				if opts.Now, err = time.Parse(time.RFC3339, now); err != nil {
					return fmt.Errorf("parse --now: %w", err)
				}
			}

			rec, decision := eng.Decide(flags.signal(cmd), flags.cyclePhase, flags.metadata(cmd), opts)
			if explain {
				return writeJSON(cmd.OutOrStdout(), map[string]any{"recommendation": rec, "decision": decision})
			}
			return writeJSON(cmd.OutOrStdout(), rec)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&historyPath, "history", "", "JSON file with an array of history entries")
	cmd.Flags().StringVar(&now, "now", "", "reference time (RFC3339), defaults to the current time")
	cmd.Flags().BoolVar(&uniform, "uniform-phase", false, "match every phase rule case-insensitively")
	cmd.Flags().BoolVar(&explain, "explain", false, "include the decision trace")
	return cmd
}

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the template catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate [path]",
		Short: "Check a catalog file and report its version",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("catalog")
			if len(args) == 1 {
				path = args[0]
			}
			catalog, err := catalogstore.Load(cmd.Context(), path, catalogOptions(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "catalog %s ok: %d templates, stress reset %q\n",
				catalog.Version(), len(catalog.All()), catalog.StressReset().Title)
			return nil
		},
	})

	var category string
	list := &cobra.Command{
		Use:   "list",
		Short: "List templates, optionally for one category",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("catalog")
			catalog, err := catalogstore.Load(cmd.Context(), path, catalogOptions(cmd))
			if err != nil {
				return err
			}
			templates := catalog.All()
			if category != "" {
				cat := engine.Category(category)
				if !cat.Valid() {
					return fmt.Errorf("unknown category %q", category)
				}
				templates = catalog.Templates(cat)
			}
			out := cmd.OutOrStdout()
			for _, tpl := range templates {
				fmt.Fprintf(out, "%-9s %-32s %3d min  %.2f  %s\n",
					tpl.Category, tpl.Title, tpl.DurationMinutes, tpl.BaseIntensity, tpl.FocusArea)
			}
			return nil
		},
	}
	list.Flags().StringVar(&category, "category", "", "Strength, Mobility or Cardio")
	cmd.AddCommand(list)

	var kmsKeyID string
	publish := &cobra.Command{
		Use:   "publish <file> <location>",
		Short: "Validate a catalog file and upload it to a path or s3://bucket/key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := catalogOptions(cmd)
			opts.KMSKeyID = kmsKeyID
			catalog, err := catalogstore.Publish(cmd.Context(), args[0], args[1], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published catalog %s to %s\n", catalog.Version(), args[1])
			return nil
		},
	}
	publish.Flags().StringVar(&kmsKeyID, "kms-key-id", "", "KMS key for server-side encryption on s3")
	cmd.AddCommand(publish)
	return cmd
}

func catalogOptions(cmd *cobra.Command) catalogstore.Options {
	region, _ := cmd.Flags().GetString("region")
	return catalogstore.Options{Region: region}
}

func newEnqueueCmd() *cobra.Command {
	var (
		flags     signalFlags
		userID    string
		day       string
		queueURL  string
		requestID string
	)
	cfg := config.Load()
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a protocol generation request for the worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(userID) == "" {
				return errors.New("--user is required")
			}
			if strings.TrimSpace(queueURL) == "" {
				return errors.New("--queue-url or PROTOCOL_QUEUE_URL is required")
			}
			if requestID == "" {
				requestID = uuid.NewString()
			}
			sig := flags.signal(cmd)
			stress := sig.Stress
			msg := queue.Message{
				UserID:     userID,
				RequestID:  requestID,
				Day:        day,
				Signal:     queue.Signal{Stress: &stress, Overall: sig.Overall, LIS: sig.LIS},
				CyclePhase: flags.cyclePhase,
			}
			if meta := flags.metadata(cmd); meta.IsGLP1 != nil || len(meta.Tags) > 0 {
				msg.UserMetadata = &meta
			}

			ctx := cmd.Context()
			region, _ := cmd.Flags().GetString("region")
			if region == "" {
				region = cfg.AWSRegion
			}
			client, err := newSender(ctx, queueURL, region)
			if err != nil {
				return fmt.Errorf("create queue client: %w", err)
			}
			if err := client.Send(ctx, msg); err != nil {
				return fmt.Errorf("send message: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued request %s for user %s\n", requestID, userID)
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&day, "day", "", "protocol day (YYYY-MM-DD), defaults to today")
	cmd.Flags().StringVar(&queueURL, "queue-url", cfg.QueueURL, "SQS queue URL")
	cmd.Flags().StringVar(&requestID, "request-id", "", "request id (generated when empty)")
	return cmd
}

func loadEngine(cmd *cobra.Command, uniform bool) (*engine.Engine, error) {
	path, _ := cmd.Flags().GetString("catalog")
	catalog, err := catalogstore.Load(cmd.Context(), path, catalogOptions(cmd))
	if err != nil {
		return nil, err
	}
	var opts []engine.Option
	if uniform {
		opts = append(opts, engine.WithUniformPhaseMatching())
	}
	return engine.New(catalog, opts...)
}

func readHistory(path string) ([]engine.HistoryEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	var entries []engine.HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return entries, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
