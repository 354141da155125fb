// Command fetch pulls the raw facility and shift tables out of Metabase and
// writes them under DATA_DIR for the other tools. Pass -list to print the
// available saved questions instead.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/turnohealth/facility-map/internal/adapter/metabase"
	"github.com/turnohealth/facility-map/internal/config"
	"github.com/turnohealth/facility-map/internal/observability"
	"github.com/turnohealth/facility-map/internal/store"
)

func main() {
	listQuestions := flag.Bool("list", false, "list saved questions and exit")
	listLimit := flag.Int("limit", 20, "number of questions to list with -list")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)

	if err := run(cfg, logger, *listQuestions, *listLimit); err != nil {
		logger.Error("fetch failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, listQuestions bool, listLimit int) error {
	if err := cfg.RequireMetabase(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := metabase.NewClient(cfg.MetabaseURL, cfg.MetabaseTimeout, logger)
	if cfg.MetabaseAPIKey != "" {
		client.UseAPIKey(cfg.MetabaseAPIKey)
	} else {
		if err := client.Login(ctx, cfg.MetabaseUsername, cfg.MetabasePassword); err != nil {
			return err
		}
		defer func() {
			if err := client.Logout(context.Background()); err != nil {
				logger.Warn("metabase logout failed", "error", err)
			}
		}()
	}

	if listQuestions {
		return printQuestions(ctx, client, listLimit)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	facilities, err := client.FetchQuestionRows(ctx, cfg.FacilityQuestionID)
	if err != nil {
		return fmt.Errorf("fetch facilities: %w", err)
	}
	if len(facilities) == 0 {
		return fmt.Errorf("facility question %d returned no rows", cfg.FacilityQuestionID)
	}
	if err := store.WriteRows(cfg.RawFacilitiesPath(), facilities); err != nil {
		return err
	}
	logger.Info("wrote raw facilities", "path", cfg.RawFacilitiesPath(), "rows", len(facilities))

	// Shifts are informational only; a failure does not abort the fetch.
	shifts, err := client.FetchQuestionRows(ctx, cfg.ShiftsQuestionID)
	if err != nil {
		logger.Warn("fetch shifts failed, continuing", "error", err)
		return nil
	}
	if err := store.WriteRows(cfg.RawShiftsPath(), shifts); err != nil {
		logger.Warn("write shifts failed, continuing", "error", err)
		return nil
	}
	logger.Info("wrote raw shifts", "path", cfg.RawShiftsPath(), "rows", len(shifts))

	return nil
}

func printQuestions(ctx context.Context, client *metabase.Client, limit int) error {
	questions, err := client.ListQuestions(ctx, limit)
	if err != nil {
		return err
	}
	for _, q := range questions {
		collection := q.Collection
		if collection == "" {
			collection = "-"
		}
		fmt.Printf("%6d  %-50s  %s\n", q.ID, q.Name, collection)
	}
	return nil
}
