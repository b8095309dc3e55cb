package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/lotoracle/internal/draws"
	"github.com/rewired-gh/lotoracle/internal/logger"
	"github.com/rewired-gh/lotoracle/internal/lotobonheur"
	"github.com/rewired-gh/lotoracle/internal/predictor"
	"github.com/rewired-gh/lotoracle/internal/storage"
	"github.com/rewired-gh/lotoracle/internal/telegram"
)

func newCollectCmd(a *app) *cobra.Command {
	var watch, predict bool

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Fetch recent draws from the results API into the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := lotobonheur.NewClient(a.cfg.Source.APIBaseURL, a.cfg.Source.Timeout,
				a.cfg.Source.MaxRetries, a.cfg.Source.RetryDelayBase, a.loc)

			if !watch {
				_, err := runCollectCycle(cmd.Context(), client, a.store, a.loc)
				return err
			}
			return a.watch(cmd.Context(), client, predict)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Keep collecting every source.poll_interval until interrupted")
	cmd.Flags().BoolVar(&predict, "predict", false, "In watch mode, predict and notify after new draws arrive")
	return cmd
}

// watch runs collection cycles on a ticker until ctx is cancelled.
func (a *app) watch(ctx context.Context, client *lotobonheur.Client, predict bool) error {
	telegramClient := a.newTelegram()
	pred := a.newPredictor(true)

	// Start Telegram command listener
	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx, commandHandler(a, pred))
	}

	logger.Info("Starting collection service (interval: %v, predict: %t)", a.cfg.Source.PollInterval, predict)

	ticker := time.NewTicker(a.cfg.Source.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(inserted int, err error) {
		if err != nil {
			consecutiveFailures++
			logger.Error("Collection cycle failed: %v", err)
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logger.Warn("Failed to send error notification to Telegram: %v", sendErr)
				}
			}
			return
		}

		if consecutiveFailures > 0 && telegramClient != nil {
			if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
				logger.Warn("Failed to send recovery notification to Telegram: %v", sendErr)
			}
		}
		consecutiveFailures = 0

		if predict && inserted > 0 {
			notifyPrediction(ctx, pred, telegramClient)
		}
	}

	// Run initial cycle immediately
	handleCycleResult(runCollectCycle(ctx, client, a.store, a.loc))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Service stopped")
			return nil

		case <-ticker.C:
			logger.Debug("Starting scheduled collection cycle")
			handleCycleResult(runCollectCycle(ctx, client, a.store, a.loc))
		}
	}
}

// runCollectCycle fetches the API's recent draws and stores the new ones.
func runCollectCycle(ctx context.Context, source draws.Source, store *storage.Storage, loc *time.Location) (int, error) {
	startTime := time.Now()
	logger.Info("Starting collection cycle")

	fetched, stats, err := draws.Load(ctx, source, loc)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch draws: %w", err)
	}

	inserted, err := store.UpsertDraws(ctx, fetched)
	if err != nil {
		return 0, fmt.Errorf("failed to store draws: %w", err)
	}

	logger.Info("Collection cycle completed in %v: %d fetched, %d new, %d rejected",
		time.Since(startTime), stats.Accepted, inserted, stats.Dropped())
	return inserted, nil
}

func notifyPrediction(ctx context.Context, pred *predictor.Predictor, telegramClient *telegram.Client) {
	forecast, err := pred.Predict(ctx, time.Time{})
	if err != nil {
		logger.Error("Prediction failed: %v", err)
		return
	}
	logger.Info("Prediction for %s: %v", forecast.Prediction.TargetDate.Format(time.DateOnly), forecast.Prediction.Numbers)

	if telegramClient == nil {
		logger.Debug("Prediction made but Telegram notifications disabled")
		return
	}
	if err := telegramClient.SendPrediction(forecast.Prediction, forecast.Report); err != nil {
		logger.Error("Failed to send Telegram notification: %v", err)
	}
}

// commandHandler answers /predict, /status and /help from the bot chat.
func commandHandler(a *app, pred *predictor.Predictor) telegram.CommandHandler {
	return func(ctx context.Context, command string) (string, error) {
		switch command {
		case "predict":
			forecast, err := pred.Predict(ctx, time.Time{})
			if err != nil {
				return "", err
			}
			return telegram.FormatPrediction(forecast.Prediction, forecast.Report), nil

		case "status":
			count, err := a.store.CountDraws(ctx)
			if err != nil {
				return "", err
			}
			latest, err := a.store.LatestDraw(ctx, a.loc)
			if err != nil {
				return "", err
			}
			if latest == nil {
				return "📭 No draws stored yet", nil
			}
			return telegram.FormatStatus(count, latest), nil

		default:
			return "Commands: /predict, /status", nil
		}
	}
}
