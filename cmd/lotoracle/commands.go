package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rewired-gh/lotoracle/internal/draws"
	"github.com/rewired-gh/lotoracle/internal/export"
	"github.com/rewired-gh/lotoracle/internal/knowledge"
	"github.com/rewired-gh/lotoracle/internal/logger"
	"github.com/rewired-gh/lotoracle/internal/output"
)

// maxExportedPredictions bounds the predictions read back for an export.
const maxExportedPredictions = 100000

func newImportCmd(a *app) *cobra.Command {
	var csvPath, knowledgePath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a draws CSV file and a knowledge file into the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if csvPath == "" {
				csvPath = a.cfg.Source.CSVPath
			}
			if knowledgePath == "" {
				knowledgePath = a.cfg.Source.KnowledgePath
			}
			if csvPath == "" && knowledgePath == "" {
				return errors.New("nothing to import: pass --csv and/or --knowledge")
			}

			if csvPath != "" {
				rows, stats, err := draws.Load(ctx, draws.CSVSource{Path: csvPath}, a.loc)
				if err != nil {
					return err
				}
				inserted, err := a.store.UpsertDraws(ctx, rows)
				if err != nil {
					return err
				}
				fmt.Printf("Imported %d new draws from %s (%d read, %d rejected)\n",
					inserted, csvPath, stats.Read, stats.Dropped())
			}

			if knowledgePath != "" {
				kb, err := knowledge.LoadFile(knowledgePath)
				if err != nil {
					return err
				}
				if err := a.store.SaveKnowledge(ctx, kb); err != nil {
					return err
				}
				fmt.Printf("Imported %d knowledge rules from %s\n", kb.Len(), knowledgePath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&csvPath, "csv", "", "Draws CSV file (default source.csv_path)")
	cmd.Flags().StringVar(&knowledgePath, "knowledge", "", "Knowledge file (default source.knowledge_path)")
	return cmd
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Compute the statistics for a target date without calling the oracle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := a.parseDate(date)
			if err != nil {
				return err
			}
			res, err := a.newPredictor(false).Analyze(cmd.Context(), target)
			if err != nil {
				return err
			}
			return output.WriteReport(os.Stdout, &res.Report, a.format)
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Target date YYYY-MM-DD (default today)")
	return cmd
}

func newPredictCmd(a *app) *cobra.Command {
	var date string
	var notify bool

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Run the statistics, ask the oracle and record the prediction",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target, err := a.parseDate(date)
			if err != nil {
				return err
			}
			forecast, err := a.newPredictor(true).Predict(cmd.Context(), target)
			if err != nil {
				return err
			}
			if err := output.WritePrediction(os.Stdout, forecast.Prediction, forecast.Report, a.format); err != nil {
				return err
			}

			if notify {
				if tg := a.newTelegram(); tg != nil {
					if err := tg.SendPrediction(forecast.Prediction, forecast.Report); err != nil {
						logger.Error("Failed to send Telegram notification: %v", err)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "Target date YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&notify, "notify", true, "Send the prediction to Telegram when enabled")
	return cmd
}

func newBacktestCmd(a *app) *cobra.Command {
	var days int
	var pace time.Duration

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay predictions over the last days of history and count hits",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("days") {
				days = a.cfg.Backtest.Days
			}
			if !cmd.Flags().Changed("pace") {
				pace = a.cfg.Backtest.Pace
			}

			summary, err := a.newPredictor(true).Backtest(cmd.Context(), days, pace)
			if summary == nil {
				return err
			}
			if err != nil {
				logger.Warn("Backtest interrupted: %v", err)
			}
			if werr := output.WriteBacktest(os.Stdout, summary, a.format); werr != nil {
				return werr
			}

			if tg := a.newTelegram(); tg != nil {
				if sendErr := tg.SendBacktest(summary); sendErr != nil {
					logger.Error("Failed to send Telegram notification: %v", sendErr)
				}
			}
			return err
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "Number of days to replay (default backtest.days)")
	cmd.Flags().DurationVar(&pace, "pace", 2*time.Second, "Delay between oracle calls (default backtest.pace)")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export draws, the form/gap table and predictions as Parquet files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			history, _, err := draws.Load(ctx, a.store, a.loc)
			if err != nil {
				return err
			}
			res, err := a.newPredictor(false).Analyze(ctx, time.Time{})
			if err != nil {
				return err
			}
			predictions, err := a.store.ListPredictions(ctx, maxExportedPredictions)
			if err != nil {
				return err
			}

			if err := export.WriteAll(outDir, history, res.FormGap, a.cfg.Analysis.FormWindow, predictions); err != nil {
				return err
			}
			fmt.Printf("Exported %d draws, %d form/gap rows and %d predictions to %s\n",
				len(history), len(res.FormGap), len(predictions), outDir)
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "./export", "Output directory")
	return cmd
}
