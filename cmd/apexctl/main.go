package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/apex-telemetry/internal/client"
	"github.com/yourusername/apex-telemetry/internal/config"
	"github.com/yourusername/apex-telemetry/internal/identity"
	"github.com/yourusername/apex-telemetry/internal/logger"
	"github.com/yourusername/apex-telemetry/internal/models"
	"github.com/yourusername/apex-telemetry/internal/score"
	"github.com/yourusername/apex-telemetry/internal/storage"
	"github.com/yourusername/apex-telemetry/internal/subscription"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile string
	userID     string
	logg       *logrus.Logger
	cfg        *config.Config
	api        *client.Client
	store      *storage.Store
	subs       subscription.Resolver
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (optional)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "Identity to scope local storage (default: guest)")

	analyzeCmd.Flags().IntSlice("laps", nil, "Lap numbers to include in the analysis")
	analyzeCmd.Flags().String("condition", models.TrackConditionDry, "Track condition (dry|damp|wet|rain)")
	analyzeCmd.Flags().Float64("temperature", 0, "Track temperature in °C")
	analyzeCmd.Flags().Bool("no-save", false, "Skip saving the result locally")

	exportCmd.Flags().StringP("output", "o", "", "Output file (default: apex-analysis-{id}.json)")

	rootCmd.AddCommand(analyzeCmd, lapsCmd, statusCmd, healthCmd,
		listCmd, showCmd, exportCmd, deleteCmd, clearCmd, statsCmd, versionCmd)
}

var rootCmd = &cobra.Command{
	Use:   "apexctl",
	Short: "Submit racing telemetry for analysis and manage local results",
	Long: `apexctl uploads racing-session CSV files to the analysis backend,
stores the normalized results locally per identity, and derives display
values (scores, summaries) from them.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func setup() error {
	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
	} else {
		cfg = config.Default()
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logg = logger.NewLogger(cfg.App.LogLevel)
	api = client.NewClient(cfg, logg)
	store = storage.NewStore(storage.NewFileKV(cfg.Storage.Directory), cfg.Storage.MaxStored, logg)
	subs = subscription.NewCachedResolver(subscription.FreeResolver())
	return nil
}

// currentIdentity resolves the storage partition from the --user flag
func currentIdentity() string {
	provider := identity.Static{ID: userID}
	if id, ok := provider.CurrentID(); ok {
		return id
	}
	return ""
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file.csv>",
	Short: "Upload a telemetry file and display the analysis result",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		upload, err := openUpload(args[0])
		if err != nil {
			return err
		}
		defer upload.close()

		opts := &client.AnalyzeOptions{}
		opts.LapFilter, _ = cmd.Flags().GetIntSlice("laps")
		opts.TrackCondition, _ = cmd.Flags().GetString("condition")
		if cmd.Flags().Changed("temperature") {
			temp, _ := cmd.Flags().GetFloat64("temperature")
			opts.TrackTemperature = &temp
		}

		result, err := api.Analyze(context.Background(), upload.Upload, opts)
		if err != nil {
			return err
		}

		printResult(result)

		// Saving is best effort: a storage failure must not hide the
		// result the user just paid network time for.
		if noSave, _ := cmd.Flags().GetBool("no-save"); !noSave {
			id, err := store.Save(result, currentIdentity())
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: result could not be saved locally (%v); use 'export' from a later run or re-analyze\n", err)
			} else {
				fmt.Printf("Saved locally as %s\n", id)
			}
		}
		return nil
	},
}

var lapsCmd = &cobra.Command{
	Use:   "laps <file.csv>",
	Short: "Preview the laps detected in a telemetry file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		upload, err := openUpload(args[0])
		if err != nil {
			return err
		}
		defer upload.close()

		laps, err := api.ParseLaps(context.Background(), upload.Upload)
		if err != nil {
			return err
		}

		for _, lap := range laps {
			marker := ""
			if lap.IsOutlier {
				marker = "  (outlier)"
			}
			fmt.Printf("Lap %2d  %8.3fs  %6d points%s\n",
				lap.LapNumber, lap.LapTimeSeconds, lap.PointsCount, marker)
		}
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <analysis-id>",
	Short: "Check the processing state of a submitted analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := api.Status(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s", status.AnalysisID, status.Status)
		if status.Message != "" {
			fmt.Printf(" (%s)", status.Message)
		}
		fmt.Println()
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the analysis backend is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		health, err := api.Health(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Backend %s", health.Status)
		if health.Version != "" {
			fmt.Printf(" (version %s, %s)", health.Version, health.Environment)
		}
		fmt.Println()
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List locally stored analyses, most recent first",
	RunE: func(cmd *cobra.Command, args []string) error {
		summaries, err := store.ListSummaries(currentIdentity())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No stored analyses.")
			return nil
		}
		for _, s := range summaries {
			fmt.Printf("%-28s  %s  score %3d (%s)  %d corners  lap %.3fs\n",
				s.ID, s.Date, s.Score, s.Grade, s.CornerCount, s.LapTime)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <analysis-id>",
	Short: "Display one stored analysis in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := store.GetByID(args[0], currentIdentity())
		if err != nil {
			return err
		}
		if result == nil {
			return fmt.Errorf("analysis not found: %s", args[0])
		}
		printResult(result)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export <analysis-id>",
	Short: "Export a stored analysis as a formatted JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := store.ExportJSON(args[0], currentIdentity())
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "" {
			output = fmt.Sprintf("apex-analysis-%s.json", args[0])
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		fmt.Printf("Exported to %s\n", output)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <analysis-id>",
	Short: "Delete one stored analysis",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := store.DeleteByID(args[0], currentIdentity())
		if err != nil {
			return err
		}
		if !removed {
			fmt.Printf("Nothing to delete for %s\n", args[0])
			return nil
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored analysis for the current identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		removed, err := store.ClearAll(currentIdentity())
		if err != nil {
			return err
		}
		fmt.Printf("Removed %d analyses\n", removed)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate statistics over stored analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		summaries, err := store.ListSummaries(currentIdentity())
		if err != nil {
			return err
		}
		stats := score.Aggregate(summaries)
		fmt.Printf("Analyses: %d\n", stats.Total)
		if stats.Total == 0 {
			return nil
		}
		fmt.Printf("Average score: %d\n", stats.AverageScore)
		fmt.Printf("Best score: %d (%s)\n", stats.BestScore, stats.Best.ID)

		// Comparison across sessions is a paid feature
		sub, err := subs.Resolve(context.Background(), currentIdentity())
		if err == nil && !subscription.LimitsFor(sub.Plan).CanCompare {
			fmt.Println("Upgrade to compare sessions side by side.")
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("apexctl %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
	},
}

// fileUpload couples an Upload with its backing file handle
type fileUpload struct {
	client.Upload
	file *os.File
}

func (u *fileUpload) close() {
	if u.file != nil {
		u.file.Close()
	}
}

func openUpload(path string) (*fileUpload, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return &fileUpload{
		Upload: client.Upload{
			Name:    filepath.Base(path),
			Size:    info.Size(),
			Content: file,
		},
		file: file,
	}, nil
}

func printResult(result *models.AnalysisResult) {
	display := score.DisplayScore(result.PerformanceScore, logg)
	fmt.Printf("Analysis %s\n", result.AnalysisID)
	fmt.Printf("Score: %.1f (%s)\n", display, result.PerformanceScore.Grade)
	fmt.Printf("Corners detected: %d, lap time %.3fs\n", result.CornersDetected, result.LapTime)

	for _, advice := range result.CoachingAdvice {
		fmt.Printf("  [%d] %s (%s, %.2fs)\n",
			advice.Priority, advice.Message, advice.Category, advice.ImpactSeconds)
	}
	if len(result.Plots) > 0 {
		plots, _ := json.MarshalIndent(result.Plots, "", "  ")
		fmt.Printf("Plots: %s\n", plots)
	}
}
