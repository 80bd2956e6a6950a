package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"igarchive/internal/app"
	"igarchive/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a fully wired App. The caller must
// defer a.Close().
func newApp() (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "iga",
	Short: "Personal-data archive importer",
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Database:  %s", cfg.Database.Type)
		if cfg.Database.DataDir != "" {
			fmt.Printf(" (%s)", cfg.Database.DataDir)
		}
		fmt.Println()
		fmt.Printf("Media:     %s", cfg.Media.Type)
		if cfg.Media.MediaDir != "" {
			fmt.Printf(" (%s)", cfg.Media.MediaDir)
		}
		fmt.Println()
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import PATH",
	Short: "Import a data export archive",
	Long:  "Import a personal-data export, either a .zip file or an already extracted directory. Replaces any previously imported data.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		target, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("resolving path: %w", err)
		}

		summary, err := a.Import(cmd.Context(), target, func(step string, percent, overall float64, status string) {
			fmt.Printf("\r\033[K%5.1f%% [%-12s %5.1f%%] %s", overall, step, percent, status)
		})
		fmt.Println()
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Printf("Imported %d entries (%d bytes) in %s\n", summary.Entries, summary.Bytes, summary.Duration.Round(10*time.Millisecond))
		fmt.Printf("  users:         %d\n", summary.Stats.Users)
		fmt.Printf("  conversations: %d\n", summary.Stats.Conversations)
		fmt.Printf("  messages:      %d\n", summary.Stats.Messages)
		fmt.Printf("  media:         %d\n", summary.Stats.Media)
		fmt.Printf("  posts:         %d\n", summary.Stats.Posts)
		fmt.Printf("  stories:       %d\n", summary.Stats.Stories)
		fmt.Printf("  comments:      %d\n", summary.Stats.Comments)
		fmt.Printf("  liked posts:   %d\n", summary.Stats.LikedPosts)
		fmt.Printf("  saved posts:   %d\n", summary.Stats.SavedPosts)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent import runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No import runs recorded.")
			return nil
		}

		for _, r := range runs {
			finished := "-"
			if !r.FinishedAt.IsZero() {
				finished = r.FinishedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Printf("%s  %-9s  started %s  finished %s  %d entries  %s\n",
				r.ID, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), finished,
				r.Entries, r.ArchivePath)
			if r.Error != "" {
				fmt.Printf("    error: %s\n", r.Error)
			}
		}
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	rootCmd.AddCommand(configCmd)

	rootCmd.AddCommand(importCmd)

	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	rootCmd.AddCommand(historyCmd)
}
