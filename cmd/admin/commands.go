// File: cmd/admin/commands.go
package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/siidaa/admin-console/internal/api"
	"github.com/siidaa/admin-console/internal/catalog"
	"github.com/siidaa/admin-console/internal/diagnostics"
	"github.com/siidaa/admin-console/internal/models"
	"github.com/siidaa/admin-console/internal/storage"
)

// CLI Commands

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "siidaa-admin",
	Short:         "Siidaa admin console",
	Long:          `Operator console for the Siidaa music platform: session management, catalog administration and client-side diagnostics.`,
	Version:       AppVersion,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// serveCmd runs the diagnostics dashboard until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the diagnostics dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(app *Application) error {
			signalChan := make(chan os.Signal, 1)
			signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)

			if err := app.Start(); err != nil {
				return fmt.Errorf("failed to start application: %w", err)
			}
			fmt.Printf("Dashboard listening on %s:%d\n", app.config.Server.Host, app.config.Server.Port)

			<-signalChan
			fmt.Println("\nReceived shutdown signal, stopping application...")
			return nil
		})
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the backend and persist the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		if password == "" {
			password = os.Getenv("SIIDAA_ADMIN_PASSWORD")
		}

		reader := bufio.NewReader(os.Stdin)
		if username == "" {
			username = prompt(reader, "Username: ")
		}
		if password == "" {
			password = prompt(reader, "Password: ")
		}
		if username == "" || password == "" {
			return errors.New("username and password are required")
		}

		return withApplication(func(app *Application) error {
			if err := app.session.Login(app.ctx, username, password); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			user := app.session.User()
			fmt.Printf("✓ Signed in as %s", user.Username)
			if user.Email != "" {
				fmt.Printf(" <%s>", user.Email)
			}
			fmt.Println()
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the persisted session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(app *Application) error {
			app.session.Logout(app.ctx)
			fmt.Println("✓ Signed out")
			return nil
		})
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(app *Application) error {
			snap := app.session.Snapshot()
			if asJSON(cmd) {
				return printJSON(snap)
			}
			if !snap.Authenticated {
				fmt.Printf("Not signed in (state: %s). Run `siidaa-admin login`.\n", snap.State)
				return nil
			}
			fmt.Printf("User:     %s (id %d)\n", snap.User.Username, snap.User.ID)
			fmt.Printf("Email:    %s\n", snap.User.Email)
			fmt.Printf("Staff:    %t\n", snap.User.IsStaff)
			fmt.Printf("Token:    %s\n", snap.TokenFingerprint)
			if snap.ExpiresAt != nil {
				fmt.Printf("Expires:  %s\n", snap.ExpiresAt.Local().Format(time.RFC1123))
			}
			fmt.Printf("Refresh:  %t\n", snap.HasRefreshToken)
			return nil
		})
	},
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Session management commands",
}

var sessionRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Exchange the refresh token for a new access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(app *Application) error {
			if err := app.session.Refresh(app.ctx); err != nil {
				return fmt.Errorf("refresh failed, signed out: %w", err)
			}
			fmt.Println("✓ Access token refreshed")
			return nil
		})
	},
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect the diagnostic log store",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List log entries, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		levelStr, _ := cmd.Flags().GetString("level")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := models.LogFilter{Category: category, Limit: limit}
		if levelStr != "" {
			level, err := models.ParseLevel(levelStr)
			if err != nil {
				return err
			}
			filter.MinLevel = &level
		}

		return withApplication(func(app *Application) error {
			entries := app.logs.Query(filter)
			if asJSON(cmd) {
				return printJSON(entries)
			}
			for _, e := range entries {
				fmt.Println(formatEntry(e))
			}
			fmt.Printf("%d entries\n", len(entries))
			return nil
		})
	},
}

var logsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show log counts by level and category",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(app *Application) error {
			stats := app.logs.Stats()
			if asJSON(cmd) {
				return printJSON(stats)
			}
			fmt.Printf("Total: %d\n", stats.Total)
			fmt.Printf("DEBUG %d  INFO %d  WARN %d  ERROR %d\n",
				stats.ByLevel.Debug, stats.ByLevel.Info, stats.ByLevel.Warn, stats.ByLevel.Error)
			for category, count := range stats.ByCategory {
				fmt.Printf("  %-10s %d\n", category, count)
			}
			if len(stats.RecentErrors) > 0 {
				fmt.Println("Recent errors:")
				for _, e := range stats.RecentErrors {
					line := fmt.Sprintf("  %s %-7s %s", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Category, e.Message)
					if e.Error != "" {
						line += ": " + e.Error
					}
					fmt.Println(line)
				}
			}
			return nil
		})
	},
}

var logsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export log entries as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		return withApplication(func(app *Application) error {
			data, err := app.logs.Export()
			if err != nil {
				return err
			}
			if output == "" || output == "-" {
				_, err = os.Stdout.Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			fmt.Printf("✓ Exported %d entries to %s\n", app.logs.Len(), output)
			return nil
		})
	},
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all log entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(app *Application) error {
			app.logs.Clear()
			fmt.Println("✓ Logs cleared")
			return nil
		})
	},
}

// testCmd probes backend connectivity
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Test connectivity to the backend and storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(app *Application) error {
			fmt.Printf("Testing storage (%s)...\n", app.config.Storage.Type)
			if err := app.storage.Ping(); err != nil {
				return fmt.Errorf("storage unreachable: %w", err)
			}
			if stats, err := app.storage.GetStorageStats(); err == nil {
				fmt.Printf("✓ Storage reachable (%d keys, %d bytes)\n", stats.TotalKeys, stats.TotalBytes)
			}

			fmt.Printf("Testing backend at %s...\n", app.config.API.BaseURL)
			failed := 0
			for _, r := range app.prober.Probe(app.ctx, app.config.API.ProbeEndpoints) {
				switch {
				case !r.Reachable:
					failed++
					fmt.Printf("✗ %-20s %s\n", r.Endpoint, r.Error)
				case r.OK:
					fmt.Printf("✓ %-20s %d %s (%dms)\n", r.Endpoint, r.Status, r.StatusText, r.DurationMs)
				default:
					fmt.Printf("! %-20s %d %s (%dms)\n", r.Endpoint, r.Status, r.StatusText, r.DurationMs)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d endpoint(s) unreachable", failed)
			}
			fmt.Println("\nBackend reachable ✓")
			return nil
		})
	},
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show an environment snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(app *Application) error {
			return printJSON(diagnostics.EnvironmentSnapshot(app.ctx, app.config, app.storage, app.logs))
		})
	},
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Catalog administration commands",
}

var catalogListCmd = &cobra.Command{
	Use:       "list <kind>",
	Short:     "List artists, albums, songs or users",
	Args:      cobra.ExactArgs(1),
	ValidArgs: catalog.Kinds(),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(app *Application) error {
			items, err := app.catalog.List(app.ctx, args[0])
			if err != nil {
				return backendError(app, err)
			}
			return printJSON(items)
		})
	},
}

var catalogGetCmd = &cobra.Command{
	Use:   "get <kind> <id>",
	Short: "Show one catalog item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", args[1])
		}
		return withApplication(func(app *Application) error {
			item, err := app.catalog.Get(app.ctx, args[0], id)
			if err != nil {
				return backendError(app, err)
			}
			return printJSON(item)
		})
	},
}

var catalogDeleteCmd = &cobra.Command{
	Use:   "delete <kind> <id>",
	Short: "Delete one catalog item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q", args[1])
		}
		return withApplication(func(app *Application) error {
			if err := app.catalog.Delete(app.ctx, args[0], id); err != nil {
				return backendError(app, err)
			}
			fmt.Printf("✓ Deleted %s %d\n", args[0], id)
			return nil
		})
	},
}

var catalogSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show catalog counts and revenue",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApplication(func(app *Application) error {
			summary, err := app.catalog.Summary(app.ctx)
			if err != nil {
				return backendError(app, err)
			}
			if asJSON(cmd) {
				return printJSON(summary)
			}
			fmt.Printf("Artists:      %d\n", summary.TotalArtists)
			fmt.Printf("Albums:       %d\n", summary.TotalAlbums)
			fmt.Printf("Songs:        %d\n", summary.TotalSongs)
			fmt.Printf("Transactions: %d\n", summary.TotalTransactions)
			fmt.Printf("Revenue:      %s\n", summary.TotalRevenue)
			return nil
		})
	},
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Siidaa Admin Console %s\n", AppVersion)
	},
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
}

// validateConfigCmd validates the configuration
var validateConfigCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}

		fmt.Printf("Configuration is valid!\n")
		fmt.Printf("Environment: %s\n", cfg.App.Environment)
		fmt.Printf("API: %s\n", cfg.API.BaseURL)
		fmt.Printf("Storage: %s\n", cfg.Storage.Type)
		fmt.Printf("Log capacity: %d (persisting %d)\n", cfg.Diagnostics.MaxEntries, cfg.Diagnostics.PersistedEntries)
		fmt.Printf("Alerts: %t\n", cfg.Alerts.Enabled)

		return nil
	},
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func asJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatEntry(e models.LogEntry) string {
	line := fmt.Sprintf("%s [%-5s] %-7s %s", e.Timestamp.Local().Format("2006-01-02 15:04:05"), e.Level, e.Category, e.Message)
	if e.Error != nil {
		line += ": " + e.Error.Message
	}
	return line
}

// backendError turns a 401 into a sign-in hint
func backendError(app *Application, err error) error {
	if errors.Is(err, api.ErrUnauthorized) {
		return fmt.Errorf("session expired or missing, run `siidaa-admin login` (redirect %s)", app.config.Session.LoginPath)
	}
	if errors.Is(err, storage.ErrQuotaExceeded) {
		return fmt.Errorf("storage quota exceeded: %w", err)
	}
	return err
}

// init initializes the CLI commands
func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringP("log-level", "l", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug mode")
	rootCmd.PersistentFlags().String("api-url", "", "backend base URL (overrides config)")

	viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("api-url", rootCmd.PersistentFlags().Lookup("api-url"))

	loginCmd.Flags().StringP("username", "u", "", "username")
	loginCmd.Flags().StringP("password", "p", "", "password (or SIIDAA_ADMIN_PASSWORD)")

	logsListCmd.Flags().String("category", "", "only entries with this category")
	logsListCmd.Flags().String("level", "", "minimum level (debug, info, warn, error)")
	logsListCmd.Flags().Int("limit", 50, "maximum entries, 0 for all")
	logsExportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")

	for _, c := range []*cobra.Command{whoamiCmd, logsListCmd, logsStatsCmd, catalogSummaryCmd} {
		c.Flags().Bool("json", false, "print JSON")
	}

	rootCmd.AddCommand(serveCmd, loginCmd, logoutCmd, whoamiCmd, sessionCmd, logsCmd,
		testCmd, envCmd, catalogCmd, versionCmd, configCmd)
	sessionCmd.AddCommand(sessionRefreshCmd)
	logsCmd.AddCommand(logsListCmd, logsStatsCmd, logsExportCmd, logsClearCmd)
	catalogCmd.AddCommand(catalogListCmd, catalogGetCmd, catalogDeleteCmd, catalogSummaryCmd)
	configCmd.AddCommand(validateConfigCmd)
}
