package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/StrungPattern-coder/context/internal/profile"
	"github.com/StrungPattern-coder/context/internal/version"
	"github.com/StrungPattern-coder/context/server"
	"github.com/StrungPattern-coder/context/store"
	"github.com/StrungPattern-coder/context/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "ralcore",
	Short: `Context intelligence layer for LLM applications. Resolves ambient signals into timezone-correct, confidence-scored context injections.`,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Try to load .env from the current directory; production setups
		// pass real environment variables instead.
		_ = godotenv.Load()
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:        viper.GetString("mode"),
			Addr:        viper.GetString("addr"),
			Port:        viper.GetInt("port"),
			Data:        viper.GetString("data"),
			Driver:      viper.GetString("driver"),
			DSN:         viper.GetString("dsn"),
			InstanceURL: viper.GetString("instance-url"),
			Version:     version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			panic(err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		dbDriver, err := db.NewDBDriver(instanceProfile)
		if err != nil {
			cancel()
			slog.Error("failed to create db driver", "error", err)
			return
		}

		storeInstance := store.New(dbDriver, instanceProfile)
		if err := storeInstance.Migrate(ctx); err != nil {
			cancel()
			slog.Error("failed to migrate", "error", err)
			return
		}

		s, err := server.NewServer(ctx, instanceProfile, storeInstance)
		if err != nil {
			cancel()
			slog.Error("failed to create server", "error", err)
			return
		}

		c := make(chan os.Signal, 1)
		// Trigger graceful shutdown on SIGINT or SIGTERM, the signals
		// process managers send.
		signal.Notify(c, terminationSignals...)

		go func() {
			<-c
			s.Shutdown(ctx)
			cancel()
		}()

		printGreetings(instanceProfile)

		if err := s.Start(ctx); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("failed to start server", "error", err)
				cancel()
			}
		}

		<-ctx.Done()
	},
}

var healthcheckCmd = &cobra.Command{
	Use:   "healthcheck",
	Short: "Check the liveness of a running instance",
	Run: func(cmd *cobra.Command, _ []string) {
		serverURL := viper.GetString("instance-url")
		if serverURL == "" {
			serverURL = os.Getenv("RAL_SERVER_URL")
		}
		if serverURL == "" {
			fmt.Fprintln(os.Stderr, "missing server url: pass --instance-url or set RAL_SERVER_URL")
			os.Exit(1)
		}

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(strings.TrimSuffix(serverURL, "/") + "/health")
		if err != nil {
			fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
			os.Exit(1)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			fmt.Fprintf(os.Stderr, "health check failed: status %d\n", resp.StatusCode)
			os.Exit(1)
		}

		// Optionally enforce a minimum instance version.
		minVersion, _ := cmd.Flags().GetString("min-version")
		if minVersion != "" {
			var health struct {
				Version string `json:"version"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
				fmt.Fprintf(os.Stderr, "health check failed: unreadable response: %v\n", err)
				os.Exit(1)
			}
			if !version.IsVersionGreaterOrEqualThan(health.Version, minVersion) {
				fmt.Fprintf(os.Stderr, "health check failed: instance version %s below required %s\n", health.Version, minVersion)
				os.Exit(1)
			}
		}

		fmt.Println("ok")
	},
}

func init() {
	viper.SetDefault("mode", "dev")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8280)

	rootCmd.PersistentFlags().String("mode", "dev", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 8280, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("driver", "sqlite", "database driver (postgres, sqlite)")
	rootCmd.PersistentFlags().String("dsn", "", "database source name (aka. DSN)")
	rootCmd.PersistentFlags().String("instance-url", "", "the public url of this instance")

	for _, flag := range []string{"mode", "addr", "port", "data", "driver", "dsn", "instance-url"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("ral")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	healthcheckCmd.Flags().String("min-version", "", "fail unless the instance reports at least this version")

	rootCmd.AddCommand(healthcheckCmd)
}

func printGreetings(profile *profile.Profile) {
	fmt.Printf("RAL Core %s started successfully!\n", profile.Version)

	if profile.IsDev() {
		fmt.Fprint(os.Stderr, "Development mode is enabled\n")
		if profile.DSN != "" {
			fmt.Fprintf(os.Stderr, "Database: %s\n", profile.DSN)
		}
	}

	fmt.Printf("Data directory: %s\n", profile.Data)
	fmt.Printf("Database driver: %s\n", profile.Driver)
	fmt.Printf("Mode: %s\n", profile.Mode)

	if len(profile.Addr) == 0 {
		fmt.Printf("Server running on port %d\n", profile.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", profile.Addr, profile.Port)
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}
