// cmd/dicebet/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/jason-s-yu/dicebet/internal/api"
	"github.com/jason-s-yu/dicebet/internal/config"
	"github.com/jason-s-yu/dicebet/internal/session"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// app carries what every subcommand needs once the root has been set up.
type app struct {
	cfg    config.Config
	logger *logrus.Logger
	store  session.Store
	api    *api.Client
	close  func()
}

var (
	cli        app
	flagAPIURL string
	flagWSURL  string
)

var rootCmd = &cobra.Command{
	Use:   "dicebet",
	Short: "Terminal client for the even/odd dice game",
	Long: `dicebet logs into the dice game API and plays over its WebSocket channel.
The login is kept in the configured session store (memory or redis), so
"dicebet login" followed by "dicebet play" requires SESSION_STORE=redis.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cli.close != nil {
			cli.close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api", "", "API base URL (overrides DICEBET_API_URL)")
	rootCmd.PersistentFlags().StringVar(&flagWSURL, "ws", "", "WebSocket URL (overrides DICEBET_WS_URL)")
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if flagAPIURL != "" {
		cfg.APIURL = flagAPIURL
	}
	if flagWSURL != "" {
		cfg.WSURL = flagWSURL
	}

	logger := logrus.New()
	logger.SetLevel(cfg.LogLevel)
	logger.SetOutput(os.Stderr)

	cli = app{
		cfg:    cfg,
		logger: logger,
		api:    api.NewClient(cfg.APIURL, logrus.NewEntry(logger)),
	}

	switch cfg.SessionStore {
	case config.StoreRedis:
		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		rdb, err := session.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			return err
		}
		cli.store = session.NewRedisStore(rdb, "", 0)
		cli.close = func() { rdb.Close() }
		logger.Debugf("Using redis session store at %s db %d", cfg.RedisAddr, cfg.RedisDB)
	default:
		cli.store = session.NewMemoryStore()
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
