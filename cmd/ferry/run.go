package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ferrybot/ferry/adapters/telegram"
	"github.com/ferrybot/ferry/core"
	"github.com/ferrybot/ferry/core/bridge"
	"github.com/ferrybot/ferry/core/chatctl"
	"github.com/ferrybot/ferry/core/runner"
	"github.com/ferrybot/ferry/internal/keychain"
	"github.com/ferrybot/ferry/internal/statsock"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot daemon",
		RunE:  runDaemon,
	}

	cmd.Flags().String("token", "", "Bot token (falls back to the keychain).")
	cmd.Flags().String("api-base", "", "Override the bot API base URL.")
	cmd.Flags().String("plugin-dir", "plugins", "Directory holding the plugins.")
	cmd.Flags().Int("pool-size", 4, "Handler worker count.")
	cmd.Flags().Int("poll-limit", 100, "Max updates per poll.")
	cmd.Flags().Int("poll-timeout", 30, "Long-poll timeout in seconds.")
	cmd.Flags().String("store-backend", "file", "Disabled-plugin store: file or sqlite.")
	cmd.Flags().String("store-path", "", "Sqlite store path (store-backend=sqlite).")
	cmd.Flags().String("stats-socket", "", "Unix socket serving stats snapshots (optional).")

	for _, flag := range []string{
		"token", "api-base", "plugin-dir", "pool-size", "poll-limit",
		"poll-timeout", "store-backend", "store-path", "stats-socket",
	} {
		_ = viper.BindPFlag(strings.ReplaceAll(flag, "-", "_"), cmd.Flags().Lookup(flag))
	}

	return cmd
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(viper.GetString("logging.level"), viper.GetString("logging.format"))
	if err != nil {
		return err
	}

	token := strings.TrimSpace(viper.GetString("token"))
	if token == "" {
		token, err = keychain.Get(keychain.TokenAccount)
		if err != nil || token == "" {
			return fmt.Errorf("no bot token: set --token, %s_TOKEN, or run `ferry token set`", envPrefix)
		}
	}

	client := telegram.New(token)
	if base := viper.GetString("api_base"); base != "" {
		client.WithBaseURL(base)
	}

	pluginDir := viper.GetString("plugin_dir")
	if _, err := os.Stat(pluginDir); err != nil {
		return fmt.Errorf("plugin dir: %w", err)
	}

	var store chatctl.Store
	switch backend := viper.GetString("store_backend"); backend {
	case "", "file":
		store = chatctl.NewFileStore(pluginDir)
	case "sqlite":
		path := viper.GetString("store_path")
		if path == "" {
			return fmt.Errorf("store-backend=sqlite requires store-path")
		}
		sqlStore, err := chatctl.OpenSQLStore(path)
		if err != nil {
			return err
		}
		defer sqlStore.Close()
		store = sqlStore
	default:
		return fmt.Errorf("unknown store backend %q", backend)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if username, err := client.GetMe(ctx); err != nil {
		logger.Warn("getMe failed, starting anyway", "error", err)
	} else {
		logger.Info("authenticated", "bot", username)
	}

	plugins := bridge.New(pluginDir, client.APIURL(), logger)
	defer plugins.Shutdown()

	pool := runner.New(viper.GetInt("pool_size"), logger)
	defer pool.Shutdown()

	stats := core.NewStats()
	filter := chatctl.New(store, logger)
	deletor := core.NewDeletor(client, logger)
	router := core.NewRouter(plugins, filter, pool, stats, deletor, logger)
	bot := core.NewBot(client, core.NewWasher(), router, logger,
		viper.GetInt("poll_limit"), viper.GetInt("poll_timeout"))

	if socketPath := viper.GetString("stats_socket"); socketPath != "" {
		srv := statsock.New(socketPath, stats, logger)
		if err := srv.Start(); err != nil {
			return err
		}
		defer srv.Shutdown()
	}

	return bot.Run(ctx)
}
