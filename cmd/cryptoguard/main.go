package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cryptoguard/cryptoguard/internal/config"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "cryptoguard",
	Short:         "Community safety ratings for crypto sites",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().String("config", "/etc/cryptoguard/config.yaml", "path to the node config file")
	rootCmd.PersistentFlags().String("log-level", "info", "debug, info, warn or error")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.SetEnvPrefix("CRYPTOGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, watchCmd, keygenCmd)
}

// loadConfig reads the yaml file and lets CRYPTOGUARD_* variables override
// the settings that usually come from a secret store.
func loadConfig() (config.Config, error) {
	path := viper.GetString("config")
	cfg, err := config.Read(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}

	if v := viper.GetString("listen"); v != "" {
		cfg.Server.Listen = v
	}
	if v := viper.GetString("privatekey"); v != "" {
		cfg.NodeInfo.PrivateKey = v
	}
	if v := viper.GetString("postgres_dsn"); v != "" {
		cfg.Server.PostgresDsn = v
	}
	if v := viper.GetString("redis_addr"); v != "" {
		cfg.Server.RedisAddr = v
	}
	if v := viper.GetString("redis_password"); v != "" {
		cfg.Server.RedisPassword = v
	}

	if err := cfg.Complete(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func setupLogger(w *os.File) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(viper.GetString("log_level"))); err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}
