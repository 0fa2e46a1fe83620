package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind         string
	port         int
	dsn          string
	seedFile     string
	clientOrigin string
	jwtSecret    string
	jwtExpiry    time.Duration
	providerAPI  string
	dailyPool    string
	dailySalt    string
	logLevel     string
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.dsn == "" {
		return errors.New("--db must not be empty")
	}
	return nil
}

// dailyTracks splits the configured daily pool into track ids.
func (c *Config) dailyTracks() []string {
	if c.dailyPool == "" {
		return nil
	}
	parts := strings.Split(c.dailyPool, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SONGDLE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "songdle",
		Short:         "Backend for the song-guessing game: catalog, judge, ledger, ranking.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: SONGDLE_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 5000, "port to listen on (env: SONGDLE_PORT)")
	fs.StringVar(&cfg.dsn, "db", "./data/songdle.db", "sqlite database path (env: SONGDLE_DB)")
	fs.StringVar(&cfg.seedFile, "seed", "", "json file with the local song catalog (env: SONGDLE_SEED)")
	fs.StringVar(&cfg.clientOrigin, "client-origin", "http://localhost:5173", "CORS origin for the web client (env: SONGDLE_CLIENT_ORIGIN)")
	fs.StringVar(&cfg.jwtSecret, "jwt-secret", "", "secret for signing auth tokens (env: SONGDLE_JWT_SECRET)")
	fs.DurationVar(&cfg.jwtExpiry, "jwt-expiry", 14*24*time.Hour, "auth token lifetime (env: SONGDLE_JWT_EXPIRY)")
	fs.StringVar(&cfg.providerAPI, "provider-api", "https://api.spotify.com/v1", "music provider API root (env: SONGDLE_PROVIDER_API)")
	fs.StringVar(&cfg.dailyPool, "daily-pool", "", "comma-separated track ids for the daily rotation (env: SONGDLE_DAILY_POOL)")
	fs.StringVar(&cfg.dailySalt, "daily-salt", "songdle", "salt for the daily pick (env: SONGDLE_DAILY_SALT)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "zerolog level (env: SONGDLE_LOG_LEVEL)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("songdle v{{.Version}}\n")

	return cmd
}
