/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

type Config struct {
	adminConfig string
	bind        string
	defaultRoom string
	port        int
	prefix      string
	profile     bool
	roomTimeout time.Duration
	themes      string
	tlsCert     string
	tlsKey      string
	verbose     bool
	version     bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.themes == "" {
		return errors.New("--themes must not be empty")
	}
	if c.adminConfig == "" {
		return errors.New("--admin-config must not be empty")
	}
	if c.defaultRoom == "" {
		return errors.New("--default-room must not be empty")
	}
	if c.roomTimeout < 0 {
		return fmt.Errorf("invalid room timeout (must not be negative): %s", c.roomTimeout)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password <password>",
		Short: "Print a bcrypt hash suitable for the password_hash field of the admin config.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(hash))

			return err
		},
	}
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("BINGOBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "bingobox",
		Short:         "Themed bullshit bingo boards with live per-room leaderboards.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVar(&cfg.adminConfig, "admin-config", "admin-config.json", "path to admin credentials file (env: BINGOBOX_ADMIN_CONFIG)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: BINGOBOX_BIND)")
	fs.StringVar(&cfg.defaultRoom, "default-room", "ai-lowcode", "room used when a player registers without one (env: BINGOBOX_DEFAULT_ROOM)")
	fs.IntVarP(&cfg.port, "port", "p", 3001, "port to listen on (env: BINGOBOX_PORT or PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: BINGOBOX_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: BINGOBOX_PROFILE)")
	fs.DurationVar(&cfg.roomTimeout, "room-timeout", 60*time.Minute, "time before empty rooms are pruned, 0 to keep forever (env: BINGOBOX_ROOM_TIMEOUT)")
	fs.StringVar(&cfg.themes, "themes", "themes.json", "path to theme catalog file (env: BINGOBOX_THEMES)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: BINGOBOX_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: BINGOBOX_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: BINGOBOX_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: BINGOBOX_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		if f.Name == "port" {
			_ = v.BindEnv(f.Name, "BINGOBOX_PORT", "PORT")
		} else {
			_ = v.BindEnv(f.Name)
		}
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.AddCommand(newHashCmd())

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("bingobox v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
