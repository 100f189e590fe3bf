package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind     string
	port     int
	prefix   string
	tlsCert  string
	tlsKey   string
	profile  bool
	verbose  bool
	nickname string
	server   string

	wordAPIURL  string
	wordAPIKey  string
	wordModel   string
	wordTimeout time.Duration
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("UNDERCOVER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "undercover",
		Short:         "A social-deduction party game: find the impostor among us.",
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       releaseVersion,
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: UNDERCOVER_VERBOSE)")
	pf.StringVarP(&cfg.nickname, "nickname", "n", "", "your display name, prompted for if unset (env: UNDERCOVER_NICKNAME)")
	pf.StringVar(&cfg.wordAPIURL, "word-api-url", "https://generativelanguage.googleapis.com", "base URL of the word-generation API (env: UNDERCOVER_WORD_API_URL)")
	pf.StringVar(&cfg.wordAPIKey, "word-api-key", "", "API key for the word-generation API (env: UNDERCOVER_WORD_API_KEY)")
	pf.StringVar(&cfg.wordModel, "word-model", "gemini-2.5-flash", "model used to generate word pairs (env: UNDERCOVER_WORD_MODEL)")
	pf.DurationVar(&cfg.wordTimeout, "word-timeout", 15*time.Second, "timeout for word-pair generation before falling back (env: UNDERCOVER_WORD_TIMEOUT)")

	cmd.AddCommand(newHostCmd(cfg), newJoinCmd(cfg), newLocalCmd(cfg))

	bindEnv(v, pf)
	for _, sub := range cmd.Commands() {
		bindEnv(v, sub.Flags())
	}

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("undercover v{{.Version}}\n")

	return cmd
}

func newHostCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Create an online lobby and host it from this device",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return runHost(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: UNDERCOVER_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: UNDERCOVER_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: UNDERCOVER_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: UNDERCOVER_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: UNDERCOVER_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: UNDERCOVER_TLS_KEY)")

	return cmd
}

func newJoinCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "join <code-or-url>",
		Short: "Join an existing lobby as a follower",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(cmd.Context(), cfg, args[0])
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.server, "server", "s", "", "address of the hosting device, e.g. host:8080 (env: UNDERCOVER_SERVER)")

	return cmd
}

func newLocalCmd(cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "local",
		Short: "Play pass-and-play on this one device",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocal(cmd.Context(), cfg)
		},
	}
}

// bindEnv bridges flags to UNDERCOVER_* environment variables: any flag
// not set on the command line picks up its value from the environment.
func bindEnv(v *viper.Viper, fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

// runHost creates the lobby, serves its websocket endpoint, and drives
// the leader's terminal UI until the leader quits.
func runHost(ctx context.Context, cfg *Config) error {
	nickname, err := resolveNickname(cfg)
	if err != nil {
		return err
	}

	sess := newLobbySession(cfg, nickname)
	defer sess.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 1)
	go func() {
		errs <- ServeLobby(ctx, cfg, sess)
	}()

	uiDone := make(chan error, 1)
	go func() {
		uiDone <- runHostUI(ctx, cfg, sess)
	}()

	select {
	case err := <-errs:
		return err
	case err := <-uiDone:
		cancel()
		<-errs
		return err
	}
}

func runJoin(ctx context.Context, cfg *Config, arg string) error {
	nickname, err := resolveNickname(cfg)
	if err != nil {
		return err
	}

	code := parseJoinCode(arg)
	server := cfg.server
	if server == "" && strings.Contains(arg, "://") {
		server = arg
	}
	if server == "" {
		return errors.New("no server address: pass --server, or paste the full share URL")
	}

	follower, err := JoinLobby(ctx, cfg, server, code, nickname)
	if err != nil {
		return fmt.Errorf("could not connect: %w (check the code and server address)", err)
	}
	defer follower.Close()

	return runFollowerUI(ctx, cfg, follower)
}

func runLocal(ctx context.Context, cfg *Config) error {
	nickname, err := resolveNickname(cfg)
	if err != nil {
		return err
	}

	sess := newLocalSession(cfg, nickname)
	defer sess.Close()

	return runLocalUI(ctx, cfg, sess)
}
