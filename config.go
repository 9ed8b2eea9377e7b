/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Seednode/jeopardy/trivia"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	apiRetries     uint
	apiTimeout     time.Duration
	apiURL         string
	batchSize      int
	bind           string
	buildTimeout   time.Duration
	categories     int
	maxBuilds      int
	maxOffset      int
	port           int
	prefix         string
	profile        bool
	questions      int
	sessionTimeout time.Duration
	tlsCert        string
	tlsKey         string
	verbose        bool
	version        bool

	logger *zap.Logger
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.categories < 1 {
		return fmt.Errorf("invalid category count (must be at least 1): %d", c.categories)
	}
	if c.questions < 1 {
		return fmt.Errorf("invalid question count (must be at least 1): %d", c.questions)
	}
	if c.batchSize < c.categories {
		return fmt.Errorf("invalid batch size (must be at least --categories): %d", c.batchSize)
	}
	if c.maxOffset < 1 {
		return fmt.Errorf("invalid max offset (must be at least 1): %d", c.maxOffset)
	}
	if c.maxBuilds < 1 {
		return fmt.Errorf("invalid max builds (must be at least 1): %d", c.maxBuilds)
	}
	if c.apiTimeout <= 0 || c.buildTimeout <= 0 {
		return errors.New("--api-timeout and --build-timeout must be positive")
	}
	if c.sessionTimeout < 0 || (c.sessionTimeout > 0 && c.sessionTimeout < time.Second) {
		return fmt.Errorf("invalid session timeout (must be 0 or at least 1s): %s", c.sessionTimeout)
	}
	if c.apiRetries < 1 {
		return fmt.Errorf("invalid api retries (must be at least 1): %d", c.apiRetries)
	}

	u, err := url.Parse(c.apiURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api url: %q", c.apiURL)
	}

	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func (c *Config) builderOptions() trivia.Options {
	return trivia.Options{
		CategoryCount: c.categories,
		QuestionCount: c.questions,
		BatchSize:     c.batchSize,
		MaxOffset:     c.maxOffset,
	}
}

func newCmd(cfg *Config) *cobra.Command {
	// Values from a .env file in the working directory count as environment.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("JEOPARDY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "jeopardy",
		Short:         "Serves a browser trivia board built from a remote clue archive.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cfg.verbose)
			if err != nil {
				return err
			}
			cfg.logger = logger

			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer func() { _ = cfg.logger.Sync() }()

			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.UintVar(&cfg.apiRetries, "api-retries", 3, "attempts per trivia api request (env: JEOPARDY_API_RETRIES)")
	fs.DurationVar(&cfg.apiTimeout, "api-timeout", 10*time.Second, "timeout for each trivia api request (env: JEOPARDY_API_TIMEOUT)")
	fs.StringVar(&cfg.apiURL, "api-url", trivia.DefaultBaseURL, "base url of the trivia api (env: JEOPARDY_API_URL)")
	fs.IntVar(&cfg.batchSize, "batch-size", trivia.DefaultBatchSize, "category names to request per board (env: JEOPARDY_BATCH_SIZE)")
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: JEOPARDY_BIND)")
	fs.DurationVar(&cfg.buildTimeout, "build-timeout", 2*time.Minute, "time allowed to build a single board (env: JEOPARDY_BUILD_TIMEOUT)")
	fs.IntVar(&cfg.categories, "categories", trivia.DefaultCategoryCount, "categories per board (env: JEOPARDY_CATEGORIES)")
	fs.IntVar(&cfg.maxBuilds, "max-builds", 4, "boards that may be built at the same time across all games (env: JEOPARDY_MAX_BUILDS)")
	fs.IntVar(&cfg.maxOffset, "max-offset", trivia.DefaultMaxOffset, "upper bound of the random category list offset (env: JEOPARDY_MAX_OFFSET)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: JEOPARDY_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: JEOPARDY_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: JEOPARDY_PROFILE)")
	fs.IntVar(&cfg.questions, "questions", trivia.DefaultQuestionCount, "clues per category (env: JEOPARDY_QUESTIONS)")
	fs.DurationVar(&cfg.sessionTimeout, "session-timeout", 60*time.Minute, "time before idle games are ended (env: JEOPARDY_SESSION_TIMEOUT)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: JEOPARDY_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: JEOPARDY_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: JEOPARDY_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: JEOPARDY_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("jeopardy v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
