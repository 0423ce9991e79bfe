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
	bind        string
	codeLength  int
	idleTimeout time.Duration
	maxWords    int

	maxMessageSize int64
	port        int
	prefix      string
	profile     bool
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
	if c.codeLength < 5 || c.codeLength > 8 {
		return fmt.Errorf("invalid code length (must be between 5-8 inclusive): %d", c.codeLength)
	}
	if c.idleTimeout <= 0 {
		return fmt.Errorf("invalid idle timeout (must be positive): %s", c.idleTimeout)
	}
	if c.maxWords < 1 {
		return fmt.Errorf("invalid word limit (must be at least 1): %d", c.maxWords)
	}
	if minimum := int64(c.maxWords) * maxTokenBytes; c.maxMessageSize < minimum {
		return fmt.Errorf("invalid message size limit (must fit %d words, at least %d): %d", c.maxWords, minimum, c.maxMessageSize)
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
	v.SetEnvPrefix("WORDCOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "wordcoop",
		Short:         "Cooperative word-guessing sessions over WebSockets.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
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

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: WORDCOOP_BIND)")
	fs.IntVar(&cfg.codeLength, "code-length", 5, "length of generated game codes, 5-8 (env: WORDCOOP_CODE_LENGTH)")
	fs.DurationVar(&cfg.idleTimeout, "idle-timeout", 24*time.Hour, "time before games with nobody connected are deleted (env: WORDCOOP_IDLE_TIMEOUT)")
	fs.Int64Var(&cfg.maxMessageSize, "max-message-size", 1<<20, "maximum size in bytes of a single inbound message (env: WORDCOOP_MAX_MESSAGE_SIZE)")
	fs.IntVar(&cfg.maxWords, "max-words", 75, "maximum number of words read from a host's list (env: WORDCOOP_MAX_WORDS)")
	fs.IntVarP(&cfg.port, "port", "p", 8754, "port to listen on (env: WORDCOOP_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: WORDCOOP_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: WORDCOOP_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: WORDCOOP_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: WORDCOOP_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: WORDCOOP_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: WORDCOOP_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("wordcoop v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
