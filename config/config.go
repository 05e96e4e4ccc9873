// Package config loads environment variables and provides a typed Config used across the bot.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Transport credentials are checked separately by Validate.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Transport names accepted by CHAT_TRANSPORT.
const (
	TransportIRC    = "irc"
	TransportTwitch = "twitch"
	TransportBoth   = "both"
)

// IRC holds the settings for a classic IRC network.
type IRC struct {
	Server   string
	Port     int
	TLS      bool
	Nick     string
	User     string
	RealName string
	Channels []string
	SASLUser string
	SASLPass string
}

// Twitch holds the settings for Twitch chat.
type Twitch struct {
	Channels    []string
	BotUsername string
	OAuthToken  string
}

// Sed tunes the correction engine.
type Sed struct {
	Binary        string
	Timeout       time.Duration
	HistorySize   int
	MaxExtraChars int
	MaxLength     int
}

// URLInfo controls link title announcements.
type URLInfo struct {
	Enabled     bool
	Timeout     time.Duration
	UserAgent   string
	IgnoreNicks []string
	IgnoreHosts []string
}

type Config struct {
	Transport     string
	CommandPrefix string

	IRC     IRC
	Twitch  Twitch
	Sed     Sed
	URLInfo URLInfo

	// Database; empty disables persistence-backed plugins.
	DBDsn string

	HTTPAddr string
}

// Load reads environment variables and applies defaults. It fails only on values that are
// present but malformed; use Validate() before connecting anywhere.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Transport = strings.ToLower(strings.TrimSpace(os.Getenv("CHAT_TRANSPORT")))
	if cfg.Transport == "" {
		cfg.Transport = TransportIRC
	}
	cfg.CommandPrefix = os.Getenv("BOT_COMMAND_PREFIX")
	if cfg.CommandPrefix == "" {
		cfg.CommandPrefix = "."
	}

	// IRC
	cfg.IRC.Server = os.Getenv("IRC_SERVER")
	port, err := intEnv("IRC_PORT", 6697)
	if err != nil {
		return nil, err
	}
	cfg.IRC.Port = port
	tls, err := boolEnv("IRC_TLS", true)
	if err != nil {
		return nil, err
	}
	cfg.IRC.TLS = tls
	cfg.IRC.Nick = os.Getenv("IRC_NICK")
	if cfg.IRC.Nick == "" {
		cfg.IRC.Nick = "cappuccino"
	}
	cfg.IRC.User = os.Getenv("IRC_USER")
	if cfg.IRC.User == "" {
		cfg.IRC.User = cfg.IRC.Nick
	}
	cfg.IRC.RealName = os.Getenv("IRC_REALNAME")
	if cfg.IRC.RealName == "" {
		cfg.IRC.RealName = cfg.IRC.Nick
	}
	cfg.IRC.Channels = listEnv("IRC_CHANNELS")
	cfg.IRC.SASLUser = os.Getenv("IRC_SASL_USER")
	cfg.IRC.SASLPass = os.Getenv("IRC_SASL_PASS")

	// Twitch
	cfg.Twitch.Channels = listEnv("TWITCH_CHANNELS")
	cfg.Twitch.BotUsername = os.Getenv("TWITCH_BOT_USERNAME")
	cfg.Twitch.OAuthToken = os.Getenv("TWITCH_OAUTH_TOKEN")

	// Sed
	cfg.Sed.Binary = os.Getenv("SED_BINARY")
	if cfg.Sed.Binary == "" {
		cfg.Sed.Binary = "sed"
	}
	if cfg.Sed.Timeout, err = durationEnv("SED_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.Sed.HistorySize, err = intEnv("SED_HISTORY_SIZE", 25); err != nil {
		return nil, err
	}
	if cfg.Sed.MaxExtraChars, err = intEnv("SED_MAX_EXTRA_CHARS", 32); err != nil {
		return nil, err
	}
	if cfg.Sed.MaxLength, err = intEnv("SED_MAX_LENGTH", 256); err != nil {
		return nil, err
	}

	// URL titles
	if cfg.URLInfo.Enabled, err = boolEnv("URLINFO_ENABLED", true); err != nil {
		return nil, err
	}
	if cfg.URLInfo.Timeout, err = durationEnv("URLINFO_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	cfg.URLInfo.UserAgent = os.Getenv("URLINFO_USER_AGENT")
	cfg.URLInfo.IgnoreNicks = listEnv("URLINFO_IGNORE_NICKS")
	cfg.URLInfo.IgnoreHosts = listEnv("URLINFO_IGNORE_HOSTS")

	// DB
	cfg.DBDsn = os.Getenv("DB_DSN")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// UseIRC reports whether the IRC transport is selected.
func (c *Config) UseIRC() bool {
	return c.Transport == TransportIRC || c.Transport == TransportBoth
}

// UseTwitch reports whether the Twitch transport is selected.
func (c *Config) UseTwitch() bool {
	return c.Transport == TransportTwitch || c.Transport == TransportBoth
}

// Validate checks the fields required by the selected transports.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportIRC, TransportTwitch, TransportBoth:
	default:
		return fmt.Errorf("invalid CHAT_TRANSPORT %q: want irc, twitch or both", c.Transport)
	}
	if c.UseIRC() {
		if c.IRC.Server == "" {
			return fmt.Errorf("missing irc env: require IRC_SERVER")
		}
		if c.IRC.Port <= 0 || c.IRC.Port > 65535 {
			return fmt.Errorf("invalid IRC_PORT %d", c.IRC.Port)
		}
		if (c.IRC.SASLUser == "") != (c.IRC.SASLPass == "") {
			return fmt.Errorf("IRC_SASL_USER and IRC_SASL_PASS must be set together")
		}
	}
	if c.UseTwitch() {
		if len(c.Twitch.Channels) == 0 || c.Twitch.BotUsername == "" || c.Twitch.OAuthToken == "" {
			return fmt.Errorf("missing twitch env: require TWITCH_CHANNELS, TWITCH_BOT_USERNAME, TWITCH_OAUTH_TOKEN")
		}
	}
	if c.CommandPrefix == "" {
		return fmt.Errorf("BOT_COMMAND_PREFIX must not be empty")
	}
	for _, limit := range []struct {
		key string
		v   int64
	}{
		{"SED_TIMEOUT", int64(c.Sed.Timeout)},
		{"SED_HISTORY_SIZE", int64(c.Sed.HistorySize)},
		{"SED_MAX_EXTRA_CHARS", int64(c.Sed.MaxExtraChars)},
		{"SED_MAX_LENGTH", int64(c.Sed.MaxLength)},
		{"URLINFO_TIMEOUT", int64(c.URLInfo.Timeout)},
	} {
		if limit.v <= 0 {
			return fmt.Errorf("%s must be positive", limit.key)
		}
	}
	return nil
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func boolEnv(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (duration like 5s): %w", key, err)
	}
	return d, nil
}

// listEnv splits a comma separated variable, dropping blanks.
func listEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
