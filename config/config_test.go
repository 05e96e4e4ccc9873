package config

import (
	"strings"
	"testing"
	"time"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CHAT_TRANSPORT", "BOT_COMMAND_PREFIX",
		"IRC_SERVER", "IRC_PORT", "IRC_TLS", "IRC_NICK", "IRC_USER", "IRC_REALNAME",
		"IRC_CHANNELS", "IRC_SASL_USER", "IRC_SASL_PASS",
		"TWITCH_CHANNELS", "TWITCH_BOT_USERNAME", "TWITCH_OAUTH_TOKEN",
		"SED_BINARY", "SED_TIMEOUT", "SED_HISTORY_SIZE", "SED_MAX_EXTRA_CHARS", "SED_MAX_LENGTH",
		"URLINFO_ENABLED", "URLINFO_TIMEOUT", "URLINFO_USER_AGENT", "URLINFO_IGNORE_NICKS", "URLINFO_IGNORE_HOSTS",
		"DB_DSN", "HTTP_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Transport != TransportIRC {
		t.Errorf("Transport = %q, want irc", cfg.Transport)
	}
	if cfg.CommandPrefix != "." {
		t.Errorf("CommandPrefix = %q, want .", cfg.CommandPrefix)
	}
	if cfg.IRC.Port != 6697 || !cfg.IRC.TLS {
		t.Errorf("IRC port/tls = %d/%v, want 6697/true", cfg.IRC.Port, cfg.IRC.TLS)
	}
	if cfg.IRC.Nick != "cappuccino" || cfg.IRC.User != "cappuccino" || cfg.IRC.RealName != "cappuccino" {
		t.Errorf("unexpected identity defaults: %+v", cfg.IRC)
	}
	want := Sed{Binary: "sed", Timeout: 5 * time.Second, HistorySize: 25, MaxExtraChars: 32, MaxLength: 256}
	if cfg.Sed != want {
		t.Errorf("Sed = %+v, want %+v", cfg.Sed, want)
	}
	if !cfg.URLInfo.Enabled || cfg.URLInfo.Timeout != 5*time.Second || cfg.URLInfo.UserAgent != "" {
		t.Errorf("URLInfo = %+v", cfg.URLInfo)
	}
	if cfg.DBDsn != "" {
		t.Errorf("DBDsn = %q, want empty", cfg.DBDsn)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAT_TRANSPORT", "Both")
	t.Setenv("IRC_CHANNELS", "#go, #sed,,")
	t.Setenv("IRC_TLS", "false")
	t.Setenv("IRC_PORT", "6667")
	t.Setenv("SED_TIMEOUT", "250ms")
	t.Setenv("SED_HISTORY_SIZE", "10")
	t.Setenv("URLINFO_ENABLED", "false")
	t.Setenv("URLINFO_IGNORE_NICKS", "feedbot, rssbot")
	t.Setenv("URLINFO_IGNORE_HOSTS", "localhost")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !cfg.UseIRC() || !cfg.UseTwitch() {
		t.Errorf("both transports should be selected, got %q", cfg.Transport)
	}
	if strings.Join(cfg.IRC.Channels, "|") != "#go|#sed" {
		t.Errorf("Channels = %v", cfg.IRC.Channels)
	}
	if cfg.IRC.TLS || cfg.IRC.Port != 6667 {
		t.Errorf("IRC = %+v", cfg.IRC)
	}
	if cfg.Sed.Timeout != 250*time.Millisecond || cfg.Sed.HistorySize != 10 {
		t.Errorf("Sed = %+v", cfg.Sed)
	}
	if cfg.URLInfo.Enabled || strings.Join(cfg.URLInfo.IgnoreNicks, "|") != "feedbot|rssbot" || strings.Join(cfg.URLInfo.IgnoreHosts, "|") != "localhost" {
		t.Errorf("URLInfo = %+v", cfg.URLInfo)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := map[string]string{
		"IRC_PORT":            "sixty",
		"IRC_TLS":             "maybe",
		"SED_TIMEOUT":         "5",
		"SED_HISTORY_SIZE":    "lots",
		"SED_MAX_EXTRA_CHARS": "1.5",
		"SED_MAX_LENGTH":      "x",
		"URLINFO_ENABLED":     "sometimes",
		"URLINFO_TIMEOUT":     "soon",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, val)
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), key) {
				t.Errorf("Load() error = %v, want mention of %s", err, key)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
	}{
		{"irc ready", map[string]string{"IRC_SERVER": "irc.libera.chat"}, false},
		{"irc missing server", nil, true},
		{"irc sasl half set", map[string]string{"IRC_SERVER": "irc.libera.chat", "IRC_SASL_USER": "bot"}, true},
		{"twitch ready", map[string]string{"CHAT_TRANSPORT": "twitch", "TWITCH_CHANNELS": "chan", "TWITCH_BOT_USERNAME": "bot", "TWITCH_OAUTH_TOKEN": "oauth:token"}, false},
		{"twitch missing token", map[string]string{"CHAT_TRANSPORT": "twitch", "TWITCH_CHANNELS": "chan", "TWITCH_BOT_USERNAME": "bot"}, true},
		{"both needs irc too", map[string]string{"CHAT_TRANSPORT": "both", "TWITCH_CHANNELS": "chan", "TWITCH_BOT_USERNAME": "bot", "TWITCH_OAUTH_TOKEN": "oauth:token"}, true},
		{"unknown transport", map[string]string{"CHAT_TRANSPORT": "discord"}, true},
		{"zero history", map[string]string{"IRC_SERVER": "irc.libera.chat", "SED_HISTORY_SIZE": "0"}, true},
		{"zero extra chars", map[string]string{"IRC_SERVER": "irc.libera.chat", "SED_MAX_EXTRA_CHARS": "0"}, true},
		{"negative max length", map[string]string{"IRC_SERVER": "irc.libera.chat", "SED_MAX_LENGTH": "-1"}, true},
		{"zero url timeout", map[string]string{"IRC_SERVER": "irc.libera.chat", "URLINFO_TIMEOUT": "0s"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() error: %v", err)
			}
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
