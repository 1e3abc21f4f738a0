package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Session struct {
	AutoRejoin           bool          `mapstructure:"auto_rejoin"`
	KeepAliveMinSecs     int           `mapstructure:"keepalive_min_secs"`
	ReconnectRetries     int           `mapstructure:"reconnect_retries"`
	ReconnectBackoff     time.Duration `mapstructure:"reconnect_backoff"`
	RenegotiationRetries int           `mapstructure:"renegotiation_retries"`
	RequestTimeout       time.Duration `mapstructure:"request_timeout"`
	InfoRetryMin         time.Duration `mapstructure:"info_retry_min"`
	InfoRetryMax         time.Duration `mapstructure:"info_retry_max"`
	StatsInterval        time.Duration `mapstructure:"stats_interval"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	RateLimit  int           `mapstructure:"rate_limit"`
	RateWindow time.Duration `mapstructure:"rate_window"`

	LocusURL       string   `mapstructure:"locus_url"`
	MeetingInfoURL string   `mapstructure:"meeting_info_url"`
	DeviceURL      string   `mapstructure:"device_url"`
	EventURL       string   `mapstructure:"event_url"`
	LogUploadURL   string   `mapstructure:"log_upload_url"`
	AccessToken    string   `mapstructure:"access_token"`
	ICEServers     []string `mapstructure:"ice_servers"`

	Session Session `mapstructure:"session"`
}

// Flags registers the command-line overrides on fs.
func Flags(fs *pflag.FlagSet) {
	fs.String("config", "", "path to a config file (default config/config.$CONFIG_ENV.yaml)")
	fs.Int("port", 0, "control API port")
	fs.String("mode", "", "gin mode: debug or release")
	fs.Bool("auto-rejoin", false, "rejoin automatically after an inactivity drop")
}

// Load reads the yaml config chosen by --config or CONFIG_ENV, applies
// defaults, then flags set on fs. fs may be nil.
func Load(fs *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)
	if fs != nil {
		if f, err := fs.GetString("config"); err == nil && f != "" {
			fileName = f
		}
	}

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("read_limit", 1<<20)
	v.SetDefault("ping_period", "30s")
	v.SetDefault("rate_limit", 30)
	v.SetDefault("rate_window", "10s")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("session.auto_rejoin", false)
	v.SetDefault("session.keepalive_min_secs", 2)
	v.SetDefault("session.reconnect_retries", 3)
	v.SetDefault("session.reconnect_backoff", "2s")
	v.SetDefault("session.renegotiation_retries", 1)
	v.SetDefault("session.request_timeout", "15s")
	v.SetDefault("session.info_retry_min", "5s")
	v.SetDefault("session.info_retry_max", "30s")
	v.SetDefault("session.stats_interval", "5s")

	if fs != nil {
		bind := map[string]string{
			"port":                "port",
			"mode":                "mode",
			"session.auto_rejoin": "auto-rejoin",
		}
		for key, flag := range bind {
			if f := fs.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Session.InfoRetryMin > cfg.Session.InfoRetryMax {
		return nil, fmt.Errorf("session.info_retry_min (%s) exceeds session.info_retry_max (%s)",
			cfg.Session.InfoRetryMin, cfg.Session.InfoRetryMax)
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Locus: %s\n", cfg.Mode, cfg.Port, cfg.LocusURL)
	return &cfg, nil
}
