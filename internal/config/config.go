package config

import (
	"strings"

	"github.com/spf13/viper"
)

var envKeyReplacer = strings.NewReplacer(".", "_")

type Config struct {
	App struct {
		Env string
	} `mapstructure:"app"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN string
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Notifier struct {
		Workers    int `mapstructure:"workers"`
		PollMillis int `mapstructure:"poll_millis"`
	} `mapstructure:"notifier"`

	Artifacts struct {
		QRServiceURL string `mapstructure:"qr_service_url"`
	} `mapstructure:"artifacts"`
}

// Load reads the optional config file and environment overrides (ECONEXUS_*).
// The DSN has no default; main decides whether its absence is fatal.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ECONEXUS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(envKeyReplacer)

	v.SetDefault("app.env", "development")
	v.SetDefault("http.addr", ":8080")
	// Empty defaults register the keys so environment-only values survive
	// Unmarshal.
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("notifier.workers", 2)
	v.SetDefault("notifier.poll_millis", 500)
	v.SetDefault("artifacts.qr_service_url", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
