package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/hamed0406/masterstatus/internal/domain"
)

const (
	DefaultDirectoryURL = "https://api.brandmeister.network/v2/master"
	DefaultTCPPort      = 50180
	DefaultReportTitle  = "BrandMeister Master Status"
)

type Config struct {
	// Directory source
	DirectoryURL     string        `mapstructure:"directory_url"`
	DirectoryTimeout time.Duration `mapstructure:"directory_timeout"`

	// Probes
	TCPPort              int           `mapstructure:"tcp_port"`
	TCPTimeout           time.Duration `mapstructure:"tcp_timeout"`
	HTTPTimeout          time.Duration `mapstructure:"http_timeout"`
	ICMPTimeout          time.Duration `mapstructure:"icmp_timeout"`
	HTTPScheme           string        `mapstructure:"http_scheme"` // "http" | "https"
	HTTPPath             string        `mapstructure:"http_path"`
	VerifyTLS            bool          `mapstructure:"verify_tls"`
	ICMPPrivileged       bool          `mapstructure:"icmp_privileged"` // raw socket instead of datagram ICMP
	Protocols            []string      `mapstructure:"protocols"`
	MaxConcurrentServers int           `mapstructure:"max_concurrent_servers"`
	ScanDeadline         time.Duration `mapstructure:"scan_deadline"` // 0 disables the overall deadline
	ScanInterval         time.Duration `mapstructure:"scan_interval"` // service mode; 0 disables rescans

	// Report output
	OutputDir     string   `mapstructure:"output_dir"`
	OutputFormats []string `mapstructure:"output_formats"`
	ReportTitle   string   `mapstructure:"report_title"`

	// Service
	Addr           string `mapstructure:"addr"`
	RateLimitRPM   int    `mapstructure:"rate_limit_rpm"`
	RateLimitBurst int    `mapstructure:"rate_limit_burst"`

	// Logging
	LogDir     string `mapstructure:"log_dir"`
	LogLevel   string `mapstructure:"log_level"`
	LogConsole bool   `mapstructure:"log_console"`
}

var knownFormats = []interface{}{"html", "json", "text", "yaml", "prom"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("directory_url", DefaultDirectoryURL)
	v.SetDefault("directory_timeout", 10*time.Second)
	v.SetDefault("tcp_port", DefaultTCPPort)
	v.SetDefault("tcp_timeout", 3*time.Second)
	v.SetDefault("http_timeout", 3*time.Second)
	v.SetDefault("icmp_timeout", 3*time.Second)
	v.SetDefault("http_scheme", "http")
	v.SetDefault("http_path", "/")
	v.SetDefault("verify_tls", true)
	v.SetDefault("icmp_privileged", false)
	v.SetDefault("protocols", []string{"tcp", "http", "icmp"})
	v.SetDefault("max_concurrent_servers", 32)
	v.SetDefault("scan_deadline", time.Duration(0))
	v.SetDefault("scan_interval", 5*time.Minute)
	v.SetDefault("output_dir", ".")
	v.SetDefault("output_formats", []string{"html"})
	v.SetDefault("report_title", DefaultReportTitle)
	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("rate_limit_rpm", 120)
	v.SetDefault("rate_limit_burst", 60)
	v.SetDefault("log_dir", "logs")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_console", false)
}

// newViper builds an isolated viper instance: defaults, then the optional
// YAML file at path, then environment variables (TCP_PORT, VERIFY_TLS, ...).
func newViper(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
	}
	return v
}

// Load reads configuration. An empty path means environment and defaults only.
func Load(path string) (Config, error) {
	v := newViper(path)
	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.Protocols = splitList(cfg.Protocols)
	cfg.OutputFormats = splitList(cfg.OutputFormats)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.DirectoryURL, validation.Required, is.URL),
		validation.Field(&c.DirectoryTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.TCPPort, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.TCPTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.HTTPTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.ICMPTimeout, validation.Required, validation.Min(time.Millisecond)),
		validation.Field(&c.HTTPScheme, validation.Required, validation.In("http", "https")),
		validation.Field(&c.HTTPPath, validation.Required, validation.By(validatePath)),
		validation.Field(&c.Protocols, validation.Required, validation.Each(validation.By(validateProtocol))),
		validation.Field(&c.MaxConcurrentServers, validation.Required, validation.Min(1)),
		validation.Field(&c.ScanDeadline, validation.Min(time.Duration(0))),
		validation.Field(&c.ScanInterval, validation.Min(time.Duration(0))),
		validation.Field(&c.OutputFormats, validation.Each(validation.In(knownFormats...))),
		validation.Field(&c.LogLevel, validation.Required, validation.In("debug", "info", "warn", "error")),
		validation.Field(&c.RateLimitRPM, validation.Min(0)),
		validation.Field(&c.RateLimitBurst, validation.Min(0)),
	)
}

func validatePath(value interface{}) error {
	p, _ := value.(string)
	if !strings.HasPrefix(p, "/") {
		return errors.New("must start with /")
	}
	return nil
}

func validateProtocol(value interface{}) error {
	s, _ := value.(string)
	_, err := domain.ParseProtocol(s)
	return err
}

// EnabledProtocols returns the configured protocols in canonical order without duplicates.
func (c Config) EnabledProtocols() []domain.Protocol {
	want := make(map[domain.Protocol]bool, len(c.Protocols))
	for _, s := range c.Protocols {
		if p, err := domain.ParseProtocol(s); err == nil {
			want[p] = true
		}
	}
	out := make([]domain.Protocol, 0, len(want))
	for _, p := range domain.AllProtocols {
		if want[p] {
			out = append(out, p)
		}
	}
	return out
}
