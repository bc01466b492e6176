// Package config holds the viper defaults tree and the validated settings
// each command reads from it.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// LoadConfig reads the optional config file. Without an explicit file it
// looks for .ecomprobe.yaml; the dot keeps the built binary from matching.
// A missing file is not an error.
func LoadConfig(file string) error {
	SetDefaultConfig()
	if file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName(".ecomprobe")
		viper.SetConfigType("yaml")
		viper.AddConfigPath("/etc/ecomprobe/")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Debug().Msg("Config file not found, using defaults")
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	log.Debug().Str("file", viper.ConfigFileUsed()).Msg("Loaded config file")
	return nil
}

func SetDefaultConfig() {
	viper.SetDefault("output", "security-reports")
	viper.SetDefault("debug", false)
	viper.SetDefault("log.file", "security-tests.log")

	// Scan
	viper.SetDefault("scan.url", "http://34.44.242.122:8080")
	viper.SetDefault("scan.test", "all")
	viper.SetDefault("scan.timeout", 30*time.Second)
	viper.SetDefault("scan.registry", "")

	// Report
	viper.SetDefault("report.from", "")
	viper.SetDefault("report.format", "html")

	// Load
	viper.SetDefault("load.profile", "realistic")
	viper.SetDefault("load.host", "http://localhost:8700")
	viper.SetDefault("load.users", 10)
	viper.SetDefault("load.duration", time.Minute)
	viper.SetDefault("load.rps", 0.0)
	viper.SetDefault("load.timeout", 30*time.Second)
	viper.SetDefault("load.metrics_addr", "")
}

type Scan struct {
	URL      string        `validate:"required,url"`
	Test     string        `validate:"required,oneof=sql xss auth cors headers info methods all"`
	Timeout  time.Duration `validate:"gt=0"`
	Output   string        `validate:"required"`
	Registry string
}

type Report struct {
	From    string   `validate:"required"`
	Formats []string `validate:"min=1,dive,oneof=html pdf json"`
}

type Load struct {
	Profile     string        `validate:"required,oneof=users credentials addresses mixed database memory errors realistic"`
	Host        string        `validate:"required,url"`
	Users       int           `validate:"gt=0"`
	Duration    time.Duration `validate:"gt=0"`
	RPS         float64       `validate:"gte=0"`
	Timeout     time.Duration `validate:"gt=0"`
	MetricsAddr string        `validate:"omitempty,hostname_port"`
	Output      string        `validate:"required"`
}

var validate = validator.New()

// Validate checks v against its struct tags.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func GetScan() (Scan, error) {
	c := Scan{
		URL:      viper.GetString("scan.url"),
		Test:     viper.GetString("scan.test"),
		Timeout:  viper.GetDuration("scan.timeout"),
		Registry: viper.GetString("scan.registry"),
		Output:   viper.GetString("output"),
	}
	return c, Validate(c)
}

func GetReport() (Report, error) {
	c := Report{
		From:    viper.GetString("report.from"),
		Formats: splitList(viper.GetString("report.format")),
	}
	return c, Validate(c)
}

func GetLoad() (Load, error) {
	c := Load{
		Profile:     viper.GetString("load.profile"),
		Host:        viper.GetString("load.host"),
		Users:       viper.GetInt("load.users"),
		Duration:    viper.GetDuration("load.duration"),
		RPS:         viper.GetFloat64("load.rps"),
		Timeout:     viper.GetDuration("load.timeout"),
		MetricsAddr: viper.GetString("load.metrics_addr"),
		Output:      viper.GetString("output"),
	}
	return c, Validate(c)
}

// splitList parses a comma separated flag value, lowercased and without blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
