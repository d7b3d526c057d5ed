// Package config loads the configuration of the checks from an optional YAML
// file, an optional .env file and the process environment, in that order of
// increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var (
	errBaseURLRequired = errors.New("API_BASE_URL is required")
	errBaseURLInvalid  = errors.New("API_BASE_URL must be an absolute http(s) URL")
)

// Config holds the application configuration
type Config struct {
	BaseURL          string        `yaml:"api_base_url"`
	AdminEmail       string        `yaml:"admin_email"`
	AdminPassword    string        `yaml:"admin_password"`
	TestUserPassword string        `yaml:"test_user_password"`
	TestUserName     string        `yaml:"test_user_name"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`

	ExpectedCategoryCount int  `yaml:"expected_category_count"`
	StrictExpectations    bool `yaml:"strict_expectations"`

	Email Email `yaml:"email"`

	ElasticsearchURL   string `yaml:"elasticsearch_url"`
	ElasticsearchIndex string `yaml:"elasticsearch_index"`

	SlackToken     string `yaml:"slack_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	LogLevel string `yaml:"log_level"`
}

type Email struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	Username    string        `yaml:"username"`
	Password    string        `yaml:"password"`
	From        string        `yaml:"from"`
	SMTPTimeout time.Duration `yaml:"smtp_timeout"`
}

func Default() *Config {
	return &Config{
		RequestTimeout:        30 * time.Second,
		ExpectedCategoryCount: 8,
		Email: Email{
			Host:        "smtp.gmail.com",
			Port:        587,
			SMTPTimeout: 30 * time.Second,
		},
		ElasticsearchIndex: "backend-logs-*",
		LogLevel:           "info",
	}
}

// Load reads the configuration. Empty paths are skipped, a missing .env file
// is tolerated, a missing YAML file is not.
func Load(yamlFile, envFile string, log logrus.FieldLogger) (*Config, error) {
	log = log.WithField("component", "config")

	cfg := Default()

	if yamlFile != "" {
		data, err := os.ReadFile(yamlFile)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", yamlFile, err)
		}

		log.WithField("path", yamlFile).Debug("loaded config file")
	}

	vars := map[string]string{}

	if envFile != "" {
		env, err := godotenv.Read(envFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.WithField("path", envFile).Debug("no env file")
		case err != nil:
			return nil, fmt.Errorf("error loading %s: %w", envFile, err)
		default:
			vars = env
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}

		v, ok := vars[key]

		return v, ok && v != ""
	}

	if err := cfg.apply(lookup); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) apply(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"API_BASE_URL":        &c.BaseURL,
		"ADMIN_EMAIL":         &c.AdminEmail,
		"ADMIN_PASSWORD":      &c.AdminPassword,
		"TEST_USER_PASSWORD":  &c.TestUserPassword,
		"TEST_USER_NAME":      &c.TestUserName,
		"EMAIL_HOST":          &c.Email.Host,
		"EMAIL_USERNAME":      &c.Email.Username,
		"EMAIL_PASSWORD":      &c.Email.Password,
		"EMAIL_FROM":          &c.Email.From,
		"ELASTICSEARCH_URL":   &c.ElasticsearchURL,
		"ELASTICSEARCH_INDEX": &c.ElasticsearchIndex,
		"SLACK_TOKEN":         &c.SlackToken,
		"SLACK_CHANNEL_ID":    &c.SlackChannelID,
		"LOG_LEVEL":           &c.LogLevel,
	}

	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	for key, dst := range map[string]*int{
		"EMAIL_PORT":              &c.Email.Port,
		"EXPECTED_CATEGORY_COUNT": &c.ExpectedCategoryCount,
	} {
		v, ok := lookup(key)
		if !ok {
			continue
		}

		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
	}

	for key, dst := range map[string]*time.Duration{
		"REQUEST_TIMEOUT": &c.RequestTimeout,
		"SMTP_TIMEOUT":    &c.Email.SMTPTimeout,
	} {
		v, ok := lookup(key)
		if !ok {
			continue
		}

		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = d
	}

	if v, ok := lookup("STRICT_EXPECTATIONS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid STRICT_EXPECTATIONS: %w", err)
		}
		c.StrictExpectations = b
	}

	return nil
}

// Validate checks the settings needed for a suite run.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return errBaseURLRequired
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errBaseURLInvalid
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}

	return nil
}

// ElasticsearchAddresses splits ELASTICSEARCH_URL at commas.
func (c *Config) ElasticsearchAddresses() []string {
	addrs := []string{}

	for _, a := range strings.Split(c.ElasticsearchURL, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}

	return addrs
}

func mask(secret string) string {
	if secret == "" {
		return "(not set)"
	}

	return "********"
}

func orNotSet(s string) string {
	if s == "" {
		return "(not set)"
	}

	return s
}

func (c *Config) String() string {
	return fmt.Sprintf(`Current Configuration:
======================
API Base URL:             %s
Admin Email:              %s
Admin Password:           %s
Test User Password:       %s
Test User Name:           %s
Request Timeout:          %s
Expected Categories:      %d
Strict Expectations:      %t
Email Host:               %s
Email Port:               %d
Email Username:           %s
Email Password:           %s (%d characters)
Email From:               %s
SMTP Timeout:             %s
Elasticsearch URL:        %s
Elasticsearch Index:      %s
Slack Token:              %s
Slack Channel:            %s
Log Level:                %s`,
		orNotSet(c.BaseURL),
		orNotSet(c.AdminEmail),
		mask(c.AdminPassword),
		mask(c.TestUserPassword),
		orNotSet(c.TestUserName),
		c.RequestTimeout,
		c.ExpectedCategoryCount,
		c.StrictExpectations,
		orNotSet(c.Email.Host),
		c.Email.Port,
		orNotSet(c.Email.Username),
		mask(c.Email.Password),
		len(c.Email.Password),
		orNotSet(c.Email.From),
		c.Email.SMTPTimeout,
		orNotSet(c.ElasticsearchURL),
		c.ElasticsearchIndex,
		mask(c.SlackToken),
		orNotSet(c.SlackChannelID),
		c.LogLevel,
	)
}
