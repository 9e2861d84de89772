// Package config loads the command line configuration from flags and an
// optional JSON file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	enc "github.com/zjkmxy/go-ndn/pkg/encoding"

	"github.com/go-ndn/consumer/consumer"
	"github.com/go-ndn/consumer/packet"
	"github.com/go-ndn/consumer/producer"
)

type Retry struct {
	Max     uint64        `mapstructure:"max"`
	Backoff time.Duration `mapstructure:"backoff"`
	Cap     time.Duration `mapstructure:"cap"`
}

type Config struct {
	// Remote is dialed by the consumer.
	Remote Endpoint `mapstructure:"remote"`
	// Listen is where the producer accepts connections.
	Listen Endpoint `mapstructure:"listen"`
	// DialRetries bounds how often a failed dial is retried.
	DialRetries uint64 `mapstructure:"dial-retries"`

	Name        string        `mapstructure:"name"`
	Lifetime    time.Duration `mapstructure:"lifetime"`
	MustBeFresh bool          `mapstructure:"must-be-fresh"`
	Delay       time.Duration `mapstructure:"delay"`
	Retry       Retry         `mapstructure:"retry"`
	Limit       int           `mapstructure:"limit"`

	Prefix    string        `mapstructure:"prefix"`
	Content   string        `mapstructure:"content"`
	Freshness time.Duration `mapstructure:"freshness"`
	CacheSize int           `mapstructure:"cache-size"`

	MetricsAddr string `mapstructure:"metrics-addr"`
	Debug       bool   `mapstructure:"debug"`
}

const DefaultRemote = "unix:///run/nfd.sock"

// Default returns the configuration used when neither flags nor a config
// file say otherwise.
func Default() Config {
	c := consumer.DefaultConfig()
	p := producer.DefaultConfig()
	ep, _ := ParseEndpoint(DefaultRemote)
	return Config{
		Remote:      ep,
		Listen:      ep,
		DialRetries: 5,
		Name:        c.Name.String(),
		Lifetime:    c.Lifetime,
		MustBeFresh: c.MustBeFresh,
		Delay:       c.Delay,
		Retry: Retry{
			Max:     c.Retry.Max,
			Backoff: c.Retry.Backoff,
			Cap:     c.Retry.Cap,
		},
		Limit:     c.Limit,
		Prefix:    p.Prefix.String(),
		Content:   string(p.Content),
		Freshness: p.Freshness,
		CacheSize: p.CacheSize,
	}
}

// SetDefaults registers Default under the keys Load reads.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("remote", d.Remote.String())
	v.SetDefault("listen", d.Listen.String())
	v.SetDefault("dial-retries", d.DialRetries)
	v.SetDefault("name", d.Name)
	v.SetDefault("lifetime", d.Lifetime)
	v.SetDefault("must-be-fresh", d.MustBeFresh)
	v.SetDefault("delay", d.Delay)
	v.SetDefault("retry.max", d.Retry.Max)
	v.SetDefault("retry.backoff", d.Retry.Backoff)
	v.SetDefault("retry.cap", d.Retry.Cap)
	v.SetDefault("limit", d.Limit)
	v.SetDefault("prefix", d.Prefix)
	v.SetDefault("content", d.Content)
	v.SetDefault("freshness", d.Freshness)
	v.SetDefault("cache-size", d.CacheSize)
	v.SetDefault("metrics-addr", d.MetricsAddr)
	v.SetDefault("debug", d.Debug)
}

// Load reads the JSON file at path, if path is not empty, on top of the
// defaults and whatever is already bound to v, and validates the result.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("could not read config %s: %w", path, err)
		}
	}

	var c Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToEndpointHook(),
		mapstructure.StringToTimeDurationHookFunc(),
	))
	if err := v.Unmarshal(&c, hook); err != nil {
		return Config{}, fmt.Errorf("could not decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var result *multierror.Error
	if _, err := enc.NameFromStr(c.Name); err != nil {
		result = multierror.Append(result, fmt.Errorf("name: %w", err))
	}
	if _, err := enc.NameFromStr(c.Prefix); err != nil {
		result = multierror.Append(result, fmt.Errorf("prefix: %w", err))
	}
	if c.Lifetime <= 0 {
		result = multierror.Append(result, errors.New("lifetime must be positive"))
	}
	if c.Retry.Backoff < 0 || c.Retry.Cap < 0 {
		result = multierror.Append(result, errors.New("retry backoff and cap must not be negative"))
	}
	if c.Limit < 0 {
		result = multierror.Append(result, errors.New("limit must not be negative"))
	}
	if c.Freshness < 0 {
		result = multierror.Append(result, errors.New("freshness must not be negative"))
	}
	if c.CacheSize <= 0 {
		result = multierror.Append(result, errors.New("cache-size must be positive"))
	}
	if c.Remote.Network == "" || c.Remote.Address == "" {
		result = multierror.Append(result, errors.New("remote: endpoint needs network and address"))
	}
	if c.Listen.Network == "" || c.Listen.Address == "" {
		result = multierror.Append(result, errors.New("listen: endpoint needs network and address"))
	}
	return result.ErrorOrNil()
}

// Consumer converts c for consumer.New. c must be valid.
func (c Config) Consumer() consumer.Config {
	return consumer.Config{
		Name:        packet.MustParseName(c.Name),
		Lifetime:    c.Lifetime,
		MustBeFresh: c.MustBeFresh,
		Delay:       c.Delay,
		Retry: consumer.RetryConfig{
			Max:     c.Retry.Max,
			Backoff: c.Retry.Backoff,
			Cap:     c.Retry.Cap,
		},
		Limit: c.Limit,
	}
}

// Producer converts c for producer.New. c must be valid.
func (c Config) Producer() producer.Config {
	return producer.Config{
		Prefix:    packet.MustParseName(c.Prefix),
		Content:   []byte(c.Content),
		Freshness: c.Freshness,
		CacheSize: c.CacheSize,
	}
}
