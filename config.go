// Package uid - config.go holds the runtime Config, the externally loadable
// Properties, and the file loader built on viper.

package uid

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Defaults applied by DefaultProperties and by Config normalization.
const (
	DefaultMaxBackwardSeconds = 1
	DefaultBoostPower         = 3
	DefaultPaddingFactor      = 50
)

// Config configures a generator with resolved runtime types. Most callers
// load a Properties instead and let Build translate.
type Config struct {
	// Layout is the bit triple. Zero value means LayoutDefault.
	Layout BitLayout

	// EpochPoint is the epoch date in YYYY-MM-DD form. Empty means
	// DefaultEpochPoint.
	EpochPoint string

	// Source resolves the worker identity at startup and on regression
	// reassignment. Nil means a HostWorkerIDSource with no port.
	Source WorkerIDSource

	// BackwardEnabled selects the tolerant clock-regression policy.
	BackwardEnabled bool

	// MaxBackwardSeconds is the tolerant spin-wait window.
	MaxBackwardSeconds int64

	// BoostPower sizes the ring: bufferSize = (maxSequence+1) << BoostPower.
	BoostPower int

	// PaddingFactor is the refill threshold in percent of bufferSize.
	PaddingFactor int

	// ScheduleInterval > 0 enables periodic padding every that many
	// seconds.
	ScheduleInterval int

	// Logger receives generator events. Nil means no logging.
	Logger *zap.Logger
}

// DefaultConfig returns a Config with production defaults and the given
// worker ID source.
func DefaultConfig(source WorkerIDSource) Config {
	return Config{
		Layout:             LayoutDefault,
		EpochPoint:         DefaultEpochPoint,
		Source:             source,
		BackwardEnabled:    true,
		MaxBackwardSeconds: DefaultMaxBackwardSeconds,
		BoostPower:         DefaultBoostPower,
		PaddingFactor:      DefaultPaddingFactor,
	}
}

// normalize fills zero values with defaults and validates the result. The
// receiver is modified in place.
func (c *Config) normalize() (time.Time, error) {
	if c.Layout == (BitLayout{}) {
		c.Layout = LayoutDefault
	}
	if err := c.Layout.Validate(); err != nil {
		return time.Time{}, err
	}
	if c.EpochPoint == "" {
		c.EpochPoint = DefaultEpochPoint
	}
	epoch, err := ParseEpochPoint(c.EpochPoint)
	if err != nil {
		return time.Time{}, err
	}
	if c.Source == nil {
		c.Source = &HostWorkerIDSource{}
	}
	if c.MaxBackwardSeconds < 0 {
		return time.Time{}, newConfigError("maxBackwardSeconds",
			fmt.Sprintf("%d", c.MaxBackwardSeconds),
			"must be non-negative", "seconds >= 0")
	}
	if c.BoostPower < 0 {
		return time.Time{}, newConfigError("boostPower",
			fmt.Sprintf("%d", c.BoostPower),
			"must be non-negative", "exponent >= 0")
	}
	if c.PaddingFactor == 0 {
		c.PaddingFactor = DefaultPaddingFactor
	}
	if c.PaddingFactor <= 0 || c.PaddingFactor >= 100 {
		return time.Time{}, newConfigError("paddingFactor",
			fmt.Sprintf("%d", c.PaddingFactor),
			"out of range", "must be in (0, 100)")
	}
	if c.ScheduleInterval < 0 {
		return time.Time{}, newConfigError("scheduleInterval",
			fmt.Sprintf("%d", c.ScheduleInterval),
			"must be non-negative", "seconds >= 0, 0 disables")
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return epoch, nil
}

// Properties is the external configuration surface, one field per
// recognized key. It maps onto configuration files via mapstructure tags:
//
//	uid:
//	  enabled: true
//	  timeBits: 33
//	  workerBits: 20
//	  seqBits: 10
//	  epochPoint: "2024-01-01"
//	  backwardEnabled: true
//	  maxBackwardSeconds: 1
//	  boostPower: 3
//	  paddingFactor: 50
//	  scheduleInterval: 0
type Properties struct {
	Enabled            bool   `mapstructure:"enabled"`
	TimeBits           int    `mapstructure:"timeBits"`
	WorkerBits         int    `mapstructure:"workerBits"`
	SeqBits            int    `mapstructure:"seqBits"`
	EpochPoint         string `mapstructure:"epochPoint"`
	BackwardEnabled    bool   `mapstructure:"backwardEnabled"`
	MaxBackwardSeconds int64  `mapstructure:"maxBackwardSeconds"`
	BoostPower         int    `mapstructure:"boostPower"`
	PaddingFactor      int    `mapstructure:"paddingFactor"`
	ScheduleInterval   int    `mapstructure:"scheduleInterval"`
}

// DefaultProperties returns the documented defaults.
func DefaultProperties() Properties {
	return Properties{
		Enabled:            true,
		TimeBits:           LayoutDefault.TimeBits,
		WorkerBits:         LayoutDefault.WorkerBits,
		SeqBits:            LayoutDefault.SeqBits,
		EpochPoint:         DefaultEpochPoint,
		BackwardEnabled:    true,
		MaxBackwardSeconds: DefaultMaxBackwardSeconds,
		BoostPower:         DefaultBoostPower,
		PaddingFactor:      DefaultPaddingFactor,
	}
}

// Validate checks every recognized key.
func (p Properties) Validate() error {
	layout := BitLayout{TimeBits: p.TimeBits, WorkerBits: p.WorkerBits, SeqBits: p.SeqBits}
	if err := layout.Validate(); err != nil {
		return err
	}
	if _, err := ParseEpochPoint(p.EpochPoint); err != nil {
		return err
	}
	if p.MaxBackwardSeconds < 0 {
		return newConfigError("maxBackwardSeconds",
			fmt.Sprintf("%d", p.MaxBackwardSeconds),
			"must be non-negative", "seconds >= 0")
	}
	if p.BoostPower < 0 {
		return newConfigError("boostPower",
			fmt.Sprintf("%d", p.BoostPower),
			"must be non-negative", "exponent >= 0")
	}
	if p.PaddingFactor <= 0 || p.PaddingFactor >= 100 {
		return newConfigError("paddingFactor",
			fmt.Sprintf("%d", p.PaddingFactor),
			"out of range", "must be in (0, 100)")
	}
	if p.ScheduleInterval < 0 {
		return newConfigError("scheduleInterval",
			fmt.Sprintf("%d", p.ScheduleInterval),
			"must be non-negative", "seconds >= 0, 0 disables")
	}
	return nil
}

// Config translates the properties into a runtime Config with the given
// collaborators.
func (p Properties) Config(source WorkerIDSource, logger *zap.Logger) Config {
	return Config{
		Layout:             BitLayout{TimeBits: p.TimeBits, WorkerBits: p.WorkerBits, SeqBits: p.SeqBits},
		EpochPoint:         p.EpochPoint,
		Source:             source,
		BackwardEnabled:    p.BackwardEnabled,
		MaxBackwardSeconds: p.MaxBackwardSeconds,
		BoostPower:         p.BoostPower,
		PaddingFactor:      p.PaddingFactor,
		ScheduleInterval:   p.ScheduleInterval,
		Logger:             logger,
	}
}

// Build validates the properties and constructs the cached generator.
// Disabled properties fail with ErrGeneratorDisabled so callers can treat
// the subsystem as absent.
func (p Properties) Build(source WorkerIDSource, logger *zap.Logger) (*CachedGenerator, error) {
	if !p.Enabled {
		return nil, ErrGeneratorDisabled
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return NewCachedGenerator(p.Config(source, logger))
}

// LoadProperties reads a configuration file and unmarshals the "uid"
// section into Properties. Keys absent from the file keep their defaults.
func LoadProperties(path string) (Properties, error) {
	props := DefaultProperties()

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return props, fmt.Errorf("read config %s: %w", path, err)
	}
	section := v.Sub("uid")
	if section == nil {
		return props, nil
	}
	if err := section.Unmarshal(&props); err != nil {
		return props, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	return props, nil
}
