package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"pdfint/internal/errors"
)

// Strategy selects the integrator used for two or more dimensions
type Strategy string

const (
	StrategyAdaptive    Strategy = "adaptive"
	StrategyQuasiRandom Strategy = "quasirandom"
)

// RetestPolicy decides when a tested engine validates again
type RetestPolicy string

const (
	// RetestLifetime validates once per engine lifetime
	RetestLifetime RetestPolicy = "lifetime"
	// RetestParameters validates again when a versioned integrand reports new parameters
	RetestParameters RetestPolicy = "parameters"
)

// Config represents the complete application configuration
type Config struct {
	Integrator IntegratorConfig
	MonteCarlo MonteCarloConfig
	Logging    LoggingConfig
}

// IntegratorConfig holds strategy selection and quadrature settings
type IntegratorConfig struct {
	ForceNumerical bool
	Strategy       Strategy
	GaussNodes     int
	AbsTolerance   float64
	RelTolerance   float64
	MaxEvaluations int
	RetestPolicy   RetestPolicy
	Timeout        time.Duration
}

// MonteCarloConfig holds quasi-random sampling settings
type MonteCarloConfig struct {
	Threaded        bool
	Workers         int
	Samples         int
	ThreadedSamples int
	Seed            uint64
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string
}

// Default returns the built-in configuration without consulting the environment
func Default() *Config {
	return &Config{
		Integrator: IntegratorConfig{
			Strategy:       StrategyAdaptive,
			GaussNodes:     64,
			AbsTolerance:   1e-9,
			RelTolerance:   1e-9,
			MaxEvaluations: 1_000_000,
			RetestPolicy:   RetestLifetime,
		},
		MonteCarlo: MonteCarloConfig{
			Workers:         4,
			Samples:         100_000,
			ThreadedSamples: 1_000_000,
		},
		Logging: LoggingConfig{Level: "INFO"},
	}
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	def := Default()
	config := &Config{}

	config.Integrator = *loadIntegratorConfig(&def.Integrator)
	config.MonteCarlo = *loadMonteCarloConfig(&def.MonteCarlo)
	config.Logging = LoggingConfig{Level: getEnvOrDefault("LOG_LEVEL", def.Logging.Level)}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadIntegratorConfig(def *IntegratorConfig) *IntegratorConfig {
	return &IntegratorConfig{
		ForceNumerical: getEnvBoolOrDefault("INTEGRATOR_FORCE_NUMERICAL", def.ForceNumerical),
		Strategy:       Strategy(strings.ToLower(getEnvOrDefault("INTEGRATOR_STRATEGY", string(def.Strategy)))),
		GaussNodes:     getEnvIntOrDefault("INTEGRATOR_GAUSS_NODES", def.GaussNodes),
		AbsTolerance:   getEnvFloatOrDefault("INTEGRATOR_ABS_TOLERANCE", def.AbsTolerance),
		RelTolerance:   getEnvFloatOrDefault("INTEGRATOR_REL_TOLERANCE", def.RelTolerance),
		MaxEvaluations: getEnvIntOrDefault("INTEGRATOR_MAX_EVALUATIONS", def.MaxEvaluations),
		RetestPolicy:   RetestPolicy(strings.ToLower(getEnvOrDefault("INTEGRATOR_RETEST_POLICY", string(def.RetestPolicy)))),
		Timeout:        getEnvDurationOrDefault("INTEGRATOR_TIMEOUT", def.Timeout),
	}
}

func loadMonteCarloConfig(def *MonteCarloConfig) *MonteCarloConfig {
	return &MonteCarloConfig{
		Threaded:        getEnvBoolOrDefault("INTEGRATOR_THREADED", def.Threaded),
		Workers:         getEnvIntOrDefault("INTEGRATOR_WORKERS", def.Workers),
		Samples:         getEnvIntOrDefault("INTEGRATOR_MC_SAMPLES", def.Samples),
		ThreadedSamples: getEnvIntOrDefault("INTEGRATOR_MC_THREADED_SAMPLES", def.ThreadedSamples),
		Seed:            getEnvUintOrDefault("INTEGRATOR_SEED", def.Seed),
	}
}

// Validate rejects settings the integrator cannot run with
func (c *Config) Validate() error {
	switch c.Integrator.Strategy {
	case StrategyAdaptive, StrategyQuasiRandom:
	default:
		return errors.ConfigInvalidf("unknown integration strategy %q", c.Integrator.Strategy)
	}
	switch c.Integrator.RetestPolicy {
	case RetestLifetime, RetestParameters:
	default:
		return errors.ConfigInvalidf("unknown retest policy %q", c.Integrator.RetestPolicy)
	}
	if c.Integrator.GaussNodes <= 0 {
		return errors.ConfigInvalidf("gauss nodes must be positive, got %d", c.Integrator.GaussNodes)
	}
	if c.Integrator.AbsTolerance <= 0 || c.Integrator.RelTolerance <= 0 {
		return errors.ConfigInvalid("integration tolerances must be positive")
	}
	if c.Integrator.MaxEvaluations <= 0 {
		return errors.ConfigInvalidf("evaluation budget must be positive, got %d", c.Integrator.MaxEvaluations)
	}
	if c.Integrator.Timeout < 0 {
		return errors.ConfigInvalidf("timeout must not be negative, got %s", c.Integrator.Timeout)
	}
	if c.MonteCarlo.Threaded && c.MonteCarlo.Workers <= 0 {
		return errors.ConfigInvalidf("threaded integration needs a positive worker count, got %d", c.MonteCarlo.Workers)
	}
	if c.MonteCarlo.Samples <= 0 || c.MonteCarlo.ThreadedSamples <= 0 {
		return errors.ConfigInvalid("monte-carlo sample counts must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvUintOrDefault(key string, defaultValue uint64) uint64 {
	if value := os.Getenv(key); value != "" {
		if uintValue, err := strconv.ParseUint(value, 0, 64); err == nil {
			return uintValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
