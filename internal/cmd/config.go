package cmd

import (
	"fmt"
	"os"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/agigante80/VPNSentinel-sub000/internal/country"
	"gopkg.in/yaml.v2"
)

// configuration represents the optional on-disk configuration.  Values set
// here override the corresponding environment tunables.
type configuration struct {
	// Countries extends the built-in country-name table.  Keys are full
	// names, values are ISO 3166-1 alpha-2 codes.
	Countries map[string]string `yaml:"countries"`

	// OfflineThresholdSecs overrides OFFLINE_THRESHOLD_SECONDS when positive.
	OfflineThresholdSecs uint `yaml:"offline_threshold_seconds"`

	// SweepIntervalSecs overrides SWEEP_INTERVAL_SECONDS when positive.
	SweepIntervalSecs uint `yaml:"sweep_interval_seconds"`

	// RateLimit overrides RATE_LIMIT when positive.
	RateLimit uint `yaml:"rate_limit"`
}

// parseConfig reads the optional configuration file.  An empty path returns
// an empty configuration.
func parseConfig(confPath string) (c *configuration, err error) {
	c = &configuration{}
	if confPath == "" {
		return c, nil
	}

	// #nosec G304 -- Trust the file path given in the environment.
	b, err := os.ReadFile(confPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	err = yaml.Unmarshal(b, c)
	if err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return c, nil
}

// type check
var _ validate.Interface = (*configuration)(nil)

// Validate implements the [validate.Interface] interface for *configuration.
func (c *configuration) Validate() (err error) {
	var errs []error
	for name, code := range c.Countries {
		if name == "" || len(code) != 2 {
			errs = append(errs, fmt.Errorf(
				"countries: %q: %q: must map a name to a two-letter code",
				name,
				code,
			))
		}
	}

	return errors.Join(errs...)
}

// apply merges c into envs and installs the country-table extension.
func (c *configuration) apply(envs *environment) {
	if c.OfflineThresholdSecs > 0 {
		envs.OfflineThresholdSecs = c.OfflineThresholdSecs
	}

	if c.SweepIntervalSecs > 0 {
		envs.SweepIntervalSecs = c.SweepIntervalSecs
	}

	if c.RateLimit > 0 {
		envs.RateLimit = c.RateLimit
	}

	if len(c.Countries) > 0 {
		country.Extend(c.Countries)
	}
}
