package cmd

import (
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"os"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/netutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/agigante80/VPNSentinel-sub000/internal/errcoll"
	"github.com/agigante80/VPNSentinel-sub000/internal/notifier"
	"github.com/agigante80/VPNSentinel-sub000/internal/version"
	"github.com/c2h5oh/datasize"
	"github.com/caarlos0/env/v7"
	"github.com/getsentry/sentry-go"
)

// environment represents the configuration that is kept in the environment.
type environment struct {
	APIKey           string `env:"API_KEY"`
	APIPath          string `env:"API_PATH" envDefault:"/api/v1"`
	ConfPath         string `env:"CONFIG_PATH"`
	GeoIPCountryPath string `env:"GEOIP_COUNTRY_PATH"`
	IPAllowlist      string `env:"IP_ALLOWLIST"`
	LogFormat        string `env:"LOG_FORMAT" envDefault:"text"`
	NotifierEnabled  string `env:"NOTIFIER_ENABLED"`
	SentryDSN        string `env:"SENTRY_DSN" envDefault:"stderr"`
	TelegramToken    string `env:"TELEGRAM_TOKEN"`

	ListenAddr net.IP `env:"LISTEN_ADDR" envDefault:"0.0.0.0"`

	TelegramChatID int64 `env:"TELEGRAM_CHAT_ID"`

	MaxBodySize datasize.ByteSize `env:"MAX_BODY_SIZE" envDefault:"64KB"`

	OfflineThresholdSecs uint `env:"OFFLINE_THRESHOLD_SECONDS" envDefault:"600"`
	RateLimit            uint `env:"RATE_LIMIT" envDefault:"30"`
	SweepIntervalSecs    uint `env:"SWEEP_INTERVAL_SECONDS" envDefault:"60"`

	APIPort       uint16 `env:"API_PORT" envDefault:"8080"`
	DashboardPort uint16 `env:"DASHBOARD_PORT" envDefault:"8082"`
	HealthPort    uint16 `env:"HEALTH_PORT" envDefault:"8081"`

	Verbosity uint8 `env:"VERBOSE" envDefault:"0"`

	DashboardEnabled strictBool `env:"DASHBOARD_ENABLED" envDefault:"1"`
	LogTimestamp     strictBool `env:"LOG_TIMESTAMP" envDefault:"1"`
	PprofEnabled     strictBool `env:"PPROF_ENABLED" envDefault:"0"`
}

// parseEnvironment reads the configuration.
func parseEnvironment() (envs *environment, err error) {
	envs = &environment{}
	err = env.Parse(envs)
	if err != nil {
		return nil, fmt.Errorf("parsing environments: %w", err)
	}

	return envs, nil
}

// type check
var _ validate.Interface = (*environment)(nil)

// Validate implements the [validate.Interface] interface for *environment.
func (envs *environment) Validate() (err error) {
	errs := []error{
		validate.Positive("OFFLINE_THRESHOLD_SECONDS", envs.OfflineThresholdSecs),
		validate.Positive("RATE_LIMIT", envs.RateLimit),
		validate.Positive("SWEEP_INTERVAL_SECONDS", envs.SweepIntervalSecs),
		validate.Positive("MAX_BODY_SIZE", envs.MaxBodySize),
	}

	if !strings.HasPrefix(envs.APIPath, "/") || strings.HasSuffix(envs.APIPath, "/") {
		errs = append(errs, fmt.Errorf(
			"API_PATH: %q: must start and not end with a slash",
			envs.APIPath,
		))
	}

	_, err = slogutil.NewFormat(envs.LogFormat)
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: %w", err))
	}

	_, err = slogutil.VerbosityToLevel(envs.Verbosity)
	if err != nil {
		errs = append(errs, fmt.Errorf("VERBOSE: %w", err))
	}

	_, err = notifier.NewMode(envs.NotifierEnabled)
	if err != nil {
		errs = append(errs, fmt.Errorf("NOTIFIER_ENABLED: %w", err))
	}

	_, err = envs.allowlist()
	if err != nil {
		errs = append(errs, fmt.Errorf("IP_ALLOWLIST: %w", err))
	}

	errs = envs.validateNotifierCreds(errs)

	return errors.Join(errs...)
}

// validateNotifierCreds appends an error to errs if the notifier is
// explicitly enabled without transport credentials.
func (envs *environment) validateNotifierCreds(errs []error) (res []error) {
	res = errs

	mode, _ := notifier.NewMode(envs.NotifierEnabled)
	if mode != notifier.ModeOn {
		return res
	}

	if envs.TelegramToken == "" || envs.TelegramChatID == 0 {
		res = append(res, fmt.Errorf(
			"NOTIFIER_ENABLED: %s requires TELEGRAM_TOKEN and TELEGRAM_CHAT_ID",
			notifier.ModeOn,
		))
	}

	return res
}

// allowlist parses the optional comma-separated CIDR allowlist.  An empty
// variable, or one containing 0.0.0.0/0, means no restriction, returned as a
// nil set.
func (envs *environment) allowlist() (set netutil.SubnetSet, err error) {
	raw := strings.TrimSpace(envs.IPAllowlist)
	if raw == "" {
		return nil, nil
	}

	var subnets []netip.Prefix
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}

		var p netip.Prefix
		p, err = netip.ParsePrefix(s)
		if err != nil {
			return nil, fmt.Errorf("bad cidr %q: %w", s, err)
		}

		if p.Bits() == 0 {
			// An explicit any-address prefix disables the allowlist.
			return nil, nil
		}

		subnets = append(subnets, p)
	}

	if len(subnets) == 0 {
		return nil, nil
	}

	return netutil.SliceSubnetSet(subnets), nil
}

// notifierMode returns the validated notifier mode.
func (envs *environment) notifierMode() (m notifier.Mode) {
	m, _ = notifier.NewMode(envs.NotifierEnabled)

	return m
}

// buildErrColl builds and returns an error collector from environment.
func (envs *environment) buildErrColl() (errColl errcoll.Interface, err error) {
	dsn := envs.SentryDSN
	if dsn == "stderr" {
		return errcoll.NewWriterErrorCollector(os.Stderr), nil
	}

	cli, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Release:          version.Version(),
	})
	if err != nil {
		return nil, err
	}

	return errcoll.NewSentryErrorCollector(cli), nil
}

// strictBool is a type for booleans that are parsed from the environment more
// strictly than the usual bool.  It only accepts "0" and "1" as valid values.
type strictBool bool

// UnmarshalText implements the [encoding.TextUnmarshaler] interface for
// *strictBool.
func (sb *strictBool) UnmarshalText(b []byte) (err error) {
	if len(b) == 1 {
		switch b[0] {
		case '0':
			*sb = false

			return nil
		case '1':
			*sb = true

			return nil
		}
	}

	return fmt.Errorf("invalid value %q, supported: %q, %q", b, "0", "1")
}

// logger is a convenience helper for the per-service prefixed loggers.
func logger(base *slog.Logger, prefix string) (l *slog.Logger) {
	return base.With(slogutil.KeyPrefix, prefix)
}
