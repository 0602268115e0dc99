package agentcmd

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/AdguardTeam/golibs/logutil/slogutil"
	"github.com/AdguardTeam/golibs/validate"
	"github.com/agigante80/VPNSentinel-sub000/internal/geolookup"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsent"
	"github.com/caarlos0/env/v7"
)

// environment represents the agent configuration that is kept in the
// environment.
type environment struct {
	APIKey          string `env:"API_KEY"`
	APIPath         string `env:"API_PATH" envDefault:"/api/v1"`
	ClientID        string `env:"CLIENT_ID"`
	GeoProvider     string `env:"GEO_PROVIDER" envDefault:"auto"`
	LogFormat       string `env:"LOG_FORMAT" envDefault:"text"`
	PayloadSinkPath string `env:"PAYLOAD_SINK_PATH"`
	ServerURL       string `env:"SERVER_URL,notEmpty"`
	TLSCAPath       string `env:"TLS_CA_PATH"`
	TraceURL        string `env:"TRACE_URL"`

	CheckIntervalSecs uint `env:"CHECK_INTERVAL_SECONDS" envDefault:"300"`

	HealthPort uint16 `env:"HEALTH_PORT"`

	Verbosity uint8 `env:"VERBOSE" envDefault:"0"`

	LogTimestamp          strictBool `env:"LOG_TIMESTAMP" envDefault:"1"`
	TLSInsecureSkipVerify strictBool `env:"TLS_INSECURE_SKIP_VERIFY" envDefault:"0"`
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
		validate.Positive("CHECK_INTERVAL_SECONDS", envs.CheckIntervalSecs),
	}

	_, err = envs.serverURL()
	if err != nil {
		errs = append(errs, fmt.Errorf("SERVER_URL: %w", err))
	}

	err = geolookup.ValidateMode(envs.GeoProvider)
	if err != nil {
		errs = append(errs, fmt.Errorf("GEO_PROVIDER: %w", err))
	}

	_, err = slogutil.NewFormat(envs.LogFormat)
	if err != nil {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: %w", err))
	}

	_, err = slogutil.VerbosityToLevel(envs.Verbosity)
	if err != nil {
		errs = append(errs, fmt.Errorf("VERBOSE: %w", err))
	}

	if envs.ClientID != "" {
		_, err = vsent.NewClientID(envs.ClientID)
		if err != nil {
			errs = append(errs, fmt.Errorf("CLIENT_ID: %w", err))
		}
	}

	return errors.Join(errs...)
}

// serverURL parses and validates the server base URL.
func (envs *environment) serverURL() (u *url.URL, err error) {
	u, err = url.Parse(envs.ServerURL)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return nil, err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("bad scheme %q", u.Scheme)
	}

	return u, nil
}

// clientID returns the configured client ID, deriving a kebab-case one from
// the hostname when the environment does not set it.
func (envs *environment) clientID() (id vsent.ClientID, err error) {
	raw := envs.ClientID
	if raw == "" {
		host, hostErr := os.Hostname()
		if hostErr != nil {
			return "", fmt.Errorf("deriving client id: %w", hostErr)
		}

		raw = "client-" + kebabCase(host)
	}

	id, err = vsent.NewClientID(raw)
	if err != nil {
		// Don't wrap the error, because it's informative enough as is.
		return "", err
	}

	return id, nil
}

// kebabCase lowercases s and replaces every run of characters that are not
// allowed in a client ID with a single hyphen.
func kebabCase(s string) (out string) {
	var b strings.Builder
	prevHyphen := false
	for _, r := range strings.ToLower(s) {
		ok := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		switch {
		case ok:
			_, _ = b.WriteRune(r)
			prevHyphen = false
		case !prevHyphen:
			_, _ = b.WriteRune('-')
			prevHyphen = true
		}
	}

	return strings.Trim(b.String(), "-")
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
