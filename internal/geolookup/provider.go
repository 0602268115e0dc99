package geolookup

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/AdguardTeam/golibs/errors"
	"github.com/agigante80/VPNSentinel-sub000/internal/vsenthttp"
)

// maxProviderRespSize is the maximum allowed size of a provider response
// body, in bytes.
const maxProviderRespSize = 64 * 1024

// provider is a single geolocation provider: an endpoint and a pure parser
// from its raw JSON to a [Result].
type provider struct {
	http  *vsenthttp.Client
	url   *url.URL
	parse func(data []byte) (r *Result, err error)
	name  string
}

// Provider name constants, in their fixed fallback order.
const (
	ProviderIPInfo   = "ipinfo"
	ProviderIPAPI    = "ipapi"
	ProviderIfconfig = "ifconfig"
)

// ProviderNames returns the names of all known providers in their fallback
// order.
func ProviderNames() (names []string) {
	return []string{ProviderIPInfo, ProviderIPAPI, ProviderIfconfig}
}

// newProviders returns all providers in their fixed fallback order.
func newProviders(timeout time.Duration) (ps []*provider) {
	cli := vsenthttp.NewClient(&vsenthttp.ClientConfig{
		Timeout: timeout,
	})

	return []*provider{{
		http:  cli,
		url:   errors.Must(url.Parse("https://ipinfo.io/json")),
		parse: parseIPInfo,
		name:  ProviderIPInfo,
	}, {
		http:  cli,
		url:   errors.Must(url.Parse("http://ip-api.com/json")),
		parse: parseIPAPI,
		name:  ProviderIPAPI,
	}, {
		http:  cli,
		url:   errors.Must(url.Parse("https://ifconfig.co/json")),
		parse: parseIfconfig,
		name:  ProviderIfconfig,
	}}
}

// fetch performs the HTTP call and parses the response.
func (p *provider) fetch(ctx context.Context) (r *Result, err error) {
	resp, err := p.http.Get(ctx, p.url)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.WithDeferred(err, resp.Body.Close()) }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, vsenthttp.CheckStatus(resp, http.StatusOK)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderRespSize))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return p.parse(data)
}

// ipInfoResp is the JSON shape of an ipinfo.io response.
type ipInfoResp struct {
	IP       string `json:"ip"`
	City     string `json:"city"`
	Region   string `json:"region"`
	Country  string `json:"country"`
	Org      string `json:"org"`
	Timezone string `json:"timezone"`
}

// parseIPInfo parses an ipinfo.io response.
func parseIPInfo(data []byte) (r *Result, err error) {
	var raw ipInfoResp
	err = json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return &Result{
		PublicIP: raw.IP,
		Country:  raw.Country,
		City:     raw.City,
		Region:   raw.Region,
		Org:      raw.Org,
		Timezone: raw.Timezone,
	}, nil
}

// ipAPIResp is the JSON shape of an ip-api.com response.
type ipAPIResp struct {
	Status      string `json:"status"`
	Query       string `json:"query"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	City        string `json:"city"`
	RegionName  string `json:"regionName"`
	Org         string `json:"org"`
	ISP         string `json:"isp"`
	Timezone    string `json:"timezone"`
}

// parseIPAPI parses an ip-api.com response.
func parseIPAPI(data []byte) (r *Result, err error) {
	var raw ipAPIResp
	err = json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	if raw.Status != "success" {
		return nil, fmt.Errorf("provider status: %q", raw.Status)
	}

	org := raw.Org
	if org == "" {
		org = raw.ISP
	}

	ctry := raw.CountryCode
	if ctry == "" {
		ctry = raw.Country
	}

	return &Result{
		PublicIP: raw.Query,
		Country:  ctry,
		City:     raw.City,
		Region:   raw.RegionName,
		Org:      org,
		Timezone: raw.Timezone,
	}, nil
}

// ifconfigResp is the JSON shape of an ifconfig.co response.
type ifconfigResp struct {
	IP         string `json:"ip"`
	Country    string `json:"country"`
	CountryISO string `json:"country_iso"`
	City       string `json:"city"`
	RegionName string `json:"region_name"`
	ASNOrg     string `json:"asn_org"`
	Timezone   string `json:"time_zone"`
}

// parseIfconfig parses an ifconfig.co response.
func parseIfconfig(data []byte) (r *Result, err error) {
	var raw ifconfigResp
	err = json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	ctry := raw.CountryISO
	if ctry == "" {
		ctry = raw.Country
	}

	return &Result{
		PublicIP: raw.IP,
		Country:  ctry,
		City:     raw.City,
		Region:   raw.RegionName,
		Org:      raw.ASNOrg,
		Timezone: raw.Timezone,
	}, nil
}
