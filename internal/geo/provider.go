package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Provider resolves a single public IP address.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (Location, error)
}

// ErrLookupFailed is returned when a provider answered but could not resolve the address.
var ErrLookupFailed = errors.New("geo: lookup failed")

const (
	defaultIPAPICoURL  = "https://ipapi.co"
	defaultIPAPIComURL = "http://ip-api.com"
	defaultIPWhoURL    = "https://ipwho.is"
	maxResponseBytes   = 64 << 10
)

// IPAPICo queries ipapi.co.
type IPAPICo struct {
	BaseURL string
	Client  *http.Client
}

func (p *IPAPICo) Name() string { return "ipapi.co" }

func (p *IPAPICo) Lookup(ctx context.Context, ip string) (Location, error) {
	var payload struct {
		Error     bool    `json:"error"`
		Reason    string  `json:"reason"`
		City      string  `json:"city"`
		Region    string  `json:"region"`
		Country   string  `json:"country_name"`
		Org       string  `json:"org"`
		Timezone  string  `json:"timezone"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	endpoint := strings.TrimRight(withDefault(p.BaseURL, defaultIPAPICoURL), "/") + "/" + url.PathEscape(ip) + "/json/"
	if err := getJSON(ctx, p.Client, endpoint, &payload); err != nil {
		return Location{}, err
	}
	if payload.Error {
		return Location{}, fmt.Errorf("%w: %s", ErrLookupFailed, payload.Reason)
	}
	return Location{
		IP:          ip,
		City:        payload.City,
		Region:      payload.Region,
		Country:     payload.Country,
		ISP:         payload.Org,
		Org:         payload.Org,
		Timezone:    payload.Timezone,
		Coordinates: coordinates(payload.Latitude, payload.Longitude),
	}, nil
}

// IPAPICom queries ip-api.com.
type IPAPICom struct {
	BaseURL string
	Client  *http.Client
}

func (p *IPAPICom) Name() string { return "ip-api.com" }

func (p *IPAPICom) Lookup(ctx context.Context, ip string) (Location, error) {
	var payload struct {
		Status     string  `json:"status"`
		Message    string  `json:"message"`
		Country    string  `json:"country"`
		RegionName string  `json:"regionName"`
		City       string  `json:"city"`
		Timezone   string  `json:"timezone"`
		ISP        string  `json:"isp"`
		Org        string  `json:"org"`
		Lat        float64 `json:"lat"`
		Lon        float64 `json:"lon"`
	}
	endpoint := strings.TrimRight(withDefault(p.BaseURL, defaultIPAPIComURL), "/") + "/json/" + url.PathEscape(ip) +
		"?fields=status,message,country,regionName,city,timezone,isp,org,lat,lon,query"
	if err := getJSON(ctx, p.Client, endpoint, &payload); err != nil {
		return Location{}, err
	}
	if payload.Status != "success" {
		return Location{}, fmt.Errorf("%w: %s", ErrLookupFailed, payload.Message)
	}
	return Location{
		IP:          ip,
		City:        payload.City,
		Region:      payload.RegionName,
		Country:     payload.Country,
		ISP:         payload.ISP,
		Org:         payload.Org,
		Timezone:    payload.Timezone,
		Coordinates: coordinates(payload.Lat, payload.Lon),
	}, nil
}

// IPWhoIs queries ipwho.is.
type IPWhoIs struct {
	BaseURL string
	Client  *http.Client
}

func (p *IPWhoIs) Name() string { return "ipwho.is" }

func (p *IPWhoIs) Lookup(ctx context.Context, ip string) (Location, error) {
	var payload struct {
		Success    bool    `json:"success"`
		Message    string  `json:"message"`
		City       string  `json:"city"`
		Region     string  `json:"region"`
		Country    string  `json:"country"`
		Latitude   float64 `json:"latitude"`
		Longitude  float64 `json:"longitude"`
		Connection struct {
			ISP string `json:"isp"`
			Org string `json:"org"`
		} `json:"connection"`
		Timezone struct {
			ID string `json:"id"`
		} `json:"timezone"`
	}
	endpoint := strings.TrimRight(withDefault(p.BaseURL, defaultIPWhoURL), "/") + "/" + url.PathEscape(ip)
	if err := getJSON(ctx, p.Client, endpoint, &payload); err != nil {
		return Location{}, err
	}
	if !payload.Success {
		return Location{}, fmt.Errorf("%w: %s", ErrLookupFailed, payload.Message)
	}
	return Location{
		IP:          ip,
		City:        payload.City,
		Region:      payload.Region,
		Country:     payload.Country,
		ISP:         payload.Connection.ISP,
		Org:         payload.Connection.Org,
		Timezone:    payload.Timezone.ID,
		Coordinates: coordinates(payload.Latitude, payload.Longitude),
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, dest any) error {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("geo: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "domaingate/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("geo: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return fmt.Errorf("geo: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(dest); err != nil {
		return fmt.Errorf("geo: decode response: %w", err)
	}
	return nil
}

func withDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
