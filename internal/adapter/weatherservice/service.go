// Package weatherservice pushes the representative reading to public
// weather networks over their station upload APIs.
package weatherservice

import (
	"fmt"
	"strings"
	"time"
)

// Service is a supported upload API.
type Service string

const (
	Weathercloud Service = "weathercloud"
	Wunderground Service = "wunderground"
	PWSWeather   Service = "pwsweather"
	Windguru     Service = "windguru"
)

// Services lists every supported upload API.
var Services = []Service{Weathercloud, Wunderground, PWSWeather, Windguru}

// DefaultMinInterval is the shortest gap between uploads to one service.
const DefaultMinInterval = 10 * time.Minute

// SoftwareType is reported to services that record the uploading software.
const SoftwareType = "wh2900_relay_v1"

// ParseService resolves a service name.
func ParseService(s string) (Service, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Weathercloud, nil
	}
	for _, svc := range Services {
		if string(svc) == s {
			return svc, nil
		}
	}
	return "", fmt.Errorf("unknown weather service %q", s)
}

// DefaultBaseURL returns the production upload endpoint.
func (s Service) DefaultBaseURL() string {
	switch s {
	case Weathercloud:
		return "http://api.weathercloud.net/set"
	case Wunderground:
		return "https://rtupdate.wunderground.com/weatherstation/updateweatherstation.php"
	case PWSWeather:
		return "http://www.pwsweather.com/pwsupdate/pwsupdate.php"
	case Windguru:
		return "http://www.windguru.cz/upload/api.php"
	default:
		return ""
	}
}

// Settings are the keys of an http_post target table.
type Settings struct {
	Service string `toml:"service"`
	IDEnv   string `toml:"id_env"`
	KeyEnv  string `toml:"key_env"`
	BaseURL string `toml:"base_url"`
}
