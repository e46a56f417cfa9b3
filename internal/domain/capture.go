package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// CaptureTimeLayout is the fixed UTC timestamp format written by the radio decoder.
const CaptureTimeLayout = "2006-01-02 15:04:05"

// PreDecodedModelPrefix marks envelopes whose values were already decoded upstream.
const PreDecodedModelPrefix = "Fineoffset"

// luxPerWattM2 converts pre-decoded illuminance to irradiance.
const luxPerWattM2 = 126.0

// Capture is one JSON envelope written by the radio decoder.
type Capture struct {
	Time  string       `json:"time"`
	RSSI  *float64     `json:"rssi"`
	Model string       `json:"model"`
	Rows  []CaptureRow `json:"rows"`

	// Pre-decoded family only.
	TemperatureC *float64 `json:"temperature_C"`
	Humidity     *float64 `json:"humidity"`
	WindDirDeg   *float64 `json:"wind_dir_deg"`
	WindAvgMS    *float64 `json:"wind_avg_m_s"`
	WindMaxMS    *float64 `json:"wind_max_m_s"`
	RainMM       *float64 `json:"rain_mm"`
	LightLux     *float64 `json:"light_lux"`
	UVI          *float64 `json:"uvi"`
}

// CaptureRow is one demodulated bit row.
type CaptureRow struct {
	Data string `json:"data"`
}

// ParseCapture deserializes a capture envelope.
func ParseCapture(data []byte) (Capture, error) {
	var c Capture
	if err := json.Unmarshal(data, &c); err != nil {
		return Capture{}, fmt.Errorf("parse capture: %w", err)
	}
	return c, nil
}

// MeasuredAt parses the envelope timestamp as UTC.
func (c Capture) MeasuredAt() (time.Time, error) {
	s := strings.TrimSpace(c.Time)
	if s == "" {
		return time.Time{}, ErrMissingTimestamp
	}
	t, err := time.ParseInLocation(CaptureTimeLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMissingTimestamp, err)
	}
	return t, nil
}

// Payload returns the hex data of the first row, or "" when there is none.
func (c Capture) Payload() string {
	if len(c.Rows) == 0 {
		return ""
	}
	return c.Rows[0].Data
}

// PreDecoded reports whether the envelope belongs to the pre-decoded family.
func (c Capture) PreDecoded() bool {
	return strings.HasPrefix(c.Model, PreDecodedModelPrefix)
}

// normalizePreDecoded converts pre-decoded values to the reading's units.
// Only illuminance changes unit; everything else passes through.
func normalizePreDecoded(c Capture) Measurement {
	m := Measurement{
		TempC:       c.TemperatureC,
		WindDir:     c.WindDirDeg,
		WindSpeedMS: c.WindAvgMS,
		GustMS:      c.WindMaxMS,
		RainMM:      c.RainMM,
	}
	if c.Humidity != nil {
		m.Humidity = validHumidity(int(math.Round(*c.Humidity)))
	}
	if c.LightLux != nil {
		m.LightWM2 = ptr(*c.LightLux / luxPerWattM2)
	}
	if c.UVI != nil {
		m.UVI = ptr(int(math.Round(*c.UVI)))
	}
	return m
}
