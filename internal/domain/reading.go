package domain

import (
	"encoding/json"
	"time"
)

// RainAccumulatorThreshold separates a cumulative rain counter from an
// incremental value. Readings above it still need correction.
const RainAccumulatorThreshold = 100.0

// Measurement holds the values decoded from one transmission. Absent values
// are nil.
type Measurement struct {
	Variant     *Variant `json:"packet_type,omitempty"`
	TempC       *float64 `json:"temp_c,omitempty"`
	Humidity    *int     `json:"humidity,omitempty"`
	WindDir     *float64 `json:"wind_dir,omitempty"`
	WindSpeedMS *float64 `json:"wind_speed_ms,omitempty"`
	GustMS      *float64 `json:"gust_ms,omitempty"`
	RainMM      *float64 `json:"rain_mm,omitempty"`
	LightWM2    *float64 `json:"light_wm2,omitempty"`
	UVI         *int     `json:"uvi,omitempty"`

	// UnknownVariant is set when a raw packet carried a tag outside the known
	// variant table. Only the common fields were extracted.
	UnknownVariant bool `json:"-"`
}

// HasValues reports whether any weather value was decoded.
func (m Measurement) HasValues() bool {
	return m.TempC != nil || m.Humidity != nil || m.WindDir != nil ||
		m.WindSpeedMS != nil || m.GustMS != nil || m.RainMM != nil ||
		m.LightWM2 != nil || m.UVI != nil
}

// Reading is one normalized record derived from one capture file.
type Reading struct {
	Measurement

	SourcePath  string          `json:"-"`
	Filename    string          `json:"filename"`
	MeasuredAt  time.Time       `json:"measured_at"`
	RSSI        *float64        `json:"rssi,omitempty"`
	RawData     string          `json:"raw_data,omitempty"`
	RawEnvelope json.RawMessage `json:"-"`
}

// LooksLikeAccumulator reports whether the rain value is still the station's
// cumulative counter rather than an incremental amount.
func (r Reading) LooksLikeAccumulator(threshold float64) bool {
	return r.RainMM != nil && *r.RainMM > threshold
}

// Representative returns the most recent reading that carries a temperature,
// scanning from the end of a chronologically ordered slice.
func Representative(readings []Reading) (Reading, bool) {
	for i := len(readings) - 1; i >= 0; i-- {
		if readings[i].TempC != nil {
			return readings[i], true
		}
	}
	return Reading{}, false
}

func ptr[T any](v T) *T {
	return &v
}
