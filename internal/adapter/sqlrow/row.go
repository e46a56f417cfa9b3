// Package sqlrow maps readings onto the two-table storage layout shared by the
// SQL sinks: dataraw keeps every envelope, medicion keeps decoded values.
package sqlrow

import (
	"github.com/couchcryptid/wh2900-relay/internal/domain"
)

// MeasurementColumns is the medicion column order used by MeasurementArgs.
var MeasurementColumns = []string{
	"filename", "fecha_medicion", "packet_type", "temp_c", "humidity",
	"wind_dir", "wind_speed_ms", "gust_ms", "light_wm2", "uvi", "rain_mm",
	"rssi", "raw_data",
}

// MeasurementArgs returns the medicion values of r in MeasurementColumns order.
// Absent values are nil.
func MeasurementArgs(r domain.Reading) []any {
	var packetType *int16
	if r.Variant != nil {
		v := int16(*r.Variant)
		packetType = &v
	}
	var rawData *string
	if r.RawData != "" {
		rawData = &r.RawData
	}
	return []any{
		r.Filename, r.MeasuredAt.UTC(), packetType, r.TempC, r.Humidity,
		r.WindDir, r.WindSpeedMS, r.GustMS, r.LightWM2, r.UVI, r.RainMM,
		r.RSSI, rawData,
	}
}

// Envelope returns the capture envelope to archive, falling back to an
// empty object when the original bytes are unavailable.
func Envelope(r domain.Reading) string {
	if len(r.RawEnvelope) > 0 {
		return string(r.RawEnvelope)
	}
	return "{}"
}
