// Package domain models weather readings relayed from a Fine Offset WH2900
// family RF transmitter (433 MHz) and the rules applied to them before they
// are handed to sinks.
//
// # Data Source
//
// An external radio decoder (rtl_433) writes one JSON envelope per received
// transmission into the capture directory. Two envelope shapes arrive:
//
//	Raw family:         {"time": "...", "model": "...", "rows": [{"data": "<hex>"}]}
//	Pre-decoded family: {"time": "...", "model": "Fineoffset-WH65B", "temperature_C": 21.3, ...}
//
// The "time" field is "YYYY-MM-DD HH:MM:SS" in UTC. A model starting with
// "Fineoffset" selects the pre-decoded path; everything else is byte-decoded.
//
// # Raw Packet Layout
//
// Byte 3 is the packet variant. Known variants are 0x13 through 0x17. Payloads
// shorter than 13 bytes are rejected. Fields present in every variant:
//
//	wind direction  (b[2] & 0x0F) * 22.5           degrees, 16 compass steps
//	irradiance      ((b[10] << 8) | b[11]) / 29    W/m²
//	UV index        (b[12] >> 4) & 0x0F            0–15
//
// Variant-specific fields:
//
//	0x13        temp (b[4] - 10) / 10    humidity b[5]-117 if b[5] >= 128, else b[5]+32
//	0x14        temp (b[4] - 10) / 10    no humidity
//	0x15–0x17   temp (b[4] + 100) / 10   humidity b[5] - 10
//
// For every known variant: wind speed b[6]/10 m/s, gust b[7]/10 m/s and rain
// (b[9] & 0x0F) / 10 mm. Only the low nibble of the rain counter is visible in
// a raw packet; that is an upstream protocol limitation.
//
// Unknown variants still yield the common fields and are flagged so callers
// can log them. Humidity outside [0, 100] is discarded, never clamped.
//
// # Pre-decoded Units
//
// Pre-decoded envelopes already carry named values. Illuminance arrives in lux
// and is converted to irradiance with a fixed factor of 126 lux per W/m². The
// rain value is the station's cumulative counter, which [RainAccumulatorThreshold]
// distinguishes from an incremental value.
//
// # Retention
//
// Capture files are the only record of a transmission, so deletion is
// conservative. See [ShouldDelete].
package domain
