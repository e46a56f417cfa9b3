package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// MinPacketLen is the shortest raw payload that carries every common field.
	MinPacketLen = 13

	// variantFieldsLen is the shortest payload that carries variant-specific fields.
	variantFieldsLen = 10

	windDirStep       = 22.5
	irradianceDivisor = 29.0
)

// Decode turns a capture envelope into a measurement. Pre-decoded envelopes
// are unit-normalized; everything else is byte-decoded from the first row.
func Decode(c Capture) (Measurement, error) {
	if c.PreDecoded() {
		return normalizePreDecoded(c), nil
	}
	return DecodePacket(c.Payload())
}

// DecodePacket decodes a raw hex payload. It never panics on any input: a
// payload that is not hex or is shorter than MinPacketLen returns an error,
// and an unknown variant returns only the common fields with UnknownVariant set.
func DecodePacket(rawHex string) (Measurement, error) {
	b, err := hex.DecodeString(strings.TrimSpace(rawHex))
	if err != nil {
		return Measurement{}, fmt.Errorf("%w: %v", ErrInvalidHex, err)
	}
	if len(b) < MinPacketLen {
		return Measurement{}, fmt.Errorf("%w: %d bytes, need %d", ErrPayloadTooShort, len(b), MinPacketLen)
	}

	v := Variant(b[3])
	m := Measurement{
		Variant:  &v,
		WindDir:  ptr(float64(b[2]&0x0F) * windDirStep),
		LightWM2: ptr(float64(uint16(b[10])<<8|uint16(b[11])) / irradianceDivisor),
		UVI:      ptr(int(b[12]>>4) & 0x0F),
	}

	l := v.layout()
	if l == layoutUnknown {
		m.UnknownVariant = true
		return m, nil
	}
	if len(b) >= variantFieldsLen {
		decodeVariantFields(&m, l, b)
	}
	return m, nil
}

func decodeVariantFields(m *Measurement, l layout, b []byte) {
	switch l {
	case layoutSplitHumidity:
		m.TempC = ptr(float64(int(b[4])-10) / 10)
		if b[5] >= 128 {
			m.Humidity = validHumidity(int(b[5]) - 117)
		} else {
			m.Humidity = validHumidity(int(b[5]) + 32)
		}
	case layoutNoHumidity:
		m.TempC = ptr(float64(int(b[4])-10) / 10)
	case layoutLinearHumidity:
		m.TempC = ptr(float64(int(b[4])+100) / 10)
		m.Humidity = validHumidity(int(b[5]) - 10)
	case layoutUnknown:
		return
	}

	m.WindSpeedMS = ptr(float64(b[6]) / 10)
	m.GustMS = ptr(float64(b[7]) / 10)
	m.RainMM = ptr(float64(b[9]&0x0F) / 10)
}

// validHumidity returns nil for values outside [0, 100].
func validHumidity(h int) *int {
	if h < 0 || h > 100 {
		return nil
	}
	return &h
}
