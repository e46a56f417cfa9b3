// Command genmock writes synthetic WH2900 capture files for exercising a
// relay deployment without a radio. Each generated payload is decoded with
// the relay's own decoder so a fixture never disagrees with real behavior.
//
// Usage:
//
//	go run ./cmd/genmock -out /var/log/wh2900 -count 12 -interval 5m
package main

import (
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/couchcryptid/wh2900-relay/internal/domain"
)

var baseDate = time.Date(2026, time.January, 21, 12, 0, 0, 0, time.UTC)

// sample is one set of weather values to encode.
type sample struct {
	tempC    float64
	humidity int
	windDir  float64
	windMS   float64
	gustMS   float64
	rainMM   float64
	lightWM2 float64
	uvi      int
}

// envelope mirrors the radio decoder's output for raw packets.
type envelope struct {
	Time  string  `json:"time"`
	RSSI  float64 `json:"rssi"`
	Model string  `json:"model"`
	Rows  []row   `json:"rows"`
}

type row struct {
	Data string `json:"data"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "directory to write capture files into")
	count := flag.Int("count", 12, "number of captures to generate")
	interval := flag.Duration("interval", 5*time.Minute, "time between captures")
	flag.Parse()

	if *out == "" || *count <= 0 {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	variants := map[domain.Variant]int{}
	for i := range *count {
		s := synthesize(i)
		payload, err := encode(s)
		if err != nil {
			return fmt.Errorf("capture %d: %w", i, err)
		}
		m, err := domain.DecodePacket(hex.EncodeToString(payload))
		if err != nil {
			return fmt.Errorf("capture %d: decode: %w", i, err)
		}
		if err := check(s, m); err != nil {
			return fmt.Errorf("capture %d: %w", i, err)
		}
		variants[*m.Variant]++

		at := baseDate.Add(time.Duration(i) * *interval)
		env := envelope{
			Time:  at.Format(domain.CaptureTimeLayout),
			RSSI:  -70 - float64(i%10),
			Model: "WH2900",
			Rows:  []row{{Data: hex.EncodeToString(payload)}},
		}
		path := filepath.Join(*out, fmt.Sprintf("wh2900_%d.json", at.Unix()))
		if err := writeJSON(path, env); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}

	log.Printf("wrote %d captures to %s", *count, *out)
	for v, n := range variants {
		fmt.Printf("%s: %d\n", v, n)
	}
	return nil
}

// synthesize produces a plausible diurnal cycle: temperature and light peak
// mid-series, humidity moves opposite to temperature.
func synthesize(i int) sample {
	phase := math.Sin(float64(i) * math.Pi / 12)
	return sample{
		tempC:    math.Round((12+10*phase)*10) / 10,
		humidity: 60 - int(25*phase),
		windDir:  float64(i%16) * 22.5,
		windMS:   float64(i%8) * 0.7,
		gustMS:   float64(i%8)*0.7 + 1.2,
		rainMM:   float64(i%4) * 0.3,
		lightWM2: math.Max(0, 400*phase),
		uvi:      max(0, int(6*phase)),
	}
}

// encode builds a raw payload, choosing the variant whose temperature
// encoding covers the value.
func encode(s sample) ([]byte, error) {
	b := make([]byte, domain.MinPacketLen)
	b[2] = byte(int(s.windDir/22.5) & 0x0F)

	tenths := int(math.Round(s.tempC * 10))
	switch {
	case tenths >= -10 && tenths <= 245 && s.humidity >= 11:
		b[3] = byte(domain.Variant13)
		b[4] = byte(tenths + 10)
		b[5] = byte(s.humidity + 117)
	case tenths >= 100 && tenths <= 355:
		b[3] = byte(domain.Variant15)
		b[4] = byte(tenths - 100)
		b[5] = byte(s.humidity + 10)
	default:
		return nil, fmt.Errorf("temperature %.1f C not encodable", s.tempC)
	}

	b[6] = byte(math.Round(s.windMS * 10))
	b[7] = byte(math.Round(s.gustMS * 10))
	b[9] = byte(int(math.Round(s.rainMM*10)) & 0x0F)
	light := uint16(math.Round(s.lightWM2 * 29))
	b[10], b[11] = byte(light>>8), byte(light)
	b[12] = byte(s.uvi&0x0F) << 4
	return b, nil
}

// check compares decoded values with the sample within encoding precision.
func check(s sample, m domain.Measurement) error {
	near := func(name string, want float64, got *float64, tol float64) error {
		if got == nil {
			return fmt.Errorf("%s not decoded", name)
		}
		if math.Abs(*got-want) > tol {
			return fmt.Errorf("%s: want %.2f, got %.2f", name, want, *got)
		}
		return nil
	}
	if err := near("temperature", s.tempC, m.TempC, 0.05); err != nil {
		return err
	}
	if m.Humidity == nil || *m.Humidity != s.humidity {
		return fmt.Errorf("humidity: want %d", s.humidity)
	}
	if err := near("wind speed", s.windMS, m.WindSpeedMS, 0.05); err != nil {
		return err
	}
	if err := near("rain", s.rainMM, m.RainMM, 0.05); err != nil {
		return err
	}
	return near("light", s.lightWM2, m.LightWM2, 0.05)
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
