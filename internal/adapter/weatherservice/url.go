package weatherservice

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/wh2900-relay/internal/domain"
)

const (
	mphPerMS   = 2.237
	knotsPerMS = 1.94384
	mmPerInch  = 25.4

	wuDateLayout    = "2006-01-02 15:04:05"
	windguruSaltFmt = "20060102150405"
)

func tenths(v float64) string {
	return strconv.Itoa(int(math.Round(v * 10)))
}

func fixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func fahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// weathercloudURL encodes values as path segments, in tenths where the API
// expects fixed-point integers.
func weathercloudURL(base, id, key string, r domain.Reading) string {
	parts := []string{
		strings.TrimRight(base, "/"),
		"wid", url.PathEscape(id),
		"key", url.PathEscape(key),
	}
	add := func(name, value string) { parts = append(parts, name, value) }

	if r.TempC != nil {
		add("temp", tenths(*r.TempC))
	}
	if r.Humidity != nil {
		add("hum", strconv.Itoa(*r.Humidity))
	}
	if r.WindSpeedMS != nil {
		add("wspd", tenths(*r.WindSpeedMS))
	}
	if r.WindDir != nil {
		add("wdir", strconv.Itoa(int(*r.WindDir)))
	}
	if r.GustMS != nil {
		add("wspdhi", tenths(*r.GustMS))
	}
	if r.RainMM != nil {
		add("rain", tenths(*r.RainMM))
	}
	if r.LightWM2 != nil {
		add("solarrad", tenths(*r.LightWM2))
	}
	if r.UVI != nil {
		add("uvi", strconv.Itoa(*r.UVI))
	}
	add("software", SoftwareType)
	return strings.Join(parts, "/")
}

// imperialURL builds the Wunderground upload protocol, also spoken by
// PWSweather.
func imperialURL(base, id, key string, r domain.Reading) string {
	q := url.Values{
		"ID":           {id},
		"PASSWORD":     {key},
		"action":       {"updateraw"},
		"dateutc":      {r.MeasuredAt.UTC().Format(wuDateLayout)},
		"softwaretype": {SoftwareType},
	}
	if r.TempC != nil {
		q.Set("tempf", fixed(fahrenheit(*r.TempC), 1))
	}
	if r.Humidity != nil {
		q.Set("humidity", strconv.Itoa(*r.Humidity))
	}
	if r.WindSpeedMS != nil {
		q.Set("windspeedmph", fixed(*r.WindSpeedMS*mphPerMS, 1))
	}
	if r.WindDir != nil {
		q.Set("winddir", strconv.Itoa(int(*r.WindDir)))
	}
	if r.GustMS != nil {
		q.Set("windgustmph", fixed(*r.GustMS*mphPerMS, 1))
	}
	if r.RainMM != nil {
		q.Set("rainin", fixed(*r.RainMM/mmPerInch, 2))
	}
	if r.UVI != nil {
		q.Set("UV", strconv.Itoa(*r.UVI))
	}
	if r.LightWM2 != nil {
		q.Set("solarradiation", fixed(*r.LightWM2, 1))
	}
	return base + "?" + q.Encode()
}

// windguruURL authenticates with md5(salt + uid + password), the salt being
// the current UTC time.
func windguruURL(base, uid, password string, now time.Time, r domain.Reading) string {
	salt := now.UTC().Format(windguruSaltFmt)
	sum := md5.Sum([]byte(salt + uid + password))

	q := url.Values{
		"uid":  {uid},
		"salt": {salt},
		"hash": {hex.EncodeToString(sum[:])},
	}
	if r.WindSpeedMS != nil {
		q.Set("wind_avg", fixed(*r.WindSpeedMS*knotsPerMS, 1))
	}
	if r.GustMS != nil {
		q.Set("wind_max", fixed(*r.GustMS*knotsPerMS, 1))
	}
	if r.WindDir != nil {
		q.Set("wind_direction", strconv.Itoa(int(*r.WindDir)))
	}
	if r.TempC != nil {
		q.Set("temperature", fixed(*r.TempC, 1))
	}
	if r.Humidity != nil {
		q.Set("rh", strconv.Itoa(*r.Humidity))
	}
	return base + "?" + q.Encode()
}
