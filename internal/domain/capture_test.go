package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCapture(t *testing.T) {
	t.Run("raw envelope", func(t *testing.T) {
		c, err := ParseCapture([]byte(`{"time":"2026-01-21 16:05:09","rssi":-0.12,"model":"Generic-Remote","rows":[{"data":"aabb"}]}`))
		require.NoError(t, err)

		at, err := c.MeasuredAt()
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 1, 21, 16, 5, 9, 0, time.UTC), at)
		assert.InDelta(t, -0.12, *c.RSSI, 1e-9)
		assert.Equal(t, "aabb", c.Payload())
		assert.False(t, c.PreDecoded())
	})

	t.Run("invalid JSON", func(t *testing.T) {
		_, err := ParseCapture([]byte("{not json"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse capture")
	})

	t.Run("missing time", func(t *testing.T) {
		c, err := ParseCapture([]byte(`{"model":"x"}`))
		require.NoError(t, err)
		_, err = c.MeasuredAt()
		require.ErrorIs(t, err, ErrMissingTimestamp)
	})

	t.Run("malformed time", func(t *testing.T) {
		c := Capture{Time: "2026-01-21T16:05:09Z"}
		_, err := c.MeasuredAt()
		require.ErrorIs(t, err, ErrMissingTimestamp)
	})
}

func TestRepresentative(t *testing.T) {
	t1 := time.Date(2026, 1, 21, 10, 0, 0, 0, time.UTC)
	temp := 12.5

	readings := []Reading{
		{Filename: "t1", MeasuredAt: t1, Measurement: Measurement{TempC: &temp}},
		{Filename: "t2", MeasuredAt: t1.Add(time.Minute)},
		{Filename: "t3", MeasuredAt: t1.Add(2 * time.Minute), Measurement: Measurement{TempC: &temp}},
	}

	r, ok := Representative(readings)
	require.True(t, ok)
	assert.Equal(t, "t3", r.Filename)

	_, ok = Representative(readings[1:2])
	assert.False(t, ok)

	_, ok = Representative(nil)
	assert.False(t, ok)
}

func TestReading_LooksLikeAccumulator(t *testing.T) {
	big, small := 1234.5, 0.4
	assert.True(t, Reading{Measurement: Measurement{RainMM: &big}}.LooksLikeAccumulator(RainAccumulatorThreshold))
	assert.False(t, Reading{Measurement: Measurement{RainMM: &small}}.LooksLikeAccumulator(RainAccumulatorThreshold))
	assert.False(t, Reading{}.LooksLikeAccumulator(RainAccumulatorThreshold))
}
