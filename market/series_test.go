package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourlyBar(t time.Time, c float64) Bar {
	return Bar{Time: t, Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
}

func TestBarValidate(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid bar", func(t *testing.T) {
		b := Bar{Time: base, Open: 100, High: 105, Low: 99, Close: 102, Volume: 1000}
		assert.NoError(t, b.Validate())
	})

	t.Run("high below close", func(t *testing.T) {
		b := Bar{Time: base, Open: 100, High: 101, Low: 99, Close: 102, Volume: 1000}
		assert.Error(t, b.Validate())
	})

	t.Run("low above open", func(t *testing.T) {
		b := Bar{Time: base, Open: 100, High: 105, Low: 101, Close: 102, Volume: 1000}
		assert.Error(t, b.Validate())
	})

	t.Run("negative volume", func(t *testing.T) {
		b := Bar{Time: base, Open: 100, High: 105, Low: 99, Close: 102, Volume: -1}
		assert.Error(t, b.Validate())
	})
}

func TestBarSeriesOrdering(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewBarSeries("KRW-BTC", time.Hour)

	require.NoError(t, s.Append(hourlyBar(base, 100)))
	require.NoError(t, s.Append(hourlyBar(base.Add(time.Hour), 101)))

	t.Run("duplicate timestamp rejected", func(t *testing.T) {
		err := s.Append(hourlyBar(base.Add(time.Hour), 102))
		assert.ErrorIs(t, err, ErrOutOfOrder)
		assert.Equal(t, 2, s.Len())
	})

	t.Run("older timestamp rejected", func(t *testing.T) {
		err := s.Append(hourlyBar(base, 102))
		assert.ErrorIs(t, err, ErrOutOfOrder)
	})

	t.Run("gaps are allowed", func(t *testing.T) {
		assert.NoError(t, s.Append(hourlyBar(base.Add(7*time.Hour), 103)))
	})
}

func TestVisibleUpTo(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewBarSeries("KRW-BTC", time.Hour)
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(hourlyBar(base.Add(time.Duration(i)*time.Hour), 100+float64(i))))
	}

	hist := s.VisibleUpTo(2)
	require.Len(t, hist, 3)
	assert.Equal(t, 102.0, hist[2].Close)

	assert.Nil(t, s.VisibleUpTo(-1))
	assert.Len(t, s.VisibleUpTo(99), 5)
}

func TestIndexAt(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewBarSeries("KRW-ETH", time.Hour)
	for i := 0; i < 10; i++ {
		require.NoError(t, s.Append(hourlyBar(base.Add(time.Duration(i)*time.Hour), 50)))
	}

	assert.Equal(t, 0, s.IndexAt(base))
	assert.Equal(t, 7, s.IndexAt(base.Add(7*time.Hour)))
	assert.Equal(t, -1, s.IndexAt(base.Add(30*time.Minute)))
	assert.Equal(t, -1, s.IndexAt(base.Add(100*time.Hour)))
}

func TestResampleDaily(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewBarSeries("KRW-BTC", time.Hour)

	// Two full days followed by a partial third day.
	for i := 0; i < 52; i++ {
		c := 100 + float64(i)
		require.NoError(t, s.Append(Bar{
			Time: base.Add(time.Duration(i) * time.Hour),
			Open: c, High: c + 5, Low: c - 5, Close: c, Volume: 1,
		}))
	}

	daily := s.ResampleDaily()
	require.Equal(t, 2, daily.Len(), "incomplete trailing day must be dropped")

	d0, err := daily.At(0)
	require.NoError(t, err)
	assert.Equal(t, base, d0.Time)
	assert.Equal(t, 100.0, d0.Open)
	assert.Equal(t, 123.0, d0.Close)
	assert.Equal(t, 128.0, d0.High)
	assert.Equal(t, 95.0, d0.Low)
	assert.Equal(t, 24.0, d0.Volume)

	d1, err := daily.At(1)
	require.NoError(t, err)
	assert.Equal(t, base.Add(24*time.Hour), d1.Time)
	assert.Equal(t, 124.0, d1.Open)
	assert.Equal(t, 147.0, d1.Close)
}

func TestResampleDailyKeepsCompleteFinalDay(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	s := NewBarSeries("KRW-BTC", time.Hour)
	for i := 0; i < 24; i++ {
		require.NoError(t, s.Append(hourlyBar(base.Add(time.Duration(i)*time.Hour), 100)))
	}
	assert.Equal(t, 1, s.ResampleDaily().Len())
}
