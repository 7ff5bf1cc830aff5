package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_EpochSeconds(t *testing.T) {
	ms, ok := Normalize("1700000000")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), ms)

	ms, ok = Normalize("  1700000000  ")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), ms)

	ms, ok = Normalize("1700000000.5")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000500), ms)
}

func TestNormalize_Unparseable(t *testing.T) {
	for _, raw := range []string{"not-a-date", "", "   ", "NaN", "Inf", "-Inf"} {
		_, ok := Normalize(raw)
		assert.False(t, ok, "input %q", raw)
	}
	assert.Nil(t, Ptr("not-a-date"))
}

func TestNormalize_SameInstantAcrossFormats(t *testing.T) {
	fromEpoch, ok := NormalizeIn("1700000000", time.UTC)
	require.True(t, ok)

	fromISO, ok := NormalizeIn("2023-11-14T22:13:20Z", time.UTC)
	require.True(t, ok)
	assert.Equal(t, fromEpoch, fromISO)

	fromOffset, ok := NormalizeIn("2023-11-15T06:13:20+08:00", time.UTC)
	require.True(t, ok)
	assert.Equal(t, fromEpoch, fromOffset)
}

func TestNormalizeIn_HumanReadableDate(t *testing.T) {
	ms, ok := NormalizeIn("Mar 12, 2025", time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC).UnixMilli(), ms)

	ms, ok = NormalizeIn("2025-03-12 08:30:00", time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 12, 8, 30, 0, 0, time.UTC).UnixMilli(), ms)
}

func TestNormalizeIn_DateOnlyIsUTC(t *testing.T) {
	want := time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC).UnixMilli()
	shanghai := time.FixedZone("UTC+8", 8*3600)
	newYork := time.FixedZone("UTC-5", -5*3600)

	for _, loc := range []*time.Location{time.UTC, shanghai, newYork, time.Local} {
		ms, ok := NormalizeIn("2025-03-12", loc)
		require.True(t, ok, "loc %s", loc)
		assert.Equal(t, want, ms, "loc %s", loc)
	}

	// 带时间但无时区的 ISO 仍按 loc 解析
	ms, ok := NormalizeIn("2025-03-12 08:00:00", shanghai)
	require.True(t, ok)
	assert.Equal(t, want, ms)
}

func TestPtr(t *testing.T) {
	p := Ptr("1700000000")
	require.NotNil(t, p)
	assert.Equal(t, int64(1700000000000), *p)
}
