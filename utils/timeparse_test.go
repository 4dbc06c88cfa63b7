package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrequencyCombinesUnits(t *testing.T) {
	seconds, err := ParseFrequency("1w 2d 3hr 30m")
	require.NoError(t, err)
	assert.Equal(t, int64(1*604800+2*86400+3*3600+30*60), seconds)
}

func TestParseFrequencyVariants(t *testing.T) {
	cases := []struct {
		input string
		want  int64
	}{
		{"30s", 30},
		{"90 seconds", 90},
		{"1.5hr", 5400},
		{"2 Weeks", 2 * 604800},
		{"1mon", 2629746},
		{"1y", 31556952},
		{"10m30s", 630},
	}
	for _, tc := range cases {
		seconds, err := ParseFrequency(tc.input)
		require.NoError(t, err, "input %q", tc.input)
		assert.Equal(t, tc.want, seconds, "input %q", tc.input)
	}
}

func TestParseFrequencyRejectsBadInput(t *testing.T) {
	for _, input := range []string{"garbage", "", "   ", "5 lightyears", "0s"} {
		_, err := ParseFrequency(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestFormatFrequency(t *testing.T) {
	cases := []struct {
		seconds int64
		want    string
	}{
		{1, "1 second"},
		{45, "45 seconds"},
		{60, "1 minute"},
		{3660, "1 hour and 1 minute"},
		{90061, "1 day, 1 hour, 1 minute, and 1 second"},
		{604800, "1 week"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatFrequency(tc.seconds), "seconds %d", tc.seconds)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, seconds := range []int64{60, 3600, 86400, 604800, 90061, 5400} {
		parsed, err := ParseFrequency(FormatFrequency(seconds))
		require.NoError(t, err)
		assert.Equal(t, seconds, parsed)
	}
}
