package zipcore

import (
	"testing"
	"time"
)

func TestDOSTimeRoundTrip(t *testing.T) {
	cases := []time.Time{
		time.Date(2023, time.March, 14, 9, 26, 54, 0, time.UTC),
		time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2107, time.December, 31, 23, 59, 58, 0, time.UTC),
	}
	for _, want := range cases {
		date, dosTime := timeToDOS(want)
		got := dosToTime(date, dosTime)
		if !got.Equal(want) {
			t.Errorf("dosToTime(timeToDOS(%v)) = %v, want %v", want, got, want)
		}
	}
}

func TestDOSTimeClampsPre1980(t *testing.T) {
	date, _ := timeToDOS(time.Date(1970, time.June, 1, 0, 0, 0, 0, time.UTC))
	got := dosToTime(date, 0)
	if got.Year() != 1980 {
		t.Errorf("year = %d, want 1980", got.Year())
	}
}

func TestVersionEncodeDecodeRoundTrip(t *testing.T) {
	v := version{major: 2, minor: 0, compat: 0}
	if got := decodeVersion(v.encode()); got != v {
		t.Errorf("decodeVersion(encode(%v)) = %v", v, got)
	}
}
