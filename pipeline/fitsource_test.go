package pipeline

import (
	"math"
	"testing"
	"time"

	"github.com/tormoder/fit"
)

func recordAt(ts time.Time, hr uint8) *fit.RecordMsg {
	rec := fit.NewRecordMsg()
	rec.Timestamp = ts
	rec.HeartRate = hr
	return rec
}

func TestBuildHRSegmentsBridgesShortDropout(t *testing.T) {
	start := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	records := []*fit.RecordMsg{
		recordAt(start, 120),
		recordAt(start.Add(1*time.Second), 122),
		// 10s dropout, then the strap comes back.
		recordAt(start.Add(12*time.Second), 130),
	}

	segments := buildHRSegments(records)
	if len(segments) != 1 {
		t.Fatalf("segment count: got %d want 1", len(segments))
	}
	samples := segments[0]
	if len(samples) != 13 {
		t.Fatalf("sample count: got %d want 13", len(samples))
	}
	for i := 2; i < 12; i++ {
		if samples[i].HRBPM != 122 {
			t.Errorf("bridged sample %d: got %g want held 122", i, samples[i].HRBPM)
		}
		wantTS := start.Add(time.Duration(i) * time.Second)
		if !samples[i].Timestamp.Equal(wantTS) {
			t.Errorf("bridged sample %d timestamp: got %v want %v", i, samples[i].Timestamp, wantTS)
		}
	}
	if samples[12].HRBPM != 130 {
		t.Errorf("last sample: got %g want 130", samples[12].HRBPM)
	}
}

func TestBuildHRSegmentsSplitsOnLongDropout(t *testing.T) {
	start := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	records := []*fit.RecordMsg{
		recordAt(start, 120),
		recordAt(start.Add(1*time.Second), 121),
		// 90s past the last reading: too long to bridge.
		recordAt(start.Add(91*time.Second), 118),
		recordAt(start.Add(92*time.Second), 117),
	}

	segments := buildHRSegments(records)
	if len(segments) != 2 {
		t.Fatalf("a gap past the backfill limit must split the recording, got %d segments", len(segments))
	}
	if len(segments[0]) != 2 || len(segments[1]) != 2 {
		t.Fatalf("segment sizes: got %d/%d want 2/2", len(segments[0]), len(segments[1]))
	}
	// Adjacent samples within one segment are never more than a second apart.
	for si, samples := range segments {
		for i := 1; i < len(samples); i++ {
			if d := samples[i].Timestamp.Sub(samples[i-1].Timestamp); d != time.Second {
				t.Errorf("segment %d spacing at %d: got %v want 1s", si, i, d)
			}
		}
	}
}

func TestBuildHRSegmentsSkipsInvalidReadings(t *testing.T) {
	start := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	records := []*fit.RecordMsg{
		recordAt(start, 120),
		recordAt(start.Add(1*time.Second), math.MaxUint8),
		recordAt(start.Add(2*time.Second), 0),
		recordAt(time.Time{}, 125),
		nil,
		recordAt(start.Add(3*time.Second), 121),
	}

	segments := buildHRSegments(records)
	if len(segments) != 1 {
		t.Fatalf("segment count: got %d want 1", len(segments))
	}
	samples := segments[0]
	// The two invalid readings become a bridged dropout.
	if len(samples) != 4 {
		t.Fatalf("sample count: got %d want 4", len(samples))
	}
	if samples[1].HRBPM != 120 || samples[2].HRBPM != 120 {
		t.Errorf("dropout not bridged with held value: %g %g", samples[1].HRBPM, samples[2].HRBPM)
	}
	if samples[3].HRBPM != 121 {
		t.Errorf("final sample: got %g want 121", samples[3].HRBPM)
	}
}

func TestBuildHRSegmentsSortsOutOfOrder(t *testing.T) {
	start := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	records := []*fit.RecordMsg{
		recordAt(start.Add(2*time.Second), 124),
		recordAt(start, 120),
		recordAt(start.Add(1*time.Second), 122),
	}

	segments := buildHRSegments(records)
	if len(segments) != 1 {
		t.Fatalf("segment count: got %d want 1", len(segments))
	}
	samples := segments[0]
	if len(samples) != 3 {
		t.Fatalf("sample count: got %d want 3", len(samples))
	}
	for i := 1; i < len(samples); i++ {
		if !samples[i].Timestamp.After(samples[i-1].Timestamp) {
			t.Errorf("samples out of order at %d", i)
		}
	}
}
