package pipeline

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tormoder/fit"

	hrrcore "github.com/lucasjlepore/hrr-monitor"
)

// Device dropouts up to this long are bridged by holding the last reading;
// anything longer stays a gap.
const maxBackfillSec = 30

// LoadSessions decodes one activity FIT file into per-second HR sessions.
// A dropout longer than the backfill limit splits the recording: each
// contiguous stretch becomes its own session so index distance always equals
// elapsed seconds downstream. Segment ids carry a _seg suffix when a file
// splits; a single-segment file keeps the plain file name without extension.
func LoadSessions(path string) ([]hrrcore.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open FIT file: %w", err)
	}
	defer f.Close()

	decoded, err := fit.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity FIT expected: %w", err)
	}

	segments := buildHRSegments(activity.Records)
	if len(segments) == 0 {
		return nil, fmt.Errorf("no heart-rate records in %s", path)
	}

	base := filepath.Base(path)
	id := strings.TrimSuffix(base, filepath.Ext(base))
	sessions := make([]hrrcore.Session, len(segments))
	for i, samples := range segments {
		sid := id
		if len(segments) > 1 {
			sid = fmt.Sprintf("%s_seg%d", id, i+1)
		}
		sessions[i] = hrrcore.Session{ID: sid, Samples: samples}
	}
	return sessions, nil
}

// buildHRSegments extracts valid HR readings in timestamp order, bridges
// short device dropouts by holding the last reading, and starts a new segment
// at any longer dropout so no segment ever hides a wall-clock gap between
// adjacent samples.
func buildHRSegments(records []*fit.RecordMsg) [][]hrrcore.RawSample {
	type row struct {
		ts time.Time
		hr float64
	}
	rows := make([]row, 0, len(records))
	for _, rec := range records {
		if rec == nil || rec.HeartRate == math.MaxUint8 || rec.HeartRate == 0 {
			continue
		}
		ts := rec.Timestamp
		if ts.IsZero() || fit.IsBaseTime(ts) {
			continue
		}
		rows = append(rows, row{ts: ts, hr: float64(rec.HeartRate)})
	}
	if len(rows) == 0 {
		return nil
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].ts.Before(rows[j].ts)
	})

	var segments [][]hrrcore.RawSample
	current := make([]hrrcore.RawSample, 0, len(rows))
	for i, r := range rows {
		if i > 0 {
			prev := rows[i-1]
			missing := int(math.Round(r.ts.Sub(prev.ts).Seconds())) - 1
			switch {
			case missing > maxBackfillSec:
				segments = append(segments, current)
				current = nil
			case missing > 0:
				for m := 1; m <= missing; m++ {
					current = append(current, hrrcore.RawSample{
						Timestamp: prev.ts.Add(time.Duration(m) * time.Second),
						HRBPM:     prev.hr,
					})
				}
			}
		}
		current = append(current, hrrcore.RawSample{Timestamp: r.ts, HRBPM: r.hr})
	}
	return append(segments, current)
}
