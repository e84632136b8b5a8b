package domain

import (
	"context"
	"time"
)

// Hit is one view of an event endpoint, reported to the external
// hit-counting collector.
type Hit struct {
	App       string    `json:"app"`
	URI       string    `json:"uri"`
	IP        string    `json:"ip"`
	Timestamp time.Time `json:"timestamp"`
}

// HitRecorder reports hits to the stats collector. Implementations are
// expected to buffer on failure and replay later rather than lose hits;
// recording must never fail a caller's request.
type HitRecorder interface {
	RecordHit(ctx context.Context, hit Hit) error
}
