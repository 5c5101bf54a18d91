// Package journal persists bundle lifecycle events to SQLite for
// post-run inspection: which bundles completed, with what latency, and
// how many in-progress bundles each eviction dropped.
//
// Writes are asynchronous. The aggregation engine's hot path only
// enqueues onto a buffered channel; a single writer goroutine owns the
// database. When the buffer fills, events are dropped and counted
// rather than stalling frame processing.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/visionstack/multicam/internal/frame"
	"github.com/visionstack/multicam/internal/infrastructure/logging"
)

const (
	EventCompleted = "completed"
	EventEvicted   = "evicted"
)

const schema = `
CREATE TABLE IF NOT EXISTS bundle_events (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	event       TEXT    NOT NULL,
	bundle_id   TEXT,
	anchor_ns   INTEGER,
	count       INTEGER NOT NULL DEFAULT 0,
	recorded_at INTEGER NOT NULL,
	detail      BLOB
);
CREATE INDEX IF NOT EXISTS idx_bundle_events_event ON bundle_events(event);
CREATE INDEX IF NOT EXISTS idx_bundle_events_recorded ON bundle_events(recorded_at);
`

// Event is one journal row.
type Event struct {
	ID         int64  `json:"id"`
	Event      string `json:"event"`
	BundleID   string `json:"bundle_id,omitempty"`
	AnchorNs   int64  `json:"anchor_ns,omitempty"`
	Count      int    `json:"count"`
	RecordedAt int64  `json:"recorded_at"`
}

// FrameDetail is the per-frame payload stored compressed in the detail
// blob of completion events.
type FrameDetail struct {
	FrameID           string `json:"frame_id"`
	CameraIndex       int    `json:"camera_index"`
	Timestamp         int64  `json:"timestamp_ns"`
	HardwareTimestamp int64  `json:"hardware_timestamp_ns"`
	Keypoints         int    `json:"keypoints"`
}

type record struct {
	event    string
	bundleID string
	anchorNs int64
	count    int
	detail   []byte // zstd-compressed JSON, may be nil
}

// Journal is the asynchronous SQLite event sink. It satisfies the
// aggregation engine's observer interface.
type Journal struct {
	db      *sql.DB
	logger  *logging.Logger
	encoder *zstd.Encoder
	decoder *zstd.Decoder

	queue   chan record
	dropped atomic.Int64

	done chan struct{}
	once sync.Once
}

// Open creates or opens the journal database at path and starts the
// writer. Pass ":memory:" for an ephemeral journal.
func Open(path string, logger *logging.Logger) (*Journal, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open %s: %w", path, err)
	}
	// A single connection sidesteps SQLite writer contention entirely.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: apply schema: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("journal: zstd decoder: %w", err)
	}

	j := &Journal{
		db:      db,
		logger:  logger,
		encoder: encoder,
		decoder: decoder,
		queue:   make(chan record, 256),
		done:    make(chan struct{}),
	}
	go j.writer()
	return j, nil
}

// BundleCompleted journals a completion event with a compressed
// per-frame detail payload.
func (j *Journal) BundleCompleted(b *frame.Bundle) {
	details := make([]FrameDetail, 0, b.Len())
	for _, f := range b.Frames() {
		if f == nil {
			continue
		}
		details = append(details, FrameDetail{
			FrameID:           f.ID.String(),
			CameraIndex:       f.CameraIndex,
			Timestamp:         f.Timestamp,
			HardwareTimestamp: f.HardwareTimestamp,
			Keypoints:         f.Features.NumKeypoints(),
		})
	}

	var blob []byte
	if raw, err := json.Marshal(details); err == nil {
		blob = j.encoder.EncodeAll(raw, nil)
	}

	j.enqueue(record{
		event:    EventCompleted,
		bundleID: b.ID().String(),
		anchorNs: b.AnchorTimestamp(),
		count:    b.Len(),
		detail:   blob,
	})
}

// BundlesEvicted journals an eviction batch.
func (j *Journal) BundlesEvicted(count int) {
	j.enqueue(record{event: EventEvicted, count: count})
}

func (j *Journal) enqueue(r record) {
	select {
	case j.queue <- r:
	default:
		j.dropped.Add(1)
	}
}

// writer is the single goroutine that touches the database.
func (j *Journal) writer() {
	defer close(j.done)
	for r := range j.queue {
		_, err := j.db.Exec(
			`INSERT INTO bundle_events (event, bundle_id, anchor_ns, count, recorded_at, detail)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			r.event, r.bundleID, r.anchorNs, r.count, time.Now().UnixNano(), r.detail,
		)
		if err != nil {
			j.logger.Warn("journal write failed", zap.String("event", r.event), zap.Error(err))
		}
	}
}

// Dropped returns the number of events discarded because the write
// queue was full.
func (j *Journal) Dropped() int64 { return j.dropped.Load() }

// RecentEvents returns up to limit events, newest first.
func (j *Journal) RecentEvents(limit int) ([]Event, error) {
	rows, err := j.db.Query(
		`SELECT id, event, bundle_id, anchor_ns, count, recorded_at
		 FROM bundle_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var bundleID sql.NullString
		var anchor sql.NullInt64
		if err := rows.Scan(&e.ID, &e.Event, &bundleID, &anchor, &e.Count, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("journal: scan event: %w", err)
		}
		e.BundleID = bundleID.String
		e.AnchorNs = anchor.Int64
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByEvent returns the total number of rows per event kind.
func (j *Journal) CountByEvent() (map[string]int64, error) {
	rows, err := j.db.Query(`SELECT event, COUNT(*) FROM bundle_events GROUP BY event`)
	if err != nil {
		return nil, fmt.Errorf("journal: count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var event string
		var n int64
		if err := rows.Scan(&event, &n); err != nil {
			return nil, fmt.Errorf("journal: scan count: %w", err)
		}
		counts[event] = n
	}
	return counts, rows.Err()
}

// FrameDetails decompresses and decodes the detail payload of a
// completion event.
func (j *Journal) FrameDetails(eventID int64) ([]FrameDetail, error) {
	var blob []byte
	err := j.db.QueryRow(
		`SELECT detail FROM bundle_events WHERE id = ?`, eventID).Scan(&blob)
	if err != nil {
		return nil, fmt.Errorf("journal: load detail %d: %w", eventID, err)
	}
	if len(blob) == 0 {
		return nil, nil
	}

	raw, err := j.decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("journal: decompress detail %d: %w", eventID, err)
	}
	var details []FrameDetail
	if err := json.Unmarshal(raw, &details); err != nil {
		return nil, fmt.Errorf("journal: decode detail %d: %w", eventID, err)
	}
	return details, nil
}

// Close flushes queued events and closes the database. Idempotent.
func (j *Journal) Close() error {
	var err error
	j.once.Do(func() {
		close(j.queue)
		<-j.done

		if n := j.dropped.Load(); n > 0 {
			j.logger.Warn("journal dropped events under backpressure", zap.Int64("count", n))
		}
		j.encoder.Close()
		j.decoder.Close()
		err = j.db.Close()
	})
	return err
}
