package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/dustin/go-humanize"
	"github.com/oklog/ulid/v2"
)

// DefaultRecordLimit bounds how many records a Recorder keeps.
const DefaultRecordLimit = 10000

// Record is one completed load as seen by a Recorder.
type Record struct {
	ID           string        `json:"id"`
	BundleName   string        `json:"bundle_name"`
	PackageName  string        `json:"package_name"`
	AssetAddress string        `json:"asset_address,omitempty"`
	AssetPath    string        `json:"asset_path,omitempty"`
	Dependencies []string      `json:"dependencies,omitempty"`
	Async        bool          `json:"async"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Duration     time.Duration `json:"duration"`
	Success      bool          `json:"success"`
	Error        string        `json:"error,omitempty"`
	ByteSize     int64         `json:"byte_size"`
	Unloaded     bool          `json:"unloaded"`
}

// ReadableDuration formats the load time as milliseconds below one second.
func (r Record) ReadableDuration() string {
	ms := float64(r.Duration) / float64(time.Millisecond)
	if ms < 1000 {
		return fmt.Sprintf("%.2fms", ms)
	}
	return fmt.Sprintf("%.2fs", ms/1000)
}

// ReadableSize formats the bundle size.
func (r Record) ReadableSize() string {
	return humanize.IBytes(uint64(r.ByteSize))
}

// Summary aggregates a recording session.
type Summary struct {
	Recording   bool          `json:"recording"`
	StartTime   time.Time     `json:"start_time"`
	Duration    time.Duration `json:"duration"`
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Unloads     int           `json:"unloads"`
	LoadedBytes int64         `json:"loaded_bytes"`
	Readable    string        `json:"loaded_readable"`
}

// Recorder keeps a bounded history of loads for inspection.
type Recorder struct {
	mu        sync.Mutex
	limit     int
	recording bool
	started   time.Time
	stopped   time.Time
	records   []Record
	unloads   int
	now       func() time.Time
}

// NewRecorder creates a recorder that starts recording immediately.
// A limit of zero or less uses DefaultRecordLimit.
func NewRecorder(limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultRecordLimit
	}
	r := &Recorder{limit: limit, now: time.Now}
	r.Start()
	return r
}

// Start begins a new session and drops previous records.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recording = true
	r.started = r.now()
	r.stopped = time.Time{}
	r.records = nil
	r.unloads = 0
}

// Stop ends the session; records are kept.
func (r *Recorder) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recording {
		r.recording = false
		r.stopped = r.now()
	}
}

// Records returns a copy of the recorded loads, oldest first.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Summary returns totals for the current session.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := Summary{
		Recording: r.recording,
		StartTime: r.started,
		Total:     len(r.records),
		Unloads:   r.unloads,
	}
	if r.recording {
		s.Duration = r.now().Sub(r.started)
	} else {
		s.Duration = r.stopped.Sub(r.started)
	}
	for _, rec := range r.records {
		if rec.Success {
			s.Succeeded++
			s.LoadedBytes += rec.ByteSize
		} else {
			s.Failed++
		}
	}
	s.Readable = humanize.IBytes(uint64(s.LoadedBytes))
	return s
}

// MarshalJSON exports the records.
func (r *Recorder) MarshalJSON() ([]byte, error) {
	return sonic.Marshal(r.Records())
}

func (r *Recorder) add(e LoadEvent, success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return
	}
	if len(r.records) >= r.limit {
		r.records = r.records[1:]
	}
	r.records = append(r.records, Record{
		ID:           ulid.Make().String(),
		BundleName:   e.BundleName,
		PackageName:  e.PackageName,
		AssetAddress: e.AssetAddress,
		AssetPath:    e.AssetPath,
		Dependencies: e.Dependencies,
		Async:        e.Async,
		StartTime:    e.StartTime,
		EndTime:      e.EndTime,
		Duration:     e.Duration(),
		Success:      success,
		Error:        e.Error,
		ByteSize:     e.ByteSize,
	})
}

func (r *Recorder) LoadStarted(LoadEvent) {}

func (r *Recorder) LoadSucceeded(e LoadEvent) { r.add(e, true) }

func (r *Recorder) LoadFailed(e LoadEvent) { r.add(e, false) }

func (r *Recorder) Unloaded(e UnloadEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return
	}
	r.unloads++
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].BundleName == e.BundleName && r.records[i].Success {
			r.records[i].Unloaded = true
			break
		}
	}
}
