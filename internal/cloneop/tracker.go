// Package cloneop tracks in-flight clone operations: it issues ids,
// streams staged progress events on a per-operation channel, computes
// transfer rates from cumulative byte counters, and supports cooperative
// cancellation. Nothing here is persisted; an operation record lives until
// the caller cleans it up.
package cloneop

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tianchangNorth/githeart/internal/gitexec"
	"github.com/tianchangNorth/githeart/internal/remote"
)

var (
	ErrUnknownOperation = errors.New("unknown clone operation id")
	ErrOperationRunning = errors.New("clone operation still running")
)

// Progress is one event in a clone's stream. ReceivedBytes inside Network
// is cumulative; Rate is the smoothed bytes-per-second derived from
// successive samples.
type Progress struct {
	ID      string
	Stage   Stage
	Percent int
	Message string
	Network *gitexec.TransferProgress
	Rate    float64
}

// Result is the terminal record of a clone attempt, queryable after the
// event stream has closed and until Cleanup releases the id.
type Result struct {
	ID        string
	Success   bool
	Path      string
	Error     string
	Duration  time.Duration
	FileCount int
}

// Cloner executes the actual clone. *gitexec.Dispatcher satisfies it.
type Cloner interface {
	Clone(ctx context.Context, protocol remote.Protocol, opts gitexec.CloneOptions) error
}

const (
	eventBuffer     = 64
	rateHistorySize = 10
)

// operation is the tracker's per-id record.
type operation struct {
	id     string
	events chan Progress
	cancel context.CancelFunc

	cancelled bool
	result    *Result

	lastStage   Stage
	lastPercent int

	lastSample time.Time
	lastBytes  int64
	rates      []float64
	rate       float64
}

// Tracker manages concurrent clone operations keyed by operation id.
type Tracker struct {
	cloner Cloner
	log    zerolog.Logger

	now   func() time.Time
	newID func() string

	mu  sync.Mutex
	ops map[string]*operation
}

// NewTracker creates a tracker cloning through the given Cloner.
func NewTracker(cloner Cloner, log zerolog.Logger) *Tracker {
	return &Tracker{
		cloner: cloner,
		log:    log.With().Str("component", "cloneop").Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
		ops:    make(map[string]*operation),
	}
}

// Start allocates an operation id, begins the clone asynchronously, and
// returns the id together with the operation's event channel. The channel
// is buffered and registered before any work is spawned, so no event can
// be lost between Start returning and the caller beginning to receive.
// The channel is closed after the terminal event.
func (t *Tracker) Start(ctx context.Context, opts gitexec.CloneOptions) (string, <-chan Progress) {
	ctx, cancel := context.WithCancel(ctx)

	op := &operation{
		id:        t.newID(),
		events:    make(chan Progress, eventBuffer),
		cancel:    cancel,
		lastStage: StageInitializing,
	}

	t.mu.Lock()
	t.ops[op.id] = op
	t.mu.Unlock()

	go t.run(ctx, op, opts)
	return op.id, op.events
}

// Cancel requests a cooperative abort of an in-flight clone. It does not
// guarantee immediate termination; a terminal Error event with a
// cancellation message is still emitted so listeners can clean up.
func (t *Tracker) Cancel(id string) error {
	t.mu.Lock()
	op, ok := t.ops[id]
	if ok {
		op.cancelled = true
	}
	t.mu.Unlock()
	if !ok {
		return ErrUnknownOperation
	}
	op.cancel()
	return nil
}

// Result returns the terminal record for id, or ErrOperationRunning while
// the clone is still in flight.
func (t *Tracker) Result(id string) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	if !ok {
		return nil, ErrUnknownOperation
	}
	if op.result == nil {
		return nil, ErrOperationRunning
	}
	out := *op.result
	return &out, nil
}

// Cleanup releases the record for a terminal operation id. Any further
// call with the same id fails with ErrUnknownOperation.
func (t *Tracker) Cleanup(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	op, ok := t.ops[id]
	if !ok {
		return ErrUnknownOperation
	}
	if op.result == nil {
		return ErrOperationRunning
	}
	delete(t.ops, id)
	return nil
}

func (t *Tracker) run(ctx context.Context, op *operation, opts gitexec.CloneOptions) {
	start := t.now()
	protocol := remote.Detect(opts.URL)

	t.emit(op, Progress{Stage: StageInitializing, Percent: 0, Message: "preparing clone"})
	t.emit(op, Progress{Stage: StageConnecting, Percent: 5, Message: fmt.Sprintf("connecting to %s", remote.ExtractDomain(opts.URL))})

	opts.OnTransfer = func(tp gitexec.TransferProgress) {
		t.onTransfer(op, tp)
	}

	err := t.cloner.Clone(ctx, protocol, opts)
	if err == nil {
		t.emit(op, Progress{Stage: StageCheckingOut, Percent: 95, Message: "checking out files"})
	}

	duration := t.now().Sub(start)

	t.mu.Lock()
	cancelled := op.cancelled
	t.mu.Unlock()

	res := Result{ID: op.id, Path: opts.Path, Duration: duration}
	switch {
	case err == nil && !cancelled:
		res.Success = true
		res.FileCount = countFiles(opts.Path)
		t.finish(op, &res, Progress{Stage: StageCompleted, Percent: 100, Message: "clone completed"})
	case cancelled:
		res.Error = "clone cancelled"
		t.finish(op, &res, Progress{Stage: StageError, Percent: 100, Message: "clone cancelled"})
	default:
		res.Error = err.Error()
		t.finish(op, &res, Progress{Stage: StageError, Percent: 100, Message: err.Error()})
	}

	t.log.Info().
		Str("id", op.id).
		Str("url", opts.URL).
		Bool("success", res.Success).
		Dur("duration", duration).
		Msg("clone finished")
}

// onTransfer converts a cumulative network sample into a Downloading or
// Unpacking event with an updated rate.
func (t *Tracker) onTransfer(op *operation, tp gitexec.TransferProgress) {
	t.mu.Lock()
	now := t.now()
	if !op.lastSample.IsZero() {
		dt := now.Sub(op.lastSample).Seconds()
		// A non-positive interval gives no usable sample; keep the
		// previous rate rather than dividing by it.
		if dt > 0 {
			sample := float64(tp.ReceivedBytes-op.lastBytes) / dt
			if len(op.rates) >= rateHistorySize {
				op.rates = op.rates[1:]
			}
			op.rates = append(op.rates, sample)
			var sum float64
			for _, r := range op.rates {
				sum += r
			}
			op.rate = sum / float64(len(op.rates))
			op.lastSample = now
			op.lastBytes = tp.ReceivedBytes
		}
	} else {
		op.lastSample = now
		op.lastBytes = tp.ReceivedBytes
	}
	rate := op.rate
	t.mu.Unlock()

	stage := StageDownloading
	done, total := tp.ReceivedObjects, tp.TotalObjects
	if tp.TotalObjects > 0 && tp.ReceivedObjects >= tp.TotalObjects && tp.IndexedObjects > 0 {
		stage = StageUnpacking
		done = tp.IndexedObjects
	}

	network := tp
	t.emit(op, Progress{
		Stage:   stage,
		Percent: stagePercent(stage, done, total),
		Message: fmt.Sprintf("%s objects %d/%d", stage, done, total),
		Network: &network,
		Rate:    rate,
	})
}

// emit delivers one event, enforcing monotonic (stage, percent) ordering.
// Delivery never blocks the producing goroutine: if the buffer is full the
// oldest pending event is dropped to make room.
func (t *Tracker) emit(op *operation, p Progress) {
	t.mu.Lock()
	if p.Stage < op.lastStage {
		t.mu.Unlock()
		return
	}
	if p.Percent < op.lastPercent {
		p.Percent = op.lastPercent
	}
	op.lastStage = p.Stage
	op.lastPercent = p.Percent
	t.mu.Unlock()

	p.ID = op.id
	for {
		select {
		case op.events <- p:
			return
		default:
			select {
			case <-op.events:
			default:
			}
		}
	}
}

// finish records the terminal result, emits the terminal event, and closes
// the stream.
func (t *Tracker) finish(op *operation, res *Result, terminal Progress) {
	t.mu.Lock()
	op.result = res
	t.mu.Unlock()
	t.emit(op, terminal)
	close(op.events)
}

// countFiles walks the checked-out tree, excluding repository metadata.
func countFiles(root string) int {
	count := 0
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		count++
		return nil
	})
	return count
}

// FormatRate renders a bytes-per-second rate for display.
func FormatRate(bytesPerSec float64) string {
	switch {
	case bytesPerSec >= 1<<20:
		return fmt.Sprintf("%.1f MiB/s", bytesPerSec/(1<<20))
	case bytesPerSec >= 1<<10:
		return fmt.Sprintf("%.1f KiB/s", bytesPerSec/(1<<10))
	default:
		return fmt.Sprintf("%.0f B/s", bytesPerSec)
	}
}
