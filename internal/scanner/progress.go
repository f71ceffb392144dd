package scanner

import (
	"context"

	"github.com/booksnap/booksnap/internal/capture"
	"github.com/booksnap/booksnap/internal/models"
)

// State is a step of the scan state machine.
type State string

const (
	StateIdle        State = "idle"
	StateClassifying State = "classifying"
	StateISBN        State = "isbn"
	StateCover       State = "cover"
	StateShelf       State = "shelf"
	StateDone        State = "done"
)

// Progress is an advisory event emitted while a scan runs.
type Progress struct {
	State   State  `json:"state"`
	Message string `json:"message"`
	Percent int    `json:"percent"`
}

type reporter struct {
	ch chan<- Progress
}

func (r reporter) report(state State, message string, percent int) {
	if r.ch == nil {
		return
	}
	select {
	case r.ch <- Progress{State: state, Message: message, Percent: percent}:
	default:
	}
}

// Task is a scan running in the background.
type Task struct {
	// Progress is closed once the scan has finished.
	Progress <-chan Progress

	cancel context.CancelFunc
	done   chan struct{}
	result models.ScanResult
	err    error
}

// Start runs Scan in a goroutine. Any Progress channel in opts is
// replaced by the task's own.
func (s *Scanner) Start(ctx context.Context, img *capture.Image, opts ScanOptions) *Task {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Progress, max(1, s.cfg.ProgressBuffer))
	opts.Progress = ch

	t := &Task{
		Progress: ch,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go func() {
		defer cancel()
		t.result, t.err = s.Scan(ctx, img, opts)
		close(ch)
		close(t.done)
	}()
	return t
}

// Cancel aborts the scan. The result then reports a cancelled scan and
// the scan is left out of the statistics.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed when the result is available.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Result blocks until the scan finishes.
func (t *Task) Result() (models.ScanResult, error) {
	<-t.done
	return t.result, t.err
}
