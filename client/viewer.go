package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// ViewerState is the lifecycle position of the instance currently loaded
// into a Viewer. Transitions only move forward within one Show call; a new
// Show or a Close resets the machine.
type ViewerState string

const (
	StateIdle       ViewerState = "idle"
	StateFetching   ViewerState = "fetching"
	StateValidating ViewerState = "validating"
	StateRendering  ViewerState = "rendering"
	StateDisplayed  ViewerState = "displayed"
	StateFailed     ViewerState = "failed"
)

var (
	// ErrViewerClosed is returned by Show after Close.
	ErrViewerClosed = errors.New("viewer is closed")
	// ErrSuperseded means the in-flight load was obsoleted by a newer Show
	// or by Close before its response arrived. The response was discarded.
	ErrSuperseded = errors.New("load superseded")
)

// InstanceFetcher is the slice of the API client the viewer needs.
type InstanceFetcher interface {
	FetchInstance(ctx context.Context, sopUID string) ([]byte, error)
}

// Renderer receives validated objects. Register stages the bytes under a
// viewer-local id, Display makes them visible, Release frees the slot.
// The viewer guarantees Register/Display are never called with an object
// that failed pre-flight validation.
type Renderer interface {
	Register(imageID string, data []byte) error
	Display(imageID string) error
	Release(imageID string)
}

// Viewer drives one display slot: fetch, validate, hand off, tear down.
type Viewer struct {
	fetcher  InstanceFetcher
	renderer Renderer
	logger   *slog.Logger

	// preflight is injectable so the state machine can be exercised
	// without synthesizing encoded datasets.
	preflight func(data []byte) (*headerSummary, error)

	mu         sync.Mutex
	state      ViewerState
	generation uint64
	imageID    string
	lastErr    error
	closed     bool
}

type ViewerOption func(*Viewer)

func WithPreflight(fn func(data []byte) (*headerSummary, error)) ViewerOption {
	return func(v *Viewer) {
		v.preflight = fn
	}
}

func WithViewerLogger(logger *slog.Logger) ViewerOption {
	return func(v *Viewer) {
		v.logger = logger
	}
}

func NewViewer(fetcher InstanceFetcher, renderer Renderer, opts ...ViewerOption) *Viewer {
	v := &Viewer{
		fetcher:   fetcher,
		renderer:  renderer,
		logger:    slog.Default(),
		preflight: parseHeaderSummary,
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Viewer) State() ViewerState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// LastError reports why the most recent Show failed, if it did.
func (v *Viewer) LastError() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastErr
}

// Show loads one SOP instance end to end. Any previously displayed image is
// released first. A response that arrives after Close, or after a newer
// Show took over, is discarded without touching the renderer.
func (v *Viewer) Show(ctx context.Context, sopUID string) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrViewerClosed
	}
	v.generation++
	gen := v.generation
	v.releaseCurrentLocked()
	v.state = StateFetching
	v.lastErr = nil
	v.mu.Unlock()

	data, err := v.fetcher.FetchInstance(ctx, sopUID)
	if err != nil {
		return v.fail(gen, fmt.Errorf("fetch %s: %w", sopUID, err))
	}
	if !v.advance(gen, StateValidating) {
		return ErrSuperseded
	}

	summary, err := v.preflight(data)
	if err != nil {
		return v.fail(gen, fmt.Errorf("instance %s is not a readable dataset: %w", sopUID, err))
	}
	if !summary.HasPixelData {
		return v.fail(gen, fmt.Errorf(
			"instance %s (sop class %s, transfer syntax %s) carries no pixel data and cannot be displayed",
			sopUID, summary.SOPClassUID, summary.TransferSyntaxUID))
	}
	if !v.advance(gen, StateRendering) {
		return ErrSuperseded
	}

	imageID := uuid.NewString()
	if err := v.renderer.Register(imageID, data); err != nil {
		return v.fail(gen, fmt.Errorf("register %s: %w", sopUID, err))
	}
	if err := v.renderer.Display(imageID); err != nil {
		v.renderer.Release(imageID)
		return v.fail(gen, fmt.Errorf("display %s: %w", sopUID, err))
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || gen != v.generation {
		// Close or a newer Show won the race after handoff began.
		v.renderer.Release(imageID)
		return ErrSuperseded
	}
	v.imageID = imageID
	v.state = StateDisplayed
	v.logger.Info("instance_displayed",
		"sop_uid", sopUID,
		"rows", summary.Rows,
		"columns", summary.Columns,
	)
	return nil
}

// Close releases the renderer slot and retires the viewer. Safe to call any
// number of times, in any state.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	v.closed = true
	v.generation++
	v.releaseCurrentLocked()
	v.state = StateIdle
}

func (v *Viewer) releaseCurrentLocked() {
	if v.imageID != "" {
		v.renderer.Release(v.imageID)
		v.imageID = ""
	}
}

// advance moves the machine forward iff this load is still the current one.
func (v *Viewer) advance(gen uint64, next ViewerState) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || gen != v.generation {
		return false
	}
	v.state = next
	return true
}

func (v *Viewer) fail(gen uint64, err error) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed || gen != v.generation {
		return ErrSuperseded
	}
	v.state = StateFailed
	v.lastErr = err
	v.logger.Warn("instance_load_failed", "error", err)
	return err
}
