// Package render owns the view state that every frame is produced from: the
// current volume, transfer function, render mode and quality, transform,
// clipping planes and window/level, plus the volume load state machine.
package render

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"volumeviewer/internal/models"
	"volumeviewer/pkg/logging"
	"volumeviewer/pkg/reconstruction"
	"volumeviewer/pkg/transfer"
	"volumeviewer/pkg/volume"
)

var (
	// ErrLoadInProgress is returned by Load while another load is running.
	ErrLoadInProgress = errors.New("volume load already in progress")

	// ErrLoadCanceled is reported when a load is canceled before completion.
	ErrLoadCanceled = errors.New("volume load canceled")
)

// VolumeBuilder constructs a volume from a decoded series. Build is called
// off the interaction goroutine and must honor ctx.
type VolumeBuilder interface {
	Build(ctx context.Context, series *models.Series, progress reconstruction.ProgressCallback) (*volume.Volume, error)
}

// ViewState is a consistent snapshot of everything a frame is rendered from.
// Snapshots are copies; mutating one has no effect on the orchestrator.
type ViewState struct {
	// Version increases with every change
	Version uint64

	// Volume is nil until the first successful load
	Volume           *volume.Volume
	TransferFunction *transfer.Function
	Quality          Quality
	Mode             Mode
	Transform        Transform
	ClippingPlanes   []ClippingPlane
	WindowLevel      WindowLevel

	IsLoading    bool
	LoadProgress float64

	// LoadError is the outcome of the last finished load, nil on success
	LoadError error
}

// SamplingRate is the number of samples along the longest ray.
func (s ViewState) SamplingRate() int {
	return s.Quality.SamplingRate()
}

// StepSize is the ray-marching step in mm for the current volume and
// quality, or 0 without a volume.
func (s ViewState) StepSize() float64 {
	if s.Volume == nil {
		return 0
	}
	return s.Volume.LongestDiagonal() / float64(s.SamplingRate())
}

func (s ViewState) clone() ViewState {
	s.ClippingPlanes = append([]ClippingPlane(nil), s.ClippingPlanes...)
	return s
}

// Options configures a new orchestrator.
type Options struct {
	Quality          Quality
	Mode             Mode
	TransferFunction *transfer.Function

	// SliceCacheMB sizes the MPR slice cache
	SliceCacheMB int
}

// DefaultOptions renders direct volume rendering at medium quality with the
// default preset.
func DefaultOptions() Options {
	return Options{
		Quality:          Medium,
		Mode:             DirectVolume{},
		TransferFunction: transfer.Default(),
		SliceCacheMB:     64,
	}
}

// Orchestrator is the single mutable hub of a viewing session. Every
// mutation is applied atomically and publishes a new snapshot.
type Orchestrator struct {
	builder VolumeBuilder
	cache   *volume.SliceCache

	mu     sync.Mutex
	state  ViewState
	cancel context.CancelFunc
	loadID uint64
	subs   map[int]chan ViewState
	nextID int
}

// NewOrchestrator creates an idle orchestrator with no volume.
func NewOrchestrator(builder VolumeBuilder, opts Options) *Orchestrator {
	if !opts.Quality.Valid() {
		opts.Quality = Medium
	}
	if opts.Mode == nil {
		opts.Mode = DirectVolume{}
	}
	if opts.TransferFunction == nil {
		opts.TransferFunction = transfer.Default()
	}
	return &Orchestrator{
		builder: builder,
		cache:   volume.NewSliceCache(opts.SliceCacheMB),
		state: ViewState{
			TransferFunction: opts.TransferFunction,
			Quality:          opts.Quality,
			Mode:             opts.Mode,
			Transform:        Identity(),
			WindowLevel:      DefaultWindowLevel(),
		},
		subs: make(map[int]chan ViewState),
	}
}

// Snapshot returns a copy of the current state.
func (o *Orchestrator) Snapshot() ViewState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.clone()
}

// Subscribe returns a channel that always holds the latest snapshot after a
// change, and a function to stop receiving. Slow readers skip intermediate
// snapshots rather than block mutations.
func (o *Orchestrator) Subscribe() (<-chan ViewState, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id := o.nextID
	o.nextID++
	ch := make(chan ViewState, 1)
	o.subs[id] = ch
	return ch, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if _, ok := o.subs[id]; ok {
			delete(o.subs, id)
			close(ch)
		}
	}
}

// update applies fn to the state under the lock and publishes the result.
func (o *Orchestrator) update(fn func(s *ViewState)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.state)
	o.publishLocked()
}

func (o *Orchestrator) publishLocked() {
	o.state.Version++
	snap := o.state.clone()
	for _, ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

// Load starts building a volume from series in the background. It returns
// ErrLoadInProgress without touching the state if a load is running. The
// returned channel receives the load outcome once and is then closed; the
// volume is installed before the outcome is delivered.
func (o *Orchestrator) Load(ctx context.Context, series *models.Series) (<-chan error, error) {
	o.mu.Lock()
	if o.state.IsLoading {
		o.mu.Unlock()
		return nil, ErrLoadInProgress
	}
	if o.builder == nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("no volume builder configured")
	}
	builder := o.builder
	loadCtx, cancel := context.WithCancel(ctx)
	o.loadID++
	id := o.loadID
	o.cancel = cancel
	o.state.IsLoading = true
	o.state.LoadProgress = 0
	o.state.LoadError = nil
	o.publishLocked()
	o.mu.Unlock()

	logging.Infof("Loading volume from %d slices", series.Len())
	done := make(chan error, 1)
	go func() {
		defer cancel()
		vol, err := builder.Build(loadCtx, series, func(completed, total int, _ string) {
			o.setProgress(id, completed, total)
		})
		err = o.finishLoad(loadCtx, id, vol, err)
		done <- err
		close(done)
	}()
	return done, nil
}

func (o *Orchestrator) setProgress(id uint64, completed, total int) {
	if total <= 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if id != o.loadID || !o.state.IsLoading {
		return
	}
	p := math.Min(1, float64(completed)/float64(total))
	if p <= o.state.LoadProgress {
		return
	}
	o.state.LoadProgress = p
	o.publishLocked()
}

func (o *Orchestrator) finishLoad(ctx context.Context, id uint64, vol *volume.Volume, err error) error {
	if err == nil && vol == nil {
		err = fmt.Errorf("volume builder returned no volume")
	}
	if ctx.Err() != nil {
		err = fmt.Errorf("%w: %v", ErrLoadCanceled, ctx.Err())
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if id != o.loadID {
		return err
	}
	o.cancel = nil
	o.state.IsLoading = false
	if err != nil {
		o.state.LoadProgress = 0
		o.state.LoadError = err
		o.publishLocked()
		logging.Warningf("Volume load failed: %v", err)
		return err
	}

	o.cache.Clear()
	o.state.Volume = vol
	o.state.LoadProgress = 1
	o.state.LoadError = nil
	o.state.WindowLevel = AutoWindowLevel(vol)
	o.publishLocked()
	logging.Infof("Installed volume %s", vol)
	return nil
}

// CancelLoad cancels the running load, if any, and reports whether there was
// one. The state returns to idle with the previous volume once the builder
// observes the cancellation.
func (o *Orchestrator) CancelLoad() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel == nil {
		return false
	}
	o.cancel()
	return true
}

// Volume returns the current volume, nil before the first load.
func (o *Orchestrator) Volume() *volume.Volume {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state.Volume
}

// Slice extracts an MPR slice of the current volume through the slice cache.
func (o *Orchestrator) Slice(orientation volume.Orientation, index int) (*volume.Slice, bool) {
	vol := o.Volume()
	if vol == nil {
		return nil, false
	}
	return o.cache.Slice(vol, orientation, index)
}

// UpdatePosition sets the translation.
func (o *Orchestrator) UpdatePosition(p r3.Vec) {
	o.update(func(s *ViewState) { s.Transform.Position = p })
}

// UpdateRotation sets the rotation, normalized to unit length.
func (o *Orchestrator) UpdateRotation(q quat.Number) {
	o.update(func(s *ViewState) { s.Transform.Rotation = normalizeRotation(q) })
}

// UpdateScale sets the scale clamped to [MinScale, MaxScale]. NaN is ignored.
func (o *Orchestrator) UpdateScale(scale float64) {
	if math.IsNaN(scale) {
		return
	}
	o.update(func(s *ViewState) { s.Transform.Scale = ClampScale(scale) })
}

// Translate moves the volume by delta.
func (o *Orchestrator) Translate(delta r3.Vec) {
	o.update(func(s *ViewState) { s.Transform.Position = r3.Add(s.Transform.Position, delta) })
}

// Rotate composes delta on top of the current rotation.
func (o *Orchestrator) Rotate(delta quat.Number) {
	o.update(func(s *ViewState) {
		s.Transform.Rotation = normalizeRotation(quat.Mul(normalizeRotation(delta), s.Transform.Rotation))
	})
}

// ScaleBy multiplies the scale by factor, clamped. Non-positive and NaN
// factors are ignored.
func (o *Orchestrator) ScaleBy(factor float64) {
	if !(factor > 0) {
		return
	}
	o.update(func(s *ViewState) { s.Transform.Scale = ClampScale(s.Transform.Scale * factor) })
}

// ResetTransform restores identity position and rotation and unit scale in
// a single change.
func (o *Orchestrator) ResetTransform() {
	o.update(func(s *ViewState) { s.Transform = Identity() })
}

// SetRenderMode selects the render mode. A nil mode is ignored.
func (o *Orchestrator) SetRenderMode(m Mode) {
	if m == nil {
		return
	}
	o.update(func(s *ViewState) { s.Mode = m })
}

// SetRenderQuality selects the sampling quality.
func (o *Orchestrator) SetRenderQuality(q Quality) error {
	if !q.Valid() {
		return fmt.Errorf("invalid render quality %d", int(q))
	}
	o.update(func(s *ViewState) { s.Quality = q })
	return nil
}

// SetTransferFunction selects the active transfer function. A nil function
// is ignored since the state always holds one.
func (o *Orchestrator) SetTransferFunction(f *transfer.Function) {
	if f == nil {
		return
	}
	o.update(func(s *ViewState) { s.TransferFunction = f })
}

// AddClippingPlane appends an active plane and returns its index.
func (o *Orchestrator) AddClippingPlane(position, normal r3.Vec) int {
	var idx int
	o.update(func(s *ViewState) {
		s.ClippingPlanes = append(s.ClippingPlanes, ClippingPlane{Position: position, Normal: normal, Active: true})
		idx = len(s.ClippingPlanes) - 1
	})
	return idx
}

// RemoveClippingPlane removes the plane at index. Out of range indices are
// ignored and publish nothing.
func (o *Orchestrator) RemoveClippingPlane(index int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if index < 0 || index >= len(o.state.ClippingPlanes) {
		return
	}
	planes := o.state.ClippingPlanes
	o.state.ClippingPlanes = append(planes[:index:index], planes[index+1:]...)
	o.publishLocked()
}

// SetClippingPlaneActive toggles the plane at index and reports whether the
// index was valid.
func (o *Orchestrator) SetClippingPlaneActive(index int, active bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if index < 0 || index >= len(o.state.ClippingPlanes) {
		return false
	}
	planes := append([]ClippingPlane(nil), o.state.ClippingPlanes...)
	planes[index].Active = active
	o.state.ClippingPlanes = planes
	o.publishLocked()
	return true
}

// ClearClippingPlanes removes every plane.
func (o *Orchestrator) ClearClippingPlanes() {
	o.update(func(s *ViewState) { s.ClippingPlanes = nil })
}

// SetWindowLevel replaces the window, clamped to range.
func (o *Orchestrator) SetWindowLevel(w WindowLevel) {
	o.update(func(s *ViewState) { s.WindowLevel = w.clamped() })
}

// AdjustWindowLevel shifts the window center and width.
func (o *Orchestrator) AdjustWindowLevel(dCenter, dWidth float64) {
	o.update(func(s *ViewState) { s.WindowLevel = s.WindowLevel.Adjust(dCenter, dWidth) })
}

// CyclePreset selects the preset steps away from the active transfer
// function, wrapping around the preset list.
func (o *Orchestrator) CyclePreset(steps int) {
	o.update(func(s *ViewState) { s.TransferFunction = transfer.Cycle(s.TransferFunction, steps) })
}

// StepQuality raises (positive steps) or lowers the render quality,
// saturating at Low and High.
func (o *Orchestrator) StepQuality(steps int) {
	o.update(func(s *ViewState) { s.Quality = s.Quality.Step(steps) })
}
