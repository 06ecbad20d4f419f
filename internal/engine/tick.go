// Package engine provides the tick/frame simulation loop and the host world
// the passenger limiter is attached to.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Schedule defines when each layer runs relative to the frame counter.
const (
	FramesPerTick  = 16 // One full pass over the citizen buffer per tick
	TicksPerReport = 64 // Summary log cadence
)

// Engine drives the simulation forward frame by frame.
type Engine struct {
	Frame    uint32        // Global frame index (wraps; only the low bits select slices)
	Tick     uint64        // Current tick counter
	Speed    float64       // Multiplier: 1.0 = real-time, 0 = paused
	Interval time.Duration // Base frame interval

	running atomic.Bool

	// Callbacks for each layer, populated during setup.
	OnTick   func(tick uint64)  // First frame of every tick, before OnFrame
	OnFrame  func(frame uint32) // Every frame
	OnReport func(tick uint64)  // Every TicksPerReport ticks
}

// NewEngine creates an engine with default settings.
func NewEngine() *Engine {
	return &Engine{
		Speed:    1.0,
		Interval: 16 * time.Millisecond,
	}
}

// Run steps frames until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	e.running.Store(true)
	slog.Info("simulation engine started", "tick", e.Tick, "frame", e.Frame, "speed", e.Speed)

	for e.running.Load() {
		if ctx.Err() != nil {
			break
		}
		if e.Speed <= 0 {
			// Paused; sleep briefly and check again.
			time.Sleep(100 * time.Millisecond)
			continue
		}

		start := time.Now()

		e.Step()

		elapsed := time.Since(start)
		target := time.Duration(float64(e.Interval) / e.Speed)
		if elapsed < target {
			select {
			case <-ctx.Done():
			case <-time.After(target - elapsed):
			}
		}
	}

	e.running.Store(false)
	slog.Info("simulation engine stopped", "tick", e.Tick, "frame", e.Frame)
}

// RunTicks steps exactly n ticks without pacing.
func (e *Engine) RunTicks(n uint64) {
	for i := uint64(0); i < n*FramesPerTick; i++ {
		e.Step()
	}
}

// Stop halts the simulation loop.
func (e *Engine) Stop() {
	e.running.Store(false)
}

// Running reports whether Run is active.
func (e *Engine) Running() bool {
	return e.running.Load()
}

// Step advances the simulation by one frame.
func (e *Engine) Step() {
	if e.Frame%FramesPerTick == 0 {
		e.Tick++
		if e.OnTick != nil {
			e.OnTick(e.Tick)
		}
		if e.Tick%TicksPerReport == 0 && e.OnReport != nil {
			e.OnReport(e.Tick)
		}
	}

	if e.OnFrame != nil {
		e.OnFrame(e.Frame)
	}
	e.Frame++
}
