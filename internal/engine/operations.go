package engine

import (
	"fmt"

	"github.com/ayusman/mudra/internal/gesture"
)

// RegisterGesture adds a definition to the library.
func (e *Engine) RegisterGesture(def *gesture.Definition) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	if err := e.lib.Register(def); err != nil {
		e.publishError(err)
		return err
	}
	return nil
}

// RemoveGesture deletes a gesture by id. Unknown ids are a no-op.
func (e *Engine) RemoveGesture(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	e.lib.Remove(id)
	return nil
}

// AddTemplate appends a template to an existing gesture.
func (e *Engine) AddTemplate(id string, t *gesture.Template) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	if err := e.lib.AddTemplate(id, t); err != nil {
		e.publishError(err)
		return err
	}
	return nil
}

// Gestures returns deep copies of all registered definitions in
// registration order. Copies keep callers from racing Calibrate, which
// mutates thresholds under the engine lock.
func (e *Engine) Gestures() []*gesture.Definition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lib.Export().Definitions
}

// ExportLibrary returns a deep-copied snapshot of the gesture library.
// The engine performs no I/O itself; the snapshot is the durable
// storage boundary.
func (e *Engine) ExportLibrary() gesture.Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lib.Export()
}

// ImportLibrary atomically replaces the library from a snapshot. The
// snapshot is fully validated before any mutation; on failure the
// library is unchanged.
func (e *Engine) ImportLibrary(s gesture.Snapshot) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	if err := e.lib.Import(s); err != nil {
		e.publishError(err)
		return err
	}
	return nil
}

// StartRecording begins a guided recording session. Listening is
// suspended for the session's duration and restored afterwards.
// Starting while a session is active is a no-op.
func (e *Engine) StartRecording(gestureID, gestureName string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	if e.recorder.Active() {
		return nil
	}

	e.resumeAfterRecording = e.state
	if e.resumeAfterRecording == StateRecording || e.resumeAfterRecording == StatePaused {
		e.resumeAfterRecording = StateIdle
	}
	e.recorder.StartSession(gestureID, gestureName)
	e.setState(StateRecording)
	return nil
}

// StopRecording discards the active session without committing.
func (e *Engine) StopRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	if !e.recorder.Active() {
		return nil
	}
	e.recorder.StopSession()
	e.setState(e.resumeAfterRecording)
	return nil
}

// FinalizeRecording commits the active session: the supplied
// definition verbatim, or one built from the captured repetitions.
func (e *Engine) FinalizeRecording(def *gesture.Definition) (*gesture.Definition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return nil, ErrDisposed
	}
	if !e.recorder.Active() {
		err := fmt.Errorf("%w: no active session", gesture.ErrInvalidInput)
		e.publishError(err)
		return nil, err
	}

	built, err := e.recorder.FinalizeSession(def)
	e.setState(e.resumeAfterRecording)
	if err != nil {
		e.publishError(err)
		return nil, err
	}
	return built, nil
}

// DiscardLastRepetition removes the most recent captured repetition.
func (e *Engine) DiscardLastRepetition() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	e.recorder.DiscardLastRepetition()
	return nil
}

// RecordAnother extends the active session by one repetition.
func (e *Engine) RecordAnother() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	e.recorder.RecordAnother()
	return nil
}

// Session returns a snapshot of the active recording session.
func (e *Engine) Session() gesture.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recorder.Session()
}

// Calibrate recomputes acceptance thresholds from intra-class template
// distances. It runs synchronously and can be expensive; callers
// wanting to keep a UI loop responsive should defer it themselves.
func (e *Engine) Calibrate() (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return 0, ErrDisposed
	}
	return e.calibrator.Calibrate(), nil
}

// ReportFalsePositive records a user-reported false positive for the
// given gesture. May trigger a recalibrationNeeded event.
func (e *Engine) ReportFalsePositive(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	e.recognizer.ReportFalsePositive(id)
	return nil
}

// ReportTruePositive confirms a recognition for the given gesture.
func (e *Engine) ReportTruePositive(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	e.recognizer.ReportTruePositive(id)
	return nil
}

// ResetMetrics clears the false-positive metrics.
func (e *Engine) ResetMetrics() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.disposed {
		return ErrDisposed
	}
	e.recognizer.ResetMetrics()
	return nil
}

// Diagnostics returns a snapshot of the engine internals. Safe to call
// in any state, including disposed.
func (e *Engine) Diagnostics() Diagnostics {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Diagnostics{
		State:                 e.state,
		BufferLength:          e.buf.Len(),
		BufferCapacity:        e.buf.Cap(),
		Activity:              e.activity.Current(),
		ActivityVariance:      e.activity.Variance(),
		TotalSamplesProcessed: e.totalSamples,
		GestureCount:          e.lib.Len(),
		Session:               e.recorder.Session(),
		FPMetrics:             e.recognizer.Metrics(),
	}
}
