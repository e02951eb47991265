package engine

import "time"

// RunStatus is a snapshot of a dataset's execution-engine progress, exposed
// read-only via internal/statusapi. It reflects the most recent Run call,
// whether still in flight or already finished.
type RunStatus struct {
	Dataset          string
	State            State
	BytesTransferred int64
	UpdatedAt        time.Time
}

func (e *Engine) setState(dataset string, state State) {
	e.currentMu.Lock()
	defer e.currentMu.Unlock()
	rs := e.currentLocked(dataset)
	rs.State = state
	rs.BytesTransferred = 0
	rs.UpdatedAt = e.clock.Now()
}

func (e *Engine) addBytesTransferred(dataset string, n int64) {
	e.currentMu.Lock()
	defer e.currentMu.Unlock()
	rs := e.currentLocked(dataset)
	rs.BytesTransferred += n
	rs.UpdatedAt = e.clock.Now()
}

// currentLocked returns dataset's tracked status, creating it if absent.
// Callers must hold currentMu.
func (e *Engine) currentLocked(dataset string) *RunStatus {
	rs, ok := e.current[dataset]
	if !ok {
		rs = &RunStatus{Dataset: dataset}
		e.current[dataset] = rs
	}
	return rs
}

// CurrentRun reports dataset's most recently recorded RunStatus. ok is false
// if the dataset has never been dispatched through Run.
//
// Grounded on job/send.go's ZFSSend.BytesSent()/UpdatedAt() contract, used
// there to report an in-flight HTTP upload's progress; here it reports an
// in-flight (or just-finished) state-machine step and transfer byte count.
func (e *Engine) CurrentRun(dataset string) (status RunStatus, ok bool) {
	e.currentMu.Lock()
	defer e.currentMu.Unlock()
	rs, found := e.current[dataset]
	if !found {
		return RunStatus{}, false
	}
	return *rs, true
}
