package pull

import "context"

// This file holds Engine's half of the two-phase termination handshake.
// Step 2, the scan-side drain-and-forward, lives in
// ScanWorker.drainAndRespond (scanworker.go). The exact message ordering
// and re-probe behavior here needs bit-for-bit fidelity, so each method
// below maps onto exactly one numbered step.

// onMainIdle is step 3: a MainIdle(s) echoed back from scan_queue (by way
// of ScanWorker forwarding it onto fetch_queue) confirms scan_idle only
// if it answers the most recently sent probe. A MainIdle for a stale
// serial means a newer probe has already superseded it and is ignored.
func (e *Engine) onMainIdle(serial uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if serial == e.idleSerial {
		e.scanIdle = true
	}
}

// onScanIdle is step 4: on seeing ScanIdle, if scan_idle hasn't yet been
// confirmed, bump idle_serial and push a fresh MainIdle probe — this
// re-probe absorbs any scan work that was mid-flight when the first
// round-trip completed.
func (e *Engine) onScanIdle(ctx context.Context) {
	e.mu.Lock()
	already := e.scanIdle
	if !already {
		e.idleSerial++
	}
	serial := e.idleSerial
	e.mu.Unlock()

	if already {
		return
	}

	if err := e.scanQueue.Push(ctx, ScanMainIdle(serial)); err != nil {
		e.latch(err)
	}
}

// checkTermination is step 5: after any fetch or write completion (and,
// harmlessly, after any handshake message — re-checking more often than
// strictly necessary is safe since this is an idempotent read of current
// state), quit the main loop once every outstanding counter is zero,
// scan_idle is confirmed, and both queues are empty.
func (e *Engine) checkTermination() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminated || e.firstErr != nil {
		return
	}
	if e.counters.allOutstandingZero() && e.scanIdle &&
		e.scanQueue.Len() == 0 && e.fetchQueue.Len() == 0 {
		e.terminated = true
	}
}

func (e *Engine) forceTerminate() {
	e.mu.Lock()
	e.terminated = true
	e.mu.Unlock()
}

func (e *Engine) isTerminated() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.terminated || e.firstErr != nil
}

// ScanIdle reports whether the engine has confirmed scan_idle, for the
// progress reporter's priority-4 "Scanning metadata" line.
func (e *Engine) ScanIdle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.scanIdle
}

// latch records the first error seen, from whichever goroutine observes
// it (the engine's own dispatch path, or ScanWorker via onError), and
// ends the main loop on the next isTerminated check.
func (e *Engine) latch(err error) {
	if err == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.firstErr == nil {
		e.firstErr = err
	}
}

func (e *Engine) firstErrorOrNil() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.firstErr
}
