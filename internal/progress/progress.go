// Package progress merges independent per-step progress reports from
// concurrently running normalizers into one composite signal.
package progress

import "sync"

// Report is the most recent state of one named step.
type Report struct {
	Step    string
	Percent float64
	Status  string
}

// Func receives every step-level update plus the recomputed overall percent.
// It is invoked while no Tracker lock is held by the caller's goroutine other
// than the tracker's own, so implementations must be fast or hand off.
type Func func(step string, percent, overall float64, status string)

// Tracker keeps the latest report per step and computes a weighted overall
// percentage. Every update is a whole-value replace keyed by step name, so
// concurrent updates from different normalizers are commutative; a narrow
// mutex guards the replace itself.
type Tracker struct {
	mu       sync.Mutex
	order    []string
	weights  map[string]float64
	reports  map[string]Report
	onUpdate Func
}

// NewTracker creates a Tracker. onUpdate may be nil.
func NewTracker(onUpdate Func) *Tracker {
	return &Tracker{
		weights:  make(map[string]float64),
		reports:  make(map[string]Report),
		onUpdate: onUpdate,
	}
}

// Register declares a step before any report arrives. Weight skews the step's
// share of the overall percentage; use 1 for equal weighting. Registering is
// what pins the step order for status composition.
func (t *Tracker) Register(step string, weight float64) *Reporter {
	t.mu.Lock()
	if _, seen := t.weights[step]; !seen {
		t.order = append(t.order, step)
	}
	t.weights[step] = weight
	t.reports[step] = Report{Step: step}
	t.mu.Unlock()
	return &Reporter{tracker: t, step: step}
}

// Update replaces the named step's report and notifies the callback with the
// step update and new overall percentage.
func (t *Tracker) Update(step string, percent float64, status string) {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	t.mu.Lock()
	if _, seen := t.weights[step]; !seen {
		t.order = append(t.order, step)
		t.weights[step] = 1
	}
	t.reports[step] = Report{Step: step, Percent: percent, Status: status}
	overall := t.overallLocked()
	cb := t.onUpdate
	t.mu.Unlock()

	if cb != nil {
		cb(step, percent, overall, status)
	}
}

// Overall returns the weighted overall percentage and a composite status that
// favors in-flight steps' status text over completed ones.
func (t *Tracker) Overall() (float64, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var inFlight, completed string
	for _, step := range t.order {
		r := t.reports[step]
		if r.Status == "" {
			continue
		}
		if r.Percent < 100 && inFlight == "" {
			inFlight = r.Status
		}
		if r.Percent >= 100 {
			completed = r.Status
		}
	}
	status := inFlight
	if status == "" {
		status = completed
	}
	return t.overallLocked(), status
}

// overallLocked computes the weighted overall percentage. Callers hold t.mu.
func (t *Tracker) overallLocked() float64 {
	var total, acc float64
	for step, w := range t.weights {
		total += w
		acc += w * t.reports[step].Percent
	}
	if total == 0 {
		return 0
	}
	return acc / total
}

// Steps returns the latest report for every registered step, in registration
// order.
func (t *Tracker) Steps() []Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Report, 0, len(t.order))
	for _, step := range t.order {
		out = append(out, t.reports[step])
	}
	return out
}

// Reporter is one step's handle into the tracker. Normalizers receive a
// Reporter and never touch each other's state.
type Reporter struct {
	tracker *Tracker
	step    string
}

// Report replaces this step's progress.
func (r *Reporter) Report(percent float64, status string) {
	r.tracker.Update(r.step, percent, status)
}

// Done marks the step complete.
func (r *Reporter) Done(status string) {
	r.tracker.Update(r.step, 100, status)
}
