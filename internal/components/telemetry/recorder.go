package telemetry

import (
	"strings"
	"sync"
)

type Report struct {
	Kind   string
	ID     string
	Params []any
}

// RecorderAPI keeps every report in memory so tests can assert on them.
type RecorderAPI struct {
	mu      sync.Mutex
	reports []Report
	counts  map[string]int64
}

func NewRecorderAPI() *RecorderAPI {
	return &RecorderAPI{counts: map[string]int64{}}
}

func (r *RecorderAPI) add(kind, id string, params []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Kind: kind, ID: id, Params: params})
}

func (r *RecorderAPI) ReportBroken(id string, params ...any) {
	r.add("broken", id, params)
}

func (r *RecorderAPI) ReportWarning(id string, params ...any) {
	r.add("warning", id, params)
}

func (r *RecorderAPI) ReportDebug(msg string, params ...any) {
	r.add("debug", msg, params)
}

func (r *RecorderAPI) ReportCount(id string, count int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[id] = count
}

// Broken returns the ids of every ReportBroken call containing substr.
func (r *RecorderAPI) Broken(substr string) []string {
	return r.ids("broken", substr)
}

// Warnings returns the ids of every ReportWarning call containing substr.
func (r *RecorderAPI) Warnings(substr string) []string {
	return r.ids("warning", substr)
}

func (r *RecorderAPI) Count(id string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.counts[id]
	return n, ok
}

func (r *RecorderAPI) ids(kind, substr string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, rep := range r.reports {
		if rep.Kind == kind && strings.Contains(rep.ID, substr) {
			out = append(out, rep.ID)
		}
	}
	return out
}
