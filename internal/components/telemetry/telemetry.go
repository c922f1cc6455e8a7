package telemetry

import "fmt"

// API is what every component reports through, tests swap in a RecorderAPI
// to assert on what was reported.
type API interface {
	// ReportBroken reports a component that broke in a way someone should fix.
	// The id names the component and method, such as `client.submit`, a
	// ScopedAPI adds the package.
	ReportBroken(id string, params ...any)
	// ReportWarning reports something worth a look that is not necessarily
	// broken, the id follows ReportBroken.
	ReportWarning(id string, params ...any)
	ReportDebug(msg string, params ...any)
	// ReportCount reports the current value of a counter. Values are samples
	// over time and are never summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with "<namespace>: ".
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scoped(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scoped(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scoped(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scoped(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scoped(id), count)
}
