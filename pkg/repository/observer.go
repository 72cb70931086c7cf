package repository

import "time"

// Route names passed to Observer.ObserveCall.
const (
	RouteIdentity = "identity"
	RouteBase     = "base"
	RouteQuery    = "query"
	RouteNone     = "unsupported"
)

// Observer receives a callback for every dispatched call and every
// registration. Implementations must be safe for concurrent use.
type Observer interface {
	ObserveCall(repository, method, route string, elapsed time.Duration, err error)
	ObserveRegistration(repository, entity string)
}

type nopObserver struct{}

func (nopObserver) ObserveCall(string, string, string, time.Duration, error) {}
func (nopObserver) ObserveRegistration(string, string) {}
