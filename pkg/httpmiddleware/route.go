package httpmiddleware

import "net/http"

// RouteFinder resolves a request to the mux pattern that will serve it
// (e.g. "POST /api/evaluate/cart-lines"). Logging and instrumentation label
// requests by pattern so cardinality stays bounded regardless of path
// parameters.
type RouteFinder func(*http.Request) (string, bool)

// MakeRouteFinder builds a RouteFinder from a ServeMux. It relies on
// ServeMux.Handler, which reports the matched pattern without serving the
// request.
func MakeRouteFinder(mux *http.ServeMux) RouteFinder {
	return func(r *http.Request) (string, bool) {
		_, pattern := mux.Handler(r)
		return pattern, pattern != ""
	}
}
