package middleware

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
)

type routeKey struct{}

// routeInfo is what the router matched, reported back to the middleware
// wrapped around it.
type routeInfo struct {
	template string
	shareID  string
}

// withRouteInfo returns r carrying a routeInfo for Route to fill in,
// reusing one an outer middleware already attached.
func withRouteInfo(r *http.Request) (*http.Request, *routeInfo) {
	if info, ok := r.Context().Value(routeKey{}).(*routeInfo); ok {
		return r, info
	}
	info := &routeInfo{}
	return r.WithContext(context.WithValue(r.Context(), routeKey{}, info)), info
}

// Route is a mux middleware. Install it with router.Use so that Logger and
// Metrics see the matched route template and share id.
func Route(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info, ok := r.Context().Value(routeKey{}).(*routeInfo); ok {
			if route := mux.CurrentRoute(r); route != nil {
				info.template, _ = route.GetPathTemplate()
			}
			info.shareID = mux.Vars(r)["shareId"]
		}
		next.ServeHTTP(w, r)
	})
}
