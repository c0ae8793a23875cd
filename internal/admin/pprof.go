package admin

import (
	"net/http/pprof"

	"github.com/go-chi/chi/v5"
)

// RegisterProfiling mounts the pprof endpoints under path. They expose
// goroutine stacks and memory contents, so the admin endpoint should only
// listen on a loopback address when this is enabled.
func RegisterProfiling(router chi.Router, path string) {
	router.Route(path, func(r chi.Router) {
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)

		for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
			r.Handle("/"+name, pprof.Handler(name))
		}
	})
}
