package transport

import "net/http"

type Handler interface {
	upload(w http.ResponseWriter, r *http.Request)
	uploadStatus(w http.ResponseWriter, r *http.Request)
	healthz(w http.ResponseWriter, r *http.Request)
}

type router struct {
	h       Handler
	metrics http.Handler
}

// NewRouter mounts metrics under /metrics when it is not nil.
func NewRouter(h Handler, metrics http.Handler) *router {
	return &router{h: h, metrics: metrics}
}

func (r *router) MountRoutes(mux *http.ServeMux) *http.ServeMux {
	mux.HandleFunc("POST /uploads", r.h.upload)
	mux.HandleFunc("GET /uploads/{id}", r.h.uploadStatus)
	mux.HandleFunc("GET /healthz", r.h.healthz)
	if r.metrics != nil {
		mux.Handle("GET /metrics", r.metrics)
	}

	return mux
}
