// Package server is a local HTTP shim for the handlers in
// internal/images. It exists to exercise them outside a managed
// request-routing environment and does nothing beyond translating
// between HTTP and the normalized request/response envelopes.
package server

import (
	"io"
	"net/http"

	"imagevault/internal/images"
)

// Server maps HTTP routes onto the image service.
type Server struct {
	svc *images.Service
}

func New(svc *images.Service) *Server {
	return &Server{svc: svc}
}

// Handler returns the route table for the service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /images", func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, s.svc.Upload(r.Context(), normalize(r)))
	})
	mux.HandleFunc("GET /images", func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, s.svc.List(r.Context(), normalize(r)))
	})
	mux.HandleFunc("GET /images/{image_id}", func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, s.svc.Get(r.Context(), normalize(r)))
	})
	mux.HandleFunc("DELETE /images/{image_id}", func(w http.ResponseWriter, r *http.Request) {
		writeResponse(w, s.svc.Delete(r.Context(), normalize(r)))
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	return LogRequest(mux)
}

// normalize converts an inbound HTTP request into the envelope the
// handlers consume.
func normalize(r *http.Request) images.Request {
	body, _ := io.ReadAll(r.Body)
	if len(body) == 0 {
		body = []byte("{}")
	}

	req := images.Request{
		Body:                  string(body),
		PathParameters:        map[string]string{},
		QueryStringParameters: map[string]string{},
	}

	if id := r.PathValue("image_id"); id != "" {
		req.PathParameters["image_id"] = id
	}
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			req.QueryStringParameters[key] = values[0]
		}
	}
	return req
}

func writeResponse(w http.ResponseWriter, resp images.Response) {
	for key, value := range resp.Headers {
		w.Header().Set(key, value)
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}
