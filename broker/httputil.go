package broker

import (
	"net/http"
	"strconv"

	"github.com/golang/glog"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Errorf("broker: encode response: %v", err)
	}
}

func (s *Server) readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// statusRecorder wraps a ResponseWriter to capture the status code a
// handler actually wrote, defaulting to 200 if the handler never calls
// WriteHeader explicitly.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps handler so every request against pattern increments
// RequestsTotal, labeled by route and status class (2xx/4xx/5xx/...).
func (s *Server) instrument(pattern string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler(rec, r)
		class := strconv.Itoa(rec.status/100) + "xx"
		s.Metrics.RequestsTotal.WithLabelValues(pattern, class).Inc()
	}
}

const maxPageLimit = 1 << 30 // effectively unbounded when the caller omits limit

func pageParams(r *http.Request) (offset, limit int) {
	offset, _ = strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = maxPageLimit
	}
	return
}

func pageStrings(all []string, offset, limit int) []string {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil
	}
	end := offset + limit
	if end > len(all) || end < offset {
		end = len(all)
	}
	return all[offset:end]
}
