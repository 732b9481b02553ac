package broker

import (
	"net/http"
	"time"

	"github.com/clustermeta/broker/meta"
)

func (s *Server) handleAddProxy(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Address string   `json:"address"`
		Host    string   `json:"host"`
		Nodes   []string `json:"nodes"`
		Index   *int64   `json:"index,omitempty"`
	}
	if err := s.readJSON(r, &body); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if err := s.Store.AddProxy(body.Address, body.Host, body.Nodes, body.Index); err != nil {
		s.writeError(w, err)
		return
	}
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleRemoveProxy(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.RemoveProxy(r.PathValue("addr")); err != nil {
		s.writeError(w, err)
		return
	}
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleProxyAddresses(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	s.writeJSON(w, http.StatusOK, pageStrings(s.Store.ProxyAddresses(), offset, limit))
}

func (s *Server) handleGetProxy(w http.ResponseWriter, r *http.Request) {
	p, err := s.Store.Proxy(r.PathValue("addr"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleFailedProxies(w http.ResponseWriter, r *http.Request) {
	cfg := meta.GCO.Get()
	addrs := s.Store.GetFailedProxies(cfg.FailureTTL, cfg.FailureQuorum, time.Now())
	s.Metrics.FailedProxies.Set(float64(len(addrs)))
	s.writeJSON(w, http.StatusOK, addrs)
}

func (s *Server) handleFailover(w http.ResponseWriter, r *http.Request) {
	replacement, err := s.Store.ReplaceFailedProxy(r.PathValue("addr"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.afterMutation()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"proxy": replacement})
}

func (s *Server) handleReportFailure(w http.ResponseWriter, r *http.Request) {
	s.Store.AddFailure(r.PathValue("addr"), r.PathValue("reporter"), time.Now())
	s.writeJSON(w, http.StatusOK, nil)
}
