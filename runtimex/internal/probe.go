package internal

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"
)

// Peer is the readiness of one component as seen by the probe.
type Peer struct {
	Name    string
	Settled bool
	Err     error
}

// Status is the body of the readiness endpoint.
type Status struct {
	Status  string            `json:"status"`
	Pending []string          `json:"pending,omitempty"`
	Failed  map[string]string `json:"failed,omitempty"`
	Check   string            `json:"check,omitempty"`
}

// Ready reports whether the status is healthy.
func (s Status) Ready() bool {
	return s.Status == "ready"
}

// Probe computes readiness from the peers of a component and its checks.
type Probe struct {
	Peers        func() []Peer
	Checks       *Checks
	CheckTimeout time.Duration
}

// Ready evaluates every peer and then the checks. Checks run only when all
// peers resolved successfully.
func (p *Probe) Ready(ctx context.Context) Status {
	var st Status
	if p.Peers != nil {
		for _, peer := range p.Peers() {
			switch {
			case !peer.Settled:
				st.Pending = append(st.Pending, peer.Name)
			case peer.Err != nil:
				if st.Failed == nil {
					st.Failed = make(map[string]string)
				}
				st.Failed[peer.Name] = peer.Err.Error()
			}
		}
	}
	slices.Sort(st.Pending)

	if len(st.Pending) > 0 || len(st.Failed) > 0 {
		st.Status = "unavailable"
		return st
	}

	if p.Checks != nil {
		if p.CheckTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, p.CheckTimeout)
			defer cancel()
		}
		if err := p.Checks.Run(ctx); err != nil {
			st.Status = "unavailable"
			st.Check = err.Error()
			return st
		}
	}

	st.Status = "ready"
	return st
}

// NewMux builds the diagnostics routes. metrics may be nil.
func NewMux(p *Probe, metrics http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Status{Status: "ok"})
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		st := p.Ready(r.Context())
		code := http.StatusOK
		if !st.Ready() {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, st)
	})

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
