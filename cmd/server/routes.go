package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	"amoebotsim.ai/internal/observerproto"
	"amoebotsim.ai/internal/sim/world"
	"amoebotsim.ai/internal/transport/observer"
)

type routeOptions struct {
	EnableAdmin bool
	EnablePprof bool
}

func newMux(w *world.World, idx runtimeIndex, opts routeOptions, logger *log.Logger) *http.ServeMux {
	worldID := w.ID()
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		writeMetrics(rw, worldID, w.Metrics(), idx)
	})

	if opts.EnableAdmin {
		// Local-only admin endpoints (do not affect simulation determinism).
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			state, err := w.RequestState(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "error": err.Error()})
				return
			}
			resp := struct {
				WorldID string                 `json:"world_id"`
				Round   uint64                 `json:"round"`
				Metrics world.WorldMetrics     `json:"metrics"`
				State   observerproto.RoundMsg `json:"state"`
			}{
				WorldID: worldID,
				Round:   state.Round,
				Metrics: w.Metrics(),
				State:   state,
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		mux.HandleFunc("/admin/v1/snapshot", func(rw http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				rw.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			ctx2, cancel2 := context.WithTimeout(r.Context(), 5*time.Second)
			defer cancel2()
			round, err := w.RequestSnapshot(ctx2)
			rw.Header().Set("Content-Type", "application/json")
			if err != nil {
				rw.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(rw).Encode(map[string]any{"ok": false, "round": round, "error": err.Error()})
				return
			}
			_ = json.NewEncoder(rw).Encode(map[string]any{"ok": true, "round": round})
		})

		obsSrv := observer.NewServer(w, logger)
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else if logger != nil {
		logger.Printf("admin endpoints disabled (AMOEBOT_ENABLE_ADMIN_HTTP=false)")
	}
	if opts.EnablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	return mux
}

// writeMetrics renders the minimal Prometheus exposition format.
func writeMetrics(rw io.Writer, worldID string, m world.WorldMetrics, idx runtimeIndex) {
	fmt.Fprintf(rw, "# HELP amoebot_world_round Completed rounds.\n")
	fmt.Fprintf(rw, "# TYPE amoebot_world_round counter\n")
	fmt.Fprintf(rw, "amoebot_world_round{world=%q} %d\n", worldID, m.Round)

	fmt.Fprintf(rw, "# HELP amoebot_world_movements Movement operations performed.\n")
	fmt.Fprintf(rw, "# TYPE amoebot_world_movements counter\n")
	fmt.Fprintf(rw, "amoebot_world_movements{world=%q} %d\n", worldID, m.Movements)

	fmt.Fprintf(rw, "# HELP amoebot_world_particles Particle count.\n")
	fmt.Fprintf(rw, "# TYPE amoebot_world_particles gauge\n")
	fmt.Fprintf(rw, "amoebot_world_particles{world=%q} %d\n", worldID, m.Particles)

	fmt.Fprintf(rw, "# HELP amoebot_world_tiles Tile count.\n")
	fmt.Fprintf(rw, "# TYPE amoebot_world_tiles gauge\n")
	fmt.Fprintf(rw, "amoebot_world_tiles{world=%q} %d\n", worldID, m.Tiles)

	fmt.Fprintf(rw, "# HELP amoebot_world_terminated 1 once the world has halted.\n")
	fmt.Fprintf(rw, "# TYPE amoebot_world_terminated gauge\n")
	fmt.Fprintf(rw, "amoebot_world_terminated{world=%q} %d\n", worldID, boolGauge(m.Terminated))

	fmt.Fprintf(rw, "# HELP amoebot_world_fault 1 if the world halted on a fault.\n")
	fmt.Fprintf(rw, "# TYPE amoebot_world_fault gauge\n")
	fmt.Fprintf(rw, "amoebot_world_fault{world=%q} %d\n", worldID, boolGauge(m.Fault != ""))

	fmt.Fprintf(rw, "# HELP amoebot_world_observers Connected observer sessions.\n")
	fmt.Fprintf(rw, "# TYPE amoebot_world_observers gauge\n")
	fmt.Fprintf(rw, "amoebot_world_observers{world=%q} %d\n", worldID, m.Observers)

	fmt.Fprintf(rw, "# HELP amoebot_world_queue_depth Channel backlog depth.\n")
	fmt.Fprintf(rw, "# TYPE amoebot_world_queue_depth gauge\n")
	fmt.Fprintf(rw, "amoebot_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "observer_join", m.QueueDepths.ObserverJoin)
	fmt.Fprintf(rw, "amoebot_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "observer_leave", m.QueueDepths.ObserverLeave)
	fmt.Fprintf(rw, "amoebot_world_queue_depth{world=%q,queue=%q} %d\n", worldID, "admin", m.QueueDepths.Admin)

	fmt.Fprintf(rw, "# HELP amoebot_world_step_ms Last round duration in milliseconds.\n")
	fmt.Fprintf(rw, "# TYPE amoebot_world_step_ms gauge\n")
	fmt.Fprintf(rw, "amoebot_world_step_ms{world=%q} %.3f\n", worldID, m.StepMS)

	if idx == nil {
		return
	}
	s := idx.Stats()
	fmt.Fprintf(rw, "# HELP amoebot_index_queue_depth Index writer queue depth.\n")
	fmt.Fprintf(rw, "# TYPE amoebot_index_queue_depth gauge\n")
	fmt.Fprintf(rw, "amoebot_index_queue_depth{world=%q} %d\n", worldID, s.QueueDepth)

	fmt.Fprintf(rw, "# HELP amoebot_index_dropped_total Index writes dropped under backpressure.\n")
	fmt.Fprintf(rw, "# TYPE amoebot_index_dropped_total counter\n")
	fmt.Fprintf(rw, "amoebot_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "round", s.DropRoundTotal)
	fmt.Fprintf(rw, "amoebot_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "snapshot", s.DropSnapshotTotal)

	fmt.Fprintf(rw, "# HELP amoebot_index_write_fail_total Failed index transactions.\n")
	fmt.Fprintf(rw, "# TYPE amoebot_index_write_fail_total counter\n")
	fmt.Fprintf(rw, "amoebot_index_write_fail_total{world=%q} %d\n", worldID, s.WriteFailTotal)
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
