package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go.velmi.io/memprobe/cmd/memprobe/storage"
)

var (
	trialsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memprobe",
		Name:      "trials_total",
		Help:      "Completed repetition trials by workload.",
	}, []string{"workload"})

	bytesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "memprobe",
		Name:      "bytes_processed_total",
		Help:      "Bytes pushed through workloads.",
	}, []string{"workload"})
)

// Metrics is the live stats snapshot the runner publishes each interval.
type Metrics struct {
	TPS        float64 `json:"tps"`         // trials per second
	Throughput float64 `json:"throughput"`  // bytes per second through workloads
	Pending    int64   `json:"pending"`     // results waiting for the store writer
	FlushNs    float64 `json:"flush_ns"`    // average batch flush latency
	TrialNs    float64 `json:"trial_ns"`    // average trial duration
	PageFaults float64 `json:"page_faults"` // page faults per trial
}

// Server is the HTTP API server
type Server struct {
	manager    *storage.Manager
	httpServer *http.Server
	hub        *Hub
	metrics    *Metrics
	metricsMu  sync.RWMutex
}

// NewServer creates a new API server
func NewServer(manager *storage.Manager, port int) *Server {
	server := &Server{
		manager: manager,
		metrics: &Metrics{},
		hub:     NewHub(),
	}

	r := mux.NewRouter()

	r.HandleFunc("/api/sessions", server.handleSessions).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}", server.handleSession).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/results", server.handleResults).Methods(http.MethodGet)
	r.HandleFunc("/api/sessions/{id}/workloads", server.handleWorkloads).Methods(http.MethodGet)
	r.HandleFunc("/api/metrics", server.handleMetrics).Methods(http.MethodGet)

	// Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket endpoint
	r.HandleFunc("/ws", func(w http.ResponseWriter, req *http.Request) {
		ServeWs(server.hub, w, req)
	})

	server.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: corsMiddleware(r),
	}

	return server
}

// Handler returns the server's root handler, routed and wrapped.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the API server
func (s *Server) Start() error {
	// Start the WebSocket hub
	go s.hub.Run()

	log.Printf("API server listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop stops the API server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ObserveTrial records a finished trial in the Prometheus counters.
func (s *Server) ObserveTrial(result *storage.Result) {
	name := storage.WorkloadName(result.Workload)
	trialsTotal.WithLabelValues(name).Inc()
	bytesProcessedTotal.WithLabelValues(name).Add(float64(result.Bytes))
}

// BroadcastBatch broadcasts a batch of results to all connected WebSocket clients
func (s *Server) BroadcastBatch(results []*storage.Result) {
	data, err := json.Marshal(map[string]interface{}{
		"type":    "batch",
		"results": results,
	})
	if err != nil {
		log.Printf("Failed to marshal result batch: %v", err)
		return
	}

	s.hub.Broadcast(data)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.manager.ListSessions(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(sessions)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	session, err := s.manager.GetSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	store, err := s.manager.OpenSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer store.Close()

	filter := &storage.ResultFilter{}

	if workloadStr := r.URL.Query().Get("workload"); workloadStr != "" {
		workload, ok := storage.ParseWorkload(workloadStr)
		if !ok {
			http.Error(w, fmt.Sprintf("unknown workload: %s", workloadStr), http.StatusBadRequest)
			return
		}
		filter.Workload = &workload
	}

	if startTimeStr := r.URL.Query().Get("start_time"); startTimeStr != "" {
		if st, err := strconv.ParseUint(startTimeStr, 10, 64); err == nil {
			filter.StartTime = &st
		}
	}

	if endTimeStr := r.URL.Query().Get("end_time"); endTimeStr != "" {
		if et, err := strconv.ParseUint(endTimeStr, 10, 64); err == nil {
			filter.EndTime = &et
		}
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	results, err := store.ReadResults(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func (s *Server) handleWorkloads(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	store, err := s.manager.OpenSession(r.Context(), sessionID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	defer store.Close()

	workloads, err := store.GetWorkloads(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	names := make([]string, 0, len(workloads))
	for _, workload := range workloads {
		names = append(names, storage.WorkloadName(workload))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(names)
}

// UpdateMetrics updates the server's metrics snapshot
func (s *Server) UpdateMetrics(metrics *Metrics) {
	s.metricsMu.Lock()
	s.metrics = metrics
	s.metricsMu.Unlock()
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.metricsMu.RLock()
	metrics := s.metrics
	s.metricsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metrics)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
