package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"streambridge/pkg/backend"
	"streambridge/pkg/backend/jellyfin"
	"streambridge/pkg/backend/stremio"
	"streambridge/pkg/backend/torbox"
	"streambridge/pkg/config"
	"streambridge/pkg/env"
	"streambridge/pkg/logger"
	"streambridge/pkg/prefs"
	"streambridge/pkg/resolver"
)

// Server is the host-facing HTTP API: stream enumeration, playback
// resolution, library browsing, preferences, and live log streaming.
type Server struct {
	config   *config.Config
	prefs    *prefs.Store
	registry *resolver.Registry

	// Optional backends, nil when not configured.
	jellyfin *jellyfin.Client
	stremio  *stremio.Manager
	torbox   *torbox.Client

	clientsMu sync.Mutex
	clients   map[*wsClient]bool
	logCh     chan string
}

// NewServer creates the API server and starts the log broadcast loop.
func NewServer(cfg *config.Config, p *prefs.Store, reg *resolver.Registry, jf *jellyfin.Client, sm *stremio.Manager, tb *torbox.Client) *Server {
	s := &Server{
		config:   cfg,
		prefs:    p,
		registry: reg,
		jellyfin: jf,
		stremio:  sm,
		torbox:   tb,
		clients:  make(map[*wsClient]bool),
		logCh:    make(chan string, 100),
	}
	logger.SetBroadcast(s.logCh)
	go s.broadcastLogs()
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/backends", s.handleBackends)
	mux.HandleFunc("GET /api/streams/{kind}/{id}", s.handleStreams)
	mux.HandleFunc("/api/play", s.handlePlay)
	mux.HandleFunc("/api/prefs", s.handlePrefs)
	mux.HandleFunc("/api/discovery", s.handleDiscovery)
	mux.HandleFunc("/api/library/stremio", s.handleStremioLibrary)
	mux.HandleFunc("/api/library/torbox", s.handleTorboxLibrary)
	mux.HandleFunc("/api/libraries/jellyfin", s.handleJellyfinLibraries)
	mux.HandleFunc("/api/resolutions", s.handleResolutions)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", "err", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, backend.ErrNoEligibleBackends):
		status = http.StatusNotFound
	case errors.Is(err, backend.ErrResolutionExpired):
		status = http.StatusGone
	case errors.Is(err, backend.ErrBackendRejected), errors.Is(err, backend.ErrMalformedResponse):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// syncAdapters registers any backends that have become available since the
// last call. Stremio addons arrive asynchronously through discovery.
func (s *Server) syncAdapters(r *http.Request) {
	if s.stremio == nil {
		return
	}
	if adapters, ok := s.stremio.Adapters(r.Context()); ok {
		for _, a := range adapters {
			s.registry.Register(a)
		}
	}
}

func (s *Server) handleBackends(w http.ResponseWriter, r *http.Request) {
	s.syncAdapters(r)
	adapters := s.registry.Adapters()
	descriptors := make([]backend.Descriptor, 0, len(adapters))
	for _, a := range adapters {
		descriptors = append(descriptors, a.Describe())
	}
	writeJSON(w, http.StatusOK, descriptors)
}

// handleStreams enumerates ranked candidates for an item across all
// registered backends.
func (s *Server) handleStreams(w http.ResponseWriter, r *http.Request) {
	kind := r.PathValue("kind")
	id := r.PathValue("id")

	s.syncAdapters(r)
	agg := backend.NewAggregator(s.prefs, prefs.KeyQuality, s.registry.Adapters()...)
	cands, err := agg.FetchAll(r.Context(), backend.ItemRef{Kind: kind, ID: id})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cands)
}

// handlePlay resolves one candidate, exactly as returned by handleStreams.
func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var cand backend.Candidate
	if err := json.NewDecoder(r.Body).Decode(&cand); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid candidate"})
		return
	}

	s.syncAdapters(r)
	stream, err := s.registry.Playback(r.Context(), cand)
	if err != nil {
		logger.Warn("Playback resolution failed", "backend", cand.BackendID, "err", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stream)
}

func (s *Server) handlePrefs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.prefs.Snapshot())
	case http.MethodPost:
		var updates map[string]string
		if err := json.NewDecoder(r.Body).Decode(&updates); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid preferences"})
			return
		}
		for k, v := range updates {
			s.prefs.Set(k, v)
		}
		writeJSON(w, http.StatusOK, s.prefs.Snapshot())
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleDiscovery reports the readiness of each backend catalog. The checks
// themselves are non-blocking advisories, so polling this endpoint also
// nudges stalled fetches along.
func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]bool)
	if s.jellyfin != nil {
		_, ok := s.jellyfin.Libraries(r.Context())
		out["jellyfin"] = ok
	}
	if s.stremio != nil {
		_, ok := s.stremio.Addons(r.Context())
		out["stremio_addons"] = ok
		if s.stremio.AuthKey() != "" {
			_, ok = s.stremio.Library(r.Context())
			out["stremio_library"] = ok
		}
	}
	if s.torbox != nil {
		_, ok := s.torbox.Transfers(r.Context())
		out["torbox"] = ok
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStremioLibrary(w http.ResponseWriter, r *http.Request) {
	if s.stremio == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "stremio not configured"})
		return
	}
	q := r.URL.Query()
	items, ok := s.stremio.SearchLibrary(r.Context(), q.Get("query"), q.Get("type"), q.Get("sort"))
	if !ok {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "fetching"})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleTorboxLibrary(w http.ResponseWriter, r *http.Request) {
	if s.torbox == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "torbox not configured"})
		return
	}
	q := r.URL.Query()
	items, ok := s.torbox.SearchTransfers(r.Context(), q.Get("query"), q.Get("sort"))
	if !ok {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "fetching"})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleJellyfinLibraries(w http.ResponseWriter, r *http.Request) {
	if s.jellyfin == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "jellyfin not configured"})
		return
	}
	libs, ok := s.jellyfin.Libraries(r.Context())
	if !ok {
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "fetching"})
		return
	}
	writeJSON(w, http.StatusOK, libs)
}

func (s *Server) handleResolutions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Recent())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"config":        s.config,
		"env_overrides": env.OverrideKeys(),
	})
}
