package queryscope

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Server exposes the parse and explanation engine over HTTP. Construct with
// NewServer and mount with RegisterHTTPHandlers.
type Server struct {
	config  Config
	catalog *Catalog
	history *HistoryStore
	auth    *authenticator
	live    *liveHub
}

// NewServer wires a server from its parts. history may be nil, in which
// case queries are not recorded and the history endpoint reports empty.
func NewServer(cfg Config, catalog *Catalog, history *HistoryStore) *Server {
	if cfg.HTTP.MaxBodyBytes <= 0 {
		cfg.HTTP.MaxBodyBytes = 1 << 20
	}
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Server{
		config:  cfg,
		catalog: catalog,
		history: history,
		auth:    newAuthenticator(cfg.Auth),
		live:    newLiveHub(),
	}
}

// RegisterHTTPHandlers mounts all API routes on mux.
func (s *Server) RegisterHTTPHandlers(mux *http.ServeMux) {
	wrap := func(h http.HandlerFunc) http.HandlerFunc {
		return authMiddleware(s.auth, h)
	}

	mux.HandleFunc("/api/v1/parse", wrap(s.handleParse))
	mux.HandleFunc("/api/v1/explain", wrap(s.handleExplain))
	mux.HandleFunc("/api/v1/examples", wrap(s.handleExamples))
	mux.HandleFunc("/api/v1/functions", wrap(s.handleFunctions))
	mux.HandleFunc("/api/v1/history", wrap(s.handleHistory))
	mux.HandleFunc("/api/v1/live", wrap(s.handleLive))
	mux.HandleFunc("/health", s.handleHealth)
}

// ListenAndServe mounts the handlers on a fresh mux and serves on the
// configured listen address. It blocks until the server stops.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	s.RegisterHTTPHandlers(mux)
	return http.ListenAndServe(s.config.HTTP.ListenAddr, mux)
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.config.HTTP.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res := ParseQuery(req.Query)
	s.record(req.Query, res)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.config.HTTP.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	res := ParseQuery(req.Query)
	s.record(req.Query, res)

	resp := struct {
		Result       ParseResult       `json:"result"`
		Explanations []NodeExplanation `json:"explanations,omitempty"`
	}{Result: res}
	if res.Success {
		resp.Explanations = ExplainTree(res.AST)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleExamples(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	examples := s.catalog.Examples()
	if category := r.URL.Query().Get("category"); category != "" {
		examples = s.catalog.ByCategory(category)
	}
	writeJSON(w, http.StatusOK, struct {
		Examples []ExampleQuery `json:"examples"`
	}{Examples: examples})
}

func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Functions []FunctionDoc `json:"functions"`
	}{Functions: Functions()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var (
		entries []HistoryEntry
		err     error
	)
	if s.history != nil {
		entries, err = s.history.Recent(limit)
		if err != nil {
			http.Error(w, "failed to load history", http.StatusInternalServerError)
			return
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Entries []HistoryEntry `json:"entries"`
	}{Entries: entries})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// record stores the outcome when history is enabled. Recording failures do
// not affect the request being served.
func (s *Server) record(query string, res ParseResult) {
	if s.history == nil {
		return
	}
	_ = s.history.Record(query, res)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// authenticator handles API key authentication. Keys are configured as
// bcrypt hashes and checked against the presented plaintext key.
type authenticator struct {
	enabled      bool
	hashedKeys   [][]byte
	excludePaths map[string]bool
}

func newAuthenticator(cfg AuthConfig) *authenticator {
	a := &authenticator{
		excludePaths: make(map[string]bool),
	}

	if !cfg.Enabled {
		return a
	}

	a.enabled = true
	for _, h := range cfg.HashedAPIKeys {
		a.hashedKeys = append(a.hashedKeys, []byte(h))
	}
	for _, path := range cfg.ExcludePaths {
		a.excludePaths[path] = true
	}
	// Always allow health endpoint without auth
	a.excludePaths["/health"] = true

	return a
}

// extractAPIKey extracts the API key from the request
func extractAPIKey(r *http.Request) string {
	// Check Authorization header (Bearer token)
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}

	// Check X-API-Key header
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	// Check query parameter
	return r.URL.Query().Get("api_key")
}

func (a *authenticator) allow(key string) bool {
	for _, hashed := range a.hashedKeys {
		if bcrypt.CompareHashAndPassword(hashed, []byte(key)) == nil {
			return true
		}
	}
	return false
}

// authMiddleware wraps a handler with authentication
func authMiddleware(auth *authenticator, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !auth.enabled {
			next(w, r)
			return
		}

		// Check if path is excluded from auth
		if auth.excludePaths[r.URL.Path] {
			next(w, r)
			return
		}

		apiKey := extractAPIKey(r)
		if apiKey == "" {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}

		if !auth.allow(apiKey) {
			http.Error(w, "invalid API key", http.StatusUnauthorized)
			return
		}

		next(w, r)
	}
}
