package ops

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/axiomex/matchengine/pkg/app/core/market"
	"github.com/axiomex/matchengine/pkg/storage"
)

// Server is the read-only operator surface: health, Prometheus metrics, and
// a market snapshot. Health and metrics are static operator concerns; the
// market snapshot reads the same in-memory Registry the engine's workers
// mutate CurrentPrice on, so it reflects live state rather than the last
// commit, the way a dashboard polling a broker's mark price would.
type Server struct {
	router   *mux.Router
	registry *market.Registry
	db       *storage.DB
	started  time.Time
}

func NewServer(db *storage.DB, registry *market.Registry) *Server {
	s := &Server{router: mux.NewRouter(), db: db, registry: registry, started: time.Now()}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/markets", s.handleMarkets).Methods("GET")
}

// Handler wraps the router with the permissive read-only CORS policy the
// teacher's REST surface uses.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET"},
	})
	return c.Handler(s.router)
}

func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"status": "ok",
		"uptime": time.Since(s.started).String(),
	})
}

type marketView struct {
	Pair         string `json:"pair"`
	CurrentPrice string `json:"currentPrice"`
}

func (s *Server) handleMarkets(w http.ResponseWriter, r *http.Request) {
	markets := s.registry.List()
	out := make([]marketView, len(markets))
	for i, m := range markets {
		out[i] = marketView{
			Pair:         m.Pair().String(),
			CurrentPrice: m.CurrentPrice.String(),
		}
	}
	respondJSON(w, out)
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}
