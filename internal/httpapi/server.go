// Package httpapi is the thin request -> arg -> call -> JSON glue over the
// Persistent Read Layer, Market Adapter, Sync Worker queue, and Trade-up
// Engine. It carries no business logic of its own.
package httpapi

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stadam23/tradeup-ev/internal/apperr"
	"github.com/stadam23/tradeup-ev/internal/logger"
	"github.com/stadam23/tradeup-ev/internal/market"
	"github.com/stadam23/tradeup-ev/internal/queue"
	"github.com/stadam23/tradeup-ev/internal/readlayer"
	"github.com/stadam23/tradeup-ev/internal/tradeup"
)

// Server wires the HTTP surface described in the external interfaces
// section onto the service's components.
type Server struct {
	read   *readlayer.ReadLayer
	engine *tradeup.Engine
	queue  *queue.Queue
	mux    *http.ServeMux
}

// New builds a Server and registers its routes.
func New(read *readlayer.ReadLayer, engine *tradeup.Engine, q *queue.Queue) *Server {
	s := &Server{read: read, engine: engine, queue: q, mux: http.NewServeMux()}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/skins/totals", s.handleTotals)
	s.mux.HandleFunc("GET /api/skins/paged", s.handlePaged)
	s.mux.HandleFunc("GET /api/skins/names", s.handleNames)
	s.mux.HandleFunc("POST /api/skins/listing-totals", s.handleListingTotals)
	s.mux.HandleFunc("POST /api/priceoverview/batch", s.handlePriceBatch)
	s.mux.HandleFunc("GET /api/tradeups/collections", s.handleCollectionSummaries)
	s.mux.HandleFunc("GET /api/tradeups/collections/steam", s.handleCollectionTags)
	s.mux.HandleFunc("POST /api/tradeups/collections/sync", s.handleSyncTrigger)
	s.mux.HandleFunc("GET /api/tradeups/collections/sync", s.handleSyncList)
	s.mux.HandleFunc("GET /api/tradeups/collections/sync/{jobId}", s.handleSyncStatus)
	s.mux.HandleFunc("GET /api/tradeups/collections/{tag}/targets", s.handleCollectionTargets)
	s.mux.HandleFunc("GET /api/tradeups/collections/{tag}/inputs", s.handleCollectionInputs)
	s.mux.HandleFunc("POST /api/tradeups/calculate", s.handleCalculate)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	rarities := parseRarities(r.URL.Query().Get("rarities"))
	normalOnly := parseBool(r.URL.Query().Get("normalOnly"))

	totals, err := s.read.RarityTotals(r.Context(), rarities, normalOnly)
	if err != nil {
		writeErr(w, err)
		return
	}
	sum := 0
	out := map[string]int{}
	for _, rr := range rarities {
		out[string(rr)] = totals[rr]
		sum += totals[rr]
	}
	writeJSON(w, http.StatusOK, map[string]any{"rarities": rarities, "totals": out, "sum": sum})
}

func (s *Server) handlePaged(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rarity := market.Rarity(q.Get("rarity"))
	start := parseInt(q.Get("start"), 0)
	count := parseInt(q.Get("count"), 30)
	normalOnly := parseBool(q.Get("normalOnly"))

	page, err := s.read.RarityPage(r.Context(), rarity, start, count, normalOnly)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleNames(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rarity := market.Rarity(q.Get("rarity"))
	normalOnly := parseBool(q.Get("normalOnly"))

	names, err := s.read.AllNames(r.Context(), rarity, normalOnly)
	if err != nil {
		writeErr(w, err)
		return
	}

	file := filepath.Join("server", "data", string(rarity)+".json")
	if werr := persistNames(file, names); werr != nil {
		logger.Error("HTTPAPI", "persisting names snapshot: "+werr.Error())
	}

	writeJSON(w, http.StatusOK, map[string]any{"rarity": rarity, "total": len(names), "file": file, "names": names})
}

func (s *Server) handlePriceBatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Names []string `json:"names"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, apperr.Validation("malformed request body"))
		return
	}
	if len(body.Names) > 200 {
		writeErr(w, apperr.Validation("names exceeds the 200-item limit"))
		return
	}

	prices := map[string]*float64{}
	for _, name := range body.Names {
		p, err := s.read.PriceUSD(r.Context(), name)
		if err != nil {
			prices[name] = nil
			continue
		}
		prices[name] = p
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}

func (s *Server) handleListingTotals(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Names []string `json:"names"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, apperr.Validation("malformed request body"))
		return
	}
	if len(body.Names) > 150 {
		writeErr(w, apperr.Validation("names exceeds the 150-item limit"))
		return
	}

	totals := map[string]*int{}
	for _, name := range body.Names {
		n, err := s.read.ListingTotalCount(r.Context(), name)
		if err != nil {
			totals[name] = nil
			continue
		}
		totals[name] = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"totals": totals})
}

func (s *Server) handleSyncList(w http.ResponseWriter, r *http.Request) {
	active, jobs, err := s.queue.List(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"active": active, "jobs": jobs})
}

func (s *Server) handleCollectionSummaries(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.read.CollectionSummaries(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) handleCollectionTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.read.CollectionTags(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleSyncTrigger(w http.ResponseWriter, r *http.Request) {
	job, err := s.queue.Enqueue(r.Context())
	if err != nil {
		writeErr(w, err)
		return
	}
	status := http.StatusOK
	if job.Status == queue.StatusPending || job.Status == queue.StatusRunning {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]any{"job": job})
}

func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("jobId")
	job, err := s.queue.Get(r.Context(), jobID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if job == nil {
		writeErr(w, apperr.NotFound("unknown job "+jobID))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"job": job})
}

func (s *Server) handleCollectionTargets(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")
	rarity := market.Rarity(r.URL.Query().Get("rarity"))
	targets, err := s.read.CollectionTargets(r.Context(), tag, rarity)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, targets)
}

func (s *Server) handleCollectionInputs(w http.ResponseWriter, r *http.Request) {
	tag := r.PathValue("tag")
	rarity := market.Rarity(r.URL.Query().Get("rarity"))
	inputs, err := s.read.CollectionInputs(r.Context(), tag, rarity)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inputs)
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req tradeup.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, apperr.Validation("malformed request body"))
		return
	}
	result, err := s.engine.Calculate(r.Context(), req)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func persistNames(path string, names []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0644)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("HTTPAPI", "encoding response: "+err.Error())
	}
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if ae, ok := apperr.As(err); ok {
		switch ae.Kind {
		case apperr.KindRateLimited:
			status = http.StatusServiceUnavailable
		case apperr.KindValidation, apperr.KindFatal:
			status = http.StatusBadRequest
		case apperr.KindNotFound:
			status = http.StatusNotFound
		}
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func parseRarities(csv string) []market.Rarity {
	if csv == "" {
		return market.Ladder
	}
	parts := strings.Split(csv, ",")
	out := make([]market.Rarity, 0, len(parts))
	for _, p := range parts {
		out = append(out, market.Rarity(strings.TrimSpace(p)))
	}
	return out
}

func parseBool(s string) bool { return s == "true" || s == "1" }

func parseInt(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
