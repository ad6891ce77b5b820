// Package chromatest provides an in-memory ChromaDB v2 REST server for tests.
package chromatest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"

	"github.com/gorilla/mux"

	"github.com/psantana5/chromactl/internal/chroma"
)

// HeartbeatNanos is the clock value every heartbeat returns
const HeartbeatNanos int64 = 1700000000000000000

// Version is what the version endpoint returns
const Version = "1.0.0"

// Server answers the subset of the v2 API the client uses. Collections
// may live under any tenant and database; the last seen pair is recorded.
type Server struct {
	URL string

	mu             sync.Mutex
	collections    map[string]*collection // by name
	nextID         int
	addCalls       []int
	deleted        []string
	failAddAt      int
	failHeartbeats int
	heartbeats     int
	lastTenant     string
	lastDatabase   string
}

type collection struct {
	col     chroma.Collection
	records chroma.Records
}

// NewServer starts a server that is closed when the test ends
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{collections: make(map[string]*collection)}
	router := mux.NewRouter()
	router.HandleFunc("/api/v2/heartbeat", s.heartbeat).Methods(http.MethodGet)
	router.HandleFunc("/api/v2/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, Version)
	}).Methods(http.MethodGet)

	base := router.PathPrefix("/api/v2/tenants/{tenant}/databases/{database}").Subrouter()
	base.Use(s.recordTenant)
	base.HandleFunc("/collections", s.list).Methods(http.MethodGet)
	base.HandleFunc("/collections", s.create).Methods(http.MethodPost)
	base.HandleFunc("/collections/{name}", s.get).Methods(http.MethodGet)
	base.HandleFunc("/collections/{name}", s.delete).Methods(http.MethodDelete)
	base.HandleFunc("/collections/{id}/count", s.count).Methods(http.MethodGet)
	base.HandleFunc("/collections/{id}/get", s.getRecords).Methods(http.MethodPost)
	base.HandleFunc("/collections/{id}/add", s.add).Methods(http.MethodPost)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	s.URL = srv.URL

	return s
}

// Client returns a client for the default tenant and database
func (s *Server) Client(opts ...chroma.Option) *chroma.Client {
	return chroma.NewClient(s.URL, opts...)
}

// Seed creates a collection holding n generated records
func (s *Server) Seed(name string, metadata map[string]interface{}, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.newCollection(name, metadata)
	for i := 0; i < n; i++ {
		doc := fmt.Sprintf("document %d", i)
		c.records.IDs = append(c.records.IDs, fmt.Sprintf("id%d", i))
		c.records.Documents = append(c.records.Documents, &doc)
		c.records.Embeddings = append(c.records.Embeddings, []float32{float32(i), 0.5})
		c.records.Metadatas = append(c.records.Metadatas, map[string]interface{}{"page": float64(i)})
	}
}

// Records returns a copy of a collection's records, or nil if it does not exist
func (s *Server) Records(name string) *chroma.Records {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return nil
	}
	out := &chroma.Records{}
	out.Append(&c.records)
	return out
}

// Collection returns a collection by name
func (s *Server) Collection(name string) (chroma.Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.collections[name]
	if !ok {
		return chroma.Collection{}, false
	}
	return c.col, true
}

// AddCalls returns the batch size of every add request so far
func (s *Server) AddCalls() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.addCalls...)
}

// Deleted returns the names of deleted collections in order
func (s *Server) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}

// FailAddAt makes the n-th add request (1-based) fail with a 500
func (s *Server) FailAddAt(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAddAt = n
}

// FailHeartbeats makes the next n heartbeats answer 503
func (s *Server) FailHeartbeats(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failHeartbeats = n
}

// Heartbeats returns how many heartbeat requests were served
func (s *Server) Heartbeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heartbeats
}

// LastTenant returns the tenant and database of the last collection request
func (s *Server) LastTenant() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTenant, s.lastDatabase
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter, name string) {
	writeJSON(w, http.StatusNotFound, map[string]string{
		"error":   "NotFoundError",
		"message": fmt.Sprintf("Collection [%s] does not exist", name),
	})
}

func (s *Server) recordTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		s.mu.Lock()
		s.lastTenant, s.lastDatabase = vars["tenant"], vars["database"]
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) newCollection(name string, metadata map[string]interface{}) *collection {
	s.nextID++
	c := &collection{col: chroma.Collection{ID: fmt.Sprintf("uuid-%d", s.nextID), Name: name, Metadata: metadata}}
	s.collections[name] = c
	return c
}

func (s *Server) byID(id string) *collection {
	for _, c := range s.collections {
		if c.col.ID == id {
			return c
		}
	}
	return nil
}

func (s *Server) heartbeat(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.heartbeats++
	failing := s.failHeartbeats > 0
	if failing {
		s.failHeartbeats--
	}
	s.mu.Unlock()

	if failing {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "starting"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"nanosecond heartbeat": HeartbeatNanos})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []chroma.Collection{}
	for _, c := range s.collections {
		out = append(out, c.col)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string                 `json:"name"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.collections[req.Name]; exists {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "UniqueConstraintError"})
		return
	}
	writeJSON(w, http.StatusOK, s.newCollection(req.Name, req.Metadata).col)
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		writeNotFound(w, name)
		return
	}
	writeJSON(w, http.StatusOK, c.col)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		writeNotFound(w, name)
		return
	}
	delete(s.collections, name)
	s.deleted = append(s.deleted, name)
	writeJSON(w, http.StatusOK, map[string]string{})
}

func (s *Server) count(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byID(id)
	if c == nil {
		writeNotFound(w, id)
		return
	}
	writeJSON(w, http.StatusOK, c.records.Len())
}

func (s *Server) getRecords(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Include []string `json:"include"`
		Limit   int      `json:"limit"`
		Offset  int      `json:"offset"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.byID(id)
	if c == nil {
		writeNotFound(w, id)
		return
	}

	total := c.records.Len()
	from := min(req.Offset, total)
	to := total
	if req.Limit > 0 {
		to = min(from+req.Limit, total)
	}
	page := c.records.Slice(from, to)

	included := map[string]bool{}
	for _, inc := range req.Include {
		included[inc] = true
	}
	if !included[string(chroma.IncludeDocuments)] {
		page.Documents = nil
	}
	if !included[string(chroma.IncludeEmbeddings)] {
		page.Embeddings = nil
	}
	if !included[string(chroma.IncludeMetadatas)] {
		page.Metadatas = nil
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	var recs chroma.Records
	if err := json.NewDecoder(r.Body).Decode(&recs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	id := mux.Vars(r)["id"]

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCalls = append(s.addCalls, recs.Len())
	if s.failAddAt > 0 && len(s.addCalls) == s.failAddAt {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "InternalError"})
		return
	}

	c := s.byID(id)
	if c == nil {
		writeNotFound(w, id)
		return
	}
	c.records.Append(&recs)
	writeJSON(w, http.StatusCreated, map[string]string{})
}
