// Package jamftest provides a fake device-management backend for tests.
package jamftest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// Token is the bearer token the fake backend issues.
const Token = "jamftest-bearer-token"

// PlanRecord captures one update-plan submission.
type PlanRecord struct {
	DeviceID                  string
	UpdateAction              string
	VersionType               string
	ForceInstallLocalDateTime string
}

// ServerConfig holds configuration for the fake backend.
type ServerConfig struct {
	// ClientID and ClientSecret are the credentials the token endpoint
	// accepts. Empty values accept anything.
	ClientID     string
	ClientSecret string

	// Searches maps search id to the raw payload served for it.
	Searches map[string][]byte

	// PlanRateLimit, when > 0, limits plan submissions to that many
	// requests per minute; excess requests get a real 429 from
	// httprate, the same way the production backend behaves.
	PlanRateLimit int
}

// Server is a fake backend. Zero scripted statuses mean every plan
// submission succeeds with 201.
type Server struct {
	*httptest.Server

	cfg ServerConfig

	mu          sync.Mutex
	tokenValid  bool
	tokenIssued int
	probes      int
	searchHits  int
	plans       []PlanRecord
	planScripts map[string][]int
}

// NewServer starts a fake backend.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		cfg:         cfg,
		planScripts: make(map[string][]int),
	}

	r := chi.NewRouter()
	r.Post("/api/oauth/token", s.handleToken)
	r.Get("/api/v1/auth", s.handleProbe)
	r.Post("/api/v1/auth/invalidate-token", s.handleInvalidate)
	r.Get("/JSSResource/advancedcomputersearches", s.handleListSearches)
	r.Get("/JSSResource/advancedcomputersearches/id/{id}", s.handleSearch)

	r.Group(func(r chi.Router) {
		if cfg.PlanRateLimit > 0 {
			r.Use(httprate.LimitByIP(cfg.PlanRateLimit, time.Minute))
		}
		r.Post("/api/v1/managed-software-updates/plans", s.handlePlan)
	})

	s.Server = httptest.NewServer(r)
	return s
}

// ScriptPlanStatuses queues response statuses for plan submissions
// naming deviceID; once drained, submissions succeed with 201.
func (s *Server) ScriptPlanStatuses(deviceID string, statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.planScripts[deviceID] = append(s.planScripts[deviceID], statuses...)
}

// RevokeToken makes the current token invalid, as if it expired.
func (s *Server) RevokeToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenValid = false
}

// Plans returns the recorded plan submissions that were accepted or
// rejected with a scripted status (rate-limited requests are not seen
// by the handler and do not appear here).
func (s *Server) Plans() []PlanRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PlanRecord(nil), s.plans...)
}

// Probes returns how many times the token probe endpoint was called.
func (s *Server) Probes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probes
}

// TokensIssued returns how many tokens the token endpoint handed out.
func (s *Server) TokensIssued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenIssued
}

// SearchHits returns how many times a search payload was served.
func (s *Server) SearchHits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchHits
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("grant_type") != "client_credentials" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if s.cfg.ClientID != "" &&
		(r.PostForm.Get("client_id") != s.cfg.ClientID ||
			r.PostForm.Get("client_secret") != s.cfg.ClientSecret) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	s.tokenValid = true
	s.tokenIssued++
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"access_token":%q,"expires_in":1200}`, Token)
}

func (s *Server) authorized(r *http.Request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenValid && r.Header.Get("Authorization") == "Bearer "+Token
}

func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.probes++
	s.mu.Unlock()

	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	s.mu.Lock()
	s.tokenValid = false
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListSearches(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	type ref struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	var refs []ref
	for id := range s.cfg.Searches {
		var n int
		fmt.Sscanf(id, "%d", &n)
		refs = append(refs, ref{ID: n, Name: "search " + id})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"advanced_computer_searches": refs})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	payload, ok := s.cfg.Searches[chi.URLParam(r, "id")]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s.mu.Lock()
	s.searchHits++
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.Write(payload)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var body struct {
		Devices []struct {
			ObjectType string `json:"objectType"`
			DeviceID   string `json:"deviceId"`
		} `json:"devices"`
		Config struct {
			UpdateAction              string `json:"updateAction"`
			VersionType               string `json:"versionType"`
			ForceInstallLocalDateTime string `json:"forceInstallLocalDateTime"`
		} `json:"config"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Devices) == 0 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	deviceID := body.Devices[0].DeviceID

	s.mu.Lock()
	s.plans = append(s.plans, PlanRecord{
		DeviceID:                  deviceID,
		UpdateAction:              body.Config.UpdateAction,
		VersionType:               body.Config.VersionType,
		ForceInstallLocalDateTime: body.Config.ForceInstallLocalDateTime,
	})
	status := http.StatusCreated
	if queue := s.planScripts[deviceID]; len(queue) > 0 {
		status = queue[0]
		s.planScripts[deviceID] = queue[1:]
	}
	s.mu.Unlock()

	w.WriteHeader(status)
}
