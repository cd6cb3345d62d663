// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package api implements the public-facing HTTP server for the deck staging
// service. It routes edit, apply, and catalog requests to the core
// components and maps the error taxonomy to HTTP status codes.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"deckstage"
	"deckstage/internal/deckbuilder/catalog"
	"deckstage/internal/deckbuilder/core"
	"deckstage/internal/deckbuilder/importer"
	"deckstage/internal/deckbuilder/rules"
	deckstore "deckstage/internal/deckbuilder/store"
)

// Server handles the HTTP requests for the deck staging service.
type Server struct {
	registry   *core.Registry
	reconciler *core.Reconciler
	ruleSource rules.Source
	catalog    catalog.Client
	parser     importer.Parser
	pageLimit  int

	// planners holds one catalog planner per open session key, so pagination
	// state and the query generation token live server-side.
	planners sync.Map
}

// NewServer creates and configures a new API server. catalogClient may be
// nil (catalog endpoints answer 503); a nil ruleSource validates against an
// empty, permissive rule set.
func NewServer(registry *core.Registry, reconciler *core.Reconciler, ruleSource rules.Source, catalogClient catalog.Client, pageLimit int) *Server {
	if pageLimit <= 0 {
		pageLimit = 24
	}
	return &Server{
		registry:   registry,
		reconciler: reconciler,
		ruleSource: ruleSource,
		catalog:    catalogClient,
		parser:     importer.LineParser{},
		pageLimit:  pageLimit,
	}
}

// RegisterRoutes sets up the HTTP routes for the server on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /decks/{id}", s.handleGetDeck)
	mux.HandleFunc("PATCH /decks/{id}", s.handleRename)
	mux.HandleFunc("POST /decks/{id}/items/{ref}/increment", s.handleIncrement)
	mux.HandleFunc("POST /decks/{id}/items/{ref}/decrement", s.handleDecrement)
	mux.HandleFunc("PUT /decks/{id}/items/{ref}", s.handleSetQuantity)
	mux.HandleFunc("POST /decks/{id}/import", s.handleImport)
	mux.HandleFunc("POST /decks/{id}/discard", s.handleDiscard)
	mux.HandleFunc("POST /decks/{id}/undo", s.handleUndo)
	mux.HandleFunc("POST /decks/{id}/redo", s.handleRedo)
	mux.HandleFunc("GET /decks/{id}/delta", s.handleDelta)
	mux.HandleFunc("GET /decks/{id}/violations", s.handleViolations)
	mux.HandleFunc("POST /decks/{id}/apply", s.handleApply)
	mux.HandleFunc("POST /decks/{id}/catalog/query", s.handleCatalogQuery)
	mux.HandleFunc("POST /decks/{id}/catalog/next", s.handleCatalogNext)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
}

// viewerID is taken from the X-Viewer-Id header, falling back to the
// viewer_id query parameter. Empty means anonymous (read-only).
func viewerID(r *http.Request) string {
	if v := r.Header.Get("X-Viewer-Id"); v != "" {
		return v
	}
	return r.URL.Query().Get("viewer_id")
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*core.Session, bool) {
	sess, err := s.registry.Open(r.Context(), r.PathValue("id"), viewerID(r))
	if err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	return sess, true
}

// deckState is the session snapshot returned by most endpoints.
type deckState struct {
	DeckID     string                `json:"deck_list_id"`
	Name       string                `json:"name"`
	CanEdit    bool                  `json:"can_edit"`
	Dirty      bool                  `json:"dirty"`
	CanUndo    bool                  `json:"can_undo"`
	CanRedo    bool                  `json:"can_redo"`
	CardCount  int                   `json:"card_count"`
	Base       deckstage.ItemMap     `json:"base_items"`
	Staged     deckstage.ItemMap     `json:"staged_items"`
	Merged     deckstage.ItemMap     `json:"merged_items"`
	Violations []deckstage.Violation `json:"violations,omitempty"`
}

func snapshot(sess *core.Session) deckState {
	st := sess.Staging()
	merged := st.Merged()
	return deckState{
		DeckID:    sess.DeckID,
		Name:      sess.Name(),
		CanEdit:   st.CanEdit(),
		Dirty:     st.Dirty(),
		CanUndo:   st.CanUndo(),
		CanRedo:   st.CanRedo(),
		CardCount: merged.Total(),
		Base:      st.Base(),
		Staged:    st.StagedItems(),
		Merged:    merged,
	}
}

func (s *Server) handleGetDeck(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

func (s *Server) handleIncrement(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(sess *core.Session) bool {
		return sess.Staging().Increment(r.PathValue("ref"))
	})
}

func (s *Server) handleDecrement(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(sess *core.Session) bool {
		return sess.Staging().Decrement(r.PathValue("ref"))
	})
}

func (s *Server) handleSetQuantity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Quantity int `json:"quantity"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	s.mutate(w, r, func(sess *core.Session) bool {
		sess.Staging().SetQuantity(r.PathValue("ref"), body.Quantity)
		return true
	})
}

func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(sess *core.Session) bool {
		return sess.Staging().Discard()
	})
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(sess *core.Session) bool {
		sess.Staging().Undo()
		return true
	})
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(sess *core.Session) bool {
		sess.Staging().Redo()
		return true
	})
}

// mutate runs one staged edit and returns the refreshed snapshot. A false
// return from the edit on an editable session is a benign no-op (decrement
// at zero); only missing permission maps to 403.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, edit func(*core.Session) bool) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if !sess.Staging().CanEdit() {
		writeError(w, http.StatusForbidden, "viewer may not edit this deck")
		return
	}
	sess.Touch()
	if edit(sess) {
		core.RecordEdit(1)
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

// handleImport replaces the deck contents. The body carries either resolved
// items directly, or raw text plus a card-number index to parse and match.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items       deckstage.ItemMap   `json:"items"`
		Text        string              `json:"text"`
		NumberIndex map[string][]string `json:"number_index"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if !sess.Staging().CanEdit() {
		writeError(w, http.StatusForbidden, "viewer may not edit this deck")
		return
	}

	items := body.Items
	var importErrors, importWarnings []string
	if items == nil {
		parsed := s.parser.Parse(body.Text)
		matched := importer.Match(parsed.Parsed, body.NumberIndex)
		items = matched.Items
		importErrors = append(parsed.Errors, matched.Errors...)
		importWarnings = matched.Warnings
	}
	sess.Touch()
	if sess.Staging().Import(items) {
		core.RecordEdit(1)
	}

	resp := struct {
		deckState
		ImportErrors   []string `json:"import_errors,omitempty"`
		ImportWarnings []string `json:"import_warnings,omitempty"`
	}{snapshot(sess), importErrors, importWarnings}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDelta(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Staging().Delta())
}

func (s *Server) handleViolations(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ruleSet, err := s.fetchRules(r, sess)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	violations := deckstage.Validate(sess.Staging().Merged(), ruleSet, s.attributeFunc(sess))
	writeJSON(w, http.StatusOK, struct {
		Violations []deckstage.Violation `json:"violations"`
		Blocking   bool                  `json:"blocking"`
	}{violations, deckstage.HasBlocking(violations)})
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	ruleSet, err := s.fetchRules(r, sess)
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	merged, violations, err := s.reconciler.Apply(r.Context(), sess, ruleSet, s.attributeFunc(sess))
	if err != nil {
		var ve *core.ValidationError
		var pe *core.PartialError
		switch {
		case errors.Is(err, core.ErrPermissionDenied):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, core.ErrApplyInFlight):
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &ve):
			writeJSON(w, http.StatusUnprocessableEntity, struct {
				Error      string                `json:"error"`
				Violations []deckstage.Violation `json:"violations"`
			}{ve.Error(), ve.Violations})
		case errors.As(err, &pe):
			writeJSON(w, http.StatusBadGateway, struct {
				Error     string            `json:"error"`
				Partial   bool              `json:"partial"`
				Succeeded deckstage.ItemMap `json:"succeeded"`
				Failed    []string          `json:"failed"`
			}{pe.Error(), true, pe.Succeeded, pe.Failed})
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	state := snapshot(sess)
	state.Merged = merged
	state.Violations = violations
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if !readJSON(w, r, &body) {
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := s.reconciler.Rename(r.Context(), sess, body.Name, s.attributeFunc(sess)); err != nil {
		if errors.Is(err, core.ErrPermissionDenied) {
			writeError(w, http.StatusForbidden, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snapshot(sess))
}

// handleCatalogQuery installs a new filter/sort/search query on the
// session's planner, logically cancelling any in-flight page load.
func (s *Server) handleCatalogQuery(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog is not configured")
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	q := catalog.DecodeQuery(r.URL.Query())
	if q.Limit <= 0 {
		q.Limit = s.pageLimit
	}
	if q.CategoryID == 0 {
		q.CategoryID = sess.CategoryID
	}
	planner := s.plannerFor(sess)
	planner.SetQuery(q)
	writeJSON(w, http.StatusOK, struct {
		Generation uint64 `json:"generation"`
	}{planner.Generation()})
}

// handleCatalogNext loads the next page of the current query and returns the
// accumulated, deduplicated list annotated with deck quantities.
func (s *Server) handleCatalogNext(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeError(w, http.StatusServiceUnavailable, "catalog is not configured")
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	planner := s.plannerFor(sess)
	if _, err := planner.LoadNextPage(r.Context()); err != nil {
		if errors.Is(err, catalog.ErrStalePage) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	st := sess.Staging()
	writeJSON(w, http.StatusOK, struct {
		Products []catalog.AnnotatedProduct `json:"products"`
		Total    int                        `json:"total"`
		HasMore  bool                       `json:"has_more"`
	}{planner.Annotate(st.Quantity), planner.Total(), planner.HasMore()})
}

func (s *Server) plannerFor(sess *core.Session) *catalog.Planner {
	key := sess.DeckID + "\x00" + sess.ViewerID
	if p, ok := s.planners.Load(key); ok {
		return p.(*catalog.Planner)
	}
	fresh := catalog.NewPlanner(s.catalog)
	if actual, loaded := s.planners.LoadOrStore(key, fresh); loaded {
		return actual.(*catalog.Planner)
	}
	return fresh
}

func (s *Server) fetchRules(r *http.Request, sess *core.Session) (deckstage.RuleSet, error) {
	if s.ruleSource == nil {
		return deckstage.RuleSet{}, nil
	}
	return s.ruleSource.FetchRules(r.Context(), sess.CategoryID)
}

// attributeFunc resolves product attributes from the accumulated catalog
// results of the session's planner. Refs never seen by the planner have no
// attributes, which validation tolerates.
func (s *Server) attributeFunc(sess *core.Session) deckstage.AttributeFunc {
	key := sess.DeckID + "\x00" + sess.ViewerID
	p, ok := s.planners.Load(key)
	if !ok {
		return nil
	}
	products := p.(*catalog.Planner).Products()
	index := make(map[string][]deckstage.Attribute, len(products))
	for _, prod := range products {
		attrs := make([]deckstage.Attribute, 0, len(prod.Attributes))
		for _, a := range prod.Attributes {
			attrs = append(attrs, deckstage.Attribute{Key: a.Key, Value: a.Value})
		}
		index[prod.ID] = attrs
	}
	return func(ref string) []deckstage.Attribute { return index[ref] }
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, deckstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "deck not found")
	case errors.Is(err, deckstore.ErrForbidden):
		writeError(w, http.StatusForbidden, "deck is private")
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, struct {
		Error string `json:"error"`
	}{msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return false
	}
	if len(body) == 0 {
		return true
	}
	if err := json.Unmarshal(body, v); err != nil {
		writeError(w, http.StatusBadRequest, "parse body: "+err.Error())
		return false
	}
	return true
}

// ListenAndServe starts the HTTP server on the specified address.
func (s *Server) ListenAndServe(addr string) error {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	fmt.Printf("Deck staging API server listening on %s\n", addr)
	return httpServer.ListenAndServe()
}
