package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hluk/resultsdb/pkg/api/query"
	"github.com/hluk/resultsdb/pkg/api/store"
)

// writeError maps store/query errors to HTTP responses: ValidationError to
// 400, missing records to 404 with the given message, anything else to 500.
func (s *server) writeError(
	w http.ResponseWriter, err error, notFoundMessage string,
) {
	var verr *query.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, messageResponse{verr.Error()})

		return
	}

	if store.IsNotFound(err) {
		writeJSON(w, http.StatusNotFound, messageResponse{notFoundMessage})

		return
	}

	s.log.WithError(err).Error("Request failed")
	writeJSON(w, http.StatusInternalServerError,
		messageResponse{"internal error"})
}

// --- Landing and health ---

// handleLanding lists the advertised outcome values. Responds with 300 to
// signal that the useful endpoints live below this path.
func (s *server) handleLanding(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMultipleChoices, map[string]any{
		"outcomes": s.cfg.AdvertisedOutcomes(),
	})
}

// handleHealthcheck pings the database.
func (s *server) handleHealthcheck(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.log.WithError(err).Warn("Health check failed")
		writeJSON(w, http.StatusServiceUnavailable,
			messageResponse{"Unable to communicate with database"})

		return
	}

	writeJSON(w, http.StatusOK, messageResponse{"Health check OK"})
}

// --- Testcases ---

type createTestcaseRequest struct {
	Name   string  `json:"name"`
	RefURL *string `json:"ref_url"`
}

// handleCreateTestcase upserts a testcase by name.
func (s *server) handleCreateTestcase(
	w http.ResponseWriter, r *http.Request,
) {
	var req createTestcaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			messageResponse{"invalid request body"})

		return
	}

	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest,
			messageResponse{"testcase name must be non-empty"})

		return
	}

	tc := &store.Testcase{Name: req.Name, RefURL: req.RefURL}
	if err := s.store.UpsertTestcase(r.Context(), tc); err != nil {
		s.writeError(w, err, "Testcase not found")

		return
	}

	writeJSON(w, http.StatusCreated, toTestcaseResponse(r, tc))
}

// handleListTestcases lists testcases filtered by name / name:like.
func (s *server) handleListTestcases(
	w http.ResponseWriter, r *http.Request,
) {
	params, err := s.parsePageParams(r)
	if err != nil {
		s.writeError(w, err, "")

		return
	}

	filter := store.TestcaseFilter{}

	if names := r.URL.Query().Get("name"); names != "" {
		filter.Names = strings.Split(names, ",")
	}

	if patterns := r.URL.Query().Get("name:like"); patterns != "" {
		filter.NamePatterns = strings.Split(patterns, ",")
	}

	testcases, err := s.store.ListTestcases(
		r.Context(), filter, params.storePage(),
	)
	if err != nil {
		s.writeError(w, err, "")

		return
	}

	hasNext := len(testcases) > params.limit
	if hasNext {
		testcases = testcases[:params.limit]
	}

	data := make([]testcaseResponse, 0, len(testcases))
	for i := range testcases {
		data = append(data, toTestcaseResponse(r, &testcases[i]))
	}

	prev, next := pageLinks(r, params, hasNext)
	writeJSON(w, http.StatusOK, listResponse{Data: data, Prev: prev, Next: next})
}

// handleTestcaseSubtree resolves GET /testcases/<name> and
// GET /testcases/<name>/results. Testcase names may contain slashes, so
// both are parsed out of one wildcard.
func (s *server) handleTestcaseSubtree(
	w http.ResponseWriter, r *http.Request,
) {
	name := chi.URLParam(r, "*")

	if trimmed, found := strings.CutSuffix(name, "/results"); found {
		s.listResults(w, r, map[string]string{"testcases": trimmed})

		return
	}

	tc, err := s.store.GetTestcase(r.Context(), name)
	if err != nil {
		s.writeError(w, err, "Testcase not found")

		return
	}

	writeJSON(w, http.StatusOK, toTestcaseResponse(r, tc))
}

// --- Groups ---

type createGroupRequest struct {
	UUID        string  `json:"uuid"`
	Description *string `json:"description"`
	RefURL      *string `json:"ref_url"`
}

// handleCreateGroup upserts a group by uuid, generating one when absent.
func (s *server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			messageResponse{"invalid request body"})

		return
	}

	if req.UUID == "" {
		req.UUID = uuid.NewString()
	}

	g := &store.Group{
		UUID:        req.UUID,
		Description: req.Description,
		RefURL:      req.RefURL,
	}

	if err := s.store.UpsertGroup(r.Context(), g); err != nil {
		s.writeError(w, err, "Group not found")

		return
	}

	count, err := s.store.CountGroupResults(r.Context(), g.UUID)
	if err != nil {
		s.writeError(w, err, "Group not found")

		return
	}

	writeJSON(w, http.StatusCreated, toGroupResponse(r, g, count))
}

// handleListGroups lists groups filtered by uuid / description.
func (s *server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	params, err := s.parsePageParams(r)
	if err != nil {
		s.writeError(w, err, "")

		return
	}

	filter := store.GroupFilter{}

	if uuids := r.URL.Query().Get("uuid"); uuids != "" {
		filter.UUIDs = strings.Split(uuids, ",")
	}

	if descriptions := r.URL.Query().Get("description"); descriptions != "" {
		filter.Descriptions = strings.Split(descriptions, ",")
	}

	if patterns := r.URL.Query().Get("description:like"); patterns != "" {
		filter.DescriptionPatterns = strings.Split(patterns, ",")
	}

	groups, err := s.store.ListGroups(r.Context(), filter, params.storePage())
	if err != nil {
		s.writeError(w, err, "")

		return
	}

	hasNext := len(groups) > params.limit
	if hasNext {
		groups = groups[:params.limit]
	}

	data := make([]groupResponse, 0, len(groups))

	for i := range groups {
		count, err := s.store.CountGroupResults(r.Context(), groups[i].UUID)
		if err != nil {
			s.writeError(w, err, "")

			return
		}

		data = append(data, toGroupResponse(r, &groups[i], count))
	}

	prev, next := pageLinks(r, params, hasNext)
	writeJSON(w, http.StatusOK, listResponse{Data: data, Prev: prev, Next: next})
}

// handleGetGroup returns one group by uuid.
func (s *server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	groupUUID := chi.URLParam(r, "uuid")

	g, err := s.store.GetGroup(r.Context(), groupUUID)
	if err != nil {
		s.writeError(w, err, "Group not found")

		return
	}

	count, err := s.store.CountGroupResults(r.Context(), groupUUID)
	if err != nil {
		s.writeError(w, err, "Group not found")

		return
	}

	writeJSON(w, http.StatusOK, toGroupResponse(r, g, count))
}

// handleGroupResults lists the results belonging to a group.
func (s *server) handleGroupResults(w http.ResponseWriter, r *http.Request) {
	s.listResults(w, r, map[string]string{
		"groups": chi.URLParam(r, "uuid"),
	})
}
