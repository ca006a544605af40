package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hluk/resultsdb/pkg/api/query"
	"github.com/hluk/resultsdb/pkg/api/store"
)

// createResultRequest mirrors the POST /results body. testcase accepts a
// plain name or a {name, ref_url} object; groups accepts uuid strings or
// group objects; data values accept a scalar or a list of scalars.
type createResultRequest struct {
	Testcase   json.RawMessage   `json:"testcase"`
	Outcome    string            `json:"outcome"`
	Note       *string           `json:"note"`
	RefURL     *string           `json:"ref_url"`
	SubmitTime any               `json:"submit_time"`
	Groups     []json.RawMessage `json:"groups"`
	Data       map[string]any    `json:"data"`
}

type testcaseRef struct {
	Name   string  `json:"name"`
	RefURL *string `json:"ref_url"`
}

type groupRef struct {
	UUID        string  `json:"uuid"`
	Description *string `json:"description"`
	RefURL      *string `json:"ref_url"`
}

// handleCreateResult validates and commits a submitted result, then
// publishes it on the message bus.
func (s *server) handleCreateResult(w http.ResponseWriter, r *http.Request) {
	var req createResultRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest,
			messageResponse{"invalid request body"})

		return
	}

	pending, err := s.buildPendingResult(&req)
	if err != nil {
		s.writeError(w, err, "")

		return
	}

	result, err := s.store.CommitResult(r.Context(), pending)
	if err != nil {
		s.writeError(w, err, "")

		return
	}

	s.publishResult(result)

	writeJSON(w, http.StatusCreated, toResultResponse(r, result))
}

// buildPendingResult converts the decoded request body into a validated
// PendingResult.
func (s *server) buildPendingResult(
	req *createResultRequest,
) (*store.PendingResult, error) {
	testcase, err := parseTestcaseRef(req.Testcase)
	if err != nil {
		return nil, err
	}

	if req.Outcome == "" {
		return nil, query.Validationf("outcome must be non-empty")
	}

	pending := &store.PendingResult{
		TestcaseName:   testcase.Name,
		TestcaseRefURL: testcase.RefURL,
		Outcome:        req.Outcome,
		Note:           req.Note,
		RefURL:         req.RefURL,
	}

	if req.SubmitTime != nil {
		submitTime, err := query.ParseSubmitTime(req.SubmitTime)
		if err != nil {
			return nil, err
		}

		pending.SubmitTime = &submitTime
	}

	for _, raw := range req.Groups {
		group, err := parseGroupRef(raw)
		if err != nil {
			return nil, err
		}

		pending.Groups = append(pending.Groups, store.Group{
			UUID:        group.UUID,
			Description: group.Description,
			RefURL:      group.RefURL,
		})
	}

	pending.Data = flattenData(req.Data)

	return pending, nil
}

// parseTestcaseRef accepts "name" or {"name": ..., "ref_url": ...}.
func parseTestcaseRef(raw json.RawMessage) (*testcaseRef, error) {
	if len(raw) == 0 {
		return nil, query.Validationf("testcase is required")
	}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		if name == "" {
			return nil, query.Validationf("testcase name must be non-empty")
		}

		return &testcaseRef{Name: name}, nil
	}

	var ref testcaseRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, query.Validationf("invalid testcase value")
	}

	if ref.Name == "" {
		return nil, query.Validationf("testcase name must be non-empty")
	}

	return &ref, nil
}

// parseGroupRef accepts "uuid" or {"uuid": ..., "description": ...,
// "ref_url": ...}.
func parseGroupRef(raw json.RawMessage) (*groupRef, error) {
	var groupUUID string
	if err := json.Unmarshal(raw, &groupUUID); err == nil {
		if groupUUID == "" {
			return nil, query.Validationf("group uuid must be non-empty")
		}

		return &groupRef{UUID: groupUUID}, nil
	}

	var ref groupRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, query.Validationf("invalid group value")
	}

	if ref.UUID == "" {
		return nil, query.Validationf("group uuid must be non-empty")
	}

	return &ref, nil
}

// flattenData turns the data map into (key, value) pairs, one per element
// for list values. Keys are emitted in sorted order so data rows get
// stable ids.
func flattenData(data map[string]any) []store.DataPair {
	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	var pairs []store.DataPair

	for _, key := range keys {
		switch value := data[key].(type) {
		case []any:
			for _, item := range value {
				pairs = append(pairs, store.DataPair{
					Key:   key,
					Value: scalarString(item),
				})
			}
		default:
			pairs = append(pairs, store.DataPair{
				Key:   key,
				Value: scalarString(value),
			})
		}
	}

	return pairs
}

func scalarString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// --- Result queries ---

// handleGetResult returns one result by id.
func (s *server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusNotFound,
			messageResponse{"Result not found"})

		return
	}

	result, err := s.store.GetResult(r.Context(), uint(id))
	if err != nil {
		s.writeError(w, err, "Result not found")

		return
	}

	writeJSON(w, http.StatusOK, toResultResponse(r, result))
}

// handleListResults lists results matching the request filters.
func (s *server) handleListResults(w http.ResponseWriter, r *http.Request) {
	s.listResults(w, r, nil)
}

// listResults runs a filtered result query with optional filter overrides
// (used by the nested testcase/group result routes).
func (s *server) listResults(
	w http.ResponseWriter, r *http.Request, overrides map[string]string,
) {
	params, err := s.parsePageParams(r)
	if err != nil {
		s.writeError(w, err, "")

		return
	}

	filters, err := s.parseRequestFilters(r, overrides)
	if err != nil {
		s.writeError(w, err, "")

		return
	}

	results, err := s.store.QueryResults(r.Context(), filters, params.storePage())
	if err != nil {
		s.writeError(w, err, "")

		return
	}

	hasNext := len(results) > params.limit
	if hasNext {
		results = results[:params.limit]
	}

	s.writeResultsPage(w, r, results, params, hasNext)
}

// handleLatestResults returns the most recent result per (testcase,
// _distinct_on value) group.
func (s *server) handleLatestResults(w http.ResponseWriter, r *http.Request) {
	params, err := s.parsePageParams(r)
	if err != nil {
		s.writeError(w, err, "")

		return
	}

	filters, err := s.parseRequestFilters(r, nil)
	if err != nil {
		s.writeError(w, err, "")

		return
	}

	survivors, err := s.store.QueryLatestResults(r.Context(), filters)
	if err != nil {
		s.writeError(w, err, "")

		return
	}

	// Latest resolution needs the full candidate set, so pagination is
	// applied to the survivor list in memory.
	offset := params.page * params.limit

	if offset > len(survivors) {
		offset = len(survivors)
	}

	end := offset + params.limit
	if end > len(survivors) {
		end = len(survivors)
	}

	hasNext := end < len(survivors)

	s.writeResultsPage(w, r, survivors[offset:end], params, hasNext)
}

func (s *server) parseRequestFilters(
	r *http.Request, overrides map[string]string,
) (*query.Filters, error) {
	raw := make(map[string]string, len(r.URL.Query())+len(overrides))

	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			raw[key] = values[0]
		}
	}

	for key, value := range overrides {
		raw[key] = value
	}

	return query.ParseFilters(raw)
}

func (s *server) writeResultsPage(
	w http.ResponseWriter,
	r *http.Request,
	results []store.Result,
	params pageParams,
	hasNext bool,
) {
	data := make([]resultResponse, 0, len(results))
	for i := range results {
		data = append(data, toResultResponse(r, &results[i]))
	}

	prev, next := pageLinks(r, params, hasNext)
	writeJSON(w, http.StatusOK, listResponse{Data: data, Prev: prev, Next: next})
}
