package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hluk/resultsdb/pkg/api/query"
	"github.com/hluk/resultsdb/pkg/api/store"
)

// messageResponse is the standard error/info payload.
type messageResponse struct {
	Message string `json:"message"`
}

// listResponse wraps one page of a listing.
type listResponse struct {
	Data any     `json:"data"`
	Prev *string `json:"prev"`
	Next *string `json:"next"`
}

type testcaseResponse struct {
	Name   string  `json:"name"`
	RefURL *string `json:"ref_url"`
	Href   string  `json:"href"`
}

type groupResponse struct {
	UUID         string  `json:"uuid"`
	Description  *string `json:"description"`
	RefURL       *string `json:"ref_url"`
	Href         string  `json:"href"`
	ResultsCount int64   `json:"results_count"`
	Results      string  `json:"results"`
}

type resultResponse struct {
	ID         uint                `json:"id"`
	Testcase   testcaseResponse    `json:"testcase"`
	Groups     []string            `json:"groups"`
	Outcome    string              `json:"outcome"`
	Note       *string             `json:"note"`
	RefURL     *string             `json:"ref_url"`
	SubmitTime string              `json:"submit_time"`
	Data       map[string][]string `json:"data"`
	Href       string              `json:"href"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// baseURL reconstructs the externally visible API prefix for href links.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s/api/v2.0", scheme, r.Host)
}

func toTestcaseResponse(r *http.Request, tc *store.Testcase) testcaseResponse {
	return testcaseResponse{
		Name:   tc.Name,
		RefURL: tc.RefURL,
		Href:   baseURL(r) + "/testcases/" + tc.Name,
	}
}

func toGroupResponse(
	r *http.Request, g *store.Group, resultsCount int64,
) groupResponse {
	base := baseURL(r)

	return groupResponse{
		UUID:         g.UUID,
		Description:  g.Description,
		RefURL:       g.RefURL,
		Href:         base + "/groups/" + g.UUID,
		ResultsCount: resultsCount,
		Results:      base + "/results?groups=" + url.QueryEscape(g.UUID),
	}
}

func toResultResponse(r *http.Request, result *store.Result) resultResponse {
	return resultResponse{
		ID:         result.ID,
		Testcase:   toTestcaseResponse(r, &result.Testcase),
		Groups:     result.GroupUUIDs(),
		Outcome:    result.Outcome,
		Note:       result.Note,
		RefURL:     result.RefURL,
		SubmitTime: query.FormatTimestamp(result.SubmitTime),
		Data:       result.DataValues(),
		Href:       fmt.Sprintf("%s/results/%d", baseURL(r), result.ID),
	}
}

// pageParams are the pagination controls of a listing request.
type pageParams struct {
	page  int
	limit int
}

// parsePageParams reads page/limit query parameters with configured
// defaults. Pages count from zero.
func (s *server) parsePageParams(r *http.Request) (pageParams, error) {
	params := pageParams{page: 0, limit: s.cfg.Server.PageLimit}

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 0 {
			return params, query.Validationf("invalid page: %q", raw)
		}

		params.page = page
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return params, query.Validationf("invalid limit: %q", raw)
		}

		if limit > s.cfg.Server.MaxPageLimit {
			limit = s.cfg.Server.MaxPageLimit
		}

		params.limit = limit
	}

	return params, nil
}

// storePage converts page parameters to a store page that fetches one
// extra row, so the caller can tell whether a next page exists.
func (p pageParams) storePage() *store.Page {
	return &store.Page{
		Limit:  p.limit + 1,
		Offset: p.page * p.limit,
	}
}

// pageLinks builds prev/next URLs for the current request. hasNext is
// derived from the extra row fetched by storePage.
func pageLinks(
	r *http.Request, params pageParams, hasNext bool,
) (prev, next *string) {
	if params.page > 0 {
		prev = pageLink(r, params.page-1)
	}

	if hasNext {
		next = pageLink(r, params.page+1)
	}

	return prev, next
}

func pageLink(r *http.Request, page int) *string {
	u := *r.URL

	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	u.RawQuery = q.Encode()

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	link := fmt.Sprintf("%s://%s%s", scheme, r.Host, u.RequestURI())

	return &link
}
