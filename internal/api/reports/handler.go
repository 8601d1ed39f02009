// Package reports provides summary and dashboard endpoints.
package reports

import (
	"log"
	"net/http"
	"time"

	"github.com/ponto-labs/pontual/internal/api/middleware"
	"github.com/ponto-labs/pontual/internal/api/respond"
	"github.com/ponto-labs/pontual/internal/models"
	"github.com/ponto-labs/pontual/internal/permissions"
	agg "github.com/ponto-labs/pontual/internal/reports"
	"github.com/ponto-labs/pontual/internal/storage"
)

type Handler struct {
	storage storage.Storage

	now func() time.Time
}

func NewHandler(store storage.Storage) *Handler {
	return &Handler{storage: store, now: time.Now}
}

// resolveRange reads ?range plus ?start/?end for custom ranges. Returns
// false after writing an error response.
func (h *Handler) resolveRange(w http.ResponseWriter, r *http.Request) (agg.DateRange, bool) {
	q := r.URL.Query()
	preset, err := agg.ParsePreset(q.Get("range"))
	if err != nil {
		respond.JSONError(w, respond.NewBadRequest(err.Error()))
		return agg.DateRange{}, false
	}

	if preset == agg.RangeCustom {
		start, err := time.Parse("2006-01-02", q.Get("start"))
		if err != nil {
			respond.JSONError(w, respond.NewBadRequest("start must be a YYYY-MM-DD date"))
			return agg.DateRange{}, false
		}
		end, err := time.Parse("2006-01-02", q.Get("end"))
		if err != nil {
			respond.JSONError(w, respond.NewBadRequest("end must be a YYYY-MM-DD date"))
			return agg.DateRange{}, false
		}
		return agg.CustomRange(start, end), true
	}

	rng, err := agg.Resolve(preset, h.now().UTC())
	if err != nil {
		respond.JSONError(w, respond.NewBadRequest(err.Error()))
		return agg.DateRange{}, false
	}
	return rng, true
}

// scopedFilter builds the entry filter for organization report endpoints.
// Without the view-all capability the caller only ever sees their own rows.
func (h *Handler) scopedFilter(w http.ResponseWriter, r *http.Request) (models.EntryFilter, bool) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	filter := models.EntryFilter{OrganizationID: middleware.GetOrganizationID(ctx)}

	q := r.URL.Query()
	switch {
	case q.Get("all") == "true":
		if !middleware.HasCapability(ctx, permissions.CapViewAllEntries) {
			respond.JSONError(w, respond.ErrForbidden)
			return filter, false
		}
	case q.Get("user_id") != "" && q.Get("user_id") != userID:
		if !middleware.HasCapability(ctx, permissions.CapViewAllEntries) {
			respond.JSONError(w, respond.ErrForbidden)
			return filter, false
		}
		filter.UserID = q.Get("user_id")
	default:
		filter.UserID = userID
	}
	if projectID := q.Get("project_id"); projectID != "" {
		filter.ProjectID = projectID
	}
	return filter, true
}

// DaysResponse is the day report payload.
type DaysResponse struct {
	Days         []agg.DaySummary `json:"days"`
	TotalMinutes int              `json:"total_minutes"`
}

// Days returns entries grouped by calendar day inside the range.
func (h *Handler) Days(w http.ResponseWriter, r *http.Request) {
	dateRange, ok := h.resolveRange(w, r)
	if !ok {
		return
	}
	filter, ok := h.scopedFilter(w, r)
	if !ok {
		return
	}
	filter.From, filter.To = dateRange.From, dateRange.To

	entries, err := h.storage.Entries().List(r.Context(), filter)
	if err != nil {
		log.Printf("day report error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	days := agg.GroupByDay(entries)
	total := 0
	for _, d := range days {
		total += d.TotalMinutes
	}
	respond.OK(w, &DaysResponse{Days: days, TotalMinutes: total})
}

// Projects returns per-project totals inside the range. Finished projects
// are excluded unless ?include_finished=true.
func (h *Handler) Projects(w http.ResponseWriter, r *http.Request) {
	dateRange, ok := h.resolveRange(w, r)
	if !ok {
		return
	}
	filter, ok := h.scopedFilter(w, r)
	if !ok {
		return
	}
	filter.From, filter.To = dateRange.From, dateRange.To

	entries, err := h.storage.Entries().List(r.Context(), filter)
	if err != nil {
		log.Printf("project report error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	summaries := agg.GroupByProject(entries, h.now().UTC())
	if r.URL.Query().Get("include_finished") != "true" {
		summaries = agg.ActiveOnly(summaries)
	}
	respond.OK(w, summaries)
}

// Users returns per-member totals inside the range. Routing guarantees the
// view-all capability.
func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	dateRange, ok := h.resolveRange(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	filter := models.EntryFilter{
		OrganizationID: middleware.GetOrganizationID(ctx),
		From:           dateRange.From,
		To:             dateRange.To,
	}
	if projectID := r.URL.Query().Get("project_id"); projectID != "" {
		filter.ProjectID = projectID
	}

	entries, err := h.storage.Entries().List(ctx, filter)
	if err != nil {
		log.Printf("user report error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	respond.OK(w, agg.GroupByUser(entries))
}

// Overview returns the caller's dashboard stat block across all their
// organizations.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	now := h.now().UTC()
	// One month back covers every window the overview compares.
	filter := models.EntryFilter{
		UserID: userID,
		From:   now.AddDate(0, -1, -7),
	}

	entries, err := h.storage.Entries().List(ctx, filter)
	if err != nil {
		log.Printf("overview error: %v", err)
		respond.JSONError(w, respond.ErrInternalServer)
		return
	}

	respond.OK(w, agg.BuildOverview(entries, now))
}
