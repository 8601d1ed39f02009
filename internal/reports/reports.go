// Package reports derives summary totals and groupings from raw time entry
// rows. Everything here is a pure transform over a fetched snapshot; open
// timers never contribute minutes but do count as activity.
package reports

import (
	"sort"
	"time"

	"github.com/ponto-labs/pontual/internal/models"
	"github.com/ponto-labs/pontual/internal/timeutil"
)

// DaySummary groups the entries of one calendar date (UTC fields of the
// stored instants, i.e. the wall-clock date they were logged on).
type DaySummary struct {
	Date         time.Time                `json:"date"`
	Entries      []models.TimeEntryDetail `json:"entries"`
	TotalMinutes int                      `json:"total_minutes"`
	Formatted    string                   `json:"total_formatted"`
}

// ProjectSummary aggregates one project's entries.
type ProjectSummary struct {
	ProjectID         string    `json:"project_id"`
	Name              string    `json:"name"`
	IsFinished        bool      `json:"is_finished"`
	OrganizationID    string    `json:"organization_id"`
	OrganizationName  string    `json:"organization_name"`
	TotalMinutes      int       `json:"total_minutes"`
	Formatted         string    `json:"total_formatted"`
	LastActivity      time.Time `json:"last_activity"`
	LastActivityLabel string    `json:"last_activity_label"`
}

// UserSummary aggregates one user's entries.
type UserSummary struct {
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	TotalMinutes int       `json:"total_minutes"`
	Formatted    string    `json:"total_formatted"`
	EntryCount   int       `json:"entry_count"`
	LastActivity time.Time `json:"last_activity"`
}

// entryMinutes returns the floored minutes of a closed entry, 0 for open
// timers.
func entryMinutes(e *models.TimeEntry) int {
	if e.EndedAt == nil {
		return 0
	}
	return timeutil.DurationMinutes(e.StartedAt, *e.EndedAt)
}

// TotalMinutes sums the durations of closed entries whose started_at falls in
// the range. Open timers are excluded entirely, not partially credited.
func TotalMinutes(entries []models.TimeEntryDetail, r DateRange) int {
	total := 0
	for i := range entries {
		e := &entries[i].TimeEntry
		if e.EndedAt == nil {
			continue
		}
		if !r.Contains(e.StartedAt) {
			continue
		}
		total += timeutil.DurationMinutes(e.StartedAt, *e.EndedAt)
	}
	return total
}

// Filter returns the entries whose started_at falls in the range. Open
// entries pass the filter; totals still ignore them.
func Filter(entries []models.TimeEntryDetail, r DateRange) []models.TimeEntryDetail {
	out := make([]models.TimeEntryDetail, 0, len(entries))
	for _, e := range entries {
		if r.Contains(e.StartedAt) {
			out = append(out, e)
		}
	}
	return out
}

// GroupByDay buckets entries by the calendar date of started_at. Days are
// sorted descending; entries within a day descending by started_at.
func GroupByDay(entries []models.TimeEntryDetail) []DaySummary {
	buckets := make(map[time.Time][]models.TimeEntryDetail)
	for _, e := range entries {
		day := timeutil.StartOfDay(e.StartedAt)
		buckets[day] = append(buckets[day], e)
	}

	days := make([]DaySummary, 0, len(buckets))
	for day, group := range buckets {
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].StartedAt.After(group[j].StartedAt)
		})
		total := 0
		for i := range group {
			total += entryMinutes(&group[i].TimeEntry)
		}
		days = append(days, DaySummary{
			Date:         day,
			Entries:      group,
			TotalMinutes: total,
			Formatted:    timeutil.FormatMinutes(total),
		})
	}

	sort.SliceStable(days, func(i, j int) bool {
		return days[i].Date.After(days[j].Date)
	})
	return days
}

// GroupByProject produces one summary per distinct project. Minutes come from
// closed entries only; last activity is the max started_at over all entries,
// open ones included. Output is sorted descending by total minutes.
func GroupByProject(entries []models.TimeEntryDetail, now time.Time) []ProjectSummary {
	index := make(map[string]*ProjectSummary)
	order := make([]string, 0)

	for i := range entries {
		e := &entries[i]
		s, ok := index[e.ProjectID]
		if !ok {
			s = &ProjectSummary{
				ProjectID:        e.ProjectID,
				Name:             e.ProjectName,
				IsFinished:       e.ProjectFinished,
				OrganizationID:   e.OrganizationID,
				OrganizationName: e.OrganizationName,
			}
			index[e.ProjectID] = s
			order = append(order, e.ProjectID)
		}
		s.TotalMinutes += entryMinutes(&e.TimeEntry)
		if e.StartedAt.After(s.LastActivity) {
			s.LastActivity = e.StartedAt
		}
	}

	out := make([]ProjectSummary, 0, len(index))
	for _, id := range order {
		s := index[id]
		s.Formatted = timeutil.FormatMinutes(s.TotalMinutes)
		s.LastActivityLabel = timeutil.RelativeLabel(s.LastActivity, now)
		out = append(out, *s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalMinutes > out[j].TotalMinutes
	})
	return out
}

// ActiveOnly drops summaries of finished projects, regardless of how much
// time they hold.
func ActiveOnly(summaries []ProjectSummary) []ProjectSummary {
	out := make([]ProjectSummary, 0, len(summaries))
	for _, s := range summaries {
		if !s.IsFinished {
			out = append(out, s)
		}
	}
	return out
}

// GroupByUser produces one summary per distinct user, sorted descending by
// total minutes. EntryCount counts every entry, open timers included.
func GroupByUser(entries []models.TimeEntryDetail) []UserSummary {
	index := make(map[string]*UserSummary)
	order := make([]string, 0)

	for i := range entries {
		e := &entries[i]
		s, ok := index[e.UserID]
		if !ok {
			s = &UserSummary{
				UserID:   e.UserID,
				Email:    e.UserEmail,
				FullName: e.UserFullName,
			}
			index[e.UserID] = s
			order = append(order, e.UserID)
		}
		s.TotalMinutes += entryMinutes(&e.TimeEntry)
		s.EntryCount++
		if e.StartedAt.After(s.LastActivity) {
			s.LastActivity = e.StartedAt
		}
	}

	out := make([]UserSummary, 0, len(index))
	for _, id := range order {
		s := index[id]
		s.Formatted = timeutil.FormatMinutes(s.TotalMinutes)
		out = append(out, *s)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalMinutes > out[j].TotalMinutes
	})
	return out
}
