package reports

import (
	"time"

	"github.com/ponto-labs/pontual/internal/models"
	"github.com/ponto-labs/pontual/internal/timeutil"
)

// Overview is the dashboard stat block for one user: period totals plus
// absolute comparisons against the previous day and week. Comparisons are
// minute differences, not percentages, so a zero baseline needs no special
// casing.
type Overview struct {
	TodayMinutes     int    `json:"today_minutes"`
	TodayFormatted   string `json:"today_formatted"`
	YesterdayMinutes int    `json:"yesterday_minutes"`
	DayDiffMinutes   int    `json:"day_diff_minutes"`

	WeekMinutes     int    `json:"week_minutes"`
	WeekFormatted   string `json:"week_formatted"`
	LastWeekMinutes int    `json:"last_week_minutes"`
	WeekDiffMinutes int    `json:"week_diff_minutes"`

	MonthMinutes   int    `json:"month_minutes"`
	MonthFormatted string `json:"month_formatted"`

	ActiveProjects      int `json:"active_projects"`
	ActiveOrganizations int `json:"active_organizations"`
}

// BuildOverview computes the stat block from a user's entries relative to
// now. Active projects are distinct unfinished projects appearing in the
// entries; active organizations are the organizations holding at least one of
// them.
func BuildOverview(entries []models.TimeEntryDetail, now time.Time) Overview {
	today := timeutil.StartOfDay(now)
	week := timeutil.StartOfWeek(now)

	todayRange := DateRange{From: today, To: today.AddDate(0, 0, 1)}
	yesterdayRange := DateRange{From: today.AddDate(0, 0, -1), To: today}
	weekRange := DateRange{From: week, To: week.AddDate(0, 0, 7)}
	lastWeekRange := DateRange{From: week.AddDate(0, 0, -7), To: week}
	monthRange := DateRange{From: timeutil.StartOfMonth(now), To: timeutil.StartOfMonth(now).AddDate(0, 1, 0)}

	o := Overview{
		TodayMinutes:     TotalMinutes(entries, todayRange),
		YesterdayMinutes: TotalMinutes(entries, yesterdayRange),
		WeekMinutes:      TotalMinutes(entries, weekRange),
		LastWeekMinutes:  TotalMinutes(entries, lastWeekRange),
		MonthMinutes:     TotalMinutes(entries, monthRange),
	}
	o.DayDiffMinutes = o.TodayMinutes - o.YesterdayMinutes
	o.WeekDiffMinutes = o.WeekMinutes - o.LastWeekMinutes
	o.TodayFormatted = timeutil.FormatMinutes(o.TodayMinutes)
	o.WeekFormatted = timeutil.FormatMinutes(o.WeekMinutes)
	o.MonthFormatted = timeutil.FormatMinutes(o.MonthMinutes)

	activeProjects := make(map[string]struct{})
	activeOrgs := make(map[string]struct{})
	for i := range entries {
		e := &entries[i]
		if e.ProjectFinished {
			continue
		}
		activeProjects[e.ProjectID] = struct{}{}
		activeOrgs[e.OrganizationID] = struct{}{}
	}
	o.ActiveProjects = len(activeProjects)
	o.ActiveOrganizations = len(activeOrgs)

	return o
}
