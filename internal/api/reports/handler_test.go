package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ponto-labs/pontual/internal/api/auth"
	"github.com/ponto-labs/pontual/internal/api/middleware"
	"github.com/ponto-labs/pontual/internal/models"
	"github.com/ponto-labs/pontual/internal/permissions"
	agg "github.com/ponto-labs/pontual/internal/reports"
	"github.com/ponto-labs/pontual/internal/storage"
)

// Mock repositories

type mockEntryRepository struct {
	entries []models.TimeEntryDetail

	listError error
}

func (m *mockEntryRepository) Create(ctx context.Context, entry *models.TimeEntry) error { return nil }

func (m *mockEntryRepository) GetByID(ctx context.Context, id string) (*models.TimeEntry, error) {
	return nil, nil //nolint:nilnil
}

func (m *mockEntryRepository) Update(ctx context.Context, entry *models.TimeEntry) error { return nil }
func (m *mockEntryRepository) Delete(ctx context.Context, id string) error               { return nil }

func (m *mockEntryRepository) GetActive(ctx context.Context, userID string) (*models.TimeEntry, error) {
	return nil, nil //nolint:nilnil
}

func (m *mockEntryRepository) List(ctx context.Context, filter models.EntryFilter) ([]models.TimeEntryDetail, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	var out []models.TimeEntryDetail
	for _, e := range m.entries {
		if filter.UserID != "" && e.UserID != filter.UserID {
			continue
		}
		if filter.ProjectID != "" && e.ProjectID != filter.ProjectID {
			continue
		}
		if filter.OrganizationID != "" && e.OrganizationID != filter.OrganizationID {
			continue
		}
		if !filter.From.IsZero() && e.StartedAt.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && !e.StartedAt.Before(filter.To) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type mockOrganizationRepository struct {
	storage.OrganizationRepository
	members map[string]models.Role // key: orgID + "/" + userID
}

func (m *mockOrganizationRepository) GetMember(ctx context.Context, organizationID, userID string) (*models.Member, error) {
	role, ok := m.members[organizationID+"/"+userID]
	if !ok {
		return nil, nil //nolint:nilnil
	}
	return &models.Member{OrganizationID: organizationID, UserID: userID, Role: role}, nil
}

type mockStorage struct {
	entryRepo *mockEntryRepository
	orgRepo   *mockOrganizationRepository
}

func (m *mockStorage) Open() error    { return nil }
func (m *mockStorage) Close() error   { return nil }
func (m *mockStorage) Migrate() error { return nil }

func (m *mockStorage) Users() storage.UserRepository                 { return nil }
func (m *mockStorage) Organizations() storage.OrganizationRepository { return m.orgRepo }
func (m *mockStorage) Projects() storage.ProjectRepository           { return nil }
func (m *mockStorage) Entries() storage.EntryRepository              { return m.entryRepo }
func (m *mockStorage) Tokens() storage.TokenRepository               { return nil }

func newMockStorage() *mockStorage {
	return &mockStorage{
		entryRepo: &mockEntryRepository{},
		orgRepo:   &mockOrganizationRepository{members: make(map[string]models.Role)},
	}
}

func asUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := &auth.Claims{UserID: userID, Email: userID + "@example.com"}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
		})
	}
}

// testNow anchors the range presets: a Tuesday.
var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func newTestRouter(store *mockStorage, userID string) chi.Router {
	handler := NewHandler(store)
	handler.now = func() time.Time { return testNow }

	r := chi.NewRouter()
	r.Use(asUser(userID))
	r.Get("/reports/overview", handler.Overview)
	r.Route("/organizations/{orgID}/reports", func(r chi.Router) {
		r.Use(middleware.OrganizationMember(store))
		r.Get("/days", handler.Days)
		r.Get("/projects", handler.Projects)
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireCapability(permissions.CapViewAllEntries))
			r.Get("/users", handler.Users)
		})
	})
	return r
}

func closedEntry(id, userID, projectID, projectName string, finished bool, start time.Time, minutes int) models.TimeEntryDetail {
	end := start.Add(time.Duration(minutes) * time.Minute)
	return models.TimeEntryDetail{
		TimeEntry: models.TimeEntry{
			ID:        id,
			UserID:    userID,
			ProjectID: projectID,
			StartedAt: start,
			EndedAt:   &end,
		},
		ProjectName:     projectName,
		ProjectFinished: finished,
		OrganizationID:  "org-1",
	}
}

func TestDays_GroupsAndTotals(t *testing.T) {
	store := newMockStorage()
	store.orgRepo.members["org-1/user-1"] = models.RoleUser
	store.entryRepo.entries = []models.TimeEntryDetail{
		closedEntry("e1", "user-1", "proj-1", "Site", false, testNow.AddDate(0, 0, -1), 60),
		closedEntry("e2", "user-1", "proj-1", "Site", false, testNow.AddDate(0, 0, -1).Add(2*time.Hour), 30),
		closedEntry("e3", "user-1", "proj-1", "Site", false, testNow.AddDate(0, 0, -3), 45),
	}

	router := newTestRouter(store, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/reports/days?range=last7days", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data *DaysResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data.Days) != 2 {
		t.Fatalf("days count = %d, want 2", len(resp.Data.Days))
	}
	if resp.Data.TotalMinutes != 135 {
		t.Errorf("total = %d minutes, want 135", resp.Data.TotalMinutes)
	}
	// Newest day first.
	if !resp.Data.Days[0].Date.After(resp.Data.Days[1].Date) {
		t.Error("days should be sorted newest first")
	}
}

func TestDays_ScopedToOwnEntries(t *testing.T) {
	store := newMockStorage()
	store.orgRepo.members["org-1/user-1"] = models.RoleUser
	store.entryRepo.entries = []models.TimeEntryDetail{
		closedEntry("e1", "user-1", "proj-1", "Site", false, testNow.Add(-2*time.Hour), 60),
		closedEntry("e2", "colleague", "proj-1", "Site", false, testNow.Add(-3*time.Hour), 60),
	}

	router := newTestRouter(store, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/reports/days", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data *DaysResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.TotalMinutes != 60 {
		t.Errorf("total = %d minutes, want only the caller's 60", resp.Data.TotalMinutes)
	}
}

func TestDays_AllRequiresCapability(t *testing.T) {
	store := newMockStorage()
	store.orgRepo.members["org-1/user-1"] = models.RoleUser

	router := newTestRouter(store, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/reports/days?all=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestDays_InvalidPreset(t *testing.T) {
	store := newMockStorage()
	store.orgRepo.members["org-1/user-1"] = models.RoleUser

	router := newTestRouter(store, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/reports/days?range=lastCentury", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDays_CustomRangeNeedsDates(t *testing.T) {
	store := newMockStorage()
	store.orgRepo.members["org-1/user-1"] = models.RoleUser

	router := newTestRouter(store, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/reports/days?range=custom&start=2026-03-01", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestDays_CustomRangeInclusive(t *testing.T) {
	store := newMockStorage()
	store.orgRepo.members["org-1/user-1"] = models.RoleUser
	store.entryRepo.entries = []models.TimeEntryDetail{
		// Late on the end day still counts.
		closedEntry("e1", "user-1", "proj-1", "Site", false, time.Date(2026, 3, 5, 23, 0, 0, 0, time.UTC), 30),
		closedEntry("e2", "user-1", "proj-1", "Site", false, time.Date(2026, 3, 6, 8, 0, 0, 0, time.UTC), 30),
	}

	router := newTestRouter(store, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/reports/days?range=custom&start=2026-03-01&end=2026-03-05", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data *DaysResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.TotalMinutes != 30 {
		t.Errorf("total = %d minutes, want 30 (end day inclusive, next day out)", resp.Data.TotalMinutes)
	}
}

func TestProjects_ExcludesFinishedByDefault(t *testing.T) {
	store := newMockStorage()
	store.orgRepo.members["org-1/user-1"] = models.RoleUser
	store.entryRepo.entries = []models.TimeEntryDetail{
		closedEntry("e1", "user-1", "proj-1", "Site", false, testNow.Add(-2*time.Hour), 60),
		closedEntry("e2", "user-1", "proj-2", "Legado", true, testNow.Add(-3*time.Hour), 240),
	}

	router := newTestRouter(store, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/reports/projects", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data []agg.ProjectSummary `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("projects count = %d, want 1", len(resp.Data))
	}
	if resp.Data[0].ProjectID != "proj-1" {
		t.Errorf("project = %q, want proj-1", resp.Data[0].ProjectID)
	}
}

func TestProjects_IncludeFinished(t *testing.T) {
	store := newMockStorage()
	store.orgRepo.members["org-1/user-1"] = models.RoleUser
	store.entryRepo.entries = []models.TimeEntryDetail{
		closedEntry("e1", "user-1", "proj-1", "Site", false, testNow.Add(-2*time.Hour), 60),
		closedEntry("e2", "user-1", "proj-2", "Legado", true, testNow.Add(-3*time.Hour), 240),
	}

	router := newTestRouter(store, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/reports/projects?include_finished=true", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data []agg.ProjectSummary `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("projects count = %d, want 2", len(resp.Data))
	}
	// Sorted by total minutes, the finished one leads.
	if resp.Data[0].ProjectID != "proj-2" {
		t.Errorf("first project = %q, want proj-2", resp.Data[0].ProjectID)
	}
}

func TestUsers_RequiresViewAllCapability(t *testing.T) {
	store := newMockStorage()
	store.orgRepo.members["org-1/user-1"] = models.RoleUser

	router := newTestRouter(store, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/reports/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestUsers_ManagerGetsPerMemberTotals(t *testing.T) {
	store := newMockStorage()
	store.orgRepo.members["org-1/manager-1"] = models.RoleManager
	store.entryRepo.entries = []models.TimeEntryDetail{
		closedEntry("e1", "user-1", "proj-1", "Site", false, testNow.Add(-2*time.Hour), 60),
		closedEntry("e2", "user-2", "proj-1", "Site", false, testNow.Add(-3*time.Hour), 90),
		closedEntry("e3", "user-2", "proj-1", "Site", false, testNow.Add(-4*time.Hour), 30),
	}

	router := newTestRouter(store, "manager-1")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/reports/users", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data []agg.UserSummary `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Fatalf("users count = %d, want 2", len(resp.Data))
	}
	if resp.Data[0].UserID != "user-2" || resp.Data[0].TotalMinutes != 120 {
		t.Errorf("first user = %s with %d minutes, want user-2 with 120", resp.Data[0].UserID, resp.Data[0].TotalMinutes)
	}
}

func TestOverview(t *testing.T) {
	store := newMockStorage()
	store.entryRepo.entries = []models.TimeEntryDetail{
		closedEntry("e1", "user-1", "proj-1", "Site", false, testNow.Add(-2*time.Hour), 60),
		closedEntry("e2", "user-1", "proj-2", "App", false, testNow.AddDate(0, 0, -1), 90),
		closedEntry("e3", "colleague", "proj-1", "Site", false, testNow.Add(-5*time.Hour), 500),
	}

	router := newTestRouter(store, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/reports/overview", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data *agg.Overview `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.TodayMinutes != 60 {
		t.Errorf("today = %d minutes, want 60 (colleague entries excluded)", resp.Data.TodayMinutes)
	}
	if resp.Data.ActiveProjects != 2 {
		t.Errorf("active projects = %d, want 2", resp.Data.ActiveProjects)
	}
}
