package organizations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ponto-labs/pontual/internal/api/auth"
	"github.com/ponto-labs/pontual/internal/api/middleware"
	"github.com/ponto-labs/pontual/internal/models"
	"github.com/ponto-labs/pontual/internal/permissions"
	"github.com/ponto-labs/pontual/internal/storage"
)

// Mock repositories

type mockOrganizationRepository struct {
	orgs    []*models.Organization
	members []*models.Member
	users   map[string]*models.User // for ListMembers joins

	createError error
	listError   error
}

func (m *mockOrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	if m.createError != nil {
		return m.createError
	}
	m.orgs = append(m.orgs, org)
	m.members = append(m.members, &models.Member{
		OrganizationID: org.ID,
		UserID:         org.CreatedBy,
		Role:           models.RoleAdmin,
		CreatedAt:      time.Now(),
	})
	return nil
}

func (m *mockOrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	for _, o := range m.orgs {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, nil
}

func (m *mockOrganizationRepository) Update(ctx context.Context, org *models.Organization) error {
	for i, o := range m.orgs {
		if o.ID == org.ID {
			m.orgs[i] = org
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *mockOrganizationRepository) Delete(ctx context.Context, id string) error {
	for i, o := range m.orgs {
		if o.ID == id {
			m.orgs = append(m.orgs[:i], m.orgs[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *mockOrganizationRepository) ListForUser(ctx context.Context, userID string) ([]*models.Organization, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	var out []*models.Organization
	for _, mem := range m.members {
		if mem.UserID != userID {
			continue
		}
		for _, o := range m.orgs {
			if o.ID == mem.OrganizationID {
				out = append(out, o)
			}
		}
	}
	return out, nil
}

func (m *mockOrganizationRepository) List(ctx context.Context) ([]*models.Organization, error) {
	return m.orgs, nil
}

func (m *mockOrganizationRepository) AddMember(ctx context.Context, member *models.Member) error {
	for _, mem := range m.members {
		if mem.OrganizationID == member.OrganizationID && mem.UserID == member.UserID {
			return storage.ErrDuplicateMember
		}
	}
	m.members = append(m.members, member)
	return nil
}

func (m *mockOrganizationRepository) RemoveMember(ctx context.Context, organizationID, userID string) error {
	for i, mem := range m.members {
		if mem.OrganizationID == organizationID && mem.UserID == userID {
			m.members = append(m.members[:i], m.members[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *mockOrganizationRepository) UpdateMemberRole(ctx context.Context, organizationID, userID string, role models.Role) error {
	for _, mem := range m.members {
		if mem.OrganizationID == organizationID && mem.UserID == userID {
			mem.Role = role
			return nil
		}
	}
	return storage.ErrNotFound
}

func (m *mockOrganizationRepository) GetMember(ctx context.Context, organizationID, userID string) (*models.Member, error) {
	for _, mem := range m.members {
		if mem.OrganizationID == organizationID && mem.UserID == userID {
			return mem, nil
		}
	}
	return nil, nil
}

func (m *mockOrganizationRepository) ListMembers(ctx context.Context, organizationID string) ([]*models.MemberDetail, error) {
	var out []*models.MemberDetail
	for _, mem := range m.members {
		if mem.OrganizationID != organizationID {
			continue
		}
		detail := &models.MemberDetail{Member: *mem}
		if u, ok := m.users[mem.UserID]; ok {
			detail.Email = u.Email
			detail.FullName = u.FullName
		}
		out = append(out, detail)
	}
	return out, nil
}

func (m *mockOrganizationRepository) CountAdmins(ctx context.Context, organizationID string) (int64, error) {
	var n int64
	for _, mem := range m.members {
		if mem.OrganizationID == organizationID && mem.Role == models.RoleAdmin {
			n++
		}
	}
	return n, nil
}

type mockUserRepository struct {
	users []*models.User
}

func (m *mockUserRepository) Create(ctx context.Context, user *models.User) error { return nil }

func (m *mockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepository) Update(ctx context.Context, user *models.User) error { return nil }
func (m *mockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return nil
}
func (m *mockUserRepository) Delete(ctx context.Context, id string) error { return nil }
func (m *mockUserRepository) List(ctx context.Context) ([]*models.User, error) {
	return m.users, nil
}
func (m *mockUserRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(m.users)), nil
}

type mockStorage struct {
	orgRepo  *mockOrganizationRepository
	userRepo *mockUserRepository
}

func (m *mockStorage) Open() error    { return nil }
func (m *mockStorage) Close() error   { return nil }
func (m *mockStorage) Migrate() error { return nil }

func (m *mockStorage) Users() storage.UserRepository                 { return m.userRepo }
func (m *mockStorage) Organizations() storage.OrganizationRepository { return m.orgRepo }
func (m *mockStorage) Projects() storage.ProjectRepository           { return nil }
func (m *mockStorage) Entries() storage.EntryRepository              { return nil }
func (m *mockStorage) Tokens() storage.TokenRepository               { return nil }

func newMockStorage() (*mockStorage, *mockOrganizationRepository, *mockUserRepository) {
	orgRepo := &mockOrganizationRepository{users: make(map[string]*models.User)}
	userRepo := &mockUserRepository{}
	return &mockStorage{orgRepo: orgRepo, userRepo: userRepo}, orgRepo, userRepo
}

// asUser injects authenticated claims the way the JWT middleware does.
func asUser(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := &auth.Claims{UserID: userID, Email: userID + "@example.com"}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
		})
	}
}

// newTestRouter mounts the handler under the same route layout the server
// uses, with the membership middleware in place.
func newTestRouter(store storage.Storage, userID string) chi.Router {
	handler := NewHandler(store)
	r := chi.NewRouter()
	r.Use(asUser(userID))
	r.Route("/organizations", func(r chi.Router) {
		r.Get("/", handler.List)
		r.Post("/", handler.Create)
		r.Route("/{orgID}", func(r chi.Router) {
			r.Use(middleware.OrganizationMember(store))
			r.Get("/", handler.Get)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireCapability(permissions.CapEditOrganization))
				r.Put("/", handler.Update)
				r.Delete("/", handler.Delete)
			})
			r.Route("/members", func(r chi.Router) {
				r.Get("/", handler.ListMembers)
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireCapability(permissions.CapManageMembers))
					r.Post("/", handler.AddMember)
					r.Put("/{userID}", handler.UpdateMemberRole)
					r.Delete("/{userID}", handler.RemoveMember)
				})
			})
		})
	})
	return r
}

func seedOrg(orgRepo *mockOrganizationRepository, orgID, adminID string) {
	now := time.Now()
	orgRepo.orgs = append(orgRepo.orgs, &models.Organization{
		ID:        orgID,
		Name:      "Acme",
		CreatedBy: adminID,
		CreatedAt: now,
		UpdatedAt: now,
	})
	orgRepo.members = append(orgRepo.members, &models.Member{
		OrganizationID: orgID,
		UserID:         adminID,
		Role:           models.RoleAdmin,
		CreatedAt:      now,
	})
}

func TestCreate_CallerBecomesAdmin(t *testing.T) {
	store, orgRepo, _ := newMockStorage()
	router := newTestRouter(store, "user-1")

	body := strings.NewReader(`{"name":"Acme Consulting"}`)
	req := httptest.NewRequest(http.MethodPost, "/organizations/", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}

	var resp struct {
		Data *OrganizationResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Name != "Acme Consulting" {
		t.Errorf("name = %q, want Acme Consulting", resp.Data.Name)
	}
	if resp.Data.Role != "admin" {
		t.Errorf("role = %q, want admin", resp.Data.Role)
	}

	member, _ := orgRepo.GetMember(context.Background(), resp.Data.ID, "user-1")
	if member == nil || member.Role != models.RoleAdmin {
		t.Error("creator should have an admin membership")
	}
}

func TestCreate_ValidatesName(t *testing.T) {
	store, _, _ := newMockStorage()
	router := newTestRouter(store, "user-1")

	req := httptest.NewRequest(http.MethodPost, "/organizations/", strings.NewReader(`{"name":"   "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestList_OnlyCallerOrganizations(t *testing.T) {
	store, orgRepo, _ := newMockStorage()
	seedOrg(orgRepo, "org-1", "user-1")
	seedOrg(orgRepo, "org-2", "someone-else")

	router := newTestRouter(store, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/organizations/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data []*OrganizationResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 1 {
		t.Fatalf("organizations count = %d, want 1", len(resp.Data))
	}
	if resp.Data[0].ID != "org-1" {
		t.Errorf("organization = %q, want org-1", resp.Data[0].ID)
	}
}

func TestGet_IncludesCallerRole(t *testing.T) {
	store, orgRepo, _ := newMockStorage()
	seedOrg(orgRepo, "org-1", "user-1")

	router := newTestRouter(store, "user-1")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data *OrganizationResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Role != "admin" {
		t.Errorf("role = %q, want admin", resp.Data.Role)
	}
	caps := strings.Join(resp.Data.Capabilities, ",")
	if !strings.Contains(caps, "manage_members") || !strings.Contains(caps, "track_own_time") {
		t.Errorf("admin capabilities = %v, want the full set", resp.Data.Capabilities)
	}
}

// A plain member sees only their own capability set, so clients can gate UI
// actions without a second round trip.
func TestGet_CapabilitiesMatchRole(t *testing.T) {
	store, orgRepo, _ := newMockStorage()
	seedOrg(orgRepo, "org-1", "admin-1")
	orgRepo.members = append(orgRepo.members, &models.Member{
		OrganizationID: "org-1", UserID: "user-2", Role: models.RoleUser,
	})

	router := newTestRouter(store, "user-2")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data *OrganizationResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Data.Role != "user" {
		t.Errorf("role = %q, want user", resp.Data.Role)
	}
	if len(resp.Data.Capabilities) != 1 || resp.Data.Capabilities[0] != "track_own_time" {
		t.Errorf("capabilities = %v, want [track_own_time]", resp.Data.Capabilities)
	}
}

func TestGet_NonMemberForbidden(t *testing.T) {
	store, orgRepo, _ := newMockStorage()
	seedOrg(orgRepo, "org-1", "user-1")

	router := newTestRouter(store, "outsider")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestUpdate_RequiresAdmin(t *testing.T) {
	store, orgRepo, _ := newMockStorage()
	seedOrg(orgRepo, "org-1", "admin-1")
	orgRepo.members = append(orgRepo.members, &models.Member{
		OrganizationID: "org-1", UserID: "manager-1", Role: models.RoleManager,
	})

	router := newTestRouter(store, "manager-1")
	req := httptest.NewRequest(http.MethodPut, "/organizations/org-1/", strings.NewReader(`{"name":"Renamed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestAddMember_ByEmail(t *testing.T) {
	store, orgRepo, userRepo := newMockStorage()
	seedOrg(orgRepo, "org-1", "admin-1")
	userRepo.users = append(userRepo.users, &models.User{
		ID: "user-2", Email: "joao@example.com", FullName: "João Silva",
	})

	router := newTestRouter(store, "admin-1")
	body := strings.NewReader(`{"email":"Joao@Example.com","role":"manager"}`)
	req := httptest.NewRequest(http.MethodPost, "/organizations/org-1/members/", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	member, _ := orgRepo.GetMember(context.Background(), "org-1", "user-2")
	if member == nil {
		t.Fatal("member should exist after add")
	}
	if member.Role != models.RoleManager {
		t.Errorf("role = %q, want manager", member.Role)
	}
}

func TestAddMember_UnknownEmail(t *testing.T) {
	store, orgRepo, _ := newMockStorage()
	seedOrg(orgRepo, "org-1", "admin-1")

	router := newTestRouter(store, "admin-1")
	body := strings.NewReader(`{"email":"nobody@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/organizations/org-1/members/", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestAddMember_Duplicate(t *testing.T) {
	store, orgRepo, userRepo := newMockStorage()
	seedOrg(orgRepo, "org-1", "admin-1")
	userRepo.users = append(userRepo.users, &models.User{ID: "admin-1", Email: "admin@example.com"})

	router := newTestRouter(store, "admin-1")
	body := strings.NewReader(`{"email":"admin@example.com"}`)
	req := httptest.NewRequest(http.MethodPost, "/organizations/org-1/members/", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestAddMember_InvalidRole(t *testing.T) {
	store, orgRepo, userRepo := newMockStorage()
	seedOrg(orgRepo, "org-1", "admin-1")
	userRepo.users = append(userRepo.users, &models.User{ID: "user-2", Email: "joao@example.com"})

	router := newTestRouter(store, "admin-1")
	body := strings.NewReader(`{"email":"joao@example.com","role":"owner"}`)
	req := httptest.NewRequest(http.MethodPost, "/organizations/org-1/members/", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateMemberRole_DemoteLastAdminRejected(t *testing.T) {
	store, orgRepo, _ := newMockStorage()
	seedOrg(orgRepo, "org-1", "admin-1")

	router := newTestRouter(store, "admin-1")
	body := strings.NewReader(`{"role":"user"}`)
	req := httptest.NewRequest(http.MethodPut, "/organizations/org-1/members/admin-1", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}

	member, _ := orgRepo.GetMember(context.Background(), "org-1", "admin-1")
	if member.Role != models.RoleAdmin {
		t.Error("last admin role should be unchanged")
	}
}

func TestUpdateMemberRole_DemoteWithSecondAdmin(t *testing.T) {
	store, orgRepo, _ := newMockStorage()
	seedOrg(orgRepo, "org-1", "admin-1")
	orgRepo.members = append(orgRepo.members, &models.Member{
		OrganizationID: "org-1", UserID: "admin-2", Role: models.RoleAdmin,
	})

	router := newTestRouter(store, "admin-1")
	body := strings.NewReader(`{"role":"manager"}`)
	req := httptest.NewRequest(http.MethodPut, "/organizations/org-1/members/admin-2", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}

	member, _ := orgRepo.GetMember(context.Background(), "org-1", "admin-2")
	if member.Role != models.RoleManager {
		t.Errorf("role = %q, want manager", member.Role)
	}
}

func TestRemoveMember_LastAdminRejected(t *testing.T) {
	store, orgRepo, _ := newMockStorage()
	seedOrg(orgRepo, "org-1", "admin-1")

	router := newTestRouter(store, "admin-1")
	req := httptest.NewRequest(http.MethodDelete, "/organizations/org-1/members/admin-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRemoveMember_RegularMember(t *testing.T) {
	store, orgRepo, _ := newMockStorage()
	seedOrg(orgRepo, "org-1", "admin-1")
	orgRepo.members = append(orgRepo.members, &models.Member{
		OrganizationID: "org-1", UserID: "user-2", Role: models.RoleUser,
	})

	router := newTestRouter(store, "admin-1")
	req := httptest.NewRequest(http.MethodDelete, "/organizations/org-1/members/user-2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	member, _ := orgRepo.GetMember(context.Background(), "org-1", "user-2")
	if member != nil {
		t.Error("member should be gone after removal")
	}
}

func TestListMembers_AnyMemberAllowed(t *testing.T) {
	store, orgRepo, _ := newMockStorage()
	seedOrg(orgRepo, "org-1", "admin-1")
	orgRepo.members = append(orgRepo.members, &models.Member{
		OrganizationID: "org-1", UserID: "user-2", Role: models.RoleUser,
	})
	orgRepo.users["admin-1"] = &models.User{ID: "admin-1", Email: "admin@example.com"}
	orgRepo.users["user-2"] = &models.User{ID: "user-2", Email: "joao@example.com", FullName: "João Silva"}

	router := newTestRouter(store, "user-2")
	req := httptest.NewRequest(http.MethodGet, "/organizations/org-1/members/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Data []*MemberResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("members count = %d, want 2", len(resp.Data))
	}
}
