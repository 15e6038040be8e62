package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/complytics/internal/auth/domain"
	"github.com/smallbiznis/complytics/internal/auth/password"
	authrepository "github.com/smallbiznis/complytics/internal/auth/repository"
	authservice "github.com/smallbiznis/complytics/internal/auth/service"
	"github.com/smallbiznis/complytics/internal/auth/token"
	"github.com/smallbiznis/complytics/internal/authorization"
	"github.com/smallbiznis/complytics/internal/clock"
	"github.com/smallbiznis/complytics/internal/notification"
	"github.com/smallbiznis/complytics/internal/observability"
	orgdomain "github.com/smallbiznis/complytics/internal/organization/domain"
	orgrepository "github.com/smallbiznis/complytics/internal/organization/repository"
	orgservice "github.com/smallbiznis/complytics/internal/organization/service"
	registrationdomain "github.com/smallbiznis/complytics/internal/registration/domain"
	registrationrepository "github.com/smallbiznis/complytics/internal/registration/repository"
	registrationservice "github.com/smallbiznis/complytics/internal/registration/service"
	teamrepository "github.com/smallbiznis/complytics/internal/team/repository"
	teamservice "github.com/smallbiznis/complytics/internal/team/service"
	"github.com/smallbiznis/complytics/pkg/db"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	rootEmail    = "root@complytics.io"
	rootPassword = "root-password"
)

type testServer struct {
	engine   *gin.Engine
	notifier *notification.Recorder
	users    authdomain.Repository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := conn.AutoMigrate(&orgdomain.Organization{}, &authdomain.User{}, &registrationdomain.PendingRegistration{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	enforcer, err := authorization.NewEnforcer(conn)
	if err != nil {
		t.Fatalf("failed to build enforcer: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	log := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	tokens, err := token.NewWithKey(token.NewRotatingKey([]byte("test-secret")), "HS256", 30*time.Minute, clk)
	if err != nil {
		t.Fatalf("failed to build token service: %v", err)
	}
	hasher := password.NewHasher(bcrypt.MinCost)
	notifier := &notification.Recorder{}
	guard := authorization.NewService(authorization.Params{Log: log, Enforcer: enforcer})
	users := authrepository.New(conn)
	registrations := registrationrepository.NewRepository(conn)
	pending := registrationrepository.NewPendingEmails(registrations)

	orgs := orgservice.NewService(orgservice.Params{
		Log:   log,
		Repo:  orgrepository.NewRepository(conn),
		Guard: guard,
		GenID: node,
		Clock: clk,
	})
	authsvc := authservice.New(authservice.Params{
		Log:      log,
		Repo:     users,
		Pending:  pending,
		Hasher:   hasher,
		Tokens:   tokens,
		Orgs:     orgs,
		Guard:    guard,
		Notifier: notifier,
		GenID:    node,
		Clock:    clk,
	})
	registrationsvc := registrationservice.NewService(registrationservice.Params{
		Log:      log,
		Repo:     registrations,
		Users:    users,
		Orgs:     orgs,
		Hasher:   hasher,
		Guard:    guard,
		Notifier: notifier,
		GenID:    node,
		Clock:    clk,
	})
	teamsvc := teamservice.NewService(teamservice.Params{
		DB:       conn,
		Log:      log,
		Repo:     teamrepository.NewRepository(conn),
		Users:    users,
		Pending:  pending,
		Orgs:     orgs,
		Hasher:   hasher,
		Guard:    guard,
		Notifier: notifier,
		GenID:    node,
		Clock:    clk,
	})

	hash, err := hasher.Hash(context.Background(), rootPassword)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := users.Create(context.Background(), &authdomain.User{
		ID:           node.Generate(),
		Email:        rootEmail,
		FirstName:    "Root",
		LastName:     "Admin",
		PasswordHash: hash,
		Role:         authdomain.RoleSuperadmin,
		IsActive:     true,
	}); err != nil {
		t.Fatalf("seed superadmin: %v", err)
	}

	engine := NewEngine(observability.Config{Environment: "test"}, nil)
	NewServer(ServerParams{
		Gin:             engine,
		Authsvc:         authsvc,
		Guard:           guard,
		OrganizationSvc: orgs,
		RegistrationSvc: registrationsvc,
		TeamSvc:         teamsvc,
	})

	return &testServer{engine: engine, notifier: notifier, users: users}
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, email, pass string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: email, Password: pass})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d: %s", email, rec.Code, rec.Body.String())
	}
	var resp loginResponse
	decode(t, rec, &resp)
	if resp.TokenType != "bearer" || resp.AccessToken == "" {
		t.Fatalf("unexpected login response %+v", resp)
	}
	return resp.AccessToken
}

// approveOrg registers and approves an organization, then logs its admin in.
func (ts *testServer) approveOrg(t *testing.T, rootToken, email, orgName, domain string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/registration/register", "", RegisterRequest{
		Email:              email,
		FirstName:          "Org",
		LastName:           "Admin",
		Password:           "candidate-pass",
		OrganizationName:   orgName,
		OrganizationDomain: domain,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var submitted struct {
		RegistrationID string `json:"registration_id"`
	}
	decode(t, rec, &submitted)

	rec = ts.do(t, http.MethodPost, "/registration/approve-registration/"+submitted.RegistrationID, rootToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	msg, ok := ts.notifier.Last(notification.TemplateCredentials)
	if !ok || msg.To != email {
		t.Fatalf("expected credentials notification for %s, got %+v", email, msg)
	}
	return ts.login(t, email, msg.Data["password"])
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	decode(t, rec, &resp)
	return resp.Error
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if got := decodeError(t, rec); got.Type != "not_found" {
		t.Fatalf("expected not_found, got %+v", got)
	}
}

func TestLoginAndMe(t *testing.T) {
	ts := newTestServer(t)
	rootToken := ts.login(t, rootEmail, rootPassword)

	rec := ts.do(t, http.MethodGet, "/auth/me", rootToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var me userView
	decode(t, rec, &me)
	if me.Email != rootEmail || me.Role != "superadmin" || me.OrganizationID != nil {
		t.Fatalf("unexpected me %+v", me)
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	ts := newTestServer(t)

	wrong := ts.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: rootEmail, Password: "wrong-password"})
	unknown := ts.do(t, http.MethodPost, "/auth/login", "", LoginRequest{Email: "ghost@complytics.io", Password: "wrong-password"})

	for name, rec := range map[string]*httptest.ResponseRecorder{"wrong password": wrong, "unknown email": unknown} {
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, rec.Code)
		}
		if rec.Header().Get("WWW-Authenticate") != "Bearer" {
			t.Fatalf("%s: expected WWW-Authenticate header", name)
		}
		if got := decodeError(t, rec); got.Message != messageBadCredentials {
			t.Fatalf("%s: unexpected message %q", name, got.Message)
		}
	}
	if wrong.Body.String() != unknown.Body.String() {
		t.Fatalf("expected identical bodies, got %q and %q", wrong.Body.String(), unknown.Body.String())
	}
}

func TestBearerRequired(t *testing.T) {
	ts := newTestServer(t)

	for _, header := range []string{"", "garbage"} {
		rec := ts.do(t, http.MethodGet, "/auth/me", header, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("bearer %q: expected 401, got %d", header, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Basic abc")
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("basic scheme: expected 401, got %d", rec.Code)
	}
}

func TestForgotPasswordIsGeneric(t *testing.T) {
	ts := newTestServer(t)

	known := ts.do(t, http.MethodPost, "/auth/forgot-password", "", ForgotPasswordRequest{Email: rootEmail})
	unknown := ts.do(t, http.MethodPost, "/auth/forgot-password", "", ForgotPasswordRequest{Email: "ghost@complytics.io"})
	if known.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("expected 200 for both, got %d and %d", known.Code, unknown.Code)
	}
	if known.Body.String() != unknown.Body.String() {
		t.Fatalf("expected identical bodies")
	}
	if _, ok := ts.notifier.Last(notification.TemplateForgotPassword); !ok {
		t.Fatalf("expected forgot_password notification for the known account")
	}
}

func TestRegistrationAndTeamOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	rootToken := ts.login(t, rootEmail, rootPassword)

	rec := ts.do(t, http.MethodPost, "/registration/register", "", RegisterRequest{
		Email:              "alice@co.com",
		FirstName:          "Alice",
		LastName:           "Smith",
		Password:           "alice-password",
		OrganizationName:   "Co",
		OrganizationDomain: "co.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	dup := ts.do(t, http.MethodPost, "/registration/register", "", RegisterRequest{
		Email:              "alice@co.com",
		FirstName:          "Alice",
		LastName:           "Smith",
		Password:           "alice-password",
		OrganizationName:   "Co",
		OrganizationDomain: "co.com",
	})
	if dup.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", dup.Code)
	}

	rec = ts.do(t, http.MethodGet, "/registration/pending-registrations", rootToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list pending: expected 200, got %d", rec.Code)
	}
	var pending struct {
		Data []pendingRegistrationView `json:"data"`
	}
	decode(t, rec, &pending)
	if len(pending.Data) != 1 || pending.Data[0].Email != "alice@co.com" {
		t.Fatalf("unexpected pending list %+v", pending.Data)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("password")) {
		t.Fatalf("pending list must not expose password material: %s", rec.Body.String())
	}

	rec = ts.do(t, http.MethodPost, "/registration/approve-registration/"+pending.Data[0].ID, rootToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	again := ts.do(t, http.MethodPost, "/registration/approve-registration/"+pending.Data[0].ID, rootToken, nil)
	if again.Code != http.StatusNotFound {
		t.Fatalf("second approve: expected 404, got %d", again.Code)
	}

	creds, ok := ts.notifier.Last(notification.TemplateCredentials)
	if !ok || len(creds.Data["password"]) != 12 {
		t.Fatalf("expected credentials with a 12 character password, got %+v", creds)
	}
	adminToken := ts.login(t, "alice@co.com", creds.Data["password"])

	rec = ts.do(t, http.MethodPost, "/admin/create-team-member", adminToken, createTeamMemberRequest{
		Email:     "bob@co.com",
		FirstName: "Bob",
		LastName:  "Jones",
		Role:      "it_team",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create member: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var bob userView
	decode(t, rec, &bob)

	rec = ts.do(t, http.MethodGet, "/admin/team-members", adminToken, nil)
	var roster struct {
		Data []userView `json:"data"`
	}
	decode(t, rec, &roster)
	if len(roster.Data) != 1 || roster.Data[0].ID != bob.ID {
		t.Fatalf("expected bob in the roster, got %+v", roster.Data)
	}

	role := "compliance_team"
	rec = ts.do(t, http.MethodPatch, "/admin/team-members/"+bob.ID, adminToken, updateTeamMemberRequest{Role: &role})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := ts.notifier.Last(notification.TemplateRoleChange); !ok {
		t.Fatalf("expected role_change notification")
	}

	if rec := ts.do(t, http.MethodGet, "/superadmin/admins", adminToken, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("admin on superadmin route: expected 403, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/admin/create-team-member", rootToken, createTeamMemberRequest{
		Email: "eve@co.com", FirstName: "Eve", LastName: "X", Role: "it_team",
	}); rec.Code != http.StatusForbidden {
		t.Fatalf("superadmin creating member: expected 403, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodGet, "/superadmin/organizations/active", rootToken, nil)
	var orgs struct {
		Data []organizationView `json:"data"`
	}
	decode(t, rec, &orgs)
	if len(orgs.Data) != 1 || orgs.Data[0].Name != "Co" {
		t.Fatalf("unexpected active organizations %+v", orgs.Data)
	}
}

func TestCrossTenantDeleteIsNotFound(t *testing.T) {
	ts := newTestServer(t)
	rootToken := ts.login(t, rootEmail, rootPassword)
	adminA := ts.approveOrg(t, rootToken, "a@alpha.io", "Alpha", "alpha.io")
	adminB := ts.approveOrg(t, rootToken, "b@beta.io", "Beta", "beta.io")

	rec := ts.do(t, http.MethodPost, "/admin/create-team-member", adminA, createTeamMemberRequest{
		Email:     "bob@alpha.io",
		FirstName: "Bob",
		LastName:  "Jones",
		Role:      "it_team",
	})
	var bob userView
	decode(t, rec, &bob)

	if rec := ts.do(t, http.MethodDelete, "/admin/team-members/"+bob.ID, adminB, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("cross-tenant delete: expected 404, got %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodPost, "/admin/team-members/bulk-delete", adminB, bulkDeleteRequest{IDs: []string{bob.ID}}); rec.Code != http.StatusNotFound {
		t.Fatalf("cross-tenant bulk delete: expected 404, got %d", rec.Code)
	}

	rec = ts.do(t, http.MethodPost, "/admin/team-members/bulk-delete", adminA, bulkDeleteRequest{IDs: []string{bob.ID}})
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk delete: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Deleted int64 `json:"deleted"`
	}
	decode(t, rec, &result)
	if result.Deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", result.Deleted)
	}
}

func TestRequestValidation(t *testing.T) {
	ts := newTestServer(t)
	rootToken := ts.login(t, rootEmail, rootPassword)

	rec := ts.do(t, http.MethodPost, "/registration/approve-registration/not-a-number", rootToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := decodeError(t, rec); len(got.Errors) != 1 || got.Errors[0].Code != "invalid_id" {
		t.Fatalf("unexpected error payload %+v", got)
	}

	rec = ts.do(t, http.MethodPost, "/registration/register", "", RegisterRequest{
		Email:              "not-an-email",
		FirstName:          "A",
		LastName:           "B",
		Password:           "long-enough",
		OrganizationName:   "Co",
		OrganizationDomain: "co.com",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := decodeError(t, rec); len(got.Errors) != 1 || got.Errors[0].Field != "email" {
		t.Fatalf("unexpected error payload %+v", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString("{"))
	raw := httptest.NewRecorder()
	ts.engine.ServeHTTP(raw, req)
	if raw.Code != http.StatusBadRequest {
		t.Fatalf("malformed body: expected 400, got %d", raw.Code)
	}
}
