package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/KIaudius/issues-insights-tracker/internal/auth"
	"github.com/KIaudius/issues-insights-tracker/internal/bootstrap/config"
	"github.com/KIaudius/issues-insights-tracker/internal/domain/rbac"
	"github.com/KIaudius/issues-insights-tracker/internal/infrastructure/blob"
	"github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/model"
	sqliterepo "github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/repository"
	sqliteuow "github.com/KIaudius/issues-insights-tracker/internal/infrastructure/persistence/sqlite/uow"
	"github.com/KIaudius/issues-insights-tracker/internal/ports"
	"github.com/KIaudius/issues-insights-tracker/internal/realtime"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/authn"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/issues"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/stats"
	"github.com/KIaudius/issues-insights-tracker/internal/usecase/users"
)

type testEnv struct {
	handler http.Handler
	srv     *Server
	users   ports.UserRepository
	tokens  *auth.TokenManager
}

func setupServer(t *testing.T) *testEnv {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "server_test.db")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(
		&model.User{},
		&model.Issue{},
		&model.IssueTag{},
		&model.Comment{},
		&model.Attachment{},
		&model.IssueHistory{},
		&model.DailyStats{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	tokens, err := auth.NewTokenManager("server-test-secret", time.Minute, time.Hour)
	if err != nil {
		t.Fatalf("token manager: %v", err)
	}
	blobs, err := blob.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	userRepo := sqliterepo.NewUserRepository(db)
	hub := realtime.NewHub()
	issueSvc := issues.NewService(
		sqliterepo.NewIssueRepository(db),
		sqliterepo.NewHistoryRepository(db),
		sqliterepo.NewCommentRepository(db),
		sqliterepo.NewAttachmentRepository(db),
		userRepo,
		sqliteuow.NewUnitOfWork(db),
		blobs,
		hub,
	)

	cfg := config.Config{}
	cfg.HTTP.Addr = ":0"
	cfg.Storage.MaxUploadSize = 1 << 20

	srv := New(
		cfg,
		tokens,
		hub,
		authn.NewService(userRepo, tokens, config.OAuthConfig{}),
		issueSvc,
		users.NewService(userRepo),
		stats.NewService(sqliterepo.NewStatsRepository(db), sqliterepo.NewHistoryRepository(db), nil),
	)
	return &testEnv{handler: srv.routes(), srv: srv, users: userRepo, tokens: tokens}
}

func (e *testEnv) token(t *testing.T, email string, role rbac.Role) string {
	t.Helper()

	created, err := e.users.CreateUser(context.Background(), ports.User{
		Email:          email,
		Name:           email,
		HashedPassword: "x",
		Role:           role,
		IsActive:       true,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}

	token, err := e.tokens.IssueAccessToken(auth.Identity{
		UserID: created.UserID,
		Email:  created.Email,
		Role:   created.Role,
	})
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var payload *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		payload = bytes.NewBuffer(raw)
	} else {
		payload = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()

	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if !env.Success {
		t.Fatalf("success=false: %s", rec.Body.String())
	}
	if dst != nil {
		if err := json.Unmarshal(env.Data, dst); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
}

func TestRoutesRequireAuthentication(t *testing.T) {
	env := setupServer(t)

	for _, path := range []string{"/api/v1/issues/", "/api/v1/users/me", "/api/v1/stats/dashboard"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("GET %s without token = %d, want 403", path, rec.Code)
		}
	}

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health = %d", rec.Code)
	}
}

func TestIssueEndpointsEndToEnd(t *testing.T) {
	env := setupServer(t)
	reporter := env.token(t, "reporter@example.com", rbac.RoleReporter)
	maintainer := env.token(t, "maintainer@example.com", rbac.RoleMaintainer)

	rec := env.do(t, http.MethodPost, "/api/v1/issues/", reporter, map[string]any{
		"title":       "checkout broken",
		"description": "payment fails with 502",
		"severity":    "HIGH",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	var created issueResponse
	decodeData(t, rec, &created)
	if created.Status != "OPEN" || created.Severity != "HIGH" {
		t.Fatalf("created = %+v", created)
	}

	issuePath := fmt.Sprintf("/api/v1/issues/%d", created.IssueID)

	rec = env.do(t, http.MethodPost, issuePath+"/status", maintainer, map[string]any{
		"status":  "TRIAGED",
		"comment": "confirmed",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("transition = %d: %s", rec.Code, rec.Body.String())
	}

	// Reporters may not drive the workflow.
	rec = env.do(t, http.MethodPost, issuePath+"/status", reporter, map[string]any{"status": "IN_PROGRESS"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("reporter transition = %d, want 403", rec.Code)
	}

	// Illegal edge maps to 400.
	rec = env.do(t, http.MethodPost, issuePath+"/status", maintainer, map[string]any{"status": "DONE"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("illegal edge = %d, want 400", rec.Code)
	}

	// Status through the generic update path is rejected.
	rec = env.do(t, http.MethodPatch, issuePath, maintainer, map[string]any{"status": "DONE"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status via update = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodGet, issuePath+"/history", reporter, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("history = %d", rec.Code)
	}
	var history []historyResponse
	decodeData(t, rec, &history)
	if len(history) != 2 {
		t.Fatalf("history rows = %d, want 2", len(history))
	}
	if history[0].OldStatus != nil || history[1].NewStatus != "TRIAGED" {
		t.Fatalf("history = %+v", history)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/issues/?status=TRIAGED", maintainer, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list = %d", rec.Code)
	}
	var list issueListResponse
	decodeData(t, rec, &list)
	if list.Total != 1 {
		t.Fatalf("list total = %d", list.Total)
	}
}

func TestVisibilityAcrossReporters(t *testing.T) {
	env := setupServer(t)
	alice := env.token(t, "alice@example.com", rbac.RoleReporter)
	bob := env.token(t, "bob@example.com", rbac.RoleReporter)

	rec := env.do(t, http.MethodPost, "/api/v1/issues/", alice, map[string]any{
		"title":       "private to alice",
		"description": "details",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}
	var created issueResponse
	decodeData(t, rec, &created)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/issues/%d", created.IssueID), bob, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign read = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/issues/", bob, nil)
	var list issueListResponse
	decodeData(t, rec, &list)
	if list.Total != 0 {
		t.Fatalf("bob sees %d issues, want 0", list.Total)
	}
}

func TestLoginEndpoint(t *testing.T) {
	env := setupServer(t)

	hashed, err := auth.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if _, err := env.users.CreateUser(context.Background(), ports.User{
		Email:          "login@example.com",
		Name:           "login",
		HashedPassword: hashed,
		Role:           rbac.RoleReporter,
		IsActive:       true,
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "login@example.com",
		"password": "correct horse",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login = %d: %s", rec.Code, rec.Body.String())
	}
	var pair tokenResponse
	decodeData(t, rec, &pair)
	if pair.AccessToken == "" || pair.RefreshToken == "" || pair.User.Email != "login@example.com" {
		t.Fatalf("pair = %+v", pair)
	}

	// The issued access token works against a protected route.
	rec = env.do(t, http.MethodGet, "/api/v1/users/me", pair.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me = %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]any{
		"email":    "login@example.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("bad login = %d, want 403", rec.Code)
	}
}

func TestStatsEndpoints(t *testing.T) {
	env := setupServer(t)
	reporter := env.token(t, "reporter@example.com", rbac.RoleReporter)
	admin := env.token(t, "admin@example.com", rbac.RoleAdmin)

	rec := env.do(t, http.MethodPost, "/api/v1/issues/", reporter, map[string]any{
		"title":       "for stats",
		"description": "details",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d", rec.Code)
	}

	today := time.Now().UTC().Format("2006-01-02")
	rec = env.do(t, http.MethodPost, "/api/v1/stats/daily/"+today+"/recompute", reporter, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("reporter recompute = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/stats/daily/"+today+"/recompute", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin recompute = %d: %s", rec.Code, rec.Body.String())
	}
	var row dailyStatsResponse
	decodeData(t, rec, &row)
	if row.TotalIssues != 1 || row.NewIssues != 1 {
		t.Fatalf("stats row = %+v", row)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/stats/daily/"+today, reporter, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get daily = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/stats/dashboard", reporter, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard = %d", rec.Code)
	}
}

func TestCreateIssueWithMultipartFile(t *testing.T) {
	env := setupServer(t)
	reporter := env.token(t, "reporter@example.com", rbac.RoleReporter)

	postForm := func(t *testing.T, filename, content string) *httptest.ResponseRecorder {
		t.Helper()

		var body bytes.Buffer
		form := multipart.NewWriter(&body)
		_ = form.WriteField("title", "crash with log attached")
		_ = form.WriteField("description", "see the attached output")
		_ = form.WriteField("severity", "HIGH")
		if filename != "" {
			part, err := form.CreateFormFile("file", filename)
			if err != nil {
				t.Fatalf("create form file: %v", err)
			}
			if _, err := part.Write([]byte(content)); err != nil {
				t.Fatalf("write form file: %v", err)
			}
		}
		if err := form.Close(); err != nil {
			t.Fatalf("close form: %v", err)
		}

		req := httptest.NewRequest(http.MethodPost, "/api/v1/issues/", &body)
		req.Header.Set("Content-Type", form.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+reporter)
		rec := httptest.NewRecorder()
		env.handler.ServeHTTP(rec, req)
		return rec
	}

	listAttachments := func(t *testing.T, rec *httptest.ResponseRecorder) []attachmentResponse {
		t.Helper()

		var created issueResponse
		decodeData(t, rec, &created)
		listRec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/issues/%d/attachments", created.IssueID), reporter, nil)
		if listRec.Code != http.StatusOK {
			t.Fatalf("list attachments = %d", listRec.Code)
		}
		var attachments []attachmentResponse
		decodeData(t, listRec, &attachments)
		return attachments
	}

	rec := postForm(t, "panic.txt", "goroutine 1 [running]")
	if rec.Code != http.StatusCreated {
		t.Fatalf("multipart create = %d: %s", rec.Code, rec.Body.String())
	}
	attachments := listAttachments(t, rec)
	if len(attachments) != 1 || attachments[0].Filename != "panic.txt" {
		t.Fatalf("attachments after create = %+v", attachments)
	}

	// A rejected file must not take the issue down with it.
	rec = postForm(t, "payload.exe", "MZ")
	if rec.Code != http.StatusCreated {
		t.Fatalf("create with rejected file = %d: %s", rec.Code, rec.Body.String())
	}
	if attachments := listAttachments(t, rec); len(attachments) != 0 {
		t.Fatalf("rejected file still stored: %+v", attachments)
	}

	// Form without a file behaves like the JSON path.
	rec = postForm(t, "", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("multipart create without file = %d: %s", rec.Code, rec.Body.String())
	}
	if attachments := listAttachments(t, rec); len(attachments) != 0 {
		t.Fatalf("fileless form stored an attachment: %+v", attachments)
	}
}

func TestStartReturnsBindError(t *testing.T) {
	occupied, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("occupy port: %v", err)
	}
	defer occupied.Close()

	env := setupServer(t)
	env.srv.httpServer.Addr = occupied.Addr().String()
	if err := env.srv.Start(context.Background()); err == nil {
		t.Fatal("start on an occupied address returned nil")
	}

	free := setupServer(t)
	free.srv.httpServer.Addr = "127.0.0.1:0"
	if err := free.srv.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := free.srv.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
