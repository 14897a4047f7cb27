// Gitshelf - Source Project Portal with Download Audit Logging
// Copyright 2026 Gitshelf Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/gitshelf/gitshelf

package api

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gitshelf/gitshelf/internal/audit"
	"github.com/gitshelf/gitshelf/internal/config"
	"github.com/gitshelf/gitshelf/internal/geo"
	"github.com/gitshelf/gitshelf/internal/github"
	"github.com/gitshelf/gitshelf/internal/projects"
)

const testPassword = "correct horse battery staple"

// unreachableURL points at a port nothing listens on, to simulate a
// down upstream.
const unreachableURL = "http://127.0.0.1:1"

type testEnv struct {
	router http.Handler
	store  audit.Store
	svc    *projects.Service
	root   string
}

type envOptions struct {
	geoURL     string
	geocodeURL string
	githubURL  string
	cloner     projects.Cloner
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	if opts.geoURL == "" {
		opts.geoURL = unreachableURL
	}
	if opts.geocodeURL == "" {
		opts.geocodeURL = unreachableURL
	}
	if opts.githubURL == "" {
		opts.githubURL = unreachableURL
	}

	root := t.TempDir()
	store := audit.NewFileStore(filepath.Join(t.TempDir(), "downloads.log"))
	svc := projects.NewService(root, opts.cloner)

	cfg := &config.Config{
		Projects: config.ProjectsConfig{Dir: root, CloneTimeout: 5 * time.Second},
		Geo:      config.GeoConfig{Timeout: 2 * time.Second},
		Logs:     config.LogsConfig{Password: testPassword, TokenTTL: time.Minute},
	}

	handler := NewHandler(
		store,
		svc,
		geo.NewClient(opts.geoURL, "test-token", 2*time.Second),
		geo.NewGeocoder(opts.geocodeURL, "test-key", 2*time.Second, nil),
		github.NewClient(opts.githubURL, "", 2*time.Second),
		NewGate(testPassword, "test-secret", time.Minute),
		cfg,
	)

	return &testEnv{
		router: NewRouter(handler),
		store:  store,
		svc:    svc,
		root:   root,
	}
}

// addProject creates a project directory with the given relative files.
func (e *testEnv) addProject(t *testing.T, name string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(e.root, name, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// newGeoServer serves ipinfo-style responses for any address.
func newGeoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"ip": "203.0.113.5",
			"city": "Berlin",
			"region": "Berlin",
			"country": "DE",
			"loc": "52.5200,13.4050",
			"org": "AS3320 Example AG",
			"timezone": "Europe/Berlin"
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIndexListsProjects(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.addProject(t, "alpha", map[string]string{"main.go": "package main\n"})
	env.addProject(t, "beta", map[string]string{"README.md": "# beta\n"})

	rec := env.get("/")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"alpha", "beta"} {
		if !strings.Contains(body, name) {
			t.Errorf("index missing project %q", name)
		}
	}
}

func TestProjectListsFiles(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.addProject(t, "demo", map[string]string{
		"main.go":        "package main\n",
		"docs/README.md": "# demo\n",
	})

	rec := env.get("/project/demo")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	for _, rel := range []string{"main.go", "docs/README.md"} {
		if !strings.Contains(body, rel) {
			t.Errorf("project page missing %q", rel)
		}
	}
}

func TestProjectNotFound(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	if rec := env.get("/project/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDownloadArchivesProjectAndAppendsRecord(t *testing.T) {
	geoSrv := newGeoServer(t)
	env := newTestEnv(t, envOptions{geoURL: geoSrv.URL})
	env.addProject(t, "demo", map[string]string{
		"main.go":       "package main\n",
		"sub/helper.go": "package sub\n",
	})

	req := httptest.NewRequest(http.MethodGet, "/download/demo", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	req.Header.Set("User-Agent", "test-agent/1.0")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "demo.zip") {
		t.Errorf("Content-Disposition = %q, want demo.zip attachment", got)
	}

	body, _ := io.ReadAll(rec.Body)
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("response is not a valid zip: %v", err)
	}
	var entries []string
	for _, f := range zr.File {
		entries = append(entries, f.Name)
	}
	sort.Strings(entries)
	want := []string{"main.go", "sub/helper.go"}
	if len(entries) != len(want) {
		t.Fatalf("archive entries = %v, want %v", entries, want)
	}
	for i := range want {
		if entries[i] != want[i] {
			t.Errorf("entry %d = %q, want %q", i, entries[i], want[i])
		}
	}

	records, err := env.store.LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r0 := records[0]
	if r0.Project != "demo" {
		t.Errorf("record project = %q", r0.Project)
	}
	if r0.IP != "203.0.113.5" {
		t.Errorf("record ip = %q, want forwarded address", r0.IP)
	}
	if r0.UserAgent != "test-agent/1.0" {
		t.Errorf("record user_agent = %q", r0.UserAgent)
	}
	if r0.Geo.City != "Berlin" || r0.Geo.Country != "DE" {
		t.Errorf("record geo = %+v, want Berlin/DE", r0.Geo)
	}
	if r0.ID == "" {
		t.Error("record has no id")
	}
}

func TestDownloadUnknownProjectAppendsNothing(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.get("/download/nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	records, err := env.store.LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0", len(records))
	}
}

func TestDownloadSucceedsWhenGeolocationUnreachable(t *testing.T) {
	env := newTestEnv(t, envOptions{geoURL: unreachableURL})
	env.addProject(t, "demo", map[string]string{"main.go": "package main\n"})

	req := httptest.NewRequest(http.MethodGet, "/download/demo", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite geo failure", rec.Code)
	}
	if _, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len())); err != nil {
		t.Fatalf("response is not a valid zip: %v", err)
	}

	records, err := env.store.LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	if got := records[0].Geo.City; got != "" {
		t.Errorf("geo city = %q, want empty after failed lookup", got)
	}
}

func TestLogsWrongPasswordRevealsNothing(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	seedRecord(t, env.store, "secret-project")

	rec := env.postForm("/logs", url.Values{"password": {"wrong"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want redirect", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/logs" {
		t.Errorf("redirect to %q, want /logs", loc)
	}
	if strings.Contains(rec.Body.String(), "secret-project") {
		t.Error("wrong password leaked record content")
	}

	// The follow-up prompt shows the flashed error.
	req := httptest.NewRequest(http.MethodGet, "/logs", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	prompt := httptest.NewRecorder()
	env.router.ServeHTTP(prompt, req)
	if !strings.Contains(prompt.Body.String(), "Wrong password") {
		t.Error("prompt missing flashed error message")
	}
}

func TestLogsCorrectPasswordRendersRecords(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	seedRecord(t, env.store, "demo")
	seedRecord(t, env.store, "other")

	rec := env.postForm("/logs", url.Values{"password": {testPassword}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, name := range []string{"demo", "other"} {
		if !strings.Contains(body, name) {
			t.Errorf("log view missing record for %q", name)
		}
	}
	if gateCookie(rec.Result().Cookies()) == nil {
		t.Error("no gate token cookie issued")
	}
	// Stored coordinates are rendered without a geocoder round trip.
	if !strings.Contains(body, "52.52") {
		t.Error("log view missing coordinates parsed from stored loc")
	}
}

func TestDeleteLogRequiresGateToken(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	id := seedRecord(t, env.store, "demo")

	rec := env.get("/delete_log/" + id)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want redirect to prompt", rec.Code)
	}

	records, err := env.store.LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d, want record untouched", len(records))
	}
}

func TestDeleteLogWithGateToken(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	id := seedRecord(t, env.store, "demo")
	cookie := authenticate(t, env)

	req := httptest.NewRequest(http.MethodGet, "/delete_log/"+id, nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	// Redirect after the mutation so a refresh does not replay the
	// delete.
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want redirect to log view", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/logs" {
		t.Errorf("redirect to %q, want /logs", loc)
	}
	records, err := env.store.LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0 after delete", len(records))
	}

	followUp := httptest.NewRequest(http.MethodGet, "/logs", nil)
	followUp.AddCookie(cookie)
	view := httptest.NewRecorder()
	env.router.ServeHTTP(view, followUp)
	if view.Code != http.StatusOK {
		t.Fatalf("follow-up status = %d, want rendered log view", view.Code)
	}
	if strings.Contains(view.Body.String(), "demo") {
		t.Error("deleted record still rendered")
	}
}

func TestResetLogsWithGateToken(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	seedRecord(t, env.store, "demo")
	seedRecord(t, env.store, "other")
	cookie := authenticate(t, env)

	req := httptest.NewRequest(http.MethodGet, "/reset_logs", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want redirect to log view", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/logs" {
		t.Errorf("redirect to %q, want /logs", loc)
	}
	records, err := env.store.LoadAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("records = %d, want 0 after reset", len(records))
	}
}

func TestLogsPageWithGateTokenRendersRecords(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	seedRecord(t, env.store, "demo")
	cookie := authenticate(t, env)

	req := httptest.NewRequest(http.MethodGet, "/logs", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "demo") {
		t.Error("log view missing seeded record")
	}
}

func TestDownloadLogsExportsRawFile(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	seedRecord(t, env.store, "demo")
	cookie := authenticate(t, env)

	req := httptest.NewRequest(http.MethodGet, "/download_logs", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "downloads.log") {
		t.Errorf("Content-Disposition = %q", got)
	}

	raw, err := env.store.Export(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(rec.Body.Bytes(), raw) {
		t.Error("export body differs from raw store content")
	}
}

func TestAddProjectClonesRepository(t *testing.T) {
	env := newTestEnv(t, envOptions{cloner: &stubCloner{}})

	rec := env.postForm("/add_project", url.Values{"url": {"https://example.com/user/widget.git"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/project/widget" {
		t.Errorf("redirect to %q, want /project/widget", loc)
	}
	if !env.svc.Exists("widget") {
		t.Error("cloned project missing from projects root")
	}
}

func TestAddProjectAcceptsSCPStyleURL(t *testing.T) {
	env := newTestEnv(t, envOptions{cloner: &stubCloner{}})

	rec := env.postForm("/add_project", url.Values{"url": {"git@github.com:alice/widgets.git"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, body %q", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/project/widgets" {
		t.Errorf("redirect to %q, want /project/widgets", loc)
	}
	if !env.svc.Exists("widgets") {
		t.Error("scp-style clone did not create the project")
	}
}

func TestAddProjectRejectsMissingURL(t *testing.T) {
	env := newTestEnv(t, envOptions{cloner: &stubCloner{}})

	rec := env.postForm("/add_project", url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want redirect back to form", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/add_project" {
		t.Errorf("redirect to %q, want /add_project", loc)
	}
}

func TestAddProjectCloneFailureFlashesError(t *testing.T) {
	env := newTestEnv(t, envOptions{cloner: &stubCloner{fail: true}})

	rec := env.postForm("/add_project", url.Values{"url": {"https://example.com/user/widget.git"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/add_project", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	form := httptest.NewRecorder()
	env.router.ServeHTTP(form, req)
	if !strings.Contains(form.Body.String(), "Clone failed") {
		t.Error("form missing flashed clone error")
	}
	if env.svc.Exists("widget") {
		t.Error("failed clone left a project behind")
	}
}

func TestGitHubReposRendersListing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"name": "widget", "full_name": "octocat/widget", "html_url": "https://github.com/octocat/widget", "language": "Go", "stargazers_count": 42}
		]`))
	}))
	defer srv.Close()

	env := newTestEnv(t, envOptions{githubURL: srv.URL})
	rec := env.get("/github_repos/octocat?page=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "widget") {
		t.Error("listing missing repository name")
	}
}

func TestGitHubReposUpstreamRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "Not Found"}`))
	}))
	defer srv.Close()

	env := newTestEnv(t, envOptions{githubURL: srv.URL})
	rec := env.get("/github_repos/ghost")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Not Found") {
		t.Error("response missing upstream message")
	}
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	rec := env.get("/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
}

// seedRecord appends a record directly to the store and returns its id.
func seedRecord(t *testing.T, store audit.Store, project string) string {
	t.Helper()
	rec := &audit.Record{
		IP: "203.0.113.5",
		Geo: audit.GeoData{
			City:    "Berlin",
			Country: "DE",
			Loc:     "52.5200,13.4050",
		},
		UserAgent: "test-agent/1.0",
		Project:   project,
	}
	if err := store.Append(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	return rec.ID
}

// authenticate performs the password check and returns the gate cookie.
func authenticate(t *testing.T, env *testEnv) *http.Cookie {
	t.Helper()
	rec := env.postForm("/logs", url.Values{"password": {testPassword}})
	if rec.Code != http.StatusOK {
		t.Fatalf("authentication failed with status %d", rec.Code)
	}
	cookie := gateCookie(rec.Result().Cookies())
	if cookie == nil {
		t.Fatal("no gate cookie issued")
	}
	return cookie
}

func gateCookie(cookies []*http.Cookie) *http.Cookie {
	for _, c := range cookies {
		if c.Name == gateCookieName && c.Value != "" {
			return c
		}
	}
	return nil
}

type stubCloner struct {
	fail bool
}

func (c *stubCloner) Clone(_ context.Context, _, dest string) error {
	if c.fail {
		return os.ErrPermission
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, "README.md"), []byte("cloned\n"), 0o644)
}
