package httpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/crypto/bcrypt"

	"github.com/Clark-Hu/movie-ratings/internal/auth"
	"github.com/Clark-Hu/movie-ratings/internal/config"
	"github.com/Clark-Hu/movie-ratings/internal/domain"
	"github.com/Clark-Hu/movie-ratings/internal/pgtest"
	"github.com/Clark-Hu/movie-ratings/internal/repository"
	"github.com/Clark-Hu/movie-ratings/internal/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type poolHealth struct {
	pool *pgxpool.Pool
}

func (p poolHealth) HealthCheck(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

type testEnv struct {
	srv    *Server
	repo   *repository.Repository
	hasher auth.Hasher
	ts     *httptest.Server
}

func newTestEnv(tb testing.TB) *testEnv {
	tb.Helper()
	return newTestEnvWithStore(tb, session.NewCookieStore([]byte(testSecret), session.Options{MaxAgeSecs: 3600}))
}

func newTestEnvWithStore(tb testing.TB, store sessions.Store) *testEnv {
	tb.Helper()

	pool := pgtest.NewPool(tb, "handlers_test", 46000)
	repo := repository.NewWithPool(pool)
	hasher := auth.NewHasher(bcrypt.MinCost)
	manager := session.NewManager(store, "test-session")

	srv := New(config.Config{Port: "0"}, poolHealth{pool}, repo, manager, hasher, log.New(io.Discard, "", 0))
	ts := httptest.NewServer(srv.Handler())
	tb.Cleanup(ts.Close)

	return &testEnv{srv: srv, repo: repo, hasher: hasher, ts: ts}
}

// browser keeps cookies and stops at the first redirect so tests can inspect it.
func (e *testEnv) browser(tb testing.TB) *http.Client {
	tb.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		tb.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (e *testEnv) post(tb testing.TB, c *http.Client, path string, form url.Values, referer string) *http.Response {
	tb.Helper()
	req, err := http.NewRequest(http.MethodPost, e.ts.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		tb.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if referer != "" {
		req.Header.Set("Referer", e.ts.URL+referer)
	}
	resp, err := c.Do(req)
	if err != nil {
		tb.Fatalf("POST %s: %v", path, err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp
}

func (e *testEnv) get(tb testing.TB, c *http.Client, path string) (int, string) {
	tb.Helper()
	resp, err := c.Get(e.ts.URL + path)
	if err != nil {
		tb.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		tb.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func (e *testEnv) mustCreateUser(tb testing.TB, email, password string) domain.User {
	tb.Helper()
	hash, err := e.hasher.Hash(password)
	if err != nil {
		tb.Fatalf("hash: %v", err)
	}
	user, err := domain.NewUser(email, hash)
	if err != nil {
		tb.Fatalf("new user: %v", err)
	}
	if err := e.repo.Users.Create(context.Background(), &user); err != nil {
		tb.Fatalf("create user: %v", err)
	}
	return user
}

func (e *testEnv) mustCreateMovie(tb testing.TB, title string) domain.Movie {
	tb.Helper()
	movie, err := domain.NewMovie(title, "An overview of "+title, nil, nil)
	if err != nil {
		tb.Fatalf("new movie: %v", err)
	}
	if err := e.repo.Movies.Create(context.Background(), &movie); err != nil {
		tb.Fatalf("create movie: %v", err)
	}
	return movie
}

func (e *testEnv) login(tb testing.TB, c *http.Client, email, password string) {
	tb.Helper()
	resp := e.post(tb, c, "/login", url.Values{"email": {email}, "password": {password}}, "/")
	expectRedirect(tb, resp, "/movies")
}

func expectRedirect(tb testing.TB, resp *http.Response, want string) {
	tb.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		tb.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusSeeOther)
	}
	if got := resp.Header.Get("Location"); got != want {
		tb.Fatalf("Location = %q, want %q", got, want)
	}
}

func expectBodyContains(tb testing.TB, body string, parts ...string) {
	tb.Helper()
	for _, part := range parts {
		if !strings.Contains(body, part) {
			tb.Fatalf("body missing %q:\n%s", part, body)
		}
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	c := env.browser(t)
	creds := url.Values{"email": {"jem@test.com"}, "password": {"hunter2"}}

	expectRedirect(t, env.post(t, c, "/users", creds, "/"), "/")
	_, body := env.get(t, c, "/")
	expectBodyContains(t, body, msgAccountCreated)

	expectRedirect(t, env.post(t, c, "/users", url.Values{"email": {"jem@test.com"}, "password": {"other"}}, "/"), "/")
	_, body = env.get(t, c, "/")
	expectBodyContains(t, body, msgUserExists)

	stored, err := env.repo.Users.GetByEmail(context.Background(), "jem@test.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if stored.PasswordHash == "hunter2" || !env.hasher.Matches(stored.PasswordHash, "hunter2") {
		t.Fatalf("password stored incorrectly: %q", stored.PasswordHash)
	}

	bad := url.Values{"email": {"jem@test.com"}, "password": {"wrong"}}
	expectRedirect(t, env.post(t, c, "/login", bad, "/movies"), "/movies")
	_, body = env.get(t, c, "/movies")
	expectBodyContains(t, body, msgPasswordMismatch)
	if strings.Contains(body, "Log out") {
		t.Fatalf("session established after password mismatch")
	}

	env.login(t, c, "jem@test.com", "hunter2")
	_, body = env.get(t, c, "/movies")
	expectBodyContains(t, body, "Thanks for being a MoveeBuff", "jem@test.com", "Log out")

	expectRedirect(t, env.post(t, c, "/logout", nil, "/movies"), "/")
	_, body = env.get(t, c, "/")
	expectBodyContains(t, body, msgLoggedOut)
	if strings.Contains(body, "Log out") {
		t.Fatalf("still logged in after logout")
	}
}

func TestRegisterRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	c := env.browser(t)

	cases := []url.Values{
		{"email": {"not-an-email"}, "password": {"pw"}},
		{"email": {"a@test.com"}, "password": {""}},
		{"email": {""}, "password": {"pw"}},
		{"email": {"a@test.com"}, "password": {strings.Repeat("é", 40)}},
	}
	for _, form := range cases {
		expectRedirect(t, env.post(t, c, "/users", form, "/"), "/")
		_, body := env.get(t, c, "/")
		expectBodyContains(t, body, msgInvalidSignup)
	}

	users, err := env.repo.Users.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("users = %d, want 0", len(users))
	}
}

func TestRateFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	user := env.mustCreateUser(t, "rater@test.com", "pw")
	movie := env.mustCreateMovie(t, "Ad Astra")
	path := moviePath(movie.ID)
	c := env.browser(t)
	env.login(t, c, user.Email, "pw")
	_, _ = env.get(t, c, "/movies")

	_, body := env.get(t, c, path)
	expectBodyContains(t, body, "No ratings yet.", "You have not previously rated this movie.")

	created := testutil.ToFloat64(ratingSubmissions.WithLabelValues("created"))
	rate := func(score string) {
		t.Helper()
		form := url.Values{"movie_id": {fmt.Sprint(movie.ID)}, "rating": {score}}
		expectRedirect(t, env.post(t, c, "/rate", form, path), path)
	}

	rate("3")
	_, body = env.get(t, c, path)
	expectBodyContains(t, body,
		"Thank you for your rating of 3 for Ad Astra, rater@test.com.",
		"Your rating for Ad Astra is a 3.",
		`<strong class="average">3.0</strong> from 1 user.`,
	)
	if got := testutil.ToFloat64(ratingSubmissions.WithLabelValues("created")); got != created+1 {
		t.Fatalf("created submissions = %v, want %v", got, created+1)
	}

	rate("3")
	_, body = env.get(t, c, path)
	expectBodyContains(t, body, "No change to your previous rating of 3.")

	rate(" 5 ")
	_, body = env.get(t, c, path)
	expectBodyContains(t, body, "Updating your rating from 3 to 5.", "Your rating for Ad Astra is a 5.")

	score, err := env.repo.Ratings.Score(ctx, user.ID, movie.ID)
	if err != nil || score != 5 {
		t.Fatalf("Score = %d, %v; want 5", score, err)
	}
	agg, err := env.repo.Ratings.Aggregate(ctx, movie.ID)
	if err != nil || agg.Count != 1 {
		t.Fatalf("Aggregate = %+v, %v; want one rating", agg, err)
	}

	_, body = env.get(t, c, fmt.Sprintf("/user/%d", user.ID))
	expectBodyContains(t, body, "Ad Astra</a>: 5")
}

func TestRateRejectsInvalidScores(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustCreateUser(t, "rater@test.com", "pw")
	movie := env.mustCreateMovie(t, "Sonic the Hedgehog")
	path := moviePath(movie.ID)
	c := env.browser(t)
	env.login(t, c, user.Email, "pw")

	for _, score := range []string{"abc", "-1", "6", "3.5", ""} {
		t.Run(fmt.Sprintf("score=%q", score), func(t *testing.T) {
			form := url.Values{"movie_id": {fmt.Sprint(movie.ID)}, "rating": {score}}
			expectRedirect(t, env.post(t, c, "/rate", form, path), path)
			_, body := env.get(t, c, path)
			expectBodyContains(t, body, msgBadScore)

			exists, err := env.repo.Ratings.Exists(context.Background(), user.ID, movie.ID)
			if err != nil {
				t.Fatalf("Exists: %v", err)
			}
			if exists {
				t.Fatalf("rating stored for invalid score %q", score)
			}
		})
	}
}

func TestRateRequiresSession(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustCreateUser(t, "rater@test.com", "pw")
	movie := env.mustCreateMovie(t, "The Hunt")
	c := env.browser(t)

	form := url.Values{"movie_id": {fmt.Sprint(movie.ID)}, "rating": {"4"}}
	expectRedirect(t, env.post(t, c, "/rate", form, moviePath(movie.ID)), "/")
	_, body := env.get(t, c, "/")
	expectBodyContains(t, body, msgLoginToRate)

	exists, err := env.repo.Ratings.Exists(context.Background(), user.ID, movie.ID)
	if err != nil || exists {
		t.Fatalf("Exists = %v, %v; want false", exists, err)
	}
}

func TestRateUnknownMovie(t *testing.T) {
	env := newTestEnv(t)
	env.mustCreateUser(t, "rater@test.com", "pw")
	c := env.browser(t)
	env.login(t, c, "rater@test.com", "pw")

	for _, id := range []string{"999999", "abc", "0"} {
		resp := env.post(t, c, "/rate", url.Values{"movie_id": {id}, "rating": {"4"}}, "/movies")
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("movie_id=%s status = %d, want 404", id, resp.StatusCode)
		}
	}
}

func TestPages(t *testing.T) {
	env := newTestEnv(t)
	user := env.mustCreateUser(t, "viewer@test.com", "pw")
	movie := env.mustCreateMovie(t, "Ad Astra")
	env.mustCreateMovie(t, "Sonic the Hedgehog")
	c := env.browser(t)

	status, body := env.get(t, c, "/movies")
	if status != http.StatusOK {
		t.Fatalf("/movies status = %d", status)
	}
	expectBodyContains(t, body, "Ad Astra", "Sonic the Hedgehog")

	status, body = env.get(t, c, moviePath(movie.ID))
	if status != http.StatusOK {
		t.Fatalf("movie page status = %d", status)
	}
	expectBodyContains(t, body, "An overview of Ad Astra", "No ratings yet.", "to rate this movie")

	status, body = env.get(t, c, "/users")
	if status != http.StatusOK {
		t.Fatalf("/users status = %d", status)
	}
	expectBodyContains(t, body, user.Email)

	status, body = env.get(t, c, fmt.Sprintf("/user/%d", user.ID))
	if status != http.StatusOK {
		t.Fatalf("user page status = %d", status)
	}
	expectBodyContains(t, body, user.Email, "No ratings yet.")

	for _, path := range []string{"/movies/999999", "/movies/abc", "/user/999999", "/user/-1", "/nowhere"} {
		if status, _ := env.get(t, c, path); status != http.StatusNotFound {
			t.Fatalf("%s status = %d, want 404", path, status)
		}
	}
}

func TestHealthzAndMetrics(t *testing.T) {
	env := newTestEnv(t)
	c := env.browser(t)

	status, body := env.get(t, c, "/healthz")
	if status != http.StatusOK || !strings.Contains(body, `"ok"`) {
		t.Fatalf("/healthz = %d %s", status, body)
	}

	_, _ = env.get(t, c, "/movies")
	status, body = env.get(t, c, "/metrics")
	if status != http.StatusOK {
		t.Fatalf("/metrics status = %d", status)
	}
	expectBodyContains(t, body, "http_requests_total", `path="/movies"`, "http_request_duration_seconds")
}

// downStore behaves like a session backend that cannot be reached.
type downStore struct{}

var errSessionsDown = errors.New("session backend unreachable")

func (d downStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return d.New(r, name)
}

func (d downStore) New(_ *http.Request, name string) (*sessions.Session, error) {
	return sessions.NewSession(d, name), errSessionsDown
}

func (d downStore) Save(*http.Request, http.ResponseWriter, *sessions.Session) error {
	return errSessionsDown
}

func TestSessionOutageIsServerError(t *testing.T) {
	env := newTestEnvWithStore(t, downStore{})
	user := env.mustCreateUser(t, "rater@test.com", "pw")
	movie := env.mustCreateMovie(t, "Ad Astra")
	c := env.browser(t)

	form := url.Values{"movie_id": {fmt.Sprint(movie.ID)}, "rating": {"4"}}
	if resp := env.post(t, c, "/rate", form, moviePath(movie.ID)); resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("/rate status = %d, want 500", resp.StatusCode)
	}
	for _, path := range []string{"/", "/movies", moviePath(movie.ID)} {
		if status, _ := env.get(t, c, path); status != http.StatusInternalServerError {
			t.Fatalf("GET %s status = %d, want 500", path, status)
		}
	}
	creds := url.Values{"email": {user.Email}, "password": {"pw"}}
	if resp := env.post(t, c, "/login", creds, "/"); resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("/login status = %d, want 500", resp.StatusCode)
	}

	exists, err := env.repo.Ratings.Exists(context.Background(), user.ID, movie.ID)
	if err != nil || exists {
		t.Fatalf("Exists = %v, %v; want false", exists, err)
	}
}

func TestPanicsAreCounted(t *testing.T) {
	env := newTestEnv(t)
	env.srv.router.Get("/explode", func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})
	c := env.browser(t)

	counter := httpRequestTotal.WithLabelValues(http.MethodGet, "/explode", "500")
	before := testutil.ToFloat64(counter)
	if status, _ := env.get(t, c, "/explode"); status != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", status)
	}
	if got := testutil.ToFloat64(counter); got != before+1 {
		t.Fatalf("http_requests_total for panic = %v, want %v", got, before+1)
	}
}

func TestRefererPath(t *testing.T) {
	tests := []struct {
		name    string
		referer string
		want    string
	}{
		{"missing", "", "/"},
		{"same host", "http://example.com/movies/3", "/movies/3"},
		{"with query", "http://example.com/movies?page=2", "/movies?page=2"},
		{"relative", "/users", "/users"},
		{"other host", "http://evil.test/phish", "/"},
		{"scheme relative", "//evil.test/phish", "/"},
		{"garbage", "::", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "http://example.com/login", nil)
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}
			if got := refererPath(req); got != tt.want {
				t.Fatalf("refererPath(%q) = %q, want %q", tt.referer, got, tt.want)
			}
		})
	}
}

func BenchmarkHandleRate(b *testing.B) {
	env := newTestEnv(b)
	env.mustCreateUser(b, "bench@test.com", "pw")
	movie := env.mustCreateMovie(b, "Benchmark Movie")
	c := env.browser(b)
	env.login(b, c, "bench@test.com", "pw")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		form := url.Values{"movie_id": {fmt.Sprint(movie.ID)}, "rating": {fmt.Sprint(i % 6)}}
		resp := env.post(b, c, "/rate", form, "")
		if resp.StatusCode != http.StatusSeeOther {
			b.Fatalf("unexpected status %d", resp.StatusCode)
		}
	}
}
