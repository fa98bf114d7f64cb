package web_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuestLoginLandsOnOnboarding(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.loginAsGuest("Alice")
	assert.Equal(t, "/join", rr.Header().Get("Location"))

	rr = ts.followRedirect(rr)
	assert.Equal(t, http.StatusOK, rr.Code)

	doc := parseHTML(rr.Body)
	assertContainsText(t, doc, "[data-testid='nav-user']", "Alice")
	assertContainsText(t, doc, "[data-testid='flash']", "Welcome, Alice!")
	assertContainsElement(t, doc, "[data-testid='join-form']")
	assertContainsElement(t, doc, "[data-testid='create-club-form']")
}

func TestGuestLoginEmptyName(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.post("/login", url.Values{"mode": {"guest"}, "display_name": {"  "}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, ts.cookies.hasToken())

	doc := parseHTML(rr.Body)
	assertContainsText(t, doc, "[data-testid='login-error']", "Display name is required")
}

func TestAccountLogin(t *testing.T) {
	ts := newWebTestServer(t)
	_, err := ts.app.AuthService.Register(context.Background(), "alice", "secret123", "Alice")
	require.NoError(t, err)

	rr := ts.post("/login", url.Values{"mode": {"account"}, "username": {"alice"}, "password": {"secret123"}})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/join", rr.Header().Get("Location"))
	assert.True(t, ts.cookies.hasToken())
}

func TestAccountLoginWrongPassword(t *testing.T) {
	ts := newWebTestServer(t)
	_, err := ts.app.AuthService.Register(context.Background(), "alice", "secret123", "Alice")
	require.NoError(t, err)

	rr := ts.post("/login", url.Values{"mode": {"account"}, "username": {"alice"}, "password": {"nope"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, ts.cookies.hasToken())

	doc := parseHTML(rr.Body)
	assertContainsText(t, doc, "[data-testid='login-error']", "Invalid username or password")
}

func TestMemberLoginFollowsNext(t *testing.T) {
	tests := []struct {
		name     string
		next     string
		expected string
	}{
		{name: "internal path", next: "/account", expected: "/account"},
		{name: "no next", next: "", expected: "/sessions"},
		{name: "protocol relative", next: "//evil.example", expected: "/sessions"},
		{name: "absolute url", next: "https://evil.example/x", expected: "/sessions"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newWebTestServer(t)
			identity, err := ts.app.AuthService.Register(context.Background(), "alice", "secret123", "Alice")
			require.NoError(t, err)
			_, err = ts.app.ClubService.CreateClub(context.Background(), identity.UserID, "Home game")
			require.NoError(t, err)

			rr := ts.post("/login", url.Values{
				"mode":     {"account"},
				"username": {"alice"},
				"password": {"secret123"},
				"next":     {tt.next},
			})
			assert.Equal(t, http.StatusSeeOther, rr.Code)
			assert.Equal(t, tt.expected, rr.Header().Get("Location"))
		})
	}
}

func TestAuthCallback(t *testing.T) {
	ts := newWebTestServer(t)
	identity, err := ts.app.AuthService.CreateGuest(context.Background(), "Alice")
	require.NoError(t, err)

	rr := ts.get("/auth/callback?token=" + url.QueryEscape(identity.Token))
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/join", rr.Header().Get("Location"))
	assert.True(t, ts.cookies.hasToken())
}

func TestAuthCallbackInvalidToken(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.get("/auth/callback?token=garbage")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/login", rr.Header().Get("Location"))
	assert.False(t, ts.cookies.hasToken())
}

func TestAnonymousRedirectedToLogin(t *testing.T) {
	ts := newWebTestServer(t)

	for _, path := range []string{"/sessions", "/sessions/abc", "/account", "/join"} {
		rr := ts.get(path)
		assert.Equal(t, http.StatusSeeOther, rr.Code, path)
		assert.Equal(t, "/login?next="+url.QueryEscape(path), rr.Header().Get("Location"), path)
	}
}

func TestPublicPagesRenderForAnonymous(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.get("/")
	assert.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(rr.Body)
	assertContainsElement(t, doc, "[data-testid='login-link']")
	assertNotContainsElement(t, doc, "[data-testid='nav-user']")

	rr = ts.get("/login?next=%2Fsessions")
	assert.Equal(t, http.StatusOK, rr.Code)
	doc = parseHTML(rr.Body)
	next, ok := doc.Find("[data-testid='login-form'] input[name='next']").Attr("value")
	assert.True(t, ok)
	assert.Equal(t, "/sessions", next)
}

func TestGuestWithoutClubRedirectedToJoin(t *testing.T) {
	ts := newWebTestServer(t)
	ts.loginAsGuest("Alice")

	for _, path := range []string{"/sessions", "/account"} {
		rr := ts.get(path)
		assert.Equal(t, http.StatusSeeOther, rr.Code, path)
		assert.Equal(t, "/join", rr.Header().Get("Location"), path)
	}

	// The home page stays reachable and points at onboarding
	rr := ts.get("/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assertContainsElement(t, parseHTML(rr.Body), "[data-testid='join-link']")
}

func TestJoinClubByCode(t *testing.T) {
	ts := newWebTestServer(t)
	c := ts.member("Alice")

	// A second visitor with their own cookies
	ts.cookies = newCookieJar()
	ts.loginAsGuest("Bob")

	rr := ts.post("/join", url.Values{"action": {"join"}, "join_code": {c.JoinCode}})
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/sessions", rr.Header().Get("Location"))

	rr = ts.followRedirect(rr)
	assert.Equal(t, http.StatusOK, rr.Code)
	doc := parseHTML(rr.Body)
	assertContainsText(t, doc, "[data-testid='flash']", "Welcome to Alice's club")

	rr = ts.get("/account")
	assert.Equal(t, http.StatusOK, rr.Code)
	doc = parseHTML(rr.Body)
	assertContainsText(t, doc, "[data-testid='account-club']", "Alice's club")
	assertContainsText(t, doc, "[data-testid='account-join-code']", c.JoinCode)
}

func TestJoinUnknownCode(t *testing.T) {
	ts := newWebTestServer(t)
	ts.loginAsGuest("Alice")

	rr := ts.post("/join", url.Values{"action": {"join"}, "join_code": {"ZZZZZZ"}})
	assert.Equal(t, http.StatusOK, rr.Code)
	assertContainsText(t, parseHTML(rr.Body), "[data-testid='join-error']", "No club has that join code")
}

func TestMemberSkipsOnboarding(t *testing.T) {
	ts := newWebTestServer(t)
	ts.member("Alice")

	rr := ts.get("/join")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/sessions", rr.Header().Get("Location"))
}

func TestLogout(t *testing.T) {
	ts := newWebTestServer(t)
	ts.member("Alice")
	token := ts.cookies.cookies["token"].Value

	rr := ts.post("/logout", nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/", rr.Header().Get("Location"))
	assert.False(t, ts.cookies.hasToken())

	rr = ts.get("/sessions")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "/login")

	// A copy of the revoked token is treated as anonymous and cleared
	ts.cookies.cookies["token"] = &http.Cookie{Name: "token", Value: token}
	rr = ts.get("/sessions")
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Contains(t, rr.Header().Get("Location"), "/login")
	assert.False(t, ts.cookies.hasToken())
}

func TestGarbageTokenCookieTreatedAsAnonymous(t *testing.T) {
	ts := newWebTestServer(t)
	ts.cookies.cookies["token"] = &http.Cookie{Name: "token", Value: "not-a-token"}

	rr := ts.get("/")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, ts.cookies.hasToken())
	assertContainsElement(t, parseHTML(rr.Body), "[data-testid='login-link']")
}

func TestUnknownPage(t *testing.T) {
	ts := newWebTestServer(t)

	rr := ts.get("/nowhere")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
