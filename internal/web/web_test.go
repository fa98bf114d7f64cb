package web_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/pokersession/internal/factory"
	"github.com/mcoot/pokersession/internal/model"
	"github.com/mcoot/pokersession/internal/web"
)

// webTestServer provides a test server for web interface testing
type webTestServer struct {
	t       *testing.T
	handler http.Handler
	app     *factory.App
	cookies *cookieJar
}

// newWebTestServer creates a new test server with all dependencies wired
func newWebTestServer(t *testing.T) *webTestServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := factory.New(factory.Config{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	router := web.NewRouter(web.RouterConfig{
		Logger:         logger,
		AuthService:    app.AuthService,
		ClubService:    app.ClubService,
		SessionService: app.SessionService,
		Lifecycle:      app.Lifecycle,
		StaticDir:      "", // No static files in tests
	})

	return &webTestServer{
		t:       t,
		handler: router,
		app:     app,
		cookies: newCookieJar(),
	}
}

// request makes an HTTP request and returns the response.
// headers are name/value pairs.
func (ts *webTestServer) request(method, path string, form url.Values, headers ...string) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req := httptest.NewRequest(method, path, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	// Add cookies from jar
	ts.cookies.addTo(req)

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)

	// Extract Set-Cookie headers into jar
	ts.cookies.extract(rr)

	return rr
}

// get makes a GET request
func (ts *webTestServer) get(path string, headers ...string) *httptest.ResponseRecorder {
	return ts.request(http.MethodGet, path, nil, headers...)
}

// post makes a POST request with form data
func (ts *webTestServer) post(path string, form url.Values) *httptest.ResponseRecorder {
	return ts.request(http.MethodPost, path, form)
}

// parseHTML parses the response body as HTML
func parseHTML(r io.Reader) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		panic(err)
	}
	return doc
}

// cookieJar maintains cookies across requests (like a browser would)
type cookieJar struct {
	cookies map[string]*http.Cookie
}

func newCookieJar() *cookieJar {
	return &cookieJar{
		cookies: make(map[string]*http.Cookie),
	}
}

// addTo adds all cookies to the request
func (j *cookieJar) addTo(req *http.Request) {
	for _, cookie := range j.cookies {
		req.AddCookie(cookie)
	}
}

// extract extracts Set-Cookie headers from response
func (j *cookieJar) extract(rr *httptest.ResponseRecorder) {
	for _, cookie := range rr.Result().Cookies() {
		if cookie.MaxAge < 0 {
			// Cookie being deleted
			delete(j.cookies, cookie.Name)
		} else {
			j.cookies[cookie.Name] = cookie
		}
	}
}

// hasToken returns true if the token cookie is set
func (j *cookieJar) hasToken() bool {
	_, ok := j.cookies["token"]
	return ok
}

// Helper functions for common test operations

// loginAsGuest creates a guest through the login page's guest form
func (ts *webTestServer) loginAsGuest(displayName string) *httptest.ResponseRecorder {
	ts.t.Helper()
	rr := ts.post("/login", url.Values{"mode": {"guest"}, "display_name": {displayName}})
	require.Equal(ts.t, http.StatusSeeOther, rr.Code, "Expected redirect after guest creation")
	require.True(ts.t, ts.cookies.hasToken(), "Expected token cookie to be set")
	return rr
}

// createClub onboards the current visitor into a new club and returns it
func (ts *webTestServer) createClub(name string) *model.Club {
	ts.t.Helper()
	rr := ts.post("/join", url.Values{"action": {"create"}, "name": {name}})
	require.Equal(ts.t, http.StatusSeeOther, rr.Code, "Expected redirect after creating club")
	require.Equal(ts.t, "/sessions", rr.Header().Get("Location"))

	identity, err := ts.app.AuthService.ValidateToken(context.Background(), ts.cookies.cookies["token"].Value)
	require.NoError(ts.t, err)
	require.NotNil(ts.t, identity.User.ClubID)
	c, err := ts.app.Storage.GetClub(context.Background(), *identity.User.ClubID)
	require.NoError(ts.t, err)
	return c
}

// member logs in as a guest and creates a club in one step
func (ts *webTestServer) member(displayName string) *model.Club {
	ts.t.Helper()
	ts.loginAsGuest(displayName)
	return ts.createClub(displayName + "'s club")
}

// createSession creates a session through the form and returns its ID
func (ts *webTestServer) createSession(name string) model.SessionID {
	ts.t.Helper()
	rr := ts.post("/sessions", url.Values{"name": {name}, "currency": {"USD"}})
	require.Equal(ts.t, http.StatusSeeOther, rr.Code, "Expected redirect after session creation")

	location := rr.Header().Get("Location")
	parts := strings.Split(location, "/sessions/")
	require.Len(ts.t, parts, 2, "Expected location to contain /sessions/{id}")
	return model.SessionID(parts[1])
}

// followRedirect follows a redirect and returns the response
func (ts *webTestServer) followRedirect(rr *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	ts.t.Helper()
	location := rr.Header().Get("Location")
	require.NotEmpty(ts.t, location, "Expected Location header for redirect")
	return ts.get(location)
}

// Assertion helpers

// assertContainsElement asserts that the document contains an element matching the selector
func assertContainsElement(t *testing.T, doc *goquery.Document, selector string) {
	t.Helper()
	if doc.Find(selector).Length() == 0 {
		t.Errorf("Expected to find element matching %q, but none found", selector)
	}
}

// assertNotContainsElement asserts that the document does not contain an element matching the selector
func assertNotContainsElement(t *testing.T, doc *goquery.Document, selector string) {
	t.Helper()
	if doc.Find(selector).Length() > 0 {
		t.Errorf("Expected NOT to find element matching %q, but found %d", selector, doc.Find(selector).Length())
	}
}

// assertContainsText asserts that the element matching the selector contains the text
func assertContainsText(t *testing.T, doc *goquery.Document, selector, text string) {
	t.Helper()
	el := doc.Find(selector)
	if el.Length() == 0 {
		t.Errorf("Expected to find element matching %q, but none found", selector)
		return
	}
	if !strings.Contains(el.Text(), text) {
		t.Errorf("Expected element %q to contain %q, but got %q", selector, text, el.Text())
	}
}
