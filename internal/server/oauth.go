package server

import (
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/desertthunder/plsync/internal/shared"
	"golang.org/x/oauth2"
)

const defaultCallbackPath = "/callback"

// OAuthResult is the outcome of one authorization code exchange.
type OAuthResult struct {
	Token *oauth2.Token
	err   error
}

func (o *OAuthResult) Error() error {
	return o.err
}

// OAuthHandler serves the redirect URI of the authorization code flow.
//
// Only the first callback is processed; its outcome is delivered once on [OAuthHandler.Result].
type OAuthHandler struct {
	config  *oauth2.Config
	state   string
	results chan OAuthResult
	claimed atomic.Bool
	once    sync.Once
}

// NewOAuthHandler returns a handler that accepts callbacks carrying state.
func NewOAuthHandler(config *oauth2.Config, state string) *OAuthHandler {
	return &OAuthHandler{
		config:  config,
		state:   state,
		results: make(chan OAuthResult, 1),
	}
}

// Routes returns the path of the configured redirect URL, "/callback" when it has none.
func (h *OAuthHandler) Routes() []string {
	return []string{CallbackPath(h.config.RedirectURL)}
}

// CallbackPath extracts the path the browser is redirected to.
func CallbackPath(redirectURL string) string {
	u, err := url.Parse(redirectURL)
	if err != nil || u.Path == "" || u.Path == "/" {
		return defaultCallbackPath
	}
	return u.Path
}

func (h *OAuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.claimed.CompareAndSwap(false, true) {
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}

	code, status, err := h.authorizationCode(r.URL.Query())
	if err == nil {
		var token *oauth2.Token
		if token, err = h.config.Exchange(r.Context(), code); err == nil {
			h.Send(OAuthResult{Token: token})
			renderPage(w, http.StatusOK, callbackPage{OK: true})
			return
		}
		err = fmt.Errorf("%w: token exchange: %v", shared.ErrAuthFailed, err)
		status = http.StatusInternalServerError
	}

	h.Send(OAuthResult{err: err})
	renderPage(w, status, callbackPage{Message: err.Error()})
}

// authorizationCode validates the callback query and returns the code to exchange.
func (h *OAuthHandler) authorizationCode(query url.Values) (string, int, error) {
	if query.Get("state") != h.state {
		return "", http.StatusBadRequest, fmt.Errorf("%w: invalid state parameter", shared.ErrAuthFailed)
	}
	if reason := query.Get("error"); reason != "" || query.Get("code") == "" {
		if reason == "" {
			reason = "no authorization code"
		}
		if desc := query.Get("error_description"); desc != "" {
			reason += ": " + desc
		}
		return "", http.StatusBadRequest, fmt.Errorf("%w: %s", shared.ErrAuthFailed, reason)
	}
	return query.Get("code"), http.StatusOK, nil
}

// Send delivers result unless one was already delivered, then closes the channel.
func (h *OAuthHandler) Send(result OAuthResult) {
	h.once.Do(func() {
		h.results <- result
		close(h.results)
	})
}

// Result yields exactly one result and is then closed.
func (h *OAuthHandler) Result() <-chan OAuthResult {
	return h.results
}

type callbackPage struct {
	OK      bool
	Message string
}

func renderPage(w http.ResponseWriter, status int, page callbackPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	pageTemplate.Execute(w, page)
}

var pageTemplate = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>plsync</title>
  <style>
    body { font-family: system-ui, sans-serif; display: grid; place-items: center; height: 100vh; margin: 0; background: #121212; color: #eee; }
    main { text-align: center; }
    h1 { color: {{if .OK}}#1DB954{{else}}#E22134{{end}}; }
  </style>
</head>
<body>
  <main>
  {{- if .OK}}
    <h1>plsync is connected to Spotify</h1>
    <p>You can close this tab and return to the terminal.</p>
  {{- else}}
    <h1>Authorization failed</h1>
    <p>{{.Message}}</p>
    <p>Run <code>plsync auth</code> again to retry.</p>
  {{- end}}
  </main>
</body>
</html>
`))
