// Package server runs the short-lived HTTP listener used by `plsync auth`.
//
// # Router
//
// [BasicRouter] implements [Router] on top of [http.ServeMux]. [Middleware] is applied in
// reverse order of registration, so the first one added is the outermost.
// [RequestLogger] logs each request with charmbracelet/log.
//
// # OAuth callback
//
// [OAuthHandler] serves the redirect URI of the Spotify app. It checks the state parameter,
// exchanges the authorization code for a token and delivers exactly one [OAuthResult]
// through [OAuthHandler.Result]. Later callbacks are rejected.
package server
