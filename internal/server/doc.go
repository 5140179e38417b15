// Package server provides HTTP routing, middleware, and the OAuth callback handler used by `radiosync auth`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] runs in the order it is added: the first middleware is the outermost wrapper.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [OAuthHandler] implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code through a
// [services.Authorizer], and sends the result through a channel. It only processes one callback.
//
// The auth command starts a temporary HTTP server on the redirect URI's host (127.0.0.1:3000 by default),
// waits for the callback, prints the refresh token and shuts the server down.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
