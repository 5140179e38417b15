// Package services defines the [Catalog] interface consumed by the sync core and implements it for Spotify.
//
// # Catalog Interface
//
// The sync engine only needs search, playlist reads and three playlist writes, so [Catalog] is kept to
// exactly those. Tests substitute a hand-written fake.
//
// # Spotify Implementation
//
// [SpotifyService] authenticates with a long-lived refresh token. Every request goes through an
// [oauth2.Transport] whose token source refreshes the access token when fewer than five minutes of its
// hour-long lifetime remain. A refresh token rotated by the server replaces the configured one; register
// a callback with [SpotifyService.SetTokenRefreshCallback] to persist or log it.
//
// Requests are paced by a [rate.Limiter]. A 429 response is retried after its Retry-After delay a bounded
// number of times. Playlist writes are split into batches of 100 URIs, the API maximum.
//
// # Error Handling
//
// Services use typed errors from shared package:
//   - [shared.ErrRefreshFailed] : refresh token grant rejected
//   - [shared.ErrNotAuthenticated] : 401 from the API
//   - [shared.ErrPlaylistNotFound] : 404 on a playlist endpoint
//   - [shared.ErrRateLimited] : still 429 after retries
//   - [shared.ErrAPIRequest] : any other failed request (wraps all of the above)
package services
