// Package pryv provides the types, interfaces and helpers shared by platform
// connections and services.
//
// # Overview
//
// A platform publishes a discovery document (ServiceInfo) at a well-known
// URL. A Service fetches and caches it, derives per-user API endpoints from
// its api template ("https://{username}.pryv.me/") and exchanges a username
// and password for a token. A Connection is an authenticated handle on one
// APIEndpoint: it issues plain and meta-aware calls, batches method calls in
// bounded chunks and keeps a running estimate of the server clock offset.
//
// Concrete implementations are built by the pryvclient package.
//
// # Endpoints
//
// An API endpoint carries its token as URL userinfo:
//
//	endpoint, _ := pryv.ParseAPIEndpoint("https://ck6bwmcar00041ep87c8ujf90@tom.pryv.me/")
//	// endpoint.Endpoint == "https://tom.pryv.me/"
//	// endpoint.Token    == "ck6bwmcar00041ep87c8ujf90"
//
// # Errors
//
// Every failure wraps one of the sentinels in errors.go, so callers can use
// errors.Is (ErrTransport, ErrMissingMeta, ErrLogin, ...) or errors.As with
// *TransportError, *LoginError and *APIError.
package pryv
