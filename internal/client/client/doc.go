// Package client talks to the VIP club HTTP API.
//
// HTTPClient keeps the bearer token from the last successful login and
// attaches it to protected calls. Transport failures map to ErrUnavailable
// and 401 answers to ErrUnauthorized; other non-2xx answers come back as
// *APIError carrying the server's detail message.
package client
