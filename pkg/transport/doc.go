// Package transport holds the HTTP plumbing shared by the chatrelay server:
// the middleware chain, error-to-status mapping, and the registry of
// in-flight chat calls.
//
// # Middleware
//
// Middleware wraps an http.Handler. Chain composes them so that the first
// middleware is the outermost wrapper. Built-in middleware provides panic
// recovery, request ID assignment (X-Request-ID), structured access logging
// via log/slog, and CORS for browser front ends.
//
// # Errors
//
// Every error that crosses the HTTP boundary is rendered as an api.APIError
// inside an api.ErrorResponse. APIErrorFrom maps domain errors (relay
// failures, account errors, storage sentinels) onto API errors without
// leaking upstream details to clients.
package transport
