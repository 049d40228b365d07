// Package auth provides pluggable authentication for the chat relay.
//
// Authentication uses a chain-of-responsibility pattern with three-outcome
// voting: each authenticator returns Yes (identity found), No (credentials
// invalid), or Abstain (can't handle). A configurable default voter decides
// when all authenticators abstain; routes that allow anonymous chat default
// to Yes with an anonymous identity.
//
// Auth is implemented as HTTP middleware, keeping it decoupled from the chat
// and account logic. Handlers read the caller with IdentityFromContext.
package auth
