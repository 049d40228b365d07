// Package api defines the core types shared by the chatrelay server:
// conversation turns, stored chat messages, user records, the HTTP
// request/response bodies, and the structured APIError returned to clients.
//
// The package performs no I/O. Everything that crosses the HTTP boundary
// is expressed with these types so that handlers, stores and the relay
// client agree on a single vocabulary.
//
// Core types:
//   - [Turn]: one role-tagged message sent to the upstream model
//   - [ChatMessage]: one persisted message of a user's chat log
//   - [User]: a registered account
//   - [APIError]: structured error with type, param, and message
package api
