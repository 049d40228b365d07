// Package storage holds the types and sentinel errors shared by the storage
// adapters (memory, jsonfile, redis).
//
// The interfaces the adapters satisfy are defined by their consumers:
// account.UserStore and account.SessionStore in pkg/account, and
// chat.MessageStore in pkg/chat. This package contains only shared types
// and helpers, not the interfaces themselves.
package storage
