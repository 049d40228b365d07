// Package memory provides in-memory implementations of the user, session
// and message stores for testing and lightweight deployments. Data is lost
// when the process restarts.
package memory
