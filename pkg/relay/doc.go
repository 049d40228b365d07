// Package relay sends a conversation to the upstream LLM proxy and returns
// the assistant's reply, retrying transient upstream failures.
//
// A relay call validates its input, serializes the turns into either the
// enveloped {model, messages, ...} shape or a bare message array, and POSTs
// them to the configured endpoint. Each attempt's outcome is classified by
// [Classify]: transport failures, 429 and 5xx responses are retried with
// capped exponential backoff ([Backoff]); other 4xx, unexpected statuses,
// upstream error objects, and malformed bodies end the call immediately.
//
// Failures are reported as *[Error] values carrying a [Kind]. Callers
// typically branch on [KindOf]. A Client is safe for concurrent use.
package relay
