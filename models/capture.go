package models

import "time"

// DeduplicatedResponseID identifies the synthetic response that summarises
// the per-session deduplication map.
const DeduplicatedResponseID = "resp_deduplicated"

// CapturedResponse is one intercepted network response. It only lives for the
// duration of a single capture call and is folded into execution results.
type CapturedResponse struct {
	ID        string    `json:"_responseId"`
	URL       string    `json:"_responseUrl"`
	Method    string    `json:"_requestMethod"`
	Timestamp time.Time `json:"_timestamp"`

	// Body is the parsed JSON payload. Nil when the body was not JSON.
	Body any `json:"body,omitempty"`

	// Raw keeps the text of bodies that failed to parse.
	Raw string `json:"raw,omitempty"`

	// Deduplicated marks the synthetic summary response; Count is the number
	// of unique shapes it holds.
	Deduplicated bool `json:"deduplicated,omitempty"`
	Count        int  `json:"count,omitempty"`
}
