// Package session provides the in-memory conversation state for the chat server.
// A Store maps opaque session identifiers to Sessions; each Session keeps a
// bounded, ordered transcript of question/answer exchanges.
package session

import (
	"time"
)

// Exchange is one question/answer turn within a session.
// Exchanges are immutable once created.
type Exchange struct {
	// Question is the user's text as it was sent to the model.
	Question string `json:"question"`
	// Answer is the generated reply.
	Answer string `json:"answer"`
	// CreatedAt is when the exchange was recorded.
	CreatedAt time.Time `json:"createdAt"`
}

// Stats summarizes the contents of a Store.
type Stats struct {
	// Sessions is the number of sessions currently reachable.
	Sessions int `json:"sessions"`
	// Exchanges is the total number of exchanges across all sessions.
	Exchanges int `json:"exchanges"`
}

// Clock returns the current time. Stores use it for every timestamp so that
// expiry can be tested without sleeping.
type Clock func() time.Time
