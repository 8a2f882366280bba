package model

import (
	"strings"
	"time"
)

// EntityType classifies what kind of concrete thing a session last resolved.
type EntityType string

const (
	EntityBusiness EntityType = "business"
	EntityDocument EntityType = "document"
	EntityTopic    EntityType = "topic"
)

// ConversationTurn is one completed question/answer exchange. Immutable once
// appended; a session keeps only the most recent turns.
type ConversationTurn struct {
	Query                string    `json:"query"`
	Response             string    `json:"response"`
	RetrievedEntityNames []string  `json:"retrieved_entity_names,omitempty"`
	AIAskedQuestion      bool      `json:"ai_asked_question,omitempty"`
	PendingTopic         string    `json:"pending_topic,omitempty"`
	Timestamp            time.Time `json:"timestamp"`
}

// EntityContext is the most recently resolved concrete business/document/topic
// in a session, used to interpret follow-up questions. One per session,
// overwritten on each turn that resolves a concrete entity.
type EntityContext struct {
	Type              EntityType     `json:"type"`
	Name              string         `json:"name"`
	Payload           map[string]any `json:"payload,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
	OriginatingIntent string         `json:"originating_intent,omitempty"`
}

// StaleAt reports whether the entity is unusable for fast-path or pronoun
// resolution at the given instant. The boundary is inclusive: an entity aged
// exactly the validity window is stale.
func (e *EntityContext) StaleAt(now time.Time, validity time.Duration) bool {
	if e == nil {
		return true
	}
	return now.Sub(e.Timestamp) >= validity
}

// SessionContext is the per-conversation state tracked by the session store.
type SessionContext struct {
	ID             string             `json:"id"`
	Entity         *EntityContext     `json:"entity,omitempty"`
	History        []ConversationTurn `json:"history,omitempty"`
	PendingTopic   string             `json:"pending_topic,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	LastAccessedAt time.Time          `json:"last_accessed_at"`
}

// SessionSnapshot is an immutable copy of the session state handed to the
// intent detectors for one query. The Entity field carries only a still-valid
// entity; stale entries are dropped before the snapshot is taken.
type SessionSnapshot struct {
	ID           string
	Entity       *EntityContext
	History      []ConversationTurn
	PendingTopic string
}

// LastTurn returns the most recent turn, or nil when the history is empty.
func (s SessionSnapshot) LastTurn() *ConversationTurn {
	if len(s.History) == 0 {
		return nil
	}
	return &s.History[len(s.History)-1]
}

// LastResolvedBusiness reports the cached entity when it is a business.
func (s SessionSnapshot) LastResolvedBusiness() *EntityContext {
	if s.Entity != nil && s.Entity.Type == EntityBusiness {
		return s.Entity
	}
	return nil
}

// LastSuccessfulEntityName returns the name of the most recently resolved
// entity from a turn whose answer was not a visible data gap, falling back
// to the cached entity context.
func (s SessionSnapshot) LastSuccessfulEntityName() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		t := s.History[i]
		if len(t.RetrievedEntityNames) == 0 {
			continue
		}
		if ResponseHasDataGap(t.Response) {
			continue
		}
		return t.RetrievedEntityNames[0]
	}
	if s.Entity != nil {
		return s.Entity.Name
	}
	return ""
}

// ResponseHasDataGap reports whether an assistant response admitted it had
// no data, which disqualifies the turn as a referent for follow-ups.
func ResponseHasDataGap(response string) bool {
	r := strings.ToLower(response)
	return strings.Contains(r, "i don't have") ||
		strings.Contains(r, "i do not have") ||
		strings.Contains(r, "no information")
}
