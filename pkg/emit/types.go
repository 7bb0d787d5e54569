package emit

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Scope is the targeting mode of an emit request.
type Scope string

const (
	ScopeWorkspace Scope = "workspace"
	ScopeUser      Scope = "user"
	ScopeUsers     Scope = "users"
)

// Valid reports whether s is one of the three known scopes.
func (s Scope) Valid() bool {
	switch s {
	case ScopeWorkspace, ScopeUser, ScopeUsers:
		return true
	}
	return false
}

// Request is the body of POST /emit.
type Request struct {
	Scope   Scope           `json:"scope"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`

	// UserID is required when Scope == ScopeUser.
	UserID string `json:"userId,omitempty"`

	// UserIDs is required when Scope == ScopeUsers. Entries are trimmed and
	// de-duplicated before routing.
	UserIDs []string `json:"userIds,omitempty"`
}

// Response is the body returned by POST /emit.
type Response struct {
	OK bool `json:"ok"`

	// Recipients is set for scope "users" only: the number of distinct
	// user ids addressed. It says nothing about live deliveries.
	Recipients int `json:"recipients,omitempty"`

	Error string `json:"error,omitempty"`
}

// ValidationError describes why a Request was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks the scope-specific required fields. It never mutates r.
func (r *Request) Validate() error {
	if r.Scope == "" {
		return &ValidationError{Field: "scope", Message: "scope is required"}
	}
	if !r.Scope.Valid() {
		return &ValidationError{
			Field:   "scope",
			Message: fmt.Sprintf("scope %q unknown: want workspace|user|users", string(r.Scope)),
		}
	}
	if strings.TrimSpace(r.Event) == "" {
		return &ValidationError{Field: "event", Message: "event is required"}
	}

	switch r.Scope {
	case ScopeUser:
		if strings.TrimSpace(r.UserID) == "" {
			return &ValidationError{Field: "userId", Message: "userId is required for scope user"}
		}
	case ScopeUsers:
		if len(r.Targets()) == 0 {
			return &ValidationError{
				Field:   "userIds",
				Message: "userIds must contain at least one non-empty id for scope users",
			}
		}
	}
	return nil
}

// Targets returns the user ids addressed by r: the trimmed UserID for scope
// user, the trimmed and de-duplicated UserIDs (first-seen order) for scope
// users, and nil for scope workspace.
func (r *Request) Targets() []string {
	switch r.Scope {
	case ScopeUser:
		if id := strings.TrimSpace(r.UserID); id != "" {
			return []string{id}
		}
	case ScopeUsers:
		seen := make(map[string]struct{}, len(r.UserIDs))
		out := make([]string, 0, len(r.UserIDs))
		for _, id := range r.UserIDs {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
		return out
	}
	return nil
}

// PayloadOrNull returns the payload to forward, substituting JSON null when
// the request carried none.
func (r *Request) PayloadOrNull() json.RawMessage {
	if len(r.Payload) == 0 {
		return json.RawMessage("null")
	}
	return r.Payload
}
