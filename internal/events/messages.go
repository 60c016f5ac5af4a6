package events

import (
	"encoding/json"
	"time"
)

// Invalidation announces that a group's data changed and every computed
// view of it older than Version is stale.
type Invalidation struct {
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewInvalidation stamps an invalidation with the current time.
func NewInvalidation(groupID, userID string, version int64) *Invalidation {
	return &Invalidation{
		GroupID:   groupID,
		UserID:    userID,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *Invalidation) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// InvalidationFromJSON decodes a message body.
func InvalidationFromJSON(data []byte) (*Invalidation, error) {
	var msg Invalidation
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
