package models

import (
	"time"
)

// State is a collection run's lifecycle state
type State string

const (
	StatePending    State = "pending"
	StateCollecting State = "collecting"
	StateEnriching  State = "enriching"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// IsTerminal reports whether no further transition is expected from s
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// CollectionStatus is the externally observable progress record of one run
type CollectionStatus struct {
	CollectionID   string           `json:"collection_id" bson:"_id"`
	UserID         string           `json:"user_id" bson:"user_id"`
	OrgID          string           `json:"org_id,omitempty" bson:"org_id,omitempty"`
	Status         State            `json:"status" bson:"status"`
	ErrorMessage   string           `json:"error_message,omitempty" bson:"error_message,omitempty"`
	PostsCollected int64            `json:"posts_collected" bson:"posts_collected"`
	PostsEnriched  int64            `json:"posts_enriched" bson:"posts_enriched"`
	PostsEmbedded  int64            `json:"posts_embedded" bson:"posts_embedded"`
	Config         CollectionConfig `json:"config" bson:"config"`
	CreatedAt      time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" bson:"updated_at"`
}

// StatusUpdate is a partial update; nil fields are left untouched
type StatusUpdate struct {
	Status         *State
	ErrorMessage   *string
	PostsCollected *int64
	PostsEnriched  *int64
	PostsEmbedded  *int64
}

// Fields returns the non-nil fields keyed by their stored names
func (u StatusUpdate) Fields() map[string]any {
	fields := make(map[string]any)
	if u.Status != nil {
		fields["status"] = *u.Status
	}
	if u.ErrorMessage != nil {
		fields["error_message"] = *u.ErrorMessage
	}
	if u.PostsCollected != nil {
		fields["posts_collected"] = *u.PostsCollected
	}
	if u.PostsEnriched != nil {
		fields["posts_enriched"] = *u.PostsEnriched
	}
	if u.PostsEmbedded != nil {
		fields["posts_embedded"] = *u.PostsEmbedded
	}
	return fields
}

// Apply copies the non-nil fields onto s
func (u StatusUpdate) Apply(s *CollectionStatus) {
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.ErrorMessage != nil {
		s.ErrorMessage = *u.ErrorMessage
	}
	if u.PostsCollected != nil {
		s.PostsCollected = *u.PostsCollected
	}
	if u.PostsEnriched != nil {
		s.PostsEnriched = *u.PostsEnriched
	}
	if u.PostsEmbedded != nil {
		s.PostsEmbedded = *u.PostsEmbedded
	}
}

// SetState builds an update that only changes the state
func SetState(s State) StatusUpdate {
	return StatusUpdate{Status: &s}
}

// Failed builds an update marking the run failed with msg
func Failed(msg string) StatusUpdate {
	s := StateFailed
	return StatusUpdate{Status: &s, ErrorMessage: &msg}
}
