package domain

import (
	"time"

	"github.com/google/uuid"
)

// AnonymousUserID is the sentinel user ID used for unauthenticated requests.
const AnonymousUserID = "anonymous"

// User is the identity attached to a request by the auth middleware.
// Identity is provided by an external OAuth-backed identity provider;
// this service only consumes the resulting claims.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// AnonymousUser returns the sentinel user for unauthenticated requests.
func AnonymousUser() User {
	return User{ID: AnonymousUserID, Name: "Anonymous User"}
}

// IsAnonymous reports whether the user is the unauthenticated sentinel.
func (u User) IsAnonymous() bool {
	return u.ID == AnonymousUserID || u.ID == ""
}

// Profile is a user's saved default search: the topics and authors used
// when the feed is requested without explicit query parameters.
type Profile struct {
	Topics    []string  `json:"topics"`
	Authors   []string  `json:"authors"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FeedbackAction is a user's rating of a paper.
type FeedbackAction string

// Feedback actions.
const (
	FeedbackLiked    FeedbackAction = "liked"
	FeedbackDisliked FeedbackAction = "disliked"
)

// Feedback holds all of a user's paper ratings. Rated paper IDs are used
// as a filter predicate when assembling feed results.
type Feedback struct {
	Liked    []string `json:"liked"`
	Disliked []string `json:"disliked"`
}

// RatedIDs returns the set of all paper IDs the user has rated either way.
func (f Feedback) RatedIDs() map[string]bool {
	ids := make(map[string]bool, len(f.Liked)+len(f.Disliked))
	for _, id := range f.Liked {
		ids[id] = true
	}
	for _, id := range f.Disliked {
		ids[id] = true
	}
	return ids
}

// Folder is a user-named collection of saved papers.
type Folder struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	PaperIDs  []string  `json:"paper_ids,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
