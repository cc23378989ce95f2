// Package model defines the data structures shared by the server and the client.
// The `json:"..."` tags are the wire format of the HTTP API and of the
// on-disk collections, so renaming a tag is a breaking change for both.
package model

import (
	"strings"
	"time"
)

const (
	// DefaultAuthor is the author shown for posts persisted without one.
	DefaultAuthor = "Anonymous"

	// LocalIDPrefix starts every id minted by the client for a record the
	// server has not accepted. Server ids are bare xids and never start with it.
	LocalIDPrefix = "local-"
)

// Post is a single entry in the feed.
//
// OWNERSHIP:
// The server's posts collection owns Post records. The client only mirrors them,
// except for local-only posts (Local == true) that were created while the server
// was unreachable. Those carry an id with the LocalIDPrefix so they never collide
// with a server-minted id.
type Post struct {
	ID             string    `json:"id"`
	Author         string    `json:"author"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	Image          string    `json:"image,omitempty"` // URL or data URI
	Comments       []Comment `json:"comments"`
	LikedBy        []string  `json:"likedBy"`
	AnonymousLikes int       `json:"anonymousLikes"`

	// Local marks a client-only record that the server has not confirmed.
	// The server never sets it.
	Local bool `json:"_local,omitempty"`
}

// Comment is a child record appended to a Post. Comments are never edited or
// deleted on their own; slice order is display order.
type Comment struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Likes returns the count reported by the like endpoint: named likes plus the
// anonymous counter.
func (p *Post) Likes() int {
	return len(p.LikedBy) + p.AnonymousLikes
}

// Normalize fills in the optional fields that older records may be missing.
//
// Records written by earlier versions of the site have no comments, likedBy,
// or anonymousLikes keys at all. Normalizing once at the service boundary
// means nothing downstream has to nil-check them.
func (p *Post) Normalize() {
	if strings.TrimSpace(p.Author) == "" {
		p.Author = DefaultAuthor
	}
	if p.Comments == nil {
		p.Comments = []Comment{}
	}
	if p.LikedBy == nil {
		p.LikedBy = []string{}
	}
	if p.AnonymousLikes < 0 {
		p.AnonymousLikes = 0
	}
}

// Clone returns a deep copy so callers can mutate the result without touching
// the slices of the receiver.
func (p Post) Clone() Post {
	out := p
	if p.Comments != nil {
		out.Comments = append([]Comment(nil), p.Comments...)
	}
	if p.LikedBy != nil {
		out.LikedBy = append([]string(nil), p.LikedBy...)
	}
	return out
}
