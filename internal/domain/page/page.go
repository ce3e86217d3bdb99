package page

import (
	"fmt"
	"time"
)

// Page is one annotated document: one record per
// (uriaddress, userid, isbookmark) tuple. Child annotation mutations bump
// the updated timestamp.
type Page struct {
	id           string
	uriAddress   string
	title        string
	description  string
	userID       string
	isBookmark   bool
	tags         []string
	numberShared int
	isDeleted    bool
	created      time.Time
	updated      time.Time
}

// New validates and creates a Page.
func New(id, uriAddress, userID, title, description string, isBookmark bool, tags []string, now time.Time) (Page, error) {
	if id == "" {
		return Page{}, fmt.Errorf("page id is required")
	}
	if uriAddress == "" {
		return Page{}, fmt.Errorf("uriaddress is required")
	}
	if userID == "" {
		return Page{}, fmt.Errorf("userid is required")
	}
	return Page{
		id:          id,
		uriAddress:  uriAddress,
		title:       title,
		description: description,
		userID:      userID,
		isBookmark:  isBookmark,
		tags:        tags,
		created:     now,
		updated:     now,
	}, nil
}

// Reconstruct creates a Page without validation (storage hydration).
func Reconstruct(
	id, uriAddress, title, description, userID string,
	isBookmark bool, tags []string, numberShared int, isDeleted bool,
	created, updated time.Time,
) Page {
	return Page{
		id: id, uriAddress: uriAddress, title: title, description: description,
		userID: userID, isBookmark: isBookmark, tags: tags,
		numberShared: numberShared, isDeleted: isDeleted,
		created: created, updated: updated,
	}
}

// ID returns the page identifier.
func (p *Page) ID() string { return p.id }

// URIAddress returns the page URI.
func (p *Page) URIAddress() string { return p.uriAddress }

// Title returns the page title.
func (p *Page) Title() string { return p.title }

// Description returns the page description.
func (p *Page) Description() string { return p.description }

// UserID returns the owner userid.
func (p *Page) UserID() string { return p.userID }

// IsBookmark reports whether the record is a bookmark rather than an
// annotated page.
func (p *Page) IsBookmark() bool { return p.isBookmark }

// Tags returns the page tags.
func (p *Page) Tags() []string { return p.tags }

// NumberShared returns how many times the page has been shared.
func (p *Page) NumberShared() int { return p.numberShared }

// IsDeleted reports soft deletion.
func (p *Page) IsDeleted() bool { return p.isDeleted }

// Created returns the creation timestamp.
func (p *Page) Created() time.Time { return p.created }

// Updated returns the last-mutation timestamp.
func (p *Page) Updated() time.Time { return p.updated }
