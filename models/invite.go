package models

import (
	"slices"
	"time"
)

// InviteLink is a shareable code that brings new accounts into a group.
// At most one link per (owner, group) is active; older links are kept for history.
type InviteLink struct {
	Code      string    `db:"code"`
	OwnerID   string    `db:"owner_id"`
	GroupID   string    `db:"group_id"`
	CreatedAt time.Time `db:"created_at"`
	Active    bool      `db:"active"`
	TotalUses int       `db:"total_uses"`
	Redeemers []string  `db:"redeemers"`
}

// Clone returns a deep copy of the link
func (l *InviteLink) Clone() *InviteLink {
	if l == nil {
		return nil
	}
	c := *l
	c.Redeemers = slices.Clone(l.Redeemers)
	return &c
}

// Relationship is the referral edge from a child account to the account that invited it.
// The parent is set once and never changes.
type Relationship struct {
	ChildID     string     `db:"child_id"`
	ParentID    string     `db:"parent_id"`
	InviteCode  string     `db:"invite_code"`
	GroupID     string     `db:"group_id"`
	CreatedAt   time.Time  `db:"created_at"`
	ActivatedAt *time.Time `db:"activated_at"`
}

// IsActivated reports whether the child already joined the destination group
func (r *Relationship) IsActivated() bool {
	return r.ActivatedAt != nil
}

// Clone returns a copy of the edge
func (r *Relationship) Clone() *Relationship {
	if r == nil {
		return nil
	}
	c := *r
	c.ActivatedAt = cloneTime(r.ActivatedAt)
	return &c
}
