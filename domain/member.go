// Package domain contains core concepts of the clipboard queue.
// This file defines Member entities and related invariants.
package domain

import "time"

type MemberID string

// Member is a queue participant as the host advertises it on the wire.
type Member struct {
	ID   MemberID `json:"id"`
	Name string   `json:"name,omitempty"`
	Addr string   `json:"addr,omitempty"`
}

// MemberView is a member as seen by one local process: exactly one view is the process itself.
type MemberView struct {
	ID     MemberID `json:"id"`
	Name   string   `json:"name,omitempty"`
	Addr   string   `json:"addr,omitempty"`
	IsSelf bool     `json:"is_self"`
	// LastSeen is set for members this process holds a link to.
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// ToViews marks the entry matching self. Order is preserved.
func ToViews(members []Member, self MemberID) []MemberView {
	views := make([]MemberView, 0, len(members))
	for _, m := range members {
		views = append(views, MemberView{ID: m.ID, Name: m.Name, Addr: m.Addr, IsSelf: m.ID == self})
	}
	return views
}
