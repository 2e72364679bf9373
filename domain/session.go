// Package domain contains core concepts of the clipboard queue.
// This file defines the queue session roles and the status snapshot.
// No runtime, network, or UI logic should be added here.
package domain

type Role string

const (
	RoleOff       Role = "off"
	RoleHosting   Role = "hosting"
	RoleJoining   Role = "joining"
	RoleConnected Role = "connected"
)

// Active reports whether the role owns live sockets.
func (r Role) Active() bool {
	return r == RoleHosting || r == RoleConnected
}

// QueueStatus is the snapshot published on every role or connection transition.
type QueueStatus struct {
	Role      Role   `json:"role"`
	Connected bool   `json:"connected"`
	Host      string `json:"host,omitempty"`
	Port      int    `json:"port,omitempty"`
	SelfID    string `json:"self_id"`
	SelfName  string `json:"self_name,omitempty"`
	QueueName string `json:"queue_name,omitempty"`
}

// OffStatus is what a queue reports once every socket has been released.
func OffStatus(selfID, selfName string) QueueStatus {
	return QueueStatus{Role: RoleOff, SelfID: selfID, SelfName: selfName}
}
