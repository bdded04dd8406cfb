package utils

import (
	"github.com/google/uuid"
)

// Session identifies one run of a node. It is sent with every transport
// message so the collector can tell a restarted node from a replayed one.
type Session struct {
	ID       uuid.UUID
	Hostname string
}

func NewSession(hostname string) Session {
	return Session{ID: uuid.New(), Hostname: hostname}
}

func (s Session) String() string {
	return s.Hostname + "/" + s.ID.String()
}
