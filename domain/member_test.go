package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestToViews_MarksOnlySelf(t *testing.T) {
	req := require.New(t)
	members := []Member{
		{ID: "host", Name: "desk"},
		{ID: "alice", Name: "laptop", Addr: "10.0.0.2:51000"},
		{ID: "bob"},
	}

	views := ToViews(members, "alice")

	req.Len(views, 3)
	self := 0
	for _, v := range views {
		if v.IsSelf {
			self++
			req.Equal(MemberID("alice"), v.ID)
		}
	}
	req.Equal(1, self)
	req.Equal(MemberID("host"), views[0].ID)
}

func TestRole_Active(t *testing.T) {
	req := require.New(t)
	req.True(RoleHosting.Active())
	req.True(RoleConnected.Active())
	req.False(RoleJoining.Active())
	req.False(RoleOff.Active())
}
