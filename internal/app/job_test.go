package app

import (
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestJob_PR(t *testing.T) {
	pr := Job{Name: "PR-15:main"}
	assert.True(t, pr.IsPR())
	assert.Equal(t, "main", pr.OriginalName())

	j := Job{Name: "main"}
	assert.False(t, j.IsPR())
	assert.Equal(t, "main", j.OriginalName())
}

func TestJob_Join(t *testing.T) {
	j := Job{Join: []string{"A", "sd@2:X"}}
	assert.True(t, j.IsJoin())
	assert.True(t, j.JoinsOn("sd@2:X"))
	assert.False(t, j.JoinsOn("sd@3:X"))
	assert.False(t, Job{}.IsJoin())
}

func TestEvent_GroupID(t *testing.T) {
	assert.Equal(t, uint64(5), Event{ID: 5}.GroupID())
	assert.Equal(t, uint64(2), Event{ID: 5, GroupEventID: 2}.GroupID())
}

func TestBuild_HasParent(t *testing.T) {
	b := Build{ParentBuildIDs: []uint64{3, 4}}
	assert.True(t, b.HasParent(4))
	assert.False(t, b.HasParent(5))
}
