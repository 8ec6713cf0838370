package app

import (
	"encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"testing"
)

func TestParentBuilds_Merge(t *testing.T) {
	a := ParentBuilds{1: {EventID: 10, Jobs: map[string]uint64{"A": 100}}}
	b := ParentBuilds{
		1: {EventID: 10, Jobs: map[string]uint64{"B": 101}},
		2: {EventID: 20, Jobs: map[string]uint64{"X": 200}},
	}

	t.Run("keeps every contributor", func(t *testing.T) {
		res := a.Merge(b)
		assert.Equal(t, uint64(100), res.BuildID(1, "A"))
		assert.Equal(t, uint64(101), res.BuildID(1, "B"))
		assert.Equal(t, uint64(200), res.BuildID(2, "X"))

		res = res.Merge(a)
		assert.Equal(t, uint64(101), res.BuildID(1, "B"))
	})

	t.Run("commutative and idempotent", func(t *testing.T) {
		assert.Equal(t, a.Merge(b), b.Merge(a))
		ab := a.Merge(b)
		assert.Equal(t, ab, ab.Merge(ab))
		assert.Equal(t, ab, ab.Merge(a))
	})

	t.Run("newer build wins", func(t *testing.T) {
		old := ParentBuilds{1: {EventID: 10, Jobs: map[string]uint64{"A": 100}}}
		newer := ParentBuilds{1: {EventID: 11, Jobs: map[string]uint64{"A": 150}}}
		assert.Equal(t, uint64(150), old.Merge(newer).BuildID(1, "A"))
		assert.Equal(t, uint64(150), newer.Merge(old).BuildID(1, "A"))
		assert.Equal(t, uint64(11), old.Merge(newer)[1].EventID)
	})

	t.Run("unknown member never erases a known build", func(t *testing.T) {
		unknown := ParentBuilds{}
		unknown.Require(1, "A")
		assert.Equal(t, uint64(100), a.Merge(unknown).BuildID(1, "A"))
		assert.Equal(t, uint64(100), unknown.Merge(a).BuildID(1, "A"))
	})

	t.Run("operands are not mutated", func(t *testing.T) {
		_ = a.Merge(b)
		assert.Len(t, a[1].Jobs, 1)
		_, exists := a[2]
		assert.False(t, exists)
	})
}

func TestParentBuilds_Missing(t *testing.T) {
	pb := ParentBuilds{}
	pb.Require(1, "A")
	pb.Require(1, "B")
	pb.Set(1, "B", 10, 101)

	assert.Equal(t, []string{"A"}, pb.Missing(1))
	assert.Empty(t, pb.Missing(2))
	assert.Equal(t, uint64(0), pb.BuildID(2, "X"))
}

func TestParentBuilds_Set(t *testing.T) {
	pb := ParentBuilds{}
	pb.Set(1, "A", 10, 101)
	pb.Set(1, "A", 9, 99)
	assert.Equal(t, uint64(101), pb.BuildID(1, "A"))
	assert.Equal(t, uint64(10), pb[1].EventID)
}

func TestParentBuilds_ParentBuildIDs(t *testing.T) {
	pb := ParentBuilds{
		1: {EventID: 10, Jobs: map[string]uint64{"A": 100, "B": 101, "C": 0}},
		2: {EventID: 20, Jobs: map[string]uint64{"X": 200}},
	}
	res := pb.ParentBuildIDs([]string{"A", "B", "C", "sd@2:X"}, 1, 101)
	assert.Equal(t, []uint64{101, 100, 200}, res)

	assert.Equal(t, []uint64{7}, ParentBuilds{}.ParentBuildIDs(nil, 1, 7))
}

func TestSeedParentBuilds(t *testing.T) {
	up := Upstream{
		Pipeline: Pipeline{ID: 1},
		Job:      Job{Name: "A"},
		Event:    Event{ID: 10},
		Build: Build{
			ID:           100,
			ParentBuilds: ParentBuilds{3: {EventID: 30, Jobs: map[string]uint64{"main": 300}}},
		},
	}

	pb := SeedParentBuilds(up, []string{"A", "B", "sd@2:X"}, 1)

	assert.Equal(t, uint64(100), pb.BuildID(1, "A"))
	assert.Equal(t, uint64(10), pb[1].EventID)
	assert.Equal(t, []string{"B"}, pb.Missing(1))
	assert.Equal(t, []string{"X"}, pb.Missing(2))
	assert.Equal(t, uint64(300), pb.BuildID(3, "main"))
}

func TestSeedParentBuilds_ExternalTarget(t *testing.T) {
	up := Upstream{
		Pipeline: Pipeline{ID: 1},
		Job:      Job{Name: "A"},
		Event:    Event{ID: 10},
		Build:    Build{ID: 100},
	}

	pb := SeedParentBuilds(up, []string{"sd@1:A", "Y"}, 2)

	assert.Equal(t, uint64(100), pb.BuildID(1, "A"))
	assert.Equal(t, []string{"Y"}, pb.Missing(2))
}

func TestParentBuilds_ValueScan(t *testing.T) {
	pb := ParentBuilds{1: {EventID: 10, Jobs: map[string]uint64{"A": 100}}}
	v, err := pb.Value()
	require.NoError(t, err)

	var res ParentBuilds
	require.NoError(t, res.Scan(v))
	assert.Equal(t, pb, res)

	require.NoError(t, res.Scan(nil))
	assert.Empty(t, res)

	require.NoError(t, res.Scan(`{"2":{"eventId":20,"jobs":{"X":200}}}`))
	assert.Equal(t, uint64(200), res.BuildID(2, "X"))

	assert.Error(t, res.Scan(42))

	v, err = ParentBuilds(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)
}

func TestParentBuilds_JSON(t *testing.T) {
	data, err := json.Marshal(ParentBuilds{1: {EventID: 10, Jobs: map[string]uint64{"A": 100}}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"1":{"eventId":10,"jobs":{"A":100}}}`, string(data))
}
