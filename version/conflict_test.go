package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringMember string

func (s stringMember) Key() string { return string(s) }
func (s stringMember) CompareTo(other Descriptor) int {
	o := other.(stringMember)
	switch {
	case s < o:
		return -1
	case s > o:
		return 1
	default:
		return 0
	}
}

func TestMemberListAddIsIdempotent(t *testing.T) {
	ml := NewMemberList()
	id1 := ml.Add(stringMember("member-a"))
	id2 := ml.Add(stringMember("member-a"))
	assert.Equal(t, id1, id2)

	id3 := ml.Add(stringMember("member-b"))
	assert.NotEqual(t, id1, id3)
}

func TestProcessVersionTag_NoPriorHistoryAccepts(t *testing.T) {
	ml := NewMemberList()
	var stamp Stamp
	err := ProcessVersionTag(ml, stamp, Tag{}, false)
	assert.NoError(t, err)
}

func TestProcessVersionTag_RejectsStaleWrite(t *testing.T) {
	ml := NewMemberList()
	m7 := ml.Add(stringMember("member-7"))

	var stamp Stamp
	stamp.SetFromTag(Tag{EntryVersion: 3, RegionVersionHigh: 0, RegionVersionLow: 5, MemberID: m7})

	incoming := Tag{EntryVersion: 2, RegionVersionLow: 4, MemberID: m7}
	err := ProcessVersionTag(ml, stamp, incoming, false)
	require.Error(t, err)

	// Scenario B from spec §8: stamp and value must be unchanged. Since
	// ProcessVersionTag never mutates stamp, re-reading it proves this.
	assert.Equal(t, int32(3), stamp.EntryVersion())
}

func TestProcessVersionTag_AcceptsNewerWrite(t *testing.T) {
	ml := NewMemberList()
	m1 := ml.Add(stringMember("member-1"))

	var stamp Stamp
	stamp.SetFromTag(Tag{EntryVersion: 1, MemberID: m1})

	err := ProcessVersionTag(ml, stamp, Tag{EntryVersion: 2, MemberID: m1}, false)
	assert.NoError(t, err)
}

func TestProcessVersionTag_WraparoundNormalization(t *testing.T) {
	ml := NewMemberList()
	m1 := ml.Add(stringMember("member-1"))

	var stamp Stamp
	// stamp near max int32, tag wrapped back near zero: should be treated
	// as "tag is newer" once normalized.
	stamp.SetFromTag(Tag{EntryVersion: int32(0x7FFFFFF0), MemberID: m1})
	err := ProcessVersionTag(ml, stamp, Tag{EntryVersion: 2, MemberID: m1}, false)
	assert.NoError(t, err)
}

func TestProcessVersionTag_EqualVersionAndMemberAcceptsEcho(t *testing.T) {
	ml := NewMemberList()
	m1 := ml.Add(stringMember("member-1"))

	var stamp Stamp
	stamp.SetFromTag(Tag{EntryVersion: 5, MemberID: m1})

	err := ProcessVersionTag(ml, stamp, Tag{EntryVersion: 5, MemberID: m1}, false)
	assert.NoError(t, err, "equal stamp/tag must accept for local echo idempotence")
}

func TestProcessVersionTag_DeltaRequiresExactlyOneAhead(t *testing.T) {
	ml := NewMemberList()
	m1 := ml.Add(stringMember("member-1"))

	var stamp Stamp
	stamp.SetFromTag(Tag{EntryVersion: 10, MemberID: m1})

	// Scenario C from spec §8: delta tag entryVer==10 (not +1) -> invalid-delta.
	err := ProcessVersionTag(ml, stamp, Tag{EntryVersion: 10, MemberID: m1, PreviousMemberID: m1}, true)
	require.Error(t, err)

	// A refetched full object carries entryVer=11 and applies cleanly.
	var refreshed Stamp
	refreshed.SetFromStamp(stamp)
	err = ProcessVersionTag(ml, refreshed, Tag{EntryVersion: 11, MemberID: m1}, false)
	require.NoError(t, err)
	refreshed.SetFromTag(Tag{EntryVersion: 11, MemberID: m1})
	assert.Equal(t, int32(11), refreshed.EntryVersion())
}

func TestProcessVersionTag_DeltaRequiresMatchingPreviousMember(t *testing.T) {
	ml := NewMemberList()
	m1 := ml.Add(stringMember("member-1"))
	m2 := ml.Add(stringMember("member-2"))

	var stamp Stamp
	stamp.SetFromTag(Tag{EntryVersion: 4, MemberID: m1})

	err := ProcessVersionTag(ml, stamp, Tag{EntryVersion: 5, MemberID: m2, PreviousMemberID: m2}, true)
	require.Error(t, err)
}
