package version

import "time"

// Tag is the inbound/outbound version descriptor (spec §3): what a remote
// operation returns, or what a notification carries, describing the write
// it is asking the local cache to apply.
type Tag struct {
	EntryVersion      int32
	RegionVersionHigh uint16
	RegionVersionLow  uint32
	MemberID          uint16
	PreviousMemberID  uint16
	Timestamp         time.Time
	Flags             uint8
}

// IsZero reports whether the tag carries no history at all — the "no prior
// history" case in the conflict algorithm (spec §4.5 step 1).
func (t Tag) IsZero() bool {
	return t.EntryVersion == 0 && t.RegionVersionHigh == 0 &&
		t.RegionVersionLow == 0 && t.MemberID == 0
}

// Stamp is the compact stored form of a version tag attached to a MapEntry:
// entry-version split into a high byte and low 16 bits (24 bits total),
// region-version split into 16 high bits and 32 low bits (48 bits total),
// and a 16-bit interned member id — laid out exactly as spec §3 describes.
type Stamp struct {
	entryVersionHighByte  uint8
	entryVersionLowBytes  uint16
	regionVersionHighBits uint16
	regionVersionLowBits  uint32
	memberID              uint16
}

// EntryVersion reconstructs the 24-bit entry version as a plain int32.
func (s Stamp) EntryVersion() int32 {
	return (int32(s.entryVersionHighByte) << 16) | int32(s.entryVersionLowBytes)
}

// RegionVersion reconstructs the 48-bit region version as an int64.
func (s Stamp) RegionVersion() int64 {
	return (int64(s.regionVersionHighBits) << 32) | int64(s.regionVersionLowBits)
}

// MemberID returns the interned id of the member that last wrote this stamp.
func (s Stamp) MemberID() uint16 { return s.memberID }

// IsZero mirrors Tag.IsZero: true when no write has ever stamped this entry.
func (s Stamp) IsZero() bool {
	return s.EntryVersion() == 0 && s.RegionVersion() == 0 && s.memberID == 0
}

// SetFromTag copies tag fields into the stamp's compact representation.
// Called only after the conflict check in processVersionTag accepts the
// write (spec §4.5, final paragraph).
func (s *Stamp) SetFromTag(tag Tag) {
	ev := uint32(tag.EntryVersion)
	s.entryVersionLowBytes = uint16(ev & 0xffff)
	s.entryVersionHighByte = uint8((ev & 0xff0000) >> 16)
	s.regionVersionHighBits = tag.RegionVersionHigh
	s.regionVersionLowBits = tag.RegionVersionLow
	s.memberID = tag.MemberID
}

// SetFromStamp copies another stamp's fields wholesale — used when an
// in-place recreate (tombstone -> fresh entry) wants to carry the accepted
// stamp forward without re-deriving it from a tag.
func (s *Stamp) SetFromStamp(other Stamp) {
	*s = other
}
