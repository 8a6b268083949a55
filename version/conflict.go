package version

import "regioncache/errs"

// wraparoundWindow is the 0x10000 threshold from spec §4.5 step 2 /
// VersionStamp::checkForConflict: entry-version differences larger than
// this are assumed to be 32-bit wraparound rather than a genuinely huge
// version jump.
const wraparoundWindow = 0x10000

// wraparoundBias is 2^32, added to whichever side of the comparison looks
// like it wrapped.
const wraparoundBias = int64(1) << 32

// ProcessVersionTag runs the conflict-resolution algorithm of spec §4.5
// against the entry's current stamp, under the caller's held segment lock.
// deltaCheck additionally requires the tag to be exactly one version ahead
// of the stamp and to reference the stamp's current member as its previous
// writer (steps described in VersionStamp::checkForDeltaConflict).
//
// On accept, the caller is responsible for copying tag into the stamp via
// Stamp.SetFromTag; ProcessVersionTag never mutates stamp itself, so a
// rejected write leaves the stamp provably untouched (spec testable
// property 4).
func ProcessVersionTag(members *MemberList, stamp Stamp, tag Tag, deltaCheck bool) error {
	// Step 1: no prior history on either side -> accept unconditionally.
	if stamp.IsZero() {
		return nil
	}
	if tag.IsZero() {
		return nil
	}

	stampVersion := int64(uint32(stamp.EntryVersion()))
	tagVersion := int64(uint32(tag.EntryVersion))

	// Step 2: 32-bit wraparound normalization.
	if stampVersion != 0 {
		diff := tagVersion - stampVersion
		if diff > wraparoundWindow || diff < -wraparoundWindow {
			if diff < 0 {
				tagVersion += wraparoundBias
			} else {
				stampVersion += wraparoundBias
			}
		}
	}

	// Step 3: delta-specific preconditions.
	if deltaCheck {
		if tagVersion != stampVersion+1 {
			return errs.ErrInvalidDelta
		}
		cmp, err := members.Compare(stamp.MemberID(), tag.PreviousMemberID)
		if err != nil {
			return errs.Wrap(errs.KindInvalidDelta, err, "delta previous-member lookup failed")
		}
		if cmp != 0 {
			return errs.ErrInvalidDelta
		}
	}

	apply := false
	switch {
	case stampVersion == 0 || stampVersion < tagVersion:
		// Step 4.
		apply = true
	case stampVersion > tagVersion:
		// Step 5.
		apply = false
	default:
		// Step 6: tie on entry-version, break on member ordering.
		cmp, err := members.Compare(stamp.MemberID(), tag.MemberID)
		if err != nil {
			return errs.Wrap(errs.KindState, err, "version tiebreak member lookup failed")
		}
		switch {
		case cmp < 0:
			apply = true
		case cmp > 0:
			apply = false
		default:
			// Equal stamp and tag member: local echo of our own write.
			apply = true
		}
	}

	if !apply {
		members.IncrConflatedEvents()
		return errs.ErrConcurrentMod
	}
	return nil
}
