package region

// approxSize is the region layer's caller-supplied estimator for
// eviction.LRUEntriesMap.Track/Untrack (spec §4.4: "keySize/valueSize are
// caller-estimated byte counts"). It deliberately avoids reflection, the
// same restraint the eviction package documents for itself.
func approxSize(v any) int64 {
	switch x := v.(type) {
	case string:
		return int64(len(x)) + 16
	case []byte:
		return int64(len(x)) + 16
	case nil:
		return 0
	default:
		return 64
	}
}
