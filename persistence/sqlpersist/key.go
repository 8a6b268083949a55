package sqlpersist

import "fmt"

// toKeyString renders an arbitrary region key as the table's entry_key
// column value, the same %v stringification redisremote uses for its key
// namespace so a key collides identically across both backing stores.
func toKeyString(key any) string {
	return fmt.Sprintf("%v", key)
}
