package serializer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type caseInsensitiveString string

func (s caseInsensitiveString) Equals(other any) bool {
	o, ok := other.(caseInsensitiveString)
	if !ok {
		return false
	}
	return lower(string(s)) == lower(string(o))
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

func TestEqualsUsesEquatableWhenPresent(t *testing.T) {
	assert.True(t, Equals(caseInsensitiveString("Hello"), caseInsensitiveString("hello")))
	assert.False(t, Equals(caseInsensitiveString("Hello"), caseInsensitiveString("world")))
}

func TestEqualsFallsBackToDeepEqual(t *testing.T) {
	assert.True(t, Equals(map[string]int{"a": 1}, map[string]int{"a": 1}))
	assert.False(t, Equals(map[string]int{"a": 1}, map[string]int{"a": 2}))
}

func TestEqualsChecksEitherSideForEquatable(t *testing.T) {
	assert.True(t, Equals(caseInsensitiveString("plain"), caseInsensitiveString("PLAIN")))
	assert.False(t, Equals(caseInsensitiveString("plain"), "PLAIN"))
}
