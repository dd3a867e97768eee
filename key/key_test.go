package key

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenBasic(t *testing.T) {
	k := New("users", "42", "grp")
	flat, err := k.Flatten()
	assert.NoError(t, err)
	assert.Equal(t, "users$d$42$g$grp", flat)
}

func TestFlattenEmptySegmentsDistinctFromAbsent(t *testing.T) {
	withEmpty := New("users", "", "")
	flatEmpty, err := withEmpty.Flatten()
	assert.NoError(t, err)
	assert.Equal(t, "users$d$$g$", flatEmpty)

	withDynamic := New("users", "42", "")
	flatDynamic, err := withDynamic.Flatten()
	assert.NoError(t, err)
	assert.NotEqual(t, flatEmpty, flatDynamic)
}

func TestFlattenRejectsSeparatorByDefault(t *testing.T) {
	k := New("users", "has$d$separator", "")
	_, err := k.Flatten()
	assert.Error(t, err)
}

func TestFlattenEscapesWhenAllowed(t *testing.T) {
	k := New("users", "has$d$separator", "", AllowEscaping())
	flat, err := k.Flatten()
	assert.NoError(t, err)
	assert.NotContains(t, flat[len("users")+len(dynamicSep):len(flat)-len(groupSep)], "$d$")
}

func TestProviderPrefixMatchesAllDynamicKeys(t *testing.T) {
	prefix := ProviderPrefix("users")
	k1 := New("users", "1", "g1").MustFlatten()
	k2 := New("users", "2", "g2").MustFlatten()
	other := New("orders", "1", "g1").MustFlatten()

	assert.Contains(t, k1, prefix)
	assert.True(t, hasPrefix(k1, prefix))
	assert.True(t, hasPrefix(k2, prefix))
	assert.False(t, hasPrefix(other, prefix))
}

func TestDynamicKeyPrefixScopesToOneDynamicKey(t *testing.T) {
	prefix := DynamicKeyPrefix("users", "v1")
	matching := New("users", "v1", "g1").MustFlatten()
	other := New("users", "v2", "g1").MustFlatten()

	assert.True(t, hasPrefix(matching, prefix))
	assert.False(t, hasPrefix(other, prefix))
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}
