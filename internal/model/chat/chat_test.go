package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPairKeyIsUnordered(t *testing.T) {
	assert.Equal(t, NewPairKey("alice", "bob"), NewPairKey("bob", "alice"))
	assert.Equal(t, "alice:bob", NewPairKey("bob", "alice").String())
}

func TestPairKeyOfRequiresTwoMembers(t *testing.T) {
	key, ok := PairKeyOf([]string{"zed", "amy"})
	assert.True(t, ok)
	assert.Equal(t, PairKey{"amy", "zed"}, key)

	_, ok = PairKeyOf([]string{"amy"})
	assert.False(t, ok)
	_, ok = PairKeyOf([]string{"amy", "bob", "cat"})
	assert.False(t, ok)
}

func TestTypeKnown(t *testing.T) {
	assert.True(t, TypePenpal.Known())
	assert.True(t, TypeOnetime.Known())
	assert.False(t, Type("group").Known())
}
