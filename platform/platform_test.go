package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOlderID(t *testing.T) {
	assert.True(t, OlderID("999", "1000"))
	assert.True(t, OlderID("1000", "1001"))
	assert.False(t, OlderID("1001", "1000"))
	assert.False(t, OlderID("1000", "1000"))
}

func TestMentions(t *testing.T) {
	assert.Equal(t, "<@42>", Mention("42"))
	assert.Equal(t, "<@&7>", MentionRole("7"))
}
