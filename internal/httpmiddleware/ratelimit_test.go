package httpmiddleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_ExhaustsAndDenies(t *testing.T) {
	l := NewSimpleTokenBucket(3, 3)

	for i := 0; i < 3; i++ {
		assert.True(t, l.allow("1.2.3.4"), "request %d", i)
	}
	assert.False(t, l.allow("1.2.3.4"))
}

func TestTokenBucket_KeysAreIndependent(t *testing.T) {
	l := NewSimpleTokenBucket(1, 1)

	assert.True(t, l.allow("1.2.3.4"))
	assert.False(t, l.allow("1.2.3.4"))
	assert.True(t, l.allow("5.6.7.8"))
}

func TestTokenBucket_ZeroCapacityFallsBackToRate(t *testing.T) {
	l := NewSimpleTokenBucket(0, 5)
	assert.Equal(t, 5, l.capacity)
}
