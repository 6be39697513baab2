package terminal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	cases := []struct {
		code int
		want string
	}{
		{0, "Check In"},
		{1, "Check Out"},
		{2, "Break Out"},
		{3, "Break In"},
		{4, "Overtime In"},
		{5, "Overtime Out"},
		{6, "Unknown (6)"},
		{-1, "Unknown (-1)"},
		{255, "Unknown (255)"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(tc.code))
	}
}
