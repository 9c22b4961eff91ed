package utils

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedup(t *testing.T) {
	got := Dedup([]string{"http://a/", "http://a", "", "http://b"})
	assert.Equal(t, []string{"http://a", "http://b"}, got)
}

func TestDrainAndClose(t *testing.T) {
	assert.NoError(t, DrainAndClose(nil))
	assert.NoError(t, DrainAndClose(io.NopCloser(strings.NewReader("body"))))
}
