package node

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPreviewPassesThroughShortContent(t *testing.T) {
	assert.Equal(t, "hello", preview("hello"))
}

func TestPreviewTruncatesLongContent(t *testing.T) {
	content := strings.Repeat("a", 500)
	got := preview(content)
	assert.Len(t, got, 120)
	assert.Equal(t, content[:120], got)
}
