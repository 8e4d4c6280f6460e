package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollectFromChannel(t *testing.T) {
	updates := make(chan string, 4)
	updates <- "1/A streaming"
	updates <- "1/A draining"
	close(updates)
	assert.Equal(t, []string{"1/A streaming", "1/A draining"}, CollectFromChannel(updates))

	empty := make(chan string)
	close(empty)
	assert.Empty(t, CollectFromChannel(empty))
}
