package webchat

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSystemPromptStampsDate(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := SystemPrompt(now)

	require.Contains(t, p, "You are Lumina")
	require.Contains(t, p, "Today's date is Friday, March 1, 2024.")

	// pure function of its input
	require.Equal(t, p, SystemPrompt(now))
	require.NotEqual(t, p, SystemPrompt(now.Add(24*time.Hour)))
}

func TestWrapFirstMessage(t *testing.T) {
	wrapped := WrapFirstMessage("Chapter 3: Photosynthesis", "What does chlorophyll do?")

	require.Contains(t, wrapped, "[Student is working on the following content]")
	require.Contains(t, wrapped, `"Chapter 3: Photosynthesis"`)
	require.Contains(t, wrapped, "[Student's question/message]")
	require.True(t, strings.HasSuffix(wrapped, "What does chlorophyll do?"))
}
