package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`{"score": 7}`, `{"score": 7}`},
		{"```json\n{\"score\": 7}\n```", `{"score": 7}`},
		{"```\n{\"score\": 7}\n```", `{"score": 7}`},
		{"  {\"score\": 7}  ", `{"score": 7}`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, stripFences(tc.in))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
	assert.Equal(t, "ab...", truncate("abcdef", 2))
	assert.Equal(t, "whatever", truncate("whatever", 0))
}

func TestNewClaudeDefaults(t *testing.T) {
	c := NewClaude(ClaudeOptions{APIKey: "k"})
	assert.NotEmpty(t, c.model)
	assert.Equal(t, int64(1024), c.maxTokens)
}
