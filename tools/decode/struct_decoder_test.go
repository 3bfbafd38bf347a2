package decode

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sendPayload struct {
	RecipientID string   `json:"recipientId"`
	Content     string   `json:"content"`
	MessageIDs  []string `json:"messageIds"`
	Limit       int      `json:"limit"`
	IsTyping    bool     `json:"isTyping"`
}

func TestMapFromJSONPayload(t *testing.T) {
	var m map[string]any
	raw := `{"recipientId":"bob","content":"hi","messageIds":["a","b"],"limit":50,"isTyping":true}`
	require.NoError(t, json.Unmarshal([]byte(raw), &m))

	p, err := Map[sendPayload](m)
	require.NoError(t, err)
	assert.Equal(t, "bob", p.RecipientID)
	assert.Equal(t, "hi", p.Content)
	assert.Equal(t, []string{"a", "b"}, p.MessageIDs)
	assert.Equal(t, 50, p.Limit)
	assert.True(t, p.IsTyping)
}

func TestMapWeakTyping(t *testing.T) {
	// encoding/json hands numbers over as float64, and sloppy clients send
	// numeric ids inside string slices.
	p, err := Map[sendPayload](map[string]any{
		"limit":      float64(25),
		"messageIds": []any{"x", float64(7)},
		"isTyping":   "true",
	})
	require.NoError(t, err)
	assert.Equal(t, 25, p.Limit)
	assert.Equal(t, []string{"x", "7"}, p.MessageIDs)
	assert.True(t, p.IsTyping)
}

func TestMapNilPayload(t *testing.T) {
	_, err := Map[sendPayload](nil)
	require.Error(t, err)
}

func TestReadString(t *testing.T) {
	m := map[string]any{"token": "abc", "count": float64(3)}

	got, err := ReadString(m, "token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	_, err = ReadString(m, "count")
	require.Error(t, err)
	_, err = ReadString(m, "missing")
	require.Error(t, err)
	_, err = ReadString(nil, "token")
	require.Error(t, err)
}
