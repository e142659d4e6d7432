package jsonrepair

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscore/pkg/anthropic"
)

type fakeClient struct {
	reply string
	err   error
	calls int
	last  string
}

func (f *fakeClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.calls++
	f.last = req.Messages[0].Content
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.reply}},
	}, nil
}

func TestCleanBareJSON(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, Clean(`{"a": 1}`))
}

func TestCleanFencedJSON(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, Clean("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, Clean("```\n{\"a\": 1}\n```"))
}

func TestCleanWhitespace(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, Clean("  \n{\"a\": 1}\n  "))
}

func TestCleanIdempotent(t *testing.T) {
	inputs := []string{
		`{"a": 1}`,
		"```json\n{\"a\": 1}\n```",
		`[1, 2, 3]`,
	}
	for _, in := range inputs {
		once := Clean(in)
		assert.Equal(t, once, Clean(once))
	}
}

func TestParseDirectSuccess(t *testing.T) {
	client := &fakeClient{}
	r := New(client, "test-model")

	v, err := r.Parse(context.Background(), `{"tech_stack": "Shopify"}`, "an object")
	require.NoError(t, err)

	obj, ok := v.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Shopify", obj["tech_stack"])
	// No fixer round trip for valid JSON.
	assert.Equal(t, 0, client.calls)
}

func TestParseFencedSuccess(t *testing.T) {
	client := &fakeClient{}
	r := New(client, "test-model")

	v, err := r.Parse(context.Background(), "```json\n{\"score\": 0.5}\n```", "an object")
	require.NoError(t, err)
	assert.Equal(t, 0.5, v.(map[string]any)["score"])
	assert.Equal(t, 0, client.calls)
}

func TestParseRepairRoundTrip(t *testing.T) {
	client := &fakeClient{reply: `{"score": 0.5}`}
	r := New(client, "test-model")

	v, err := r.Parse(context.Background(), `Sure! The score is {"score": 0.5`, "a JSON object with key score")
	require.NoError(t, err)
	assert.Equal(t, 0.5, v.(map[string]any)["score"])

	require.Equal(t, 1, client.calls)
	assert.Contains(t, client.last, "a JSON object with key score")
	assert.Contains(t, client.last, `{"score": 0.5`)
}

func TestParseRepairAlsoFails(t *testing.T) {
	client := &fakeClient{reply: "still not json"}
	r := New(client, "test-model")

	_, err := r.Parse(context.Background(), "not json at all", "an object")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnparsable)
	assert.Equal(t, 1, client.calls)
}

func TestParseFixerCallFails(t *testing.T) {
	client := &fakeClient{err: fmt.Errorf("api down")}
	r := New(client, "test-model")

	_, err := r.Parse(context.Background(), "garbage", "an object")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnparsable)
}

func TestParseArray(t *testing.T) {
	client := &fakeClient{}
	r := New(client, "test-model")

	v, err := r.Parse(context.Background(), `[{"a": 1}]`, "an array")
	require.NoError(t, err)
	list, ok := v.([]any)
	require.True(t, ok)
	assert.Len(t, list, 1)
}
