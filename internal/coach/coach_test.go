package coach

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/sadopc/pomodash/internal/errors"
)

type fakeModel struct {
	reply    *llms.ContentResponse
	err      error
	messages []llms.MessageContent
	calls    int
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.calls++
	f.messages = messages
	return f.reply, f.err
}

func reply(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func TestGenerate(t *testing.T) {
	m := &fakeModel{reply: reply("  Take a walk after session four.\n")}
	c := NewWithModel(m)

	out, err := c.Generate(context.Background(), "How should I rest?")
	require.NoError(t, err)
	assert.Equal(t, "Take a walk after session four.", out)

	require.Len(t, m.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, m.messages[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, m.messages[1].Role)
	assert.Equal(t, llms.TextPart("How should I rest?"), m.messages[1].Parts[0])
}

func TestGenerate_EmptyPrompt(t *testing.T) {
	m := &fakeModel{reply: reply("x")}
	_, err := NewWithModel(m).Generate(context.Background(), "   ")
	assert.ErrorIs(t, err, errors.ErrCoachUnavailable)
	assert.Zero(t, m.calls)
}

func TestGenerate_NoChoices(t *testing.T) {
	tests := []struct {
		name  string
		reply *llms.ContentResponse
	}{
		{"nil response", nil},
		{"no choices", &llms.ContentResponse{}},
		{"blank content", reply("  ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWithModel(&fakeModel{reply: tt.reply}).Generate(context.Background(), "hi")
			assert.ErrorIs(t, err, errors.ErrCoachUnavailable)
		})
	}
}

func TestGenerate_BackendError(t *testing.T) {
	boom := stderrors.New("rate limited")
	_, err := NewWithModel(&fakeModel{err: boom}).Generate(context.Background(), "hi")
	assert.ErrorIs(t, err, boom)
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{Model: "gpt-4o-mini"})
	assert.ErrorIs(t, err, errors.ErrCoachUnavailable)
}

func TestNew_WithKey(t *testing.T) {
	c, err := New(Config{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: "http://127.0.0.1:1/v1"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}
