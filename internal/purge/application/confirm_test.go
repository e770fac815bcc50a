package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteralConfirmer(t *testing.T) {
	t.Run("prompt names the phrase", func(t *testing.T) {
		prompter := &stubPrompter{answer: "DELETE"}
		ok, err := NewLiteralConfirmer(prompter, "").Confirm(context.Background(), "About to delete 3 tweets")
		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, prompter.prompts, 1)
		assert.Contains(t, prompter.prompts[0], "About to delete 3 tweets")
		assert.Contains(t, prompter.prompts[0], "Type 'DELETE' to confirm")
	})

	t.Run("custom phrase", func(t *testing.T) {
		ok, err := NewLiteralConfirmer(&stubPrompter{answer: "purge"}, "purge").Confirm(context.Background(), "")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("prompter error", func(t *testing.T) {
		ok, err := NewLiteralConfirmer(&stubPrompter{err: errors.New("eof")}, "").Confirm(context.Background(), "")
		assert.Error(t, err)
		assert.False(t, ok)
	})
}

func TestYesNoConfirmer(t *testing.T) {
	tests := []struct {
		answer string
		want   bool
	}{
		{"y", true},
		{"Y", true},
		{" yes\n", true},
		{"YES", true},
		{"n", false},
		{"no", false},
		{"", false},
		{"yep", false},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			prompter := &stubPrompter{answer: tt.answer}
			ok, err := NewYesNoConfirmer(prompter).Confirm(context.Background(), "Use cached tweets?")
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, "Use cached tweets? (y/n): ", prompter.prompts[0])
		})
	}
}
