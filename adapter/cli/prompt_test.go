package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinePrompter_Ask(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"unix lines", "first\nsecond\n", []string{"first", "second"}},
		{"windows lines", "DELETE\r\n", []string{"DELETE"}},
		{"last line without newline", "yes", []string{"yes"}},
		{"end of input", "", []string{""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			p := NewPrompter(strings.NewReader(tt.input), &out)
			for _, want := range tt.want {
				got, err := p.Ask(context.Background(), "> ")
				require.NoError(t, err)
				assert.Equal(t, want, got)
			}
			assert.True(t, strings.HasPrefix(out.String(), "> "))
		})
	}
}

func TestLinePrompter_Cancelled(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	_, err := NewPrompter(reader, &out).Ask(ctx, "Type 'DELETE' to confirm: ")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLinePrompter_AnswerAfterCancel(t *testing.T) {
	reader, writer := io.Pipe()
	defer writer.Close()

	var out bytes.Buffer
	p := NewPrompter(reader, &out)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := p.Ask(ctx, "first: ")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	go func() {
		_, _ = writer.Write([]byte("DELETE\n"))
	}()

	answer, err := p.Ask(context.Background(), "second: ")
	require.NoError(t, err)
	assert.Equal(t, "DELETE", answer)
}
