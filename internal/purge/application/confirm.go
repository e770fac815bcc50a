package application

import (
	"context"
	"fmt"
	"strings"
)

// Prompter shows a prompt and returns the operator's raw answer.
type Prompter interface {
	Ask(ctx context.Context, prompt string) (string, error)
}

// DefaultConfirmPhrase must be typed to start a destructive run.
const DefaultConfirmPhrase = "DELETE"

// LiteralConfirmer accepts only the exact phrase. Surrounding whitespace is
// ignored; case, prefixes and partial matches are not.
type LiteralConfirmer struct {
	prompter Prompter
	phrase   string
}

// NewLiteralConfirmer creates a confirmer requiring phrase.
func NewLiteralConfirmer(prompter Prompter, phrase string) *LiteralConfirmer {
	if phrase == "" {
		phrase = DefaultConfirmPhrase
	}
	return &LiteralConfirmer{prompter: prompter, phrase: phrase}
}

// Confirm asks for the phrase after showing prompt.
func (c *LiteralConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	answer, err := c.prompter.Ask(ctx, fmt.Sprintf("%s\nType '%s' to confirm: ", prompt, c.phrase))
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(answer) == c.phrase, nil
}

// YesNoConfirmer accepts "y" or "yes" in any case.
type YesNoConfirmer struct {
	prompter Prompter
}

// NewYesNoConfirmer creates a y/n confirmer.
func NewYesNoConfirmer(prompter Prompter) *YesNoConfirmer {
	return &YesNoConfirmer{prompter: prompter}
}

// Confirm appends "(y/n)" to the prompt and reads the answer.
func (c *YesNoConfirmer) Confirm(ctx context.Context, prompt string) (bool, error) {
	answer, err := c.prompter.Ask(ctx, prompt+" (y/n): ")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
