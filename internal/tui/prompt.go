package tui

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/jacinta/internal/errors"
)

// Prompter asks ask_user questions through an interactive huh form. It
// satisfies executor.Prompter.
type Prompter struct {
	mu sync.Mutex
}

// NewPrompter creates a Prompter. Only one question is shown at a time.
func NewPrompter() *Prompter {
	return &Prompter{}
}

// Ask shows question and returns the answer exactly as typed.
func (p *Prompter) Ask(ctx context.Context, question string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var answer string
	form := huh.NewForm(huh.NewGroup(
		huh.NewText().
			Title(question).
			Description("The task is waiting for your answer").
			Value(&answer),
	))

	if err := form.RunWithContext(ctx); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if stderrors.Is(err, huh.ErrUserAborted) {
			return "", errors.Wrap(errors.ErrCodeExecPrompt, "question aborted by user", err)
		}
		return "", errors.Wrap(errors.ErrCodeExecPrompt, "prompt failed", err)
	}
	return answer, nil
}

// TaskInput is what `task new` collects.
type TaskInput struct {
	Title       string
	Description string
}

// PromptTask fills the empty fields of in interactively.
func PromptTask(ctx context.Context, in TaskInput) (TaskInput, error) {
	var fields []huh.Field
	if in.Title == "" {
		fields = append(fields, huh.NewInput().
			Title("Title").
			Placeholder("Short name for the task").
			Value(&in.Title))
	}
	if strings.TrimSpace(in.Description) == "" {
		fields = append(fields, huh.NewText().
			Title("Description").
			Placeholder("What should be achieved?").
			Validate(requireText("description")).
			Value(&in.Description))
	}
	if len(fields) == 0 {
		return in, nil
	}

	if err := huh.NewForm(huh.NewGroup(fields...)).RunWithContext(ctx); err != nil {
		return in, fmt.Errorf("prompt failed: %w", err)
	}
	return in, nil
}

// Confirm displays a yes/no confirmation prompt
func Confirm(ctx context.Context, message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue
	form := huh.NewForm(huh.NewGroup(huh.NewConfirm().Title(message).Value(&confirmed)))
	if err := form.RunWithContext(ctx); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return confirmed, nil
}

func requireText(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}
