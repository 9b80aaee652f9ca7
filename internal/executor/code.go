package executor

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/jacinta/internal/provider"
	"github.com/felixgeelhaar/jacinta/internal/task"
)

// DefaultFilename is used when the model returns no usable file name.
const DefaultFilename = "generated_code.py"

const codeSystemPrompt = `You are an expert software engineer. Write one complete, working source file that satisfies the request.
Choose a file name with an extension that matches the language. Return only the file name and the file contents.`

// Committer persists a file in version control.
type Committer interface {
	Dir() string
	CommitAndPush(ctx context.Context, relPath, message string) error
}

// CodeOutput is the structured response of a code generation call.
type CodeOutput struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
}

// Code generates a source file, writes it into the repository working copy,
// commits and pushes it.
type Code struct {
	client provider.Client
	repo   Committer
	model  string
}

// NewCode creates a code strategy. model may be empty to use the client default.
func NewCode(client provider.Client, repo Committer, model string) *Code {
	return &Code{client: client, repo: repo, model: model}
}

func codeSchema() *provider.Schema {
	return &provider.Schema{
		Name: "code_output",
		Definition: map[string]any{
			"type":                 "object",
			"additionalProperties": false,
			"required":             []any{"filename", "code"},
			"properties": map[string]any{
				"filename": map[string]any{"type": "string"},
				"code":     map[string]any{"type": "string"},
			},
		},
	}
}

func (c *Code) Execute(ctx context.Context, job task.Job) (string, error) {
	resp, err := c.client.Generate(ctx, &provider.GenerateRequest{
		SystemPrompt: codeSystemPrompt,
		Prompt:       job.Description,
		Model:        c.model,
		Schema:       codeSchema(),
	})
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}

	var out CodeOutput
	if err := resp.DecodeJSON(&out); err != nil {
		return "", fmt.Errorf("decode generated code: %w", err)
	}

	name := SanitizeFilename(out.Filename)
	path := filepath.Join(c.repo.Dir(), name)
	if err := os.WriteFile(path, []byte(out.Code), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	if err := c.repo.CommitAndPush(ctx, name, "Auto-generated file: "+name); err != nil {
		return "", err
	}

	sum := blake3.Sum256([]byte(out.Code))
	return fmt.Sprintf("Generated %s (blake3:%s) and pushed to the repository",
		name, hex.EncodeToString(sum[:8])), nil
}

// SanitizeFilename reduces a model-proposed name to a plain file name inside
// the working copy. Empty names, names without an extension and hidden
// files fall back to DefaultFilename.
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if name == "" || strings.HasPrefix(name, ".") || !strings.Contains(name, ".") {
		return DefaultFilename
	}
	return name
}
