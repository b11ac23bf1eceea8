package upstream

import (
	"embed"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"assistant/pkg/utils"
)

const promptTemplateName = "command.tpl.md"

//go:embed command.tpl.md
var promptFS embed.FS

// PromptData fills the command-resolution prompt.
type PromptData struct {
	AssistantName string
	CallerName    string
	Language      string
	Text          string
}

var (
	promptTemplate     *template.Template
	promptTemplateErr  error
	promptTemplateOnce sync.Once
)

func loadPromptTemplate() (*template.Template, error) {
	promptTemplateOnce.Do(func() {
		content, err := promptFS.ReadFile(promptTemplateName)
		if err != nil {
			promptTemplateErr = fmt.Errorf("failed to read prompt template: %w", err)
			return
		}
		promptTemplate, promptTemplateErr = template.New("command").Parse(string(content))
	})
	return promptTemplate, promptTemplateErr
}

// BuildPrompt renders the prompt, truncating the caller text to maxTextTokens (0 means no bound).
func BuildPrompt(data PromptData, maxTextTokens int) (string, error) {
	tmpl, err := loadPromptTemplate()
	if err != nil {
		return "", err
	}

	if data.AssistantName == "" {
		data.AssistantName = "Assistant"
	}
	if data.Language == "" {
		data.Language = "English"
	}
	data.Text = strings.TrimSpace(data.Text)
	if maxTextTokens > 0 {
		data.Text = utils.TruncateTokensSimple(data.Text, maxTextTokens)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render prompt template: %w", err)
	}
	return buf.String(), nil
}
