package events

import (
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/giantswarm/kopkit/pkg/logging"
)

// MessageTemplateEngine renders event messages from per-reason templates.
type MessageTemplateEngine struct {
	mu        sync.RWMutex
	templates map[EventReason]*template.Template
}

// NewMessageTemplateEngine creates a new message template engine with default templates.
func NewMessageTemplateEngine() *MessageTemplateEngine {
	engine := &MessageTemplateEngine{
		templates: make(map[EventReason]*template.Template),
	}
	engine.loadDefaultTemplates()
	return engine
}

func (e *MessageTemplateEngine) loadDefaultTemplates() {
	defaults := map[EventReason]string{
		ReasonCreated:        "Created {{ .Kind }} {{ .Namespace }}/{{ .Name }}",
		ReasonPatched:        "Patched {{ .Kind }} {{ .Namespace }}/{{ .Name }} with {{ .Operations }} {{ if eq .Operations 1 }}operation{{ else }}operations{{ end }}",
		ReasonApplyFailed:    "Failed to apply {{ .Kind }} {{ .Namespace }}/{{ .Name }}{{ with .Error }}: {{ . | trunc 512 }}{{ end }}",
		ReasonGenerateFailed: "Failed to generate resources{{ with .Error }}: {{ . | trunc 512 }}{{ end }}",
	}
	for reason, text := range defaults {
		if err := e.SetTemplate(reason, text); err != nil {
			panic(fmt.Sprintf("invalid default template for %s: %v", reason, err))
		}
	}
}

// SetTemplate replaces the message template for reason.
func (e *MessageTemplateEngine) SetTemplate(reason EventReason, text string) error {
	tmpl, err := template.New(string(reason)).
		Funcs(sprig.TxtFuncMap()).
		Option("missingkey=error").
		Parse(text)
	if err != nil {
		return fmt.Errorf("parsing template for %s: %w", reason, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[reason] = tmpl
	return nil
}

// HasTemplate reports whether a template is registered for reason.
func (e *MessageTemplateEngine) HasTemplate(reason EventReason) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.templates[reason]
	return ok
}

// Render generates a message for the given event reason and data.
func (e *MessageTemplateEngine) Render(reason EventReason, data EventData) string {
	e.mu.RLock()
	tmpl, ok := e.templates[reason]
	e.mu.RUnlock()
	if !ok {
		return fallbackMessage(reason, data)
	}

	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		logging.Warn("Events", "Rendering %s message: %v", reason, err)
		return fallbackMessage(reason, data)
	}
	return sb.String()
}

func fallbackMessage(reason EventReason, data EventData) string {
	return fmt.Sprintf("Event: %s for %s %s/%s", reason, data.Kind, data.Namespace, data.Name)
}
