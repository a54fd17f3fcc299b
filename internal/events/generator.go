package events

import (
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/tools/record"

	"github.com/giantswarm/kopkit/pkg/logging"
)

// Generator records events through a Kubernetes EventRecorder.
type Generator struct {
	recorder  record.EventRecorder
	templates *MessageTemplateEngine
}

// NewGenerator creates a Generator writing to recorder. recorder may be nil.
func NewGenerator(recorder record.EventRecorder) *Generator {
	return &Generator{
		recorder:  recorder,
		templates: NewMessageTemplateEngine(),
	}
}

// Templates returns the engine used to render messages.
func (g *Generator) Templates() *MessageTemplateEngine {
	return g.templates
}

// Emit records an event with the given reason on obj.
func (g *Generator) Emit(obj runtime.Object, reason EventReason, data EventData) {
	if g == nil || g.recorder == nil {
		return
	}

	message := g.templates.Render(reason, data)
	eventType := string(eventTypeOf(reason))

	logging.Debug("Events", "Recording event: reason=%s, message=%s, type=%s",
		string(reason), message, eventType)

	g.recorder.Event(obj, eventType, string(reason), message)
}
