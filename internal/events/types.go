package events

// EventType represents the type/severity of a Kubernetes Event.
type EventType string

const (
	// EventTypeNormal indicates normal, non-problematic events.
	EventTypeNormal EventType = "Normal"

	// EventTypeWarning indicates events that may require attention.
	EventTypeWarning EventType = "Warning"
)

// EventReason represents the reason code for an event.
type EventReason string

const (
	// ReasonCreated indicates a generated object did not exist and was created.
	ReasonCreated EventReason = "Created"

	// ReasonPatched indicates a generated object was patched towards its
	// desired state.
	ReasonPatched EventReason = "Patched"

	// ReasonApplyFailed indicates creating or patching a generated object failed.
	ReasonApplyFailed EventReason = "ApplyFailed"

	// ReasonGenerateFailed indicates the generator could not derive the
	// objects for a primary resource.
	ReasonGenerateFailed EventReason = "GenerateFailed"
)

// EventData carries the values a message template may reference.
type EventData struct {
	// Kind of the object the event is about. This is the generated object,
	// while the event itself is recorded on the primary resource.
	Kind      string
	Name      string
	Namespace string

	// Operations is the number of patch operations sent.
	Operations int

	Error string
}

// eventTypeOf maps a reason to the event type it is recorded with.
func eventTypeOf(reason EventReason) EventType {
	switch reason {
	case ReasonApplyFailed, ReasonGenerateFailed:
		return EventTypeWarning
	default:
		return EventTypeNormal
	}
}
