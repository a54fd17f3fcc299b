// Package events records Kubernetes Events describing what a reconciler did
// to the objects it manages.
//
// Messages are rendered from templates keyed by EventReason. The templates
// are text/template strings with the sprig function map available, so a
// caller may replace a default with something like:
//
//	engine.SetTemplate(events.ReasonPatched, "{{ .Kind }} {{ .Name }} patched ({{ .Operations }} ops)")
//
// A Generator with a nil recorder drops every event, which keeps callers
// free of nil checks when no event sink is configured.
package events
