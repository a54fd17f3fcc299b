package informer

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

var widgetGVK = schema.GroupVersionKind{Group: "example.com", Version: "v1alpha1", Kind: "Widget"}

func writeManifest(t *testing.T, dir, file, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(content), 0o644))
}

const widgetA = `apiVersion: example.com/v1alpha1
kind: Widget
metadata:
  name: a
  namespace: default
spec:
  replicas: 1
`

func TestFileInformer_Lifecycle(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.yaml", widgetA)
	writeManifest(t, dir, "cm.yaml", "apiVersion: v1\nkind: ConfigMap\nmetadata:\n  name: other\n")
	writeManifest(t, dir, "notes.txt", "not yaml")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFileInformer(dir, widgetGVK, 10*time.Millisecond)
	assert.Equal(t, widgetGVK, f.GroupVersionKind())

	rec := &recorder{}
	reg, err := f.Register(rec.handle)
	require.NoError(t, err)

	require.NoError(t, f.Start(ctx))
	defer func() { _ = f.Stop() }()
	require.NoError(t, reg.Ready(ctx))

	assert.Equal(t, []recordedEvent{{Added, "a"}}, rec.snapshot(), "only matching kinds are listed")

	writeManifest(t, dir, "a.yaml", widgetA+"  paused: true\n")
	assert.Eventually(t, func() bool { return rec.has(Modified, "a") }, 5*time.Second, 10*time.Millisecond)

	writeManifest(t, dir, "b.yml", "apiVersion: example.com/v1alpha1\nkind: Widget\nmetadata:\n  name: b\n")
	assert.Eventually(t, func() bool { return rec.has(Added, "b") }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.Remove(filepath.Join(dir, "a.yaml")))
	assert.Eventually(t, func() bool { return rec.has(Deleted, "a") }, 5*time.Second, 10*time.Millisecond)
}

func TestFileInformer_LateRegistrationReplaysObjects(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "a.yaml", widgetA)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFileInformer(dir, widgetGVK, 10*time.Millisecond)
	require.NoError(t, f.Start(ctx))
	defer func() { _ = f.Stop() }()

	var got []*unstructured.Unstructured
	reg, err := f.Register(func(event EventType, obj client.Object) {
		got = append(got, obj.(*unstructured.Unstructured))
	})
	require.NoError(t, err)
	require.NoError(t, reg.Ready(ctx))

	require.Len(t, got, 1)
	replicas, found, err := unstructured.NestedInt64(got[0].Object, "spec", "replicas")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(1), replicas)
}

func TestFileInformer_Dispose(t *testing.T) {
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFileInformer(dir, widgetGVK, 10*time.Millisecond)
	rec := &recorder{}
	reg, err := f.Register(rec.handle)
	require.NoError(t, err)
	require.NoError(t, f.Start(ctx))
	defer func() { _ = f.Stop() }()

	require.NoError(t, reg.Dispose())
	writeManifest(t, dir, "a.yaml", widgetA)

	assert.Never(t, func() bool { return len(rec.snapshot()) > 0 }, 200*time.Millisecond, 20*time.Millisecond)
}

func TestFileInformer_RenamedObject(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "w.yaml", widgetA)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := NewFileInformer(dir, widgetGVK, 10*time.Millisecond)
	rec := &recorder{}
	_, err := f.Register(rec.handle)
	require.NoError(t, err)
	require.NoError(t, f.Start(ctx))
	defer func() { _ = f.Stop() }()

	writeManifest(t, dir, "w.yaml", "apiVersion: example.com/v1alpha1\nkind: Widget\nmetadata:\n  name: renamed\n  namespace: default\n")

	assert.Eventually(t, func() bool {
		return rec.has(Deleted, "a") && rec.has(Added, "renamed")
	}, 5*time.Second, 10*time.Millisecond)
}

func TestFileInformer_ReadyWaitsForListing(t *testing.T) {
	f := NewFileInformer(t.TempDir(), widgetGVK, 0)
	reg, err := f.Register(func(EventType, client.Object) {})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, reg.Ready(ctx), context.DeadlineExceeded)
}

func TestIsYAMLFile(t *testing.T) {
	assert.True(t, isYAMLFile("a.yaml"))
	assert.True(t, isYAMLFile("a.YML"))
	assert.False(t, isYAMLFile("a.json"))
}
