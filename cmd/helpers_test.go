package cmd

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// rootCmdForTest mirrors rootCmd without loading the user's configuration.
func rootCmdForTest() *cobra.Command {
	root := &cobra.Command{Use: "kopkit", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(newVersionCmd(), newPatchCmd(), newKindsCmd(), newWatchCmd())
	return root
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

// syncBuffer is a bytes.Buffer safe for concurrent writers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
