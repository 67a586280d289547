package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const toneNetwork = `
network: tone: {
	sources: {
		c: {type: "const", properties: value: 0.5}
		amp: {type: "amp", properties: volume: 0.5}
		out: type: "sink"
	}
	connections: [
		"c.out -> amp.in",
		"amp.out -> out.left",
	]
}
`

const loopNetwork = `
network: loop: {
	sources: {
		a: type: "amp"
		b: type: "amp"
	}
	connections: [
		"a.out -> b.in",
		"b.out -> a.in",
	]
}
`

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
