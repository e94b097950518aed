package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireShell skips the test on platforms without a POSIX shell.
func RequireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engines are shell scripts")
	}
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("missing /bin/sh")
	}
}

// FakeEngine writes an executable shell script named opp_run into dir and
// returns its path. body runs with the engine's arguments in "$@".
func FakeEngine(t *testing.T, dir, body string) string {
	t.Helper()
	RequireShell(t)

	path := filepath.Join(dir, "opp_run")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// ScalarLine formats one scalar record the way the engine writes it.
func ScalarLine(module, stat string, value float64) string {
	return fmt.Sprintf("scalar %s %s %v", module, stat, value)
}

// ScalarFile joins lines into the body of a result file with a run header.
func ScalarFile(lines ...string) string {
	header := []string{"version 2", "run General-0-20240101-00:00:00-1", "attr configname General", ""}
	return strings.Join(append(header, lines...), "\n") + "\n"
}

// EngineWritingScalars returns a script body that copies content into the
// output-scalar-file named in the configuration file passed with -f.
func EngineWritingScalars(content string) string {
	return fmt.Sprintf(`cfg=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-f" ]; then cfg="$2"; fi
  shift
done
out=$(sed -n 's/^output-scalar-file = "\(.*\)"$/\1/p' "$cfg")
mkdir -p "$(dirname "$out")"
cat > "$out" <<'EOF'
%sEOF`, content)
}

// ReadLines returns the non-empty lines of the file at path.
func ReadLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, l := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out, nil
}
