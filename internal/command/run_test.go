package command

import (
	"bytes"
	"flag"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/behavior-engine/internal/bt"
	"github.com/joeycumines/behavior-engine/internal/config"
	"github.com/joeycumines/behavior-engine/internal/logging"
)

// runTree parses args with the command's own flags and executes it.
func runTree(t *testing.T, cfg *config.Config, args ...string) (string, string, error) {
	t.Helper()
	if cfg == nil {
		cfg = config.NewConfig()
	}
	cmd := NewRunCommand(cfg, "test")
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.SetupFlags(fs)
	require.NoError(t, fs.Parse(append([]string{"-log-level", "error", "-color", "never"}, args...)))
	var stdout, stderr bytes.Buffer
	err := cmd.Execute(t.Context(), fs.Args(), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRunCommand_Trace(t *testing.T) {
	t.Parallel()

	path := writeTree(t, "count.xml", `<root main_tree_to_execute="Main">
  <BehaviorTree ID="Main">
    <Sequence>
      <Script code="bb.set('n', (bb.get('n') || 0) + 1); bb.get('n') >= 3 ? 'success' : 'running'"/>
      <Expr condition="n == 3"/>
    </Sequence>
  </BehaviorTree>
</root>`)

	stdout, _, err := runTree(t, nil, "-interval", "1ms", "-trace", "-dump", path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Equal(t, []string{
		"tick 1 RUNNING running: Main/Sequence, Main/Sequence/Script[0]",
		"tick 2 RUNNING running: Main/Sequence, Main/Sequence/Script[0]",
		"tick 3 SUCCESS",
		"Main success after 3 tick(s)",
		"n: 3",
	}, lines)
}

func TestRunCommand_SetValues(t *testing.T) {
	t.Parallel()

	path := writeTree(t, "check.xml", `<root main_tree_to_execute="Main">
  <BehaviorTree ID="Main"><Expr condition="armed == true &amp;&amp; level > 2 &amp;&amp; mode == 'auto'"/></BehaviorTree>
</root>`)

	stdout, _, err := runTree(t, nil, "-interval", "1ms", "-set", "armed=true", "-set", "level=3", "-set", "mode=auto", path)
	require.NoError(t, err)
	require.Equal(t, "Main success after 1 tick(s)\n", stdout)

	_, _, err = runTree(t, nil, "-interval", "1ms", "-set", "armed=false", "-set", "level=3", "-set", "mode=auto", path)
	require.EqualError(t, err, "tree Main failed")
}

func TestRunCommand_Fault(t *testing.T) {
	t.Parallel()

	path := writeTree(t, "fault.xml", `<root main_tree_to_execute="Main">
  <BehaviorTree ID="Main"><Script code="throw new Error('boom')"/></BehaviorTree>
</root>`)

	stdout, _, err := runTree(t, nil, "-interval", "1ms", path)
	require.ErrorIs(t, err, bt.ErrFault)
	require.ErrorContains(t, err, "boom")
	require.Equal(t, "Main fault after 1 tick(s)\n", stdout)
}

func TestRunCommand_ConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("tick.interval 1ms\n[run]\ntick.max 2\n"))
	require.NoError(t, err)
	path := writeTree(t, "wait.xml", `<root main_tree_to_execute="Main">
  <BehaviorTree ID="Main"><Wait ticks="10"/></BehaviorTree>
</root>`)

	stdout, _, err := runTree(t, cfg, path)
	require.NoError(t, err)
	require.Equal(t, "Main cancelled after 2 tick(s)\n", stdout)

	// flags win over config
	stdout, _, err = runTree(t, cfg, "-max-ticks", "0", path)
	require.NoError(t, err)
	require.Equal(t, "Main success after 11 tick(s)\n", stdout)
}

func TestRunCommand_BadDescription(t *testing.T) {
	t.Parallel()

	path := writeTree(t, "bad.xml", `<root main_tree_to_execute="Main"><BehaviorTree ID="Main"><Nope/></BehaviorTree></root>`)
	_, stderr, err := runTree(t, nil, path)
	require.Error(t, err)
	require.Contains(t, stderr, `Main/Nope: unknown node type "Nope"`)

	_, _, err = runTree(t, nil, "-interval", "0s", writeTree(t, "ok.xml", `<root main_tree_to_execute="Main"><BehaviorTree ID="Main"><AlwaysSuccess/></BehaviorTree></root>`))
	require.ErrorContains(t, err, "invalid interval")

	_, _, err = runTree(t, nil, "-telemetry", "carrier-pigeon", path)
	require.ErrorContains(t, err, "unknown telemetry exporter")
}

func TestRunCommand_LogFile(t *testing.T) {
	t.Parallel()

	logFile := filepath.Join(t.TempDir(), "bte.log")
	path := writeTree(t, "ok.xml", `<root main_tree_to_execute="Main"><BehaviorTree ID="Main"><Log message="hello from the tree"/></BehaviorTree></root>`)
	_, stderr, err := runTree(t, nil, "-interval", "1ms", "-log-level", "info", "-log-file", logFile, path)
	require.NoError(t, err)
	require.Empty(t, stderr)
	require.FileExists(t, logFile)
}

func TestValueFlags(t *testing.T) {
	t.Parallel()

	v := make(valueFlags)
	for _, s := range []string{"n=3", "ok=true", "name=door", "ratio=0.5", "empty=", " spaced =x"} {
		require.NoError(t, v.Set(s), s)
	}
	require.Equal(t, valueFlags{
		"n":      3,
		"ok":     true,
		"name":   "door",
		"ratio":  0.5,
		"empty":  "",
		"spaced": "x",
	}, v)
	require.Equal(t, "empty=,n=3,name=door,ok=true,ratio=0.5,spaced=x", v.String())

	for _, s := range []string{"novalue", "=3", "list=[1, 2]", "map={a: 1}", "bad=[unclosed"} {
		require.Error(t, v.Set(s), s)
	}
}

func TestResolveLogOptions(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader("log.level warn\nlog.file /tmp/from-config.log\nlog.max-files 2\n"))
	require.NoError(t, err)

	opts := resolveLogOptions(cfg, "", "", io.Discard)
	require.Equal(t, "warn", opts.Level)
	require.Equal(t, "/tmp/from-config.log", opts.File)
	require.Equal(t, 2, opts.MaxFiles)
	require.Equal(t, logging.DefaultMaxSizeMB, opts.MaxSizeMB)

	opts = resolveLogOptions(cfg, "debug", "/tmp/flag.log", io.Discard)
	require.Equal(t, "debug", opts.Level)
	require.Equal(t, "/tmp/flag.log", opts.File)

	level, err := logging.ParseLevel(resolveLogOptions(nil, "", "", io.Discard).Level)
	require.NoError(t, err)
	require.Equal(t, slog.LevelInfo, level)
}
