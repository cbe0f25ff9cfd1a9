package command

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joeycumines/behavior-engine/internal/bt"
	"github.com/joeycumines/behavior-engine/internal/builder"
	"github.com/joeycumines/behavior-engine/internal/config"
	"github.com/joeycumines/behavior-engine/internal/example/doorroom"
)

func writeTree(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNewNodeRegistry(t *testing.T) {
	t.Parallel()

	reg, err := newNodeRegistry(config.NewConfig(), doorroom.NewWorld(0))
	require.NoError(t, err)
	for _, typ := range []string{"Sequence", "Wait", "Expr", "Script", "ScriptCondition", "Plan", "DoorOpen", "OpenDoor", "EnterRoom"} {
		_, ok := reg.Lookup(typ)
		require.True(t, ok, typ)
	}
}

func TestValidateCommand(t *testing.T) {
	t.Parallel()

	good := writeTree(t, "good.xml", doorroom.TreeXML)
	bad := writeTree(t, "bad.yaml", `main: Main
trees:
  Main:
    type: Sequence
    children:
      - type: Script
      - type: Expr
        params: {condition: "x >"}
`)

	cmd := NewValidateCommand(config.NewConfig())
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(t.Context(), []string{good}, &stdout, &stderr))
	require.Equal(t, "OK "+good+": tree \"Main\", 5 nodes\n", stdout.String())

	stdout.Reset()
	err := cmd.Execute(t.Context(), []string{bad}, &stdout, &stderr)
	require.ErrorIs(t, err, builder.ErrConfig)
	require.Empty(t, stdout.String())
	require.Contains(t, stderr.String(), bad+": 2 issue(s)\n")
	require.Contains(t, stderr.String(), "  Main/Sequence/Script[0]: missing parameter \"code\"\n")
	require.Contains(t, stderr.String(), "  Main/Sequence/Expr[1]: ")

	require.Error(t, cmd.Execute(t.Context(), nil, &stdout, &stderr))
	require.Error(t, cmd.Execute(t.Context(), []string{filepath.Join(t.TempDir(), "missing.xml")}, &stdout, &stderr))
}

func TestValidateCommand_MainOverride(t *testing.T) {
	t.Parallel()

	path := writeTree(t, "two.xml", `<root main_tree_to_execute="A">
  <BehaviorTree ID="A"><AlwaysSuccess/></BehaviorTree>
  <BehaviorTree ID="B"><Sequence><AlwaysSuccess/><AlwaysFailure/></Sequence></BehaviorTree>
</root>`)
	cmd := NewValidateCommand(config.NewConfig())
	cmd.flags.mainTree = "B"
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(t.Context(), []string{path}, &stdout, &stderr))
	require.Contains(t, stdout.String(), `tree "B", 3 nodes`)
}

func TestPrintCommand(t *testing.T) {
	t.Parallel()

	path := writeTree(t, "tree.xml", `<root main_tree_to_execute="Main">
  <BehaviorTree ID="Main">
    <Sequence name="root">
      <SetBlackboard value="3" output_key="{n}"/>
      <Fallback>
        <DoorOpen/>
        <OpenDoor/>
      </Fallback>
      <Inverter><EnterRoom/></Inverter>
    </Sequence>
  </BehaviorTree>
</root>`)

	cmd := NewPrintCommand(config.NewConfig())
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(t.Context(), []string{path}, &stdout, &stderr))
	require.Equal(t, strings.Join([]string{
		"Main",
		"  root (Sequence)",
		"    SetBlackboard (Action) output_key={n} value=3",
		"    Fallback (Fallback)",
		"      DoorOpen (Condition)",
		"      OpenDoor (Action)",
		"    Inverter (Decorator)",
		"      EnterRoom (Action)",
		"",
	}, "\n"), stdout.String())
}

func TestPrintCommand_Color(t *testing.T) {
	t.Parallel()

	path := writeTree(t, "tree.xml", doorroom.TreeXML)
	cmd := NewPrintCommand(config.NewConfig())
	cmd.flags.color = "always"
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(t.Context(), []string{path}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "\x1b[")

	cmd.flags.color = "sometimes"
	require.ErrorContains(t, cmd.Execute(t.Context(), []string{path}, &stdout, &stderr), "invalid color mode")
}

func TestNodesCommand(t *testing.T) {
	t.Parallel()

	cmd := NewNodesCommand(config.NewConfig())
	var stdout, stderr bytes.Buffer
	require.NoError(t, cmd.Execute(t.Context(), nil, &stdout, &stderr))
	out := stdout.String()
	require.Contains(t, out, "Plan")
	require.Contains(t, out, "DoorOpen")
	require.NotContains(t, out, "param ")

	stdout.Reset()
	require.NoError(t, cmd.Execute(t.Context(), []string{"Timeout"}, &stdout, &stderr))
	out = stdout.String()
	require.True(t, strings.HasPrefix(out, "Timeout"), out)
	require.Contains(t, out, "param ticks")
	require.Contains(t, out, "param duration")
	require.Contains(t, out, "duration")

	stdout.Reset()
	require.NoError(t, cmd.Execute(t.Context(), []string{"SetBlackboard"}, &stdout, &stderr))
	require.Contains(t, stdout.String(), "out port output_key")

	require.ErrorContains(t, cmd.Execute(t.Context(), []string{"Nope"}, &stdout, &stderr), "unknown node type")
}

func TestStyles_Status(t *testing.T) {
	t.Parallel()

	st, err := newStyles(&bytes.Buffer{}, "never")
	require.NoError(t, err)
	for _, s := range []bt.Status{bt.Idle, bt.Running, bt.Success, bt.Failure} {
		require.Equal(t, s.String(), st.status(s))
	}

	st, err = newStyles(&bytes.Buffer{}, "always")
	require.NoError(t, err)
	require.NotEqual(t, "SUCCESS", st.status(bt.Success))
	require.Contains(t, st.status(bt.Success), "SUCCESS")
}
