package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/josephlewis42/jsh/core/jobs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func currentUmask() os.FileMode {
	mask := syscall.Umask(0)
	syscall.Umask(mask)
	return os.FileMode(mask)
}

func TestShellRunLineStatus(t *testing.T) {
	cases := map[string]struct {
		line string
		want int
	}{
		"success":       {"true", 0},
		"failure":       {"false", 1},
		"pipeline last": {"false | true", 0},
		"not found":     {"jsh-no-such-command", 127},
		"builtin":       {"help", 0},
		"empty":         {"   ", 0},
		"syntax error":  {`echo "unterminated`, 2},
		"empty stage":   {"echo | | cat", 2},
		"expansion":     {"echo $HOME", 2},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			ss := newSession(t)
			assert.Equal(t, tc.want, ss.RunLine(tc.line))
			assert.Equal(t, tc.want, ss.LastStatus())
		})
	}
}

func TestShellSyntaxError(t *testing.T) {
	ss := newSession(t)

	ss.RunLine(`echo 'oops`)

	assert.Contains(t, ss.stderrText(t), "jsh: syntax error: ")
}

func TestShellLogsStartedProcesses(t *testing.T) {
	ss := newSession(t)

	require.Equal(t, 0, ss.RunLine("true | sh -c 'exit 0'"))

	logged := ss.appLogText(t)
	assert.Regexp(t, `started pid \d+: true\n`, logged)
	assert.Regexp(t, `started pid \d+: sh -c exit 0\n`, logged)
}

func TestShellRedirection(t *testing.T) {
	ss := newSession(t)
	src := ss.path("src")
	dst := ss.path("dst")
	require.NoError(t, os.WriteFile(src, []byte("b\na\n"), 0644))

	require.Equal(t, 0, ss.RunLine(fmt.Sprintf("sort < %s > %s", src, dst)))

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(got))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, ss.Config.FileMode()&^currentUmask(), info.Mode().Perm())
}

func TestShellBuiltinInPipeline(t *testing.T) {
	ss := newSession(t)
	out := ss.path("count")

	require.Equal(t, 0, ss.RunLine("help | wc -l > "+out))

	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(5+len(AllBuiltins)), strings.TrimSpace(string(got)))
}

func TestShellJobControlBuiltinInPipeline(t *testing.T) {
	ss := newSession(t)

	assert.Equal(t, 0, ss.RunLine("jobs | cat"))
	assert.Contains(t, ss.stderrText(t), "jobs: no job control\n")
}

func TestShellCd(t *testing.T) {
	orig, err := os.Getwd()
	require.NoError(t, err)
	t.Cleanup(func() { os.Chdir(orig) })

	ss := newSession(t)
	require.Equal(t, 0, ss.RunLine("cd "+ss.dir))
	require.NoError(t, os.WriteFile(ss.path("marker"), []byte("here\n"), 0644))

	// Children inherit the new directory.
	out := ss.path("out")
	require.Equal(t, 0, ss.RunLine("cat marker > "+out))
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "here\n", string(got))

	assert.Equal(t, 1, ss.RunLine("cd "+filepath.Join(ss.dir, "missing")))
}

func TestShellExit(t *testing.T) {
	ss := newSession(t)

	ss.RunLine("false")
	ss.RunLine("exit")
	assert.True(t, ss.Quit)
	assert.Equal(t, 1, ss.exitCode)

	ss = newSession(t)
	assert.Equal(t, 4, ss.RunLine("quit 4"))
	assert.True(t, ss.Quit)
	assert.Equal(t, 4, ss.exitCode)
}

func TestShellBackgroundJobs(t *testing.T) {
	ss := newSession(t)

	require.Equal(t, 0, ss.RunLine("sleep 5 &"))
	assert.Contains(t, ss.stderrText(t), "[1] running 'sleep 5'\n")

	require.Equal(t, 0, ss.RunLine("jobs"))
	assert.Equal(t, "[1] running 'sleep 5'\n", ss.stdoutText(t))

	require.Equal(t, 0, ss.RunLine("kill %1"))
	ss.waitForStderr(t, "[1] killed 'sleep 5' by signal 15\n")

	assert.Empty(t, ss.Jobs.Jobs())
}

func TestShellJobsLong(t *testing.T) {
	ss := newSession(t)

	require.Equal(t, 0, ss.RunLine("sleep 5 | sleep 5 &"))
	require.Equal(t, 0, ss.RunLine("jobs -l"))

	infos := ss.Jobs.Jobs()
	require.Len(t, infos, 1)
	want := fmt.Sprintf("[1] pgid=%d pids=%s running 'sleep 5 | sleep 5'\n",
		infos[0].Pgid, joinInts(infos[0].Pids))
	assert.Equal(t, want, ss.stdoutText(t))
}

func TestShellFg(t *testing.T) {
	ss := newSession(t)

	require.Equal(t, 0, ss.RunLine("sh -c 'sleep 0.2; exit 3' &"))
	assert.Equal(t, 3, ss.RunLine("fg"))
	assert.Contains(t, ss.stderrText(t), "[1] continue 'sh -c 'sleep 0.2; exit 3''\n")
	assert.Empty(t, ss.Jobs.Jobs())
}

func TestShellFgErrors(t *testing.T) {
	ss := newSession(t)

	assert.Equal(t, 1, ss.RunLine("fg"))
	assert.Equal(t, 1, ss.RunLine("fg %7"))
	assert.Equal(t, 1, ss.RunLine("bg nope"))

	stderr := ss.stderrText(t)
	assert.Contains(t, stderr, "fg: current: no such job\n")
	assert.Contains(t, stderr, "fg: %7: no such job\n")
	assert.Contains(t, stderr, "bg: nope: no such job\n")
}

func TestShellStopAndBg(t *testing.T) {
	ss := newSession(t)

	require.Equal(t, 0, ss.RunLine("sleep 5 &"))
	require.Equal(t, 0, ss.RunLine("kill -STOP %1"))
	require.Eventually(t, func() bool {
		infos := ss.Jobs.Jobs()
		return len(infos) == 1 && infos[0].State == jobs.Stopped
	}, 5*time.Second, 20*time.Millisecond)

	require.Equal(t, 0, ss.RunLine("bg %1"))
	assert.Contains(t, ss.stderrText(t), "[1] continue 'sleep 5'\n")
	infos := ss.Jobs.Jobs()
	require.Len(t, infos, 1)
	assert.Equal(t, jobs.Running, infos[0].State)
}

func TestShellCloseTerminatesJobs(t *testing.T) {
	ss := newSession(t)

	require.Equal(t, 0, ss.RunLine("sleep 30 &"))
	pgid := ss.Jobs.Jobs()[0].Pgid

	ss.Close()

	assert.Error(t, syscall.Kill(-pgid, 0))
}
