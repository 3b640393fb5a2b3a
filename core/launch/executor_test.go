package launch

import (
	"fmt"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/josephlewis42/jsh/core/jobs"
	"github.com/josephlewis42/jsh/core/shell"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEval_Empty(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 0, h.exec.Eval(nil))
	assert.Equal(t, 0, h.exec.Eval([]shell.Token{bgOp}))
}

func TestRunJob_External(t *testing.T) {
	h := newHarness(t)

	code := h.run(t, fmt.Sprintf("echo hello world > '%s'", h.path("out")))
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello world\n", h.read(t, "out"))
	assert.Empty(t, h.table.Jobs())
}

func TestRunJob_InputRedirect(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.path("in"), []byte("b\na\n"), 0600))

	code := h.run(t, fmt.Sprintf("sort < '%s' > '%s'", h.path("in"), h.path("out")))
	assert.Equal(t, 0, code)
	assert.Equal(t, "a\nb\n", h.read(t, "out"))
}

func TestRunJob_ExitStatus(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 0, h.run(t, "true"))
	assert.Equal(t, 1, h.run(t, "false"))
	assert.Equal(t, 4, h.run(t, "sh -c 'exit 4'"))
}

func TestRunJob_ForegroundBuiltinInProcess(t *testing.T) {
	h := newHarness(t)

	code := h.run(t, fmt.Sprintf("greet world > '%s'", h.path("out")))
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello world\n", h.read(t, "out"))

	assert.Equal(t, 3, h.run(t, "fail"))
	assert.Empty(t, h.table.Jobs())
}

func TestRunJob_BackgroundBuiltinForks(t *testing.T) {
	h := newHarness(t)

	code := h.run(t, fmt.Sprintf("greet bg > '%s' &", h.path("out")))
	assert.Equal(t, 0, code)
	assert.Contains(t, h.messages.String(), "[1] running 'greet bg'")

	require.Eventually(t, func() bool {
		js := h.table.Jobs()
		return len(js) == 1 && js[0].State == jobs.Finished
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, "hello bg\n", h.read(t, "out"))
}

func TestRunJob_CommandNotFound(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, ExitNotFound, h.run(t, "definitely-not-a-command-jsh"))
}

func TestRunJob_RedirectionFailure(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run(t, "cat < /does/not/exist"))
	assert.Contains(t, h.messages.String(), "jsh: open /does/not/exist")
	assert.Empty(t, h.table.Jobs())

	h.messages.Reset()
	assert.Equal(t, 1, h.exec.Eval([]shell.Token{w("cat"), input}))
	assert.Equal(t, "jsh: missing redirection target\n", h.messages.String())
}

func TestRunJob_Background(t *testing.T) {
	h := newHarness(t)

	start := time.Now()
	assert.Equal(t, 0, h.run(t, "sleep 1 &"))
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, "[1] running 'sleep 1'\n", h.messages.String())

	jobList := h.table.Jobs()
	require.Len(t, jobList, 1)
	pid := jobList[0].Pids[0]
	assert.Equal(t, pid, jobList[0].Pgid)

	pgid, err := syscall.Getpgid(pid)
	require.NoError(t, err)
	assert.Equal(t, pid, pgid)

	h.messages.Reset()
	require.Eventually(t, func() bool {
		h.table.PollFinished()
		return h.messages.Len() > 0
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "[1] exited 'sleep 1', status=0\n", h.messages.String())
}

func TestRunPipeline_EchoWc(t *testing.T) {
	h := newHarness(t)

	code := h.run(t, fmt.Sprintf("echo hi | wc -w > '%s'", h.path("out")))
	assert.Equal(t, 0, code)
	assert.Equal(t, "1", strings.TrimSpace(h.read(t, "out")))
	assert.Empty(t, h.table.Jobs())
}

func TestRunPipeline_ThreeStagesWithBuiltins(t *testing.T) {
	h := newHarness(t)

	code := h.run(t, fmt.Sprintf("greet pipes | upper | cat > '%s'", h.path("out")))
	assert.Equal(t, 0, code)
	assert.Equal(t, "HELLO PIPES\n", h.read(t, "out"))
}

func TestRunPipeline_ExitStatusOfLastStage(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, 1, h.run(t, "true | false"))
	assert.Equal(t, 0, h.run(t, "false | true"))
	assert.Equal(t, 3, h.run(t, "true | fail"))
}

func TestRunPipeline_SharedProcessGroup(t *testing.T) {
	h := newHarness(t)

	const stages = 4
	assert.Equal(t, 0, h.run(t, "sleep 5 | sleep 5 | sleep 5 | sleep 5 &"))
	assert.Equal(t, "[1] running 'sleep 5 | sleep 5 | sleep 5 | sleep 5'\n", h.messages.String())

	jobList := h.table.Jobs()
	require.Len(t, jobList, 1)
	job := jobList[0]
	require.Len(t, job.Pids, stages)
	assert.Equal(t, job.Pids[0], job.Pgid)

	for _, pid := range job.Pids {
		pgid, err := syscall.Getpgid(pid)
		require.NoError(t, err)
		assert.Equal(t, job.Pgid, pgid)
	}

	require.NoError(t, h.table.Kill(job.ID))
	require.Eventually(t, func() bool {
		js := h.table.Jobs()
		return len(js) == 1 && js[0].State == jobs.Finished
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunPipeline_Malformed(t *testing.T) {
	h := newHarness(t)

	cases := map[string][]shell.Token{
		"empty-stage":    {w("echo"), pipe, pipe, w("cat")},
		"leading-pipe":   {pipe, w("cat")},
		"trailing-pipe":  {w("echo"), pipe},
		"redirect-stage": {w("echo"), pipe, output, w("f"), pipe, w("cat")},
	}

	for tn, tokens := range cases {
		t.Run(tn, func(t *testing.T) {
			h.messages.Reset()
			assert.Equal(t, 1, h.exec.Eval(tokens))
			assert.Equal(t, "jsh: command line is not well formed\n", h.messages.String())
			assert.Empty(t, h.table.Jobs())
		})
	}
}

// A stage that fails to resolve after earlier stages started takes the whole
// group down with it.
func TestRunPipeline_LateFailureKillsGroup(t *testing.T) {
	h := newHarness(t)

	start := time.Now()
	code := h.run(t, "sleep 5 | cat < /does/not/exist &")
	assert.Equal(t, 1, code)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.Contains(t, h.messages.String(), "/does/not/exist")
	assert.NotContains(t, h.messages.String(), "running")
	assert.Empty(t, h.table.Jobs())
}

// After a pipeline every pipe descriptor the parent created is closed.
func TestRunPipeline_NoDescriptorLeak(t *testing.T) {
	h := newHarness(t)

	// Warm up so lazily created runtime descriptors are already counted.
	require.Equal(t, 0, h.run(t, "true | true"))
	before := openDescriptors(t)

	require.Equal(t, 0, h.run(t, "echo a | cat | cat | cat | wc -l"))
	assert.Equal(t, before, openDescriptors(t))

	require.Equal(t, 1, h.exec.Eval([]shell.Token{w("echo"), w("a"), pipe, pipe, w("cat")}))
	require.Equal(t, 1, h.run(t, "echo a | cat < /does/not/exist"))
	assert.Equal(t, before, openDescriptors(t))
}

// While a pipeline is being built the parent holds at most three pipe
// descriptors: the stage's input, its output and the next stage's input.
// Only the input of the last stage is still open when it starts.
func TestRunPipeline_DescriptorBound(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, 0, h.run(t, "true | true"))
	before := openDescriptors(t)

	var held []int
	h.exec.Launcher.OnStart = func(pid int, st Stage) {
		held = append(held, openDescriptors(t)-before)
	}
	require.Equal(t, 0, h.run(t, "echo a | cat | cat | cat | wc -l"))
	h.exec.Launcher.OnStart = nil

	require.Len(t, held, 5)
	for i, n := range held {
		assert.LessOrEqual(t, n, 3, "stage %d", i)
	}
	assert.Equal(t, 1, held[len(held)-1])
	assert.Equal(t, before, openDescriptors(t))
}
