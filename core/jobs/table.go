// Package jobs tracks the process groups started by the shell.
//
// The table is fed by a reaper goroutine that wakes on child-state signals.
// Callers that spawn children must hold a Blocked guard from before the
// process is created until its pid is registered, otherwise a child that
// exits immediately could be reaped with no entry to record it.
package jobs

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

// Foreground is the slot reserved for the job currently in the foreground.
const Foreground = 0

// ErrNoSuchJob is returned when a job id doesn't name a live job.
var ErrNoSuchJob = errors.New("no such job")

// Options configure a Table.
type Options struct {
	// ChildSignals wake the reaper. Defaults to ChildSignals().
	ChildSignals SignalSet
	// TTY is the controlling terminal descriptor, or -1 when the shell has
	// no terminal to hand to foreground jobs.
	TTY int
	// Out receives job notices.
	Out io.Writer
	// Logger receives diagnostics.
	Logger *log.Logger
	// ShutdownGrace is how long Shutdown waits after SIGTERM before
	// resorting to SIGKILL.
	ShutdownGrace time.Duration
}

// Table is the shell's job table.
type Table struct {
	mu   sync.Mutex
	cond *sync.Cond
	jobs map[int]*job

	opts Options
	term *terminal
	log  *log.Logger

	sigs    chan os.Signal
	done    chan struct{}
	wg      sync.WaitGroup
	started bool
}

// New creates a table, Start must be called before any child is spawned.
func New(opts Options) *Table {
	if opts.ChildSignals.Empty() {
		opts.ChildSignals = ChildSignals()
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	if opts.ShutdownGrace <= 0 {
		opts.ShutdownGrace = time.Second
	}

	t := &Table{
		jobs: make(map[int]*job),
		opts: opts,
		log:  opts.Logger,
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Start subscribes to child signals and launches the reaper.
func (t *Table) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return nil
	}

	if t.opts.TTY >= 0 {
		term, err := openTerminal(t.opts.TTY)
		if err != nil {
			t.log.Printf("job control without terminal: %v", err)
		} else {
			t.term = term
		}
	}

	t.sigs = make(chan os.Signal, 1)
	t.done = make(chan struct{})
	signal.Notify(t.sigs, t.opts.ChildSignals.Signals()...)

	t.started = true
	t.wg.Add(1)
	go t.reaper()
	return nil
}

func (t *Table) reaper() {
	defer t.wg.Done()
	for {
		select {
		case <-t.done:
			return
		case <-t.sigs:
			t.mu.Lock()
			if t.reapLocked() {
				t.cond.Broadcast()
			}
			t.mu.Unlock()
		}
	}
}

// reapLocked collects state changes of every tracked process without
// blocking. It reports whether any job changed.
func (t *Table) reapLocked() bool {
	changed := false
	for id, j := range t.jobs {
		for _, p := range j.procs {
			for p.state != Finished {
				var ws syscall.WaitStatus
				pid, err := syscall.Wait4(p.pid, &ws, syscall.WNOHANG|syscall.WUNTRACED|syscall.WCONTINUED, nil)
				if err == syscall.EINTR {
					continue
				}
				if err != nil {
					// The child is gone without a status we can collect.
					t.log.Printf("job %d: wait for pid %d: %v", id, p.pid, err)
					p.state = Finished
					changed = true
					break
				}
				if pid == 0 {
					break
				}
				if p.update(ws) {
					changed = true
				}
			}
		}

		prev := j.state
		j.refresh()
		if prev != j.state {
			t.log.Printf("job %d (pgid %d): %s -> %s", id, j.pgid, prev, j.state)
		}
	}
	return changed
}

// Block prevents the reaper from observing child state until Restore is
// called on the returned guard.
func (t *Table) Block() *Blocked {
	t.mu.Lock()
	return &Blocked{t: t}
}

// allocLocked returns the lowest free background slot.
func (t *Table) allocLocked() int {
	for id := Foreground + 1; ; id++ {
		if _, ok := t.jobs[id]; !ok {
			return id
		}
	}
}

// lookupLocked resolves a job id; a negative id picks the most recent
// background job.
func (t *Table) lookupLocked(id int) (int, *job, error) {
	if id < 0 {
		id = -1
		for candidate := range t.jobs {
			if candidate > id && candidate != Foreground {
				id = candidate
			}
		}
	}
	j, ok := t.jobs[id]
	if !ok || id == Foreground {
		return 0, nil, ErrNoSuchJob
	}
	return id, j, nil
}

// waitLocked sleeps until the foreground job stops running. Sleeping
// releases the table so the reaper can update it.
func (t *Table) waitLocked() int {
	j, ok := t.jobs[Foreground]
	if !ok {
		return 0
	}

	if t.term != nil {
		if err := t.term.give(j.pgid, j.tmodes); err != nil {
			t.log.Printf("%v", err)
		}
	}

	// Pick up anything that happened before we started sleeping.
	t.reapLocked()
	for j.state == Running {
		t.cond.Wait()
	}

	if t.term != nil {
		modes, err := t.term.reclaim()
		if err != nil {
			t.log.Printf("%v", err)
		}
		j.tmodes = modes
	}

	code := j.exitCode()
	delete(t.jobs, Foreground)
	if j.state == Stopped {
		id := t.allocLocked()
		t.jobs[id] = j
		fmt.Fprintln(t.opts.Out, j.describe(id))
	}
	return code
}

// PollFinished reports and forgets background jobs that have finished.
func (t *Table) PollFinished() {
	t.List(t.opts.Out, Finished)
}

// List writes the status of background jobs in the given state, or every
// job for All. Finished jobs are forgotten once listed.
func (t *Table) List(w io.Writer, which State) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reapLocked()
	for _, id := range t.idsLocked() {
		j := t.jobs[id]
		if which != All && j.state != which {
			continue
		}
		fmt.Fprintln(w, j.describe(id))
		if j.state == Finished {
			delete(t.jobs, id)
		}
	}
}

func (t *Table) idsLocked() []int {
	var ids []int
	for id := range t.jobs {
		if id != Foreground {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids
}

// Jobs returns a snapshot of all background jobs ordered by id.
func (t *Table) Jobs() []Info {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reapLocked()
	var out []Info
	for _, id := range t.idsLocked() {
		out = append(out, t.jobs[id].info(id))
	}
	return out
}

// Resume continues a suspended job. In the foreground it waits for the job
// and returns its exit code.
func (t *Table) Resume(id int, bg bool) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.reapLocked()
	id, j, err := t.lookupLocked(id)
	if err != nil {
		return 1, err
	}

	if j.state == Stopped {
		if err := j.signal(syscall.SIGCONT); err != nil {
			return 1, fmt.Errorf("continuing job %d: %w", id, err)
		}
		for _, p := range j.procs {
			if p.state == Stopped {
				p.state = Running
			}
		}
		j.refresh()
	}
	fmt.Fprintf(t.opts.Out, "[%d] continue '%s'\n", id, j.command())

	if bg {
		return 0, nil
	}

	delete(t.jobs, id)
	t.jobs[Foreground] = j
	return t.waitLocked(), nil
}

// Signal delivers sig to every process of the job. Suspended jobs are
// continued so they can act on it.
func (t *Table) Signal(id int, sig syscall.Signal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	id, j, err := t.lookupLocked(id)
	if err != nil {
		return err
	}
	if err := j.signal(sig); err != nil {
		return fmt.Errorf("signaling job %d: %w", id, err)
	}
	if j.state == Stopped && sig != syscall.SIGCONT {
		return j.signal(syscall.SIGCONT)
	}
	return nil
}

// Kill terminates the job.
func (t *Table) Kill(id int) error {
	return t.Signal(id, syscall.SIGTERM)
}

// Shutdown terminates every remaining job, waits for them, and stops the
// reaper. The table can't be used afterwards.
func (t *Table) Shutdown() {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return
	}

	for id, j := range t.jobs {
		if j.state == Finished {
			continue
		}
		t.log.Printf("shutdown: terminating job %d (pgid %d)", id, j.pgid)
		for _, sig := range []syscall.Signal{syscall.SIGTERM, syscall.SIGCONT} {
			if err := j.signal(sig); err != nil {
				t.log.Printf("shutdown: signal job %d: %v", id, err)
			}
		}
	}

	deadline := time.Now().Add(t.opts.ShutdownGrace)
	killed := false
	for !t.allFinishedLocked() {
		if !killed && time.Now().After(deadline) {
			for id, j := range t.jobs {
				if j.state == Finished {
					continue
				}
				if err := j.signal(syscall.SIGKILL); err != nil {
					t.log.Printf("shutdown: kill job %d: %v", id, err)
				}
			}
			killed = true
		}
		t.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
		t.mu.Lock()
		t.reapLocked()
	}
	t.jobs = make(map[int]*job)

	signal.Stop(t.sigs)
	close(t.done)
	if t.term != nil {
		t.term.close()
	}
	t.started = false
	t.mu.Unlock()

	t.wg.Wait()
}

func (t *Table) allFinishedLocked() bool {
	for _, j := range t.jobs {
		if j.state != Finished {
			return false
		}
	}
	return true
}
