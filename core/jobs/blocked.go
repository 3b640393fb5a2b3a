package jobs

import (
	"syscall"
)

// Blocked is held while child-state changes must not be observed, from just
// before a child is created until it is registered. It is the only way to
// register jobs.
//
// A Blocked value belongs to the goroutine that called Block.
type Blocked struct {
	t        *Table
	restored bool
}

// Restore lets the reaper run again. Only the first call has an effect, so
// it is safe to defer and also call early.
func (b *Blocked) Restore() {
	if b.restored {
		return
	}
	b.restored = true
	b.t.mu.Unlock()
}

// Register creates a job led by the given process and returns its id. A
// foreground job always takes the foreground slot.
func (b *Blocked) Register(leader int, bg bool) int {
	t := b.t
	id := Foreground
	if bg {
		id = t.allocLocked()
	} else if prev, ok := t.jobs[Foreground]; ok {
		// Shouldn't happen: the previous foreground job is waited for before
		// the prompt returns.
		moved := t.allocLocked()
		t.jobs[moved] = prev
		t.log.Printf("foreground slot busy, moved pgid %d to job %d", prev.pgid, moved)
	}

	t.jobs[id] = &job{pgid: leader, state: Running}
	return id
}

// AddProcess records pid as a member of the job.
func (b *Blocked) AddProcess(id, pid int, argv []string) {
	if j, ok := b.t.jobs[id]; ok {
		j.add(pid, argv)
	}
}

// WaitForeground waits for the foreground job to finish or stop and returns
// its exit code. The guard is released while sleeping and held again on
// return.
func (b *Blocked) WaitForeground(id int) int {
	if id != Foreground {
		return 0
	}
	return b.t.waitLocked()
}

// Command renders the job's command line.
func (b *Blocked) Command(id int) string {
	if j, ok := b.t.jobs[id]; ok {
		return j.command()
	}
	return ""
}

// Pgid returns the process group of the job, or 0 if there is none.
func (b *Blocked) Pgid(id int) int {
	if j, ok := b.t.jobs[id]; ok {
		return j.pgid
	}
	return 0
}

// Discard kills the job's process group, waits until every member is
// collected and forgets the job without reporting it. A discarded
// foreground job may already own the terminal, so the shell takes it back.
func (b *Blocked) Discard(id int) {
	t := b.t
	j, ok := t.jobs[id]
	if !ok {
		return
	}
	if err := j.signal(syscall.SIGKILL); err != nil {
		t.log.Printf("discard job %d: %v", id, err)
	}

	t.reapLocked()
	for j.state != Finished {
		t.cond.Wait()
	}
	delete(t.jobs, id)

	if id == Foreground && t.term != nil {
		if _, err := t.term.reclaim(); err != nil {
			t.log.Printf("discard job %d: %v", id, err)
		}
	}
}
