package jobs

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// terminal hands the controlling terminal between the shell and its
// foreground jobs.
type terminal struct {
	fd        int
	shellPgid int
	tmodes    *unix.Termios
	// ttou keeps SIGTTOU caught rather than default while the shell runs.
	ttou chan os.Signal
}

func openTerminal(fd int) (*terminal, error) {
	tmodes, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, fmt.Errorf("reading terminal modes: %w", err)
	}
	tm := &terminal{
		fd:        fd,
		shellPgid: unix.Getpgrp(),
		tmodes:    tmodes,
		ttou:      make(chan os.Signal, 1),
	}
	signal.Notify(tm.ttou, syscall.SIGTTOU)
	if _, err := tm.reclaim(); err != nil {
		tm.close()
		return nil, err
	}
	return tm, nil
}

// give makes pgid the foreground process group, restoring the job's own
// terminal modes when it was suspended with some.
func (tm *terminal) give(pgid int, modes *unix.Termios) error {
	if modes != nil {
		if err := unix.IoctlSetTermios(tm.fd, ioctlSetTermios, modes); err != nil {
			return fmt.Errorf("restoring job terminal modes: %w", err)
		}
	}
	if err := unix.IoctlSetPointerInt(tm.fd, unix.TIOCSPGRP, pgid); err != nil {
		return fmt.Errorf("giving terminal to group %d: %w", pgid, err)
	}
	return nil
}

// reclaim takes the terminal back for the shell and returns the modes the
// job left it in.
//
// The shell is a background process at this point, so SIGTTOU must be
// ignored (not merely caught) or the kernel restarts the ioctl forever.
func (tm *terminal) reclaim() (*unix.Termios, error) {
	jobModes, _ := unix.IoctlGetTermios(tm.fd, ioctlGetTermios)

	signal.Ignore(syscall.SIGTTOU)
	err := unix.IoctlSetPointerInt(tm.fd, unix.TIOCSPGRP, tm.shellPgid)
	signal.Notify(tm.ttou, syscall.SIGTTOU)
	if err != nil {
		return jobModes, fmt.Errorf("reclaiming terminal: %w", err)
	}

	if err := unix.IoctlSetTermios(tm.fd, ioctlSetTermios, tm.tmodes); err != nil {
		return jobModes, fmt.Errorf("restoring shell terminal modes: %w", err)
	}
	return jobModes, nil
}

func (tm *terminal) close() {
	signal.Stop(tm.ttou)
}
