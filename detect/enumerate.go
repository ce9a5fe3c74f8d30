package detect

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v4/process"
)

type Process struct {
	PID  int32
	Name string
}

// Window is a top-level visible window. Owner is the name of the process
// that created it, empty when it could not be resolved. Title never decides
// a match.
type Window struct {
	PID     int32
	Owner   string
	Title   string
	Cloaked bool
}

// Enumerator lists running processes and top-level visible windows.
type Enumerator interface {
	Processes(ctx context.Context) ([]Process, error)
	Windows(ctx context.Context) ([]Window, error)
}

// System enumerates the real machine: processes through gopsutil, windows
// through the platform window manager where one is reachable.
type System struct{}

func (System) Processes(ctx context.Context) ([]Process, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	out := make([]Process, 0, len(procs))
	for _, p := range procs {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Processes can exit or deny access between listing and lookup.
			continue
		}
		out = append(out, Process{PID: p.Pid, Name: name})
	}
	return out, nil
}

func (System) Windows(ctx context.Context) ([]Window, error) {
	wins, err := visibleWindows(ctx)
	names := make(map[int32]string)
	for i := range wins {
		pid := wins[i].PID
		name, seen := names[pid]
		if !seen {
			if p, perr := process.NewProcessWithContext(ctx, pid); perr == nil {
				name, _ = p.NameWithContext(ctx)
			}
			names[pid] = name
		}
		wins[i].Owner = name
	}
	return wins, err
}
