// Package health reports this process's resource footprint and a rough
// advisory for how many more tables it can safely host, so an operator
// dashboard (cmd/pokerctl) can flag a server approaching capacity before
// it starts dropping connections.
package health

import (
	"fmt"
	"os"

	"github.com/pbnjay/memory"
	"github.com/prometheus/procfs"
)

// bytesPerRoom is a rough, conservative estimate of one table's resident
// memory footprint (seats, event buffer, one in-flight hand's state),
// used only to turn free system memory into a room-count advisory.
const bytesPerRoom = 2 << 20 // 2 MiB

// Snapshot is one point-in-time resource reading.
type Snapshot struct {
	TotalSystemMemory uint64
	FreeSystemMemory  uint64
	ProcessRSSBytes   uint64
	ProcessCPUSeconds float64
	OpenFDs           int
	AdvisedMaxRooms   int
}

// Sampler reads /proc for this process via procfs. Where /proc isn't
// available, NewSampler returns a Sampler with process sampling disabled
// (plus an error), and Read returns zeroed process fields.
type Sampler struct {
	proc procfs.Proc
	ok   bool
}

// NewSampler opens a procfs handle for the current process.
func NewSampler() (*Sampler, error) {
	p, err := procfs.NewProc(os.Getpid())
	if err != nil {
		return &Sampler{ok: false}, fmt.Errorf("health: open procfs for pid %d: %w", os.Getpid(), err)
	}
	return &Sampler{proc: p, ok: true}, nil
}

// Read takes one snapshot of system and process resource usage.
func (s *Sampler) Read() Snapshot {
	total := memory.TotalMemory()
	free := memory.FreeMemory()

	snap := Snapshot{
		TotalSystemMemory: total,
		FreeSystemMemory:  free,
		AdvisedMaxRooms:   int(free / bytesPerRoom),
	}

	if s != nil && s.ok {
		if stat, err := s.proc.Stat(); err == nil {
			snap.ProcessRSSBytes = uint64(stat.ResidentMemory())
			snap.ProcessCPUSeconds = stat.CPUTime()
		}
		if fds, err := s.proc.FileDescriptorsLen(); err == nil {
			snap.OpenFDs = fds
		}
	}
	return snap
}
