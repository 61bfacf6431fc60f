package worker

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/MeKo-Tech/cubeplanet/internal/quadtree"
)

// PatchCounts accumulates the structural changes of LOD passes.
type PatchCounts struct {
	Built      int
	Released   int
	Failed     int
	Subdivided int
	Merged     int
}

func (c *PatchCounts) add(r *quadtree.Report) {
	if r == nil {
		return
	}
	c.Built += len(r.Built)
	c.Released += len(r.Released)
	c.Failed += len(r.Failed)
	c.Subdivided += r.Subdivided
	c.Merged += r.Merged
}

// Net returns the number of live patches gained.
func (c PatchCounts) Net() int {
	return c.Built - c.Released
}

// Snapshot is a consistent copy of a Progress.
type Snapshot struct {
	Step    int
	Steps   int
	Failed  int
	Last    PatchCounts
	Patches PatchCounts
	Elapsed time.Duration
}

// Fraction returns the completed share in [0,1].
func (s Snapshot) Fraction() float64 {
	if s.Steps <= 0 {
		return 0
	}
	f := float64(s.Step) / float64(s.Steps)
	if f > 1 {
		return 1
	}
	return f
}

// Progress reports the advance of a multi-step job on a terminal line.
// Steps are either LOD ticks, which also carry patch counts, or rendered
// faces coming from the pool.
type Progress struct {
	mu      sync.Mutex
	out     io.Writer
	now     func() time.Time
	start   time.Time
	unit    string
	enabled bool

	step    int
	steps   int
	failed  int
	last    PatchCounts
	patches PatchCounts
}

// NewProgress creates a tracker for steps units, e.g. 10 "ticks".
func NewProgress(steps int, unit string, enabled bool) *Progress {
	if unit == "" {
		unit = "steps"
	}
	return &Progress{
		out:     os.Stderr,
		now:     time.Now,
		start:   time.Now(),
		unit:    unit,
		enabled: enabled,
		steps:   steps,
	}
}

// Tick records one LOD pass. A pass with failed builds counts as failed.
func (p *Progress) Tick(r *quadtree.Report) {
	p.mu.Lock()
	p.step++
	p.last = PatchCounts{}
	p.last.add(r)
	p.patches.add(r)
	if p.last.Failed > 0 {
		p.failed++
	}
	p.mu.Unlock()
	p.draw()
}

// Callback adapts the tracker to the pool's progress hook.
func (p *Progress) Callback() ProgressFunc {
	return func(completed, total, failed int) {
		p.mu.Lock()
		p.step, p.steps, p.failed = completed, total, failed
		p.mu.Unlock()
		p.draw()
	}
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		Step:    p.step,
		Steps:   p.steps,
		Failed:  p.failed,
		Last:    p.last,
		Patches: p.patches,
		Elapsed: p.now().Sub(p.start),
	}
}

// Line renders the status line without the carriage return.
func (p *Progress) Line() string {
	s := p.Snapshot()

	const width = 24
	filled := int(s.Fraction() * width)
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d/%d [%s%s] %3.0f%%", p.unit, s.Step, s.Steps,
		strings.Repeat("=", filled), strings.Repeat(" ", width-filled), s.Fraction()*100)

	if s.Patches != (PatchCounts{}) {
		fmt.Fprintf(&b, " | patches +%d -%d", s.Last.Built, s.Last.Released)
		if s.Last.Failed > 0 {
			fmt.Fprintf(&b, " !%d", s.Last.Failed)
		}
		fmt.Fprintf(&b, " (net %+d)", s.Patches.Net())
	}
	if s.Failed > 0 {
		fmt.Fprintf(&b, " | %d failed", s.Failed)
	}
	fmt.Fprintf(&b, " | %s", s.Elapsed.Round(100*time.Millisecond))
	return b.String()
}

func (p *Progress) draw() {
	if !p.enabled {
		return
	}
	// Trailing spaces wipe a longer previous line.
	fmt.Fprintf(p.out, "\r%s    ", p.Line())
}

// Done terminates the status line.
func (p *Progress) Done() {
	if !p.enabled {
		return
	}
	p.draw()
	fmt.Fprintln(p.out)
}

// Summary describes the finished job in one sentence.
func (p *Progress) Summary() string {
	s := p.Snapshot()
	msg := fmt.Sprintf("Completed %d/%d %s in %s", s.Step-s.Failed, s.Steps, p.unit,
		s.Elapsed.Round(time.Millisecond))
	if s.Failed > 0 {
		msg += fmt.Sprintf(", %d failed", s.Failed)
	}
	if s.Patches != (PatchCounts{}) {
		msg += fmt.Sprintf("; patches built %d, released %d, failed %d, subdivided %d, merged %d",
			s.Patches.Built, s.Patches.Released, s.Patches.Failed, s.Patches.Subdivided, s.Patches.Merged)
	}
	return msg
}
