package internal

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gosuri/uiprogress"
)

// Progress shows one bar per copy phase. It is a no-op in VerboseMode.
type Progress struct {
	mu       sync.Mutex
	progress *uiprogress.Progress
	bar      *uiprogress.Bar
	enabled  bool
	started  bool
}

func NewProgress() *Progress {
	return newProgress(os.Stdout, !VerboseMode)
}

func newProgress(out io.Writer, enabled bool) *Progress {
	p := uiprogress.New()
	p.SetOut(out)
	return &Progress{
		progress: p,
		enabled:  enabled,
	}
}

// StartPhase adds a fresh bar sized for the jobs of the phase about to run.
func (p *Progress) StartPhase(phase string, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled || total <= 0 {
		return
	}
	if !p.started {
		p.progress.Start()
		p.started = true
	}

	label := fmt.Sprintf("%-9s", phase)
	bar := p.progress.AddBar(total).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return fmt.Sprintf("%s %d/%d", label, b.Current(), b.Total)
	})
	p.bar = bar
}

func (p *Progress) Incr() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.Incr()
	}
}

func (p *Progress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		p.progress.Stop()
		p.started = false
	}
	p.bar = nil
}
