package internal

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type Spinner struct {
	frames   []string
	interval time.Duration
	message  string
	writer   io.Writer
	active   bool
	mu       sync.Mutex
	stop     chan struct{}
	stopped  chan struct{}
}

func NewSpinner(message string) *Spinner {
	return &Spinner{
		frames:   spinnerFrames,
		interval: 100 * time.Millisecond,
		message:  message,
		writer:   os.Stdout,
	}
}

func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return
	}
	s.active = true
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})

	go s.loop(s.stop, s.stopped)
}

func (s *Spinner) loop(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for i := 0; ; i++ {
		s.mu.Lock()
		fmt.Fprintf(s.writer, "\r%s %s", s.frames[i%len(s.frames)], s.message)
		s.mu.Unlock()

		select {
		case <-stop:
			fmt.Fprint(s.writer, "\r\033[K")
			return
		case <-ticker.C:
		}
	}
}

// Stop halts the animation and waits until the line is cleared.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.stop)
	stopped := s.stopped
	s.mu.Unlock()

	<-stopped
}

func (s *Spinner) Success(message string) {
	s.Stop()
	fmt.Fprintf(s.writer, "\r✅ %s\n", message)
}

func (s *Spinner) Error(message string) {
	s.Stop()
	fmt.Fprintf(s.writer, "\r❌ %s\n", message)
}

func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// WithSpinner runs operation behind a spinner unless VerboseMode is set.
func WithSpinner(message string, operation func() error) error {
	return WithSpinnerConditional(message, operation, !VerboseMode)
}

func WithSpinnerConditional(message string, operation func() error, showSpinner bool) error {
	if !showSpinner {
		return operation()
	}

	spinner := NewSpinner(message)
	spinner.Start()

	if err := operation(); err != nil {
		spinner.Error(fmt.Sprintf("Failed: %s", message))
		return err
	}

	spinner.Success(message)
	return nil
}
