package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows that files are being processed, with a done/total count
// when the number of files is known. It stops on its own when its context
// ends.
type Spinner struct {
	w     io.Writer
	label string
	total int

	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	exited chan struct{}

	mu      sync.Mutex
	done    int
	width   int
	started bool
	once    sync.Once
}

// newSpinner returns a spinner labelled label that counts up to total.
// A total of zero hides the counter.
func newSpinner(ctx context.Context, w io.Writer, label string, total int) *Spinner {
	sctx, cancel := context.WithCancel(ctx)
	return &Spinner{
		w:      w,
		label:  label,
		total:  total,
		parent: ctx,
		ctx:    sctx,
		cancel: cancel,
		exited: make(chan struct{}),
	}
}

// Message is the text drawn next to the current frame.
func (s *Spinner) Message() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.total <= 0 {
		return s.label + "..."
	}
	return fmt.Sprintf("%s %d/%d", s.label, s.done, s.total)
}

// Step records one finished file. It is safe to call from several
// goroutines.
func (s *Spinner) Step() {
	s.mu.Lock()
	if s.done < s.total {
		s.done++
	}
	s.mu.Unlock()
}

// Start draws frames every 80ms until Stop is called or the context ends.
func (s *Spinner) Start() {
	s.mu.Lock()
	s.started = true
	s.mu.Unlock()

	go func() {
		defer close(s.exited)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i++ {
			s.draw(spinnerFrames[i%len(spinnerFrames)])
			select {
			case <-s.ctx.Done():
				s.clear()
				return
			case <-ticker.C:
			}
		}
	}()
}

func (s *Spinner) draw(frame string) {
	msg := s.Message()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width = max(s.width, len([]rune(msg))+2)
	fmt.Fprintf(s.w, "\r%s %s", styleIconSpinner.Render(frame), StyleDim.Render(msg))
}

func (s *Spinner) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.width > 0 {
		fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width))
	}
}

// Stop halts the animation and clears the line. Calling it more than once,
// or without Start, is harmless.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		s.cancel()
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			<-s.exited
		}
	})
}

// StopWithSuccess stops the spinner and prints msg as a success line.
func (s *Spinner) StopWithSuccess(msg string) {
	s.Stop()
	printSuccess("%s", msg)
}

// StopWithError stops the spinner and prints msg as an error line.
func (s *Spinner) StopWithError(msg string) {
	s.Stop()
	printError("%s", msg)
}

// Cancelled reports whether the context the spinner was created with has
// ended. Stop alone does not cancel it.
func (s *Spinner) Cancelled() bool {
	return s.parent.Err() != nil
}
