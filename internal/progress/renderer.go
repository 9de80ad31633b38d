package progress

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Renderer manages multiple progress bars by updating them concurrently
// and handling terminal output synchronization.
type Renderer struct {
	bars    []*Bar
	output  io.Writer
	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// NewRenderer creates a Renderer that will manage the provided progress bars.
// It uses stdout as the default output destination.
func NewRenderer(bars []*Bar) *Renderer {
	return &Renderer{
		bars:   bars,
		output: os.Stdout,
		done:   make(chan struct{}),
	}
}

// Render starts the rendering loop that updates all progress bars.
// It clears previous lines and redraws bars every 100ms to show progress.
// The loop continues until Stop is called.
func (r *Renderer) Render() {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.draw()
		}
	}
}

// draw clears the previous lines and redraws all progress bars.
func (r *Renderer) draw() {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Clear previous lines using ANSI escape codes
	for range r.bars {
		_, _ = fmt.Fprint(r.output, "\033[1A\033[K")
	}

	// Draw updated progress bars
	for _, bar := range r.bars {
		_, _ = fmt.Fprintln(r.output, bar.String())
	}
}

// Stop ends the rendering loop and clears the progress bars from the screen.
// This prevents leftover progress bars from cluttering the terminal.
func (r *Renderer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true
	close(r.done)

	// Clear all progress bar lines one last time
	for range r.bars {
		_, _ = fmt.Fprint(r.output, "\033[1A\033[K")
	}
}
