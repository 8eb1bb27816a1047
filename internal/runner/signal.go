package runner

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
)

// SignalGuard is the terminal stand-in for the browser's navigation guard:
// while held it intercepts SIGINT and warns instead of letting the process
// die mid-exam. A second interrupt within the same hold is still absorbed;
// the attempt survives in the mirror either way, this only prevents the
// accidental ^C.
type SignalGuard struct {
	out io.Writer

	mu   sync.Mutex
	ch   chan os.Signal
	done chan struct{}
}

func NewSignalGuard(out io.Writer) *SignalGuard {
	return &SignalGuard{out: out}
}

func (g *SignalGuard) Acquire() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ch != nil {
		return
	}
	g.ch = make(chan os.Signal, 1)
	g.done = make(chan struct{})
	signal.Notify(g.ch, os.Interrupt)

	go func(ch chan os.Signal, done chan struct{}) {
		for {
			select {
			case <-done:
				return
			case <-ch:
				fmt.Fprintln(g.out, "An exam is in progress. Use :finish or :cancel to leave; your answers are saved for resume.")
			}
		}
	}(g.ch, g.done)
}

func (g *SignalGuard) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ch == nil {
		return
	}
	signal.Stop(g.ch)
	close(g.done)
	g.ch = nil
	g.done = nil
}
