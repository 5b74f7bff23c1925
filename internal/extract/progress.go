package extract

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// progressInterval is how often a dot is printed while extracting.
var progressInterval = 5 * time.Second

// announce prints the uncompression message and, on a terminal, a dot every
// progressInterval until the returned stop function is called.
func (m *Machine) announce() (stop func()) {
	if m.Message == "" || m.Stderr == nil {
		return func() {}
	}
	fmt.Fprint(m.Stderr, m.Message)

	done := make(chan struct{})
	var wg sync.WaitGroup
	if isTerminal(m.Stderr) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(progressInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					fmt.Fprint(m.Stderr, ".")
				case <-done:
					return
				}
			}
		}()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
			fmt.Fprintln(m.Stderr)
		})
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
