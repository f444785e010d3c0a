package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	progressCells = 30
	progressItem  = 40
)

// ProgressBar draws a one-line progress indicator for a batch of work items,
// with elapsed time and an estimate of the time left.
type ProgressBar struct {
	mu    sync.Mutex
	w     io.Writer
	unit  string
	start time.Time
	now   func() time.Time
}

// NewProgressBar starts a progress bar on w counting items named by unit,
// e.g. "files" or "tests".
func NewProgressBar(w io.Writer, unit string) *ProgressBar {
	return &ProgressBar{w: w, unit: unit, start: time.Now(), now: time.Now}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Update redraws the bar after done of total items; item names the one that
// just finished. The line is ended once done reaches total.
func (pb *ProgressBar) Update(done, total int, item string) {
	if total <= 0 {
		return
	}
	pb.mu.Lock()
	defer pb.mu.Unlock()

	frac := float64(done) / float64(total)
	if frac > 1 {
		frac = 1
	}
	cells := int(frac * progressCells)
	elapsed := pb.now().Sub(pb.start)

	status := fmt.Sprintf("%d/%d %s %3.0f%% %s", done, total, pb.unit, frac*100, elapsed.Round(time.Second))
	if done > 0 && done < total {
		left := time.Duration(float64(elapsed) / float64(done) * float64(total-done))
		status += " eta " + left.Round(time.Second).String()
	}

	// \x1b[K clears what is left of a longer previous line.
	fmt.Fprintf(pb.w, "\r\x1b[K  [%s%s] %s  %s",
		strings.Repeat("#", cells), strings.Repeat(".", progressCells-cells), status, tailName(item, progressItem))

	if done >= total {
		fmt.Fprintln(pb.w)
	}
}

// tailName keeps the last n runes of s, marking the cut with "...".
func tailName(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return "..." + string(r[len(r)-n+3:])
}
