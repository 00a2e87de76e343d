package stats

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Reporter writes the user-facing ping output.
type Reporter struct {
	w      io.Writer
	styled bool
	title  lipgloss.Style
}

// NewReporter returns a Reporter writing to w. The summary title is styled
// only when w is a terminal.
func NewReporter(w io.Writer) *Reporter {
	r := &Reporter{w: w}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.styled = true
		r.title = lipgloss.NewStyle().Bold(true)
	}
	return r
}

// Banner prints the line announcing the target.
func (r *Reporter) Banner(host string, ip net.IP, size int) {
	fmt.Fprintf(r.w, "PING %s (%s) %d bytes of data.\n", host, ip, size)
}

// Reply prints one matched echo reply.
func (r *Reporter) Reply(n int, src net.IP, seq uint16, ttl int, rtt time.Duration) {
	fmt.Fprintf(r.w, "%d bytes from %s : icmp_seq=%d ttl=%d rtt=%.1fms\n",
		n, src, seq, ttl, Milliseconds(rtt))
}

// Summary prints the final statistics for host.
func (r *Reporter) Summary(host string, s Snapshot) {
	title := fmt.Sprintf("--- %s ping statistics ---", host)
	if r.styled {
		title = r.title.Render(title)
	}
	fmt.Fprintln(r.w, title)

	fmt.Fprintf(r.w, "%d packets transmitted, %d received, %d%% packet loss, time %dms\n",
		s.Sent, s.Received, s.Loss(), s.Elapsed().Milliseconds())

	if s.Received > 0 {
		fmt.Fprintf(r.w, "rtt min/avg/max/mdev = %.3f/%.3f/%.3f/%.3f ms\n",
			s.Min, s.Avg, s.Max, s.Mdev)
	}
}
