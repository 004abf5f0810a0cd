package devserver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// localURLRegex matches a self-announced local dev-server URL, the shape
// Vite and friends print once they are listening. Loopback hosts only: a
// "Network:" line advertising a LAN address is not a readiness signal.
var localURLRegex = regexp.MustCompile(`https?://(?:localhost|127\.0\.0\.1|0\.0\.0\.0):\d{1,5}/?`)

// ParseReadyURL extracts a local dev-server URL from one line of process
// output. It is deliberately a small pure function: the scan is a brittle
// parser over unstructured tool output, so its exact behavior is pinned
// with literal sample lines in tests.
//
// Returns:
//   - string: The URL without its trailing slash
//   - bool: Whether the line contained a local URL
func ParseReadyURL(line string) (string, bool) {
	match := localURLRegex.FindString(line)
	if match == "" {
		return "", false
	}
	return strings.TrimSuffix(match, "/"), true
}

// URLFor formats the URL a dev server on the given local port would serve.
func URLFor(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}

// AwaitReady scans the process's stdout and stderr concurrently until one of
// them announces a local URL, the process exits, or the timeout elapses.
// Exactly one of those outcomes resolves the wait:
//
//   - URL match: returned as-is (the tool's actual bound port, which may
//     differ from the one that was requested).
//   - Process exit: hard failure, *EarlyExitError. A URL already scanned
//     when the exit is observed still wins.
//   - Timeout or context cancellation: soft failure, ErrReadyTimeout. The
//     server may have started without printing in time, so callers fall
//     back to the predicted URL rather than tearing it down.
//
// Both streams keep draining to EOF after the wait resolves so the child
// never blocks on a full pipe; later matches cannot change the outcome.
func AwaitReady(ctx context.Context, p *Process, timeout time.Duration) (string, error) {
	// Buffered one slot per stream: whichever scanner matches first wins at
	// the receive below, and a second match can never block its scanner.
	urlCh := make(chan string, 2)

	go scanForURL("stdout", p.Stdout, urlCh, p.OnLine)
	go scanForURL("stderr", p.Stderr, urlCh, p.OnLine)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case url := <-urlCh:
		return url, nil
	case err := <-p.Exit:
		// The process printed a URL and exited in quick succession: the
		// match was first, honor it.
		select {
		case url := <-urlCh:
			return url, nil
		default:
		}
		return "", &EarlyExitError{Err: err}
	case <-timer.C:
		return "", ErrReadyTimeout
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", ErrReadyTimeout, ctx.Err())
	}
}

// scanForURL reads a stream line by line, reporting each line to onLine and
// offering the first URL match to resolved. It drains to EOF regardless of
// whether anyone is still listening.
func scanForURL(stream string, r io.Reader, resolved chan<- string, onLine func(stream, line string)) {
	if r == nil {
		return
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // dev tools print long lines
	for scanner.Scan() {
		line := scanner.Text()
		if onLine != nil {
			onLine(stream, line)
		}
		if url, ok := ParseReadyURL(line); ok {
			select {
			case resolved <- url:
			default:
			}
		}
	}
}
