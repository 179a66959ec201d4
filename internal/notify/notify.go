// Package notify presents user-facing warnings from the API client: the
// rate-limited access-denied warning and the offline indicator.
package notify

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// DefaultGap is the minimum time between two identical warnings.
const DefaultGap = 4000 * time.Millisecond

// AccessDeniedMessage is the warning shown when the backend answers 403.
const AccessDeniedMessage = "Access denied: you do not have permission to perform this action."

// Notifier displays a warning to the user.
type Notifier interface {
	Warn(message string)
}

// WriterNotifier prints warnings to a writer, typically stderr.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier returns a Notifier writing one line per warning to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Warn writes the message.
func (n *WriterNotifier) Warn(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	fmt.Fprintf(n.w, "Warning: %s\n", message)
}

// Throttle shows one warning at most once per gap. A call inside the gap is
// a no-op; suppressed calls do not extend the gap.
type Throttle struct {
	limiter  *rate.Limiter
	notifier Notifier
	message  string
	logger   *slog.Logger

	// nowFunc returns the current time. Tests override it.
	nowFunc func() time.Time
}

// NewThrottle returns a Throttle showing message through notifier at most
// once per gap. A non-positive gap means DefaultGap.
func NewThrottle(notifier Notifier, message string, gap time.Duration, logger *slog.Logger) *Throttle {
	if gap <= 0 {
		gap = DefaultGap
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Throttle{
		limiter:  rate.NewLimiter(rate.Every(gap), 1),
		notifier: notifier,
		message:  message,
		logger:   logger,
		nowFunc:  time.Now,
	}
}

// Notify shows the warning if the gap has elapsed since the last display.
// It reports whether the warning was shown.
func (t *Throttle) Notify() bool {
	if !t.limiter.AllowN(t.nowFunc(), 1) {
		t.logger.Debug("warning suppressed by throttle", slog.String("message", t.message))
		return false
	}

	t.notifier.Warn(t.message)

	return true
}

// Indicator tracks whether the backend is currently believed unreachable.
// Transitions are reported to onChange once per change, not once per call.
type Indicator struct {
	offline  atomic.Bool
	onChange func(offline bool)
}

// NewIndicator returns an online indicator. onChange may be nil.
func NewIndicator(onChange func(offline bool)) *Indicator {
	return &Indicator{onChange: onChange}
}

// SetOffline marks the backend unreachable.
func (i *Indicator) SetOffline() {
	if i.offline.CompareAndSwap(false, true) && i.onChange != nil {
		i.onChange(true)
	}
}

// Clear marks the backend reachable again after a real successful response.
func (i *Indicator) Clear() {
	if i.offline.CompareAndSwap(true, false) && i.onChange != nil {
		i.onChange(false)
	}
}

// Offline reports the current state.
func (i *Indicator) Offline() bool {
	return i.offline.Load()
}
