// Package progress provides sinks for cumulative byte counts reported by a
// running transfer.
package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sirupsen/logrus"
)

// Func receives the cumulative number of bytes moved so far.
type Func func(bytes int64)

// Safe wraps f so that a panicking sink never reaches the caller. A nil f
// yields a no-op.
func Safe(f Func) Func {
	if f == nil {
		return func(int64) {}
	}
	return func(bytes int64) {
		defer func() {
			_ = recover()
		}()
		f(bytes)
	}
}

func Multi(sinks ...Func) Func {
	return func(bytes int64) {
		for _, s := range sinks {
			if s != nil {
				s(bytes)
			}
		}
	}
}

// Bar renders a byte progress bar to w. total may be -1 when unknown.
func Bar(w io.Writer, total int64, description string) (Func, func()) {
	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(w, "\n")
		}),
	)
	sink := func(bytes int64) {
		_ = bar.Set64(bytes)
	}
	finish := func() {
		_ = bar.Finish()
	}
	return sink, finish
}

// Log reports progress in KB the way the mobile UI shows it, e.g.
// "Sending photo.jpg: 512 KB".
func Log(logger *logrus.Logger, action string, name string) Func {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return func(bytes int64) {
		logger.WithFields(logrus.Fields{
			"file":  name,
			"bytes": bytes,
		}).Debugf("%s %s: %d KB", action, name, bytes/1024)
	}
}
