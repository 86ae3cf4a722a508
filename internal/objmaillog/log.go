// Package objmaillog wraps logrus with a cached-by-destination logger
// supporting "stdout", "stderr", "off", or a file path, the same output
// vocabulary the teacher's logging package exposes. Grounded on the
// teacher's log/log.go HookedLogger/LogrusHook pair, with the dashboard
// hook dropped (this repo has no dashboard) and WithConn generalized to
// WithRequestID for HTTP request correlation instead of net.Conn.
package objmaillog

import (
	"bufio"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Named destinations recognized by Get, mirroring the teacher's
// OutputOption enum (log/log.go) without the Null/Off distinction the
// teacher draws between "parsed but discarded" and "unset" — this repo
// only needs the three real destinations plus "off".
const (
	OutputStderr = "stderr"
	OutputStdout = "stdout"
	OutputOff    = "off"
)

// Logger is satisfied by *Entry-returning loggers wrapping a *logrus.Logger.
type Logger interface {
	logrus.FieldLogger
	WithRequestID(r *http.Request) *logrus.Entry
	Reopen() error
	GetLogDest() string
	SetLevel(level string)
	GetLevel() string
}

// HookedLogger is a logrus.Logger plus a destination-backed hook, following
// the teacher's HookedLogger shape.
type HookedLogger struct {
	*logrus.Logger
	hook *destHook
}

var (
	cacheMu sync.Mutex
	cache   = map[string]Logger{}
)

// Get returns the cached Logger for dest, creating one if needed. dest may
// be "stdout", "stderr", "off", or a file path. Mirrors the teacher's
// GetLogger singleton-factory-per-destination pattern.
func Get(dest string) (Logger, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if l, ok := cache[dest]; ok {
		return l, nil
	}

	base := logrus.New()
	base.SetOutput(io.Discard)

	l := &HookedLogger{Logger: base}
	hook, err := newDestHook(dest)
	if err != nil {
		base.SetOutput(os.Stderr)
		cache[dest] = l
		return l, err
	}
	l.hook = hook
	base.AddHook(hook)

	cache[dest] = l
	return l, nil
}

func (l *HookedLogger) WithRequestID(r *http.Request) *logrus.Entry {
	id := r.Header.Get("X-Request-Id")
	if id == "" {
		id = "-"
	}
	return l.WithField("request_id", id)
}

func (l *HookedLogger) SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}
	l.Logger.SetLevel(lvl)
}

func (l *HookedLogger) GetLevel() string { return l.Logger.GetLevel().String() }

func (l *HookedLogger) Reopen() error {
	if l.hook == nil {
		return nil
	}
	return l.hook.reopen()
}

func (l *HookedLogger) GetLogDest() string {
	if l.hook == nil {
		return ""
	}
	return l.hook.dest
}

// destHook is a logrus.Hook writing plain (non-colored) lines to dest.
// Grounded on the teacher's LogrusHook, trimmed to drop the dashboard fan-out.
type destHook struct {
	mu   sync.Mutex
	dest string
	w    io.Writer
	fd   *os.File
	fmt  *logrus.TextFormatter
}

func newDestHook(dest string) (*destHook, error) {
	h := &destHook{dest: dest, fmt: &logrus.TextFormatter{DisableColors: true}}
	if err := h.open(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *destHook) open() error {
	switch h.dest {
	case "", "stderr":
		h.w = os.Stderr
		return nil
	case "stdout":
		h.w = os.Stdout
		return nil
	case "off":
		h.w = io.Discard
		return nil
	}
	flags := os.O_APPEND | os.O_CREATE | os.O_WRONLY
	fd, err := os.OpenFile(h.dest, flags, 0644)
	if err != nil {
		h.w = os.Stderr
		h.fd = nil
		return err
	}
	h.fd = fd
	h.w = bufio.NewWriter(fd)
	return nil
}

func (h *destHook) reopen() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fd != nil {
		h.fd.Close()
	}
	return h.open()
}

func (h *destHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *destHook) Fire(entry *logrus.Entry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fd != nil {
		old := entry.Logger.Formatter
		entry.Logger.Formatter = h.fmt
		defer func() { entry.Logger.Formatter = old }()
	}
	line, err := entry.String()
	if err != nil {
		return err
	}
	if _, err := io.WriteString(h.w, line); err != nil {
		return err
	}
	if wb, ok := h.w.(*bufio.Writer); ok {
		if err := wb.Flush(); err != nil {
			return err
		}
		if h.fd != nil {
			return h.fd.Sync()
		}
	}
	return nil
}
