/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package logger wraps logrus behind a small interface so the rest of this
// module never imports logrus directly, matching nabbar/golib/logger's
// separation between the logging contract and its backend.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level mirrors logrus' level set without leaking the logrus type into
// callers' signatures.
type Level uint32

const (
	PanicLevel Level = iota
	FatalLevel
	ErrorLevel
	WarnLevel
	InfoLevel
	DebugLevel
)

func (l Level) toLogrus() logrus.Level {
	return logrus.Level(l)
}

// Fields is a set of structured key/value pairs merged into every entry
// emitted by a Logger, e.g. request-id, bucket, key, operation.
type Fields map[string]interface{}

// Logger is the contract the rest of this module depends on. A Logger is
// safe for concurrent use.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level

	SetFields(f Fields)
	GetFields() Fields

	// WithFields returns a derived Logger that merges f into every entry it
	// emits, without mutating the receiver.
	WithFields(f Fields) Logger

	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})

	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})

	// SetOutput redirects where entries are written; used to attach a file
	// hook in addition to (or instead of) stdout.
	SetOutput(w io.Writer)
}

type log struct {
	mu sync.RWMutex
	l  *logrus.Logger
	f  Fields
}

// New builds a Logger writing to stdout at InfoLevel with a text formatter,
// the same defaults nabbar/golib/logger applies before a config.Options is
// supplied.
func New() Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &log{l: l, f: make(Fields)}
}

var (
	defMu  sync.RWMutex
	defLog Logger = New()
)

// Default returns the process-wide default Logger. Components may accept an
// explicit Logger through their constructor instead; Default exists for
// package-level helpers and the CLI bootstrap.
func Default() Logger {
	defMu.RLock()
	defer defMu.RUnlock()
	return defLog
}

// SetDefault replaces the process-wide default Logger.
func SetDefault(l Logger) {
	defMu.Lock()
	defer defMu.Unlock()
	defLog = l
}

func (g *log) SetLevel(lvl Level) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.l.SetLevel(lvl.toLogrus())
}

func (g *log) GetLevel() Level {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Level(g.l.GetLevel())
}

func (g *log) SetFields(f Fields) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.f = f
}

func (g *log) GetFields() Fields {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.f
}

func (g *log) SetOutput(w io.Writer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.l.SetOutput(w)
}

func (g *log) entry() *logrus.Entry {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.l.WithFields(logrus.Fields(g.f))
}

func (g *log) WithFields(f Fields) Logger {
	g.mu.RLock()
	merged := make(Fields, len(g.f)+len(f))
	for k, v := range g.f {
		merged[k] = v
	}
	g.mu.RUnlock()

	for k, v := range f {
		merged[k] = v
	}

	return &log{l: g.l, f: merged}
}

func (g *log) Debug(args ...interface{}) { g.entry().Debug(args...) }
func (g *log) Info(args ...interface{})  { g.entry().Info(args...) }
func (g *log) Warn(args ...interface{})  { g.entry().Warn(args...) }
func (g *log) Error(args ...interface{}) { g.entry().Error(args...) }

func (g *log) Debugf(format string, args ...interface{}) { g.entry().Debugf(format, args...) }
func (g *log) Infof(format string, args ...interface{})  { g.entry().Infof(format, args...) }
func (g *log) Warnf(format string, args ...interface{})  { g.entry().Warnf(format, args...) }
func (g *log) Errorf(format string, args ...interface{}) { g.entry().Errorf(format, args...) }
