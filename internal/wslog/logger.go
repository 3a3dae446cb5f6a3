// MIT License
//
// Copyright (c) 2024 sphinx-core
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package wslog is a small leveled logger shared by wsserver and wsclient.
package wslog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level is the severity of a log line.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

var (
	mu           sync.Mutex
	currentLevel = INFO
	buffer       = &ringBuffer{}
	out          io.Writer = io.MultiWriter(os.Stderr, buffer)
)

// ringBuffer keeps recent log output in memory for tests and admin
// inspection. It is unbounded in this implementation; callers that log
// at high volume for long-running processes should call Reset
// periodically.
type ringBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *ringBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *ringBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *ringBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf.Reset()
}

// SetLevel sets the minimum level that will be emitted.
func SetLevel(lvl Level) {
	mu.Lock()
	defer mu.Unlock()
	currentLevel = lvl
}

// SetOutput redirects log output, primarily for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Recent returns the buffered log output collected since the last Reset.
func Recent() string {
	return buffer.String()
}

// Reset clears the in-memory buffer.
func Reset() {
	buffer.Reset()
}

func logf(level Level, format string, args ...any) {
	mu.Lock()
	if level < currentLevel {
		mu.Unlock()
		return
	}
	w := out
	mu.Unlock()

	ts := time.Now().Format("2006-01-02 15:04:05.000")
	prefix := fmt.Sprintf("%s [%s] ", ts, levelNames[level])
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}
	fmt.Fprint(w, prefix+msg)
}

// Debugf logs at DEBUG level.
func Debugf(format string, args ...any) { logf(DEBUG, format, args...) }

// Infof logs at INFO level.
func Infof(format string, args ...any) { logf(INFO, format, args...) }

// Warnf logs at WARN level.
func Warnf(format string, args ...any) { logf(WARN, format, args...) }

// Errorf logs at ERROR level.
func Errorf(format string, args ...any) { logf(ERROR, format, args...) }
