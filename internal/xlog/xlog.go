// Package xlog is the small logging helper shared by every component.
//
// It mirrors the teacher's writeLog/wlog style: a timestamped line to
// stdout, optionally fanned out to extra sinks registered with AddSink.
package xlog

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"
)

// Sink receives every logged line in addition to stdout.
type Sink func(line string)

var (
	mu     sync.RWMutex
	sinks  []Sink
	stdout = log.New(os.Stdout, "", log.LstdFlags)
)

// AddSink registers an extra destination for log lines (e.g. the
// dashboard's websocket broadcaster). Safe for concurrent use.
func AddSink(s Sink) {
	mu.Lock()
	sinks = append(sinks, s)
	mu.Unlock()
}

// Printf logs a formatted line to stdout and every registered sink.
func Printf(format string, args ...any) {
	emit(fmt.Sprintf(format, args...))
}

// Println logs a line to stdout and every registered sink.
func Println(args ...any) {
	emit(fmt.Sprintln(args...))
}

func emit(msg string) {
	line := fmt.Sprintf("%s %s", time.Now().Format(time.DateTime), msg)
	stdout.Println(line)

	mu.RLock()
	defer mu.RUnlock()
	for _, s := range sinks {
		s(line)
	}
}
