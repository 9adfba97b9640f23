// Package diag implements the diagnostic printing sink consumed by the slab
// allocator: leveled (debug/info/warn/error) structured logging, plus a
// token-bucket throttle so a misbehaving caller can't turn one misattributed
// free into a log storm.
package diag

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/yasserelgammal/rate-limiter/limiter"
	"github.com/yasserelgammal/rate-limiter/store"
)

// Level is the severity of a diagnostic message.
type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var levelNames = map[Level]string{
	Debug: "DEBUG",
	Info:  "INFO",
	Warn:  "WARN",
	Error: "ERROR",
}

// Field is a key-value pair attached to a diagnostic message.
type Field struct {
	Key   string
	Value interface{}
}

func (f Field) format() string {
	switch v := f.Value.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case error:
		return fmt.Sprintf("%q", v.Error())
	default:
		return fmt.Sprintf("%v", v)
	}
}

func String(key, value string) Field { return Field{Key: key, Value: value} }
func Uint(key string, value uint) Field { return Field{Key: key, Value: value} }
func Uint32(key string, value uint32) Field { return Field{Key: key, Value: value} }
func Int(key string, value int) Field { return Field{Key: key, Value: value} }
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Sink is the diagnostic printing sink described by the allocator's external
// interfaces: a leveled, component-tagged, optionally rate-limited writer.
//
// A nil *Sink is valid and logs to nothing; allocator components accept a
// *Sink and treat nil as "no diagnostics wanted" rather than requiring every
// caller to wire one up in tests.
type Sink struct {
	mu        sync.Mutex
	level     Level
	component string
	output    io.Writer
	timeFmt   string

	// limiter throttles repeated identical keys (e.g. "misattributed-free on
	// cache X") so a caller stuck in a free-loop against the wrong cache
	// cannot flood the sink. Nil disables throttling.
	limiter      *limiter.TokenBucket
	limiterStore store.Store
}

// Config configures a new Sink.
type Config struct {
	Level     Level
	Component string
	Output    io.Writer

	// RatePerSecond and Burst bound how often a given throttle key may log;
	// zero RatePerSecond disables throttling entirely.
	RatePerSecond int64
	Burst         int64
}

// New creates a diagnostic sink per Config.
func New(cfg Config) *Sink {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}

	s := &Sink{
		level:     cfg.Level,
		component: cfg.Component,
		output:    cfg.Output,
		timeFmt:   "15:04:05.000",
	}

	if cfg.RatePerSecond > 0 {
		s.limiterStore = store.NewMemoryStore(time.Minute)
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.RatePerSecond
		}
		tb, err := limiter.NewTokenBucket(limiter.Config{
			Rate:     cfg.RatePerSecond,
			Duration: time.Second,
			Burst:    burst,
		}, s.limiterStore)
		if err == nil {
			s.limiter = tb
		}
	}

	return s
}

// Default returns a sink at Info level writing to stderr, tagged with
// component, with no throttling.
func Default(component string) *Sink {
	return New(Config{Level: Info, Component: component, Output: os.Stderr})
}

func (s *Sink) Debug(msg string, fields ...Field) { s.log(Debug, msg, "", fields...) }
func (s *Sink) Info(msg string, fields ...Field)  { s.log(Info, msg, "", fields...) }
func (s *Sink) Error(msg string, fields ...Field) { s.log(Error, msg, "", fields...) }

// Warn logs a warning. If throttleKey is non-empty and a rate limiter is
// configured, repeated warnings sharing the same key beyond the configured
// rate are dropped silently rather than printed.
func (s *Sink) Warn(msg string, throttleKey string, fields ...Field) {
	s.log(Warn, msg, throttleKey, fields...)
}

func (s *Sink) log(level Level, msg, throttleKey string, fields ...Field) {
	if s == nil {
		return
	}
	if level < s.level {
		return
	}
	if throttleKey != "" && s.limiter != nil && !s.limiter.Allow(throttleKey) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(time.Now().Format(s.timeFmt))
	b.WriteString("] [")
	b.WriteString(fmt.Sprintf("%-5s", levelNames[level]))
	b.WriteString("]")
	if s.component != "" {
		b.WriteString(" [")
		b.WriteString(s.component)
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(msg)
	for _, f := range fields {
		b.WriteString(" ")
		b.WriteString(f.Key)
		b.WriteString("=")
		b.WriteString(f.format())
	}
	b.WriteString("\n")

	s.output.Write([]byte(b.String()))
}
