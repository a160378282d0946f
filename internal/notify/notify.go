package notify

import (
	"sync"

	"go.uber.org/zap"
)

// Notifier shows transient success/failure messages to the user.
// Calls are fire-and-forget.
type Notifier interface {
	Success(msg string)
	Failure(msg string)
}

// Level distinguishes success from failure messages.
type Level int

const (
	LevelSuccess Level = iota
	LevelFailure
)

// Func adapts a function to Notifier.
type Func func(level Level, msg string)

func (f Func) Success(msg string) { f(LevelSuccess, msg) }
func (f Func) Failure(msg string) { f(LevelFailure, msg) }

// Nop discards every message.
var Nop Notifier = Func(func(Level, string) {})

// Log writes messages to a zap logger. Used by headless commands.
func Log(logger *zap.Logger) Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Func(func(level Level, msg string) {
		if level == LevelFailure {
			logger.Warn(msg)
			return
		}
		logger.Info(msg)
	})
}

// Message is a recorded notification.
type Message struct {
	Level Level
	Text  string
}

// Recorder keeps every message it receives.
type Recorder struct {
	mu   sync.Mutex
	msgs []Message
}

func (r *Recorder) Success(msg string) { r.add(LevelSuccess, msg) }
func (r *Recorder) Failure(msg string) { r.add(LevelFailure, msg) }

func (r *Recorder) add(level Level, msg string) {
	r.mu.Lock()
	r.msgs = append(r.msgs, Message{Level: level, Text: msg})
	r.mu.Unlock()
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.msgs...)
}

// Count returns how many messages of level were recorded.
func (r *Recorder) Count(level Level) int {
	n := 0
	for _, m := range r.Messages() {
		if m.Level == level {
			n++
		}
	}
	return n
}
