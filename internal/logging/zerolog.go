package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// ZerologLogger adapts rs/zerolog to the Logger interface. It is the
// implementation the binary runs with; StdoutLogger remains for tests
// and quick development runs.
type ZerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger creates a production logger writing JSON lines to w.
// component is attached as a persistent field when non-empty.
func NewZerologLogger(w io.Writer, component string) *ZerologLogger {
	if w == nil {
		w = os.Stdout
	}
	ctx := zerolog.New(w).With().Timestamp()
	if component != "" {
		ctx = ctx.Str("component", component)
	}
	return &ZerologLogger{zl: ctx.Logger().Level(zerolog.InfoLevel)}
}

func (z *ZerologLogger) emit(ev *zerolog.Event, msg string, fields []Field) {
	for _, f := range fields {
		ev = ev.Interface(f.Key, f.Value)
	}
	ev.Msg(msg)
}

func (z *ZerologLogger) Debug(msg string, fields ...Field) {
	z.emit(z.zl.Debug(), msg, fields)
}

func (z *ZerologLogger) Info(msg string, fields ...Field) {
	z.emit(z.zl.Info(), msg, fields)
}

func (z *ZerologLogger) Warn(msg string, fields ...Field) {
	z.emit(z.zl.Warn(), msg, fields)
}

func (z *ZerologLogger) Error(msg string, fields ...Field) {
	z.emit(z.zl.Error(), msg, fields)
}

func (z *ZerologLogger) With(fields ...Field) Logger {
	ctx := z.zl.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &ZerologLogger{zl: ctx.Logger()}
}
