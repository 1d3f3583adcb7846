package log

import (
	"context"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// zerologLogger は zerolog をバックエンドにした Logger 実装です。
// 学習CLIのようにターミナルへ出力するプロセスで使います。
type zerologLogger struct {
	zl zerolog.Logger
}

// NewZerologLogger はwへJSON行を書き出すLoggerを返します。
func NewZerologLogger(w io.Writer, level Level) Logger {
	zl := zerolog.New(w).Level(toZerologLevel(level)).With().Timestamp().Logger()
	return &zerologLogger{zl: zl}
}

// NewConsoleLogger は人間向けに整形したzerolog出力を返します。
func NewConsoleLogger(w io.Writer, level Level) Logger {
	return NewZerologLogger(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}, level)
}

func toZerologLevel(level Level) zerolog.Level {
	switch {
	case level <= LevelDebug:
		return zerolog.DebugLevel
	case level <= LevelInfo:
		return zerolog.InfoLevel
	case level <= LevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

func (z *zerologLogger) Debug(msg string, fields ...any) {
	z.zl.Debug().Fields(normalizeFields(fields)).Msg(msg)
}

func (z *zerologLogger) Info(msg string, fields ...any) {
	z.zl.Info().Fields(normalizeFields(fields)).Msg(msg)
}

func (z *zerologLogger) Warn(msg string, fields ...any) {
	z.zl.Warn().Fields(normalizeFields(fields)).Msg(msg)
}

func (z *zerologLogger) Error(msg string, fields ...any) {
	err, rest := splitError(fields)
	event := z.zl.Error()
	if err != nil {
		event = event.AnErr(ErrAttrKey, err)
		// pkg/errors の構造化エラーは詳細をオブジェクトとして出力する
		var marshaler zerolog.LogObjectMarshaler
		if errors.As(err, &marshaler) {
			event = event.Object("error_detail", marshaler)
		}
		if st := extractStacktrace(err); st != "" {
			event = event.Str(StacktraceAttrKey, st)
		}
	}
	event.Fields(normalizeFields(rest)).Msg(msg)
}

func (z *zerologLogger) With(fields ...any) Logger {
	return &zerologLogger{zl: z.zl.With().Fields(normalizeFields(fields)).Logger()}
}

func (z *zerologLogger) Enabled(_ context.Context, level Level) bool {
	return toZerologLevel(level) >= z.zl.GetLevel()
}

// normalizeFields drops a dangling key so zerolog never sees an odd slice.
func normalizeFields(fields []any) []any {
	if len(fields)%2 == 0 {
		return fields
	}
	out := make([]any, 0, len(fields)+1)
	out = append(out, fields...)
	return append(out, "!MISSING")
}
