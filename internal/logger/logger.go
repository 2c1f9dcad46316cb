package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// 出力形式
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Options はロガーの出力設定。
type Options struct {
	// Level はslogのレベル名（debug, info, warn, error）。空の場合はinfo。
	Level string
	// Format はjsonまたはtext。textはtintによる端末向けの整形出力。
	Format string
}

// ParseLevel はレベル名をslog.Levelに変換する。未知の値はinfoとして扱う。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup は指定した形式の構造化ログ出力のslog.Loggerを生成して返す。
// writerが指定された場合はそのwriterに出力する。
func Setup(w io.Writer, opts Options) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := ParseLevel(opts.Level)

	var handler slog.Handler
	if opts.Format == FormatText {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
		})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	}
	return slog.New(handler)
}

// SetupDefault は構造化ログ出力をグローバルロガーとして設定し、そのロガーを返す。
// CLIの標準出力を汚さないよう、writer未指定時はos.Stderrに出力する。
func SetupDefault(w io.Writer, opts Options) *slog.Logger {
	l := Setup(w, opts)
	slog.SetDefault(l)
	return l
}
