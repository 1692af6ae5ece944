package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config はロガーの設定を保持します。
type Config struct {
	Level  string    // 最低出力レベル (debug / info / warn / error)
	Pretty bool      // 人間向けのコンソール出力を有効にする (falseでJSON出力)
	Output io.Writer // 出力先 (デフォルト: os.Stderr)
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		Level:  "info",
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup はグローバルの zerolog ロガーを設定し、設定済みのロガーを返します。
// アプリケーション起動時に一度だけ呼び出します。
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel はレベル文字列を zerolog.Level に変換します。不明な値は info 扱いです。
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger は、コンポーネント名のフィールドを付与した新しいロガーを返します。
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
