package cmd

import (
	"time"

	clibase "github.com/shouni/go-cli-base"
	"github.com/shouni/go-http-kit/pkg/httpkit"
	"github.com/spf13/cobra"

	"github.com/shouni/go-lens-batch/pkg/logging"
)

// --- グローバル定数 ---

const (
	appName           = "lens-batch" // アプリケーション名
	defaultTimeoutSec = 10           // 秒
	defaultMaxRetries = 5            // HTTPフェッチのデフォルトのリトライ回数

	// 全体処理のタイムアウト定数 (feedCmd で利用)
	DefaultOverallTimeout = 20 * time.Second
)

// --- グローバル変数とフラグ構造体 ---

// AppFlags はこのアプリケーション固有の永続フラグを保持
type AppFlags struct {
	TimeoutSec int    // --timeout HTTPタイムアウト
	MaxRetries int    // --max-retries HTTPリトライ回数
	LogLevel   string // --log-level ログ出力レベル
	PrettyLog  bool   // --pretty-log 人間向けのコンソールログ出力
}

var Flags AppFlags                // アプリケーション固有フラグにアクセスするためのグローバル変数
var globalFetcher *httpkit.Client // feedコマンドと事前チェックが共有するHTTPフェッチャー

// --- 初期化とロジック (clibaseへのコールバックとして利用) ---

// addAppPersistentFlags は、アプリケーション固有の永続フラグをルートコマンドに追加します。
func addAppPersistentFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().IntVar(
		&Flags.TimeoutSec,
		"timeout",
		defaultTimeoutSec,
		"HTTPリクエストのタイムアウト時間（秒）",
	)
	rootCmd.PersistentFlags().IntVar(
		&Flags.MaxRetries,
		"max-retries",
		defaultMaxRetries,
		"HTTPリクエストのリトライ最大回数",
	)
	rootCmd.PersistentFlags().StringVar(
		&Flags.LogLevel,
		"log-level",
		"info",
		"ログ出力レベル (debug / info / warn / error)",
	)
	rootCmd.PersistentFlags().BoolVar(
		&Flags.PrettyLog,
		"pretty-log",
		false,
		"人間向けのコンソール形式でログを出力する (デフォルトはJSON)",
	)
}

// initAppPreRunE は、clibase共通処理の後に実行される、アプリケーション固有のPersistentPreRunEです。
// NOTE: clibaseの PersistentPreRunE チェーンにより、clibase.Flags.Verbose はこの関数実行前に設定済み
func initAppPreRunE(cmd *cobra.Command, args []string) error {

	// ロガーの初期化。--verbose は --log-level より優先して debug に引き上げる。
	logLevel := Flags.LogLevel
	if clibase.Flags.Verbose {
		logLevel = "debug"
	}
	logger := logging.Setup(logging.Config{
		Level:  logLevel,
		Pretty: Flags.PrettyLog,
	})

	timeout := time.Duration(Flags.TimeoutSec) * time.Second

	if clibase.Flags.Verbose {
		logger.Debug().Dur("timeout", timeout).Int("max_retries", Flags.MaxRetries).
			Msg("HTTPクライアントを設定しました")
	}

	// 共有フェッチャーの初期化
	globalFetcher = httpkit.New(
		timeout,
		httpkit.WithMaxRetries(uint64(Flags.MaxRetries)),
	)

	return nil
}

// GetGlobalFetcher は、初期化されたフェッチャーを返す関数 (DIの代わり)
func GetGlobalFetcher() *httpkit.Client {
	return globalFetcher
}

// --- エントリポイント ---

// Execute は、アプリケーションを実行するメイン関数です。clibaseのExecuteを使用する。
func Execute() {
	// clibase.Execute を使用して、アプリケーションの初期化、フラグ設定、サブコマンドの登録を一括で行う
	clibase.Execute(
		appName,
		addAppPersistentFlags, // カスタムフラグの追加コールバック
		initAppPreRunE,        // カスタムPersistentPreRunEコールバック
		// サブコマンドのリスト
		runCmd,
		feedCmd,
	)
	// clibase.Execute() の中で os.Exit(1) が処理されるため、ここでは不要
}
