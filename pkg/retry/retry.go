package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	// リトライ関連の定数
	DefaultMaxRetries = 3 // 最大リトライ回数

	// バックオフのカスタム設定
	InitialBackoffInterval = 500 * time.Millisecond
	MaxBackoffInterval     = 5 * time.Second
)

// Operation はリトライ可能な処理を表す関数です。成功時は nil を返します。
type Operation func() error

// ShouldRetryFunc はエラーを受け取り、そのエラーがリトライ可能かどうかを判定する関数です。
type ShouldRetryFunc func(error) bool

// Config はリトライ動作を設定するための構造体です。
type Config struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		MaxRetries:      DefaultMaxRetries,
		InitialInterval: InitialBackoffInterval,
		MaxInterval:     MaxBackoffInterval,
	}
}

// newBackOffPolicy は、Config から指数バックオフポリシーを構築します。
// 最大リトライ回数とコンテキストを backoff に適用した状態で返します。
func newBackOffPolicy(ctx context.Context, cfg Config) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval

	bo := backoff.WithMaxRetries(b, cfg.MaxRetries)
	return backoff.WithContext(bo, ctx)
}

// Do は指数バックオフとカスタムエラー判定を使用して操作をリトライします。
// Configを引数で受け取ることで、特定のクライアント構造体（Client）への依存を排除しています。
func Do(ctx context.Context, cfg Config, operationName string, op Operation, shouldRetryFn ShouldRetryFunc) error {
	return doWithPolicy(newBackOffPolicy(ctx, cfg), cfg.MaxRetries, operationName, op, shouldRetryFn)
}

// DoConstant は固定間隔のバックオフで操作をリトライします。
// attempts は初回実行を含む総試行回数で、1以上である必要があります。
// セッション初期化やページ操作のような「一定秒スリープして再試行」する処理に使います。
func DoConstant(ctx context.Context, attempts uint64, interval time.Duration, operationName string, op Operation, shouldRetryFn ShouldRetryFunc) error {
	if attempts == 0 {
		attempts = 1
	}

	// attempts はリトライ回数ではなく総試行回数のため、backoff へは attempts-1 を渡す
	bo := backoff.WithMaxRetries(backoff.NewConstantBackOff(interval), attempts-1)
	bo = backoff.WithContext(bo, ctx)

	return doWithPolicy(bo, attempts-1, operationName, op, shouldRetryFn)
}

// doWithPolicy は、Do / DoConstant 共通のリトライ実行本体です。
func doWithPolicy(bo backoff.BackOff, maxRetries uint64, operationName string, op Operation, shouldRetryFn ShouldRetryFunc) error {
	var lastErr error
	var permanent bool

	// リトライ処理内で実行される実際の操作
	retryableOp := func() error {
		err := op()

		if err == nil {
			return nil // 成功
		}
		lastErr = err

		// 外部から渡された判定関数を使用
		if shouldRetryFn(err) {
			return err // リトライ対象
		}

		permanent = true
		return backoff.Permanent(err) // 永続エラーとしてラップし、即時終了
	}

	err := backoff.Retry(retryableOp, bo)

	if err != nil {
		// コンテキストキャンセル/タイムアウトのエラー処理
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%sに失敗しました: コンテキストタイムアウト/キャンセル: %w", operationName, err)
		}

		// 致命的なエラーはリトライ上限に関係なくそのまま伝播させる
		if permanent {
			return fmt.Errorf("%sに失敗しました: 致命的なエラーのためリトライを中止: %w", operationName, lastErr)
		}

		// その他のリトライ上限到達エラー
		return fmt.Errorf("%sに失敗しました: 最大リトライ回数 (%d回) に到達。最終エラー: %w", operationName, maxRetries, lastErr)
	}
	return nil
}
