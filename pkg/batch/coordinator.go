package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/shouni/go-lens-batch/pkg/lens"
	"github.com/shouni/go-lens-batch/pkg/logging"
	"github.com/shouni/go-lens-batch/pkg/types"
)

const (
	// DefaultMaxConcurrency は、同時に開けるブラウザセッション数のデフォルト上限です。
	DefaultMaxConcurrency = 5
)

// ItemFetcher は、入力レコード1件をメタデータに変換する機能のインターフェースです。
// Coordinator は、この抽象に依存します。
type ItemFetcher interface {
	Fetch(ctx context.Context, rec types.InputRecord) (*types.ImageMeta, error)
}

// Coordinator は、固定サイズのワーカープールで全入力レコードのフェッチを実行し、
// 成功分のみを収集します。個々のアイテムの失敗はバッチ全体を中断させません。
type Coordinator struct {
	fetcher        ItemFetcher
	maxConcurrency int           // 最大並列数 = 同時に開けるセッション数の上限
	rateLimit      time.Duration // セッション起動間隔 (0で無効)
	logger         zerolog.Logger
}

// CoordinatorOption は Coordinator の設定を行うための関数型です。
type CoordinatorOption func(*Coordinator)

// WithRateLimit は、フェッチ開始の最小間隔を設定します。0以下で無効です。
func WithRateLimit(interval time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.rateLimit = interval
	}
}

// NewCoordinator は Coordinator を初期化します。
// 依存性として ItemFetcher と、最大同時実行数を受け取ります。
func NewCoordinator(fetcher ItemFetcher, maxConcurrency int, options ...CoordinatorOption) *Coordinator {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultMaxConcurrency
	}

	c := &Coordinator{
		fetcher:        fetcher,
		maxConcurrency: maxConcurrency,
		logger:         logging.NewLogger("batch"),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Run は、全入力レコードを並列にフェッチし、成功した分の OutputRecord を返します。
// 結果はタスクの完了順であり、入力順は保証されません。全タスクの完了を待ってから返ります。
func (c *Coordinator) Run(ctx context.Context, records []types.InputRecord) []types.OutputRecord {
	var wg sync.WaitGroup
	resultsChan := make(chan types.FetchResult, len(records))

	// バッファ付きチャネルをセマフォとして使用し、同時実行数を制限する
	semaphore := make(chan struct{}, c.maxConcurrency)

	var rateLimiter <-chan time.Time
	if c.rateLimit > 0 {
		ticker := time.NewTicker(c.rateLimit)
		defer ticker.Stop()
		rateLimiter = ticker.C
	}

	for _, rec := range records {
		wg.Add(1)

		// リソース（スロット）の確保。maxConcurrency件実行中の場合はここでブロックして待機。
		semaphore <- struct{}{}

		go func(rec types.InputRecord) {
			defer wg.Done()

			// 処理完了後にリソース（スロット）を解放。他の待機中のGoroutineが実行可能になる。
			defer func() { <-semaphore }()

			if rateLimiter != nil {
				select {
				case <-rateLimiter:
					// レートリミット間隔が経過し、フェッチが許可された
				case <-ctx.Done():
					resultsChan <- types.FetchResult{Record: rec, Err: ctx.Err()}
					return
				}
			}

			resultsChan <- c.fetchOne(ctx, rec)
		}(rec)
	}

	wg.Wait()
	close(resultsChan)

	return c.collect(resultsChan)
}

// fetchOne は1件のフェッチを実行し、結果を必ず FetchResult に変換します。
// ワーカー内の panic もここで吸収され、バッチ全体を落とすことはありません。
func (c *Coordinator) fetchOne(ctx context.Context, rec types.InputRecord) (result types.FetchResult) {
	defer func() {
		if r := recover(); r != nil {
			result = types.FetchResult{
				Record: rec,
				Err:    fmt.Errorf("フェッチ中に予期しないpanicが発生しました: %v", r),
			}
		}
	}()

	meta, err := c.fetcher.Fetch(ctx, rec)
	if err == nil && meta == nil {
		err = fmt.Errorf("フェッチがメタデータもエラーも返しませんでした")
	}

	return types.FetchResult{Record: rec, Meta: meta, Err: err}
}

// collect は、完了順に届いた結果を消費し、成功分のみを OutputRecord に変換します。
// 「該当なし」は警告、それ以外の失敗はエラーとして記録され、どちらも出力には含まれません。
func (c *Coordinator) collect(resultsChan <-chan types.FetchResult) []types.OutputRecord {
	var outputs []types.OutputRecord

	for res := range resultsChan {
		logger := c.logger.With().Str("id", res.Record.ID).Str("url", res.Record.URL).Logger()

		switch {
		case res.Err == nil:
			outputs = append(outputs, types.NewOutputRecord(res.Record, res.Meta))
			logger.Info().Msg("フェッチに成功しました")

		case errors.Is(res.Err, lens.ErrNoMatch):
			logger.Warn().Msg("該当する画像が見つからなかったため、出力から除外します")

		default:
			logger.Error().Err(res.Err).Msg("フェッチに失敗したため、出力から除外します")
		}
	}

	return outputs
}
