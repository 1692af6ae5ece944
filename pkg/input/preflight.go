package input

import (
	"context"

	"github.com/shouni/go-lens-batch/pkg/logging"
	"github.com/shouni/go-lens-batch/pkg/types"
)

// Fetcher は、URLのコンテンツを取得する機能のインターフェースを定義します。
// *httpkit.Client はこのインターフェースを満たします。
type Fetcher interface {
	FetchBytes(ctx context.Context, url string) ([]byte, error)
}

// FilterReachable は、各入力レコードの画像URLへ事前アクセスし、到達可能なものだけを返します。
// ブラウザセッションを消費する前に明らかな無効URLを除外するための任意の前処理で、
// 除外されたレコードはログに記録されます。
func FilterReachable(ctx context.Context, fetcher Fetcher, records []types.InputRecord) []types.InputRecord {
	logger := logging.NewLogger("preflight")

	reachable := make([]types.InputRecord, 0, len(records))
	for _, rec := range records {
		if _, err := fetcher.FetchBytes(ctx, rec.URL); err != nil {
			logger.Warn().Err(err).Str("id", rec.ID).Str("url", rec.URL).
				Msg("画像URLへ到達できなかったため、バッチから除外します")
			continue
		}
		reachable = append(reachable, rec)
	}

	return reachable
}
