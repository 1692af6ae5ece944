package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/spf13/cobra"

	"github.com/shouni/go-lens-batch/pkg/feed"
	"github.com/shouni/go-lens-batch/pkg/logging"
)

// フィードURLと出力先を保持するフラグ変数
var (
	feedURL    string
	feedOutput string
)

// フィードの全体処理のタイムアウト設定
// Flags.TimeoutSec はHTTPクライアントのタイムアウト秒数を表します。
const overallFeedTimeoutFactor = 2 // クライアントタイムアウトの2倍

// runFeedPipeline は、フィードの取得とパースを実行するメインロジックです。
func runFeedPipeline(url string, parser *feed.Parser, overallTimeout time.Duration) (*gofeed.Feed, error) {
	// 1. 全体処理のコンテキストを設定
	ctx, cancel := context.WithTimeout(context.Background(), overallTimeout)
	defer cancel()

	// 2. 取得とパースの実行
	parsedFeed, err := parser.FetchAndParse(ctx, url)
	if err != nil {
		// エラーのラッピング
		return nil, fmt.Errorf("フィードの取得およびパースエラー (URL: %s): %w", url, err)
	}

	return parsedFeed, nil
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "RSS/Atomフィードから画像URLの入力JSONを生成します",
	Long: `指定されたURLからRSSまたはAtomフィードを取得し、各記事の画像URLを抽出して、
runコマンドがそのまま読み込める入力JSON (識別子から画像URLへのマッピング) を生成します。`,
	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.NewLogger("feed")

		// 全体タイムアウトを設定: クライアントタイムアウトの2倍
		overallTimeout := time.Duration(Flags.TimeoutSec) * overallFeedTimeoutFactor * time.Second
		if Flags.TimeoutSec == 0 {
			overallTimeout = DefaultOverallTimeout
		}

		// 1. URLのスキーム補完とバリデーション
		processedURL, err := ensureScheme(feedURL)
		if err != nil {
			return fmt.Errorf("URLスキームの処理エラー: %w", err)
		}
		logger.Info().Str("url", processedURL).Dur("overall_timeout", overallTimeout).
			Msg("フィードの処理を開始します")

		// 2. 依存性の初期化
		fetcher := GetGlobalFetcher()
		if fetcher == nil {
			return fmt.Errorf("HTTPクライアントの取得に失敗しました")
		}
		parser := feed.NewParser(fetcher)

		// 3. メインロジックの実行
		parsedFeed, err := runFeedPipeline(processedURL, parser, overallTimeout)
		if err != nil {
			return fmt.Errorf("フィード解析パイプラインの実行エラー: %w", err)
		}

		// 4. 画像URLマッピングの抽出
		mapping := feed.GetAllImageURLs(feed.NewFeedAdapter(parsedFeed))
		if len(mapping) == 0 {
			return fmt.Errorf("画像を含む記事が見つかりませんでした (フィード: %s, 記事数: %d)",
				parsedFeed.Title, len(parsedFeed.Items))
		}

		data, err := json.MarshalIndent(mapping, "", "  ")
		if err != nil {
			return fmt.Errorf("入力JSONのシリアライズに失敗しました: %w", err)
		}

		// 5. 結果の出力 (出力先未指定時は標準出力へ)
		if feedOutput == "" {
			fmt.Println(string(data))
			return nil
		}

		if err := os.WriteFile(feedOutput, data, 0o644); err != nil {
			return fmt.Errorf("入力JSONの書き込みに失敗しました (パス: %s): %w", feedOutput, err)
		}

		fmt.Printf("完了: %d 件の画像URLを %s へ書き出しました (フィード: %s)\n",
			len(mapping), feedOutput, parsedFeed.Title)

		return nil
	},
}

func init() {
	// サブコマンド固有のフラグ定義
	feedCmd.Flags().StringVarP(&feedURL, "url", "u", "", "解析対象のフィード (RSS/Atom) URL")
	feedCmd.Flags().StringVarP(&feedOutput, "output", "o", "", "入力JSONの書き出し先 (省略時は標準出力)")

	// URLフラグを必須にする
	feedCmd.MarkFlagRequired("url")
}
