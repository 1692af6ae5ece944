package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/shouni/go-lens-batch/pkg/batch"
	"github.com/shouni/go-lens-batch/pkg/browser"
	"github.com/shouni/go-lens-batch/pkg/input"
	"github.com/shouni/go-lens-batch/pkg/lens"
	"github.com/shouni/go-lens-batch/pkg/logging"
	"github.com/shouni/go-lens-batch/pkg/sink"
	"github.com/shouni/go-lens-batch/pkg/types"
)

// コマンドラインフラグ変数を定義
var (
	navTimeoutSec int  // --nav-timeout ページロードのタイムアウト（秒）
	navRetries    int  // --nav-retries ページ操作系ステップの総試行回数
	rateLimitMs   int  // --rate-limit セッション起動の最小間隔（ミリ秒）
	checkInput    bool // --check 画像URLの事前到達チェック
	noHeadless    bool // --no-headless ブラウザを画面表示付きで起動（デバッグ用）
)

// runBatchPipeline は、バッチ処理を実行するメインロジックです。
// 入力レコードを並列にフェッチし、成功分をCSVシンクへ一括で書き込みます。
func runBatchPipeline(ctx context.Context, records []types.InputRecord, fetcher *lens.Fetcher, outputPath string, workers int) (successCount int, err error) {
	logger := logging.NewLogger("run")

	// 1. シンクを先に開き、ヘッダー行を書き込む (全件失敗でもヘッダーのみのファイルが残る)
	csvSink, err := sink.NewCSVSink(outputPath)
	if err != nil {
		return 0, err
	}

	// 2. Coordinatorの初期化 (NewCoordinator を利用)
	coordinator := batch.NewCoordinator(
		fetcher,
		workers,
		batch.WithRateLimit(time.Duration(rateLimitMs)*time.Millisecond),
	)

	logger.Info().Int("records", len(records)).Int("workers", workers).
		Msg("バッチ処理を開始します")

	// 3. メインロジックの実行 (全タスクの完了を待つ)
	results := coordinator.Run(ctx, records)

	// 4. 収集済みレコードの一括書き込み
	if err := csvSink.WriteAll(results); err != nil {
		csvSink.Close()
		return 0, err
	}
	if err := csvSink.Close(); err != nil {
		return 0, err
	}

	return len(results), nil
}

var runCmd = &cobra.Command{
	Use:   "run [入力JSON] [出力CSV] [並列数]",
	Short: "画像URLのバッチを逆画像検索し、先頭マッチのメタデータをCSVへ保存します",
	Long: `入力JSON (識別子から画像URLへのマッピング) を読み込み、各画像をヘッドレスブラウザで
逆画像検索して、先頭マッチのメタデータ (順位、タイトル、提供元、リンク) をCSVへ保存します。
並列数は同時に開くブラウザセッション数の上限です (省略時: 5)。`,
	Args: cobra.RangeArgs(2, 3),

	RunE: func(cmd *cobra.Command, args []string) error {

		// 1. 位置引数の解釈
		inputPath := args[0]
		outputPath := args[1]

		workers := batch.DefaultMaxConcurrency
		if len(args) == 3 {
			parsed, err := strconv.Atoi(args[2])
			if err != nil || parsed <= 0 {
				return fmt.Errorf("並列数には正の整数を指定してください: %s", args[2])
			}
			workers = parsed
		}

		// 2. 入力マッピングのロード
		records, err := input.Load(inputPath)
		if err != nil {
			return fmt.Errorf("入力のロードに失敗しました: %w", err)
		}

		ctx := context.Background()

		// 3. 事前到達チェック (任意)。無効URLにブラウザセッションを浪費しない。
		if checkInput {
			fetcher := GetGlobalFetcher()
			if fetcher == nil {
				return fmt.Errorf("HTTPクライアントの取得に失敗しました")
			}
			records = input.FilterReachable(ctx, fetcher, records)
		}

		// 4. 依存性の初期化 (Launcher -> Fetcher)
		launcher := browser.NewChromeLauncher(browser.WithHeadless(!noHeadless))

		lensCfg := lens.DefaultConfig()
		if navTimeoutSec > 0 {
			lensCfg.NavigationTimeout = time.Duration(navTimeoutSec) * time.Second
		}
		if navRetries > 0 {
			lensCfg.StepAttempts = uint64(navRetries)
		}

		fetcher, err := lens.NewFetcher(launcher, lensCfg)
		if err != nil {
			return fmt.Errorf("Fetcherの初期化エラー: %w", err)
		}

		// 5. メインロジックの実行
		successCount, err := runBatchPipeline(ctx, records, fetcher, outputPath, workers)
		if err != nil {
			return fmt.Errorf("バッチパイプラインの実行エラー: %w", err)
		}

		// 6. 結果の出力。終了コードはバッチの完走を示し、アイテム単位の成否には依存しない。
		fmt.Printf("完了: 成功 %d 件, 失敗 %d 件 (出力先: %s)\n",
			successCount, len(records)-successCount, outputPath)

		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&navTimeoutSec, "nav-timeout", 60,
		"検索ページロードのタイムアウト時間（秒）")

	runCmd.Flags().IntVar(&navRetries, "nav-retries", 1,
		"ページ操作系ステップの総試行回数 (1でリトライなし)")

	runCmd.Flags().IntVar(&rateLimitMs, "rate-limit", 0,
		"ブラウザセッション起動の最小間隔（ミリ秒、0で無効）")

	runCmd.Flags().BoolVar(&checkInput, "check", false,
		"検索前に画像URLの到達チェックを行い、無効なURLを除外する")

	runCmd.Flags().BoolVar(&noHeadless, "no-headless", false,
		"ブラウザを画面表示付きで起動する（デバッグ用）")
}
