package lens

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/shouni/go-lens-batch/pkg/browser"
	"github.com/shouni/go-lens-batch/pkg/logging"
	"github.com/shouni/go-lens-batch/pkg/retry"
	"github.com/shouni/go-lens-batch/pkg/types"
)

// ----------------------------------------------------------------------
// 定数定義 (検索ページとの対話手順)
// ----------------------------------------------------------------------
const (
	// queryURLFormat は、対象画像URLを埋め込む検索プロバイダのクエリURLです。
	queryURLFormat = "https://lens.google.com/uploadbyurl?url=%s"

	// noMatchSelector は「指定URLに画像がない」表示を検出するXPathです。
	noMatchSelector = `//*[contains(text(), 'No image at that URL')]`

	// sourceButtonSelector は「画像のソースを探す」ボタンのCSSセレクターです。
	sourceButtonSelector = `button.VfPpkd-LgbsSe.VfPpkd-LgbsSe-OWXEXe-INsAgc`

	// firstResultSelector は検索結果の先頭エントリのCSSセレクターです。
	firstResultSelector = `li.anSuc a.GZrdsf`
)

// デフォルトのリトライとタイムアウト設定
const (
	DefaultSessionAttempts   = 3                // セッション初期化の総試行回数
	DefaultStepAttempts      = 1                // ページ操作系ステップの総試行回数 (1 = リトライなし)
	DefaultRetryInterval     = 2 * time.Second  // 試行間の固定待機時間
	DefaultNavigationTimeout = 60 * time.Second // ページロードの上限時間
	DefaultActionTimeout     = 60 * time.Second // 要素の出現待ちの上限時間
	DefaultNoMatchTimeout    = 10 * time.Second // 「画像なし」表示のポーリング時間
)

// Config は Fetcher のリトライポリシーと各ステップのタイムアウトを保持します。
type Config struct {
	SessionAttempts   uint64        // セッション初期化の総試行回数
	StepAttempts      uint64        // ナビゲーション/クリック/抽出の総試行回数
	RetryInterval     time.Duration // 試行間の固定待機時間
	NavigationTimeout time.Duration // ページロードのタイムアウト
	ActionTimeout     time.Duration // 要素待機のタイムアウト
	NoMatchTimeout    time.Duration // 「画像なし」検出のポーリング上限
}

// DefaultConfig は推奨されるデフォルト設定を返します。
func DefaultConfig() Config {
	return Config{
		SessionAttempts:   DefaultSessionAttempts,
		StepAttempts:      DefaultStepAttempts,
		RetryInterval:     DefaultRetryInterval,
		NavigationTimeout: DefaultNavigationTimeout,
		ActionTimeout:     DefaultActionTimeout,
		NoMatchTimeout:    DefaultNoMatchTimeout,
	}
}

// Fetcher は、1件の入力レコードを検索ページとの多段対話でメタデータに変換します。
// ブラウザの具体実装には依存せず、browser.Launcher の抽象に依存します。
type Fetcher struct {
	launcher browser.Launcher
	cfg      Config
	logger   zerolog.Logger
}

// NewFetcher は、新しいFetcherのインスタンスを生成します。
func NewFetcher(launcher browser.Launcher, cfg Config) (*Fetcher, error) {
	if launcher == nil {
		return nil, fmt.Errorf("lens.NewFetcher: Launcher cannot be nil")
	}
	return &Fetcher{
		launcher: launcher,
		cfg:      cfg,
		logger:   logging.NewLogger("lens"),
	}, nil
}

// QueryURL は、対象画像URLを埋め込んだ検索クエリURLを構築します。
func QueryURL(imageURL string) string {
	return fmt.Sprintf(queryURLFormat, url.QueryEscape(imageURL))
}

// Fetch は、入力レコード1件を検索ページとの対話でメタデータに変換します。
// 手順: セッション取得 → 遷移 → 「画像なし」判定 → ソース検索ボタン押下 → 先頭結果の抽出。
// 「該当なし」は ErrNoMatch、各種失敗は対応する型付きエラーとして返され、
// いずれの場合もセッションは必ず解放されます。
func (f *Fetcher) Fetch(ctx context.Context, rec types.InputRecord) (*types.ImageMeta, error) {
	logger := f.logger.With().Str("id", rec.ID).Str("url", rec.URL).Logger()

	// 1. セッション取得 (固定間隔でリトライ、失敗はアイテム単位に隔離)
	sess, err := f.openSession(ctx, logger)
	if err != nil {
		return nil, &SessionInitError{Attempts: f.cfg.SessionAttempts, Err: err}
	}
	// 2. どのステップで失敗してもセッションは必ず解放する
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("セッションの解放に失敗しました")
		}
	}()

	// 3. 検索ページへの遷移
	queryURL := QueryURL(rec.URL)
	if err := f.navigate(ctx, sess, queryURL, logger); err != nil {
		return nil, &NavigationError{URL: queryURL, Err: err}
	}
	logger.Info().Str("query_url", queryURL).Msg("検索ページへ遷移しました")

	// 4. 「画像なし」表示の検出。表示が現れなければポーリング時間を
	//    使い切ってから先へ進む (この待ちは検出方式に固有のコスト)。
	if f.hasNoMatchNotice(sess, logger) {
		return nil, ErrNoMatch
	}

	// 5. 「画像のソースを探す」ボタンの出現を待って押下
	if err := f.clickSourceButton(ctx, sess, logger); err != nil {
		return nil, &ActionTimeoutError{Step: "ソース検索ボタン押下", Err: err}
	}
	logger.Info().Msg("ソース検索ボタンを押下しました")

	// 6. 先頭結果エントリの抽出
	meta, err := f.extractFirstResult(ctx, sess, logger)
	if err != nil {
		return nil, &ExtractionError{Err: err}
	}
	logger.Info().Msg("メタデータの抽出に成功しました")

	return meta, nil
}

// openSession は、固定間隔のリトライ付きで新しいブラウザセッションを開きます。
func (f *Fetcher) openSession(ctx context.Context, logger zerolog.Logger) (browser.Session, error) {
	var sess browser.Session

	attempt := 0
	op := func() error {
		attempt++
		var err error
		sess, err = f.launcher.NewSession(ctx)
		if err != nil {
			logger.Error().Err(err).Int("attempt", attempt).Msg("セッションの初期化に失敗しました")
			return err
		}
		return nil
	}

	err := retry.DoConstant(ctx, f.cfg.SessionAttempts, f.cfg.RetryInterval, "セッション初期化", op, anyErrorRetryable)
	if err != nil {
		return nil, err
	}

	logger.Debug().Int("attempt", attempt).Msg("セッションを初期化しました")
	return sess, nil
}

// navigate は、ページロードタイムアウト付きで検索クエリURLへ遷移します。
func (f *Fetcher) navigate(ctx context.Context, sess browser.Session, queryURL string, logger zerolog.Logger) error {
	op := func() error {
		if err := sess.Navigate(queryURL, f.cfg.NavigationTimeout); err != nil {
			logger.Error().Err(err).Str("step", "navigate").Msg("検索ページへの遷移に失敗しました")
			return err
		}
		return nil
	}
	return retry.DoConstant(ctx, f.cfg.StepAttempts, f.cfg.RetryInterval, "検索ページへの遷移", op, anyErrorRetryable)
}

// hasNoMatchNotice は、「指定URLに画像がない」表示の有無をポーリングで判定します。
// 表示が見つかった場合のみ true を返します。タイムアウトは「表示なし」として扱います。
func (f *Fetcher) hasNoMatchNotice(sess browser.Session, logger zerolog.Logger) bool {
	err := sess.WaitVisible(noMatchSelector, f.cfg.NoMatchTimeout)
	if err == nil {
		logger.Warn().Msg("指定されたURLに画像が見つかりませんでした")
		return true
	}

	if !browser.IsTimeout(err) {
		// タイムアウト以外のエラーも「表示なし」として続行するが、記録は残す
		logger.Debug().Err(err).Msg("「画像なし」表示の検出中にエラーが発生しました")
	}
	return false
}

// clickSourceButton は、「画像のソースを探す」ボタンの出現を待って押下します。
func (f *Fetcher) clickSourceButton(ctx context.Context, sess browser.Session, logger zerolog.Logger) error {
	op := func() error {
		if err := sess.Click(sourceButtonSelector, f.cfg.ActionTimeout); err != nil {
			logger.Error().Err(err).Str("step", "click").Msg("ソース検索ボタンの押下に失敗しました")
			return err
		}
		return nil
	}
	return retry.DoConstant(ctx, f.cfg.StepAttempts, f.cfg.RetryInterval, "ソース検索ボタン押下", op, anyErrorRetryable)
}

// extractFirstResult は、先頭結果エントリの出現を待ち、そのHTML断片からメタデータを抽出します。
// サブ要素の欠落はフィールドの nil として許容され、抽出全体の失敗にはなりません。
func (f *Fetcher) extractFirstResult(ctx context.Context, sess browser.Session, logger zerolog.Logger) (*types.ImageMeta, error) {
	var meta *types.ImageMeta

	op := func() error {
		html, err := sess.OuterHTML(firstResultSelector, f.cfg.ActionTimeout)
		if err != nil {
			logger.Error().Err(err).Str("step", "extract").Msg("結果エントリの取得に失敗しました")
			return err
		}

		meta, err = parseResultEntry(html)
		if err != nil {
			logger.Error().Err(err).Str("step", "extract").Msg("結果エントリの解析に失敗しました")
			return err
		}
		return nil
	}

	if err := retry.DoConstant(ctx, f.cfg.StepAttempts, f.cfg.RetryInterval, "メタデータ抽出", op, anyErrorRetryable); err != nil {
		return nil, err
	}
	return meta, nil
}

// anyErrorRetryable は、ページ対話の全エラーをリトライ対象として扱う判定関数です。
func anyErrorRetryable(err error) bool {
	return err != nil
}
