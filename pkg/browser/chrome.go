package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// ----------------------------------------------------------------------
// chromedp によるヘッドレスChromeバックエンド
// ----------------------------------------------------------------------

// ChromeLauncher は、chromedp を使ってヘッドレスChromeのセッションを開く Launcher 実装です。
// セッションごとに独立したブラウザプロセスを起動し、メモリ消費を呼び出し側の
// 並列数制御に委ねます。
type ChromeLauncher struct {
	allocOpts []chromedp.ExecAllocatorOption
}

// LauncherOption は ChromeLauncher の設定を行うための関数型です。
type LauncherOption func(*ChromeLauncher)

// WithHeadless はヘッドレスモードの有効/無効を設定します。デバッグ時の無効化を想定しています。
func WithHeadless(enabled bool) LauncherOption {
	return func(l *ChromeLauncher) {
		l.allocOpts = append(l.allocOpts, chromedp.Flag("headless", enabled))
	}
}

// WithExecAllocatorOptions は、任意の chromedp 起動オプションを追加します。
func WithExecAllocatorOptions(opts ...chromedp.ExecAllocatorOption) LauncherOption {
	return func(l *ChromeLauncher) {
		l.allocOpts = append(l.allocOpts, opts...)
	}
}

// NewChromeLauncher は新しい ChromeLauncher を初期化します。
// コンテナ環境での動作を前提に no-sandbox と disable-dev-shm-usage を付与します。
func NewChromeLauncher(options ...LauncherOption) *ChromeLauncher {
	l := &ChromeLauncher{
		allocOpts: append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.NoSandbox,
			chromedp.DisableGPU,
			chromedp.Flag("disable-dev-shm-usage", true),
		),
	}

	for _, opt := range options {
		opt(l)
	}

	return l
}

// NewSession は Launcher インターフェースを実装し、新しいブラウザセッションを開きます。
// ブラウザプロセスの起動に失敗した場合はエラーを返します。
func (l *ChromeLauncher) NewSession(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, l.allocOpts...)
	taskCtx, taskCancel := chromedp.NewContext(allocCtx)

	// 空の Run でブラウザプロセスの起動を確定させる
	if err := chromedp.Run(taskCtx); err != nil {
		taskCancel()
		allocCancel()
		return nil, fmt.Errorf("ブラウザの起動に失敗しました: %w", err)
	}

	return &chromeSession{
		ctx:         taskCtx,
		cancel:      taskCancel,
		allocCancel: allocCancel,
	}, nil
}

// chromeSession は Session インターフェースの chromedp 実装です。
type chromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

// run は、ステップごとのタイムアウトを適用して chromedp アクションを実行します。
func (s *chromeSession) run(timeout time.Duration, actions ...chromedp.Action) error {
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(ctx, actions...)
}

// queryOption は、セレクターの形式に応じた chromedp のクエリ方法を返します。
func queryOption(selector string) chromedp.QueryOption {
	if strings.HasPrefix(selector, "//") || strings.HasPrefix(selector, "(//") {
		return chromedp.BySearch
	}
	return chromedp.ByQuery
}

func (s *chromeSession) Navigate(url string, timeout time.Duration) error {
	if err := s.run(timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("URL(%s)への遷移に失敗しました: %w", url, err)
	}
	return nil
}

func (s *chromeSession) WaitVisible(selector string, timeout time.Duration) error {
	return s.run(timeout, chromedp.WaitVisible(selector, queryOption(selector)))
}

func (s *chromeSession) Click(selector string, timeout time.Duration) error {
	return s.run(timeout, chromedp.Click(selector, queryOption(selector)))
}

func (s *chromeSession) Text(selector string, timeout time.Duration) (string, error) {
	var text string
	if err := s.run(timeout, chromedp.Text(selector, &text, queryOption(selector))); err != nil {
		return "", err
	}
	return text, nil
}

func (s *chromeSession) Attribute(selector, name string, timeout time.Duration) (string, bool, error) {
	var value string
	var ok bool
	if err := s.run(timeout, chromedp.AttributeValue(selector, name, &value, &ok, queryOption(selector))); err != nil {
		return "", false, err
	}
	return value, ok, nil
}

func (s *chromeSession) OuterHTML(selector string, timeout time.Duration) (string, error) {
	var html string
	if err := s.run(timeout, chromedp.OuterHTML(selector, &html, queryOption(selector))); err != nil {
		return "", err
	}
	return html, nil
}

// Close はブラウザプロセスの終了を待ってからアロケーターを解放します。
func (s *chromeSession) Close() error {
	err := chromedp.Cancel(s.ctx)
	s.cancel()
	s.allocCancel()
	if err != nil {
		return fmt.Errorf("ブラウザの終了に失敗しました: %w", err)
	}
	return nil
}
