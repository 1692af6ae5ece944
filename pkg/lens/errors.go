package lens

import (
	"errors"
	"fmt"
)

// ErrNoMatch は、検索ページが「指定URLに画像が存在しない」と表示した場合に返されます。
// これは正当な「該当なし」の結果であり、障害ではありません。
var ErrNoMatch = errors.New("指定されたURLに画像が見つかりませんでした")

// SessionInitError は、リトライを使い切ってもブラウザセッションを開けなかったことを示します。
// この失敗はアイテム単位に隔離され、バッチ全体を中断させません。
type SessionInitError struct {
	Attempts uint64
	Err      error
}

func (e *SessionInitError) Error() string {
	return fmt.Sprintf("セッション初期化エラー: %d回試行しましたが失敗しました: %v", e.Attempts, e.Err)
}

func (e *SessionInitError) Unwrap() error { return e.Err }

// NavigationError は、検索ページへの遷移が最終的に失敗したことを示します。
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("ナビゲーションエラー (URL: %s): %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }

// ActionTimeoutError は、ページ上の操作対象要素が時間内に現れなかったことを示します。
type ActionTimeoutError struct {
	Step string
	Err  error
}

func (e *ActionTimeoutError) Error() string {
	return fmt.Sprintf("操作タイムアウトエラー (ステップ: %s): %v", e.Step, e.Err)
}

func (e *ActionTimeoutError) Unwrap() error { return e.Err }

// ExtractionError は、結果エントリからのメタデータ抽出が最終的に失敗したことを示します。
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("メタデータ抽出エラー: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
