package browser

import (
	"context"
	"errors"
	"time"
)

// ----------------------------------------------------------------------
// 依存性の定義 (DIP)
// ----------------------------------------------------------------------

// Session は、1件のフェッチが専有するページ自動化セッションのインターフェースを定義します。
// Fetcher は、この抽象に依存します。セレクターが "//" で始まる場合は XPath、
// それ以外は CSS セレクターとして解釈されます。
type Session interface {
	// Navigate は指定されたURLへ遷移します。timeout はページロードの上限時間です。
	Navigate(url string, timeout time.Duration) error

	// WaitVisible は、要素が可視になるまで timeout を上限に待機します。
	// 時間内に現れなかった場合は context.DeadlineExceeded を内包したエラーを返します。
	WaitVisible(selector string, timeout time.Duration) error

	// Click は、要素の出現を待ってからクリックします。
	Click(selector string, timeout time.Duration) error

	// Text は、要素のテキスト内容を読み取ります。
	Text(selector string, timeout time.Duration) (string, error)

	// Attribute は、要素の属性値を読み取ります。属性が存在しない場合は ok=false を返します。
	Attribute(selector, name string, timeout time.Duration) (value string, ok bool, err error)

	// OuterHTML は、要素自身を含むHTML断片を読み取ります。
	OuterHTML(selector string, timeout time.Duration) (string, error)

	// Close はセッションを解放します。どのステップで失敗した場合でも必ず呼び出されます。
	Close() error
}

// Launcher は、新しい自動化セッションを開く機能のインターフェースを定義します。
// 具体的なブラウザバックエンドはこの境界の向こう側に差し込まれます。
type Launcher interface {
	NewSession(ctx context.Context) (Session, error)
}

// IsTimeout は、エラーが要素待機やページロードのタイムアウトであるかを判定します。
func IsTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}
