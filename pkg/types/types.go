package types

// MissingValue は、メタデータの任意フィールドが欠落していた場合に
// 出力へ書き込まれるプレースホルダ文字列です。空文字列ではなくこの値を使います。
const MissingValue = "N/A"

// InputRecord は、入力バッチの1件分 (識別子と検索対象の画像URL) を表します。
// 入力ファイルのロード時に生成され、以降は変更されません。
type InputRecord struct {
	ID  string // 入力マッピングのキー (一意であることを前提とし、強制はしない)
	URL string // 検索対象の画像URL
}

// ImageMeta は、1回のフェッチ成功で得られた検索結果の先頭マッチを保持します。
// ページが該当要素を持たない場合、各ポインタフィールドは nil になります。
type ImageMeta struct {
	Position int     // 検索結果内の順位 (先頭エントリのみ読むため常に1)
	Title    *string // 結果エントリのタイトルテキスト
	Source   *string // 結果エントリの提供元ラベル
	Link     *string // 結果エントリのリンク先URL
}

// OutputRecord は、InputRecord と ImageMeta を結合した、シンクへ書き込む唯一の単位です。
// 欠落フィールドは MissingValue で埋められた状態で保持されます。
type OutputRecord struct {
	ID       string
	URL      string
	Position int
	Title    string
	Source   string
	Link     string
}

// FetchResult は、1件のフェッチ試行の完了を表します。
// Meta が nil の場合、Err がその理由を保持します (正常な「該当なし」も含む)。
// Coordinator はこの型を完了順に消費します。
type FetchResult struct {
	Record InputRecord // 処理対象だった入力レコード
	Meta   *ImageMeta  // 成功時のメタデータ (失敗時は nil)
	Err    error       // 失敗時の原因 (成功時は nil)
}

// NewOutputRecord は、InputRecord と ImageMeta を結合して OutputRecord を生成します。
// nil または空のポインタフィールドは MissingValue に置き換えられます。
func NewOutputRecord(rec InputRecord, meta *ImageMeta) OutputRecord {
	return OutputRecord{
		ID:       rec.ID,
		URL:      rec.URL,
		Position: meta.Position,
		Title:    orMissing(meta.Title),
		Source:   orMissing(meta.Source),
		Link:     orMissing(meta.Link),
	}
}

// orMissing は nil ポインタを MissingValue に変換します。
func orMissing(s *string) string {
	if s == nil || *s == "" {
		return MissingValue
	}
	return *s
}
