package lens

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	textUtils "github.com/shouni/go-utils/text"

	"github.com/shouni/go-lens-batch/pkg/types"
)

// ----------------------------------------------------------------------
// 定数定義 (解析関連のみ)
// ----------------------------------------------------------------------
const (
	// 結果エントリ内のサブ要素セレクター
	titleSelector  = ".iJmjmd"
	sourceSelector = ".ShWW9"
	linkAttribute  = "href"

	// firstPosition は結果の順位です。先頭エントリのみ読むため常に1です。
	firstPosition = 1
)

// parseResultEntry は、結果エントリのHTML断片から先頭マッチのメタデータを抽出します。
// サブ要素の欠落は抽出の失敗ではなく、該当フィールドが nil になります。
// エントリのアンカー要素自体が見つからない場合のみエラーを返します。
func parseResultEntry(html string) (*types.ImageMeta, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("結果エントリのHTML解析に失敗しました: %w", err)
	}

	// OuterHTML で取得した <a> 要素はボディ直下に展開される
	entry := doc.Find("a").First()
	if entry.Length() == 0 {
		return nil, fmt.Errorf("結果エントリのアンカー要素が見つかりませんでした")
	}

	meta := &types.ImageMeta{
		Position: firstPosition,
		Title:    findText(entry, titleSelector),
		Source:   findText(entry, sourceSelector),
	}

	if link, ok := entry.Attr(linkAttribute); ok && link != "" {
		meta.Link = &link
	}

	return meta, nil
}

// findText は、セレクターに一致する最初のサブ要素の正規化済みテキストを返します。
// 要素が存在しない、またはテキストが空の場合は nil を返します。
func findText(entry *goquery.Selection, selector string) *string {
	sel := entry.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}

	text := textUtils.NormalizeText(sel.Text())
	if text == "" {
		return nil
	}
	return &text
}
