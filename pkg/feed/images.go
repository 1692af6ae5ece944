package feed

import (
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"
)

// フィードからバッチ入力マッピングを生成するためのアダプター

// ImageSource は、識別子から画像URLへのマッピングを提供できる任意の型を表します。
// このインターフェースが抽象化の境界線となります。
type ImageSource interface {
	GetImageURLs() map[string]string
}

// FeedAdapter は gofeed.Feed を ImageSource に適合させるためのアダプターです。
// gofeed.Feed の具体的な構造への依存を内部に閉じ込めます。
type FeedAdapter struct {
	*gofeed.Feed
}

// NewFeedAdapter は gofeed.Feed から新しいアダプターを作成します。
func NewFeedAdapter(feed *gofeed.Feed) *FeedAdapter {
	return &FeedAdapter{Feed: feed}
}

// GetImageURLs は ImageSource インターフェースを満たし、各記事の画像URLを抽出します。
// キーは記事のGUID (なければ連番) で、画像を持たない記事はマッピングに含まれません。
func (a *FeedAdapter) GetImageURLs() map[string]string {
	// nil またはアイテムがない場合は、すぐに空のマップを返します。
	if a.Feed == nil || len(a.Items) == 0 {
		return map[string]string{}
	}

	// 抽出ロジック
	urls := make(map[string]string, len(a.Items))
	for i, item := range a.Items {
		imageURL := itemImageURL(item)
		if imageURL == "" {
			continue
		}

		id := item.GUID
		if id == "" {
			id = fmt.Sprintf("item-%d", i+1)
		}
		urls[id] = imageURL
	}
	return urls
}

// itemImageURL は、記事の画像URLを決定します。
// item.Image を優先し、なければ image/* タイプのエンクロージャーを探します。
func itemImageURL(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}

	for _, enc := range item.Enclosures {
		if enc.URL != "" && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

// 汎用的な抽出関数 (オプション)

// GetAllImageURLs は ImageSource インターフェースを満たすオブジェクトからマッピングを抽出する汎用関数です。
// この関数は ImageSource 実装の詳細を知る必要がありません。
func GetAllImageURLs(source ImageSource) map[string]string {
	if source == nil {
		return map[string]string{}
	}
	return source.GetImageURLs()
}
