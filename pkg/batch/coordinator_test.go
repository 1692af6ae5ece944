package batch_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shouni/go-lens-batch/pkg/batch"
	"github.com/shouni/go-lens-batch/pkg/lens"
	"github.com/shouni/go-lens-batch/pkg/types"
)

// ======================================================================
// スタブ (Stub) の定義
// ======================================================================

func strPtr(s string) *string { return &s }

// stubFetcher はテスト用の batch.ItemFetcher 実装です。
// URLごとに決定的な結果を返し、同時実行数を記録します。
type stubFetcher struct {
	mu          sync.Mutex
	metaByURL   map[string]*types.ImageMeta // 成功させるURLと返すメタデータ
	errByURL    map[string]error            // 失敗させるURLと返すエラー
	panicURLs   map[string]bool             // panicさせるURL
	delay       time.Duration               // 1件あたりの擬似処理時間
	inFlight    int
	maxInFlight int
}

func (f *stubFetcher) Fetch(ctx context.Context, rec types.InputRecord) (*types.ImageMeta, error) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	if f.panicURLs[rec.URL] {
		panic("fetcher exploded")
	}
	if err, ok := f.errByURL[rec.URL]; ok {
		return nil, err
	}
	if meta, ok := f.metaByURL[rec.URL]; ok {
		return meta, nil
	}
	return nil, errors.New("unexpected url")
}

// sortByID は、完了順の出力を比較可能にするためにIDでソートします。
func sortByID(records []types.OutputRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
}

// ======================================================================
// テスト関数
// ======================================================================

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("成功と該当なしの混在_成功分のみが出力される", func(t *testing.T) {
		// input {"a": "http://x/1.png", "b": "http://x/2.png"} で "b" が該当なしのシナリオ
		records := []types.InputRecord{
			{ID: "a", URL: "http://x/1.png"},
			{ID: "b", URL: "http://x/2.png"},
		}
		fetcher := &stubFetcher{
			metaByURL: map[string]*types.ImageMeta{
				"http://x/1.png": {Position: 1, Title: strPtr("Example Title"), Source: strPtr("example.com"), Link: strPtr("http://example.com/page")},
			},
			errByURL: map[string]error{
				"http://x/2.png": lens.ErrNoMatch,
			},
		}

		coordinator := batch.NewCoordinator(fetcher, 2)
		results := coordinator.Run(ctx, records)

		require.Len(t, results, 1)
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "http://x/1.png", results[0].URL)
		assert.Equal(t, "Example Title", results[0].Title)
	})

	t.Run("欠落フィールドはN/Aで出力される", func(t *testing.T) {
		records := []types.InputRecord{{ID: "a", URL: "http://x/1.png"}}
		fetcher := &stubFetcher{
			metaByURL: map[string]*types.ImageMeta{
				// 提供元ラベルが欠落したメタデータ
				"http://x/1.png": {Position: 1, Title: strPtr("Example Title"), Link: strPtr("http://example.com/page")},
			},
		}

		coordinator := batch.NewCoordinator(fetcher, 1)
		results := coordinator.Run(ctx, records)

		require.Len(t, results, 1)
		assert.Equal(t, types.MissingValue, results[0].Source)
		assert.Equal(t, "Example Title", results[0].Title)
		assert.Equal(t, "http://example.com/page", results[0].Link)
	})

	t.Run("全件失敗でも中断せず空の出力を返す", func(t *testing.T) {
		records := []types.InputRecord{
			{ID: "a", URL: "http://x/1.png"},
			{ID: "b", URL: "http://x/2.png"},
		}
		fetcher := &stubFetcher{
			errByURL: map[string]error{
				"http://x/1.png": &lens.SessionInitError{Attempts: 3, Err: errors.New("spawn failed")},
				"http://x/2.png": &lens.NavigationError{URL: "http://x/2.png", Err: errors.New("timeout")},
			},
		}

		coordinator := batch.NewCoordinator(fetcher, 2)
		results := coordinator.Run(ctx, records)
		assert.Empty(t, results)
	})

	t.Run("1件のpanicが他のアイテムを道連れにしない", func(t *testing.T) {
		records := []types.InputRecord{
			{ID: "a", URL: "http://x/1.png"},
			{ID: "b", URL: "http://x/2.png"},
			{ID: "c", URL: "http://x/3.png"},
		}
		fetcher := &stubFetcher{
			metaByURL: map[string]*types.ImageMeta{
				"http://x/1.png": {Position: 1, Title: strPtr("One")},
				"http://x/3.png": {Position: 1, Title: strPtr("Three")},
			},
			panicURLs: map[string]bool{"http://x/2.png": true},
		}

		coordinator := batch.NewCoordinator(fetcher, 3)
		results := coordinator.Run(ctx, records)

		sortByID(results)
		require.Len(t, results, 2)
		assert.Equal(t, "a", results[0].ID)
		assert.Equal(t, "c", results[1].ID)
	})

	t.Run("同時実行数は指定した上限を超えない", func(t *testing.T) {
		var records []types.InputRecord
		metaByURL := map[string]*types.ImageMeta{}
		for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
			url := "http://x/" + id + ".png"
			records = append(records, types.InputRecord{ID: id, URL: url})
			metaByURL[url] = &types.ImageMeta{Position: 1, Title: strPtr(id)}
		}
		fetcher := &stubFetcher{metaByURL: metaByURL, delay: 10 * time.Millisecond}

		coordinator := batch.NewCoordinator(fetcher, 2)
		results := coordinator.Run(ctx, records)

		assert.Len(t, results, len(records))
		assert.LessOrEqual(t, fetcher.maxInFlight, 2, "同時実行数が上限を超えています")
	})

	t.Run("出力の集合は並列数に依存しない", func(t *testing.T) {
		var records []types.InputRecord
		metaByURL := map[string]*types.ImageMeta{}
		errByURL := map[string]error{}
		for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"} {
			url := "http://x/" + id + ".png"
			records = append(records, types.InputRecord{ID: id, URL: url})
			if id == "c" || id == "g" {
				errByURL[url] = lens.ErrNoMatch
				continue
			}
			metaByURL[url] = &types.ImageMeta{Position: 1, Title: strPtr(id)}
		}

		var baseline []types.OutputRecord
		for _, workers := range []int{1, 5, 50} {
			fetcher := &stubFetcher{metaByURL: metaByURL, errByURL: errByURL, delay: time.Millisecond}
			coordinator := batch.NewCoordinator(fetcher, workers)

			results := coordinator.Run(ctx, records)
			sortByID(results)

			// 各行のid/urlは入力レコードと正確に一致する
			for _, res := range results {
				assert.Equal(t, "http://x/"+res.ID+".png", res.URL)
			}

			if baseline == nil {
				baseline = results
				assert.Len(t, baseline, 8)
				continue
			}
			assert.Equal(t, baseline, results, "並列数 %d で出力の集合が変化しました", workers)
		}
	})

	t.Run("入力が空なら出力も空", func(t *testing.T) {
		coordinator := batch.NewCoordinator(&stubFetcher{}, 5)
		results := coordinator.Run(ctx, nil)
		assert.Empty(t, results)
	})
}

func TestNewCoordinator(t *testing.T) {
	t.Run("並列数が0以下の場合はデフォルト値が適用される", func(t *testing.T) {
		// 不正な並列数でもコンストラクターは失敗せず、デフォルトで動作する
		records := []types.InputRecord{{ID: "a", URL: "http://x/1.png"}}
		fetcher := &stubFetcher{
			metaByURL: map[string]*types.ImageMeta{
				"http://x/1.png": {Position: 1, Title: strPtr("Example Title")},
			},
		}

		coordinator := batch.NewCoordinator(fetcher, 0)
		results := coordinator.Run(context.Background(), records)
		assert.Len(t, results, 1)
	})
}
