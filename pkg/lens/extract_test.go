package lens

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParseResultEntry は、結果エントリのHTML断片からのメタデータ抽出をテストします。
func TestParseResultEntry(t *testing.T) {
	// 検索結果ページの先頭エントリを模したHTML断片
	fullEntry := `<a class="GZrdsf" href="http://example.com/page">` +
		`<div class="iJmjmd">Example Title</div>` +
		`<div class="ShWW9">example.com</div>` +
		`</a>`

	testCases := []struct {
		name           string
		html           string
		expectedError  bool
		expectedTitle  *string
		expectedSource *string
		expectedLink   *string
	}{
		{
			name:           "全サブ要素が揃ったエントリ",
			html:           fullEntry,
			expectedTitle:  strPtr("Example Title"),
			expectedSource: strPtr("example.com"),
			expectedLink:   strPtr("http://example.com/page"),
		},
		{
			name: "提供元ラベルが欠落している場合はnilになる",
			html: `<a class="GZrdsf" href="http://example.com/page">` +
				`<div class="iJmjmd">Example Title</div></a>`,
			expectedTitle:  strPtr("Example Title"),
			expectedSource: nil,
			expectedLink:   strPtr("http://example.com/page"),
		},
		{
			name:           "全サブ要素が欠落していても抽出自体は成功する",
			html:           `<a class="GZrdsf"></a>`,
			expectedTitle:  nil,
			expectedSource: nil,
			expectedLink:   nil,
		},
		{
			name: "href属性が空の場合はリンクがnilになる",
			html: `<a class="GZrdsf" href="">` +
				`<div class="iJmjmd">Example Title</div></a>`,
			expectedTitle: strPtr("Example Title"),
			expectedLink:  nil,
		},
		{
			name:          "アンカー要素がない断片はエラー",
			html:          `<div class="iJmjmd">Example Title</div>`,
			expectedError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			meta, err := parseResultEntry(tc.html)

			if tc.expectedError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, meta)

			// 順位は常に先頭エントリの1
			assert.Equal(t, firstPosition, meta.Position)
			assert.Equal(t, tc.expectedTitle, meta.Title, "Titleが期待値と異なります")
			assert.Equal(t, tc.expectedSource, meta.Source, "Sourceが期待値と異なります")
			assert.Equal(t, tc.expectedLink, meta.Link, "Linkが期待値と異なります")
		})
	}
}

func strPtr(s string) *string { return &s }
