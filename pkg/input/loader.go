package input

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/shouni/go-lens-batch/pkg/types"
)

// Load は、識別子から画像URLへのJSONマッピングを読み込み、入力レコードのリストへ変換します。
// 返されるリストは識別子の昇順でソートされます (マップの反復順序に依存しないため)。
func Load(path string) ([]types.InputRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("入力ファイルの読み込みに失敗しました (パス: %s): %w", path, err)
	}

	var mapping map[string]string
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("入力JSONの解析に失敗しました (パス: %s): %w", path, err)
	}

	records := make([]types.InputRecord, 0, len(mapping))
	for id, url := range mapping {
		records = append(records, types.InputRecord{ID: id, URL: url})
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})

	return records, nil
}
