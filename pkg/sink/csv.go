package sink

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/shouni/go-lens-batch/pkg/types"
)

// Header は、出力CSVの固定カラム順です。
var Header = []string{"id", "url", "position", "title", "source", "link"}

// CSVSink は、OutputRecord を固定スキーマのCSVファイルへ書き出す ResultSink 実装です。
// 書き込みはミューテックスで保護されます。現在のフローでは末尾の一括書き込みのみですが、
// 逐次書き込みを導入する場合の共有リソース保護の不変条件として維持します。
type CSVSink struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVSink は、出力ファイルを作成 (既存なら切り詰め) し、ヘッダー行を書き込みます。
func NewCSVSink(path string) (*CSVSink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("出力ファイルの作成に失敗しました (パス: %s): %w", path, err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(Header); err != nil {
		file.Close()
		return nil, fmt.Errorf("ヘッダー行の書き込みに失敗しました: %w", err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return nil, fmt.Errorf("ヘッダー行のフラッシュに失敗しました: %w", err)
	}

	return &CSVSink{
		file:   file,
		writer: writer,
	}, nil
}

// WriteAll は、収集済みの全レコードを一度の操作で追記します。
// 実行1回につき一度だけ、全タスクの完了後に呼び出されることを想定しています。
func (s *CSVSink) WriteAll(records []types.OutputRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		if err := s.writer.Write(rowOf(rec)); err != nil {
			return fmt.Errorf("レコードの書き込みに失敗しました (id: %s): %w", rec.ID, err)
		}
	}

	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("レコードのフラッシュに失敗しました: %w", err)
	}
	return nil
}

// Close は、バッファをフラッシュしてファイルを閉じます。
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writer.Flush()
	flushErr := s.writer.Error()

	if err := s.file.Close(); err != nil {
		return fmt.Errorf("出力ファイルのクローズに失敗しました: %w", err)
	}
	if flushErr != nil {
		return fmt.Errorf("出力バッファのフラッシュに失敗しました: %w", flushErr)
	}
	return nil
}

// rowOf は、OutputRecord をヘッダーのカラム順に合わせた1行へ変換します。
func rowOf(rec types.OutputRecord) []string {
	return []string{
		rec.ID,
		rec.URL,
		strconv.Itoa(rec.Position),
		rec.Title,
		rec.Source,
		rec.Link,
	}
}
