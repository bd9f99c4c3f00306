package csvsource

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"social-tracker/internal/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader читает выгрузки Meta Business Suite.
type Reader struct{}

// NewReader создаёт читатель CSV.
func NewReader() Reader {
	return Reader{}
}

// Read разбирает CSV: снимает BOM, определяет разделитель по заголовку
// и индексирует строки по именам колонок.
func (Reader) Read(r io.Reader) (domain.Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	firstLine, err := br.Peek(4096)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return domain.Table{}, err
	}

	cr := csv.NewReader(br)
	cr.Comma = sniffDelimiter(firstLine)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return domain.Table{}, fmt.Errorf("csv: пустой файл")
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("csv: заголовок: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := domain.Table{Header: header}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.Table{}, fmt.Errorf("csv: строка %d: %w", len(table.Rows)+2, err)
		}
		if blank(record) {
			continue
		}
		row := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(record) {
				row[h] = record[i]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// sniffDelimiter выбирает ';' для европейских выгрузок, иначе ','.
func sniffDelimiter(head []byte) rune {
	line := head
	if i := bytes.IndexByte(head, '\n'); i >= 0 {
		line = head[:i]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
