package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

const DefaultMaxBytes int64 = 5 << 20

const spreadsheetMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var ErrFileTooLarge = errors.New("file exceeds upload size limit")

// LocalSource reads roster files from disk, resolving relative paths against BaseDir.
type LocalSource struct {
	BaseDir  string
	MaxBytes int64
}

func NewLocalSource(baseDir string, maxBytes int64) *LocalSource {
	if baseDir == "" {
		baseDir = "."
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &LocalSource{BaseDir: baseDir, MaxBytes: maxBytes}
}

func (s *LocalSource) Open(ctx context.Context, sourcePath string) (io.ReadCloser, error) {
	_ = ctx

	path := sourcePath
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.BaseDir, sourcePath)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file %s: %w", path, err)
	}
	return file, nil
}

// ReadText opens sourcePath and returns its content as extraction input.
func (s *LocalSource) ReadText(ctx context.Context, sourcePath string) (string, error) {
	reader, err := s.Open(ctx, sourcePath)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	return ToText(sourcePath, reader, s.MaxBytes)
}

// ToText converts an uploaded file into plain text. Spreadsheets are flattened one row per line;
// every other container (csv, txt, docx, pdf) is passed through as text. Files larger than
// maxBytes are rejected before any extraction happens.
func ToText(name string, r io.Reader, maxBytes int64) (string, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("read upload %s: %w", name, err)
	}
	if int64(len(data)) > maxBytes {
		return "", ErrFileTooLarge
	}

	if isSpreadsheet(name, data) {
		text, err := flattenWorkbook(data)
		if err == nil {
			return text, nil
		}
	}

	return string(bytes.ToValidUTF8(bytes.ReplaceAll(data, []byte{0}, nil), nil)), nil
}

func isSpreadsheet(name string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(name), ".xlsx") {
		return true
	}
	return mimetype.Detect(data).Is(spreadsheetMIME)
}

func flattenWorkbook(data []byte) (string, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	var lines []string
	for _, sheet := range wb.GetSheetList() {
		rows, err := wb.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		for _, row := range rows {
			cells := make([]string, 0, len(row))
			for _, cell := range row {
				if cell = strings.TrimSpace(cell); cell != "" {
					cells = append(cells, cell)
				}
			}
			if len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " "))
			}
		}
	}
	return strings.Join(lines, "\n"), nil
}
