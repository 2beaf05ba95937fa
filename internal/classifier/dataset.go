package classifier

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"wisefido-triage/internal/models"

	"github.com/xuri/excelize/v2"
)

// ColumnConfidenceLevel 训练集标签列
const ColumnConfidenceLevel = "confidence_level"

// DatasetColumns 训练集列（特征列顺序与编码器一致，最后为标签列）
var DatasetColumns = append(append([]string(nil), models.RequiredFields...), ColumnConfidenceLevel)

// DatasetSource 训练样本来源
type DatasetSource interface {
	Samples(ctx context.Context) ([]Sample, error)
}

// FileDataset 从 CSV 或 XLSX 文件读取训练样本
type FileDataset struct {
	Path string
}

// Samples 实现 DatasetSource
func (d FileDataset) Samples(ctx context.Context) ([]Sample, error) {
	return LoadDataset(d.Path)
}

// StaticDataset 内存中的训练样本
type StaticDataset []Sample

// Samples 实现 DatasetSource
func (d StaticDataset) Samples(ctx context.Context) ([]Sample, error) {
	return append([]Sample(nil), d...), nil
}

// LoadDataset 读取整数编码的训练集（.csv 或 .xlsx，首行为表头）
func LoadDataset(path string) ([]Sample, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, path)
		}
		return nil, fmt.Errorf("failed to stat dataset %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return loadXLSX(path)
	default:
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open dataset %s: %w", path, err)
		}
		defer f.Close()
		return ReadCSV(f)
	}
}

// ReadCSV 解析 CSV 训练集
func ReadCSV(r io.Reader) ([]Sample, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTrainingData, err)
	}
	return parseRows(rows)
}

func loadXLSX(path string) ([]Sample, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook %s: %v", ErrTrainingData, path, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook %s has no sheets", ErrTrainingData, path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %s: %v", ErrTrainingData, sheets[0], err)
	}
	return parseRows(rows)
}

// parseRows 表头可任意列序；每行特征必须落在编码器值域内
func parseRows(rows [][]string) ([]Sample, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: missing header row", ErrTrainingData)
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range DatasetColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %s", ErrTrainingData, col)
		}
	}

	samples := make([]Sample, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		if isBlank(row) {
			continue
		}

		values := make([]int, len(DatasetColumns))
		for i, col := range DatasetColumns {
			pos := index[col]
			if pos >= len(row) {
				return nil, fmt.Errorf("%w: line %d: missing value for %s", ErrTrainingData, line, col)
			}
			v, err := strconv.Atoi(strings.TrimSpace(row[pos]))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s is not an integer: %q", ErrTrainingData, line, col, row[pos])
			}
			values[i] = v
		}

		var fv models.FeatureVector
		copy(fv[:], values[:models.NumFeatures])
		if !fv.InRange() {
			return nil, fmt.Errorf("%w: line %d: features out of range: %v", ErrTrainingData, line, fv)
		}
		label, err := models.ConfidenceFromOrdinal(values[models.NumFeatures])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrTrainingData, line, err)
		}
		samples = append(samples, Sample{Features: fv, Label: label})
	}
	return samples, nil
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
