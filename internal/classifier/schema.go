package classifier

import (
	"encoding/json"
	"fmt"
	"time"

	"wisefido-triage/internal/models"
)

// SchemaVersion 模型文档格式版本
const SchemaVersion = 1

// Algorithm 模型文档中的算法标识
const Algorithm = "bagged_cart_gini"

// ModelDocument 模型的持久化格式（JSON，可检查、跨运行时可移植）
type ModelDocument struct {
	SchemaVersion int                      `json:"schema_version"`
	ModelID       string                   `json:"model_id"`
	Algorithm     string                   `json:"algorithm"`
	Config        ForestConfig             `json:"config"`
	Classes       []models.ConfidenceLevel `json:"classes"`
	Features      []string                 `json:"features"`
	SampleCount   int                      `json:"sample_count"`
	TrainedAt     time.Time                `json:"trained_at"`
	Trees         []TreeDocument           `json:"trees"`
}

// TreeDocument 单棵树（节点数组，下标 0 为根）
type TreeDocument struct {
	Nodes []Node `json:"nodes"`
}

// Document 导出模型文档
func (m *Model) Document() ModelDocument {
	doc := ModelDocument{
		SchemaVersion: SchemaVersion,
		ModelID:       m.ID,
		Algorithm:     Algorithm,
		Config:        m.Config,
		Classes:       append([]models.ConfidenceLevel(nil), models.ConfidenceLevels...),
		Features:      append([]string(nil), models.RequiredFields...),
		SampleCount:   m.SampleCount,
		TrainedAt:     m.TrainedAt,
		Trees:         make([]TreeDocument, len(m.trees)),
	}
	for i, t := range m.trees {
		doc.Trees[i] = TreeDocument{Nodes: append([]Node(nil), t.nodes...)}
	}
	return doc
}

// Marshal 序列化模型
func Marshal(m *Model) ([]byte, error) {
	if m == nil || len(m.trees) == 0 {
		return nil, ErrModelNotTrained
	}
	data, err := json.Marshal(m.Document())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal model: %w", err)
	}
	return data, nil
}

// Unmarshal 反序列化并校验模型文档
func Unmarshal(data []byte) (*Model, error) {
	var doc ModelDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelCorrupt, err)
	}
	return FromDocument(doc)
}

// FromDocument 由文档重建模型
func FromDocument(doc ModelDocument) (*Model, error) {
	if doc.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema_version %d", ErrModelCorrupt, doc.SchemaVersion)
	}
	if doc.Algorithm != Algorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrModelCorrupt, doc.Algorithm)
	}
	if len(doc.Classes) != models.NumConfidenceLevels {
		return nil, fmt.Errorf("%w: expected %d classes, got %d", ErrModelCorrupt, models.NumConfidenceLevels, len(doc.Classes))
	}
	for i, c := range doc.Classes {
		if c != models.ConfidenceLevels[i] {
			return nil, fmt.Errorf("%w: class %d is %q, expected %q", ErrModelCorrupt, i, c, models.ConfidenceLevels[i])
		}
	}
	if len(doc.Features) != models.NumFeatures {
		return nil, fmt.Errorf("%w: expected %d features, got %d", ErrModelCorrupt, models.NumFeatures, len(doc.Features))
	}
	if len(doc.Trees) == 0 {
		return nil, fmt.Errorf("%w: no trees", ErrModelCorrupt)
	}
	if err := doc.Config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: config: %v", ErrModelCorrupt, err)
	}
	if len(doc.Trees) != doc.Config.Trees {
		return nil, fmt.Errorf("%w: config declares %d trees, document has %d", ErrModelCorrupt, doc.Config.Trees, len(doc.Trees))
	}

	trees := make([]tree, len(doc.Trees))
	for i, td := range doc.Trees {
		if err := validateNodes(td.Nodes); err != nil {
			return nil, fmt.Errorf("%w: tree %d: %v", ErrModelCorrupt, i, err)
		}
		trees[i] = tree{nodes: append([]Node(nil), td.Nodes...)}
	}

	return &Model{
		ID:          doc.ModelID,
		Config:      doc.Config,
		SampleCount: doc.SampleCount,
		TrainedAt:   doc.TrainedAt,
		trees:       trees,
	}, nil
}

// validateNodes 子节点下标必须大于父节点，保证预测时不会成环或越界
func validateNodes(nodes []Node) error {
	if len(nodes) == 0 {
		return fmt.Errorf("empty tree")
	}
	for i, n := range nodes {
		if n.IsLeaf() {
			total := 0
			for _, c := range n.Counts {
				if c < 0 {
					return fmt.Errorf("node %d has negative count", i)
				}
				total += c
			}
			if total == 0 {
				return fmt.Errorf("leaf %d has no votes", i)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= models.NumFeatures {
			return fmt.Errorf("node %d has invalid feature %d", i, n.Feature)
		}
		if n.Left <= i || n.Left >= len(nodes) || n.Right <= i || n.Right >= len(nodes) {
			return fmt.Errorf("node %d has invalid children (%d, %d)", i, n.Left, n.Right)
		}
	}
	return nil
}
