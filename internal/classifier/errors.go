package classifier

import "errors"

// 分类器错误分类（调用方使用 errors.Is 判断）
var (
	// ErrDatasetNotFound 训练数据集不存在
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrModelNotFound 存储中没有已持久化的模型
	ErrModelNotFound = errors.New("model not found")
	// ErrModelCorrupt 模型文件无法解析或版本不兼容
	ErrModelCorrupt = errors.New("model corrupt")
	// ErrTrainingData 训练数据为空或格式错误
	ErrTrainingData = errors.New("invalid training data")
	// ErrPersistence 模型写入失败
	ErrPersistence = errors.New("model persistence failed")
	// ErrModelNotTrained 在没有模型的情况下调用预测/评估
	ErrModelNotTrained = errors.New("model not trained")
)
