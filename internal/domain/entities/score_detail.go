package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// 评分维度名称
const (
	DimensionContentQuality = "contentQuality" // 画面内容质量（抽帧评分）
	DimensionPlayVolume     = "playVolume"     // 播放量级别
	DimensionEngagement     = "engagement"     // 交互率
	DimensionDistribution   = "distribution"   // 平台分发广度
)

// DimensionScore 单个评分维度：分数0-100，权重0-1
type DimensionScore struct {
	Score  int     `json:"score"`
	Weight float64 `json:"weight"`
}

// ScoreDetail 评分详情，序列化为JSON存储在score_details列
type ScoreDetail struct {
	FinalScore   int                       `json:"finalScore"`
	Dimensions   map[string]DimensionScore `json:"dimensions"`
	Summary      string                    `json:"summary"`
	Highlights   []string                  `json:"highlights"`
	Improvements []string                  `json:"improvements"`
}

// Value 实现driver.Valuer，写库时序列化为JSON
func (d ScoreDetail) Value() (driver.Value, error) {
	return json.Marshal(d)
}

// Scan 实现sql.Scanner，读库时反序列化
func (d *ScoreDetail) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法解析score_details类型: %T", src)
	}
	return json.Unmarshal(data, d)
}
