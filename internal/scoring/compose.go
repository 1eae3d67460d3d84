package scoring

import (
	"math"

	"scoring-service/internal/domain/entities"
)

// 维度固定权重，合计1.0
const (
	WeightContentQuality = 0.40
	WeightPlayVolume     = 0.25
	WeightEngagement     = 0.20
	WeightDistribution   = 0.15
)

// ComposeFinalScore 各维度加权合成最终评分（四舍五入，钳制在[0,100]）
func ComposeFinalScore(contentQuality int, perf PerformanceScores) int {
	weighted := float64(contentQuality)*WeightContentQuality +
		float64(perf.PlayVolume)*WeightPlayVolume +
		float64(perf.Engagement)*WeightEngagement +
		float64(perf.Distribution)*WeightDistribution

	score := int(math.Floor(weighted + 0.5))
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// BuildScoreDetail 组装评分详情（叙述性文案由外部生成，可为空）
func BuildScoreDetail(finalScore, contentQuality int, perf PerformanceScores, summary string, highlights, improvements []string) *entities.ScoreDetail {
	return &entities.ScoreDetail{
		FinalScore: finalScore,
		Dimensions: map[string]entities.DimensionScore{
			entities.DimensionContentQuality: {Score: contentQuality, Weight: WeightContentQuality},
			entities.DimensionPlayVolume:     {Score: perf.PlayVolume, Weight: WeightPlayVolume},
			entities.DimensionEngagement:     {Score: perf.Engagement, Weight: WeightEngagement},
			entities.DimensionDistribution:   {Score: perf.Distribution, Weight: WeightDistribution},
		},
		Summary:      summary,
		Highlights:   highlights,
		Improvements: improvements,
	}
}
