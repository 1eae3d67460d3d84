package scoring

// PlatformMetrics 单条平台发布记录的自报数据
//
// Fingerprint标识底层视频：同一视频多平台分发时指纹相同，
// 聚合时每个指纹的数据只计一次，防止重复刷分。
type PlatformMetrics struct {
	Platform     string
	Fingerprint  string
	PlayCount    int64
	LikeCount    int64
	CommentCount int64
	ShareCount   int64
}

// PlayVolumeBand 播放量档位
type PlayVolumeBand struct {
	MinPlays int64 `mapstructure:"min_plays"`
	Score    int   `mapstructure:"score"`
}

// EngagementBand 交互率档位
type EngagementBand struct {
	MinRate float64 `mapstructure:"min_rate"`
	Score   int     `mapstructure:"score"`
}

// Thresholds 平台表现评分阈值（配置驱动）
type Thresholds struct {
	PlayVolume   []PlayVolumeBand `mapstructure:"play_volume"`
	Engagement   []EngagementBand `mapstructure:"engagement"`
	Distribution []int            `mapstructure:"distribution"` // 按发布平台数取分，下标=平台数-1
}

// DefaultThresholds 默认阈值档位
func DefaultThresholds() Thresholds {
	return Thresholds{
		PlayVolume: []PlayVolumeBand{
			{MinPlays: 1000000, Score: 95},
			{MinPlays: 500000, Score: 85},
			{MinPlays: 100000, Score: 75},
			{MinPlays: 50000, Score: 65},
			{MinPlays: 10000, Score: 55},
			{MinPlays: 5000, Score: 45},
			{MinPlays: 1000, Score: 35},
			{MinPlays: 0, Score: 25},
		},
		Engagement: []EngagementBand{
			{MinRate: 0.15, Score: 95},
			{MinRate: 0.10, Score: 85},
			{MinRate: 0.05, Score: 75},
			{MinRate: 0.03, Score: 65},
			{MinRate: 0.01, Score: 55},
			{MinRate: 0, Score: 35},
		},
		Distribution: []int{50, 70, 85, 95},
	}
}

// PerformanceScores 平台表现三个维度的得分
type PerformanceScores struct {
	PlayVolume   int
	Engagement   int
	Distribution int
}

// ScorePlatformPerformance 根据平台数据计算playVolume/engagement/distribution得分
//
// 同一指纹的多条记录每项指标取最大值只计一次，再对不同指纹求和；
// distribution按有效链接覆盖的去重平台数计分，边际递减。
func ScorePlatformPerformance(links []PlatformMetrics, th Thresholds) PerformanceScores {
	// 按指纹去重，每项指标取最大
	byFingerprint := make(map[string]PlatformMetrics)
	platforms := make(map[string]struct{})
	for _, l := range links {
		platforms[l.Platform] = struct{}{}
		agg, ok := byFingerprint[l.Fingerprint]
		if !ok {
			byFingerprint[l.Fingerprint] = l
			continue
		}
		if l.PlayCount > agg.PlayCount {
			agg.PlayCount = l.PlayCount
		}
		if l.LikeCount > agg.LikeCount {
			agg.LikeCount = l.LikeCount
		}
		if l.CommentCount > agg.CommentCount {
			agg.CommentCount = l.CommentCount
		}
		if l.ShareCount > agg.ShareCount {
			agg.ShareCount = l.ShareCount
		}
		byFingerprint[l.Fingerprint] = agg
	}

	var totalPlays, totalLikes, totalComments, totalShares int64
	for _, m := range byFingerprint {
		totalPlays += m.PlayCount
		totalLikes += m.LikeCount
		totalComments += m.CommentCount
		totalShares += m.ShareCount
	}

	var scores PerformanceScores
	for _, band := range th.PlayVolume {
		if totalPlays >= band.MinPlays {
			scores.PlayVolume = band.Score
			break
		}
	}

	var rate float64
	if totalPlays > 0 {
		rate = float64(totalLikes+totalComments+totalShares) / float64(totalPlays)
	}
	for _, band := range th.Engagement {
		if rate >= band.MinRate {
			scores.Engagement = band.Score
			break
		}
	}

	count := len(platforms)
	if count > 0 {
		if count > len(th.Distribution) {
			count = len(th.Distribution)
		}
		scores.Distribution = th.Distribution[count-1]
	}
	return scores
}
