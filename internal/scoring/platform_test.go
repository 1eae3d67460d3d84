package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorePlatformPerformanceSingleLink(t *testing.T) {
	links := []PlatformMetrics{
		{Platform: "douyin", Fingerprint: "fp-a", PlayCount: 120000, LikeCount: 8000, CommentCount: 2000, ShareCount: 2000},
	}

	scores := ScorePlatformPerformance(links, DefaultThresholds())

	assert.Equal(t, 75, scores.PlayVolume) // 12万播放落在10万-50万档
	assert.Equal(t, 85, scores.Engagement) // 交互率10%
	assert.Equal(t, 50, scores.Distribution)
}

func TestScorePlatformPerformanceDedupSameVideo(t *testing.T) {
	// 同一底层视频（相同指纹）发到两个平台：
	// 播放/交互数据只计一次，但分发广度按平台数计
	single := []PlatformMetrics{
		{Platform: "douyin", Fingerprint: "fp-a", PlayCount: 50000, LikeCount: 3000, CommentCount: 1000, ShareCount: 1000},
	}
	double := []PlatformMetrics{
		{Platform: "douyin", Fingerprint: "fp-a", PlayCount: 50000, LikeCount: 3000, CommentCount: 1000, ShareCount: 1000},
		{Platform: "bilibili", Fingerprint: "fp-a", PlayCount: 50000, LikeCount: 3000, CommentCount: 1000, ShareCount: 1000},
	}

	th := DefaultThresholds()
	s1 := ScorePlatformPerformance(single, th)
	s2 := ScorePlatformPerformance(double, th)

	assert.Equal(t, s1.PlayVolume, s2.PlayVolume)
	assert.Equal(t, s1.Engagement, s2.Engagement)
	assert.Greater(t, s2.Distribution, s1.Distribution)
}

func TestScorePlatformPerformanceDistinctVideosSum(t *testing.T) {
	// 不同指纹的两条记录播放量求和
	links := []PlatformMetrics{
		{Platform: "douyin", Fingerprint: "fp-a", PlayCount: 600000},
		{Platform: "xiaohongshu", Fingerprint: "fp-b", PlayCount: 500000},
	}

	scores := ScorePlatformPerformance(links, DefaultThresholds())

	assert.Equal(t, 95, scores.PlayVolume) // 合计110万
	assert.Equal(t, 70, scores.Distribution)
}

func TestScorePlatformPerformanceFourPlatforms(t *testing.T) {
	links := []PlatformMetrics{
		{Platform: "douyin", Fingerprint: "fp-a", PlayCount: 1000},
		{Platform: "weixin_channels", Fingerprint: "fp-a", PlayCount: 1000},
		{Platform: "xiaohongshu", Fingerprint: "fp-a", PlayCount: 1000},
		{Platform: "bilibili", Fingerprint: "fp-a", PlayCount: 1000},
	}

	scores := ScorePlatformPerformance(links, DefaultThresholds())

	assert.Equal(t, 95, scores.Distribution)
}

func TestScorePlatformPerformanceZeroPlays(t *testing.T) {
	links := []PlatformMetrics{
		{Platform: "douyin", Fingerprint: "fp-a"},
	}

	scores := ScorePlatformPerformance(links, DefaultThresholds())

	assert.Equal(t, 25, scores.PlayVolume)
	assert.Equal(t, 35, scores.Engagement)
}
