package scoring

import (
	"errors"
	"fmt"
)

// 抽帧策略常量
const (
	MaxDurationSeconds   = 600 // 10分钟上限，超过直接拒绝
	ShortVideoThreshold  = 300 // 5分钟分界
	ShortVideoFrameCount = 10
	LongVideoFrameCount  = 12
	ShortVideoDropCount  = 1 // ≤5分钟去掉最低1帧
	LongVideoDropCount   = 2 // 5-10分钟去掉最低2帧
)

// ErrDurationExceeded 视频超过10分钟，拒绝评分
var ErrDurationExceeded = errors.New("视频时长超过10分钟限制，请裁剪为两段后分别上传")

// ErrInvalidDuration 无法读取有效时长
var ErrInvalidDuration = errors.New("无法读取视频时长，请确认视频文件完整")

// SamplingPlan 抽帧策略：抽取总帧数、去除帧数、计分帧数
type SamplingPlan struct {
	FrameCount int
	DropCount  int
	KeepCount  int
}

// PlanSampling 根据视频时长确定抽帧策略
//
// ≤5分钟抽10帧去最低1帧，5-10分钟抽12帧去最低2帧，
// 超过10分钟返回ErrDurationExceeded。
func PlanSampling(durationSeconds float64) (SamplingPlan, error) {
	if durationSeconds > MaxDurationSeconds {
		minutes := int(durationSeconds) / 60
		seconds := int(durationSeconds) % 60
		return SamplingPlan{}, fmt.Errorf("视频时长 %d分%d秒: %w", minutes, seconds, ErrDurationExceeded)
	}
	if durationSeconds <= 0 {
		return SamplingPlan{}, ErrInvalidDuration
	}

	if durationSeconds <= ShortVideoThreshold {
		return SamplingPlan{
			FrameCount: ShortVideoFrameCount,
			DropCount:  ShortVideoDropCount,
			KeepCount:  ShortVideoFrameCount - ShortVideoDropCount,
		}, nil
	}
	return SamplingPlan{
		FrameCount: LongVideoFrameCount,
		DropCount:  LongVideoDropCount,
		KeepCount:  LongVideoFrameCount - LongVideoDropCount,
	}, nil
}

// FrameTimestamps 计算均匀分布的抽帧时间点（避开首尾各0.5秒，短视频按2%收缩）
func FrameTimestamps(durationSeconds float64, frameCount int) []float64 {
	offset := 0.5
	if durationSeconds*0.02 < offset {
		offset = durationSeconds * 0.02
	}
	usable := durationSeconds - 2*offset
	interval := usable / float64(frameCount-1)

	timestamps := make([]float64, 0, frameCount)
	for i := 0; i < frameCount; i++ {
		timestamps = append(timestamps, offset+interval*float64(i))
	}
	return timestamps
}
