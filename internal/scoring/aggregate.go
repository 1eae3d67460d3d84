package scoring

import (
	"math"
	"sort"
)

// FrameScore 单帧评分结果
type FrameScore struct {
	Index  int
	Score  int
	Failed bool // 评分永久失败，按0分处理并强制去除
}

// AggregateResult 去除最低分帧后的聚合结果
type AggregateResult struct {
	ContentQuality int
	DroppedIndices []int
}

// TrimOutliers 去除最低分帧并计算画面内容质量分
//
// 评分失败的帧一律去除，并相应减少计划去除数（不双重惩罚）；
// 其余帧按分数升序排列（同分按帧序号升序），去掉前dropCount帧，
// 剩余帧分数取四舍五入均值。
func TrimOutliers(frames []FrameScore, dropCount int) AggregateResult {
	var result AggregateResult

	scorable := make([]FrameScore, 0, len(frames))
	for _, f := range frames {
		if f.Failed {
			result.DroppedIndices = append(result.DroppedIndices, f.Index)
			dropCount--
			continue
		}
		scorable = append(scorable, f)
	}
	if dropCount < 0 {
		dropCount = 0
	}
	if dropCount > len(scorable) {
		dropCount = len(scorable)
	}

	sort.Slice(scorable, func(i, j int) bool {
		if scorable[i].Score != scorable[j].Score {
			return scorable[i].Score < scorable[j].Score
		}
		return scorable[i].Index < scorable[j].Index
	})

	for _, f := range scorable[:dropCount] {
		result.DroppedIndices = append(result.DroppedIndices, f.Index)
	}

	kept := scorable[dropCount:]
	if len(kept) == 0 {
		return result
	}

	var sum int
	for _, f := range kept {
		sum += f.Score
	}
	result.ContentQuality = int(math.Floor(float64(sum)/float64(len(kept)) + 0.5))

	sort.Ints(result.DroppedIndices)
	return result
}
