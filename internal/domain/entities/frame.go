package entities

import (
	"time"

	"github.com/google/uuid"
)

// FrameAnalysis 单个抽样帧的分析记录
//
// 抽帧阶段创建，逐帧评分阶段写入frame_score，
// 任务进入终态后不再变更。dropped=true的帧不参与
// contentQuality均值，但保留供审计查看。
type FrameAnalysis struct {
	SubmissionID     uuid.UUID `json:"submissionId" db:"submission_id"`
	FrameIndex       int       `json:"frameIndex" db:"frame_index"`
	TimestampSeconds float64   `json:"timestampSeconds" db:"timestamp_seconds"`
	ImageURL         string    `json:"imageUrl" db:"image_url"`
	FrameScore       *int      `json:"frameScore" db:"frame_score"`
	Dropped          bool      `json:"dropped" db:"dropped"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
}
