package entities

import (
	"time"

	"github.com/google/uuid"
)

// ScoreStatus 评分状态
type ScoreStatus string

const (
	ScoreStatusPending ScoreStatus = "pending" // 等待评分（或等待人工复审）
	ScoreStatusScoring ScoreStatus = "scoring" // 评分任务运行中
	ScoreStatusScored  ScoreStatus = "scored"  // 评分完成
	ScoreStatusFailed  ScoreStatus = "failed"  // 评分失败
)

// ShowcaseStatus 平台展示状态
type ShowcaseStatus string

const (
	ShowcaseStatusPrivate   ShowcaseStatus = "private"   // 仅作者可见
	ShowcaseStatusShowcased ShowcaseStatus = "showcased" // 展厅公开展示（获奖后）
	ShowcaseStatusRejected  ShowcaseStatus = "rejected"  // 管理员拒绝展示
)

// VideoSubmission 用户提交的爆款视频记录
//
// 业务规则：
// - 同一视频多平台分发只计算一次（通过content_fingerprint去重）
// - creditsRewarded由评分任务最多写入一次，管理员调分只增不扣
// - 记录只做状态流转，永不删除
type VideoSubmission struct {
	ID                 uuid.UUID      `json:"id" db:"id"`
	UserID             string         `json:"userId" db:"user_id"`
	Title              string         `json:"title" db:"title"`
	Description        string         `json:"description" db:"description"`
	Category           string         `json:"category" db:"category"`
	VideoURL           string         `json:"videoUrl" db:"video_url"`
	ThumbnailURL       string         `json:"thumbnailUrl" db:"thumbnail_url"`
	DurationSeconds    float64        `json:"durationSeconds" db:"duration_seconds"`
	ContentFingerprint string         `json:"contentFingerprint" db:"content_fingerprint"`
	ScoreStatus        ScoreStatus    `json:"scoreStatus" db:"score_status"`
	ShowcaseStatus     ShowcaseStatus `json:"showcaseStatus" db:"showcase_status"`
	ViralScore         *int           `json:"viralScore" db:"viral_score"`
	ScoreDetails       *ScoreDetail   `json:"scoreDetails" db:"score_details"`
	CreditsRewarded    int            `json:"creditsRewarded" db:"credits_rewarded"`
	RewardedAt         *time.Time     `json:"rewardedAt" db:"rewarded_at"`
	AdminNotes         string         `json:"adminNotes" db:"admin_notes"`
	FailureReason      string         `json:"failureReason" db:"failure_reason"`
	LicenseAgreed      bool           `json:"licenseAgreed" db:"license_agreed"`
	LicenseVersion     string         `json:"licenseVersion" db:"license_version"`
	LicenseAgreedAt    *time.Time     `json:"licenseAgreedAt" db:"license_agreed_at"`
	CreatedAt          time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt          time.Time      `json:"updatedAt" db:"updated_at"`
}

// NewVideoSubmission 创建新的视频提交记录（初始pending/private）
func NewVideoSubmission(userID, title, description, category, videoURL, thumbnailURL, fingerprint string) *VideoSubmission {
	now := time.Now()
	return &VideoSubmission{
		ID:                 uuid.New(),
		UserID:             userID,
		Title:              title,
		Description:        description,
		Category:           category,
		VideoURL:           videoURL,
		ThumbnailURL:       thumbnailURL,
		ContentFingerprint: fingerprint,
		ScoreStatus:        ScoreStatusPending,
		ShowcaseStatus:     ShowcaseStatusPrivate,
		LicenseAgreed:      true,
		LicenseVersion:     "1.0",
		LicenseAgreedAt:    &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
