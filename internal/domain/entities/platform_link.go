package entities

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// Platform 发布平台
type Platform string

const (
	PlatformDouyin         Platform = "douyin"          // 抖音
	PlatformWeixinChannels Platform = "weixin_channels" // 微信视频号
	PlatformXiaohongshu    Platform = "xiaohongshu"     // 小红书
	PlatformBilibili       Platform = "bilibili"        // B站
)

// PlatformNames 平台中文名
var PlatformNames = map[Platform]string{
	PlatformDouyin:         "抖音",
	PlatformWeixinChannels: "视频号",
	PlatformXiaohongshu:    "小红书",
	PlatformBilibili:       "B站",
}

// 链接校验状态
const (
	VerifyStatusPending  = "pending"  // AI标记可疑，待人工复核
	VerifyStatusVerified = "verified" // 自动验证通过
)

// platformURLPatterns 各平台视频链接格式
var platformURLPatterns = map[Platform][]*regexp.Regexp{
	PlatformDouyin: {
		regexp.MustCompile(`(?i)douyin\.com`),
		regexp.MustCompile(`(?i)v\.douyin\.com`),
		regexp.MustCompile(`(?i)iesdouyin\.com`),
	},
	PlatformWeixinChannels: {
		regexp.MustCompile(`(?i)channels\.weixin\.qq\.com`),
		regexp.MustCompile(`(?i)finder\.video\.qq\.com`),
		regexp.MustCompile(`(?i)weixin\.qq\.com`),
	},
	PlatformXiaohongshu: {
		regexp.MustCompile(`(?i)xiaohongshu\.com`),
		regexp.MustCompile(`(?i)xhslink\.com`),
		regexp.MustCompile(`(?i)xhs\.cn`),
	},
	PlatformBilibili: {
		regexp.MustCompile(`(?i)bilibili\.com`),
		regexp.MustCompile(`(?i)b23\.tv`),
	},
}

// ValidatePlatformURL 校验链接是否符合对应平台的格式
func ValidatePlatformURL(platform Platform, url string) bool {
	patterns, ok := platformURLPatterns[platform]
	if !ok {
		return false
	}
	for _, p := range patterns {
		if p.MatchString(url) {
			return true
		}
	}
	return false
}

// PlatformLink 一条平台发布记录（平台+链接+后台数据截屏）
//
// 同一提交下每个平台最多一条记录。video_fingerprint标识底层视频，
// 多平台分发同一视频时指纹相同，数据聚合阶段按指纹去重。
type PlatformLink struct {
	ID                uuid.UUID `json:"id" db:"id"`
	SubmissionID      uuid.UUID `json:"submissionId" db:"submission_id"`
	Platform          Platform  `json:"platform" db:"platform"`
	VideoLink         string    `json:"videoLink" db:"video_link"`
	DataScreenshotURL string    `json:"dataScreenshotUrl" db:"data_screenshot_url"`
	VideoFingerprint  string    `json:"videoFingerprint" db:"video_fingerprint"`
	PlayCount         int64     `json:"playCount" db:"play_count"`
	LikeCount         int64     `json:"likeCount" db:"like_count"`
	CommentCount      int64     `json:"commentCount" db:"comment_count"`
	ShareCount        int64     `json:"shareCount" db:"share_count"`
	VerifyStatus      string    `json:"verifyStatus" db:"verify_status"`
	VerifyNotes       string    `json:"verifyNotes" db:"verify_notes"`
	CreatedAt         time.Time `json:"createdAt" db:"created_at"`
}
