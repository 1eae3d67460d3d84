package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scoring-service/internal/domain/entities"
	"scoring-service/internal/domain/repositories"
	"scoring-service/internal/logger"
	"scoring-service/internal/messaging"
)

// PlatformLinkDTO 提交时的单条平台发布数据
type PlatformLinkDTO struct {
	Platform          string `json:"platform" binding:"required"`
	VideoLink         string `json:"videoLink" binding:"required"`
	DataScreenshotURL string `json:"dataScreenshotUrl"`
	PlayCount         int64  `json:"playCount"`
	LikeCount         int64  `json:"likeCount"`
	CommentCount      int64  `json:"commentCount"`
	ShareCount        int64  `json:"shareCount"`
}

// SubmitVideoDTO 视频提交请求
type SubmitVideoDTO struct {
	Title         string            `json:"title" binding:"required"`
	Description   string            `json:"description"`
	Category      string            `json:"category"`
	VideoURL      string            `json:"videoUrl" binding:"required"`
	ThumbnailURL  string            `json:"thumbnailUrl"`
	LicenseAgreed bool              `json:"licenseAgreed"`
	PlatformLinks []PlatformLinkDTO `json:"platformLinks" binding:"required"`
}

// SubmissionDetail 提交详情（附平台记录）
type SubmissionDetail struct {
	*entities.VideoSubmission
	PlatformLinks []*entities.PlatformLink `json:"platformLinks"`
}

// 自报播放量超过该值却零互动时视为可疑数据，转人工复核
const suspiciousPlayThreshold = 100000

// SubmissionService 视频提交业务
type SubmissionService struct {
	submissions repositories.SubmissionRepository
	links       repositories.PlatformLinkRepository
	progress    repositories.ProgressRepository
	analysis    *AnalysisService
	producer    EventPublisher
	log         logger.Logger
}

// NewSubmissionService 创建视频提交服务
func NewSubmissionService(
	submissions repositories.SubmissionRepository,
	links repositories.PlatformLinkRepository,
	progress repositories.ProgressRepository,
	analysis *AnalysisService,
	producer EventPublisher,
	log logger.Logger,
) *SubmissionService {
	return &SubmissionService{
		submissions: submissions,
		links:       links,
		progress:    progress,
		analysis:    analysis,
		producer:    producer,
		log:         log,
	}
}

// ContentFingerprint 计算视频内容指纹（URL的sha256十六进制）
func ContentFingerprint(videoURL string) string {
	sum := sha256.Sum256([]byte(videoURL))
	return hex.EncodeToString(sum[:])
}

// Submit 创建视频提交并启动评分任务
//
// 同一视频（按内容指纹）只能提交一次；自报数据可疑的提交
// 停在pending等待人工复核，不自动评分。
func (s *SubmissionService) Submit(ctx context.Context, userID string, dto SubmitVideoDTO) (*entities.VideoSubmission, error) {
	if !dto.LicenseAgreed {
		return nil, &ServiceError{Type: ErrTypeValidation, Code: ErrCodeInvalidInput, Message: "必须同意内容授权协议"}
	}
	if len(dto.PlatformLinks) == 0 {
		return nil, &ServiceError{Type: ErrTypeValidation, Code: ErrCodeInvalidInput, Message: "至少需要一条平台发布记录"}
	}

	seen := make(map[entities.Platform]bool)
	for _, link := range dto.PlatformLinks {
		platform := entities.Platform(link.Platform)
		if _, ok := entities.PlatformNames[platform]; !ok {
			return nil, &ServiceError{Type: ErrTypeValidation, Code: ErrCodeInvalidInput,
				Message: fmt.Sprintf("不支持的平台: %s", link.Platform)}
		}
		if seen[platform] {
			return nil, &ServiceError{Type: ErrTypeValidation, Code: ErrCodeInvalidInput,
				Message: fmt.Sprintf("平台%s出现多条记录", entities.PlatformNames[platform])}
		}
		seen[platform] = true
		if !entities.ValidatePlatformURL(platform, link.VideoLink) {
			return nil, &ServiceError{Type: ErrTypeValidation, Code: ErrCodeInvalidInput,
				Message: fmt.Sprintf("链接格式与%s平台不匹配", entities.PlatformNames[platform])}
		}
	}

	fingerprint := ContentFingerprint(dto.VideoURL)
	if existing, err := s.submissions.FindByFingerprint(ctx, fingerprint); err == nil && existing != nil {
		return nil, &ServiceError{Type: ErrTypeResource, Code: ErrCodeResourceExists,
			Message: "该视频已提交过，不能重复提交"}
	} else if err != nil && !errors.Is(err, repositories.ErrSubmissionNotFound) {
		return nil, &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "查询重复提交失败", Err: err}
	}

	submission := entities.NewVideoSubmission(
		userID, dto.Title, dto.Description, dto.Category,
		dto.VideoURL, dto.ThumbnailURL, fingerprint,
	)

	suspicious := false
	linkRecords := make([]*entities.PlatformLink, 0, len(dto.PlatformLinks))
	platforms := make([]string, 0, len(dto.PlatformLinks))
	for _, link := range dto.PlatformLinks {
		record := &entities.PlatformLink{
			ID:                uuid.New(),
			SubmissionID:      submission.ID,
			Platform:          entities.Platform(link.Platform),
			VideoLink:         link.VideoLink,
			DataScreenshotURL: link.DataScreenshotURL,
			VideoFingerprint:  fingerprint,
			PlayCount:         link.PlayCount,
			LikeCount:         link.LikeCount,
			CommentCount:      link.CommentCount,
			ShareCount:        link.ShareCount,
			VerifyStatus:      entities.VerifyStatusVerified,
			CreatedAt:         time.Now(),
		}
		// 高播放量却零互动，数据形态异常
		if link.PlayCount >= suspiciousPlayThreshold &&
			link.LikeCount+link.CommentCount+link.ShareCount == 0 {
			record.VerifyStatus = entities.VerifyStatusPending
			record.VerifyNotes = "高播放量但无互动数据，待人工复核"
			suspicious = true
		}
		linkRecords = append(linkRecords, record)
		platforms = append(platforms, link.Platform)
	}

	if err := s.submissions.Create(ctx, submission); err != nil {
		return nil, &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "创建提交记录失败", Err: err}
	}
	if err := s.links.CreateBatch(ctx, linkRecords); err != nil {
		return nil, &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "保存平台记录失败", Err: err}
	}

	if s.producer != nil {
		if err := s.producer.SendVideoSubmitted(messaging.VideoSubmittedPayload{
			SubmissionID: submission.ID.String(),
			UserID:       userID,
			Title:        dto.Title,
			Platforms:    platforms,
			SubmittedAt:  submission.CreatedAt.Format(time.RFC3339),
		}); err != nil {
			s.log.WithError(err).Warn("发送提交事件失败: %s", submission.ID)
		}
	}

	if suspicious {
		if err := s.submissions.MarkPendingReview(ctx, submission.ID, "自报数据可疑，等待人工复核"); err != nil {
			s.log.WithError(err).Warn("标记人工复核失败: %s", submission.ID)
		}
		s.log.Info("提交数据可疑，转人工复核: %s", submission.ID)
		return submission, nil
	}

	// 异步启动评分任务，提交接口立即返回
	go func() {
		if err := s.analysis.RunScoringJob(context.Background(), submission.ID); err != nil {
			s.log.WithError(err).Error("评分任务执行失败: %s", submission.ID)
		}
	}()

	return submission, nil
}

// GetByID 查询提交详情，非管理员只能看自己的
func (s *SubmissionService) GetByID(ctx context.Context, userID string, isAdmin bool, id uuid.UUID) (*SubmissionDetail, error) {
	submission, err := s.submissions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return nil, &ServiceError{Type: ErrTypeNotFound, Code: ErrCodeResourceNotFound, Message: "视频提交记录不存在"}
		}
		return nil, &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "查询提交记录失败", Err: err}
	}
	if !isAdmin && submission.UserID != userID {
		return nil, &ServiceError{Type: ErrTypeNotFound, Code: ErrCodeResourceNotFound, Message: "视频提交记录不存在"}
	}

	links, err := s.links.FindBySubmission(ctx, id)
	if err != nil {
		return nil, &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "查询平台记录失败", Err: err}
	}
	return &SubmissionDetail{VideoSubmission: submission, PlatformLinks: links}, nil
}

// ListByUser 查询用户自己的提交列表（附平台记录）
func (s *SubmissionService) ListByUser(ctx context.Context, userID string, page, limit int) ([]*SubmissionDetail, int, error) {
	submissions, total, err := s.submissions.FindByUser(ctx, userID, page, limit)
	if err != nil {
		return nil, 0, &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "查询提交列表失败", Err: err}
	}

	details := make([]*SubmissionDetail, 0, len(submissions))
	for _, submission := range submissions {
		links, err := s.links.FindBySubmission(ctx, submission.ID)
		if err != nil {
			return nil, 0, &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "查询平台记录失败", Err: err}
		}
		details = append(details, &SubmissionDetail{VideoSubmission: submission, PlatformLinks: links})
	}
	return details, total, nil
}

// ListShowcase 查询展厅视频
func (s *SubmissionService) ListShowcase(ctx context.Context, sortBy string, page, limit int) ([]*entities.VideoSubmission, int, error) {
	submissions, total, err := s.submissions.FindShowcased(ctx, sortBy, page, limit)
	if err != nil {
		return nil, 0, &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "查询展厅列表失败", Err: err}
	}
	return submissions, total, nil
}

// GetProgress 读取评分任务进度
//
// 进度行不存在时按提交的终态回填，轮询端拿到的永远是
// 一个可展示的进度对象。
func (s *SubmissionService) GetProgress(ctx context.Context, userID string, isAdmin bool, id uuid.UUID) (*entities.AnalysisProgress, error) {
	submission, err := s.submissions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return nil, &ServiceError{Type: ErrTypeNotFound, Code: ErrCodeResourceNotFound, Message: "视频提交记录不存在"}
		}
		return nil, &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "查询提交记录失败", Err: err}
	}
	if !isAdmin && submission.UserID != userID {
		return nil, &ServiceError{Type: ErrTypeNotFound, Code: ErrCodeResourceNotFound, Message: "视频提交记录不存在"}
	}

	progress, err := s.progress.Get(ctx, id)
	if err == nil {
		return progress, nil
	}
	if !errors.Is(err, repositories.ErrProgressNotFound) {
		return nil, &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "查询进度失败", Err: err}
	}

	return terminalProgress(submission), nil
}

// terminalProgress 根据提交状态构造回填进度
func terminalProgress(submission *entities.VideoSubmission) *entities.AnalysisProgress {
	progress := &entities.AnalysisProgress{
		SubmissionID: submission.ID,
		UpdatedAt:    submission.UpdatedAt,
	}
	switch submission.ScoreStatus {
	case entities.ScoreStatusScored:
		progress.Stage = entities.StageCompleted
		progress.Progress = 100
		progress.Completed = true
		score := 0
		if submission.ViralScore != nil {
			score = *submission.ViralScore
		}
		progress.Detail = fmt.Sprintf("评分完成：%d分，奖励%d Credits", score, submission.CreditsRewarded)
	case entities.ScoreStatusFailed:
		progress.Stage = entities.StageError
		progress.Progress = 100
		progress.Completed = true
		progress.Error = submission.FailureReason
		progress.Detail = "评分任务失败"
	case entities.ScoreStatusScoring:
		progress.Stage = entities.StageQueued
		progress.Detail = "评分任务运行中"
	default:
		progress.Stage = entities.StageQueued
		progress.Detail = "等待评分任务启动"
	}
	return progress
}
