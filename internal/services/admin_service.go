package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"scoring-service/internal/domain/entities"
	"scoring-service/internal/domain/repositories"
	"scoring-service/internal/logger"
	"scoring-service/internal/messaging"
	"scoring-service/internal/scoring"
)

// 异常标记操作
const (
	FlagActionFlag   = "flag"   // 标记异常，回到pending复审
	FlagActionUnflag = "unflag" // 解除标记，仅记录备注
	FlagActionReject = "reject" // 拒绝展示
)

// AdminService 管理员复核与调分业务
type AdminService struct {
	submissions repositories.SubmissionRepository
	ledger      CreditLedger
	producer    EventPublisher
	log         logger.Logger
}

// NewAdminService 创建管理员服务
func NewAdminService(
	submissions repositories.SubmissionRepository,
	ledger CreditLedger,
	producer EventPublisher,
	log logger.Logger,
) *AdminService {
	return &AdminService{
		submissions: submissions,
		ledger:      ledger,
		producer:    producer,
		log:         log,
	}
}

// ListSubmissions 管理员列表，可按评分状态过滤
func (s *AdminService) ListSubmissions(ctx context.Context, status string, page, limit int) ([]*entities.VideoSubmission, int, error) {
	if status != "" {
		switch entities.ScoreStatus(status) {
		case entities.ScoreStatusPending, entities.ScoreStatusScoring,
			entities.ScoreStatusScored, entities.ScoreStatusFailed:
		default:
			return nil, 0, &ServiceError{Type: ErrTypeValidation, Code: ErrCodeInvalidInput,
				Message: fmt.Sprintf("无效的评分状态: %s", status)}
		}
	}
	submissions, total, err := s.submissions.FindAll(ctx, status, page, limit)
	if err != nil {
		return nil, 0, &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "查询提交列表失败", Err: err}
	}
	return submissions, total, nil
}

// AdjustScore 管理员改分
//
// 奖励差额只加不扣：上调补发差额（与行更新同一事务），
// 下调只改记录，已发放的Credits不追回。
func (s *AdminService) AdjustScore(ctx context.Context, adminID string, id uuid.UUID, newScore int, notes string) (*entities.VideoSubmission, error) {
	if newScore < 0 || newScore > 100 {
		return nil, &ServiceError{Type: ErrTypeValidation, Code: ErrCodeInvalidInput,
			Message: fmt.Sprintf("分数必须在0-100之间: %d", newScore)}
	}

	submission, err := s.submissions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return nil, &ServiceError{Type: ErrTypeNotFound, Code: ErrCodeResourceNotFound, Message: "视频提交记录不存在"}
		}
		return nil, &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "查询提交记录失败", Err: err}
	}

	oldScore := 0
	if submission.ViralScore != nil {
		oldScore = *submission.ViralScore
	}
	oldReward := submission.CreditsRewarded

	newReward := scoring.CalculateReward(newScore)
	delta := newReward - oldReward
	// 只增不扣：下调时保持已发放数额不变
	if delta < 0 {
		newReward = oldReward
		delta = 0
	}

	// 调分记录必须保留旧分→新分的轨迹，管理员备注附在其后
	adminNotes := fmt.Sprintf("管理员%s将评分由%d调整为%d", adminID, oldScore, newScore)
	if notes != "" {
		adminNotes = fmt.Sprintf("%s：%s", adminNotes, notes)
	}

	var ledgerCall func(ctx context.Context) error
	if delta > 0 {
		ledgerCall = func(ctx context.Context) error {
			return s.ledger.AddCredits(ctx, submission.UserID, delta,
				fmt.Sprintf("管理员调分补发奖励（%d→%d分）", oldScore, newScore))
		}
	}

	if err := s.submissions.AdjustScore(ctx, id, newScore, newReward, adminNotes, ledgerCall); err != nil {
		return nil, &ServiceError{Type: ErrTypeExternal, Code: ErrCodeLedgerFailed, Message: "调分失败", Err: err}
	}

	if s.producer != nil {
		if err := s.producer.SendRewardAdjusted(messaging.RewardAdjustedPayload{
			SubmissionID: id.String(),
			OldScore:     oldScore,
			NewScore:     newScore,
			OldReward:    oldReward,
			NewReward:    newReward,
			CreditsDelta: delta,
			AdjustedAt:   time.Now().Format(time.RFC3339),
		}); err != nil {
			s.log.WithError(err).Warn("发送调分事件失败: %s", id)
		}
	}

	s.log.WithFields(map[string]interface{}{
		"submission_id": id,
		"admin_id":      adminID,
		"old_score":     oldScore,
		"new_score":     newScore,
		"credits_delta": delta,
	}).Info("管理员调分完成")

	return s.submissions.FindByID(ctx, id)
}

// HandleFlag 处理异常标记操作
func (s *AdminService) HandleFlag(ctx context.Context, adminID string, id uuid.UUID, action, notes string) error {
	if _, err := s.submissions.FindByID(ctx, id); err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return &ServiceError{Type: ErrTypeNotFound, Code: ErrCodeResourceNotFound, Message: "视频提交记录不存在"}
		}
		return &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "查询提交记录失败", Err: err}
	}

	if notes == "" {
		notes = fmt.Sprintf("管理员%s执行%s操作", adminID, action)
	}

	var err error
	switch action {
	case FlagActionFlag:
		err = s.submissions.Flag(ctx, id, notes)
	case FlagActionUnflag:
		err = s.submissions.Unflag(ctx, id, notes)
	case FlagActionReject:
		err = s.submissions.Reject(ctx, id, notes)
	default:
		return &ServiceError{Type: ErrTypeValidation, Code: ErrCodeInvalidInput,
			Message: fmt.Sprintf("无效的操作: %s", action)}
	}
	if err != nil {
		return &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "更新提交记录失败", Err: err}
	}

	s.log.Info("管理员%s对提交%s执行了%s操作", adminID, id, action)
	return nil
}
