package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"scoring-service/internal/clients/narrative"
	"scoring-service/internal/config"
	"scoring-service/internal/domain/entities"
	"scoring-service/internal/domain/repositories"
	"scoring-service/internal/logger"
	"scoring-service/internal/messaging"
	"scoring-service/internal/scoring"
)

// FrameExtractor 视频下载与抽帧
type FrameExtractor interface {
	Download(ctx context.Context, videoURL string) (string, error)
	ProbeDuration(ctx context.Context, videoPath string) (float64, error)
	ExtractFrame(ctx context.Context, videoPath string, timestampSeconds float64) ([]byte, error)
	Cleanup(videoPath string)
}

// FrameScorer 逐帧画质评分
type FrameScorer interface {
	ScoreFrame(ctx context.Context, imageURL string) (int, error)
}

// NarrativeGenerator 评语生成
type NarrativeGenerator interface {
	Summarize(ctx context.Context, finalScore int, dimensions map[string]entities.DimensionScore) (narrative.Summary, error)
}

// CreditLedger 积分账本
type CreditLedger interface {
	AddCredits(ctx context.Context, userID string, amount int, reason string) error
}

// ObjectStorage 帧图片对象存储
type ObjectStorage interface {
	Upload(ctx context.Context, data []byte, objectKey, contentType string) (string, error)
}

// EventPublisher 评分流程事件发布
type EventPublisher interface {
	SendVideoSubmitted(payload messaging.VideoSubmittedPayload) error
	SendScoringStage(payload messaging.ScoringStagePayload) error
	SendVideoScored(payload messaging.VideoScoredPayload) error
	SendScoringFailed(payload messaging.ScoringFailedPayload) error
	SendRewardIssued(payload messaging.RewardIssuedPayload) error
	SendRewardAdjusted(payload messaging.RewardAdjustedPayload) error
}

// AnalysisService 视频评分任务编排
//
// 每次RunScoringJob执行完整流水线：下载→检测→抽帧→上传→
// 逐帧评分→画面分聚合→平台数据评分→落库与发奖。
// 并发守卫依赖数据库的状态翻转，同一提交同时只有一个任务生效。
type AnalysisService struct {
	submissions repositories.SubmissionRepository
	links       repositories.PlatformLinkRepository
	frames      repositories.FrameRepository
	progress    repositories.ProgressRepository
	extractor   FrameExtractor
	scorer      FrameScorer
	narrative   NarrativeGenerator
	ledger      CreditLedger
	storage     ObjectStorage
	producer    EventPublisher
	cfg         config.PipelineConfig
	thresholds  scoring.Thresholds
	log         logger.Logger
}

// NewAnalysisService 创建评分任务服务
func NewAnalysisService(
	submissions repositories.SubmissionRepository,
	links repositories.PlatformLinkRepository,
	frames repositories.FrameRepository,
	progress repositories.ProgressRepository,
	extractor FrameExtractor,
	scorer FrameScorer,
	narrativeGen NarrativeGenerator,
	ledger CreditLedger,
	storage ObjectStorage,
	producer EventPublisher,
	cfg config.PipelineConfig,
	thresholds scoring.Thresholds,
	log logger.Logger,
) *AnalysisService {
	return &AnalysisService{
		submissions: submissions,
		links:       links,
		frames:      frames,
		progress:    progress,
		extractor:   extractor,
		scorer:      scorer,
		narrative:   narrativeGen,
		ledger:      ledger,
		storage:     storage,
		producer:    producer,
		cfg:         cfg,
		thresholds:  thresholds,
		log:         log,
	}
}

// scoringRun 单次任务的运行状态
type scoringRun struct {
	submission *entities.VideoSubmission
	progress   int
	snapshots  entities.FrameSnapshots
}

// RunScoringJob 执行一次完整的评分任务
//
// 先原子抢占pending状态，抢不到说明任务已在运行或已完成，
// 直接返回冲突错误；抢到后在墙钟预算内跑完全部阶段。
func (s *AnalysisService) RunScoringJob(ctx context.Context, submissionID uuid.UUID) error {
	submission, err := s.submissions.FindByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return &ServiceError{Type: ErrTypeNotFound, Code: ErrCodeResourceNotFound, Message: "视频提交记录不存在"}
		}
		return &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "查询提交记录失败", Err: err}
	}

	started, err := s.submissions.TryStartScoring(ctx, submissionID)
	if err != nil {
		return &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "抢占评分任务失败", Err: err}
	}
	if !started {
		return &ServiceError{Type: ErrTypePipeline, Code: ErrCodeJobConflict, Message: "评分任务已在运行或已完成"}
	}

	// 重跑前清理上一次的帧与进度残留
	if err := s.frames.DeleteBySubmission(ctx, submissionID); err != nil {
		s.log.WithError(err).Warn("清理历史帧记录失败: %s", submissionID)
	}

	jobCtx, cancel := context.WithTimeout(ctx, s.cfg.JobTimeout)
	defer cancel()

	run := &scoringRun{submission: submission}
	s.updateProgress(run, entities.StageQueued, 0, "任务已启动")

	if err := s.executePipeline(jobCtx, run); err != nil {
		s.failJob(submission, err)
		return err
	}
	return nil
}

// executePipeline 依次执行各评分阶段
func (s *AnalysisService) executePipeline(ctx context.Context, run *scoringRun) error {
	submission := run.submission

	// 下载阶段
	var videoPath string
	err := s.withRetry(ctx, entities.StageDownloading, func(ctx context.Context) error {
		s.updateProgress(run, entities.StageDownloading, 5, "下载视频中")
		path, err := s.extractor.Download(ctx, submission.VideoURL)
		if err != nil {
			return err
		}
		videoPath = path
		return nil
	})
	if err != nil {
		return s.stageError(ctx, ErrCodeDownloadFailed, "下载视频失败", err)
	}
	defer s.extractor.Cleanup(videoPath)
	s.updateProgress(run, entities.StageDownloading, 10, "视频下载完成")

	// 时长检测与抽帧策略
	var plan scoring.SamplingPlan
	var duration float64
	err = s.withRetry(ctx, entities.StageChecking, func(ctx context.Context) error {
		s.updateProgress(run, entities.StageChecking, 15, "检测视频时长")
		d, err := s.extractor.ProbeDuration(ctx, videoPath)
		if err != nil {
			return err
		}
		duration = d
		plan, err = scoring.PlanSampling(d)
		return err
	})
	if err != nil {
		if errors.Is(err, scoring.ErrDurationExceeded) || errors.Is(err, scoring.ErrInvalidDuration) {
			return &ServiceError{Type: ErrTypeValidation, Code: ErrCodeDurationExceeded, Message: "视频时长超出允许范围", Err: err}
		}
		return s.stageError(ctx, ErrCodeExtractionFailed, "检测视频时长失败", err)
	}
	if err := s.submissions.UpdateDuration(ctx, submission.ID, duration); err != nil {
		s.log.WithError(err).Warn("记录视频时长失败: %s", submission.ID)
	}
	s.updateProgress(run, entities.StageChecking, 20,
		fmt.Sprintf("时长%.1f秒，抽取%d帧", duration, plan.FrameCount))

	// 抽帧
	timestamps := scoring.FrameTimestamps(duration, plan.FrameCount)
	frameImages := make([][]byte, plan.FrameCount)
	err = s.withRetry(ctx, entities.StageExtracting, func(ctx context.Context) error {
		for i, ts := range timestamps {
			if frameImages[i] != nil {
				continue
			}
			data, err := s.extractor.ExtractFrame(ctx, videoPath, ts)
			if err != nil {
				return err
			}
			frameImages[i] = data
			pct := 20 + (i+1)*20/plan.FrameCount
			s.updateProgress(run, entities.StageExtracting, pct,
				fmt.Sprintf("已抽取%d/%d帧", i+1, plan.FrameCount))
		}
		return nil
	})
	if err != nil {
		return s.stageError(ctx, ErrCodeExtractionFailed, "抽取视频帧失败", err)
	}

	// 上传帧图片
	frameRecords := make([]*entities.FrameAnalysis, plan.FrameCount)
	err = s.withRetry(ctx, entities.StageUploading, func(ctx context.Context) error {
		for i, data := range frameImages {
			if frameRecords[i] != nil {
				continue
			}
			objectKey := fmt.Sprintf("frames/%s/frame_%02d.jpg", submission.ID, i)
			url, err := s.storage.Upload(ctx, data, objectKey, "image/jpeg")
			if err != nil {
				return err
			}
			frameRecords[i] = &entities.FrameAnalysis{
				SubmissionID:     submission.ID,
				FrameIndex:       i,
				TimestampSeconds: timestamps[i],
				ImageURL:         url,
				CreatedAt:        time.Now(),
			}
			pct := 40 + (i+1)*15/plan.FrameCount
			s.updateProgress(run, entities.StageUploading, pct,
				fmt.Sprintf("已上传%d/%d帧", i+1, plan.FrameCount))
		}
		return nil
	})
	if err != nil {
		return s.stageError(ctx, ErrCodeUploadFailed, "上传帧图片失败", err)
	}
	if err := s.frames.CreateBatch(ctx, frameRecords); err != nil {
		return &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "保存帧记录失败", Err: err}
	}

	run.snapshots = make(entities.FrameSnapshots, len(frameRecords))
	for i, f := range frameRecords {
		run.snapshots[i] = entities.FrameSnapshot{
			FrameIndex:       f.FrameIndex,
			TimestampSeconds: f.TimestampSeconds,
			ImageURL:         f.ImageURL,
		}
	}

	// 逐帧AI评分
	frameScores := s.scoreFrames(ctx, run, frameRecords)
	if err := ctx.Err(); err != nil {
		return s.stageError(ctx, ErrCodeScorerUnavailable, "逐帧评分中断", err)
	}

	// 剔除最低分帧并聚合画面分
	s.updateProgress(run, entities.StageScoring, 85, "剔除离群帧并计算画面分")
	result := scoring.TrimOutliers(frameScores, plan.DropCount)
	if err := s.frames.MarkDropped(ctx, submission.ID, result.DroppedIndices); err != nil {
		s.log.WithError(err).Warn("标记剔除帧失败: %s", submission.ID)
	}
	for _, idx := range result.DroppedIndices {
		run.snapshots[idx].Dropped = true
	}

	// 结合平台数据计算最终评分
	s.updateProgress(run, entities.StageDataScoring, 90, "计算平台数据得分")
	links, err := s.links.FindBySubmission(ctx, submission.ID)
	if err != nil {
		return &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "查询平台记录失败", Err: err}
	}
	metrics := make([]scoring.PlatformMetrics, len(links))
	for i, l := range links {
		metrics[i] = scoring.PlatformMetrics{
			Platform:     string(l.Platform),
			Fingerprint:  l.VideoFingerprint,
			PlayCount:    l.PlayCount,
			LikeCount:    l.LikeCount,
			CommentCount: l.CommentCount,
			ShareCount:   l.ShareCount,
		}
	}
	perf := scoring.ScorePlatformPerformance(metrics, s.thresholds)
	finalScore := scoring.ComposeFinalScore(result.ContentQuality, perf)

	// 评语生成失败不阻塞评分完成
	summary := narrative.Summary{}
	detail := scoring.BuildScoreDetail(finalScore, result.ContentQuality, perf, "", nil, nil)
	if s.narrative != nil {
		generated, err := s.narrative.Summarize(ctx, finalScore, detail.Dimensions)
		if err != nil {
			s.log.WithError(err).Warn("生成评语失败: %s", submission.ID)
		} else {
			summary = generated
		}
	}
	detail = scoring.BuildScoreDetail(finalScore, result.ContentQuality, perf,
		summary.Summary, summary.Highlights, summary.Improvements)

	// 落库与发奖
	s.updateProgress(run, entities.StageDataScoring, 95, "写入评分结果")
	reward := scoring.CalculateReward(finalScore)
	completed, err := s.submissions.CompleteScoring(ctx, submission.ID, finalScore, detail, reward)
	if err != nil {
		return &ServiceError{Type: ErrTypeDatabase, Code: ErrCodeDBConnection, Message: "写入评分结果失败", Err: err}
	}

	// 只有真正完成本次状态翻转的任务才发放Credits（恰好一次）
	if completed && reward > 0 {
		reason := fmt.Sprintf("爆款视频评分奖励（%d分）", finalScore)
		if err := s.ledger.AddCredits(ctx, submission.UserID, reward, reason); err != nil {
			// 记录已落库但账本调用失败，留给管理员对账处理
			s.log.WithError(err).Error("发放Credits失败: 提交=%s 数额=%d", submission.ID, reward)
		} else if s.producer != nil {
			if err := s.producer.SendRewardIssued(messaging.RewardIssuedPayload{
				SubmissionID: submission.ID.String(),
				UserID:       submission.UserID,
				Amount:       reward,
				Reason:       reason,
				IssuedAt:     time.Now().Format(time.RFC3339),
			}); err != nil {
				s.log.WithError(err).Warn("发送发奖事件失败: %s", submission.ID)
			}
		}
	}

	s.completeProgress(run, finalScore)

	if completed && s.producer != nil {
		if err := s.producer.SendVideoScored(messaging.VideoScoredPayload{
			SubmissionID:    submission.ID.String(),
			UserID:          submission.UserID,
			ViralScore:      finalScore,
			CreditsRewarded: reward,
			ScoredAt:        time.Now().Format(time.RFC3339),
		}); err != nil {
			s.log.WithError(err).Warn("发送评分完成事件失败: %s", submission.ID)
		}
	}

	s.log.WithFields(map[string]interface{}{
		"submission_id": submission.ID,
		"viral_score":   finalScore,
		"reward":        reward,
	}).Info("评分任务完成")
	return nil
}

// scoreFrames 并发执行逐帧评分，失败帧记0分并标记
func (s *AnalysisService) scoreFrames(ctx context.Context, run *scoringRun, frameRecords []*entities.FrameAnalysis) []scoring.FrameScore {
	total := len(frameRecords)
	results := make([]scoring.FrameScore, total)

	sem := make(chan struct{}, s.cfg.FrameConcurrency)
	var wg sync.WaitGroup
	var mu sync.Mutex
	scored := 0

	for i, frame := range frameRecords {
		wg.Add(1)
		go func(idx int, frame *entities.FrameAnalysis) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			score, err := s.scoreFrameWithRetry(ctx, frame.ImageURL)
			if err != nil {
				// 永久失败的帧记0分并剔除，不让单帧故障拖垮整个任务
				s.log.WithError(err).Warn("帧评分失败: 提交=%s 帧=%d", frame.SubmissionID, idx)
				results[idx] = scoring.FrameScore{Index: idx, Score: 0, Failed: true}
			} else {
				results[idx] = scoring.FrameScore{Index: idx, Score: score}
				if err := s.frames.UpdateScore(ctx, frame.SubmissionID, idx, score); err != nil {
					s.log.WithError(err).Warn("写入帧评分失败: 提交=%s 帧=%d", frame.SubmissionID, idx)
				}
			}

			// 进度写入会序列化snapshots，与并发的帧写入共用同一把锁
			mu.Lock()
			scored++
			if !results[idx].Failed {
				sc := results[idx].Score
				run.snapshots[idx].FrameScore = &sc
			}
			pct := 55 + scored*25/total
			s.updateProgress(run, entities.StageAnalyzing, pct, fmt.Sprintf("已评分%d/%d帧", scored, total))
			mu.Unlock()
		}(i, frame)
	}
	wg.Wait()
	return results
}

// scoreFrameWithRetry 单帧评分，超时与重试
func (s *AnalysisService) scoreFrameWithRetry(ctx context.Context, imageURL string) (int, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.StageRetries; attempt++ {
		if attempt > 0 {
			if err := s.backoff(ctx, attempt); err != nil {
				return 0, err
			}
		}
		frameCtx, cancel := context.WithTimeout(ctx, s.cfg.FrameTimeout)
		score, err := s.scorer.ScoreFrame(frameCtx, imageURL)
		cancel()
		if err == nil {
			return score, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
	}
	return 0, lastErr
}

// withRetry 阶段级重试，指数退避
func (s *AnalysisService) withRetry(ctx context.Context, stage entities.AnalysisStage, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.StageRetries; attempt++ {
		if attempt > 0 {
			s.log.Warn("阶段%s第%d次重试: %v", stage, attempt, lastErr)
			if err := s.backoff(ctx, attempt); err != nil {
				return lastErr
			}
		}
		if err := fn(ctx); err != nil {
			lastErr = err
			// 时长超限是确定性失败，重试无意义
			if errors.Is(err, scoring.ErrDurationExceeded) || errors.Is(err, scoring.ErrInvalidDuration) {
				return err
			}
			if ctx.Err() != nil {
				return err
			}
			continue
		}
		return nil
	}
	return lastErr
}

// backoff 指数退避等待，基数×2^(attempt-1)，不超过上限
func (s *AnalysisService) backoff(ctx context.Context, attempt int) error {
	delay := s.cfg.BackoffBase << (attempt - 1)
	if delay > s.cfg.BackoffCap {
		delay = s.cfg.BackoffCap
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// stageError 包装阶段错误，超时统一归为timeout_exceeded
func (s *AnalysisService) stageError(ctx context.Context, code, message string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &ServiceError{Type: ErrTypePipeline, Code: ErrCodeTimeoutExceeded, Message: "评分任务超出时间预算", Err: err}
	}
	return &ServiceError{Type: ErrTypePipeline, Code: code, Message: message, Err: err}
}

// updateProgress 更新进度投影并发布阶段事件，progress单调不减
func (s *AnalysisService) updateProgress(run *scoringRun, stage entities.AnalysisStage, pct int, detail string) {
	if pct < run.progress {
		pct = run.progress
	}
	run.progress = pct

	progress := &entities.AnalysisProgress{
		SubmissionID: run.submission.ID,
		Stage:        stage,
		Progress:     pct,
		Detail:       detail,
		Frames:       run.snapshots,
		UpdatedAt:    time.Now(),
	}
	// 进度写入用独立上下文，任务超时后错误进度仍要落库
	if err := s.progress.Upsert(context.Background(), progress); err != nil {
		s.log.WithError(err).Warn("写入进度失败: %s", run.submission.ID)
	}

	if s.producer != nil {
		if err := s.producer.SendScoringStage(messaging.ScoringStagePayload{
			SubmissionID: run.submission.ID.String(),
			Stage:        string(stage),
			Progress:     pct,
			Detail:       detail,
		}); err != nil {
			s.log.WithError(err).Warn("发送阶段事件失败: %s", run.submission.ID)
		}
	}
}

// completeProgress 写入终态进度
func (s *AnalysisService) completeProgress(run *scoringRun, finalScore int) {
	run.progress = 100
	progress := &entities.AnalysisProgress{
		SubmissionID: run.submission.ID,
		Stage:        entities.StageCompleted,
		Progress:     100,
		Detail:       fmt.Sprintf("评分完成：%d分", finalScore),
		Frames:       run.snapshots,
		Completed:    true,
		UpdatedAt:    time.Now(),
	}
	if err := s.progress.Upsert(context.Background(), progress); err != nil {
		s.log.WithError(err).Warn("写入完成进度失败: %s", run.submission.ID)
	}
}

// failJob 任务失败的统一收尾
func (s *AnalysisService) failJob(submission *entities.VideoSubmission, jobErr error) {
	code := "pipeline_failed"
	message := jobErr.Error()
	var svcErr *ServiceError
	if errors.As(jobErr, &svcErr) {
		code = svcErr.Code
		message = svcErr.Message
	}

	ctx := context.Background()
	if err := s.submissions.MarkFailed(ctx, submission.ID, message); err != nil {
		s.log.WithError(err).Error("标记任务失败状态出错: %s", submission.ID)
	}

	progress := &entities.AnalysisProgress{
		SubmissionID: submission.ID,
		Stage:        entities.StageError,
		Progress:     100,
		Detail:       message,
		Completed:    true,
		Error:        message,
		UpdatedAt:    time.Now(),
	}
	if err := s.progress.Upsert(ctx, progress); err != nil {
		s.log.WithError(err).Warn("写入失败进度出错: %s", submission.ID)
	}

	if s.producer != nil {
		if err := s.producer.SendScoringFailed(messaging.ScoringFailedPayload{
			SubmissionID: submission.ID.String(),
			ErrorCode:    code,
			Detail:       message,
			FailedAt:     time.Now().Format(time.RFC3339),
		}); err != nil {
			s.log.WithError(err).Warn("发送失败事件出错: %s", submission.ID)
		}
	}

	s.log.WithError(jobErr).Error("评分任务失败: 提交=%s 代码=%s", submission.ID, code)
}
