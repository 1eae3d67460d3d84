package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoring-service/internal/config"
	"scoring-service/internal/domain/entities"
	"scoring-service/internal/messaging"
	"scoring-service/internal/scoring"
)

type analysisFixture struct {
	service     *AnalysisService
	submissions *fakeSubmissionRepo
	links       *fakeLinkRepo
	frames      *fakeFrameRepo
	progress    *fakeProgressRepo
	extractor   *fakeExtractor
	scorer      *fakeScorer
	ledger      *fakeLedger
	publisher   *fakePublisher
}

func newAnalysisFixture(duration float64, frameScore int) *analysisFixture {
	f := &analysisFixture{
		submissions: newFakeSubmissionRepo(),
		links:       newFakeLinkRepo(),
		frames:      newFakeFrameRepo(),
		progress:    newFakeProgressRepo(),
		extractor:   &fakeExtractor{duration: duration},
		scorer:      &fakeScorer{score: frameScore, failURLs: make(map[string]bool)},
		ledger:      &fakeLedger{},
		publisher:   &fakePublisher{},
	}
	cfg := config.PipelineConfig{
		JobTimeout:       30 * time.Second,
		StageRetries:     2,
		FrameConcurrency: 4,
		FrameTimeout:     5 * time.Second,
		BackoffBase:      time.Millisecond,
		BackoffCap:       5 * time.Millisecond,
	}
	f.service = NewAnalysisService(
		f.submissions, f.links, f.frames, f.progress,
		f.extractor, f.scorer, &fakeNarrative{}, f.ledger, &fakeStorage{},
		f.publisher, cfg, scoring.DefaultThresholds(), testLogger(),
	)
	return f
}

func (f *analysisFixture) useConfig(cfg config.PipelineConfig) {
	f.service = NewAnalysisService(
		f.submissions, f.links, f.frames, f.progress,
		f.extractor, f.scorer, &fakeNarrative{}, f.ledger, &fakeStorage{},
		f.publisher, cfg, scoring.DefaultThresholds(), testLogger(),
	)
}

func (f *analysisFixture) seedSubmission(t *testing.T, links []*entities.PlatformLink) *entities.VideoSubmission {
	t.Helper()
	submission := entities.NewVideoSubmission(
		"user-1", "测试视频", "", "剧情", "https://cdn.test/video.mp4", "", "fp-main",
	)
	require.NoError(t, f.submissions.Create(context.Background(), submission))
	for _, l := range links {
		l.SubmissionID = submission.ID
	}
	require.NoError(t, f.links.CreateBatch(context.Background(), links))
	return submission
}

func viralLinks() []*entities.PlatformLink {
	// 四平台分发同一视频：指标去重后 play=200万 rate=0.15 平台数=4
	platforms := []entities.Platform{
		entities.PlatformDouyin, entities.PlatformWeixinChannels,
		entities.PlatformXiaohongshu, entities.PlatformBilibili,
	}
	links := make([]*entities.PlatformLink, len(platforms))
	for i, p := range platforms {
		links[i] = &entities.PlatformLink{
			ID:               uuid.New(),
			Platform:         p,
			VideoFingerprint: "fp-main",
			PlayCount:        2000000,
			LikeCount:        280000,
			CommentCount:     10000,
			ShareCount:       10000,
			VerifyStatus:     entities.VerifyStatusVerified,
		}
	}
	return links
}

func TestRunScoringJob_ViralVideoRewarded(t *testing.T) {
	f := newAnalysisFixture(240, 95)
	submission := f.seedSubmission(t, viralLinks())

	err := f.service.RunScoringJob(context.Background(), submission.ID)
	require.NoError(t, err)

	scored, err := f.submissions.FindByID(context.Background(), submission.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ScoreStatusScored, scored.ScoreStatus)
	require.NotNil(t, scored.ViralScore)
	// 画面95 播放95 互动95 分发95 → 加权后仍为95
	assert.Equal(t, 95, *scored.ViralScore)
	assert.Equal(t, 80, scored.CreditsRewarded)
	assert.Equal(t, entities.ShowcaseStatusShowcased, scored.ShowcaseStatus)

	assert.Equal(t, []int{80}, f.ledger.calls)
	assert.Len(t, f.publisher.eventsOfType(messaging.EventTypeRewardIssued), 1)
	assert.Len(t, f.publisher.eventsOfType(messaging.EventTypeVideoScored), 1)

	// 240秒短视频抽10帧
	frames, _ := f.frames.FindBySubmission(context.Background(), submission.ID)
	assert.Len(t, frames, 10)

	progress, err := f.progress.Get(context.Background(), submission.ID)
	require.NoError(t, err)
	assert.True(t, progress.Completed)
	assert.Equal(t, entities.StageCompleted, progress.Stage)
	assert.Equal(t, 100, progress.Progress)
}

func TestRunScoringJob_RerunDoesNotRewardTwice(t *testing.T) {
	f := newAnalysisFixture(240, 95)
	submission := f.seedSubmission(t, viralLinks())

	require.NoError(t, f.service.RunScoringJob(context.Background(), submission.ID))

	err := f.service.RunScoringJob(context.Background(), submission.ID)
	require.Error(t, err)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, ErrCodeJobConflict, svcErr.Code)

	// Credits只发放一次
	assert.Equal(t, []int{80}, f.ledger.calls)
}

func TestRunScoringJob_DurationExceededFailsFast(t *testing.T) {
	f := newAnalysisFixture(900, 95)
	submission := f.seedSubmission(t, viralLinks())

	err := f.service.RunScoringJob(context.Background(), submission.ID)
	require.Error(t, err)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, ErrCodeDurationExceeded, svcErr.Code)

	failed, _ := f.submissions.FindByID(context.Background(), submission.ID)
	assert.Equal(t, entities.ScoreStatusFailed, failed.ScoreStatus)

	// 超长视频不抽帧、不发奖
	assert.Equal(t, 0, f.extractor.extractCalls)
	assert.Empty(t, f.ledger.calls)
	assert.Len(t, f.publisher.eventsOfType(messaging.EventTypeScoringFailed), 1)

	progress, err := f.progress.Get(context.Background(), submission.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StageError, progress.Stage)
	assert.NotEmpty(t, progress.Error)
}

func TestRunScoringJob_DownloadRetriesThenFails(t *testing.T) {
	f := newAnalysisFixture(240, 95)
	f.extractor.downloadErr = errors.New("源站连接被重置")
	submission := f.seedSubmission(t, viralLinks())

	err := f.service.RunScoringJob(context.Background(), submission.ID)
	require.Error(t, err)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, ErrCodeDownloadFailed, svcErr.Code)

	// 初次尝试+2次重试后放弃
	assert.Equal(t, 3, f.extractor.downloadCalls)

	failed, _ := f.submissions.FindByID(context.Background(), submission.ID)
	assert.Equal(t, entities.ScoreStatusFailed, failed.ScoreStatus)
	assert.Equal(t, "下载视频失败", failed.FailureReason)

	progress, err := f.progress.Get(context.Background(), submission.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StageError, progress.Stage)
	assert.Equal(t, "下载视频失败", progress.Error)

	// 失败任务不发奖、不发评分完成事件
	assert.Empty(t, f.ledger.calls)
	assert.Empty(t, f.publisher.eventsOfType(messaging.EventTypeVideoScored))
	failedEvents := f.publisher.eventsOfType(messaging.EventTypeScoringFailed)
	require.Len(t, failedEvents, 1)
	payload := failedEvents[0].Payload.(messaging.ScoringFailedPayload)
	assert.Equal(t, ErrCodeDownloadFailed, payload.ErrorCode)
}

func TestRunScoringJob_WallBudgetExceeded(t *testing.T) {
	f := newAnalysisFixture(240, 95)
	f.extractor.downloadHangs = true
	f.useConfig(config.PipelineConfig{
		JobTimeout:       20 * time.Millisecond,
		StageRetries:     2,
		FrameConcurrency: 4,
		FrameTimeout:     5 * time.Second,
		BackoffBase:      time.Millisecond,
		BackoffCap:       5 * time.Millisecond,
	})
	submission := f.seedSubmission(t, viralLinks())

	err := f.service.RunScoringJob(context.Background(), submission.ID)
	require.Error(t, err)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, ErrCodeTimeoutExceeded, svcErr.Code)

	// 任务上下文已超时，不再重试
	assert.Equal(t, 1, f.extractor.downloadCalls)

	failed, _ := f.submissions.FindByID(context.Background(), submission.ID)
	assert.Equal(t, entities.ScoreStatusFailed, failed.ScoreStatus)
	assert.NotEmpty(t, failed.FailureReason)
	assert.Empty(t, f.ledger.calls)

	progress, err := f.progress.Get(context.Background(), submission.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StageError, progress.Stage)
}

func TestRunScoringJob_FailedFrameConsumesDropBudget(t *testing.T) {
	f := newAnalysisFixture(240, 80)
	links := []*entities.PlatformLink{{
		ID:               uuid.New(),
		Platform:         entities.PlatformDouyin,
		VideoFingerprint: "fp-main",
		PlayCount:        600000,
		LikeCount:        30000,
		VerifyStatus:     entities.VerifyStatusVerified,
	}}
	submission := f.seedSubmission(t, links)

	// 第3帧永久失败
	failURL := fmt.Sprintf("https://storage.test/frames/%s/frame_03.jpg", submission.ID)
	f.scorer.failURLs[failURL] = true

	err := f.service.RunScoringJob(context.Background(), submission.ID)
	require.NoError(t, err)

	// 失败帧占用预定的剔除名额，只剔除这一帧
	assert.Equal(t, []int{3}, f.frames.dropped[submission.ID])

	scored, _ := f.submissions.FindByID(context.Background(), submission.ID)
	require.NotNil(t, scored.ViralScore)
	// 画面80 播放85 互动75(rate=0.05) 分发50 → 75.75四舍五入76
	assert.Equal(t, 76, *scored.ViralScore)
	assert.Equal(t, 0, scored.CreditsRewarded)
	assert.Equal(t, entities.ShowcaseStatusPrivate, scored.ShowcaseStatus)
	assert.Empty(t, f.ledger.calls)
}

func TestRunScoringJob_ProgressIsMonotonic(t *testing.T) {
	f := newAnalysisFixture(240, 95)
	submission := f.seedSubmission(t, viralLinks())

	require.NoError(t, f.service.RunScoringJob(context.Background(), submission.ID))

	prev := -1
	for _, p := range f.progress.history {
		assert.GreaterOrEqual(t, p.Progress, prev, "进度不允许回退")
		prev = p.Progress
	}
	require.NotEmpty(t, f.progress.history)
	assert.Equal(t, 100, f.progress.history[len(f.progress.history)-1].Progress)
}

func TestRunScoringJob_StageOrder(t *testing.T) {
	f := newAnalysisFixture(480, 90)
	submission := f.seedSubmission(t, viralLinks())

	require.NoError(t, f.service.RunScoringJob(context.Background(), submission.ID))

	// 480秒长视频抽12帧
	frames, _ := f.frames.FindBySubmission(context.Background(), submission.ID)
	assert.Len(t, frames, 12)

	wantOrder := []entities.AnalysisStage{
		entities.StageQueued, entities.StageDownloading, entities.StageChecking,
		entities.StageExtracting, entities.StageUploading, entities.StageAnalyzing,
		entities.StageScoring, entities.StageDataScoring, entities.StageCompleted,
	}
	pos := 0
	for _, p := range f.progress.history {
		for pos < len(wantOrder)-1 && p.Stage == wantOrder[pos+1] {
			pos++
		}
		assert.Equal(t, wantOrder[pos], p.Stage, "阶段顺序错误")
	}
	assert.Equal(t, len(wantOrder)-1, pos, "未覆盖全部阶段")
}

func TestRunScoringJob_SubmissionNotFound(t *testing.T) {
	f := newAnalysisFixture(240, 95)

	err := f.service.RunScoringJob(context.Background(), uuid.New())
	require.Error(t, err)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, ErrCodeResourceNotFound, svcErr.Code)
}
