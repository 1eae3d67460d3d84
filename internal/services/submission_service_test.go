package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scoring-service/internal/config"
	"scoring-service/internal/domain/entities"
	"scoring-service/internal/scoring"
)

type submissionFixture struct {
	service     *SubmissionService
	submissions *fakeSubmissionRepo
	links       *fakeLinkRepo
	progress    *fakeProgressRepo
	publisher   *fakePublisher
}

func newSubmissionFixture() *submissionFixture {
	f := &submissionFixture{
		submissions: newFakeSubmissionRepo(),
		links:       newFakeLinkRepo(),
		progress:    newFakeProgressRepo(),
		publisher:   &fakePublisher{},
	}
	analysis := NewAnalysisService(
		f.submissions, f.links, newFakeFrameRepo(), f.progress,
		&fakeExtractor{duration: 240}, &fakeScorer{score: 80, failURLs: make(map[string]bool)},
		&fakeNarrative{}, &fakeLedger{}, &fakeStorage{}, f.publisher,
		config.PipelineConfig{
			JobTimeout:       30 * time.Second,
			StageRetries:     2,
			FrameConcurrency: 4,
			FrameTimeout:     5 * time.Second,
			BackoffBase:      time.Millisecond,
			BackoffCap:       5 * time.Millisecond,
		},
		scoring.DefaultThresholds(), testLogger(),
	)
	f.service = NewSubmissionService(f.submissions, f.links, f.progress, analysis, f.publisher, testLogger())
	return f
}

func validSubmitDTO() SubmitVideoDTO {
	return SubmitVideoDTO{
		Title:         "测试视频",
		Category:      "剧情",
		VideoURL:      "https://cdn.test/video.mp4",
		LicenseAgreed: true,
		PlatformLinks: []PlatformLinkDTO{{
			Platform:     "douyin",
			VideoLink:    "https://v.douyin.com/abc123",
			PlayCount:    50000,
			LikeCount:    2000,
			CommentCount: 300,
		}},
	}
}

func TestSubmit_RejectsWithoutLicense(t *testing.T) {
	f := newSubmissionFixture()
	dto := validSubmitDTO()
	dto.LicenseAgreed = false

	_, err := f.service.Submit(context.Background(), "user-1", dto)
	require.Error(t, err)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, ErrCodeInvalidInput, svcErr.Code)
}

func TestSubmit_RejectsEmptyPlatformLinks(t *testing.T) {
	f := newSubmissionFixture()
	dto := validSubmitDTO()
	dto.PlatformLinks = nil

	_, err := f.service.Submit(context.Background(), "user-1", dto)
	require.Error(t, err)
}

func TestSubmit_RejectsMismatchedPlatformURL(t *testing.T) {
	f := newSubmissionFixture()
	dto := validSubmitDTO()
	// B站链接挂在抖音平台下
	dto.PlatformLinks[0].VideoLink = "https://www.bilibili.com/video/BV1xx"

	_, err := f.service.Submit(context.Background(), "user-1", dto)
	require.Error(t, err)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, ErrCodeInvalidInput, svcErr.Code)
}

func TestSubmit_RejectsUnknownPlatform(t *testing.T) {
	f := newSubmissionFixture()
	dto := validSubmitDTO()
	dto.PlatformLinks[0].Platform = "kuaishou"

	_, err := f.service.Submit(context.Background(), "user-1", dto)
	require.Error(t, err)
}

func TestSubmit_RejectsDuplicatePlatform(t *testing.T) {
	f := newSubmissionFixture()
	dto := validSubmitDTO()
	dto.PlatformLinks = append(dto.PlatformLinks, dto.PlatformLinks[0])

	_, err := f.service.Submit(context.Background(), "user-1", dto)
	require.Error(t, err)
}

func TestSubmit_RejectsDuplicateFingerprint(t *testing.T) {
	f := newSubmissionFixture()
	dto := validSubmitDTO()

	first, err := f.service.Submit(context.Background(), "user-1", dto)
	require.NoError(t, err)
	assert.Equal(t, ContentFingerprint(dto.VideoURL), first.ContentFingerprint)

	// 同一视频URL再次提交
	_, err = f.service.Submit(context.Background(), "user-2", dto)
	require.Error(t, err)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, ErrCodeResourceExists, svcErr.Code)
}

func TestSubmit_SuspiciousDataGoesToManualReview(t *testing.T) {
	f := newSubmissionFixture()
	dto := validSubmitDTO()
	// 高播放量零互动
	dto.PlatformLinks[0].PlayCount = 500000
	dto.PlatformLinks[0].LikeCount = 0
	dto.PlatformLinks[0].CommentCount = 0
	dto.PlatformLinks[0].ShareCount = 0

	submission, err := f.service.Submit(context.Background(), "user-1", dto)
	require.NoError(t, err)

	// 可疑提交停在pending，不自动评分
	stored, err := f.submissions.FindByID(context.Background(), submission.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ScoreStatusPending, stored.ScoreStatus)
	assert.NotEmpty(t, stored.AdminNotes)

	links, _ := f.links.FindBySubmission(context.Background(), submission.ID)
	require.Len(t, links, 1)
	assert.Equal(t, entities.VerifyStatusPending, links[0].VerifyStatus)
}

func TestGetByID_OwnershipEnforced(t *testing.T) {
	f := newSubmissionFixture()
	submission := entities.NewVideoSubmission(
		"user-1", "测试视频", "", "剧情", "https://cdn.test/v.mp4", "", "fp-1",
	)
	require.NoError(t, f.submissions.Create(context.Background(), submission))

	// 本人可见
	detail, err := f.service.GetByID(context.Background(), "user-1", false, submission.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.ID, detail.ID)

	// 他人不可见，返回不存在而非无权限
	_, err = f.service.GetByID(context.Background(), "user-2", false, submission.ID)
	require.Error(t, err)
	var svcErr *ServiceError
	require.True(t, errors.As(err, &svcErr))
	assert.Equal(t, ErrCodeResourceNotFound, svcErr.Code)

	// 管理员可见
	_, err = f.service.GetByID(context.Background(), "admin-1", true, submission.ID)
	require.NoError(t, err)
}

func TestGetProgress_FallsBackToTerminalState(t *testing.T) {
	f := newSubmissionFixture()
	score := 88
	submission := entities.NewVideoSubmission(
		"user-1", "测试视频", "", "剧情", "https://cdn.test/v.mp4", "", "fp-1",
	)
	submission.ScoreStatus = entities.ScoreStatusScored
	submission.ViralScore = &score
	submission.CreditsRewarded = 30
	require.NoError(t, f.submissions.Create(context.Background(), submission))

	// 没有进度行，按终态回填
	progress, err := f.service.GetProgress(context.Background(), "user-1", false, submission.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StageCompleted, progress.Stage)
	assert.Equal(t, 100, progress.Progress)
	assert.True(t, progress.Completed)
	assert.Contains(t, progress.Detail, "88")
	assert.Contains(t, progress.Detail, "30")
}

func TestGetProgress_FailedSubmission(t *testing.T) {
	f := newSubmissionFixture()
	submission := entities.NewVideoSubmission(
		"user-1", "测试视频", "", "剧情", "https://cdn.test/v.mp4", "", "fp-1",
	)
	submission.ScoreStatus = entities.ScoreStatusFailed
	submission.FailureReason = "下载视频失败"
	require.NoError(t, f.submissions.Create(context.Background(), submission))

	progress, err := f.service.GetProgress(context.Background(), "user-1", false, submission.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.StageError, progress.Stage)
	assert.True(t, progress.Completed)
	assert.Equal(t, "下载视频失败", progress.Error)
}
