package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"scoring-service/internal/clients/narrative"
	"scoring-service/internal/domain/entities"
	"scoring-service/internal/domain/repositories"
	"scoring-service/internal/logger"
	"scoring-service/internal/messaging"
)

// 内存实现的仓库与协作方，服务层测试共用

func testLogger() logger.Logger {
	return logger.NewLogger(logger.Config{Level: "fatal", ServiceName: "test"})
}

type fakeSubmissionRepo struct {
	mu          sync.Mutex
	submissions map[uuid.UUID]*entities.VideoSubmission
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{submissions: make(map[uuid.UUID]*entities.VideoSubmission)}
}

func (r *fakeSubmissionRepo) Create(_ context.Context, s *entities.VideoSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *s
	r.submissions[s.ID] = &copied
	return nil
}

func (r *fakeSubmissionRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.VideoSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return nil, repositories.ErrSubmissionNotFound
	}
	copied := *s
	return &copied, nil
}

func (r *fakeSubmissionRepo) FindByFingerprint(_ context.Context, fingerprint string) (*entities.VideoSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.submissions {
		if s.ContentFingerprint == fingerprint {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repositories.ErrSubmissionNotFound
}

func (r *fakeSubmissionRepo) FindByUser(_ context.Context, userID string, _, _ int) ([]*entities.VideoSubmission, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.VideoSubmission
	for _, s := range r.submissions {
		if s.UserID == userID {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, len(out), nil
}

func (r *fakeSubmissionRepo) FindAll(_ context.Context, status string, _, _ int) ([]*entities.VideoSubmission, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.VideoSubmission
	for _, s := range r.submissions {
		if status == "" || string(s.ScoreStatus) == status {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, len(out), nil
}

func (r *fakeSubmissionRepo) FindShowcased(_ context.Context, _ string, _, _ int) ([]*entities.VideoSubmission, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entities.VideoSubmission
	for _, s := range r.submissions {
		if s.ShowcaseStatus == entities.ShowcaseStatusShowcased {
			copied := *s
			out = append(out, &copied)
		}
	}
	return out, len(out), nil
}

func (r *fakeSubmissionRepo) TryStartScoring(_ context.Context, id uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok || s.ScoreStatus != entities.ScoreStatusPending {
		return false, nil
	}
	s.ScoreStatus = entities.ScoreStatusScoring
	return true, nil
}

func (r *fakeSubmissionRepo) UpdateDuration(_ context.Context, id uuid.UUID, duration float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.submissions[id]; ok {
		s.DurationSeconds = duration
	}
	return nil
}

func (r *fakeSubmissionRepo) CompleteScoring(_ context.Context, id uuid.UUID, score int, details *entities.ScoreDetail, reward int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok || s.ScoreStatus != entities.ScoreStatusScoring || s.CreditsRewarded != 0 {
		return false, nil
	}
	s.ScoreStatus = entities.ScoreStatusScored
	s.ViralScore = &score
	s.ScoreDetails = details
	s.CreditsRewarded = reward
	if reward > 0 {
		s.ShowcaseStatus = entities.ShowcaseStatusShowcased
	}
	return true, nil
}

func (r *fakeSubmissionRepo) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.submissions[id]; ok {
		s.ScoreStatus = entities.ScoreStatusFailed
		s.FailureReason = reason
	}
	return nil
}

func (r *fakeSubmissionRepo) MarkPendingReview(_ context.Context, id uuid.UUID, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.submissions[id]; ok {
		s.ScoreStatus = entities.ScoreStatusPending
		s.AdminNotes = notes
	}
	return nil
}

func (r *fakeSubmissionRepo) AdjustScore(ctx context.Context, id uuid.UUID, newScore, newReward int, notes string, ledgerCall func(ctx context.Context) error) error {
	// 模拟事务：账本调用失败时不落库
	if ledgerCall != nil {
		if err := ledgerCall(ctx); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.submissions[id]
	if !ok {
		return repositories.ErrSubmissionNotFound
	}
	s.ViralScore = &newScore
	s.ScoreStatus = entities.ScoreStatusScored
	s.CreditsRewarded = newReward
	s.AdminNotes = notes
	// rejected是终态，调分不恢复展示资格
	if s.ShowcaseStatus == entities.ShowcaseStatusRejected {
		return nil
	}
	if newReward > 0 {
		s.ShowcaseStatus = entities.ShowcaseStatusShowcased
	} else {
		s.ShowcaseStatus = entities.ShowcaseStatusPrivate
	}
	return nil
}

func (r *fakeSubmissionRepo) Flag(ctx context.Context, id uuid.UUID, notes string) error {
	return r.MarkPendingReview(ctx, id, notes)
}

func (r *fakeSubmissionRepo) Unflag(_ context.Context, id uuid.UUID, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.submissions[id]; ok {
		s.AdminNotes = notes
	}
	return nil
}

func (r *fakeSubmissionRepo) Reject(_ context.Context, id uuid.UUID, notes string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.submissions[id]; ok {
		s.ShowcaseStatus = entities.ShowcaseStatusRejected
		s.AdminNotes = notes
	}
	return nil
}

type fakeLinkRepo struct {
	mu    sync.Mutex
	links map[uuid.UUID][]*entities.PlatformLink
}

func newFakeLinkRepo() *fakeLinkRepo {
	return &fakeLinkRepo{links: make(map[uuid.UUID][]*entities.PlatformLink)}
}

func (r *fakeLinkRepo) CreateBatch(_ context.Context, links []*entities.PlatformLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range links {
		r.links[l.SubmissionID] = append(r.links[l.SubmissionID], l)
	}
	return nil
}

func (r *fakeLinkRepo) FindBySubmission(_ context.Context, submissionID uuid.UUID) ([]*entities.PlatformLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.links[submissionID], nil
}

func (r *fakeLinkRepo) UpdateVerifyStatus(_ context.Context, _ uuid.UUID, _, _ string) error {
	return nil
}

type fakeFrameRepo struct {
	mu      sync.Mutex
	frames  map[uuid.UUID][]*entities.FrameAnalysis
	dropped map[uuid.UUID][]int
}

func newFakeFrameRepo() *fakeFrameRepo {
	return &fakeFrameRepo{
		frames:  make(map[uuid.UUID][]*entities.FrameAnalysis),
		dropped: make(map[uuid.UUID][]int),
	}
}

func (r *fakeFrameRepo) CreateBatch(_ context.Context, frames []*entities.FrameAnalysis) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range frames {
		r.frames[f.SubmissionID] = append(r.frames[f.SubmissionID], f)
	}
	return nil
}

func (r *fakeFrameRepo) UpdateScore(_ context.Context, submissionID uuid.UUID, frameIndex, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.frames[submissionID] {
		if f.FrameIndex == frameIndex {
			f.FrameScore = &score
		}
	}
	return nil
}

func (r *fakeFrameRepo) MarkDropped(_ context.Context, submissionID uuid.UUID, indices []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped[submissionID] = append(r.dropped[submissionID], indices...)
	return nil
}

func (r *fakeFrameRepo) FindBySubmission(_ context.Context, submissionID uuid.UUID) ([]*entities.FrameAnalysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames[submissionID], nil
}

func (r *fakeFrameRepo) DeleteBySubmission(_ context.Context, submissionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.frames, submissionID)
	delete(r.dropped, submissionID)
	return nil
}

type fakeProgressRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*entities.AnalysisProgress
	history []entities.AnalysisProgress
}

func newFakeProgressRepo() *fakeProgressRepo {
	return &fakeProgressRepo{rows: make(map[uuid.UUID]*entities.AnalysisProgress)}
}

func (r *fakeProgressRepo) Upsert(_ context.Context, p *entities.AnalysisProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *p
	r.rows[p.SubmissionID] = &copied
	r.history = append(r.history, copied)
	return nil
}

func (r *fakeProgressRepo) Get(_ context.Context, submissionID uuid.UUID) (*entities.AnalysisProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[submissionID]
	if !ok {
		return nil, repositories.ErrProgressNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeProgressRepo) Delete(_ context.Context, submissionID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, submissionID)
	return nil
}

// fakeExtractor 返回固定时长与空帧数据
type fakeExtractor struct {
	duration      float64
	downloadErr   error
	downloadHangs bool
	downloadCalls int
	extractCalls  int
	mu            sync.Mutex
}

func (e *fakeExtractor) Download(ctx context.Context, _ string) (string, error) {
	e.mu.Lock()
	e.downloadCalls++
	e.mu.Unlock()
	if e.downloadHangs {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if e.downloadErr != nil {
		return "", e.downloadErr
	}
	return "/tmp/fake_video.mp4", nil
}

func (e *fakeExtractor) ProbeDuration(_ context.Context, _ string) (float64, error) {
	return e.duration, nil
}

func (e *fakeExtractor) ExtractFrame(_ context.Context, _ string, _ float64) ([]byte, error) {
	e.mu.Lock()
	e.extractCalls++
	e.mu.Unlock()
	return []byte("jpeg"), nil
}

func (e *fakeExtractor) Cleanup(_ string) {}

// fakeScorer 可按帧下标注入失败
type fakeScorer struct {
	score    int
	failURLs map[string]bool
	mu       sync.Mutex
	calls    int
}

func (s *fakeScorer) ScoreFrame(_ context.Context, imageURL string) (int, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.failURLs[imageURL] {
		return 0, fmt.Errorf("评分服务不可用")
	}
	return s.score, nil
}

type fakeNarrative struct{}

func (f *fakeNarrative) Summarize(_ context.Context, _ int, _ map[string]entities.DimensionScore) (narrative.Summary, error) {
	return narrative.Summary{Summary: "测试评语"}, nil
}

// fakeLedger 记录全部加分调用
type fakeLedger struct {
	mu    sync.Mutex
	calls []int
	err   error
}

func (l *fakeLedger) AddCredits(_ context.Context, _ string, amount int, _ string) error {
	if l.err != nil {
		return l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, amount)
	return nil
}

type fakeStorage struct{}

func (s *fakeStorage) Upload(_ context.Context, _ []byte, objectKey, _ string) (string, error) {
	return "https://storage.test/" + objectKey, nil
}

// fakePublisher 记录全部发送的事件
type fakePublisher struct {
	mu     sync.Mutex
	events []messaging.MessageEvent
}

func (p *fakePublisher) record(eventType string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, messaging.MessageEvent{Type: eventType, Payload: payload})
	return nil
}

func (p *fakePublisher) SendVideoSubmitted(payload messaging.VideoSubmittedPayload) error {
	return p.record(messaging.EventTypeVideoSubmitted, payload)
}

func (p *fakePublisher) SendScoringStage(payload messaging.ScoringStagePayload) error {
	return p.record(messaging.EventTypeScoringStage, payload)
}

func (p *fakePublisher) SendVideoScored(payload messaging.VideoScoredPayload) error {
	return p.record(messaging.EventTypeVideoScored, payload)
}

func (p *fakePublisher) SendScoringFailed(payload messaging.ScoringFailedPayload) error {
	return p.record(messaging.EventTypeScoringFailed, payload)
}

func (p *fakePublisher) SendRewardIssued(payload messaging.RewardIssuedPayload) error {
	return p.record(messaging.EventTypeRewardIssued, payload)
}

func (p *fakePublisher) SendRewardAdjusted(payload messaging.RewardAdjustedPayload) error {
	return p.record(messaging.EventTypeRewardAdjusted, payload)
}

func (p *fakePublisher) eventsOfType(eventType string) []messaging.MessageEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []messaging.MessageEvent
	for _, e := range p.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
