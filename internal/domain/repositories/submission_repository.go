package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"scoring-service/internal/domain/entities"
)

// ErrSubmissionNotFound 提交记录不存在
var ErrSubmissionNotFound = errors.New("视频提交记录不存在")

// SubmissionRepository 视频提交仓库
type SubmissionRepository interface {
	// Create 创建提交记录
	Create(ctx context.Context, submission *entities.VideoSubmission) error

	// FindByID 根据ID查找
	FindByID(ctx context.Context, id uuid.UUID) (*entities.VideoSubmission, error)

	// FindByFingerprint 根据内容指纹查找（去重检测）
	FindByFingerprint(ctx context.Context, fingerprint string) (*entities.VideoSubmission, error)

	// FindByUser 查找用户的提交列表（分页）
	FindByUser(ctx context.Context, userID string, page, limit int) ([]*entities.VideoSubmission, int, error)

	// FindAll 查找提交列表，可按评分状态过滤（管理员用）
	FindAll(ctx context.Context, status string, page, limit int) ([]*entities.VideoSubmission, int, error)

	// FindShowcased 查找展厅视频，sortBy ∈ {score, latest}
	FindShowcased(ctx context.Context, sortBy string, page, limit int) ([]*entities.VideoSubmission, int, error)

	// TryStartScoring 原子地把pending翻转为scoring，返回是否抢到任务。
	// 这是单提交单任务的并发守卫。
	TryStartScoring(ctx context.Context, id uuid.UUID) (bool, error)

	// UpdateDuration 记录探测到的视频时长
	UpdateDuration(ctx context.Context, id uuid.UUID, durationSeconds float64) error

	// CompleteScoring 原子地把scoring翻转为scored并写入评分结果。
	// 仅在credits_rewarded尚未写入时生效，返回是否真正完成了
	// 本次翻转——调用方只在返回true时发放Credits（恰好一次）。
	CompleteScoring(ctx context.Context, id uuid.UUID, score int, details *entities.ScoreDetail, reward int) (bool, error)

	// MarkFailed 任务失败，记录失败原因（不占用管理员备注）
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error

	// MarkPendingReview 转人工复审
	MarkPendingReview(ctx context.Context, id uuid.UUID, notes string) error

	// AdjustScore 管理员调分：更新分数/奖励字段并在同一事务内执行
	// 账本回调（diff>0时调用方传入加分操作，失败则整体回滚）。
	AdjustScore(ctx context.Context, id uuid.UUID, newScore, newReward int, notes string, ledgerCall func(ctx context.Context) error) error

	// Flag 标记异常，强制回到pending复审
	Flag(ctx context.Context, id uuid.UUID, notes string) error

	// Unflag 解除异常标记，仅记录备注
	Unflag(ctx context.Context, id uuid.UUID, notes string) error

	// Reject 拒绝展示（不影响分数与奖励）
	Reject(ctx context.Context, id uuid.UUID, notes string) error
}

// PostgresSubmissionRepository PostgreSQL实现
type PostgresSubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository 创建视频提交仓库
func NewSubmissionRepository(db *sqlx.DB) SubmissionRepository {
	return &PostgresSubmissionRepository{db: db}
}

// Create 创建提交记录
func (r *PostgresSubmissionRepository) Create(ctx context.Context, submission *entities.VideoSubmission) error {
	query := `
		INSERT INTO video_submissions (
			id, user_id, title, description, category, video_url, thumbnail_url,
			duration_seconds, content_fingerprint, score_status, showcase_status,
			viral_score, score_details, credits_rewarded, rewarded_at, admin_notes,
			failure_reason, license_agreed, license_version, license_agreed_at,
			created_at, updated_at
		) VALUES (
			:id, :user_id, :title, :description, :category, :video_url, :thumbnail_url,
			:duration_seconds, :content_fingerprint, :score_status, :showcase_status,
			:viral_score, :score_details, :credits_rewarded, :rewarded_at, :admin_notes,
			:failure_reason, :license_agreed, :license_version, :license_agreed_at,
			:created_at, :updated_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, submission)
	return err
}

// FindByID 根据ID查找
func (r *PostgresSubmissionRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.VideoSubmission, error) {
	var submission entities.VideoSubmission
	err := r.db.GetContext(ctx, &submission, `SELECT * FROM video_submissions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindByFingerprint 根据内容指纹查找
func (r *PostgresSubmissionRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*entities.VideoSubmission, error) {
	var submission entities.VideoSubmission
	err := r.db.GetContext(ctx, &submission,
		`SELECT * FROM video_submissions WHERE content_fingerprint = $1 LIMIT 1`, fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

// FindByUser 查找用户的提交列表
func (r *PostgresSubmissionRepository) FindByUser(ctx context.Context, userID string, page, limit int) ([]*entities.VideoSubmission, int, error) {
	var submissions []*entities.VideoSubmission
	err := r.db.SelectContext(ctx, &submissions, `
		SELECT * FROM video_submissions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM video_submissions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, 0, err
	}
	return submissions, total, nil
}

// FindAll 查找提交列表，可按评分状态过滤
func (r *PostgresSubmissionRepository) FindAll(ctx context.Context, status string, page, limit int) ([]*entities.VideoSubmission, int, error) {
	query := `SELECT * FROM video_submissions`
	countQuery := `SELECT COUNT(*) FROM video_submissions`
	args := []interface{}{}

	if status != "" {
		query += ` WHERE score_status = $1`
		countQuery += ` WHERE score_status = $1`
		args = append(args, status)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)

	var submissions []*entities.VideoSubmission
	queryArgs := append(append([]interface{}{}, args...), limit, (page-1)*limit)
	if err := r.db.SelectContext(ctx, &submissions, query, queryArgs...); err != nil {
		return nil, 0, err
	}

	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, err
	}
	return submissions, total, nil
}

// FindShowcased 查找展厅视频
func (r *PostgresSubmissionRepository) FindShowcased(ctx context.Context, sortBy string, page, limit int) ([]*entities.VideoSubmission, int, error) {
	orderBy := "viral_score DESC"
	if sortBy == "latest" {
		orderBy = "created_at DESC"
	}

	var submissions []*entities.VideoSubmission
	err := r.db.SelectContext(ctx, &submissions, fmt.Sprintf(`
		SELECT * FROM video_submissions
		WHERE showcase_status = 'showcased'
		ORDER BY %s
		LIMIT $1 OFFSET $2
	`, orderBy), limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM video_submissions WHERE showcase_status = 'showcased'`)
	if err != nil {
		return nil, 0, err
	}
	return submissions, total, nil
}

// TryStartScoring 原子地把pending翻转为scoring
func (r *PostgresSubmissionRepository) TryStartScoring(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE video_submissions
		SET score_status = 'scoring', updated_at = $1
		WHERE id = $2 AND score_status = 'pending'
	`, time.Now(), id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// UpdateDuration 记录探测到的视频时长
func (r *PostgresSubmissionRepository) UpdateDuration(ctx context.Context, id uuid.UUID, durationSeconds float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE video_submissions SET duration_seconds = $1, updated_at = $2 WHERE id = $3
	`, durationSeconds, time.Now(), id)
	return err
}

// CompleteScoring 原子地把scoring翻转为scored并写入评分结果
func (r *PostgresSubmissionRepository) CompleteScoring(ctx context.Context, id uuid.UUID, score int, details *entities.ScoreDetail, reward int) (bool, error) {
	now := time.Now()
	var rewardedAt *time.Time
	showcaseStatus := entities.ShowcaseStatusPrivate
	if reward > 0 {
		rewardedAt = &now
		showcaseStatus = entities.ShowcaseStatusShowcased
	}

	result, err := r.db.ExecContext(ctx, `
		UPDATE video_submissions
		SET score_status = 'scored',
		    viral_score = $1,
		    score_details = $2,
		    credits_rewarded = $3,
		    rewarded_at = $4,
		    showcase_status = $5,
		    updated_at = $6
		WHERE id = $7 AND score_status = 'scoring' AND credits_rewarded = 0
	`, score, details, reward, rewardedAt, showcaseStatus, now, id)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// MarkFailed 任务失败
func (r *PostgresSubmissionRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE video_submissions
		SET score_status = 'failed', failure_reason = $1, updated_at = $2
		WHERE id = $3
	`, reason, time.Now(), id)
	return err
}

// MarkPendingReview 转人工复审
func (r *PostgresSubmissionRepository) MarkPendingReview(ctx context.Context, id uuid.UUID, notes string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE video_submissions
		SET score_status = 'pending', admin_notes = $1, updated_at = $2
		WHERE id = $3
	`, notes, time.Now(), id)
	return err
}

// AdjustScore 管理员调分（与账本调用同一事务）
func (r *PostgresSubmissionRepository) AdjustScore(ctx context.Context, id uuid.UUID, newScore, newReward int, notes string, ledgerCall func(ctx context.Context) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	var rewardedAt *time.Time
	showcaseStatus := entities.ShowcaseStatusPrivate
	if newReward > 0 {
		rewardedAt = &now
		showcaseStatus = entities.ShowcaseStatusShowcased
	}

	// rejected是终态，调分不恢复展示资格
	_, err = tx.ExecContext(ctx, `
		UPDATE video_submissions
		SET viral_score = $1,
		    score_status = 'scored',
		    credits_rewarded = $2,
		    rewarded_at = $3,
		    showcase_status = CASE WHEN showcase_status = 'rejected' THEN showcase_status ELSE $4 END,
		    admin_notes = $5,
		    updated_at = $6
		WHERE id = $7
	`, newScore, newReward, rewardedAt, showcaseStatus, notes, now, id)
	if err != nil {
		return fmt.Errorf("更新评分失败: %w", err)
	}

	// 账本调用失败则整体回滚，避免加了分却没落库
	if ledgerCall != nil {
		if err := ledgerCall(ctx); err != nil {
			return fmt.Errorf("积分账本调用失败: %w", err)
		}
	}

	return tx.Commit()
}

// Flag 标记异常
func (r *PostgresSubmissionRepository) Flag(ctx context.Context, id uuid.UUID, notes string) error {
	return r.MarkPendingReview(ctx, id, notes)
}

// Unflag 解除异常标记
func (r *PostgresSubmissionRepository) Unflag(ctx context.Context, id uuid.UUID, notes string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE video_submissions SET admin_notes = $1, updated_at = $2 WHERE id = $3
	`, notes, time.Now(), id)
	return err
}

// Reject 拒绝展示
func (r *PostgresSubmissionRepository) Reject(ctx context.Context, id uuid.UUID, notes string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE video_submissions
		SET showcase_status = 'rejected', admin_notes = $1, updated_at = $2
		WHERE id = $3
	`, notes, time.Now(), id)
	return err
}
