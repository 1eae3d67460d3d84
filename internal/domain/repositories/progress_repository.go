package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"scoring-service/internal/domain/entities"
)

// ErrProgressNotFound 进度记录不存在
var ErrProgressNotFound = errors.New("进度记录不存在")

// ProgressRepository 评分任务进度仓库
type ProgressRepository interface {
	// Upsert 写入或覆盖进度行（progress只升不降由服务层保证）
	Upsert(ctx context.Context, progress *entities.AnalysisProgress) error

	// Get 读取提交的当前进度
	Get(ctx context.Context, submissionID uuid.UUID) (*entities.AnalysisProgress, error)

	// Delete 清理进度行（任务重跑前）
	Delete(ctx context.Context, submissionID uuid.UUID) error
}

// PostgresProgressRepository PostgreSQL实现
type PostgresProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository 创建进度仓库
func NewProgressRepository(db *sqlx.DB) ProgressRepository {
	return &PostgresProgressRepository{db: db}
}

// Upsert 写入或覆盖进度行
func (r *PostgresProgressRepository) Upsert(ctx context.Context, progress *entities.AnalysisProgress) error {
	query := `
		INSERT INTO analysis_progress (
			submission_id, stage, progress, detail, frames, completed, error, updated_at
		) VALUES (
			:submission_id, :stage, :progress, :detail, :frames, :completed, :error, :updated_at
		)
		ON CONFLICT (submission_id) DO UPDATE SET
			stage = EXCLUDED.stage,
			progress = EXCLUDED.progress,
			detail = EXCLUDED.detail,
			frames = EXCLUDED.frames,
			completed = EXCLUDED.completed,
			error = EXCLUDED.error,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.db.NamedExecContext(ctx, query, progress)
	return err
}

// Get 读取提交的当前进度
func (r *PostgresProgressRepository) Get(ctx context.Context, submissionID uuid.UUID) (*entities.AnalysisProgress, error) {
	var progress entities.AnalysisProgress
	err := r.db.GetContext(ctx, &progress,
		`SELECT * FROM analysis_progress WHERE submission_id = $1`, submissionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProgressNotFound
	}
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// Delete 清理进度行
func (r *PostgresProgressRepository) Delete(ctx context.Context, submissionID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM analysis_progress WHERE submission_id = $1`, submissionID)
	return err
}
