package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"scoring-service/internal/domain/entities"
)

// FrameRepository 抽样帧记录仓库
type FrameRepository interface {
	// CreateBatch 批量创建帧记录（抽帧上传后）
	CreateBatch(ctx context.Context, frames []*entities.FrameAnalysis) error

	// UpdateScore 写入单帧评分
	UpdateScore(ctx context.Context, submissionID uuid.UUID, frameIndex int, score int) error

	// MarkDropped 标记被剔除的帧（离群帧与评分失败帧）
	MarkDropped(ctx context.Context, submissionID uuid.UUID, frameIndices []int) error

	// FindBySubmission 查找提交下的全部帧记录
	FindBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*entities.FrameAnalysis, error)

	// DeleteBySubmission 清理提交下的帧记录（任务重跑前）
	DeleteBySubmission(ctx context.Context, submissionID uuid.UUID) error
}

// PostgresFrameRepository PostgreSQL实现
type PostgresFrameRepository struct {
	db *sqlx.DB
}

// NewFrameRepository 创建抽样帧仓库
func NewFrameRepository(db *sqlx.DB) FrameRepository {
	return &PostgresFrameRepository{db: db}
}

// CreateBatch 批量创建帧记录
func (r *PostgresFrameRepository) CreateBatch(ctx context.Context, frames []*entities.FrameAnalysis) error {
	if len(frames) == 0 {
		return nil
	}
	query := `
		INSERT INTO frame_analyses (
			submission_id, frame_index, timestamp_seconds, image_url,
			frame_score, dropped, created_at
		) VALUES (
			:submission_id, :frame_index, :timestamp_seconds, :image_url,
			:frame_score, :dropped, :created_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, frames)
	return err
}

// UpdateScore 写入单帧评分
func (r *PostgresFrameRepository) UpdateScore(ctx context.Context, submissionID uuid.UUID, frameIndex int, score int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE frame_analyses SET frame_score = $1
		WHERE submission_id = $2 AND frame_index = $3
	`, score, submissionID, frameIndex)
	return err
}

// MarkDropped 标记被剔除的帧
func (r *PostgresFrameRepository) MarkDropped(ctx context.Context, submissionID uuid.UUID, frameIndices []int) error {
	if len(frameIndices) == 0 {
		return nil
	}
	indices := make([]int64, len(frameIndices))
	for i, idx := range frameIndices {
		indices[i] = int64(idx)
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE frame_analyses SET dropped = TRUE
		WHERE submission_id = $1 AND frame_index = ANY($2)
	`, submissionID, pq.Array(indices))
	return err
}

// FindBySubmission 查找提交下的全部帧记录
func (r *PostgresFrameRepository) FindBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*entities.FrameAnalysis, error) {
	var frames []*entities.FrameAnalysis
	err := r.db.SelectContext(ctx, &frames, `
		SELECT * FROM frame_analyses WHERE submission_id = $1 ORDER BY frame_index ASC
	`, submissionID)
	if err != nil {
		return nil, err
	}
	return frames, nil
}

// DeleteBySubmission 清理提交下的帧记录
func (r *PostgresFrameRepository) DeleteBySubmission(ctx context.Context, submissionID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM frame_analyses WHERE submission_id = $1`, submissionID)
	return err
}
