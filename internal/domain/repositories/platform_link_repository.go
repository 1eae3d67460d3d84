package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"scoring-service/internal/domain/entities"
)

// PlatformLinkRepository 平台发布记录仓库
type PlatformLinkRepository interface {
	// CreateBatch 批量创建平台记录
	CreateBatch(ctx context.Context, links []*entities.PlatformLink) error

	// FindBySubmission 查找提交下的全部平台记录
	FindBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*entities.PlatformLink, error)

	// UpdateVerifyStatus 更新链接校验状态
	UpdateVerifyStatus(ctx context.Context, id uuid.UUID, status, notes string) error
}

// PostgresPlatformLinkRepository PostgreSQL实现
type PostgresPlatformLinkRepository struct {
	db *sqlx.DB
}

// NewPlatformLinkRepository 创建平台发布记录仓库
func NewPlatformLinkRepository(db *sqlx.DB) PlatformLinkRepository {
	return &PostgresPlatformLinkRepository{db: db}
}

// CreateBatch 批量创建平台记录
func (r *PostgresPlatformLinkRepository) CreateBatch(ctx context.Context, links []*entities.PlatformLink) error {
	if len(links) == 0 {
		return nil
	}
	query := `
		INSERT INTO platform_links (
			id, submission_id, platform, video_link, data_screenshot_url,
			video_fingerprint, play_count, like_count, comment_count, share_count,
			verify_status, verify_notes, created_at
		) VALUES (
			:id, :submission_id, :platform, :video_link, :data_screenshot_url,
			:video_fingerprint, :play_count, :like_count, :comment_count, :share_count,
			:verify_status, :verify_notes, :created_at
		)
	`
	_, err := r.db.NamedExecContext(ctx, query, links)
	return err
}

// FindBySubmission 查找提交下的全部平台记录
func (r *PostgresPlatformLinkRepository) FindBySubmission(ctx context.Context, submissionID uuid.UUID) ([]*entities.PlatformLink, error) {
	var links []*entities.PlatformLink
	err := r.db.SelectContext(ctx, &links, `
		SELECT * FROM platform_links WHERE submission_id = $1 ORDER BY created_at ASC
	`, submissionID)
	if err != nil {
		return nil, err
	}
	return links, nil
}

// UpdateVerifyStatus 更新链接校验状态
func (r *PostgresPlatformLinkRepository) UpdateVerifyStatus(ctx context.Context, id uuid.UUID, status, notes string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE platform_links SET verify_status = $1, verify_notes = $2 WHERE id = $3
	`, status, notes, id)
	return err
}
