package repository

import (
	"context"
	"time"

	"storefront/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookEventRepo interface {
	// MarkProcessed возвращает false, если событие (gateway, eventID) уже было записано.
	MarkProcessed(ctx context.Context, e *models.WebhookEvent) (bool, error)
	Exists(ctx context.Context, gateway, eventID string) (bool, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

type webhookEventRepo struct{ db *gorm.DB }

func NewWebhookEventRepo(db *gorm.DB) WebhookEventRepo { return &webhookEventRepo{db: db} }

func (r *webhookEventRepo) MarkProcessed(ctx context.Context, e *models.WebhookEvent) (bool, error) {
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now()
	}
	tx := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(e)
	return tx.RowsAffected > 0, tx.Error
}

func (r *webhookEventRepo) Exists(ctx context.Context, gateway, eventID string) (bool, error) {
	var cnt int64
	err := r.db.WithContext(ctx).Model(&models.WebhookEvent{}).
		Where("gateway = ? AND event_id = ?", gateway, eventID).
		Count(&cnt).Error
	return cnt > 0, err
}

func (r *webhookEventRepo) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).
		Where("processed_at < ?", before).
		Delete(&models.WebhookEvent{})
	return tx.RowsAffected, tx.Error
}
