package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Krimson/maternal-monitory/pkg/models"
)

const (
	summaryKeyPrefix = "summary:"
	reportKeyPrefix  = "report:"
)

type RedisCacheStore struct {
	client     *redis.Client
	summaryTTL time.Duration
	reportTTL  time.Duration
}

func NewRedisCacheStore(addr, password string, db int, summaryTTL, reportTTL time.Duration) *RedisCacheStore {
	return &RedisCacheStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		summaryTTL: summaryTTL,
		reportTTL:  reportTTL,
	}
}

func (r *RedisCacheStore) GetSummary(ctx context.Context, patientID string) (*models.AssistantSummary, error) {
	data, err := r.client.Get(ctx, summaryKeyPrefix+patientID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get summary from Redis: %w", err)
	}

	var summary models.AssistantSummary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return nil, fmt.Errorf("failed to unmarshal summary: %w", err)
	}
	return &summary, nil
}

func (r *RedisCacheStore) SetSummary(ctx context.Context, patientID string, summary *models.AssistantSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	if err := r.client.Set(ctx, summaryKeyPrefix+patientID, data, r.summaryTTL).Err(); err != nil {
		return fmt.Errorf("failed to save summary to Redis: %w", err)
	}
	return nil
}

func (r *RedisCacheStore) InvalidateSummary(ctx context.Context, patientID string) error {
	if err := r.client.Del(ctx, summaryKeyPrefix+patientID).Err(); err != nil {
		return fmt.Errorf("failed to delete summary from Redis: %w", err)
	}
	return nil
}

func (r *RedisCacheStore) GetReport(ctx context.Context, period models.ReportPeriod) (*models.ReportData, error) {
	data, err := r.client.Get(ctx, reportKeyPrefix+string(period)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report from Redis: %w", err)
	}

	var report models.ReportData
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to unmarshal report: %w", err)
	}
	return &report, nil
}

func (r *RedisCacheStore) SetReport(ctx context.Context, period models.ReportPeriod, report *models.ReportData) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := r.client.Set(ctx, reportKeyPrefix+string(period), data, r.reportTTL).Err(); err != nil {
		return fmt.Errorf("failed to save report to Redis: %w", err)
	}
	return nil
}

func (r *RedisCacheStore) InvalidateReports(ctx context.Context) error {
	// Периодов всего три, ключи известны заранее
	keys := []string{
		reportKeyPrefix + string(models.Period7d),
		reportKeyPrefix + string(models.Period30d),
		reportKeyPrefix + string(models.Period90d),
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate reports in Redis: %w", err)
	}
	return nil
}

func (r *RedisCacheStore) Close() error {
	return r.client.Close()
}
