package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Krimson/maternal-monitory/pkg/models"
)

// ErrCacheMiss возвращается кэшем при отсутствии ключа
var ErrCacheMiss = errors.New("cache miss")

// Repository — персистентное хранилище журналов наблюдения.
// Витальные показатели и самоотчёты append-only, алерты меняют только статус.
type Repository interface {
	// Пациентки
	ListPatients(ctx context.Context) ([]models.Patient, error)
	GetPatient(ctx context.Context, id string) (*models.Patient, error)
	CreatePatient(ctx context.Context, patient *models.Patient) error

	// Витальные показатели
	SaveVitalSigns(ctx context.Context, signs []models.VitalSign) error
	GetVitalHistory(ctx context.Context, patientID string, since time.Time) ([]models.VitalSign, error)

	// Самоотчёты
	SaveDailyReport(ctx context.Context, report *models.DailyReport) error
	GetPatientReports(ctx context.Context, patientID string, since time.Time) ([]models.DailyReport, error)
	GetAllReports(ctx context.Context, since time.Time) ([]models.DailyReport, error)

	// Алерты
	CreateAlerts(ctx context.Context, alerts []models.Alert) error
	GetAlert(ctx context.Context, id string) (*models.Alert, error)
	ListAlerts(ctx context.Context) ([]models.Alert, error)
	UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus) error
	AddAlertNote(ctx context.Context, alertID string, note *models.AlertNote) error

	Close() error
}

// CacheStore — кэш производных представлений (резюме и отчёты).
// Промах обозначается ErrCacheMiss; остальные ошибки считаются
// деградацией кэша и не должны валить запрос.
type CacheStore interface {
	GetSummary(ctx context.Context, patientID string) (*models.AssistantSummary, error)
	SetSummary(ctx context.Context, patientID string, summary *models.AssistantSummary) error
	InvalidateSummary(ctx context.Context, patientID string) error

	GetReport(ctx context.Context, period models.ReportPeriod) (*models.ReportData, error)
	SetReport(ctx context.Context, period models.ReportPeriod, data *models.ReportData) error
	InvalidateReports(ctx context.Context) error

	Close() error
}
