package service

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Krimson/maternal-monitory/internal/alerts"
	"github.com/Krimson/maternal-monitory/internal/report"
	"github.com/Krimson/maternal-monitory/internal/repository"
	"github.com/Krimson/maternal-monitory/internal/summary"
	"github.com/Krimson/maternal-monitory/internal/vitals"
	"github.com/Krimson/maternal-monitory/pkg/models"
)

// snapshotDays — глубина среза данных для классификатора: окно тренда
// плюс запас на правило пропущенных измерений
const snapshotDays = 14

// ReviewPolicy решает, проходит ли действие ревью. Позволяет
// имитировать отказ downstream-системы без изменения сервиса.
type ReviewPolicy interface {
	Allow() bool
}

// RandomReviewPolicy отклоняет действие с заданной вероятностью
type RandomReviewPolicy struct {
	rate float64
	mu   sync.Mutex
	rng  *rand.Rand
}

func NewRandomReviewPolicy(rate float64, seed int64) *RandomReviewPolicy {
	return &RandomReviewPolicy{rate: rate, rng: rand.New(rand.NewSource(seed))}
}

func (p *RandomReviewPolicy) Allow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() >= p.rate
}

// AlwaysAllowPolicy пропускает все действия
type AlwaysAllowPolicy struct{}

func (AlwaysAllowPolicy) Allow() bool { return true }

// Broadcaster доставляет новые алерты подключенным клиентам
type Broadcaster interface {
	BroadcastAlert(alert models.Alert)
}

// ReviewResult — итог действия ревью. Updated=false означает, что
// алерт уже был в статусе reviewed и действие было no-op.
type ReviewResult struct {
	Alert   *models.Alert
	Updated bool
}

// MonitorService — основной сервис наблюдения: приём данных,
// классификация, резюме и отчёты
type MonitorService struct {
	repo       repository.Repository
	cache      repository.CacheStore
	classifier *alerts.Classifier
	policy     ReviewPolicy
	hub        Broadcaster

	windowDays int
	nowFn      func() time.Time
}

func NewMonitorService(repo repository.Repository, cache repository.CacheStore,
	classifier *alerts.Classifier, policy ReviewPolicy, hub Broadcaster, windowDays int) *MonitorService {
	if windowDays <= 0 {
		windowDays = vitals.DefaultWindowDays
	}
	return &MonitorService{
		repo:       repo,
		cache:      cache,
		classifier: classifier,
		policy:     policy,
		hub:        hub,
		windowDays: windowDays,
		nowFn:      time.Now,
	}
}

// Пациентки

func (s *MonitorService) ListPatients(ctx context.Context) ([]models.Patient, error) {
	return s.repo.ListPatients(ctx)
}

func (s *MonitorService) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	return s.repo.GetPatient(ctx, id)
}

func (s *MonitorService) CreatePatient(ctx context.Context, patient *models.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.New().String()
	}
	return s.repo.CreatePatient(ctx, patient)
}

// PatientOverview — карточка пациентки для дашборда: последнее
// измерение, тренды по метрикам за окно и текущий уровень внимания
type PatientOverview struct {
	Patient      models.Patient                 `json:"patient"`
	LatestVitals *models.VitalSign              `json:"latest_vitals,omitempty"`
	Trends       map[vitals.Metric]vitals.Trend `json:"trends"`
	AlertLevel   models.AlertLevel              `json:"alert_level"`
	Changes      []string                       `json:"changes"`
}

func (s *MonitorService) GetPatientOverview(ctx context.Context, id string) (*PatientOverview, error) {
	patient, err := s.repo.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.nowFn()
	since := now.AddDate(0, 0, -s.windowDays)

	history, err := s.repo.GetVitalHistory(ctx, id, since)
	if err != nil {
		return nil, err
	}
	reports, err := s.repo.GetPatientReports(ctx, id, since)
	if err != nil {
		return nil, err
	}
	allAlerts, err := s.repo.ListAlerts(ctx)
	if err != nil {
		return nil, err
	}

	overview := &PatientOverview{
		Patient:    *patient,
		Trends:     make(map[vitals.Metric]vitals.Trend, len(vitals.AllMetrics)),
		AlertLevel: alerts.PatientLevel(id, allAlerts),
		Changes:    summary.Build(*patient, history, reports, now).ChangesDetected,
	}
	if len(history) > 0 {
		last := history[len(history)-1]
		overview.LatestVitals = &last
	}
	for _, m := range vitals.AllMetrics {
		overview.Trends[m] = vitals.ClassifyMetric(history, m, s.windowDays, now)
	}
	return overview, nil
}

// Приём данных

// Consume — реализация ingest.Sink: сохраняет пачку измерений,
// прогоняет классификатор и рассылает новые алерты
func (s *MonitorService) Consume(ctx context.Context, patientID string, signs []models.VitalSign) error {
	for i := range signs {
		if signs[i].ID == "" {
			signs[i].ID = uuid.New().String()
		}
	}

	if err := s.repo.SaveVitalSigns(ctx, signs); err != nil {
		return fmt.Errorf("failed to save vital signs: %w", err)
	}
	log.Printf("[INTAKE] Saved %d vital signs for patient %s", len(signs), patientID)

	if err := s.evaluatePatient(ctx, patientID); err != nil {
		return err
	}

	s.invalidateDerived(ctx, patientID)
	return nil
}

// SubmitDailyReport сохраняет самоотчёт и прогоняет классификатор
func (s *MonitorService) SubmitDailyReport(ctx context.Context, rep *models.DailyReport) error {
	if _, err := s.repo.GetPatient(ctx, rep.PatientID); err != nil {
		return err
	}

	if rep.ID == "" {
		rep.ID = uuid.New().String()
	}
	if rep.Date.IsZero() {
		rep.Date = s.nowFn()
	}

	if err := s.repo.SaveDailyReport(ctx, rep); err != nil {
		return fmt.Errorf("failed to save daily report: %w", err)
	}
	log.Printf("[INTAKE] Saved daily report %s for patient %s", rep.ID, rep.PatientID)

	if err := s.evaluatePatient(ctx, rep.PatientID); err != nil {
		return err
	}

	s.invalidateDerived(ctx, rep.PatientID)
	return nil
}

// evaluatePatient собирает срез данных пациентки, применяет правила
// и сохраняет сработавшие алерты
func (s *MonitorService) evaluatePatient(ctx context.Context, patientID string) error {
	patient, err := s.repo.GetPatient(ctx, patientID)
	if err != nil {
		return err
	}

	now := s.nowFn()
	since := now.AddDate(0, 0, -snapshotDays)

	history, err := s.repo.GetVitalHistory(ctx, patientID, since)
	if err != nil {
		return err
	}
	reports, err := s.repo.GetPatientReports(ctx, patientID, since)
	if err != nil {
		return err
	}

	newAlerts := s.classifier.Evaluate(alerts.Snapshot{
		Patient: *patient,
		Vitals:  vitals.Window(history, s.windowDays, now),
		Reports: reports,
		Now:     now,
	})
	if len(newAlerts) == 0 {
		return nil
	}

	if err := s.repo.CreateAlerts(ctx, newAlerts); err != nil {
		return fmt.Errorf("failed to create alerts: %w", err)
	}
	log.Printf("[ALERTS] Created %d alerts for patient %s", len(newAlerts), patientID)

	if s.hub != nil {
		for _, a := range newAlerts {
			s.hub.BroadcastAlert(a)
		}
	}
	return nil
}

// Алерты

// ListAlerts возвращает алерты в порядке отображения: сначала pending,
// внутри статуса по убыванию серьезности, при равенстве — порядок создания
func (s *MonitorService) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	list, err := s.repo.ListAlerts(ctx)
	if err != nil {
		return nil, err
	}
	alerts.Sort(list)
	return list, nil
}

func (s *MonitorService) GetAlertsKPI(ctx context.Context) (*models.AlertsKPI, error) {
	list, err := s.repo.ListAlerts(ctx)
	if err != nil {
		return nil, err
	}
	kpi := alerts.KPI(list, s.nowFn())
	return &kpi, nil
}

// MarkAlertReviewed переводит алерт в reviewed. Переход одностороний:
// повторное ревью — no-op с Updated=false. Отказ политики оставляет
// статус нетронутым и возвращает ErrReviewFailed.
func (s *MonitorService) MarkAlertReviewed(ctx context.Context, id string) (*ReviewResult, error) {
	alert, err := s.repo.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}

	if alert.Status == models.AlertStatusReviewed {
		return &ReviewResult{Alert: alert, Updated: false}, nil
	}

	if !s.policy.Allow() {
		log.Printf("[ALERTS] Review action rejected for alert %s", id)
		return nil, models.ErrReviewFailed
	}

	if err := s.repo.UpdateAlertStatus(ctx, id, models.AlertStatusReviewed); err != nil {
		return nil, err
	}
	alert.Status = models.AlertStatusReviewed
	log.Printf("[ALERTS] Alert %s reviewed", id)

	if err := s.cache.InvalidateReports(ctx); err != nil {
		log.Printf("[WARN] Failed to invalidate report cache: %v", err)
	}
	return &ReviewResult{Alert: alert, Updated: true}, nil
}

func (s *MonitorService) AddAlertNote(ctx context.Context, alertID, text, author string) (*models.AlertNote, error) {
	if _, err := s.repo.GetAlert(ctx, alertID); err != nil {
		return nil, err
	}

	note := &models.AlertNote{
		ID:         uuid.New().String(),
		Text:       text,
		AuthorName: author,
		CreatedAt:  s.nowFn(),
	}
	if err := s.repo.AddAlertNote(ctx, alertID, note); err != nil {
		return nil, err
	}
	return note, nil
}

// Резюме и отчёты

// GetAssistantSummary возвращает резюме пациентки. Кэш best-effort:
// промах или деградация кэша приводят к пересчёту, а не к ошибке.
func (s *MonitorService) GetAssistantSummary(ctx context.Context, patientID string) (*models.AssistantSummary, error) {
	if cached, err := s.cache.GetSummary(ctx, patientID); err == nil {
		return cached, nil
	} else if err != repository.ErrCacheMiss {
		log.Printf("[WARN] Summary cache degraded: %v", err)
	}

	patient, err := s.repo.GetPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	now := s.nowFn()
	since := now.AddDate(0, 0, -s.windowDays)

	history, err := s.repo.GetVitalHistory(ctx, patientID, since)
	if err != nil {
		return nil, err
	}
	reports, err := s.repo.GetPatientReports(ctx, patientID, since)
	if err != nil {
		return nil, err
	}

	result := summary.Build(*patient, history, reports, now)

	if err := s.cache.SetSummary(ctx, patientID, &result); err != nil {
		log.Printf("[WARN] Failed to cache summary: %v", err)
	}
	return &result, nil
}

// GetReportData возвращает агрегированный отчёт за период (кэш best-effort)
func (s *MonitorService) GetReportData(ctx context.Context, period models.ReportPeriod) (*models.ReportData, error) {
	if cached, err := s.cache.GetReport(ctx, period); err == nil {
		return cached, nil
	} else if err != repository.ErrCacheMiss {
		log.Printf("[WARN] Report cache degraded: %v", err)
	}

	data, err := s.buildReport(ctx, period)
	if err != nil {
		return nil, err
	}

	if err := s.cache.SetReport(ctx, period, data); err != nil {
		log.Printf("[WARN] Failed to cache report: %v", err)
	}
	return data, nil
}

func (s *MonitorService) buildReport(ctx context.Context, period models.ReportPeriod) (*models.ReportData, error) {
	now := s.nowFn()
	since := now.AddDate(0, 0, -(period.Days() - 1))

	patients, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	reports, err := s.repo.GetAllReports(ctx, since)
	if err != nil {
		return nil, err
	}
	allAlerts, err := s.repo.ListAlerts(ctx)
	if err != nil {
		return nil, err
	}

	data := report.Build(period, patients, reports, allAlerts, now)
	return &data, nil
}

// GetReportCSV возвращает CSV-экспорт сводной таблицы отчёта
func (s *MonitorService) GetReportCSV(ctx context.Context, period models.ReportPeriod) (string, error) {
	data, err := s.GetReportData(ctx, period)
	if err != nil {
		return "", err
	}
	return report.EncodeCSV(report.CSVRows(*data, s.nowFn())), nil
}

// GetReportDigest возвращает текстовую сводку отчёта
func (s *MonitorService) GetReportDigest(ctx context.Context, period models.ReportPeriod) (string, error) {
	data, err := s.GetReportData(ctx, period)
	if err != nil {
		return "", err
	}
	return report.Digest(*data, s.nowFn()), nil
}

// Дашборд

func (s *MonitorService) GetDashboardKPI(ctx context.Context) (*models.KPIData, error) {
	patients, err := s.repo.ListPatients(ctx)
	if err != nil {
		return nil, err
	}
	now := s.nowFn()
	reports, err := s.repo.GetAllReports(ctx, now.AddDate(0, 0, -1))
	if err != nil {
		return nil, err
	}
	allAlerts, err := s.repo.ListAlerts(ctx)
	if err != nil {
		return nil, err
	}

	kpi := &models.KPIData{}
	for _, p := range patients {
		if p.IsActive {
			kpi.ActivePatients++
		}
	}
	for _, r := range reports {
		if models.SameDay(r.Date, now) {
			kpi.NewReportsToday++
		}
	}
	for _, a := range allAlerts {
		if a.Status == models.AlertStatusPending {
			kpi.PendingAlerts++
		}
	}
	return kpi, nil
}

// invalidateDerived сбрасывает производные представления после записи.
// Ошибки кэша не прерывают приём данных.
func (s *MonitorService) invalidateDerived(ctx context.Context, patientID string) {
	if err := s.cache.InvalidateSummary(ctx, patientID); err != nil {
		log.Printf("[WARN] Failed to invalidate summary cache: %v", err)
	}
	if err := s.cache.InvalidateReports(ctx); err != nil {
		log.Printf("[WARN] Failed to invalidate report cache: %v", err)
	}
}
