package alerts

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Krimson/maternal-monitory/internal/vitals"
	"github.com/Krimson/maternal-monitory/pkg/models"
)

// Thresholds содержит настраиваемые пороги правил классификации.
// Это вход политики, а не закон: значения не утверждаются как
// клинически валидированные и задаются конфигурацией.
type Thresholds struct {
	// Давление: высокая и умеренная полосы (mmHg)
	SystolicHigh      int
	DiastolicHigh     int
	SystolicModerate  int
	DiastolicModerate int

	// Частота сердечных сокращений: потолок (bpm)
	HeartRateCeiling int

	// Сатурация: нижняя граница (%), инверсная шкала
	OxygenFloor int

	// Потеря веса за окно (kg), значимая незапланированная вариация
	WeightLossKg float64

	// Количество последовательных дней без измерений
	MissedCheckinDays int

	// Словарь значимых симптомов: нормализованный симптом -> severity
	NotableSymptoms map[string]models.AlertSeverity
}

// DefaultThresholds возвращает пороги по умолчанию (в терминах исходной
// системы: высокая полоса ~140/90, умеренная ~130/85)
func DefaultThresholds() Thresholds {
	return Thresholds{
		SystolicHigh:      140,
		DiastolicHigh:     90,
		SystolicModerate:  130,
		DiastolicModerate: 85,
		HeartRateCeiling:  90,
		OxygenFloor:       97,
		WeightLossKg:      0.5,
		MissedCheckinDays: 2,
		NotableSymptoms: map[string]models.AlertSeverity{
			"alteração visual": models.SeverityHigh,
			"sangramento":      models.SeverityHigh,
			"contrações":       models.SeverityHigh,
			"cefaleia":         models.SeverityMedium,
			"tontura":          models.SeverityMedium,
			"vômito":           models.SeverityMedium,
			"dor de cabeça":    models.SeverityMedium,
			"pressão alta":     models.SeverityMedium,
			"náuseas":          models.SeverityLow,
			"falta de ar":      models.SeverityLow,
			"febre":            models.SeverityMedium,
		},
	}
}

// Snapshot представляет срез данных пациентки для оценки правил
type Snapshot struct {
	Patient models.Patient
	// Измерения и отчёты в хронологическом порядке, уже за окно наблюдения
	Vitals  []models.VitalSign
	Reports []models.DailyReport
	Now     time.Time
}

// Classifier оценивает срез данных против набора правил
type Classifier struct {
	cfg Thresholds
}

// NewClassifier создает новый классификатор с заданными порогами
func NewClassifier(cfg Thresholds) *Classifier {
	return &Classifier{cfg: cfg}
}

// Evaluate применяет все правила независимо; из одного среза может
// сработать несколько. Все алерты создаются в статусе pending.
func (c *Classifier) Evaluate(snap Snapshot) []models.Alert {
	var out []models.Alert

	appendAlert := func(t models.AlertType, sev models.AlertSeverity, label, value string) {
		out = append(out, models.Alert{
			ID:          uuid.New().String(),
			PatientID:   snap.Patient.ID,
			PatientName: snap.Patient.Name,
			PatientIG:   snap.Patient.IGLabel(),
			Type:        t,
			Severity:    sev,
			Status:      models.AlertStatusPending,
			CreatedAt:   snap.Now,
			MetricLabel: label,
			MetricValue: value,
			Notes:       []models.AlertNote{},
		})
	}

	latest := latestVitals(snap.Vitals)

	// Давление вне диапазона: severity по полосе превышения
	if latest != nil {
		if sev, ok := c.pressureSeverity(latest.Systolic, latest.Diastolic); ok {
			// Контекст тренда: устойчивый значительный рост систолического
			// давления поднимает умеренную полосу до высокой severity
			if sev == models.SeverityMedium {
				trend := vitals.Classify(vitals.Series(snap.Vitals, vitals.MetricSystolic), false)
				if trend.Concerning && trend.Magnitude == vitals.MagnitudeSevere {
					sev = models.SeverityHigh
				}
			}
			appendAlert(models.AlertTypePressure, sev,
				"Pressão arterial",
				fmt.Sprintf("PA: %d/%d mmHg", latest.Systolic, latest.Diastolic))
		}

		// ЧСС выше потолка
		if latest.HeartRate >= c.cfg.HeartRateCeiling {
			appendAlert(models.AlertTypeHeartRate, models.SeverityMedium,
				"Frequência cardíaca",
				fmt.Sprintf("FC: %d bpm", latest.HeartRate))
		}

		// Сатурация ниже границы (инверсная шкала)
		if latest.OxygenSaturation < c.cfg.OxygenFloor {
			appendAlert(models.AlertTypeLowOxygen, models.SeverityHigh,
				"Oxigenação",
				fmt.Sprintf("SpO₂: %d%%", latest.OxygenSaturation))
		}
	}

	// Пропущенные измерения N дней подряд
	if days, missed := c.missedDays(snap); missed {
		appendAlert(models.AlertTypeIncompleteVitals, models.SeverityLow,
			"Campos ausentes",
			fmt.Sprintf("%d dias sem medição", days))
	}

	// Значимая потеря веса за окно
	if delta, lost := c.weightLoss(snap.Vitals); lost {
		appendAlert(models.AlertTypeWeightLoss, models.SeverityMedium,
			"Variação de peso",
			models.FormatKg(delta)+" / semana")
	}

	// Новый отчёт со значимыми симптомами
	if report := latestReport(snap.Reports); report != nil {
		if matched, sev := c.matchSymptoms(report.Symptoms); len(matched) > 0 {
			label := "Sintomas"
			if len(matched) == 1 {
				label = "Sintoma"
			}
			appendAlert(models.AlertTypeSymptomaticEntry, sev, label, strings.Join(matched, ", "))
		}

		// Самоотчёт об отёках
		if reportsEdema(report.Symptoms) {
			appendAlert(models.AlertTypeEdema, models.SeverityLow,
				"Sintoma", "Edema relatado")
		}
	}

	return out
}

func (c *Classifier) pressureSeverity(systolic, diastolic int) (models.AlertSeverity, bool) {
	if systolic >= c.cfg.SystolicHigh || diastolic >= c.cfg.DiastolicHigh {
		return models.SeverityHigh, true
	}
	if systolic >= c.cfg.SystolicModerate || diastolic >= c.cfg.DiastolicModerate {
		return models.SeverityMedium, true
	}
	return "", false
}

// matchSymptoms сопоставляет симптомы отчёта со словарём.
// Severity алерта — худшая среди совпавших; три и более совпадения
// поднимают её на одну ступень.
func (c *Classifier) matchSymptoms(symptoms []string) ([]string, models.AlertSeverity) {
	var matched []string
	worst := models.AlertSeverity("")

	for _, s := range symptoms {
		sev, ok := c.cfg.NotableSymptoms[normalizeSymptom(s)]
		if !ok {
			continue
		}
		matched = append(matched, s)
		if worst == "" || models.SeverityRank(sev) < models.SeverityRank(worst) {
			worst = sev
		}
	}

	if len(matched) == 0 {
		return nil, ""
	}
	if len(matched) >= 3 {
		worst = bumpSeverity(worst)
	}
	return matched, worst
}

func (c *Classifier) missedDays(snap Snapshot) (int, bool) {
	if c.cfg.MissedCheckinDays <= 0 {
		return 0, false
	}
	last := latestVitals(snap.Vitals)
	if last == nil {
		// Без единого измерения срок отсчитывать не от чего
		return 0, false
	}
	days := int(snap.Now.Sub(last.Date).Hours() / 24)
	if days >= c.cfg.MissedCheckinDays {
		return days, true
	}
	return 0, false
}

// weightLoss сравнивает первую и последнюю валидные точки веса в окне.
// Отсутствующие измерения пропускаются, не считаются нулём.
func (c *Classifier) weightLoss(history []models.VitalSign) (float64, bool) {
	var first, last *float64
	for i := range history {
		if history[i].Weight == nil {
			continue
		}
		if first == nil {
			first = history[i].Weight
		}
		last = history[i].Weight
	}
	if first == nil || last == nil || first == last {
		return 0, false
	}
	delta := *last - *first
	if delta <= -c.cfg.WeightLossKg {
		return delta, true
	}
	return 0, false
}

func bumpSeverity(s models.AlertSeverity) models.AlertSeverity {
	switch s {
	case models.SeverityLow:
		return models.SeverityMedium
	case models.SeverityMedium:
		return models.SeverityHigh
	}
	return s
}

func normalizeSymptom(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func reportsEdema(symptoms []string) bool {
	for _, s := range symptoms {
		n := normalizeSymptom(s)
		if strings.Contains(n, "edema") || strings.Contains(n, "inchaço") {
			return true
		}
	}
	return false
}

func latestVitals(history []models.VitalSign) *models.VitalSign {
	if len(history) == 0 {
		return nil
	}
	return &history[len(history)-1]
}

func latestReport(reports []models.DailyReport) *models.DailyReport {
	if len(reports) == 0 {
		return nil
	}
	return &reports[len(reports)-1]
}

// Sort упорядочивает алерты по каноническому контракту списков:
// pending раньше reviewed, внутри статуса — по severity (high первой),
// при равенстве — исходный порядок (стабильная сортировка).
func Sort(alerts []models.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Status != alerts[j].Status {
			return alerts[i].Status == models.AlertStatusPending
		}
		return models.SeverityRank(alerts[i].Severity) < models.SeverityRank(alerts[j].Severity)
	})
}

// PatientLevel возвращает уровень внимания пациентки: худшая severity
// среди её pending-алертов. Пациентка только с reviewed-алертами
// получает none — ревью снимает видимый уровень.
func PatientLevel(patientID string, alerts []models.Alert) models.AlertLevel {
	level := models.AlertLevelNone
	rank := 4
	for _, a := range alerts {
		if a.PatientID != patientID || a.Status != models.AlertStatusPending {
			continue
		}
		if r := models.SeverityRank(a.Severity); r < rank {
			rank = r
			level = models.AlertLevel(a.Severity)
		}
	}
	return level
}

// KPI вычисляет сводные показатели списка алертов
func KPI(alerts []models.Alert, now time.Time) models.AlertsKPI {
	var kpi models.AlertsKPI
	var pendingHours float64

	for _, a := range alerts {
		if a.Status != models.AlertStatusPending {
			continue
		}
		kpi.PendingTotal++
		if models.SameDay(a.CreatedAt, now) {
			kpi.PendingToday++
		}
		if a.Severity == models.SeverityHigh {
			kpi.CriticalTotal++
		}
		pendingHours += now.Sub(a.CreatedAt).Hours()
	}

	if kpi.PendingTotal > 0 {
		kpi.AvgHoursSinceAlert = int(pendingHours/float64(kpi.PendingTotal) + 0.5)
	}
	return kpi
}
