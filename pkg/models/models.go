package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// AlertSeverity представляет уровень внимания алерта
type AlertSeverity string

const (
	SeverityHigh   AlertSeverity = "high"
	SeverityMedium AlertSeverity = "medium"
	SeverityLow    AlertSeverity = "low"
)

// SeverityRank возвращает числовой ранг для сортировки (high=0, medium=1, low=2)
func SeverityRank(s AlertSeverity) int {
	switch s {
	case SeverityHigh:
		return 0
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 2
	}
	return 3
}

// AlertStatus представляет статус жизненного цикла алерта.
// Единственный допустимый переход: pending -> reviewed.
type AlertStatus string

const (
	AlertStatusPending  AlertStatus = "pending"
	AlertStatusReviewed AlertStatus = "reviewed"
)

// AlertType представляет закрытый набор типов алертов.
// Значения совпадают с отображаемыми метками продукта (pt-BR).
type AlertType string

const (
	AlertTypePressure         AlertType = "PA fora do padrão"
	AlertTypeSymptomaticEntry AlertType = "Novo relato com sintomas"
	AlertTypeHeartRate        AlertType = "FC elevada"
	AlertTypeLowOxygen        AlertType = "SpO₂ abaixo do esperado"
	AlertTypeIncompleteVitals AlertType = "Sinais vitais incompletos"
	AlertTypeWeightLoss       AlertType = "Perda de peso"
	AlertTypeEdema            AlertType = "Edema relatado"
)

// AlertLevel представляет агрегированный уровень внимания пациентки:
// худшая severity среди её pending-алертов, либо none
type AlertLevel string

const (
	AlertLevelNone   AlertLevel = "none"
	AlertLevelLow    AlertLevel = "low"
	AlertLevelMedium AlertLevel = "medium"
	AlertLevelHigh   AlertLevel = "high"
)

// Mood представляет самочувствие из ежедневного отчёта
type Mood string

const (
	MoodHappy   Mood = "feliz"
	MoodNormal  Mood = "normal"
	MoodSad     Mood = "triste"
	MoodAnxious Mood = "ansioso"
)

// ReportPeriod представляет окно агрегации отчёта
type ReportPeriod string

const (
	Period7d  ReportPeriod = "7d"
	Period30d ReportPeriod = "30d"
	Period90d ReportPeriod = "90d"
)

// Days возвращает длину окна в календарных днях
func (p ReportPeriod) Days() int {
	switch p {
	case Period7d:
		return 7
	case Period30d:
		return 30
	case Period90d:
		return 90
	}
	return 30
}

// Label возвращает отображаемую метку периода
func (p ReportPeriod) Label() string {
	switch p {
	case Period7d:
		return "Últimos 7 dias"
	case Period30d:
		return "Últimos 30 dias"
	case Period90d:
		return "Últimos 90 dias"
	}
	return string(p)
}

// VitalSign представляет одно измерение витальных показателей.
// Записи append-only: после создания не изменяются и не удаляются.
type VitalSign struct {
	ID               string     `json:"id"`
	PatientID        string     `json:"patient_id"`
	Date             time.Time  `json:"date"`
	Systolic         int        `json:"systolic"`          // mmHg
	Diastolic        int        `json:"diastolic"`         // mmHg
	HeartRate        int        `json:"heart_rate"`        // bpm
	OxygenSaturation int        `json:"oxygen_saturation"` // %
	Weight           *float64   `json:"weight,omitempty"`  // kg, опционально
	Temperature      *float64   `json:"temperature,omitempty"`
	RecordedBy       string     `json:"recorded_by,omitempty"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
}

// DailyReport представляет ежедневный самоотчёт пациентки (append-only)
type DailyReport struct {
	ID          string    `json:"id"`
	PatientID   string    `json:"patient_id"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Mood        Mood      `json:"mood"`
	// Порядок симптомов сохраняется как в исходном отчёте
	Symptoms []string `json:"symptoms"`
}

// Patient представляет пациентку под наблюдением
type Patient struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name"`
	CPF                  string     `json:"cpf,omitempty"`
	Age                  int        `json:"age"`
	GestationalWeeks     *int       `json:"gestational_weeks,omitempty"`
	GestationalDays      *int       `json:"gestational_days,omitempty"`
	IsActive             bool       `json:"is_active"`
	DueDate              *time.Time `json:"due_date,omitempty"`
	Phone                string     `json:"phone,omitempty"`
	Address              string     `json:"address,omitempty"`
	BloodType            string     `json:"blood_type,omitempty"`
	FirstAppointmentDate *time.Time `json:"first_appointment_date,omitempty"`
	LastReportDate       *time.Time `json:"last_report_date,omitempty"`
}

// IGLabel форматирует гестационный возраст в виде "28s3d" (или "36s" при 0 дней)
func (p Patient) IGLabel() string {
	if p.GestationalWeeks == nil {
		return ""
	}
	if p.GestationalDays == nil || *p.GestationalDays == 0 {
		return fmt.Sprintf("%ds", *p.GestationalWeeks)
	}
	return fmt.Sprintf("%ds%dd", *p.GestationalWeeks, *p.GestationalDays)
}

// FirstName возвращает первое имя пациентки для текстов резюме
func (p Patient) FirstName() string {
	fields := strings.Fields(p.Name)
	if len(fields) == 0 {
		return p.Name
	}
	return fields[0]
}

// AlertNote представляет заметку врача к алерту (append-only)
type AlertNote struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
	AuthorName string    `json:"author_name"`
}

// Alert представляет одно заслуживающее внимания наблюдение.
// Status — единственное изменяемое поле.
type Alert struct {
	ID          string        `json:"id"`
	PatientID   string        `json:"patient_id"`
	PatientName string        `json:"patient_name"`
	PatientIG   string        `json:"patient_ig,omitempty"`
	Type        AlertType     `json:"type"`
	Severity    AlertSeverity `json:"severity"`
	Status      AlertStatus   `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	MetricLabel string        `json:"metric_label"`
	MetricValue string        `json:"metric_value"`
	Notes       []AlertNote   `json:"notes"`
}

// AlertsKPI представляет сводные показатели по алертам
type AlertsKPI struct {
	PendingToday       int `json:"pending_today"`
	PendingTotal       int `json:"pending_total"`
	CriticalTotal      int `json:"critical_total"`
	AvgHoursSinceAlert int `json:"avg_hours_since_alert"`
}

// KPIData представляет показатели дашборда врача
type KPIData struct {
	NewReportsToday int `json:"new_reports_today"`
	PendingAlerts   int `json:"pending_alerts"`
	ActivePatients  int `json:"active_patients"`
}

// DailyPoint представляет одну точку дневной серии отчёта
type DailyPoint struct {
	Date  string `json:"date"` // "dd/mm"
	Value int    `json:"value"`
}

// TypeCount представляет элемент гистограммы распределения типов алертов
type TypeCount struct {
	Type  AlertType `json:"type"`
	Count int       `json:"count"`
}

// PatientSummaryRow представляет строку сводной таблицы по пациентке
type PatientSummaryRow struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	IG          string     `json:"ig,omitempty"`
	ReportCount int        `json:"report_count"`
	AlertCount  int        `json:"alert_count"`
	LastRecord  *time.Time `json:"last_record,omitempty"`
	AlertLevel  AlertLevel `json:"alert_level"`
}

// ReportKPI представляет скалярные показатели периода
type ReportKPI struct {
	ActivePatients int `json:"active_patients"`
	TotalReports   int `json:"total_reports"`
	TotalAlerts    int `json:"total_alerts"`
	ReviewedPct    int `json:"reviewed_pct"`
}

// ReportData представляет агрегированный отчёт за период.
// Полностью воспроизводим из журналов событий для заданного момента времени.
type ReportData struct {
	Period             ReportPeriod        `json:"period"`
	KPI                ReportKPI           `json:"kpi"`
	ReportsPerDay      []DailyPoint        `json:"reports_per_day"`
	AlertsHighPerDay   []DailyPoint        `json:"alerts_high_per_day"`
	AlertsMediumPerDay []DailyPoint        `json:"alerts_medium_per_day"`
	AlertsLowPerDay    []DailyPoint        `json:"alerts_low_per_day"`
	AlertTypeDist      []TypeCount         `json:"alert_type_dist"`
	PatientSummary     []PatientSummaryRow `json:"patient_summary"`
}

// AssistantSummary представляет автоматически сгенерированное резюме.
// Disclaimer — неотъемлемая часть контракта данных, а не текст интерфейса.
type AssistantSummary struct {
	PatientID       string    `json:"patient_id"`
	GeneratedAt     time.Time `json:"generated_at"`
	SummaryText     string    `json:"summary_text"`
	ChangesDetected []string  `json:"changes_detected"`
	DataPoints      int       `json:"data_points"`
	Disclaimer      string    `json:"disclaimer"`
}

// Ошибки
var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrAlertNotFound   = errors.New("alert not found")
	ErrReviewFailed    = errors.New("review action failed")
)

// FormatPct форматирует процентную вариацию в стиле продукта: "+15,6%"
func FormatPct(pct float64) string {
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	return sign + strings.Replace(fmt.Sprintf("%.1f", pct), ".", ",", 1) + "%"
}

// FormatKg форматирует вариацию веса: "−0,8 kg" (минус типографский, как в продукте)
func FormatKg(delta float64) string {
	s := strings.Replace(fmt.Sprintf("%.1f", delta), ".", ",", 1)
	if delta < 0 {
		s = "−" + strings.TrimPrefix(s, "-")
	} else if delta > 0 {
		s = "+" + s
	}
	return s + " kg"
}

// RelativeDate возвращает "Hoje", "Ontem", "N dias atrás" или дату "dd/mm/yyyy"
func RelativeDate(t, now time.Time) string {
	days := int(now.Sub(t).Hours() / 24)
	switch {
	case days <= 0:
		return "Hoje"
	case days == 1:
		return "Ontem"
	case days < 7:
		return fmt.Sprintf("%d dias atrás", days)
	}
	return t.Format("02/01/2006")
}

// SameDay сообщает, приходятся ли два момента на один календарный день
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
