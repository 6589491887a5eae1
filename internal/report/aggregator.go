package report

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Krimson/maternal-monitory/internal/alerts"
	"github.com/Krimson/maternal-monitory/pkg/models"
)

// Placeholder для отсутствующих значений в таблицах и CSV
const Placeholder = "—"

// CSVHeader — фиксированный порядок колонок экспорта
var CSVHeader = []string{"Paciente", "IG", "Relatos", "Alertas", "Nível de atenção", "Último registro"}

// Build агрегирует журналы событий за период в отчёт: KPI, дневные
// серии, гистограмму типов и сводную таблицу по пациенткам.
// Отчёт — чистая функция входа и момента времени.
func Build(period models.ReportPeriod, patients []models.Patient, reports []models.DailyReport, allAlerts []models.Alert, now time.Time) models.ReportData {
	days := period.Days()
	start := dayStart(now).AddDate(0, 0, -(days - 1))

	// Ровно одна точка на каждый календарный день периода, без пропусков
	mkSeries := func() []models.DailyPoint {
		out := make([]models.DailyPoint, days)
		for i := 0; i < days; i++ {
			out[i] = models.DailyPoint{Date: start.AddDate(0, 0, i).Format("02/01")}
		}
		return out
	}

	reportsPerDay := mkSeries()
	highPerDay := mkSeries()
	mediumPerDay := mkSeries()
	lowPerDay := mkSeries()

	dayIndex := func(t time.Time) (int, bool) {
		idx := int(dayStart(t).Sub(start).Hours() / 24)
		if idx < 0 || idx >= days {
			return 0, false
		}
		return idx, true
	}

	totalReports := 0
	reportCountByPatient := map[string]int{}
	lastRecordByPatient := map[string]time.Time{}

	for _, r := range reports {
		idx, ok := dayIndex(r.Date)
		if !ok {
			continue
		}
		reportsPerDay[idx].Value++
		totalReports++
		reportCountByPatient[r.PatientID]++
		if r.Date.After(lastRecordByPatient[r.PatientID]) {
			lastRecordByPatient[r.PatientID] = r.Date
		}
	}

	totalAlerts := 0
	reviewedAlerts := 0
	alertCountByPatient := map[string]int{}
	typeCounts := map[models.AlertType]int{}
	var typeOrder []models.AlertType

	for _, a := range allAlerts {
		idx, ok := dayIndex(a.CreatedAt)
		if !ok {
			continue
		}
		totalAlerts++
		if a.Status == models.AlertStatusReviewed {
			reviewedAlerts++
		}
		switch a.Severity {
		case models.SeverityHigh:
			highPerDay[idx].Value++
		case models.SeverityMedium:
			mediumPerDay[idx].Value++
		case models.SeverityLow:
			lowPerDay[idx].Value++
		}
		if _, seen := typeCounts[a.Type]; !seen {
			typeOrder = append(typeOrder, a.Type)
		}
		typeCounts[a.Type]++
		alertCountByPatient[a.PatientID]++
		if a.CreatedAt.After(lastRecordByPatient[a.PatientID]) {
			lastRecordByPatient[a.PatientID] = a.CreatedAt
		}
	}

	// Гистограмма: по убыванию количества, при равенстве — порядок
	// первого появления типа
	dist := make([]models.TypeCount, 0, len(typeOrder))
	for _, t := range typeOrder {
		dist = append(dist, models.TypeCount{Type: t, Count: typeCounts[t]})
	}
	sort.SliceStable(dist, func(i, j int) bool {
		return dist[i].Count > dist[j].Count
	})

	activePatients := 0
	rows := make([]models.PatientSummaryRow, 0, len(patients))
	for _, p := range patients {
		if p.IsActive {
			activePatients++
		}
		row := models.PatientSummaryRow{
			ID:          p.ID,
			Name:        p.Name,
			IG:          p.IGLabel(),
			ReportCount: reportCountByPatient[p.ID],
			AlertCount:  alertCountByPatient[p.ID],
			// Уровень — по всем текущим pending-алертам, не только за период
			AlertLevel: alerts.PatientLevel(p.ID, allAlerts),
		}
		if last, ok := lastRecordByPatient[p.ID]; ok {
			row.LastRecord = &last
		}
		rows = append(rows, row)
	}

	return models.ReportData{
		Period: period,
		KPI: models.ReportKPI{
			ActivePatients: activePatients,
			TotalReports:   totalReports,
			TotalAlerts:    totalAlerts,
			ReviewedPct:    reviewedPct(reviewedAlerts, totalAlerts),
		},
		ReportsPerDay:      reportsPerDay,
		AlertsHighPerDay:   highPerDay,
		AlertsMediumPerDay: mediumPerDay,
		AlertsLowPerDay:    lowPerDay,
		AlertTypeDist:      dist,
		PatientSummary:     rows,
	}
}

// reviewedPct округляет долю ревью; при нуле алертов возвращает 0,
// а не ошибку деления
func reviewedPct(reviewed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(reviewed) / float64(total)))
}

// Digest собирает детерминированную текстовую сводку отчёта для
// копирования в буфер обмена. Для одного и того же ReportData и момента
// времени строка воспроизводится побайтно.
func Digest(data models.ReportData, now time.Time) string {
	parts := []string{
		"Período: " + data.Period.Label(),
		fmt.Sprintf("Pacientes ativos: %d", data.KPI.ActivePatients),
		fmt.Sprintf("Total de relatos: %d", data.KPI.TotalReports),
		fmt.Sprintf("Total de alertas: %d", data.KPI.TotalAlerts),
		fmt.Sprintf("Alertas revisados: %d%%", data.KPI.ReviewedPct),
		"Gerado em: " + now.Format("02/01/2006 15:04"),
	}
	return strings.Join(parts, " | ")
}

// CSVRows строит строки экспорта сводной таблицы, включая заголовок.
// Порядок колонок фиксирован контрактом.
func CSVRows(data models.ReportData, now time.Time) [][]string {
	rows := make([][]string, 0, len(data.PatientSummary)+1)
	rows = append(rows, CSVHeader)

	for _, p := range data.PatientSummary {
		ig := p.IG
		if ig == "" {
			ig = Placeholder
		}
		last := Placeholder
		if p.LastRecord != nil {
			last = models.RelativeDate(*p.LastRecord, now)
		}
		rows = append(rows, []string{
			p.Name,
			ig,
			strconv.Itoa(p.ReportCount),
			strconv.Itoa(p.AlertCount),
			string(p.AlertLevel),
			last,
		})
	}
	return rows
}

// EncodeCSV сериализует строки в CSV-документ с CRLF и BOM для
// совместимости с Excel/pt-BR (как в исходном экспорте)
func EncodeCSV(rows [][]string) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		escaped := make([]string, 0, len(row))
		for _, field := range row {
			escaped = append(escaped, EscapeCSVField(field))
		}
		lines = append(lines, strings.Join(escaped, ","))
	}
	return "\uFEFF" + strings.Join(lines, "\r\n")
}

// EscapeCSVField экранирует поле по стандартным правилам CSV:
// поля с запятой, кавычкой или переводом строки оборачиваются в
// кавычки, внутренние кавычки удваиваются
func EscapeCSVField(s string) string {
	if strings.ContainsAny(s, ",\"\n") {
		return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
	}
	return s
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
