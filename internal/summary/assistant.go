package summary

import (
	"fmt"
	"strings"
	"time"

	"github.com/Krimson/maternal-monitory/internal/vitals"
	"github.com/Krimson/maternal-monitory/pkg/models"
)

// Disclaimer — фиксированная часть контракта данных резюме.
// Потребитель обязан иметь возможность отобразить её вместе с текстом.
const Disclaimer = "Resumo gerado automaticamente a partir dos dados registrados. " +
	"Não substitui avaliação clínica nem constitui diagnóstico."

// WindowDays — окно ретроспективы резюме
const WindowDays = 7

// trackedMetric описывает метрику, участвующую в нарративе
type trackedMetric struct {
	metric vitals.Metric
	unit   string
}

var trackedMetrics = []trackedMetric{
	{vitals.MetricSystolic, "mmHg"},
	{vitals.MetricDiastolic, "mmHg"},
	{vitals.MetricHeartRate, "bpm"},
	{vitals.MetricOxygen, "%"},
}

// Build формирует детерминированное резюме окна последних 7 дней:
// нарратив и список обнаруженных изменений. Для одного и того же входа
// вывод побайтно одинаков; момент генерации — отдельное поле, в текст
// не входит.
func Build(patient models.Patient, history []models.VitalSign, reports []models.DailyReport, now time.Time) models.AssistantSummary {
	windowVitals := vitals.Window(history, WindowDays, now)
	windowReports := reportsWindow(reports, WindowDays, now)

	var sentences []string
	var changes []string

	sentences = append(sentences, fmt.Sprintf(
		"Nos últimos %d dias, %s registrou %d %s.",
		WindowDays, patient.FirstName(), len(windowReports), plural(len(windowReports), "relato", "relatos")))

	// Тренды метрик: в нарратив и в изменения попадают только
	// moderate/severe вариации (§4.1 — корзины величины)
	for _, tm := range trackedMetrics {
		trend := vitals.Classify(vitals.Series(windowVitals, tm.metric), tm.metric.Inverse())
		if trend.Indeterminate || trend.Magnitude == vitals.MagnitudeStable {
			continue
		}

		if tm.metric == vitals.MetricOxygen {
			sentences = append(sentences, fmt.Sprintf(
				"Oxigenação variou de %.0f%% para %.0f%% (%s).",
				trend.First, trend.Last, models.FormatPct(trend.PctChange)))
			changes = append(changes, fmt.Sprintf(
				"Oxigenação variou: %.0f%% → %.0f%%", trend.First, trend.Last))
			continue
		}

		sentences = append(sentences, fmt.Sprintf(
			"A %s apresentou variação de %s: de %.0f para %.0f %s.",
			tm.metric.Label(), models.FormatPct(trend.PctChange), trend.First, trend.Last, tm.unit))
		changes = append(changes, fmt.Sprintf(
			"Variação de %s na %s nos últimos %d dias",
			models.FormatPct(trend.PctChange), tm.metric.Label(), WindowDays))
	}

	// Вес: дельта в kg, не в процентах
	if delta, ok := weightDelta(windowVitals); ok {
		sentences = append(sentences, fmt.Sprintf(
			"Peso apresentou variação de %s na semana.", models.FormatKg(delta)))
		changes = append(changes, fmt.Sprintf(
			"Variação de %s no peso nesta semana", models.FormatKg(delta)))
	}

	// Повторяющиеся симптомы: учитываются серии из двух и более
	// последовательных отчётов
	for _, rep := range repeatedSymptoms(windowReports) {
		sentences = append(sentences, fmt.Sprintf(
			"%s em %d registros consecutivos.", rep.symptom, rep.run))
		changes = append(changes, fmt.Sprintf(
			"%s relatado em %d registros consecutivos", rep.symptom, rep.run))
	}

	if len(changes) == 0 {
		sentences = append(sentences, "Nenhuma mudança significativa detectada.")
	}

	if changes == nil {
		changes = []string{}
	}

	return models.AssistantSummary{
		PatientID:       patient.ID,
		GeneratedAt:     now,
		SummaryText:     strings.Join(sentences, " "),
		ChangesDetected: changes,
		DataPoints:      len(windowReports),
		Disclaimer:      Disclaimer,
	}
}

func plural(n int, singular, pluralForm string) string {
	if n == 1 {
		return singular
	}
	return pluralForm
}

func reportsWindow(reports []models.DailyReport, days int, now time.Time) []models.DailyReport {
	cutoff := now.AddDate(0, 0, -(days - 1)).Truncate(24 * time.Hour)
	out := make([]models.DailyReport, 0, len(reports))
	for _, r := range reports {
		if !r.Date.Before(cutoff) {
			out = append(out, r)
		}
	}
	return out
}

// weightDelta сравнивает первую и последнюю валидные точки веса
func weightDelta(history []models.VitalSign) (float64, bool) {
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
	if first == nil || first == last {
		return 0, false
	}
	delta := *last - *first
	// Вариации меньше полукилограмма за окно не считаются изменением
	if delta > -0.5 && delta < 0.5 {
		return 0, false
	}
	return delta, true
}

type symptomRun struct {
	symptom string
	run     int
}

// repeatedSymptoms находит симптомы, встречающиеся в двух и более
// последовательных отчётах. Отчёты ожидаются в хронологическом порядке;
// результат упорядочен по первому появлению симптома — детерминизм
// важнее алфавита.
func repeatedSymptoms(reports []models.DailyReport) []symptomRun {
	type state struct {
		current int
		best    int
	}
	order := []string{}
	states := map[string]*state{}

	for _, r := range reports {
		seen := map[string]bool{}
		for _, s := range r.Symptoms {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			st, ok := states[key]
			if !ok {
				st = &state{}
				states[key] = st
				order = append(order, s)
			}
			st.current++
			if st.current > st.best {
				st.best = st.current
			}
		}
		// Симптомы, не упомянутые в этом отчёте, прерывают серию
		for key, st := range states {
			if !seen[key] {
				st.current = 0
			}
		}
	}

	var out []symptomRun
	for _, original := range order {
		st := states[strings.ToLower(strings.TrimSpace(original))]
		if st.best >= 2 {
			out = append(out, symptomRun{symptom: original, run: st.best})
		}
	}
	return out
}
