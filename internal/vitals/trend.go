package vitals

import (
	"math"
	"time"

	"github.com/Krimson/maternal-monitory/pkg/models"
)

// Direction представляет направление тренда
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// Magnitude представляет корзину величины изменения
type Magnitude string

const (
	MagnitudeStable   Magnitude = "stable"
	MagnitudeModerate Magnitude = "moderate"
	MagnitudeSevere   Magnitude = "severe"
)

// Пороговые значения корзин (% абсолютного изменения)
const (
	moderateThresholdPct = 3.0
	severeThresholdPct   = 10.0
)

// DefaultWindowDays — каноническое окно ретроспективы для трендов
const DefaultWindowDays = 7

// Metric идентифицирует метрику временного ряда
type Metric string

const (
	MetricSystolic  Metric = "systolic"
	MetricDiastolic Metric = "diastolic"
	MetricHeartRate Metric = "heart_rate"
	MetricOxygen    Metric = "oxygen_saturation"
	MetricWeight    Metric = "weight"
)

// Inverse сообщает, является ли снижение неблагоприятным направлением
// для метрики (например, сатурация и вес — в отличие от давления)
func (m Metric) Inverse() bool {
	return m == MetricOxygen || m == MetricWeight
}

// Label возвращает отображаемое название метрики
func (m Metric) Label() string {
	switch m {
	case MetricSystolic:
		return "pressão sistólica"
	case MetricDiastolic:
		return "pressão diastólica"
	case MetricHeartRate:
		return "frequência cardíaca"
	case MetricOxygen:
		return "oxigenação"
	case MetricWeight:
		return "peso"
	}
	return string(m)
}

// Trend представляет результат классификации временного ряда.
// Выход достаточен, чтобы потребитель выбрал семантический цвет,
// не выводя заново логику знака.
type Trend struct {
	Direction     Direction `json:"direction"`
	Magnitude     Magnitude `json:"magnitude"`
	PctChange     float64   `json:"pct_change"`
	First         float64   `json:"first"`
	Last          float64   `json:"last"`
	Concerning    bool      `json:"concerning"`
	Indeterminate bool      `json:"indeterminate"`
}

// PercentChange возвращает процентное изменение (to-from)/|from|*100.
// При from == 0 возвращает ровно 0: насыщающая политика вместо
// деления на ноль, это ожидаемое поведение, а не ошибка.
func PercentChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / math.Abs(from) * 100
}

// Classify классифицирует хронологически упорядоченный ряд значений.
// NaN-значения (пропущенные измерения) исключаются до выбора граничных
// точек; при менее чем двух валидных точках результат неопределённый
// (flat/stable), без ошибок и паник — эти значения попадают в клинический
// интерфейс, где падение хуже неопределённого показания.
func Classify(values []float64, inverse bool) Trend {
	valid := values[:0:0]
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			valid = append(valid, v)
		}
	}

	if len(valid) < 2 {
		return Trend{Direction: DirectionFlat, Magnitude: MagnitudeStable, Indeterminate: true}
	}

	first := valid[0]
	last := valid[len(valid)-1]
	pct := PercentChange(first, last)

	t := Trend{PctChange: pct, First: first, Last: last}

	switch {
	case pct > 0:
		t.Direction = DirectionUp
	case pct < 0:
		t.Direction = DirectionDown
	default:
		t.Direction = DirectionFlat
	}

	abs := math.Abs(pct)
	switch {
	case abs < moderateThresholdPct:
		t.Magnitude = MagnitudeStable
	case abs < severeThresholdPct:
		t.Magnitude = MagnitudeModerate
	default:
		t.Magnitude = MagnitudeSevere
	}

	// Stable никогда не считается concerning, независимо от знака
	if t.Magnitude != MagnitudeStable {
		if inverse {
			t.Concerning = pct < 0
		} else {
			t.Concerning = pct > 0
		}
	}

	return t
}

// Window возвращает измерения за последние days дней (включая сегодня),
// в хронологическом порядке. Вход предполагается упорядоченным по дате.
func Window(history []models.VitalSign, days int, now time.Time) []models.VitalSign {
	cutoff := now.AddDate(0, 0, -(days - 1)).Truncate(24 * time.Hour)
	out := make([]models.VitalSign, 0, len(history))
	for _, vs := range history {
		if !vs.Date.Before(cutoff) {
			out = append(out, vs)
		}
	}
	return out
}

// Series извлекает значения одной метрики из истории измерений.
// Отсутствующие опциональные поля становятся NaN, а не нулём:
// ноль исказил бы граничные точки тренда.
func Series(history []models.VitalSign, metric Metric) []float64 {
	out := make([]float64, 0, len(history))
	for _, vs := range history {
		switch metric {
		case MetricSystolic:
			out = append(out, float64(vs.Systolic))
		case MetricDiastolic:
			out = append(out, float64(vs.Diastolic))
		case MetricHeartRate:
			out = append(out, float64(vs.HeartRate))
		case MetricOxygen:
			out = append(out, float64(vs.OxygenSaturation))
		case MetricWeight:
			if vs.Weight == nil {
				out = append(out, math.NaN())
			} else {
				out = append(out, *vs.Weight)
			}
		}
	}
	return out
}

// ClassifyMetric строит и классифицирует ряд одной метрики за окно
func ClassifyMetric(history []models.VitalSign, metric Metric, days int, now time.Time) Trend {
	windowed := Window(history, days, now)
	return Classify(Series(windowed, metric), metric.Inverse())
}

// AllMetrics перечисляет метрики в порядке отображения карточек
var AllMetrics = []Metric{MetricSystolic, MetricDiastolic, MetricHeartRate, MetricOxygen, MetricWeight}
