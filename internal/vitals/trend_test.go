package vitals

import (
	"math"
	"testing"
	"time"

	"github.com/Krimson/maternal-monitory/pkg/models"
)

func TestPercentChange_ZeroFrom(t *testing.T) {
	// Насыщающая политика: from == 0 всегда даёт ровно 0
	for _, to := range []float64{0, 1, -1, 148, math.Pi} {
		if got := PercentChange(0, to); got != 0 {
			t.Errorf("PercentChange(0, %v) = %v, want 0", to, got)
		}
	}
}

func TestPercentChange_Sign(t *testing.T) {
	if got := PercentChange(100, 110); got != 10 {
		t.Errorf("Expected +10, got %v", got)
	}
	if got := PercentChange(100, 90); got != -10 {
		t.Errorf("Expected -10, got %v", got)
	}
	// Знаменатель берётся по модулю
	if got := PercentChange(-100, -90); got != 10 {
		t.Errorf("Expected +10 for negative base, got %v", got)
	}
}

func TestClassify_InsufficientData(t *testing.T) {
	cases := [][]float64{
		nil,
		{},
		{120},
		{math.NaN()},
		{math.NaN(), math.NaN()},
		{120, math.NaN()},
	}
	for _, values := range cases {
		trend := Classify(values, false)
		if !trend.Indeterminate {
			t.Errorf("Classify(%v) expected indeterminate, got %+v", values, trend)
		}
		if trend.Direction != DirectionFlat || trend.Magnitude != MagnitudeStable {
			t.Errorf("Classify(%v) expected flat/stable placeholder, got %+v", values, trend)
		}
		if trend.Concerning {
			t.Errorf("Classify(%v) indeterminate result must not be concerning", values)
		}
	}
}

func TestClassify_FiltersInvalidSamples(t *testing.T) {
	// NaN в середине и на краях исключается до выбора граничных точек
	values := []float64{math.NaN(), 100, math.NaN(), 110, math.NaN()}
	trend := Classify(values, false)
	if trend.Indeterminate {
		t.Fatalf("Expected determinate trend, got %+v", trend)
	}
	if trend.First != 100 || trend.Last != 110 {
		t.Errorf("Expected endpoints 100..110, got %v..%v", trend.First, trend.Last)
	}
	if trend.PctChange != 10 {
		t.Errorf("Expected +10%%, got %v", trend.PctChange)
	}
}

func TestClassify_SystolicRise(t *testing.T) {
	// Сценарий из дашборда: систолическое давление за 7 дней
	values := []float64{128, 132, 135, 138, 142, 145, 148}
	trend := Classify(values, false)

	if math.Abs(trend.PctChange-15.625) > 0.001 {
		t.Errorf("Expected pct ~15.625, got %v", trend.PctChange)
	}
	if trend.Magnitude != MagnitudeSevere {
		t.Errorf("Expected severe, got %s", trend.Magnitude)
	}
	if trend.Direction != DirectionUp {
		t.Errorf("Expected up, got %s", trend.Direction)
	}
	if !trend.Concerning {
		t.Error("Rising blood pressure must be concerning")
	}
}

func TestClassify_OxygenStableDip(t *testing.T) {
	// Снижение сатурации менее 3% остаётся stable и не concerning
	values := []float64{98, 98, 97, 97, 97, 97, 97}
	trend := Classify(values, true)

	if math.Abs(trend.PctChange-(-1.0204)) > 0.001 {
		t.Errorf("Expected pct ~-1.02, got %v", trend.PctChange)
	}
	if trend.Magnitude != MagnitudeStable {
		t.Errorf("Expected stable, got %s", trend.Magnitude)
	}
	if trend.Concerning {
		t.Error("Stable magnitude must never be concerning")
	}
}

func TestClassify_InverseSymmetry(t *testing.T) {
	// Инверсия шкалы сохраняет корзину величины и переворачивает
	// concerning ровно тогда, когда направление не flat
	cases := [][]float64{
		{128, 148},
		{148, 128},
		{100, 100},
		{100, 104},
		{100, 96},
		{90, 110},
	}
	for _, values := range cases {
		normal := Classify(values, false)
		inverse := Classify(values, true)

		if normal.Magnitude != inverse.Magnitude {
			t.Errorf("Classify(%v): magnitude differs under inverse: %s vs %s",
				values, normal.Magnitude, inverse.Magnitude)
		}
		if normal.Direction != inverse.Direction {
			t.Errorf("Classify(%v): direction must not depend on scale", values)
		}
		if normal.Direction == DirectionFlat || normal.Magnitude == MagnitudeStable {
			if normal.Concerning || inverse.Concerning {
				t.Errorf("Classify(%v): flat/stable must not be concerning", values)
			}
		} else if normal.Concerning == inverse.Concerning {
			t.Errorf("Classify(%v): concerning must flip under inverse scale", values)
		}
	}
}

func TestClassify_ModerateBucket(t *testing.T) {
	values := []float64{100, 105}
	trend := Classify(values, false)
	if trend.Magnitude != MagnitudeModerate {
		t.Errorf("Expected moderate for +5%%, got %s", trend.Magnitude)
	}
	if !trend.Concerning {
		t.Error("Moderate rise on normal scale must be concerning")
	}

	down := Classify([]float64{105, 100}, false)
	if down.Concerning {
		t.Error("Moderate drop on normal scale must not be concerning")
	}
}

func TestSeries_MissingWeightIsNaN(t *testing.T) {
	w := 71.2
	history := []models.VitalSign{
		{Systolic: 120, Diastolic: 80, HeartRate: 80, OxygenSaturation: 98, Weight: &w},
		{Systolic: 122, Diastolic: 81, HeartRate: 81, OxygenSaturation: 98},
	}
	series := Series(history, MetricWeight)
	if len(series) != 2 {
		t.Fatalf("Expected 2 points, got %d", len(series))
	}
	if series[0] != 71.2 {
		t.Errorf("Expected 71.2, got %v", series[0])
	}
	if !math.IsNaN(series[1]) {
		t.Errorf("Missing weight must be NaN, got %v", series[1])
	}
}

func TestWindow_ExcludesOldSamples(t *testing.T) {
	now := time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC)
	history := []models.VitalSign{
		{ID: "old", Date: now.AddDate(0, 0, -10)},
		{ID: "edge", Date: now.AddDate(0, 0, -6)},
		{ID: "new", Date: now},
	}
	windowed := Window(history, DefaultWindowDays, now)
	if len(windowed) != 2 {
		t.Fatalf("Expected 2 samples in window, got %d", len(windowed))
	}
	if windowed[0].ID != "edge" || windowed[1].ID != "new" {
		t.Errorf("Unexpected window contents: %v", windowed)
	}
}

func TestClassifyMetric_AllMetrics(t *testing.T) {
	now := time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC)
	w1, w2 := 71.2, 70.4
	history := []models.VitalSign{
		{Date: now.AddDate(0, 0, -6), Systolic: 128, Diastolic: 82, HeartRate: 78, OxygenSaturation: 98, Weight: &w1},
		{Date: now, Systolic: 148, Diastolic: 88, HeartRate: 85, OxygenSaturation: 97, Weight: &w2},
	}

	for _, m := range AllMetrics {
		trend := ClassifyMetric(history, m, DefaultWindowDays, now)
		if trend.Indeterminate {
			t.Errorf("metric %s: expected determinate trend with 2 samples", m)
		}
	}

	systolic := ClassifyMetric(history, MetricSystolic, DefaultWindowDays, now)
	if systolic.Magnitude != MagnitudeSevere || !systolic.Concerning {
		t.Errorf("systolic 128->148: expected severe concerning, got %+v", systolic)
	}

	// Измерение вне окна выпадает из тренда
	narrowed := ClassifyMetric(history, MetricSystolic, 3, now)
	if !narrowed.Indeterminate {
		t.Errorf("3-day window leaves one sample, expected indeterminate, got %+v", narrowed)
	}
}

func TestMetricInverse(t *testing.T) {
	if MetricSystolic.Inverse() || MetricDiastolic.Inverse() || MetricHeartRate.Inverse() {
		t.Error("Pressure and heart rate are not inverse-scale metrics")
	}
	if !MetricOxygen.Inverse() || !MetricWeight.Inverse() {
		t.Error("Oxygen saturation and weight are inverse-scale metrics")
	}
}
