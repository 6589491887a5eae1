package alerts

import (
	"testing"
	"time"

	"github.com/Krimson/maternal-monitory/pkg/models"
)

var testNow = time.Date(2026, 2, 25, 12, 0, 0, 0, time.UTC)

func snapshotWithVitals(vs ...models.VitalSign) Snapshot {
	return Snapshot{
		Patient: models.Patient{ID: "p1", Name: "Maria da Silva Santos"},
		Vitals:  vs,
		Now:     testNow,
	}
}

func findAlert(alerts []models.Alert, t models.AlertType) *models.Alert {
	for i := range alerts {
		if alerts[i].Type == t {
			return &alerts[i]
		}
	}
	return nil
}

func TestEvaluate_PressureBands(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	cases := []struct {
		systolic, diastolic int
		want                models.AlertSeverity
		fires               bool
	}{
		{148, 95, models.SeverityHigh, true},
		{141, 80, models.SeverityHigh, true},
		{120, 92, models.SeverityHigh, true},
		{132, 88, models.SeverityMedium, true},
		{128, 86, models.SeverityMedium, true},
		{118, 76, "", false},
	}

	for _, tc := range cases {
		snap := snapshotWithVitals(models.VitalSign{
			Date: testNow, Systolic: tc.systolic, Diastolic: tc.diastolic,
			HeartRate: 80, OxygenSaturation: 98,
		})
		alert := findAlert(c.Evaluate(snap), models.AlertTypePressure)
		if !tc.fires {
			if alert != nil {
				t.Errorf("PA %d/%d: unexpected alert %+v", tc.systolic, tc.diastolic, alert)
			}
			continue
		}
		if alert == nil {
			t.Errorf("PA %d/%d: expected pressure alert", tc.systolic, tc.diastolic)
			continue
		}
		if alert.Severity != tc.want {
			t.Errorf("PA %d/%d: expected %s, got %s", tc.systolic, tc.diastolic, tc.want, alert.Severity)
		}
		if alert.Status != models.AlertStatusPending {
			t.Errorf("New alerts must be pending, got %s", alert.Status)
		}
	}
}

func TestEvaluate_PressureTrendBump(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	// Умеренная полоса, но систолическое давление выросло более чем на
	// 10% за окно: severity поднимается до high
	snap := snapshotWithVitals(
		models.VitalSign{Date: testNow.AddDate(0, 0, -6), Systolic: 118, Diastolic: 78, HeartRate: 80, OxygenSaturation: 98},
		models.VitalSign{Date: testNow.AddDate(0, 0, -3), Systolic: 126, Diastolic: 82, HeartRate: 80, OxygenSaturation: 98},
		models.VitalSign{Date: testNow, Systolic: 132, Diastolic: 84, HeartRate: 80, OxygenSaturation: 98},
	)
	alert := findAlert(c.Evaluate(snap), models.AlertTypePressure)
	if alert == nil {
		t.Fatal("Expected pressure alert")
	}
	if alert.Severity != models.SeverityHigh {
		t.Errorf("Severe rising trend must bump moderate band to high, got %s", alert.Severity)
	}
}

func TestEvaluate_HeartRateAndOxygen(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	snap := snapshotWithVitals(models.VitalSign{
		Date: testNow, Systolic: 120, Diastolic: 80, HeartRate: 96, OxygenSaturation: 96,
	})
	alerts := c.Evaluate(snap)

	hr := findAlert(alerts, models.AlertTypeHeartRate)
	if hr == nil || hr.Severity != models.SeverityMedium {
		t.Errorf("Expected medium heart-rate alert, got %+v", hr)
	}
	if hr != nil && hr.MetricValue != "FC: 96 bpm" {
		t.Errorf("Unexpected metric value: %s", hr.MetricValue)
	}

	ox := findAlert(alerts, models.AlertTypeLowOxygen)
	if ox == nil || ox.Severity != models.SeverityHigh {
		t.Errorf("Expected high low-oxygen alert, got %+v", ox)
	}
}

func TestEvaluate_MissedCheckins(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	snap := snapshotWithVitals(models.VitalSign{
		Date: testNow.AddDate(0, 0, -2), Systolic: 112, Diastolic: 72, HeartRate: 78, OxygenSaturation: 99,
	})
	alert := findAlert(c.Evaluate(snap), models.AlertTypeIncompleteVitals)
	if alert == nil {
		t.Fatal("Expected incomplete-vitals alert after 2 missed days")
	}
	if alert.Severity != models.SeverityLow {
		t.Errorf("Expected low severity, got %s", alert.Severity)
	}
	if alert.MetricValue != "2 dias sem medição" {
		t.Errorf("Unexpected metric value: %s", alert.MetricValue)
	}

	// Свежие измерения не считаются пропуском
	fresh := snapshotWithVitals(models.VitalSign{
		Date: testNow.Add(-20 * time.Hour), Systolic: 112, Diastolic: 72, HeartRate: 78, OxygenSaturation: 99,
	})
	if a := findAlert(c.Evaluate(fresh), models.AlertTypeIncompleteVitals); a != nil {
		t.Errorf("Unexpected missed-checkin alert: %+v", a)
	}
}

func TestEvaluate_WeightLoss(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	w := func(v float64) *float64 { return &v }
	snap := snapshotWithVitals(
		models.VitalSign{Date: testNow.AddDate(0, 0, -6), Systolic: 116, Diastolic: 74, HeartRate: 82, OxygenSaturation: 99, Weight: w(64.2)},
		models.VitalSign{Date: testNow.AddDate(0, 0, -3), Systolic: 115, Diastolic: 72, HeartRate: 82, OxygenSaturation: 98},
		models.VitalSign{Date: testNow, Systolic: 116, Diastolic: 74, HeartRate: 82, OxygenSaturation: 98, Weight: w(63.4)},
	)
	alert := findAlert(c.Evaluate(snap), models.AlertTypeWeightLoss)
	if alert == nil {
		t.Fatal("Expected weight-loss alert for -0.8 kg")
	}
	if alert.Severity != models.SeverityMedium {
		t.Errorf("Expected medium severity, got %s", alert.Severity)
	}
	if alert.MetricValue != "−0,8 kg / semana" {
		t.Errorf("Unexpected metric value: %q", alert.MetricValue)
	}
}

func TestEvaluate_Symptoms(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	snap := snapshotWithVitals()
	snap.Reports = []models.DailyReport{
		{PatientID: "p1", Date: testNow, Symptoms: []string{"Cefaleia", "Tontura"}, Mood: models.MoodAnxious},
	}
	alert := findAlert(c.Evaluate(snap), models.AlertTypeSymptomaticEntry)
	if alert == nil {
		t.Fatal("Expected symptomatic-report alert")
	}
	if alert.Severity != models.SeverityMedium {
		t.Errorf("Two medium symptoms: expected medium, got %s", alert.Severity)
	}
	if alert.MetricValue != "Cefaleia, Tontura" {
		t.Errorf("Matched symptoms must preserve authored form: %q", alert.MetricValue)
	}

	// Высокий симптом даёт high сразу
	snap.Reports = []models.DailyReport{
		{PatientID: "p1", Date: testNow, Symptoms: []string{"Alteração visual"}},
	}
	if a := findAlert(c.Evaluate(snap), models.AlertTypeSymptomaticEntry); a == nil || a.Severity != models.SeverityHigh {
		t.Errorf("Expected high severity for visual disturbance, got %+v", a)
	}

	// Три и более совпадений поднимают severity на ступень
	snap.Reports = []models.DailyReport{
		{PatientID: "p1", Date: testNow, Symptoms: []string{"Náuseas", "Falta de ar", "Cefaleia"}},
	}
	if a := findAlert(c.Evaluate(snap), models.AlertTypeSymptomaticEntry); a == nil || a.Severity != models.SeverityHigh {
		t.Errorf("Expected bumped high severity for 3 matches, got %+v", a)
	}

	// Незнакомые симптомы не создают алерт
	snap.Reports = []models.DailyReport{
		{PatientID: "p1", Date: testNow, Symptoms: []string{"azia", "gases"}},
	}
	if a := findAlert(c.Evaluate(snap), models.AlertTypeSymptomaticEntry); a != nil {
		t.Errorf("Unmatched symptoms must not fire: %+v", a)
	}
}

func TestEvaluate_Edema(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	snap := snapshotWithVitals()
	snap.Reports = []models.DailyReport{
		{PatientID: "p1", Date: testNow, Symptoms: []string{"Edema", "Cansaço"}},
	}
	alert := findAlert(c.Evaluate(snap), models.AlertTypeEdema)
	if alert == nil {
		t.Fatal("Expected edema alert")
	}
	if alert.Severity != models.SeverityLow {
		t.Errorf("Expected low severity, got %s", alert.Severity)
	}
}

func TestEvaluate_MultipleRulesFire(t *testing.T) {
	c := NewClassifier(DefaultThresholds())

	snap := snapshotWithVitals(models.VitalSign{
		Date: testNow, Systolic: 155, Diastolic: 100, HeartRate: 96, OxygenSaturation: 96,
	})
	snap.Reports = []models.DailyReport{
		{PatientID: "p1", Date: testNow, Symptoms: []string{"Alteração visual", "Edema", "Cefaleia"}},
	}
	alerts := c.Evaluate(snap)
	for _, typ := range []models.AlertType{
		models.AlertTypePressure,
		models.AlertTypeHeartRate,
		models.AlertTypeLowOxygen,
		models.AlertTypeSymptomaticEntry,
		models.AlertTypeEdema,
	} {
		if findAlert(alerts, typ) == nil {
			t.Errorf("Expected %q to fire", typ)
		}
	}
}

func TestSort_Contract(t *testing.T) {
	alerts := []models.Alert{
		{ID: "a", Status: models.AlertStatusReviewed, Severity: models.SeverityLow},
		{ID: "b", Status: models.AlertStatusPending, Severity: models.SeverityMedium},
		{ID: "c", Status: models.AlertStatusPending, Severity: models.SeverityHigh},
	}
	Sort(alerts)

	want := []string{"c", "b", "a"}
	for i, id := range want {
		if alerts[i].ID != id {
			t.Fatalf("Position %d: expected %s, got %s", i, id, alerts[i].ID)
		}
	}
}

func TestSort_StableOnTies(t *testing.T) {
	// Одинаковый статус и severity: исходный порядок сохраняется
	alerts := []models.Alert{
		{ID: "first", Status: models.AlertStatusPending, Severity: models.SeverityHigh},
		{ID: "second", Status: models.AlertStatusPending, Severity: models.SeverityHigh},
		{ID: "third", Status: models.AlertStatusPending, Severity: models.SeverityHigh},
		{ID: "reviewed-1", Status: models.AlertStatusReviewed, Severity: models.SeverityLow},
		{ID: "reviewed-2", Status: models.AlertStatusReviewed, Severity: models.SeverityLow},
	}
	Sort(alerts)

	want := []string{"first", "second", "third", "reviewed-1", "reviewed-2"}
	for i, id := range want {
		if alerts[i].ID != id {
			t.Fatalf("Tie order broken at %d: expected %s, got %s", i, id, alerts[i].ID)
		}
	}
}

func TestPatientLevel(t *testing.T) {
	// Reviewed-алерты не влияют на уровень
	reviewedOnly := []models.Alert{
		{PatientID: "p1", Severity: models.SeverityHigh, Status: models.AlertStatusReviewed},
	}
	if got := PatientLevel("p1", reviewedOnly); got != models.AlertLevelNone {
		t.Errorf("Reviewed-only patient must be none, got %s", got)
	}

	pending := []models.Alert{
		{PatientID: "p1", Severity: models.SeverityMedium, Status: models.AlertStatusPending},
		{PatientID: "p1", Severity: models.SeverityHigh, Status: models.AlertStatusPending},
	}
	if got := PatientLevel("p1", pending); got != models.AlertLevelHigh {
		t.Errorf("Expected high, got %s", got)
	}

	// Чужие алерты не учитываются
	if got := PatientLevel("p2", pending); got != models.AlertLevelNone {
		t.Errorf("Expected none for other patient, got %s", got)
	}
}

func TestKPI(t *testing.T) {
	alerts := []models.Alert{
		{Status: models.AlertStatusPending, Severity: models.SeverityHigh, CreatedAt: testNow.Add(-2 * time.Hour)},
		{Status: models.AlertStatusPending, Severity: models.SeverityLow, CreatedAt: testNow.Add(-6 * time.Hour)},
		{Status: models.AlertStatusPending, Severity: models.SeverityHigh, CreatedAt: testNow.AddDate(0, 0, -2)},
		{Status: models.AlertStatusReviewed, Severity: models.SeverityHigh, CreatedAt: testNow.Add(-1 * time.Hour)},
	}
	kpi := KPI(alerts, testNow)

	if kpi.PendingTotal != 3 {
		t.Errorf("PendingTotal: expected 3, got %d", kpi.PendingTotal)
	}
	if kpi.PendingToday != 2 {
		t.Errorf("PendingToday: expected 2, got %d", kpi.PendingToday)
	}
	if kpi.CriticalTotal != 2 {
		t.Errorf("CriticalTotal: expected 2 (pending high only), got %d", kpi.CriticalTotal)
	}
	// (2 + 6 + 48) / 3 ≈ 18.7 -> 19
	if kpi.AvgHoursSinceAlert != 19 {
		t.Errorf("AvgHoursSinceAlert: expected 19, got %d", kpi.AvgHoursSinceAlert)
	}
}
