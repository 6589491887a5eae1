package summary

import (
	"strings"
	"testing"
	"time"

	"github.com/Krimson/maternal-monitory/pkg/models"
)

var testNow = time.Date(2026, 2, 25, 9, 0, 0, 0, time.UTC)

func patientMaria() models.Patient {
	weeks, days := 28, 3
	return models.Patient{
		ID:               "p1",
		Name:             "Maria da Silva Santos",
		GestationalWeeks: &weeks,
		GestationalDays:  &days,
		IsActive:         true,
	}
}

func risingVitals() []models.VitalSign {
	systolic := []int{128, 132, 135, 138, 142, 145, 148}
	diastolic := []int{82, 84, 87, 88, 90, 92, 95}
	out := make([]models.VitalSign, 0, len(systolic))
	for i := range systolic {
		out = append(out, models.VitalSign{
			PatientID:        "p1",
			Date:             testNow.AddDate(0, 0, -(len(systolic) - 1 - i)),
			Systolic:         systolic[i],
			Diastolic:        diastolic[i],
			HeartRate:        85,
			OxygenSaturation: 97,
		})
	}
	return out
}

func TestBuild_Deterministic(t *testing.T) {
	patient := patientMaria()
	history := risingVitals()
	reports := []models.DailyReport{
		{PatientID: "p1", Date: testNow.AddDate(0, 0, -1), Symptoms: []string{"Cefaleia"}},
		{PatientID: "p1", Date: testNow, Symptoms: []string{"Cefaleia", "Tontura"}},
	}

	a := Build(patient, history, reports, testNow)
	b := Build(patient, history, reports, testNow)

	if a.SummaryText != b.SummaryText {
		t.Error("Summary text must be byte-identical for identical input")
	}
	if len(a.ChangesDetected) != len(b.ChangesDetected) {
		t.Fatal("Changes list must be deterministic")
	}
	for i := range a.ChangesDetected {
		if a.ChangesDetected[i] != b.ChangesDetected[i] {
			t.Errorf("Change %d differs: %q vs %q", i, a.ChangesDetected[i], b.ChangesDetected[i])
		}
	}
}

func TestBuild_DisclaimerAlwaysPresent(t *testing.T) {
	s := Build(patientMaria(), nil, nil, testNow)
	if s.Disclaimer != Disclaimer {
		t.Error("Disclaimer is part of the data contract and must always be set")
	}
	if !strings.Contains(s.Disclaimer, "Não substitui avaliação clínica") {
		t.Error("Disclaimer must state the non-diagnostic contract")
	}
}

func TestBuild_DetectsSevereSystolicRise(t *testing.T) {
	s := Build(patientMaria(), risingVitals(), nil, testNow)

	found := false
	for _, c := range s.ChangesDetected {
		if strings.Contains(c, "pressão sistólica") && strings.Contains(c, "+15,6%") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected systolic +15,6%% change entry, got %v", s.ChangesDetected)
	}
	if !strings.Contains(s.SummaryText, "de 128 para 148 mmHg") {
		t.Errorf("Narrative must carry endpoints, got %q", s.SummaryText)
	}
}

func TestBuild_StableVitalsNoChanges(t *testing.T) {
	history := []models.VitalSign{
		{PatientID: "p3", Date: testNow.AddDate(0, 0, -6), Systolic: 110, Diastolic: 70, HeartRate: 76, OxygenSaturation: 99},
		{PatientID: "p3", Date: testNow.AddDate(0, 0, -3), Systolic: 113, Diastolic: 73, HeartRate: 79, OxygenSaturation: 99},
		{PatientID: "p3", Date: testNow, Systolic: 112, Diastolic: 72, HeartRate: 78, OxygenSaturation: 99},
	}
	s := Build(models.Patient{ID: "p3", Name: "Paula Fernanda Costa"}, history, nil, testNow)

	if len(s.ChangesDetected) != 0 {
		t.Errorf("Stable window must detect no changes, got %v", s.ChangesDetected)
	}
	if !strings.Contains(s.SummaryText, "Nenhuma mudança significativa detectada.") {
		t.Errorf("Expected explicit no-changes sentence, got %q", s.SummaryText)
	}
}

func TestBuild_ConsecutiveSymptoms(t *testing.T) {
	reports := []models.DailyReport{
		{PatientID: "p6", Date: testNow.AddDate(0, 0, -2), Symptoms: []string{"Náuseas"}},
		{PatientID: "p6", Date: testNow.AddDate(0, 0, -1), Symptoms: []string{"Náuseas", "Vômito"}},
		{PatientID: "p6", Date: testNow, Symptoms: []string{"Cansaço"}},
	}
	s := Build(models.Patient{ID: "p6", Name: "Carla Regina Mendes"}, nil, reports, testNow)

	found := false
	for _, c := range s.ChangesDetected {
		if c == "Náuseas relatado em 2 registros consecutivos" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected consecutive-symptom change, got %v", s.ChangesDetected)
	}

	// Одиночное упоминание серию не образует
	for _, c := range s.ChangesDetected {
		if strings.Contains(c, "Vômito") || strings.Contains(c, "Cansaço") {
			t.Errorf("Single occurrences must not be reported: %v", s.ChangesDetected)
		}
	}
}

func TestBuild_SymptomRunBrokenByGap(t *testing.T) {
	reports := []models.DailyReport{
		{Date: testNow.AddDate(0, 0, -4), Symptoms: []string{"Cefaleia"}},
		{Date: testNow.AddDate(0, 0, -3), Symptoms: []string{}},
		{Date: testNow.AddDate(0, 0, -2), Symptoms: []string{"Cefaleia"}},
	}
	s := Build(models.Patient{ID: "p1", Name: "Maria"}, nil, reports, testNow)

	for _, c := range s.ChangesDetected {
		if strings.Contains(c, "Cefaleia") {
			t.Errorf("Non-consecutive mentions must not form a run: %v", s.ChangesDetected)
		}
	}
}

func TestBuild_WeightDelta(t *testing.T) {
	w := func(v float64) *float64 { return &v }
	history := []models.VitalSign{
		{Date: testNow.AddDate(0, 0, -6), Systolic: 116, Diastolic: 74, HeartRate: 82, OxygenSaturation: 98, Weight: w(64.2)},
		{Date: testNow, Systolic: 116, Diastolic: 74, HeartRate: 82, OxygenSaturation: 98, Weight: w(63.4)},
	}
	s := Build(models.Patient{ID: "p6", Name: "Carla"}, history, nil, testNow)

	found := false
	for _, c := range s.ChangesDetected {
		if c == "Variação de −0,8 kg no peso nesta semana" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected weight change entry, got %v", s.ChangesDetected)
	}
}

func TestBuild_ReportCountSentence(t *testing.T) {
	s := Build(patientMaria(), nil, []models.DailyReport{{Date: testNow}}, testNow)
	if !strings.HasPrefix(s.SummaryText, "Nos últimos 7 dias, Maria registrou 1 relato.") {
		t.Errorf("Unexpected opening sentence: %q", s.SummaryText)
	}
	if s.DataPoints != 1 {
		t.Errorf("DataPoints: expected 1, got %d", s.DataPoints)
	}
	if s.GeneratedAt != testNow {
		t.Error("GeneratedAt must be the provided clock value")
	}
}
