package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/Krimson/maternal-monitory/internal/ingest"
	"github.com/Krimson/maternal-monitory/internal/service"
	"github.com/Krimson/maternal-monitory/pkg/models"
)

// HTTPHandler обрабатывает HTTP запросы дашборда (Presentation Layer)
type HTTPHandler struct {
	svc     *service.MonitorService
	batcher *ingest.Batcher
}

// NewHTTPHandler создает новый HTTP обработчик
func NewHTTPHandler(svc *service.MonitorService, batcher *ingest.Batcher) *HTTPHandler {
	return &HTTPHandler{
		svc:     svc,
		batcher: batcher,
	}
}

// RegisterRoutes регистрирует маршруты в роутере
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/patients", h.ListPatients).Methods("GET")
	api.HandleFunc("/patients", h.CreatePatient).Methods("POST")
	api.HandleFunc("/patients/{id}", h.GetPatient).Methods("GET")
	api.HandleFunc("/patients/{id}/overview", h.GetPatientOverview).Methods("GET")
	api.HandleFunc("/patients/{id}/summary", h.GetAssistantSummary).Methods("GET")

	api.HandleFunc("/vitals", h.SubmitVitals).Methods("POST")
	api.HandleFunc("/reports", h.SubmitDailyReport).Methods("POST")

	api.HandleFunc("/alerts", h.ListAlerts).Methods("GET")
	api.HandleFunc("/alerts/kpi", h.GetAlertsKPI).Methods("GET")
	api.HandleFunc("/alerts/{id}/review", h.ReviewAlert).Methods("POST")
	api.HandleFunc("/alerts/{id}/notes", h.AddAlertNote).Methods("POST")

	api.HandleFunc("/report", h.GetReport).Methods("GET")
	api.HandleFunc("/report/csv", h.GetReportCSV).Methods("GET")
	api.HandleFunc("/report/digest", h.GetReportDigest).Methods("GET")

	api.HandleFunc("/kpi", h.GetDashboardKPI).Methods("GET")

	router.HandleFunc("/health", h.Health).Methods("GET")
}

// ListPatients возвращает список пациенток
// GET /api/patients
func (h *HTTPHandler) ListPatients(w http.ResponseWriter, r *http.Request) {
	patients, err := h.svc.ListPatients(r.Context())
	if err != nil {
		log.Printf("[ERROR] Failed to list patients: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list patients")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"patients": patients,
		"count":    len(patients),
	})
}

// CreatePatient регистрирует пациентку
// POST /api/patients
func (h *HTTPHandler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	var patient models.Patient
	if err := json.NewDecoder(r.Body).Decode(&patient); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if patient.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.svc.CreatePatient(r.Context(), &patient); err != nil {
		log.Printf("[ERROR] Failed to create patient: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to create patient")
		return
	}

	respondJSON(w, http.StatusCreated, patient)
}

// GetPatient возвращает карточку пациентки
// GET /api/patients/{id}
func (h *HTTPHandler) GetPatient(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["id"]

	patient, err := h.svc.GetPatient(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, models.ErrPatientNotFound) {
			respondError(w, http.StatusNotFound, "Patient not found")
			return
		}
		log.Printf("[ERROR] Failed to get patient %s: %v", patientID, err)
		respondError(w, http.StatusInternalServerError, "Failed to get patient")
		return
	}

	respondJSON(w, http.StatusOK, patient)
}

// GetPatientOverview возвращает карточку пациентки с трендами и
// уровнем внимания
// GET /api/patients/{id}/overview
func (h *HTTPHandler) GetPatientOverview(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["id"]

	overview, err := h.svc.GetPatientOverview(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, models.ErrPatientNotFound) {
			respondError(w, http.StatusNotFound, "Patient not found")
			return
		}
		log.Printf("[ERROR] Failed to build overview for %s: %v", patientID, err)
		respondError(w, http.StatusInternalServerError, "Failed to build overview")
		return
	}

	respondJSON(w, http.StatusOK, overview)
}

// GetAssistantSummary возвращает автоматическое резюме пациентки
// GET /api/patients/{id}/summary
func (h *HTTPHandler) GetAssistantSummary(w http.ResponseWriter, r *http.Request) {
	patientID := mux.Vars(r)["id"]

	summary, err := h.svc.GetAssistantSummary(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, models.ErrPatientNotFound) {
			respondError(w, http.StatusNotFound, "Patient not found")
			return
		}
		log.Printf("[ERROR] Failed to build summary for %s: %v", patientID, err)
		respondError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

// SubmitVitals принимает пачку измерений витальных показателей.
// Измерения буферизуются и сохраняются асинхронно.
// POST /api/vitals
func (h *HTTPHandler) SubmitVitals(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Signs []models.VitalSign `json:"signs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.Signs) == 0 {
		respondError(w, http.StatusBadRequest, "signs is required")
		return
	}

	for _, vs := range req.Signs {
		if err := h.batcher.Add(vs); err != nil {
			log.Printf("[ERROR] Failed to enqueue vital sign: %v", err)
			respondError(w, http.StatusInternalServerError, "Failed to accept vital signs")
			return
		}
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"accepted": len(req.Signs),
	})
}

// SubmitDailyReport принимает ежедневный самоотчёт пациентки
// POST /api/reports
func (h *HTTPHandler) SubmitDailyReport(w http.ResponseWriter, r *http.Request) {
	var report models.DailyReport
	if err := json.NewDecoder(r.Body).Decode(&report); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if report.PatientID == "" {
		respondError(w, http.StatusBadRequest, "patient_id is required")
		return
	}

	if err := h.svc.SubmitDailyReport(r.Context(), &report); err != nil {
		if errors.Is(err, models.ErrPatientNotFound) {
			respondError(w, http.StatusNotFound, "Patient not found")
			return
		}
		log.Printf("[ERROR] Failed to submit report: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to submit report")
		return
	}

	respondJSON(w, http.StatusCreated, report)
}

// ListAlerts возвращает алерты в порядке отображения
// GET /api/alerts
func (h *HTTPHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.svc.ListAlerts(r.Context())
	if err != nil {
		log.Printf("[ERROR] Failed to list alerts: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetAlertsKPI возвращает сводные показатели по алертам
// GET /api/alerts/kpi
func (h *HTTPHandler) GetAlertsKPI(w http.ResponseWriter, r *http.Request) {
	kpi, err := h.svc.GetAlertsKPI(r.Context())
	if err != nil {
		log.Printf("[ERROR] Failed to compute alerts KPI: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to compute KPI")
		return
	}

	respondJSON(w, http.StatusOK, kpi)
}

// ReviewAlert переводит алерт в статус reviewed.
// Отказ ревью отдается как 503: клиент может повторить запрос.
// POST /api/alerts/{id}/review
func (h *HTTPHandler) ReviewAlert(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["id"]

	result, err := h.svc.MarkAlertReviewed(r.Context(), alertID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrAlertNotFound):
			respondError(w, http.StatusNotFound, "Alert not found")
		case errors.Is(err, models.ErrReviewFailed):
			respondError(w, http.StatusServiceUnavailable, "Review action failed, try again")
		default:
			log.Printf("[ERROR] Failed to review alert %s: %v", alertID, err)
			respondError(w, http.StatusInternalServerError, "Failed to review alert")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alert":   result.Alert,
		"updated": result.Updated,
	})
}

// AddAlertNote добавляет заметку врача к алерту
// POST /api/alerts/{id}/notes
func (h *HTTPHandler) AddAlertNote(w http.ResponseWriter, r *http.Request) {
	alertID := mux.Vars(r)["id"]

	var req struct {
		Text   string `json:"text"`
		Author string `json:"author"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Text == "" {
		respondError(w, http.StatusBadRequest, "text is required")
		return
	}

	note, err := h.svc.AddAlertNote(r.Context(), alertID, req.Text, req.Author)
	if err != nil {
		if errors.Is(err, models.ErrAlertNotFound) {
			respondError(w, http.StatusNotFound, "Alert not found")
			return
		}
		log.Printf("[ERROR] Failed to add note to alert %s: %v", alertID, err)
		respondError(w, http.StatusInternalServerError, "Failed to add note")
		return
	}

	respondJSON(w, http.StatusCreated, note)
}

// GetReport возвращает агрегированный отчёт
// GET /api/report?period=7d
func (h *HTTPHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid period, expected 7d, 30d or 90d")
		return
	}

	data, err := h.svc.GetReportData(r.Context(), period)
	if err != nil {
		log.Printf("[ERROR] Failed to build report: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to build report")
		return
	}

	respondJSON(w, http.StatusOK, data)
}

// GetReportCSV возвращает CSV-экспорт сводной таблицы
// GET /api/report/csv?period=7d
func (h *HTTPHandler) GetReportCSV(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid period, expected 7d, 30d or 90d")
		return
	}

	csv, err := h.svc.GetReportCSV(r.Context(), period)
	if err != nil {
		log.Printf("[ERROR] Failed to build CSV export: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to build CSV export")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="relatorio_`+string(period)+`.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(csv))
}

// GetReportDigest возвращает текстовую сводку отчёта
// GET /api/report/digest?period=7d
func (h *HTTPHandler) GetReportDigest(w http.ResponseWriter, r *http.Request) {
	period, ok := parsePeriod(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid period, expected 7d, 30d or 90d")
		return
	}

	digest, err := h.svc.GetReportDigest(r.Context(), period)
	if err != nil {
		log.Printf("[ERROR] Failed to build digest: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to build digest")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"digest": digest,
	})
}

// GetDashboardKPI возвращает показатели дашборда врача
// GET /api/kpi
func (h *HTTPHandler) GetDashboardKPI(w http.ResponseWriter, r *http.Request) {
	kpi, err := h.svc.GetDashboardKPI(r.Context())
	if err != nil {
		log.Printf("[ERROR] Failed to compute dashboard KPI: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to compute KPI")
		return
	}

	respondJSON(w, http.StatusOK, kpi)
}

// Health — проверка живости сервиса
// GET /health
func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CORSMiddleware разрешает кросс-доменные запросы фронтенда
func CORSMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ===== Утилиты =====

func parsePeriod(r *http.Request) (models.ReportPeriod, bool) {
	raw := r.URL.Query().Get("period")
	if raw == "" {
		return models.Period7d, true
	}
	period := models.ReportPeriod(raw)
	switch period {
	case models.Period7d, models.Period30d, models.Period90d:
		return period, true
	}
	return "", false
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[ERROR] Failed to encode JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":  message,
		"status": status,
	})
}
