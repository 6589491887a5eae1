package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Krimson/maternal-monitory/pkg/models"
)

type PostgreSQLRepository struct {
	db *sql.DB
}

func NewPostgreSQLRepository(connStr string) (*PostgreSQLRepository, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	// Создаем таблицы если не существуют
	createTableSQL := `
    CREATE TABLE IF NOT EXISTS patients (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        cpf TEXT,
        age INT NOT NULL DEFAULT 0,
        gestational_weeks INT,
        gestational_days INT,
        is_active BOOLEAN NOT NULL DEFAULT TRUE,
        due_date TIMESTAMP,
        phone TEXT,
        address TEXT,
        blood_type TEXT,
        first_appointment_date TIMESTAMP
    );

    CREATE TABLE IF NOT EXISTS vital_signs (
        id TEXT PRIMARY KEY,
        patient_id TEXT NOT NULL REFERENCES patients(id),
        date TIMESTAMP NOT NULL,
        systolic INT NOT NULL,
        diastolic INT NOT NULL,
        heart_rate INT NOT NULL,
        oxygen_saturation INT NOT NULL,
        weight DOUBLE PRECISION,
        temperature DOUBLE PRECISION,
        recorded_by TEXT,
        created_at TIMESTAMP NOT NULL DEFAULT NOW()
    );

    CREATE TABLE IF NOT EXISTS daily_reports (
        id TEXT PRIMARY KEY,
        patient_id TEXT NOT NULL REFERENCES patients(id),
        date TIMESTAMP NOT NULL,
        description TEXT NOT NULL DEFAULT '',
        mood TEXT NOT NULL DEFAULT '',
        symptoms JSONB NOT NULL DEFAULT '[]'
    );

    CREATE TABLE IF NOT EXISTS alerts (
        id TEXT PRIMARY KEY,
        patient_id TEXT NOT NULL REFERENCES patients(id),
        type TEXT NOT NULL,
        severity TEXT NOT NULL,
        status TEXT NOT NULL,
        created_at TIMESTAMP NOT NULL,
        metric_label TEXT NOT NULL DEFAULT '',
        metric_value TEXT NOT NULL DEFAULT ''
    );

    CREATE TABLE IF NOT EXISTS alert_notes (
        id TEXT PRIMARY KEY,
        alert_id TEXT NOT NULL REFERENCES alerts(id),
        text TEXT NOT NULL,
        author_name TEXT NOT NULL DEFAULT '',
        created_at TIMESTAMP NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_vitals_patient_date ON vital_signs(patient_id, date);
    CREATE INDEX IF NOT EXISTS idx_reports_patient_date ON daily_reports(patient_id, date);
    CREATE INDEX IF NOT EXISTS idx_reports_date ON daily_reports(date);
    CREATE INDEX IF NOT EXISTS idx_alerts_patient ON alerts(patient_id);
    CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at);
    CREATE INDEX IF NOT EXISTS idx_alert_notes_alert ON alert_notes(alert_id);
    `

	if _, err := db.Exec(createTableSQL); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgreSQLRepository{db: db}, nil
}

func (r *PostgreSQLRepository) ListPatients(ctx context.Context) ([]models.Patient, error) {
	query := `
    SELECT id, name, cpf, age, gestational_weeks, gestational_days, is_active,
           due_date, phone, address, blood_type, first_appointment_date
    FROM patients
    ORDER BY name
    `
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var patients []models.Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, *p)
	}
	return patients, rows.Err()
}

func (r *PostgreSQLRepository) GetPatient(ctx context.Context, id string) (*models.Patient, error) {
	query := `
    SELECT id, name, cpf, age, gestational_weeks, gestational_days, is_active,
           due_date, phone, address, blood_type, first_appointment_date
    FROM patients
    WHERE id = $1
    `
	p, err := scanPatient(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrPatientNotFound
	}
	return p, err
}

func (r *PostgreSQLRepository) CreatePatient(ctx context.Context, patient *models.Patient) error {
	query := `
    INSERT INTO patients (id, name, cpf, age, gestational_weeks, gestational_days, is_active,
                          due_date, phone, address, blood_type, first_appointment_date)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
    ON CONFLICT (id)
    DO UPDATE SET name = $2, cpf = $3, age = $4, gestational_weeks = $5, gestational_days = $6,
                  is_active = $7, due_date = $8, phone = $9, address = $10, blood_type = $11,
                  first_appointment_date = $12
    `
	_, err := r.db.ExecContext(ctx, query,
		patient.ID, patient.Name, nullString(patient.CPF), patient.Age,
		patient.GestationalWeeks, patient.GestationalDays, patient.IsActive,
		patient.DueDate, nullString(patient.Phone), nullString(patient.Address),
		nullString(patient.BloodType), patient.FirstAppointmentDate,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert patient: %w", err)
	}
	return nil
}

func (r *PostgreSQLRepository) SaveVitalSigns(ctx context.Context, signs []models.VitalSign) error {
	if len(signs) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
    INSERT INTO vital_signs (id, patient_id, date, systolic, diastolic, heart_rate,
                             oxygen_saturation, weight, temperature, recorded_by)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    ON CONFLICT (id) DO NOTHING
    `
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, vs := range signs {
		if _, err := stmt.ExecContext(ctx,
			vs.ID, vs.PatientID, vs.Date, vs.Systolic, vs.Diastolic, vs.HeartRate,
			vs.OxygenSaturation, vs.Weight, vs.Temperature, nullString(vs.RecordedBy),
		); err != nil {
			return fmt.Errorf("failed to insert vital sign %s: %w", vs.ID, err)
		}
	}

	return tx.Commit()
}

func (r *PostgreSQLRepository) GetVitalHistory(ctx context.Context, patientID string, since time.Time) ([]models.VitalSign, error) {
	query := `
    SELECT id, patient_id, date, systolic, diastolic, heart_rate,
           oxygen_saturation, weight, temperature, recorded_by, created_at
    FROM vital_signs
    WHERE patient_id = $1 AND date >= $2
    ORDER BY date
    `
	rows, err := r.db.QueryContext(ctx, query, patientID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query vital history: %w", err)
	}
	defer rows.Close()

	var history []models.VitalSign
	for rows.Next() {
		var vs models.VitalSign
		var recordedBy sql.NullString
		var createdAt sql.NullTime
		if err := rows.Scan(&vs.ID, &vs.PatientID, &vs.Date, &vs.Systolic, &vs.Diastolic,
			&vs.HeartRate, &vs.OxygenSaturation, &vs.Weight, &vs.Temperature,
			&recordedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan vital sign: %w", err)
		}
		vs.RecordedBy = recordedBy.String
		if createdAt.Valid {
			vs.CreatedAt = &createdAt.Time
		}
		history = append(history, vs)
	}
	return history, rows.Err()
}

func (r *PostgreSQLRepository) SaveDailyReport(ctx context.Context, report *models.DailyReport) error {
	symptomsJSON, err := json.Marshal(report.Symptoms)
	if err != nil {
		return fmt.Errorf("failed to marshal symptoms: %w", err)
	}

	query := `
    INSERT INTO daily_reports (id, patient_id, date, description, mood, symptoms)
    VALUES ($1, $2, $3, $4, $5, $6)
    ON CONFLICT (id) DO NOTHING
    `
	if _, err := r.db.ExecContext(ctx, query,
		report.ID, report.PatientID, report.Date, report.Description,
		string(report.Mood), symptomsJSON,
	); err != nil {
		return fmt.Errorf("failed to insert daily report: %w", err)
	}
	return nil
}

func (r *PostgreSQLRepository) GetPatientReports(ctx context.Context, patientID string, since time.Time) ([]models.DailyReport, error) {
	query := `
    SELECT id, patient_id, date, description, mood, symptoms
    FROM daily_reports
    WHERE patient_id = $1 AND date >= $2
    ORDER BY date
    `
	rows, err := r.db.QueryContext(ctx, query, patientID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query patient reports: %w", err)
	}
	defer rows.Close()
	return scanReports(rows)
}

func (r *PostgreSQLRepository) GetAllReports(ctx context.Context, since time.Time) ([]models.DailyReport, error) {
	query := `
    SELECT id, patient_id, date, description, mood, symptoms
    FROM daily_reports
    WHERE date >= $1
    ORDER BY date
    `
	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()
	return scanReports(rows)
}

func (r *PostgreSQLRepository) CreateAlerts(ctx context.Context, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
    INSERT INTO alerts (id, patient_id, type, severity, status, created_at, metric_label, metric_value)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    ON CONFLICT (id) DO NOTHING
    `
	for _, a := range alerts {
		if _, err := tx.ExecContext(ctx, query,
			a.ID, a.PatientID, string(a.Type), string(a.Severity), string(a.Status),
			a.CreatedAt, a.MetricLabel, a.MetricValue,
		); err != nil {
			return fmt.Errorf("failed to insert alert %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

func (r *PostgreSQLRepository) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	query := `
    SELECT a.id, a.patient_id, p.name, a.type, a.severity, a.status,
           a.created_at, a.metric_label, a.metric_value,
           p.gestational_weeks, p.gestational_days
    FROM alerts a
    JOIN patients p ON p.id = a.patient_id
    WHERE a.id = $1
    `
	a, err := scanAlert(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrAlertNotFound
	}
	if err != nil {
		return nil, err
	}

	notes, err := r.getAlertNotes(ctx, id)
	if err != nil {
		return nil, err
	}
	a.Notes = notes
	return a, nil
}

func (r *PostgreSQLRepository) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	query := `
    SELECT a.id, a.patient_id, p.name, a.type, a.severity, a.status,
           a.created_at, a.metric_label, a.metric_value,
           p.gestational_weeks, p.gestational_days
    FROM alerts a
    JOIN patients p ON p.id = a.patient_id
    ORDER BY a.created_at
    `
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

func (r *PostgreSQLRepository) UpdateAlertStatus(ctx context.Context, id string, status models.AlertStatus) error {
	res, err := r.db.ExecContext(ctx, `UPDATE alerts SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update alert status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrAlertNotFound
	}
	return nil
}

func (r *PostgreSQLRepository) AddAlertNote(ctx context.Context, alertID string, note *models.AlertNote) error {
	query := `
    INSERT INTO alert_notes (id, alert_id, text, author_name, created_at)
    VALUES ($1, $2, $3, $4, $5)
    `
	if _, err := r.db.ExecContext(ctx, query,
		note.ID, alertID, note.Text, note.AuthorName, note.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to insert alert note: %w", err)
	}
	return nil
}

func (r *PostgreSQLRepository) getAlertNotes(ctx context.Context, alertID string) ([]models.AlertNote, error) {
	query := `
    SELECT id, text, author_name, created_at
    FROM alert_notes
    WHERE alert_id = $1
    ORDER BY created_at
    `
	rows, err := r.db.QueryContext(ctx, query, alertID)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert notes: %w", err)
	}
	defer rows.Close()

	var notes []models.AlertNote
	for rows.Next() {
		var n models.AlertNote
		if err := rows.Scan(&n.ID, &n.Text, &n.AuthorName, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan alert note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (r *PostgreSQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*models.Patient, error) {
	var p models.Patient
	var cpf, phone, address, bloodType sql.NullString
	if err := row.Scan(&p.ID, &p.Name, &cpf, &p.Age, &p.GestationalWeeks, &p.GestationalDays,
		&p.IsActive, &p.DueDate, &phone, &address, &bloodType, &p.FirstAppointmentDate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan patient: %w", err)
	}
	p.CPF = cpf.String
	p.Phone = phone.String
	p.Address = address.String
	p.BloodType = bloodType.String
	return &p, nil
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var typ, severity, status string
	var gw, gd sql.NullInt64
	if err := row.Scan(&a.ID, &a.PatientID, &a.PatientName, &typ, &severity, &status,
		&a.CreatedAt, &a.MetricLabel, &a.MetricValue, &gw, &gd); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan alert: %w", err)
	}
	a.Type = models.AlertType(typ)
	a.Severity = models.AlertSeverity(severity)
	a.Status = models.AlertStatus(status)
	a.PatientIG = igLabel(gw, gd)
	return &a, nil
}

func igLabel(gw, gd sql.NullInt64) string {
	if !gw.Valid {
		return ""
	}
	p := models.Patient{}
	weeks := int(gw.Int64)
	p.GestationalWeeks = &weeks
	if gd.Valid {
		days := int(gd.Int64)
		p.GestationalDays = &days
	}
	return p.IGLabel()
}

func scanReports(rows *sql.Rows) ([]models.DailyReport, error) {
	var reports []models.DailyReport
	for rows.Next() {
		var rep models.DailyReport
		var mood string
		var symptomsJSON []byte
		if err := rows.Scan(&rep.ID, &rep.PatientID, &rep.Date, &rep.Description,
			&mood, &symptomsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan daily report: %w", err)
		}
		rep.Mood = models.Mood(mood)
		if err := json.Unmarshal(symptomsJSON, &rep.Symptoms); err != nil {
			return nil, fmt.Errorf("failed to unmarshal symptoms: %w", err)
		}
		reports = append(reports, rep)
	}
	return reports, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
