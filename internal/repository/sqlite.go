package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/safemind/go-crisis-alerts/internal/models"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT,
			phone TEXT,
			agency_id INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS reports (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			location TEXT,
			status TEXT NOT NULL,
			severity TEXT,
			risk_level TEXT,
			risk_score REAL NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id)
		);

		CREATE TABLE IF NOT EXISTS followups (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			report_id INTEGER NOT NULL,
			user_id INTEGER NOT NULL,
			type TEXT NOT NULL,
			status TEXT NOT NULL,
			scheduled_for DATETIME NOT NULL,
			completed_at DATETIME,
			notes TEXT,
			response TEXT,
			reminder_sent INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (report_id) REFERENCES reports(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		);

		CREATE INDEX IF NOT EXISTS idx_reports_user_id ON reports(user_id);
		CREATE INDEX IF NOT EXISTS idx_reports_status ON reports(status);
		CREATE INDEX IF NOT EXISTS idx_followups_report_id ON followups(report_id);
		CREATE INDEX IF NOT EXISTS idx_followups_status_scheduled ON followups(status, scheduled_for);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) CreateUser(ctx context.Context, u *models.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (name, email, phone, agency_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.Name, u.Email, u.Phone, u.AgencyID, u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	u.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteDB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, email, phone, agency_id, created_at FROM users WHERE id = ?`, id,
	)

	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Phone, &u.AgencyID, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

func (s *SQLiteDB) CreateReport(ctx context.Context, r *models.Report) error {
	now := time.Now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if r.Status == "" {
		r.Status = models.ReportStatusPending
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (user_id, title, description, location, status, severity, risk_level, risk_score, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.UserID, r.Title, r.Description, r.Location, r.Status, r.Severity, r.RiskLevel, r.RiskScore, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}

	r.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteDB) GetReport(ctx context.Context, id int64) (*models.Report, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, description, location, status, severity, risk_level, risk_score, created_at, updated_at
		 FROM reports WHERE id = ?`, id,
	)

	r, err := scanReport(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan report: %w", err)
	}
	return r, nil
}

func (s *SQLiteDB) SaveReport(ctx context.Context, r *models.Report) error {
	r.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`UPDATE reports SET status = ?, severity = ?, risk_level = ?, risk_score = ?, updated_at = ? WHERE id = ?`,
		r.Status, r.Severity, r.RiskLevel, r.RiskScore, r.UpdatedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("update report %d: %w", r.ID, err)
	}
	return nil
}

func (s *SQLiteDB) ListReports(ctx context.Context, opts Filter) ([]models.Report, error) {
	query := `SELECT id, user_id, title, description, location, status, severity, risk_level, risk_score, created_at, updated_at FROM reports`

	var clauses []string
	var args []any

	if opts.UserID != nil {
		clauses = append(clauses, "user_id = ?")
		args = append(args, *opts.UserID)
	}
	if opts.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, *opts.Status)
	}
	if opts.Severity != nil {
		clauses = append(clauses, "severity = ?")
		args = append(args, *opts.Severity)
	}
	if opts.MinRiskScore != nil {
		clauses = append(clauses, "risk_score >= ?")
		args = append(args, *opts.MinRiskScore)
	}
	if opts.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, *opts.Since)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, opts.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report row: %w", err)
		}
		reports = append(reports, *r)
	}
	return reports, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*models.Report, error) {
	var r models.Report
	var severity, riskLevel sql.NullString

	err := row.Scan(&r.ID, &r.UserID, &r.Title, &r.Description, &r.Location,
		&r.Status, &severity, &riskLevel, &r.RiskScore, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.Severity = models.Severity(severity.String)
	r.RiskLevel = riskLevel.String
	return &r, nil
}

func (s *SQLiteDB) CreateFollowUp(ctx context.Context, f *models.FollowUp) error {
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.Status == "" {
		f.Status = models.FollowUpStatusPending
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO followups (report_id, user_id, type, status, scheduled_for, completed_at, notes, response, reminder_sent, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ReportID, f.UserID, f.Type, f.Status, f.ScheduledFor, f.CompletedAt, f.Notes, f.Response, f.ReminderSent, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert followup: %w", err)
	}

	f.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteDB) GetFollowUp(ctx context.Context, id int64) (*models.FollowUp, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, report_id, user_id, type, status, scheduled_for, completed_at, notes, response, reminder_sent, created_at
		 FROM followups WHERE id = ?`, id,
	)

	f, err := scanFollowUp(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan followup: %w", err)
	}
	return f, nil
}

func (s *SQLiteDB) SaveFollowUp(ctx context.Context, f *models.FollowUp) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE followups SET status = ?, completed_at = ?, notes = ?, response = ?, reminder_sent = ? WHERE id = ?`,
		f.Status, f.CompletedAt, f.Notes, f.Response, f.ReminderSent, f.ID,
	)
	if err != nil {
		return fmt.Errorf("update followup %d: %w", f.ID, err)
	}
	return nil
}

func (s *SQLiteDB) ListPendingForUser(ctx context.Context, userID int64) ([]models.FollowUp, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, report_id, user_id, type, status, scheduled_for, completed_at, notes, response, reminder_sent, created_at
		 FROM followups WHERE user_id = ? AND status = ? ORDER BY scheduled_for DESC`,
		userID, models.FollowUpStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending followups: %w", err)
	}
	defer rows.Close()

	return collectFollowUps(rows)
}

func (s *SQLiteDB) ListDue(ctx context.Context, cutoff time.Time) ([]models.FollowUp, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, report_id, user_id, type, status, scheduled_for, completed_at, notes, response, reminder_sent, created_at
		 FROM followups WHERE status = ? AND scheduled_for <= ? ORDER BY scheduled_for ASC`,
		models.FollowUpStatusPending, cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("list due followups: %w", err)
	}
	defer rows.Close()

	return collectFollowUps(rows)
}

func collectFollowUps(rows *sql.Rows) ([]models.FollowUp, error) {
	var followups []models.FollowUp
	for rows.Next() {
		f, err := scanFollowUp(rows)
		if err != nil {
			return nil, fmt.Errorf("scan followup row: %w", err)
		}
		followups = append(followups, *f)
	}
	return followups, rows.Err()
}

func scanFollowUp(row rowScanner) (*models.FollowUp, error) {
	var f models.FollowUp
	var completedAt sql.NullTime
	var notes, response sql.NullString

	err := row.Scan(&f.ID, &f.ReportID, &f.UserID, &f.Type, &f.Status,
		&f.ScheduledFor, &completedAt, &notes, &response, &f.ReminderSent, &f.CreatedAt)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		f.CompletedAt = &completedAt.Time
	}
	f.Notes = notes.String
	f.Response = response.String
	return &f, nil
}
