package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"karriere-harvester/internal/models"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	url TEXT NOT NULL,
	company TEXT,
	location TEXT,
	employment_type TEXT,
	salary TEXT,
	experience TEXT,
	run_id TEXT,
	first_seen TIMESTAMP NOT NULL,
	last_seen TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS jobs_company ON jobs(company);
`

// archivedJob is the row shape of the jobs table.
type archivedJob struct {
	ID             string    `db:"job_id"`
	Name           string    `db:"name"`
	URL            string    `db:"url"`
	Company        string    `db:"company"`
	Location       string    `db:"location"`
	EmploymentType string    `db:"employment_type"`
	Salary         string    `db:"salary"`
	Experience     string    `db:"experience"`
	RunID          string    `db:"run_id"`
	FirstSeen      time.Time `db:"first_seen"`
	LastSeen       time.Time `db:"last_seen"`
}

func (a archivedJob) record() models.JobRecord {
	return models.JobRecord{
		Name:           a.Name,
		ID:             a.ID,
		URL:            a.URL,
		Company:        a.Company,
		Location:       a.Location,
		EmploymentType: a.EmploymentType,
		Salary:         a.Salary,
		Experience:     a.Experience,
	}
}

// SQLiteArchive keeps every record ever harvested, one row per job ID. A
// later harvest of the same ID overwrites the fields and bumps last_seen.
type SQLiteArchive struct {
	db  *sqlx.DB
	now func() time.Time
}

// OpenSQLiteArchive opens (creating if needed) the archive at path.
func OpenSQLiteArchive(ctx context.Context, path string) (*SQLiteArchive, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, archiveSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &SQLiteArchive{db: db, now: time.Now}, nil
}

// Close closes the database.
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

// Save upserts records in one transaction and returns how many were new.
func (a *SQLiteArchive) Save(ctx context.Context, runID string, records []models.JobRecord) (int, error) {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	now := a.now().UTC()
	added := 0
	for _, rec := range records {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT COUNT(1) FROM jobs WHERE job_id = ?`, rec.ID); err != nil {
			return 0, err
		}
		if exists == 0 {
			added++
		}
		_, err := tx.NamedExecContext(ctx, `
INSERT INTO jobs (job_id, name, url, company, location, employment_type, salary, experience, run_id, first_seen, last_seen)
VALUES (:job_id, :name, :url, :company, :location, :employment_type, :salary, :experience, :run_id, :first_seen, :last_seen)
ON CONFLICT(job_id) DO UPDATE SET
	name = excluded.name,
	url = excluded.url,
	company = excluded.company,
	location = excluded.location,
	employment_type = excluded.employment_type,
	salary = excluded.salary,
	experience = excluded.experience,
	run_id = excluded.run_id,
	last_seen = excluded.last_seen`, archivedJob{
			ID:             rec.ID,
			Name:           rec.Name,
			URL:            rec.URL,
			Company:        rec.Company,
			Location:       rec.Location,
			EmploymentType: rec.EmploymentType,
			Salary:         rec.Salary,
			Experience:     rec.Experience,
			RunID:          runID,
			FirstSeen:      now,
			LastSeen:       now,
		})
		if err != nil {
			return 0, fmt.Errorf("archive job %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return added, nil
}

// Get returns the archived record for id.
func (a *SQLiteArchive) Get(ctx context.Context, id string) (models.JobRecord, bool, error) {
	var rows []archivedJob
	if err := a.db.SelectContext(ctx, &rows, `SELECT * FROM jobs WHERE job_id = ?`, id); err != nil {
		return models.JobRecord{}, false, err
	}
	if len(rows) == 0 {
		return models.JobRecord{}, false, nil
	}
	return rows[0].record(), true, nil
}

// List returns every archived record, oldest first.
func (a *SQLiteArchive) List(ctx context.Context) ([]models.JobRecord, error) {
	var rows []archivedJob
	if err := a.db.SelectContext(ctx, &rows, `SELECT * FROM jobs ORDER BY first_seen, job_id`); err != nil {
		return nil, err
	}
	out := make([]models.JobRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.record())
	}
	return out, nil
}

// Count returns the number of archived jobs.
func (a *SQLiteArchive) Count(ctx context.Context) (int, error) {
	var n int
	err := a.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM jobs`)
	return n, err
}
