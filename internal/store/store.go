// Package store persists parsed scan reports in a local sqlite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/reconware/sweeper/internal/model"
)

var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS reports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_uuid TEXT NOT NULL UNIQUE,
	target TEXT NOT NULL,
	tool TEXT NOT NULL,
	profile TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	hosts_up INTEGER NOT NULL,
	ports_open INTEGER NOT NULL,
	ports_total INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS hosts (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	report_id INTEGER NOT NULL REFERENCES reports(id) ON DELETE CASCADE,
	addr TEXT NOT NULL,
	state TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ports (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	host_id INTEGER NOT NULL REFERENCES hosts(id) ON DELETE CASCADE,
	number INTEGER NOT NULL,
	protocol TEXT NOT NULL,
	state TEXT NOT NULL,
	service TEXT NOT NULL,
	product TEXT NOT NULL,
	version TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_reports_target ON reports(target);
`

// Store is a scheduler sink writing each completed job's report to sqlite.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening report db %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying report schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes the report in a single transaction. Saving the same job
// twice replaces the earlier report.
func (s *Store) Save(ctx context.Context, job model.Job, report model.Report) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "rolling back report transaction failed", "job", job.ID, "error", err)
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM reports WHERE job_uuid=?`, job.ID.String(),
	); err != nil {
		return fmt.Errorf("clearing earlier report: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO reports (job_uuid, target, tool, profile, finished_at, hosts_up, ports_open, ports_total)
		 VALUES (?,?,?,?,?,?,?,?)`,
		job.ID.String(), report.Target, report.Tool, job.Profile,
		job.CompletedAt.UTC().Format(time.RFC3339),
		job.Summary.HostsUp, job.Summary.PortsOpen, job.Summary.PortsTotal,
	)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	reportID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading report id: %w", err)
	}

	for _, host := range report.Hosts {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO hosts (report_id, addr, state) VALUES (?,?,?)`,
			reportID, host.Addr, host.State,
		)
		if err != nil {
			return fmt.Errorf("inserting host %s: %w", host.Addr, err)
		}
		hostID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading host id: %w", err)
		}
		for _, port := range host.Ports {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ports (host_id, number, protocol, state, service, product, version)
				 VALUES (?,?,?,?,?,?,?)`,
				hostID, port.Number, port.Protocol, port.State, port.Service, port.Product, port.Version,
			); err != nil {
				return fmt.Errorf("inserting port %d/%s: %w", port.Number, port.Protocol, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing report: %w", err)
	}
	return nil
}

// Row is one persisted report summary.
type Row struct {
	JobUUID    string
	Target     string
	Tool       string
	Profile    string
	FinishedAt time.Time
	Summary    model.Summary
}

// Recent returns up to limit report summaries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT job_uuid, target, tool, profile, finished_at, hosts_up, ports_open, ports_total
		 FROM reports ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var finished string
		if err := rows.Scan(&r.JobUUID, &r.Target, &r.Tool, &r.Profile, &finished,
			&r.Summary.HostsUp, &r.Summary.PortsOpen, &r.Summary.PortsTotal); err != nil {
			return nil, fmt.Errorf("scanning report row: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, finished); err == nil {
			r.FinishedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Report loads the full report saved for a job, ErrNotFound when the job
// never saved one.
func (s *Store) Report(ctx context.Context, jobUUID string) (model.Report, error) {
	var reportID int64
	var report model.Report
	err := s.db.QueryRowContext(ctx,
		`SELECT id, target, tool FROM reports WHERE job_uuid=?`, jobUUID,
	).Scan(&reportID, &report.Target, &report.Tool)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Report{}, fmt.Errorf("report for job %s: %w", jobUUID, ErrNotFound)
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("loading report: %w", err)
	}

	hostRows, err := s.db.QueryContext(ctx,
		`SELECT id, addr, state FROM hosts WHERE report_id=? ORDER BY id`, reportID,
	)
	if err != nil {
		return model.Report{}, fmt.Errorf("loading hosts: %w", err)
	}
	defer hostRows.Close()

	var hostIDs []int64
	for hostRows.Next() {
		var id int64
		var host model.Host
		if err := hostRows.Scan(&id, &host.Addr, &host.State); err != nil {
			return model.Report{}, fmt.Errorf("scanning host row: %w", err)
		}
		hostIDs = append(hostIDs, id)
		report.Hosts = append(report.Hosts, host)
	}
	if err := hostRows.Err(); err != nil {
		return model.Report{}, err
	}

	for i, hostID := range hostIDs {
		portRows, err := s.db.QueryContext(ctx,
			`SELECT number, protocol, state, service, product, version
			 FROM ports WHERE host_id=? ORDER BY number`, hostID,
		)
		if err != nil {
			return model.Report{}, fmt.Errorf("loading ports: %w", err)
		}
		for portRows.Next() {
			var p model.Port
			if err := portRows.Scan(&p.Number, &p.Protocol, &p.State, &p.Service, &p.Product, &p.Version); err != nil {
				portRows.Close()
				return model.Report{}, fmt.Errorf("scanning port row: %w", err)
			}
			report.Hosts[i].Ports = append(report.Hosts[i].Ports, p)
		}
		if err := portRows.Err(); err != nil {
			portRows.Close()
			return model.Report{}, err
		}
		portRows.Close()
	}
	return report, nil
}
