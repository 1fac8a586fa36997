// Package sqlrows maps the site graph onto the relational schema shared by
// the SQLite and Postgres repositories.
package sqlrows

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"calibtrack/internal/entitymodel/sqlbundle"
	"calibtrack/pkg/domain"
)

// Dialect selects placeholder syntax.
type Dialect int

// Supported dialects.
const (
	SQLite Dialect = iota
	Postgres
)

// Rebind rewrites ? placeholders into the dialect's form.
func (d Dialect) Rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ApplySchema executes every statement of a DDL script.
func ApplySchema(ctx context.Context, db Execer, ddl string) error {
	for _, stmt := range sqlbundle.SplitStatements(ddl) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

type writer struct {
	ctx context.Context
	tx  Execer
	d   Dialect
}

func (w writer) exec(query string, args ...any) error {
	_, err := w.tx.ExecContext(w.ctx, w.d.Rebind(query), args...)
	return err
}

// WriteSite replaces the stored graph of site inside tx. The site row is
// upserted so rows in other tables keyed on it are never cascaded by a
// REPLACE; child collections are deleted and reinserted in order.
func WriteSite(ctx context.Context, tx Execer, d Dialect, site domain.Site) error {
	w := writer{ctx: ctx, tx: tx, d: d}
	if err := w.exec(`INSERT INTO sites (id, name, customer, location, type, type_detail,
		contact_name, contact_position, contact_email, contact_phone1, contact_phone2,
		logo, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, customer = excluded.customer,
		location = excluded.location, type = excluded.type, type_detail = excluded.type_detail,
		contact_name = excluded.contact_name, contact_position = excluded.contact_position,
		contact_email = excluded.contact_email, contact_phone1 = excluded.contact_phone1,
		contact_phone2 = excluded.contact_phone2, logo = excluded.logo, active = excluded.active,
		created_at = excluded.created_at, updated_at = excluded.updated_at`,
		site.ID, site.Name, site.Customer, site.Location, site.Type, site.TypeDetail,
		site.Contact.Name, site.Contact.Position, site.Contact.Email, site.Contact.Phone1, site.Contact.Phone2,
		site.Logo, site.Active, formatTime(site.CreatedAt), formatTime(site.UpdatedAt)); err != nil {
		return fmt.Errorf("upsert site %s: %w", site.ID, err)
	}
	for _, table := range []string{"assets", "specifications", "notes", "issues"} {
		if err := w.exec(`DELETE FROM `+table+` WHERE site_id = ?`, site.ID); err != nil {
			return fmt.Errorf("clear %s for site %s: %w", table, site.ID, err)
		}
	}
	pos := 0
	for _, records := range [][]domain.MirrorRecord{site.ServiceData, site.RollerData} {
		for _, rec := range records {
			if err := w.insertRecord(site.ID, rec, pos); err != nil {
				return err
			}
			pos++
		}
	}
	for i, spec := range site.SpecData {
		if err := w.insertSpecification(site.ID, spec, i); err != nil {
			return err
		}
	}
	for i, note := range site.Notes {
		if err := w.exec(`INSERT INTO notes (site_id, id, parent_type, content, author, timestamp, archived, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			site.ID, note.ID, string(domain.ParentSite), note.Content, note.Author,
			formatTime(note.Timestamp), note.Archived, i); err != nil {
			return fmt.Errorf("insert note %s: %w", note.ID, err)
		}
	}
	for i, issue := range site.Issues {
		var completed sql.NullString
		if issue.CompletedAt != nil {
			completed = sql.NullString{String: formatTime(*issue.CompletedAt), Valid: true}
		}
		if err := w.exec(`INSERT INTO issues (site_id, id, title, description, priority, asset_id,
			asset_name, status, created_at, completed_at, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			site.ID, issue.ID, issue.Title, issue.Description, issue.Priority, issue.AssetID,
			issue.AssetName, string(issue.Status), formatTime(issue.CreatedAt), completed, i); err != nil {
			return fmt.Errorf("insert issue %s: %w", issue.ID, err)
		}
	}
	return nil
}

func (w writer) insertRecord(siteID string, rec domain.MirrorRecord, pos int) error {
	var physical sql.NullString
	if rec.PhysicalAssetID != "" {
		physical = sql.NullString{String: rec.PhysicalAssetID, Valid: true}
	}
	if err := w.exec(`INSERT INTO assets (site_id, id, physical_asset_id, view, name, code, weigher,
		active, last_cal, frequency, due_date, remaining, op_status, op_note, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		siteID, rec.ID, physical, string(rec.View), rec.Name, rec.Code, rec.Weigher,
		rec.Active, rec.LastCal, rec.Frequency, rec.DueDate, rec.Remaining,
		string(rec.OpStatus), rec.OpNote, pos); err != nil {
		return fmt.Errorf("insert asset %s: %w", rec.ID, err)
	}
	for seq, h := range rec.History {
		if err := w.exec(`INSERT INTO asset_history (site_id, asset_id, seq, date, action, author)
			VALUES (?, ?, ?, ?, ?, ?)`,
			siteID, rec.ID, seq, formatTime(h.Date), h.Action, h.User); err != nil {
			return fmt.Errorf("insert history for asset %s: %w", rec.ID, err)
		}
	}
	for i, r := range rec.Reports {
		var payload sql.NullString
		if len(r.Data) > 0 {
			payload = sql.NullString{String: string(r.Data), Valid: true}
		}
		if err := w.exec(`INSERT INTO reports (site_id, asset_id, id, date, file_name, attachment, payload, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			siteID, rec.ID, r.ID, r.Date, r.FileName, r.Attachment, payload, i); err != nil {
			return fmt.Errorf("insert report %s for asset %s: %w", r.ID, rec.ID, err)
		}
	}
	return nil
}

func (w writer) insertSpecification(siteID string, spec domain.Specification, pos int) error {
	history, err := json.Marshal(nonNilHistory(spec.History))
	if err != nil {
		return fmt.Errorf("encode history for specification %s: %w", spec.ID, err)
	}
	if err := w.exec(`INSERT INTO specifications (site_id, id, weigher, alt_code, description, scale_type,
		integrator_controller, speed_sensor_type, load_cell_brand, load_cell_size, load_cell_sensitivity,
		number_of_load_cells, roll_dims, adjustment_type, billet_type, billet_weight, history, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		siteID, spec.ID, spec.Weigher, spec.AltCode, spec.Description, spec.ScaleType,
		spec.IntegratorController, spec.SpeedSensorType, spec.LoadCellBrand, spec.LoadCellSize,
		spec.LoadCellSensitivity, spec.NumberOfLoadCells, spec.RollDims, spec.AdjustmentType,
		spec.BilletType, spec.BilletWeight, string(history), pos); err != nil {
		return fmt.Errorf("insert specification %s: %w", spec.ID, err)
	}
	for i, note := range spec.Notes {
		if err := w.exec(`INSERT INTO spec_notes (site_id, spec_id, id, content, author, timestamp, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			siteID, spec.ID, note.ID, note.Content, note.Author, formatTime(note.Timestamp), i); err != nil {
			return fmt.Errorf("insert note %s for specification %s: %w", note.ID, spec.ID, err)
		}
	}
	return nil
}

// DeleteSite removes a site row; foreign keys cascade to every child table.
func DeleteSite(ctx context.Context, tx Execer, d Dialect, id string) error {
	if _, err := tx.ExecContext(ctx, d.Rebind(`DELETE FROM sites WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete site %s: %w", id, err)
	}
	return nil
}

// LoadSites reads every stored site. Each collection is fetched by its own
// site-scoped query; the result is not yet normalised.
func LoadSites(ctx context.Context, q Queryer, d Dialect) ([]domain.Site, error) {
	sites, err := loadSiteRows(ctx, q, d)
	if err != nil {
		return nil, err
	}
	for i := range sites {
		if err := loadChildren(ctx, q, d, &sites[i]); err != nil {
			return nil, err
		}
	}
	return sites, nil
}

func loadSiteRows(ctx context.Context, q Queryer, d Dialect) ([]domain.Site, error) {
	rows, err := q.QueryContext(ctx, d.Rebind(`SELECT id, name, customer, location, type, type_detail,
		contact_name, contact_position, contact_email, contact_phone1, contact_phone2,
		logo, active, created_at, updated_at FROM sites ORDER BY created_at, id`))
	if err != nil {
		return nil, fmt.Errorf("select sites: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var sites []domain.Site
	for rows.Next() {
		var s domain.Site
		var created, updated string
		if err := rows.Scan(&s.ID, &s.Name, &s.Customer, &s.Location, &s.Type, &s.TypeDetail,
			&s.Contact.Name, &s.Contact.Position, &s.Contact.Email, &s.Contact.Phone1, &s.Contact.Phone2,
			&s.Logo, &s.Active, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		s.CreatedAt = parseTime(created)
		s.UpdatedAt = parseTime(updated)
		sites = append(sites, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return sites, nil
}

func loadChildren(ctx context.Context, q Queryer, d Dialect, site *domain.Site) error {
	history, err := loadHistory(ctx, q, d, site.ID)
	if err != nil {
		return err
	}
	reports, err := loadReports(ctx, q, d, site.ID)
	if err != nil {
		return err
	}
	records, err := loadRecords(ctx, q, d, site.ID)
	if err != nil {
		return err
	}
	site.ServiceData = []domain.MirrorRecord{}
	site.RollerData = []domain.MirrorRecord{}
	for _, rec := range records {
		rec.History = nonNilHistory(history[rec.ID])
		rec.Reports = reports[rec.ID]
		if rec.Reports == nil {
			rec.Reports = []domain.Report{}
		}
		list := site.Records(rec.View)
		*list = append(*list, rec)
	}
	specNotes, err := loadSpecNotes(ctx, q, d, site.ID)
	if err != nil {
		return err
	}
	if site.SpecData, err = loadSpecifications(ctx, q, d, site.ID, specNotes); err != nil {
		return err
	}
	if site.Notes, err = loadSiteNotes(ctx, q, d, site.ID); err != nil {
		return err
	}
	if site.Issues, err = loadIssues(ctx, q, d, site.ID); err != nil {
		return err
	}
	return nil
}

func loadRecords(ctx context.Context, q Queryer, d Dialect, siteID string) ([]domain.MirrorRecord, error) {
	rows, err := q.QueryContext(ctx, d.Rebind(`SELECT id, physical_asset_id, view, name, code, weigher,
		active, last_cal, frequency, due_date, remaining, op_status, op_note
		FROM assets WHERE site_id = ? ORDER BY position`), siteID)
	if err != nil {
		return nil, fmt.Errorf("select assets for site %s: %w", siteID, err)
	}
	defer func() { _ = rows.Close() }()
	var out []domain.MirrorRecord
	for rows.Next() {
		var rec domain.MirrorRecord
		var physical sql.NullString
		var view, opStatus string
		if err := rows.Scan(&rec.ID, &physical, &view, &rec.Name, &rec.Code, &rec.Weigher,
			&rec.Active, &rec.LastCal, &rec.Frequency, &rec.DueDate, &rec.Remaining,
			&opStatus, &rec.OpNote); err != nil {
			return nil, fmt.Errorf("scan asset: %w", err)
		}
		rec.PhysicalAssetID = physical.String
		rec.View = domain.View(view)
		rec.OpStatus = domain.OpStatus(opStatus)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assets: %w", err)
	}
	return out, nil
}

func loadHistory(ctx context.Context, q Queryer, d Dialect, siteID string) (map[string][]domain.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx, d.Rebind(`SELECT asset_id, date, action, author
		FROM asset_history WHERE site_id = ? ORDER BY asset_id, seq`), siteID)
	if err != nil {
		return nil, fmt.Errorf("select asset history for site %s: %w", siteID, err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string][]domain.HistoryEntry)
	for rows.Next() {
		var assetID, date string
		var h domain.HistoryEntry
		if err := rows.Scan(&assetID, &date, &h.Action, &h.User); err != nil {
			return nil, fmt.Errorf("scan asset history: %w", err)
		}
		h.Date = parseTime(date)
		out[assetID] = append(out[assetID], h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate asset history: %w", err)
	}
	return out, nil
}

func loadReports(ctx context.Context, q Queryer, d Dialect, siteID string) (map[string][]domain.Report, error) {
	rows, err := q.QueryContext(ctx, d.Rebind(`SELECT asset_id, id, date, file_name, attachment, payload
		FROM reports WHERE site_id = ? ORDER BY asset_id, position`), siteID)
	if err != nil {
		return nil, fmt.Errorf("select reports for site %s: %w", siteID, err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string][]domain.Report)
	for rows.Next() {
		var assetID string
		var r domain.Report
		var payload sql.NullString
		if err := rows.Scan(&assetID, &r.ID, &r.Date, &r.FileName, &r.Attachment, &payload); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		if payload.Valid && payload.String != "" {
			r.Data = json.RawMessage(payload.String)
		}
		out[assetID] = append(out[assetID], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return out, nil
}

func loadSpecNotes(ctx context.Context, q Queryer, d Dialect, siteID string) (map[string][]domain.Note, error) {
	rows, err := q.QueryContext(ctx, d.Rebind(`SELECT spec_id, id, content, author, timestamp
		FROM spec_notes WHERE site_id = ? ORDER BY spec_id, position`), siteID)
	if err != nil {
		return nil, fmt.Errorf("select specification notes for site %s: %w", siteID, err)
	}
	defer func() { _ = rows.Close() }()
	out := make(map[string][]domain.Note)
	for rows.Next() {
		var specID, ts string
		var n domain.Note
		if err := rows.Scan(&specID, &n.ID, &n.Content, &n.Author, &ts); err != nil {
			return nil, fmt.Errorf("scan specification note: %w", err)
		}
		n.Parent = domain.SpecNoteParent(specID)
		n.Timestamp = parseTime(ts)
		out[specID] = append(out[specID], n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate specification notes: %w", err)
	}
	return out, nil
}

func loadSpecifications(ctx context.Context, q Queryer, d Dialect, siteID string, notes map[string][]domain.Note) ([]domain.Specification, error) {
	rows, err := q.QueryContext(ctx, d.Rebind(`SELECT id, weigher, alt_code, description, scale_type,
		integrator_controller, speed_sensor_type, load_cell_brand, load_cell_size, load_cell_sensitivity,
		number_of_load_cells, roll_dims, adjustment_type, billet_type, billet_weight, history
		FROM specifications WHERE site_id = ? ORDER BY position`), siteID)
	if err != nil {
		return nil, fmt.Errorf("select specifications for site %s: %w", siteID, err)
	}
	defer func() { _ = rows.Close() }()
	out := []domain.Specification{}
	for rows.Next() {
		var s domain.Specification
		var history string
		if err := rows.Scan(&s.ID, &s.Weigher, &s.AltCode, &s.Description, &s.ScaleType,
			&s.IntegratorController, &s.SpeedSensorType, &s.LoadCellBrand, &s.LoadCellSize,
			&s.LoadCellSensitivity, &s.NumberOfLoadCells, &s.RollDims, &s.AdjustmentType,
			&s.BilletType, &s.BilletWeight, &history); err != nil {
			return nil, fmt.Errorf("scan specification: %w", err)
		}
		if history != "" {
			if err := json.Unmarshal([]byte(history), &s.History); err != nil {
				return nil, fmt.Errorf("decode history for specification %s: %w", s.ID, err)
			}
		}
		s.History = nonNilHistory(s.History)
		s.Notes = notes[s.ID]
		if s.Notes == nil {
			s.Notes = []domain.Note{}
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate specifications: %w", err)
	}
	return out, nil
}

func loadSiteNotes(ctx context.Context, q Queryer, d Dialect, siteID string) ([]domain.Note, error) {
	rows, err := q.QueryContext(ctx, d.Rebind(`SELECT id, content, author, timestamp, archived
		FROM notes WHERE site_id = ? ORDER BY position`), siteID)
	if err != nil {
		return nil, fmt.Errorf("select notes for site %s: %w", siteID, err)
	}
	defer func() { _ = rows.Close() }()
	out := []domain.Note{}
	for rows.Next() {
		var n domain.Note
		var ts string
		if err := rows.Scan(&n.ID, &n.Content, &n.Author, &ts, &n.Archived); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		n.Parent = domain.SiteNoteParent(siteID)
		n.Timestamp = parseTime(ts)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return out, nil
}

func loadIssues(ctx context.Context, q Queryer, d Dialect, siteID string) ([]domain.Issue, error) {
	rows, err := q.QueryContext(ctx, d.Rebind(`SELECT id, title, description, priority, asset_id,
		asset_name, status, created_at, completed_at
		FROM issues WHERE site_id = ? ORDER BY position`), siteID)
	if err != nil {
		return nil, fmt.Errorf("select issues for site %s: %w", siteID, err)
	}
	defer func() { _ = rows.Close() }()
	out := []domain.Issue{}
	for rows.Next() {
		var is domain.Issue
		var status, created string
		var completed sql.NullString
		if err := rows.Scan(&is.ID, &is.Title, &is.Description, &is.Priority, &is.AssetID,
			&is.AssetName, &status, &created, &completed); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		is.Status = domain.IssueStatus(status)
		is.CreatedAt = parseTime(created)
		if completed.Valid && completed.String != "" {
			t := parseTime(completed.String)
			is.CompletedAt = &t
		}
		out = append(out, is)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issues: %w", err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNilHistory(h []domain.HistoryEntry) []domain.HistoryEntry {
	if h == nil {
		return []domain.HistoryEntry{}
	}
	return h
}
