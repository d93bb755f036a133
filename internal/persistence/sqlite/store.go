// Package sqlite provides a single-file Gateway for local runs of syncctl.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"example.com/stravasync/internal/domain"
)

var _ domain.Gateway = (*Store)(nil)

// Store implements domain.Gateway on SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database file and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps bulk upserts from tripping over SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// synced_at and claimed_at are unix nanoseconds so comparisons stay numeric.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS athletes (
		athlete_id INTEGER PRIMARY KEY,
		username TEXT NOT NULL DEFAULT '',
		firstname TEXT NOT NULL DEFAULT '',
		lastname TEXT NOT NULL DEFAULT '',
		bio TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		sex TEXT NOT NULL DEFAULT '',
		profile_medium TEXT NOT NULL DEFAULT '',
		weight REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS credentials (
		athlete_id INTEGER PRIMARY KEY REFERENCES athletes(athlete_id) ON DELETE CASCADE,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		expires_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activities (
		activity_id INTEGER PRIMARY KEY,
		athlete_id INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		distance REAL NOT NULL DEFAULT 0,
		moving_time INTEGER NOT NULL DEFAULT 0,
		elapsed_time INTEGER NOT NULL DEFAULT 0,
		total_elevation_gain REAL NOT NULL DEFAULT 0,
		elev_high REAL NOT NULL DEFAULT 0,
		elev_low REAL NOT NULL DEFAULT 0,
		sport_type TEXT NOT NULL DEFAULT '',
		start_date TIMESTAMP NOT NULL,
		start_date_local TIMESTAMP NOT NULL,
		timezone TEXT NOT NULL DEFAULT '',
		start_lat REAL,
		start_lng REAL,
		end_lat REAL,
		end_lng REAL,
		polyline TEXT NOT NULL DEFAULT '',
		trainer BOOLEAN NOT NULL DEFAULT 0,
		commute BOOLEAN NOT NULL DEFAULT 0,
		manual BOOLEAN NOT NULL DEFAULT 0,
		private BOOLEAN NOT NULL DEFAULT 0,
		flagged BOOLEAN NOT NULL DEFAULT 0,
		hide_from_home BOOLEAN NOT NULL DEFAULT 0,
		workout_type INTEGER NOT NULL DEFAULT 0,
		average_speed REAL NOT NULL DEFAULT 0,
		max_speed REAL NOT NULL DEFAULT 0,
		average_watts REAL NOT NULL DEFAULT 0,
		device_watts BOOLEAN NOT NULL DEFAULT 0,
		max_watts INTEGER NOT NULL DEFAULT 0,
		weighted_avg_watts INTEGER NOT NULL DEFAULT 0,
		gear_id TEXT NOT NULL DEFAULT '',
		synced_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_activities_athlete ON activities(athlete_id, start_date_local);

	CREATE TABLE IF NOT EXISTS webhook_events (
		event_id INTEGER PRIMARY KEY AUTOINCREMENT,
		object_type TEXT NOT NULL,
		object_id INTEGER NOT NULL,
		aspect_type TEXT NOT NULL,
		updates TEXT NOT NULL DEFAULT '{}',
		owner_id INTEGER NOT NULL,
		subscription_id INTEGER NOT NULL DEFAULT 0,
		event_time INTEGER NOT NULL DEFAULT 0,
		claimed_at INTEGER NOT NULL
	);
	`

	_, err := db.Exec(schema)
	return err
}

const activityColumns = `activity_id, athlete_id, name, distance, moving_time, elapsed_time, total_elevation_gain,
	elev_high, elev_low, sport_type, start_date, start_date_local, timezone, start_lat, start_lng, end_lat, end_lng,
	polyline, trainer, commute, manual, private, flagged, hide_from_home, workout_type, average_speed, max_speed,
	average_watts, device_watts, max_watts, weighted_avg_watts, gear_id, synced_at`

var (
	activityNames = strings.Fields(strings.ReplaceAll(activityColumns, ",", " "))

	upsertActivity = `INSERT INTO activities (` + activityColumns + `) VALUES (` + placeholders(len(activityNames)) + `)
	ON CONFLICT(activity_id) DO UPDATE SET ` + assignments("excluded.") + `
	WHERE activities.synced_at <= excluded.synced_at`

	updateActivity = `UPDATE activities SET ` + assignments("") + ` WHERE activity_id = ?1`
)

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("?%d", i+1)
	}
	return strings.Join(parts, ",")
}

// assignments renders "col=<prefix>col" for an upsert, or "col=?N" when prefix is empty.
func assignments(prefix string) string {
	parts := make([]string, 0, len(activityNames)-1)
	for i, name := range activityNames[1:] {
		if prefix == "" {
			parts = append(parts, fmt.Sprintf("%s=?%d", name, i+2))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%s%s", name, prefix, name))
	}
	return strings.Join(parts, ", ")
}

func (s *Store) GetCredential(ctx context.Context, athleteID int64) (*domain.Credential, error) {
	var c domain.Credential
	err := s.db.QueryRowContext(ctx, `SELECT athlete_id, access_token, refresh_token, expires_at FROM credentials WHERE athlete_id = ?`, athleteID).
		Scan(&c.AthleteID, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}
	return &c, nil
}

func (s *Store) SetCredential(ctx context.Context, c domain.Credential) error {
	res, err := s.db.ExecContext(ctx, `UPDATE credentials SET access_token = ?, refresh_token = ?, expires_at = ? WHERE athlete_id = ?`,
		c.AccessToken, c.RefreshToken, c.ExpiresAt, c.AthleteID)
	if err != nil {
		return fmt.Errorf("failed to set credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrCredentialNotFound
	}
	return nil
}

func (s *Store) GetAthlete(ctx context.Context, athleteID int64) (*domain.Athlete, error) {
	var a domain.Athlete
	err := s.db.QueryRowContext(ctx, `SELECT athlete_id, username, firstname, lastname, bio, city, state, country, sex,
		profile_medium, weight, created_at, updated_at FROM athletes WHERE athlete_id = ?`, athleteID).
		Scan(&a.ID, &a.Username, &a.Firstname, &a.Lastname, &a.Bio, &a.City, &a.State, &a.Country, &a.Sex,
			&a.ProfileMedium, &a.Weight, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get athlete: %w", err)
	}
	return &a, nil
}

func (s *Store) RegisterAthlete(ctx context.Context, athlete domain.Athlete, c domain.Credential) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	createdAt := athlete.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO athletes (athlete_id, username, firstname, lastname, bio, city, state, country,
		sex, profile_medium, weight, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(athlete_id) DO UPDATE SET username=excluded.username, firstname=excluded.firstname,
		lastname=excluded.lastname, bio=excluded.bio, city=excluded.city, state=excluded.state, country=excluded.country,
		sex=excluded.sex, profile_medium=excluded.profile_medium, weight=excluded.weight, updated_at=excluded.updated_at`,
		athlete.ID, athlete.Username, athlete.Firstname, athlete.Lastname, athlete.Bio, athlete.City, athlete.State,
		athlete.Country, athlete.Sex, athlete.ProfileMedium, athlete.Weight, createdAt, now); err != nil {
		return fmt.Errorf("failed to upsert athlete: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO credentials (athlete_id, access_token, refresh_token, expires_at) VALUES (?,?,?,?)
		ON CONFLICT(athlete_id) DO UPDATE SET access_token=excluded.access_token, refresh_token=excluded.refresh_token,
		expires_at=excluded.expires_at`, athlete.ID, c.AccessToken, c.RefreshToken, c.ExpiresAt); err != nil {
		return fmt.Errorf("failed to upsert credential: %w", err)
	}

	return tx.Commit()
}

func (s *Store) GetActivity(ctx context.Context, id int64) (*domain.Activity, error) {
	a, err := scanActivity(s.db.QueryRowContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE activity_id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get activity: %w", err)
	}
	return &a, nil
}

func (s *Store) UpsertActivity(ctx context.Context, a domain.Activity) error {
	res, err := s.db.ExecContext(ctx, upsertActivity, activityArgs(a)...)
	if err != nil {
		return fmt.Errorf("failed to upsert activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to upsert activity: %w", err)
	}
	if n == 0 {
		return domain.ErrSuperseded
	}
	return nil
}

func (s *Store) BulkUpsertActivities(ctx context.Context, activities []domain.Activity) error {
	if len(activities) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertActivity)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range activities {
		if _, err := stmt.ExecContext(ctx, activityArgs(a)...); err != nil {
			return fmt.Errorf("failed to upsert activity %d: %w", a.ID, err)
		}
	}
	return tx.Commit()
}

func (s *Store) UpdateActivity(ctx context.Context, a domain.Activity) error {
	res, err := s.db.ExecContext(ctx, updateActivity, activityArgs(a)...)
	if err != nil {
		return fmt.Errorf("failed to update activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

func (s *Store) DeleteActivity(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM activities WHERE activity_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete activity: %w", err)
	}
	return nil
}

func (s *Store) ListActivitiesByAthlete(ctx context.Context, athleteID int64) ([]domain.Activity, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+activityColumns+` FROM activities WHERE athlete_id = ? ORDER BY start_date_local, activity_id`, athleteID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activities: %w", err)
	}
	defer rows.Close()

	var activities []domain.Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (s *Store) CreateWebhookEvent(ctx context.Context, e *domain.WebhookEvent) error {
	updates := []byte("{}")
	if e.Updates != nil {
		var err error
		if updates, err = json.Marshal(e.Updates); err != nil {
			return err
		}
	}
	claimedAt := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `INSERT INTO webhook_events (object_type, object_id, aspect_type, updates, owner_id,
		subscription_id, event_time, claimed_at) VALUES (?,?,?,?,?,?,?,?)`,
		e.ObjectType, e.ObjectID, e.AspectType, string(updates), e.OwnerID, e.SubscriptionID, e.EventTime, claimedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to create webhook event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = id
	e.ClaimedAt = claimedAt
	return nil
}

func (s *Store) DeleteWebhookEvent(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM webhook_events WHERE event_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete webhook event: %w", err)
	}
	return nil
}

func (s *Store) WebhookEventExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM webhook_events WHERE event_id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up webhook event: %w", err)
	}
	return exists, nil
}

func (s *Store) ClaimStaleWebhookEvents(ctx context.Context, staleBefore time.Time, limit int) ([]domain.WebhookEvent, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT event_id, object_type, object_id, aspect_type, updates, owner_id, subscription_id, event_time
		FROM webhook_events WHERE claimed_at < ? ORDER BY event_id LIMIT ?`, staleBefore.UnixNano(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale events: %w", err)
	}

	var events []domain.WebhookEvent
	for rows.Next() {
		var (
			e       domain.WebhookEvent
			updates string
		)
		if err := rows.Scan(&e.ID, &e.ObjectType, &e.ObjectID, &e.AspectType, &updates, &e.OwnerID, &e.SubscriptionID, &e.EventTime); err != nil {
			rows.Close()
			return nil, err
		}
		if err := json.Unmarshal([]byte(updates), &e.Updates); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to decode updates for event %d: %w", e.ID, err)
		}
		events = append(events, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	claimedAt := time.Now().UTC()
	for i := range events {
		if _, err := tx.ExecContext(ctx, `UPDATE webhook_events SET claimed_at = ? WHERE event_id = ?`, claimedAt.UnixNano(), events[i].ID); err != nil {
			return nil, err
		}
		events[i].ClaimedAt = claimedAt
	}
	return events, tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (domain.Activity, error) {
	var (
		a                                  domain.Activity
		startLat, startLng, endLat, endLng sql.NullFloat64
		syncedAt                           int64
	)
	err := row.Scan(&a.ID, &a.AthleteID, &a.Name, &a.Distance, &a.MovingTime, &a.ElapsedTime, &a.TotalElevationGain,
		&a.ElevHigh, &a.ElevLow, &a.SportType, &a.StartDate, &a.StartDateLocal, &a.Timezone, &startLat, &startLng, &endLat, &endLng,
		&a.Polyline, &a.Trainer, &a.Commute, &a.Manual, &a.Private, &a.Flagged, &a.HideFromHome, &a.WorkoutType, &a.AverageSpeed,
		&a.MaxSpeed, &a.AverageWatts, &a.DeviceWatts, &a.MaxWatts, &a.WeightedAvgWatts, &a.GearID, &syncedAt)
	if err != nil {
		return domain.Activity{}, err
	}
	if startLat.Valid && startLng.Valid {
		a.StartLatLng = &domain.LatLng{Lat: startLat.Float64, Lng: startLng.Float64}
	}
	if endLat.Valid && endLng.Valid {
		a.EndLatLng = &domain.LatLng{Lat: endLat.Float64, Lng: endLng.Float64}
	}
	a.StartDate = a.StartDate.UTC()
	a.StartDateLocal = a.StartDateLocal.UTC()
	a.SyncedAt = time.Unix(0, syncedAt).UTC()
	return a, nil
}

func activityArgs(a domain.Activity) []any {
	var startLat, startLng, endLat, endLng sql.NullFloat64
	if a.StartLatLng != nil {
		startLat = sql.NullFloat64{Float64: a.StartLatLng.Lat, Valid: true}
		startLng = sql.NullFloat64{Float64: a.StartLatLng.Lng, Valid: true}
	}
	if a.EndLatLng != nil {
		endLat = sql.NullFloat64{Float64: a.EndLatLng.Lat, Valid: true}
		endLng = sql.NullFloat64{Float64: a.EndLatLng.Lng, Valid: true}
	}
	return []any{
		a.ID, a.AthleteID, a.Name, a.Distance, a.MovingTime, a.ElapsedTime, a.TotalElevationGain,
		a.ElevHigh, a.ElevLow, a.SportType, a.StartDate.UTC(), a.StartDateLocal.UTC(), a.Timezone, startLat, startLng, endLat, endLng,
		a.Polyline, a.Trainer, a.Commute, a.Manual, a.Private, a.Flagged, a.HideFromHome, a.WorkoutType, a.AverageSpeed,
		a.MaxSpeed, a.AverageWatts, a.DeviceWatts, a.MaxWatts, a.WeightedAvgWatts, a.GearID, a.SyncedAt.UnixNano(),
	}
}
