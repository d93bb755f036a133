// Package postgres provides the Postgres-backed Gateway.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/stravasync/internal/domain"
)

var _ domain.Gateway = (*Repository)(nil)

// Repository provides Postgres-backed persistence for athletes, credentials,
// activities and pending webhook events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activityColumns = `activity_id, athlete_id, name, distance, moving_time, elapsed_time, total_elevation_gain,
        elev_high, elev_low, sport_type, start_date, start_date_local, timezone, start_lat, start_lng, end_lat, end_lng,
        polyline, trainer, commute, manual, private, flagged, hide_from_home, workout_type, average_speed, max_speed,
        average_watts, device_watts, max_watts, weighted_avg_watts, gear_id, synced_at`

const activityValues = `$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,$31,$32,$33`

const activityAssignments = `athlete_id=EXCLUDED.athlete_id, name=EXCLUDED.name, distance=EXCLUDED.distance,
        moving_time=EXCLUDED.moving_time, elapsed_time=EXCLUDED.elapsed_time, total_elevation_gain=EXCLUDED.total_elevation_gain,
        elev_high=EXCLUDED.elev_high, elev_low=EXCLUDED.elev_low, sport_type=EXCLUDED.sport_type, start_date=EXCLUDED.start_date,
        start_date_local=EXCLUDED.start_date_local, timezone=EXCLUDED.timezone, start_lat=EXCLUDED.start_lat,
        start_lng=EXCLUDED.start_lng, end_lat=EXCLUDED.end_lat, end_lng=EXCLUDED.end_lng, polyline=EXCLUDED.polyline,
        trainer=EXCLUDED.trainer, commute=EXCLUDED.commute, manual=EXCLUDED.manual, private=EXCLUDED.private,
        flagged=EXCLUDED.flagged, hide_from_home=EXCLUDED.hide_from_home, workout_type=EXCLUDED.workout_type,
        average_speed=EXCLUDED.average_speed, max_speed=EXCLUDED.max_speed, average_watts=EXCLUDED.average_watts,
        device_watts=EXCLUDED.device_watts, max_watts=EXCLUDED.max_watts, weighted_avg_watts=EXCLUDED.weighted_avg_watts,
        gear_id=EXCLUDED.gear_id, synced_at=EXCLUDED.synced_at`

// Rows observed earlier than the stored copy never overwrite it.
const upsertActivity = `INSERT INTO activities (` + activityColumns + `) VALUES (` + activityValues + `)
        ON CONFLICT (activity_id) DO UPDATE SET ` + activityAssignments + `
        WHERE activities.synced_at <= EXCLUDED.synced_at`

// GetCredential returns the stored credential or nil when the athlete is unknown.
func (r *Repository) GetCredential(ctx context.Context, athleteID int64) (*domain.Credential, error) {
	const query = `SELECT athlete_id, access_token, refresh_token, expires_at FROM credentials WHERE athlete_id=$1`

	var c domain.Credential
	err := r.pool.QueryRow(ctx, query, athleteID).Scan(&c.AthleteID, &c.AccessToken, &c.RefreshToken, &c.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// SetCredential replaces the token triple in a single statement.
func (r *Repository) SetCredential(ctx context.Context, c domain.Credential) error {
	const stmt = `UPDATE credentials SET access_token=$2, refresh_token=$3, expires_at=$4 WHERE athlete_id=$1`

	tag, err := r.pool.Exec(ctx, stmt, c.AthleteID, c.AccessToken, c.RefreshToken, c.ExpiresAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCredentialNotFound
	}
	return nil
}

// GetAthlete returns the stored profile or nil.
func (r *Repository) GetAthlete(ctx context.Context, athleteID int64) (*domain.Athlete, error) {
	const query = `SELECT athlete_id, username, firstname, lastname, bio, city, state, country, sex, profile_medium, weight, created_at, updated_at
        FROM athletes WHERE athlete_id=$1`

	var a domain.Athlete
	err := r.pool.QueryRow(ctx, query, athleteID).Scan(&a.ID, &a.Username, &a.Firstname, &a.Lastname, &a.Bio, &a.City,
		&a.State, &a.Country, &a.Sex, &a.ProfileMedium, &a.Weight, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// RegisterAthlete upserts the profile and credential inside a single transaction.
func (r *Repository) RegisterAthlete(ctx context.Context, athlete domain.Athlete, c domain.Credential) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()
	createdAt := athlete.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	const insertAthlete = `INSERT INTO athletes (athlete_id, username, firstname, lastname, bio, city, state, country, sex, profile_medium, weight, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        ON CONFLICT (athlete_id) DO UPDATE SET username=EXCLUDED.username, firstname=EXCLUDED.firstname,
        lastname=EXCLUDED.lastname, bio=EXCLUDED.bio, city=EXCLUDED.city, state=EXCLUDED.state, country=EXCLUDED.country,
        sex=EXCLUDED.sex, profile_medium=EXCLUDED.profile_medium, weight=EXCLUDED.weight, updated_at=EXCLUDED.updated_at`

	if _, err = tx.Exec(ctx, insertAthlete, athlete.ID, athlete.Username, athlete.Firstname, athlete.Lastname, athlete.Bio,
		athlete.City, athlete.State, athlete.Country, athlete.Sex, athlete.ProfileMedium, athlete.Weight, createdAt, now); err != nil {
		return err
	}

	const insertCredential = `INSERT INTO credentials (athlete_id, access_token, refresh_token, expires_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (athlete_id) DO UPDATE SET access_token=EXCLUDED.access_token,
        refresh_token=EXCLUDED.refresh_token, expires_at=EXCLUDED.expires_at`

	if _, err = tx.Exec(ctx, insertCredential, athlete.ID, c.AccessToken, c.RefreshToken, c.ExpiresAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetActivity retrieves an activity by provider id.
func (r *Repository) GetActivity(ctx context.Context, id int64) (*domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE activity_id=$1`

	a, err := scanActivity(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// UpsertActivity inserts or refreshes one activity.
func (r *Repository) UpsertActivity(ctx context.Context, a domain.Activity) error {
	tag, err := r.pool.Exec(ctx, upsertActivity, activityArgs(a)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSuperseded
	}
	return nil
}

// BulkUpsertActivities writes every activity in one transaction.
func (r *Repository) BulkUpsertActivities(ctx context.Context, activities []domain.Activity) (err error) {
	if len(activities) == 0 {
		return nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	batch := &pgx.Batch{}
	for _, a := range activities {
		batch.Queue(upsertActivity, activityArgs(a)...)
	}
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("bulk upsert %d activities: %w", len(activities), err)
	}
	return tx.Commit(ctx)
}

// UpdateActivity overwrites an existing row and never inserts.
func (r *Repository) UpdateActivity(ctx context.Context, a domain.Activity) error {
	const stmt = `UPDATE activities SET athlete_id=$2, name=$3, distance=$4, moving_time=$5, elapsed_time=$6,
        total_elevation_gain=$7, elev_high=$8, elev_low=$9, sport_type=$10, start_date=$11, start_date_local=$12,
        timezone=$13, start_lat=$14, start_lng=$15, end_lat=$16, end_lng=$17, polyline=$18, trainer=$19, commute=$20,
        manual=$21, private=$22, flagged=$23, hide_from_home=$24, workout_type=$25, average_speed=$26, max_speed=$27,
        average_watts=$28, device_watts=$29, max_watts=$30, weighted_avg_watts=$31, gear_id=$32, synced_at=$33
        WHERE activity_id=$1`

	tag, err := r.pool.Exec(ctx, stmt, activityArgs(a)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrActivityNotFound
	}
	return nil
}

// DeleteActivity removes the row. Deleting a missing row is not an error.
func (r *Repository) DeleteActivity(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM activities WHERE activity_id=$1`, id)
	return err
}

// ListActivitiesByAthlete returns the athlete's activities ordered by local start date.
func (r *Repository) ListActivitiesByAthlete(ctx context.Context, athleteID int64) ([]domain.Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE athlete_id=$1 ORDER BY start_date_local, activity_id`

	rows, err := r.pool.Query(ctx, query, athleteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// CreateWebhookEvent enqueues an event and stamps its id and claim time.
func (r *Repository) CreateWebhookEvent(ctx context.Context, e *domain.WebhookEvent) error {
	updates, err := json.Marshal(e.Updates)
	if err != nil {
		return err
	}
	if e.Updates == nil {
		updates = []byte("{}")
	}

	const stmt = `INSERT INTO webhook_events (object_type, object_id, aspect_type, updates, owner_id, subscription_id, event_time)
        VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING event_id, claimed_at`

	return r.pool.QueryRow(ctx, stmt, e.ObjectType, e.ObjectID, e.AspectType, updates, e.OwnerID, e.SubscriptionID, e.EventTime).
		Scan(&e.ID, &e.ClaimedAt)
}

// DeleteWebhookEvent acknowledges a processed event.
func (r *Repository) DeleteWebhookEvent(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM webhook_events WHERE event_id=$1`, id)
	return err
}

// WebhookEventExists reports whether the event has not been acknowledged yet.
func (r *Repository) WebhookEventExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM webhook_events WHERE event_id=$1)`, id).Scan(&exists)
	return exists, err
}

// ClaimStaleWebhookEvents locks events whose claim is older than staleBefore, re-stamps
// them and returns them. Concurrent sweepers skip each other's rows.
func (r *Repository) ClaimStaleWebhookEvents(ctx context.Context, staleBefore time.Time, limit int) (events []domain.WebhookEvent, err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const query = `SELECT event_id, object_type, object_id, aspect_type, updates, owner_id, subscription_id, event_time
        FROM webhook_events
        WHERE claimed_at < $1
        ORDER BY event_id
        LIMIT $2
        FOR UPDATE SKIP LOCKED`

	rows, err := tx.Query(ctx, query, staleBefore, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0)
	for rows.Next() {
		var (
			e       domain.WebhookEvent
			updates []byte
		)
		if err = rows.Scan(&e.ID, &e.ObjectType, &e.ObjectID, &e.AspectType, &updates, &e.OwnerID, &e.SubscriptionID, &e.EventTime); err != nil {
			rows.Close()
			return nil, err
		}
		if err = json.Unmarshal(updates, &e.Updates); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode updates for event %d: %w", e.ID, err)
		}
		events = append(events, e)
		ids = append(ids, e.ID)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		tx.Rollback(ctx)
		return nil, nil
	}

	claimedAt := time.Now().UTC()
	if _, err = tx.Exec(ctx, `UPDATE webhook_events SET claimed_at = $2 WHERE event_id = ANY($1)`, ids, claimedAt); err != nil {
		return nil, err
	}
	for i := range events {
		events[i].ClaimedAt = claimedAt
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (domain.Activity, error) {
	var (
		a                                  domain.Activity
		startLat, startLng, endLat, endLng *float64
	)
	err := row.Scan(&a.ID, &a.AthleteID, &a.Name, &a.Distance, &a.MovingTime, &a.ElapsedTime, &a.TotalElevationGain,
		&a.ElevHigh, &a.ElevLow, &a.SportType, &a.StartDate, &a.StartDateLocal, &a.Timezone, &startLat, &startLng, &endLat, &endLng,
		&a.Polyline, &a.Trainer, &a.Commute, &a.Manual, &a.Private, &a.Flagged, &a.HideFromHome, &a.WorkoutType, &a.AverageSpeed,
		&a.MaxSpeed, &a.AverageWatts, &a.DeviceWatts, &a.MaxWatts, &a.WeightedAvgWatts, &a.GearID, &a.SyncedAt)
	if err != nil {
		return domain.Activity{}, err
	}
	a.StartLatLng = toLatLng(startLat, startLng)
	a.EndLatLng = toLatLng(endLat, endLng)
	a.StartDate = a.StartDate.UTC()
	a.StartDateLocal = a.StartDateLocal.UTC()
	a.SyncedAt = a.SyncedAt.UTC()
	return a, nil
}

func activityArgs(a domain.Activity) []any {
	startLat, startLng := fromLatLng(a.StartLatLng)
	endLat, endLng := fromLatLng(a.EndLatLng)
	return []any{
		a.ID, a.AthleteID, a.Name, a.Distance, a.MovingTime, a.ElapsedTime, a.TotalElevationGain,
		a.ElevHigh, a.ElevLow, a.SportType, a.StartDate, a.StartDateLocal, a.Timezone, startLat, startLng, endLat, endLng,
		a.Polyline, a.Trainer, a.Commute, a.Manual, a.Private, a.Flagged, a.HideFromHome, a.WorkoutType, a.AverageSpeed,
		a.MaxSpeed, a.AverageWatts, a.DeviceWatts, a.MaxWatts, a.WeightedAvgWatts, a.GearID, a.SyncedAt,
	}
}

func toLatLng(lat, lng *float64) *domain.LatLng {
	if lat == nil || lng == nil {
		return nil
	}
	return &domain.LatLng{Lat: *lat, Lng: *lng}
}

func fromLatLng(p *domain.LatLng) (any, any) {
	if p == nil {
		return nil, nil
	}
	return p.Lat, p.Lng
}
