package api

import (
	"time"

	"example.com/stravasync/internal/domain"
)

// WebhookResponse echoes the received event.
type WebhookResponse struct {
	Webhook domain.WebhookEvent `json:"webhook"`
}

// AthleteResponse wraps an athlete profile.
type AthleteResponse struct {
	Athlete domain.Athlete `json:"athlete"`
}

// BackfillResponse acknowledges a dispatched backfill.
type BackfillResponse struct {
	TaskID    string `json:"task_id"`
	AthleteID int64  `json:"athlete_id"`
}

// ActivityView exposes a stored activity.
type ActivityView struct {
	ID                 int64      `json:"id"`
	AthleteID          int64      `json:"athlete_id"`
	Name               string     `json:"name"`
	Distance           float64    `json:"distance"`
	MovingTime         int        `json:"moving_time"`
	ElapsedTime        int        `json:"elapsed_time"`
	TotalElevationGain float64    `json:"total_elevation_gain"`
	ElevHigh           float64    `json:"elev_high"`
	ElevLow            float64    `json:"elev_low"`
	SportType          string     `json:"sport_type"`
	StartDate          time.Time  `json:"start_date"`
	StartDateLocal     time.Time  `json:"start_date_local"`
	Timezone           string     `json:"timezone"`
	StartLatLng        []float64  `json:"start_latlng"`
	EndLatLng          []float64  `json:"end_latlng"`
	Polyline           string     `json:"polyline"`
	Trainer            bool       `json:"trainer"`
	Commute            bool       `json:"commute"`
	Manual             bool       `json:"manual"`
	Private            bool       `json:"private"`
	Flagged            bool       `json:"flagged"`
	HideFromHome       bool       `json:"hide_from_home"`
	WorkoutType        int        `json:"workout_type"`
	AverageSpeed       float64    `json:"average_speed"`
	MaxSpeed           float64    `json:"max_speed"`
	AverageWatts       float64    `json:"average_watts"`
	DeviceWatts        bool       `json:"device_watts"`
	MaxWatts           int        `json:"max_watts"`
	WeightedAvgWatts   int        `json:"weighted_average_watts"`
	GearID             string     `json:"gear_id"`
	SyncedAt           *time.Time `json:"synced_at,omitempty"`
}

func toActivityView(a domain.Activity) ActivityView {
	view := ActivityView{
		ID:                 a.ID,
		AthleteID:          a.AthleteID,
		Name:               a.Name,
		Distance:           a.Distance,
		MovingTime:         a.MovingTime,
		ElapsedTime:        a.ElapsedTime,
		TotalElevationGain: a.TotalElevationGain,
		ElevHigh:           a.ElevHigh,
		ElevLow:            a.ElevLow,
		SportType:          a.SportType,
		StartDate:          a.StartDate,
		StartDateLocal:     a.StartDateLocal,
		Timezone:           a.Timezone,
		StartLatLng:        latLngPair(a.StartLatLng),
		EndLatLng:          latLngPair(a.EndLatLng),
		Polyline:           a.Polyline,
		Trainer:            a.Trainer,
		Commute:            a.Commute,
		Manual:             a.Manual,
		Private:            a.Private,
		Flagged:            a.Flagged,
		HideFromHome:       a.HideFromHome,
		WorkoutType:        a.WorkoutType,
		AverageSpeed:       a.AverageSpeed,
		MaxSpeed:           a.MaxSpeed,
		AverageWatts:       a.AverageWatts,
		DeviceWatts:        a.DeviceWatts,
		MaxWatts:           a.MaxWatts,
		WeightedAvgWatts:   a.WeightedAvgWatts,
		GearID:             a.GearID,
	}
	if !a.SyncedAt.IsZero() {
		syncedAt := a.SyncedAt
		view.SyncedAt = &syncedAt
	}
	return view
}

// latLngPair renders coordinates the way the provider does: an empty list when absent.
func latLngPair(p *domain.LatLng) []float64 {
	if p == nil {
		return []float64{}
	}
	return []float64{p.Lat, p.Lng}
}
