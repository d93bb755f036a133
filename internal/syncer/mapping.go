package syncer

import (
	"time"

	"example.com/stravasync/internal/domain"
	"example.com/stravasync/internal/provider"
)

// FromDetailed converts a single-activity payload.
func FromDetailed(d provider.DetailedActivity, syncedAt time.Time) domain.Activity {
	a := FromSummary(d.SummaryActivity, syncedAt)
	if d.Map.Polyline != "" {
		a.Polyline = d.Map.Polyline
	}
	if d.Gear != nil {
		a.GearID = d.Gear.ID
	}
	return a
}

// FromSummary converts a list item. Absent coordinates map to nil and an absent gear
// relation maps to an empty gear id.
func FromSummary(s provider.SummaryActivity, syncedAt time.Time) domain.Activity {
	a := domain.Activity{
		ID:                 s.ID,
		AthleteID:          s.Athlete.ID,
		Name:               s.Name,
		Distance:           s.Distance,
		MovingTime:         s.MovingTime,
		ElapsedTime:        s.ElapsedTime,
		TotalElevationGain: s.TotalElevationGain,
		ElevHigh:           s.ElevHigh,
		ElevLow:            s.ElevLow,
		SportType:          s.SportType,
		StartDate:          s.StartDate.UTC(),
		StartDateLocal:     s.StartDateLocal.UTC(),
		Timezone:           s.Timezone,
		StartLatLng:        latLng(s.StartLatLng),
		EndLatLng:          latLng(s.EndLatLng),
		Polyline:           s.Map.SummaryPolyline,
		Trainer:            s.Trainer,
		Commute:            s.Commute,
		Manual:             s.Manual,
		Private:            s.Private,
		Flagged:            s.Flagged,
		HideFromHome:       s.HideFromHome,
		AverageSpeed:       s.AverageSpeed,
		MaxSpeed:           s.MaxSpeed,
		AverageWatts:       s.AverageWatts,
		DeviceWatts:        s.DeviceWatts,
		MaxWatts:           s.MaxWatts,
		WeightedAvgWatts:   s.WeightedAverageWatts,
		SyncedAt:           syncedAt.UTC(),
	}
	if s.WorkoutType != nil {
		a.WorkoutType = *s.WorkoutType
	}
	if s.GearID != nil {
		a.GearID = *s.GearID
	}
	return a
}

func latLng(pair []float64) *domain.LatLng {
	if len(pair) != 2 {
		return nil
	}
	return &domain.LatLng{Lat: pair[0], Lng: pair[1]}
}
