package domain

import "time"

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64
	Lng float64
}

// Activity is the locally stored copy of a provider activity. The provider is the
// source of truth; the local row may lag until the next sync.
type Activity struct {
	ID                 int64
	AthleteID          int64
	Name               string
	Distance           float64
	MovingTime         int
	ElapsedTime        int
	TotalElevationGain float64
	ElevHigh           float64
	ElevLow            float64
	SportType          string
	StartDate          time.Time
	StartDateLocal     time.Time
	Timezone           string
	StartLatLng        *LatLng
	EndLatLng          *LatLng
	Polyline           string
	Trainer            bool
	Commute            bool
	Manual             bool
	Private            bool
	Flagged            bool
	HideFromHome       bool
	WorkoutType        int
	AverageSpeed       float64
	MaxSpeed           float64
	AverageWatts       float64
	DeviceWatts        bool
	MaxWatts           int
	WeightedAvgWatts   int
	GearID             string

	// SyncedAt is the local instant the data in this row was observed. Upserts never
	// replace a row with data observed earlier than what is already stored.
	SyncedAt time.Time
}

// SameContent reports whether every synced field matches, ignoring SyncedAt.
func (a Activity) SameContent(other Activity) bool {
	a.SyncedAt, other.SyncedAt = time.Time{}, time.Time{}
	if !sameLatLng(a.StartLatLng, other.StartLatLng) || !sameLatLng(a.EndLatLng, other.EndLatLng) {
		return false
	}
	a.StartLatLng, other.StartLatLng = nil, nil
	a.EndLatLng, other.EndLatLng = nil, nil
	return a.StartDate.Equal(other.StartDate) &&
		a.StartDateLocal.Equal(other.StartDateLocal) &&
		withoutTimes(a) == withoutTimes(other)
}

func withoutTimes(a Activity) Activity {
	a.StartDate, a.StartDateLocal = time.Time{}, time.Time{}
	return a
}

func sameLatLng(a, b *LatLng) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Route is a recorded polyline with its local start date.
type Route struct {
	Polyline string    `json:"polyline"`
	Date     time.Time `json:"date"`
}
