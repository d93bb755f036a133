package provider

import "time"

// MetaAthlete is the athlete reference embedded in activity payloads.
type MetaAthlete struct {
	ID int64 `json:"id"`
}

// ActivityMap carries the encoded route. Detailed payloads populate Polyline; list
// payloads only populate SummaryPolyline.
type ActivityMap struct {
	ID              string `json:"id"`
	Polyline        string `json:"polyline"`
	SummaryPolyline string `json:"summary_polyline"`
}

// SummaryGear is the gear relation on a detailed activity.
type SummaryGear struct {
	ID       string  `json:"id"`
	Primary  bool    `json:"primary"`
	Name     string  `json:"name"`
	Distance float64 `json:"distance"`
}

// SummaryActivity is one item of the paginated activity list.
type SummaryActivity struct {
	ID                   int64       `json:"id"`
	Athlete              MetaAthlete `json:"athlete"`
	Name                 string      `json:"name"`
	Distance             float64     `json:"distance"`
	MovingTime           int         `json:"moving_time"`
	ElapsedTime          int         `json:"elapsed_time"`
	TotalElevationGain   float64     `json:"total_elevation_gain"`
	ElevHigh             float64     `json:"elev_high"`
	ElevLow              float64     `json:"elev_low"`
	SportType            string      `json:"sport_type"`
	StartDate            time.Time   `json:"start_date"`
	StartDateLocal       time.Time   `json:"start_date_local"`
	Timezone             string      `json:"timezone"`
	StartLatLng          []float64   `json:"start_latlng"`
	EndLatLng            []float64   `json:"end_latlng"`
	Map                  ActivityMap `json:"map"`
	Trainer              bool        `json:"trainer"`
	Commute              bool        `json:"commute"`
	Manual               bool        `json:"manual"`
	Private              bool        `json:"private"`
	Flagged              bool        `json:"flagged"`
	HideFromHome         bool        `json:"hide_from_home"`
	WorkoutType          *int        `json:"workout_type"`
	AverageSpeed         float64     `json:"average_speed"`
	MaxSpeed             float64     `json:"max_speed"`
	AverageWatts         float64     `json:"average_watts"`
	DeviceWatts          bool        `json:"device_watts"`
	MaxWatts             int         `json:"max_watts"`
	WeightedAverageWatts int         `json:"weighted_average_watts"`
	GearID               *string     `json:"gear_id"`
}

// DetailedActivity is the single-activity payload.
type DetailedActivity struct {
	SummaryActivity
	Gear *SummaryGear `json:"gear"`
}
