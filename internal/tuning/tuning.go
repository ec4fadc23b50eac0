// Package tuning holds every adjustable constant of the behavior engine.
// Default returns the shipped values; Load overlays a YAML file on top of
// them so a partial file only changes the keys it names.
package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	Relationship Relationship `yaml:"relationship"`
	Bonds        Bonds        `yaml:"bonds"`
	Needs        Needs        `yaml:"needs"`
	Movement     Movement     `yaml:"movement"`
	Pathing      Pathing      `yaml:"pathing"`
	Timers       Timers       `yaml:"timers"`
	Clock        Clock        `yaml:"clock"`
}

// Relationship tunes the player↔agent relationship graph.
type Relationship struct {
	Initial            int     `yaml:"initial"`
	NeutralFloor       int     `yaml:"neutral_floor"`
	DecayGraceDays     int     `yaml:"decay_grace_days"`
	DecayPointsPerHour float64 `yaml:"decay_points_per_hour"`
	HistoryLimit       int     `yaml:"history_limit"`

	MoodWindowMinutes int     `yaml:"mood_window_minutes"`
	MoodPerPoint      float64 `yaml:"mood_per_point"` // modifier change per recent relationship point
	MoodBound         float64 `yaml:"mood_bound"`     // |modifier-1| never exceeds this

	GrudgePenaltyPerSeverity float64 `yaml:"grudge_penalty_per_severity"`
	GrudgePenaltyMax         float64 `yaml:"grudge_penalty_max"`
	GrudgeSeverityPerPoint   float64 `yaml:"grudge_severity_per_point"`
	GrudgeSeverityMax        float64 `yaml:"grudge_severity_max"`
	GrudgeForgivePerPoint    float64 `yaml:"grudge_forgive_per_point"`

	DailyCaps map[string]int `yaml:"daily_caps"`
}

// Bonds tunes agent↔agent relationships.
type Bonds struct {
	Neutral           float64 `yaml:"neutral"`
	SocializeDrift    float64 `yaml:"socialize_drift"`
	WorkDrift         float64 `yaml:"work_drift"`
	GatherDrift       float64 `yaml:"gather_drift"`
	IdleDays          int     `yaml:"idle_days"`
	IdleDriftPerHour  float64 `yaml:"idle_drift_per_hour"`
	PartnerMinimum    float64 `yaml:"partner_minimum"`
	PartnerSearchDist float64 `yaml:"partner_search_dist"`
}

// Needs holds base rates in points per second.
type Needs struct {
	EnergyAwake    float64 `yaml:"energy_awake"`
	EnergyActive   float64 `yaml:"energy_active"`
	EnergyRest     float64 `yaml:"energy_rest"`
	SocialAlone    float64 `yaml:"social_alone"`
	SocialTogether float64 `yaml:"social_together"`
	HungerRise     float64 `yaml:"hunger_rise"`
	HungerMeal     float64 `yaml:"hunger_meal"`
	WorkIdle       float64 `yaml:"work_idle"`
	WorkActive     float64 `yaml:"work_active"`
	Emergency      float64 `yaml:"emergency"`
}

// Movement tunes locomotion and the post-movement validation pass.
type Movement struct {
	CliffThreshold   float64 `yaml:"cliff_threshold"`
	CliffProbe       float64 `yaml:"cliff_probe"`
	ObstacleMargin   float64 `yaml:"obstacle_margin"`
	ObstacleClear    float64 `yaml:"obstacle_clearance"`
	SteerMargin      float64 `yaml:"steer_margin"`
	RerouteOffset    float64 `yaml:"reroute_offset"`
	TerrainOffset    float64 `yaml:"terrain_offset"`
	StuckEpsilon     float64 `yaml:"stuck_epsilon"`
	StuckSeconds     float64 `yaml:"stuck_seconds"`
	ArriveRadius     float64 `yaml:"arrive_radius"`
	DriveMinDistance float64 `yaml:"drive_min_distance"`
	DriveSpeed       float64 `yaml:"drive_speed"`
}

// Pathing tunes the path planner.
type Pathing struct {
	CacheSize           int     `yaml:"cache_size"`
	EvictEverySeconds   float64 `yaml:"evict_every_seconds"`
	Quantum             float64 `yaml:"quantum"`
	RoadSearchRadius    float64 `yaml:"road_search_radius"`
	RoadStep            float64 `yaml:"road_step"`
	SegmentSpacing      float64 `yaml:"segment_spacing"`
	Jitter              float64 `yaml:"jitter"`
	MaxSlope            float64 `yaml:"max_slope"`
	BearingThresholdDeg float64 `yaml:"bearing_threshold_deg"`
	SmoothSteps         int     `yaml:"smooth_steps"`
}

// Timers are accumulated-time checks, in seconds.
type Timers struct {
	WeatherCheck    float64 `yaml:"weather_check"`
	ReputationCheck float64 `yaml:"reputation_check"`
	GroupingCheck   float64 `yaml:"grouping_check"`
}

// Clock tunes the demo host's game clock.
type Clock struct {
	GameMinutesPerSecond float64 `yaml:"game_minutes_per_second"`
	DaysPerSeason        int     `yaml:"days_per_season"`
	StartHour            int     `yaml:"start_hour"`
}

// Default returns the shipped tuning.
func Default() Tuning {
	return Tuning{
		Relationship: Relationship{
			Initial:                  50,
			NeutralFloor:             25,
			DecayGraceDays:           2,
			DecayPointsPerHour:       0.25,
			HistoryLimit:             100,
			MoodWindowMinutes:        120,
			MoodPerPoint:             0.01,
			MoodBound:                0.25,
			GrudgePenaltyPerSeverity: 0.1,
			GrudgePenaltyMax:         0.5,
			GrudgeSeverityPerPoint:   0.2,
			GrudgeSeverityMax:        10,
			GrudgeForgivePerPoint:    0.05,
			DailyCaps: map[string]int{
				"daily_interaction": 1,
				"gift":              3,
			},
		},
		Bonds: Bonds{
			Neutral:           50,
			SocializeDrift:    0.5,
			WorkDrift:         0.3,
			GatherDrift:       0.4,
			IdleDays:          3,
			IdleDriftPerHour:  0.1,
			PartnerMinimum:    55,
			PartnerSearchDist: 40,
		},
		Needs: Needs{
			EnergyAwake:    0.02,
			EnergyActive:   0.05,
			EnergyRest:     0.25,
			SocialAlone:    0.04,
			SocialTogether: 0.3,
			HungerRise:     0.03,
			HungerMeal:     0.5,
			WorkIdle:       0.03,
			WorkActive:     0.15,
			Emergency:      80,
		},
		Movement: Movement{
			CliffThreshold:   2.5,
			CliffProbe:       3,
			ObstacleMargin:   1,
			ObstacleClear:    0.5,
			SteerMargin:      2,
			RerouteOffset:    5,
			TerrainOffset:    0.05,
			StuckEpsilon:     0.1,
			StuckSeconds:     5,
			ArriveRadius:     1.0,
			DriveMinDistance: 150,
			DriveSpeed:       8,
		},
		Pathing: Pathing{
			CacheSize:           128,
			EvictEverySeconds:   30,
			Quantum:             2,
			RoadSearchRadius:    40,
			RoadStep:            10,
			SegmentSpacing:      50,
			Jitter:              2,
			MaxSlope:            0.35,
			BearingThresholdDeg: 30,
			SmoothSteps:         4,
		},
		Timers: Timers{
			WeatherCheck:    30,
			ReputationCheck: 5,
			GroupingCheck:   2,
		},
		Clock: Clock{
			GameMinutesPerSecond: 1,
			DaysPerSeason:        28,
			StartHour:            6,
		},
	}
}

// Load reads a YAML tuning file over the defaults.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}
