package monitor

import (
	"time"

	"basegraph.app/pulse/core/config"
)

const (
	ProfileBase     = "base"
	ProfileAdaptive = "adaptive"
)

var weekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// BaseProfile is the flat policy: one 24h cooldown for every tier and a 10-day
// "very late" threshold.
func BaseProfile() PolicyConfig {
	return PolicyConfig{
		Cooldowns: Cooldowns{
			Critical: 24 * time.Hour,
			High:     24 * time.Hour,
			Normal:   24 * time.Hour,
			Low:      24 * time.Hour,
		},
		CriticalScore:            70,
		HighScore:                30,
		LowScore:                 10,
		DueSoonProbability:       0.3,
		OverdueBaseProbability:   0.2,
		OverduePerDayProbability: 0.1,
		OverdueMaxProbability:    0.8,
		NormalProbability:        0.05,
		VeryLateDays:             10,
		WorkingHours: WorkingHours{
			StartHour: 9,
			EndHour:   18,
			Days:      weekdays,
		},
		AfterHoursMinDaysLate: 3,
		FollowUpThreshold:     DefaultFollowUpThreshold,
	}
}

// AdaptiveProfile tiers the cooldown by urgency and forces a nudge after five
// days late.
func AdaptiveProfile() PolicyConfig {
	cfg := BaseProfile()
	cfg.Cooldowns = Cooldowns{
		Critical: 2 * time.Hour,
		High:     8 * time.Hour,
		Normal:   24 * time.Hour,
		Low:      72 * time.Hour,
	}
	cfg.VeryLateDays = 5
	return cfg
}

// NewPolicyConfig builds a validated policy from the named profile plus any
// explicit overrides.
func NewPolicyConfig(cfg config.MonitorConfig) (PolicyConfig, error) {
	var pc PolicyConfig
	switch cfg.PolicyProfile {
	case "", ProfileBase:
		pc = BaseProfile()
	case ProfileAdaptive:
		pc = AdaptiveProfile()
	default:
		return PolicyConfig{}, configErr("policy_profile", "unknown profile %q", cfg.PolicyProfile)
	}

	overrideDuration(&pc.Cooldowns.Critical, cfg.CooldownCritical)
	overrideDuration(&pc.Cooldowns.High, cfg.CooldownHigh)
	overrideDuration(&pc.Cooldowns.Normal, cfg.CooldownNormal)
	overrideDuration(&pc.Cooldowns.Low, cfg.CooldownLow)

	loc, err := cfg.Location()
	if err != nil {
		return PolicyConfig{}, configErr("timezone", "%v", err)
	}
	pc.WorkingHours = WorkingHours{
		StartHour: cfg.WorkingHoursStart,
		EndHour:   cfg.WorkingHoursEnd,
		Days:      cfg.WorkingDays,
		Location:  loc,
	}

	if err := pc.Validate(); err != nil {
		return PolicyConfig{}, err
	}
	return pc, nil
}

func overrideDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
