package monitor

import (
	"slices"
	"time"

	"basegraph.app/pulse/internal/model"
)

type CooldownTier string

const (
	TierCritical CooldownTier = "critical"
	TierHigh     CooldownTier = "high"
	TierNormal   CooldownTier = "normal"
	TierLow      CooldownTier = "low"
)

// Decision reasons, logged with every evaluated task.
const (
	ReasonCooldownActive    = "cooldown_active"
	ReasonAfterHours        = "after_hours"
	ReasonCelebrate         = "celebrate"
	ReasonAlreadyCelebrated = "already_celebrated"
	ReasonVeryLate          = "very_late"
	ReasonProbabilityHit    = "probability_hit"
	ReasonProbabilityMiss   = "probability_miss"
)

type Cooldowns struct {
	Critical time.Duration
	High     time.Duration
	Normal   time.Duration
	Low      time.Duration
}

// WorkingHours is a daily [StartHour, EndHour) window on the listed weekdays.
// An empty Days list means every day; a nil Location means the evaluated
// instant's own zone.
type WorkingHours struct {
	StartHour int
	EndHour   int
	Days      []time.Weekday
	Location  *time.Location
}

func (w WorkingHours) Contains(t time.Time) bool {
	if w.Location != nil {
		t = t.In(w.Location)
	}
	if len(w.Days) > 0 && !slices.Contains(w.Days, t.Weekday()) {
		return false
	}
	h := t.Hour()
	return h >= w.StartHour && h < w.EndHour
}

// AlwaysOpen disables working-hours gating.
func AlwaysOpen() WorkingHours {
	return WorkingHours{StartHour: 0, EndHour: 24}
}

type PolicyConfig struct {
	Cooldowns Cooldowns

	// Score thresholds that pick the cooldown tier.
	CriticalScore int
	HighScore     int
	LowScore      int

	DueSoonProbability       float64
	OverdueBaseProbability   float64
	OverduePerDayProbability float64
	OverdueMaxProbability    float64
	NormalProbability        float64

	// Overdue tasks later than this many days are always nudged.
	VeryLateDays int

	WorkingHours WorkingHours
	// Outside working hours only overdue tasks later than this still qualify.
	AfterHoursMinDaysLate int

	FollowUpThreshold time.Duration
}

func (c PolicyConfig) Validate() error {
	for name, d := range map[string]time.Duration{
		"cooldown.critical": c.Cooldowns.Critical,
		"cooldown.high":     c.Cooldowns.High,
		"cooldown.normal":   c.Cooldowns.Normal,
		"cooldown.low":      c.Cooldowns.Low,
	} {
		if d < 0 {
			return configErr(name, "must not be negative, got %s", d)
		}
	}

	for name, p := range map[string]float64{
		"probability.due_soon":        c.DueSoonProbability,
		"probability.overdue_base":    c.OverdueBaseProbability,
		"probability.overdue_per_day": c.OverduePerDayProbability,
		"probability.overdue_max":     c.OverdueMaxProbability,
		"probability.normal":          c.NormalProbability,
	} {
		if p < 0 || p > 1 {
			return configErr(name, "must be within [0,1], got %v", p)
		}
	}

	if c.VeryLateDays < 0 {
		return configErr("very_late_days", "must not be negative, got %d", c.VeryLateDays)
	}
	if c.WorkingHours.StartHour < 0 || c.WorkingHours.EndHour > 24 || c.WorkingHours.StartHour >= c.WorkingHours.EndHour {
		return configErr("working_hours", "start %d must be before end %d within 0-24",
			c.WorkingHours.StartHour, c.WorkingHours.EndHour)
	}
	if c.FollowUpThreshold <= 0 {
		return configErr("follow_up_threshold", "must be positive, got %s", c.FollowUpThreshold)
	}
	return nil
}

// CooldownFor picks the tier and window for a task's urgency.
func (c PolicyConfig) CooldownFor(u model.Urgency) (CooldownTier, time.Duration) {
	switch {
	case u.State == model.UrgencyOverdue && u.Score >= c.CriticalScore:
		return TierCritical, c.Cooldowns.Critical
	case u.State == model.UrgencyDueSoon && u.Score >= c.HighScore:
		return TierHigh, c.Cooldowns.High
	case u.State == model.UrgencyNormal && u.Score < c.LowScore:
		return TierLow, c.Cooldowns.Low
	default:
		return TierNormal, c.Cooldowns.Normal
	}
}

type Decision struct {
	Comment  bool
	Reason   string
	Tier     CooldownTier
	Cooldown time.Duration
}

// Policy decides per task whether to comment this cycle. Nothing is persisted;
// every decision is recomputed from the task data and its comment history.
type Policy struct {
	cfg  PolicyConfig
	rand Rand
}

func NewPolicy(cfg PolicyConfig, r Rand) *Policy {
	return &Policy{cfg: cfg, rand: r}
}

func (p *Policy) Config() PolicyConfig {
	return p.cfg
}

// ShouldComment is the boolean projection of Decide.
func (p *Policy) ShouldComment(task model.TaskSnapshot, conv model.ConversationState, now time.Time, lastBotComment *time.Time) bool {
	return p.Decide(task, Score(task, now), conv, now, lastBotComment).Comment
}

func (p *Policy) Decide(task model.TaskSnapshot, u model.Urgency, conv model.ConversationState, now time.Time, lastBotComment *time.Time) Decision {
	tier, cooldown := p.cfg.CooldownFor(u)
	d := Decision{Tier: tier, Cooldown: cooldown}

	last := latestBotComment(task, conv, lastBotComment)
	if last != nil && now.Sub(*last) < cooldown && !conv.NeedsFollowUp {
		d.Reason = ReasonCooldownActive
		return d
	}

	if !p.cfg.WorkingHours.Contains(now) &&
		!(u.State == model.UrgencyOverdue && u.DaysLate > p.cfg.AfterHoursMinDaysLate) {
		d.Reason = ReasonAfterHours
		return d
	}

	switch u.State {
	case model.UrgencyCompleted:
		if task.BotCommentCount == 0 && conv.BotComments == 0 {
			d.Comment, d.Reason = true, ReasonCelebrate
		} else {
			d.Reason = ReasonAlreadyCelebrated
		}
		return d
	case model.UrgencyOverdue:
		if u.DaysLate > p.cfg.VeryLateDays {
			d.Comment, d.Reason = true, ReasonVeryLate
			return d
		}
		prob := min(p.cfg.OverdueMaxProbability,
			p.cfg.OverdueBaseProbability+float64(u.DaysLate)*p.cfg.OverduePerDayProbability)
		return p.draw(d, prob)
	case model.UrgencyDueSoon:
		return p.draw(d, p.cfg.DueSoonProbability)
	default:
		return p.draw(d, p.cfg.NormalProbability)
	}
}

func (p *Policy) draw(d Decision, prob float64) Decision {
	if p.rand.Float64() < prob {
		d.Comment, d.Reason = true, ReasonProbabilityHit
	} else {
		d.Reason = ReasonProbabilityMiss
	}
	return d
}

func latestBotComment(task model.TaskSnapshot, conv model.ConversationState, explicit *time.Time) *time.Time {
	var last *time.Time
	consider := func(t *time.Time) {
		if t != nil && (last == nil || t.After(*last)) {
			last = t
		}
	}
	consider(explicit)
	consider(task.LastBotCommentAt)
	if conv.LastBot != nil {
		consider(&conv.LastBot.CreatedAt)
	}
	return last
}
