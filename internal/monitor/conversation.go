package monitor

import (
	"strings"
	"time"

	"basegraph.app/pulse/internal/model"
)

// DefaultFollowUpThreshold is how long an unanswered bot comment waits before the
// thread counts as stalled.
const DefaultFollowUpThreshold = 48 * time.Hour

// KeywordFamily maps a set of substrings to a topic. Families are matched in
// slice order, so earlier families take precedence within a single comment.
type KeywordFamily struct {
	Topic    model.Topic
	Keywords []string
}

// DefaultKeywordFamilies lists families in precedence order.
var DefaultKeywordFamilies = []KeywordFamily{
	{Topic: model.TopicCompletionMentioned, Keywords: []string{"completed", "done", "finished"}},
	{Topic: model.TopicProgressUpdate, Keywords: []string{"working", "progress", "implemented"}},
	{Topic: model.TopicBlocked, Keywords: []string{"issue", "blocked", "stuck"}},
	{Topic: model.TopicTesting, Keywords: []string{"test", "qa", "review"}},
	{Topic: model.TopicDeployment, Keywords: []string{"deploy", "production"}},
}

type Analyzer struct {
	families          []KeywordFamily
	followUpThreshold time.Duration
}

func NewAnalyzer(families []KeywordFamily, followUpThreshold time.Duration) *Analyzer {
	if len(families) == 0 {
		families = DefaultKeywordFamilies
	}
	if followUpThreshold <= 0 {
		followUpThreshold = DefaultFollowUpThreshold
	}
	return &Analyzer{families: families, followUpThreshold: followUpThreshold}
}

// Analyze partitions comments by author identity and classifies the thread. It is
// total: an empty thread yields TopicUnknown and no follow-up.
func (a *Analyzer) Analyze(comments []model.CommentRecord, botID string, now time.Time) model.ConversationState {
	state := model.ConversationState{
		TotalComments: len(comments),
		CurrentTopic:  model.TopicUnknown,
	}

	var (
		humans    []model.CommentRecord
		lastBot   *model.CommentRecord
		lastHuman *model.CommentRecord
	)

	for i := range comments {
		c := comments[i]
		c.IsBotAuthored = botID != "" && c.AuthorID == botID

		if c.IsBotAuthored {
			state.BotComments++
			if lastBot == nil || c.CreatedAt.After(lastBot.CreatedAt) {
				lastBot = &c
			}
			continue
		}

		state.HumanComments++
		humans = append(humans, c)
		if lastHuman == nil || c.CreatedAt.After(lastHuman.CreatedAt) {
			lastHuman = &c
		}
	}

	state.LastBot = lastBot
	state.LastHuman = lastHuman
	state.CurrentTopic = a.classify(humans)
	state.NeedsFollowUp = a.needsFollowUp(lastBot, lastHuman, now)

	return state
}

// classify returns the topic of the most recent human comment that matches any
// family.
func (a *Analyzer) classify(humans []model.CommentRecord) model.Topic {
	var (
		topic  = model.TopicUnknown
		latest time.Time
		found  bool
	)

	for _, c := range humans {
		t, ok := a.topicOf(c.Body)
		if !ok {
			continue
		}
		// Later entries win ties so that store order breaks equal timestamps.
		if !found || !c.CreatedAt.Before(latest) {
			topic, latest, found = t, c.CreatedAt, true
		}
	}

	return topic
}

func (a *Analyzer) topicOf(body string) (model.Topic, bool) {
	lower := strings.ToLower(body)
	for _, fam := range a.families {
		for _, kw := range fam.Keywords {
			if strings.Contains(lower, kw) {
				return fam.Topic, true
			}
		}
	}
	return model.TopicUnknown, false
}

func (a *Analyzer) needsFollowUp(lastBot, lastHuman *model.CommentRecord, now time.Time) bool {
	if lastBot == nil {
		return false
	}
	if lastHuman != nil && !lastBot.CreatedAt.After(lastHuman.CreatedAt) {
		return false
	}
	return now.Sub(lastBot.CreatedAt) > a.followUpThreshold
}
