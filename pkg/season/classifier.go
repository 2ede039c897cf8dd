// Package season classifies the user's current social capacity into one
// of three ordinal states from trailing activity, streak and network
// health. Classification runs fresh on every evaluation unless a manual
// override pins the season, in which case the override wins until it is
// cleared or its re-evaluation window lapses.
package season

import (
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tuning"
)

// Inputs are the aggregates one classification pass runs on.
type Inputs struct {
	WindowEvents  int     // completed interactions inside the trailing window
	CurrentStreak int     // consecutive active days
	NetworkHealth float64 // tier-weighted mean score
}

// Classifier bands each input against its thresholds and lets the three
// bands vote. Majority wins; a split vote lands on balanced.
type Classifier struct {
	tuning tuning.Tuning
}

func NewClassifier(t tuning.Tuning) *Classifier {
	return &Classifier{tuning: t}
}

func (c *Classifier) Classify(in Inputs) models.Season {
	votes := map[models.Season]int{}
	votes[c.eventsVote(in.WindowEvents)]++
	votes[c.streakVote(in.CurrentStreak)]++
	votes[c.healthVote(in.NetworkHealth)]++

	switch {
	case votes[models.SeasonResting] >= 2:
		return models.SeasonResting
	case votes[models.SeasonBlooming] >= 2:
		return models.SeasonBlooming
	default:
		return models.SeasonBalanced
	}
}

func (c *Classifier) eventsVote(count int) models.Season {
	switch {
	case count <= c.tuning.RestingWeeklyEvents:
		return models.SeasonResting
	case count >= c.tuning.BloomingWeeklyEvents:
		return models.SeasonBlooming
	default:
		return models.SeasonBalanced
	}
}

func (c *Classifier) streakVote(streak int) models.Season {
	switch {
	case streak <= 0:
		return models.SeasonResting
	case streak >= c.tuning.BloomingStreakDays:
		return models.SeasonBlooming
	default:
		return models.SeasonBalanced
	}
}

func (c *Classifier) healthVote(health float64) models.Season {
	switch {
	case health <= c.tuning.RestingNetworkHealth:
		return models.SeasonResting
	case health >= c.tuning.BloomingNetworkHealth:
		return models.SeasonBlooming
	default:
		return models.SeasonBalanced
	}
}
