// Package progress maintains the per-student aggregate: one row per student
// summarizing their mastery rows. The row is always rebuilt with a full
// recompute over the mastery rows rather than maintained incrementally,
// which makes drift between the two impossible.
package progress

import (
	"context"
	"time"

	"github.com/brightpath-edu/learning-analytics/internal/domain/mastery"
	"github.com/brightpath-edu/learning-analytics/internal/domain/shared"
)

// Level is the overall standing of one student.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// IsValid checks the level is one of the known values.
func (l Level) IsValid() bool {
	switch l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return true
	}
	return false
}

// String returns the string representation.
func (l Level) String() string { return string(l) }

// Student level thresholds. Both accuracy and mastered-topic count gate
// each tier.
const (
	AdvancedAccuracy     = 0.80
	AdvancedMastered     = 5
	IntermediateAccuracy = 0.60
	IntermediateMastered = 2
)

// StudentProgress is the mutable per-student aggregate.
type StudentProgress struct {
	StudentID shared.StudentID
	// TotalInteractions is the sum over all mastery rows.
	TotalInteractions int
	// AverageAccuracy is the interaction-weighted accuracy over all
	// mastery rows, 0 when the student has no interactions.
	AverageAccuracy float64
	// TopicsMastered counts mastery rows at the mastered level.
	TopicsMastered int
	// Level is the overall classification.
	Level Level
	// CurrentStreak is set to 1 when the row is first created and is not
	// recomputed afterwards. Gap-aware streak tracking is a planned
	// extension; the field is carried so the read model is stable.
	CurrentStreak int
	// LastActiveAt is refreshed on every update.
	LastActiveAt time.Time
	// CreatedAt is when the row was first created.
	CreatedAt time.Time
	// UpdatedAt is when the row was last written.
	UpdatedAt time.Time
}

// ClassifyStudent maps (averageAccuracy, topicsMastered) to a student level.
// Evaluated top-down, first match wins.
func ClassifyStudent(averageAccuracy float64, topicsMastered int) Level {
	switch {
	case averageAccuracy >= AdvancedAccuracy && topicsMastered >= AdvancedMastered:
		return LevelAdvanced
	case averageAccuracy >= IntermediateAccuracy && topicsMastered >= IntermediateMastered:
		return LevelIntermediate
	default:
		return LevelBeginner
	}
}

// Recompute rebuilds the aggregate from the full set of a student's
// mastery rows. The existing row may be nil; in that case a new row is
// created and its streak initialized to 1.
func Recompute(studentID shared.StudentID, existing *StudentProgress, rows []*mastery.TopicMastery) *StudentProgress {
	now := time.Now().UTC()

	p := existing
	if p == nil {
		p = &StudentProgress{
			StudentID:     studentID,
			CurrentStreak: 1,
			CreatedAt:     now,
		}
	}

	totalInteractions := 0
	totalCorrect := 0
	mastered := 0
	for _, row := range rows {
		totalInteractions += row.TotalInteractions
		totalCorrect += row.CorrectAnswers
		if row.Level == mastery.LevelMastered {
			mastered++
		}
	}

	p.TotalInteractions = totalInteractions
	if totalInteractions > 0 {
		p.AverageAccuracy = float64(totalCorrect) / float64(totalInteractions)
	} else {
		p.AverageAccuracy = 0
	}
	p.TopicsMastered = mastered
	p.Level = ClassifyStudent(p.AverageAccuracy, p.TopicsMastered)
	p.LastActiveAt = now
	p.UpdatedAt = now

	return p
}

// Repository is the persistence port for student progress rows.
type Repository interface {
	// Find loads the progress row for one student.
	// Returns shared.ErrNotFound when the student has no row yet.
	Find(ctx context.Context, studentID shared.StudentID) (*StudentProgress, error)
	// Upsert inserts or updates a progress row.
	Upsert(ctx context.Context, p *StudentProgress) error
	// ListAll returns every progress row, for class-wide analytics.
	ListAll(ctx context.Context) ([]*StudentProgress, error)
	// ListBehind returns progress rows where accuracy is below the given
	// threshold or the student has been inactive since the cutoff.
	ListBehind(ctx context.Context, accuracyBelow float64, inactiveSince time.Time) ([]*StudentProgress, error)
}
