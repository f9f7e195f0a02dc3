// internal/app/workflow/challenges.go
package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	participantstore "github.com/tradeya/tradeya/internal/app/store/participants"
	"github.com/tradeya/tradeya/internal/app/system/htmlsanitize"
	"github.com/tradeya/tradeya/internal/app/system/notify"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChallengeInput describes a new challenge.
type ChallengeInput struct {
	Title       string
	Description string
	Category    string
	Difficulty  string
	XPReward    int64
	StartsAt    time.Time
	EndsAt      *time.Time
}

// CreateChallenge publishes a challenge. Admin only.
func (s *Service) CreateChallenge(ctx context.Context, a Actor, in ChallengeInput) (models.Challenge, error) {
	if !a.Admin {
		return models.Challenge{}, fail(ErrForbidden, "Only admins can create challenges.", nil)
	}
	switch {
	case strings.TrimSpace(in.Title) == "":
		return models.Challenge{}, Invalid("Title is required.")
	case in.XPReward <= 0:
		return models.Challenge{}, Invalid("XP reward must be positive.")
	case in.EndsAt != nil && !in.StartsAt.IsZero() && !in.EndsAt.After(in.StartsAt):
		return models.Challenge{}, Invalid("The challenge must end after it starts.")
	case in.EndsAt != nil && in.StartsAt.IsZero() && !in.EndsAt.After(time.Now()):
		return models.Challenge{}, Invalid("The challenge must end in the future.")
	}
	c, err := s.Challenges.Create(ctx, models.Challenge{
		Title:       in.Title,
		Description: htmlsanitize.Sanitize(in.Description),
		Category:    in.Category,
		Difficulty:  in.Difficulty,
		XPReward:    in.XPReward,
		StartsAt:    in.StartsAt,
		EndsAt:      in.EndsAt,
		CreatedBy:   a.Ref.ID,
	})
	if err != nil {
		return models.Challenge{}, classify(err)
	}
	s.Audit.ChallengeCreated(ctx, a.Req, a.Ref.ID, c.ID, c.Title, c.XPReward)
	return c, nil
}

// GetChallenge loads a challenge.
func (s *Service) GetChallenge(ctx context.Context, id primitive.ObjectID) (*models.Challenge, error) {
	c, err := s.Challenges.GetByID(ctx, id)
	return c, classify(err)
}

// CloseChallenge stops an active challenge. Admin only.
func (s *Service) CloseChallenge(ctx context.Context, a Actor, id primitive.ObjectID) (*models.Challenge, error) {
	if !a.Admin {
		return nil, fail(ErrForbidden, "Only admins can close challenges.", nil)
	}
	c, err := s.Challenges.SetStatus(ctx, id, models.ChallengeActive, models.ChallengeClosed)
	record("challenge", "close", err)
	if err != nil {
		return nil, classify(err)
	}
	s.Audit.ChallengeClosed(ctx, a.Req, a.idPtr(), id)
	return c, nil
}

// JoinChallenge enrolls a in an open challenge.
func (s *Service) JoinChallenge(ctx context.Context, a Actor, challengeID primitive.ObjectID) (models.ChallengeParticipant, error) {
	c, err := s.Challenges.GetByID(ctx, challengeID)
	if err != nil {
		return models.ChallengeParticipant{}, classify(err)
	}
	if !c.Open(time.Now()) {
		return models.ChallengeParticipant{}, fail(ErrConflict, "This challenge is not open.", nil)
	}
	p, err := s.Participants.Join(ctx, challengeID, a.Ref.ID)
	if err != nil {
		return models.ChallengeParticipant{}, classify(err)
	}
	return p, nil
}

// SubmitChallenge hands in a's work for review.
func (s *Service) SubmitChallenge(ctx context.Context, a Actor, challengeID primitive.ObjectID, text, url string) (*models.ChallengeParticipant, error) {
	text = htmlsanitize.PlainText(text)
	if text == "" && strings.TrimSpace(url) == "" {
		return nil, Invalid("Describe your work or add a link.")
	}
	c, err := s.Challenges.GetByID(ctx, challengeID)
	if err != nil {
		return nil, classify(err)
	}
	if !c.Open(time.Now()) {
		return nil, fail(ErrConflict, "This challenge is not open.", nil)
	}
	p, err := s.Participants.Get(ctx, challengeID, a.Ref.ID)
	if err != nil {
		return nil, fail(ErrNotFound, "Join the challenge before submitting.", err)
	}
	to, err := lifecycle.NextParticipation(p.Status, lifecycle.ParticipationSubmit, lifecycle.PartyParticipant)
	if err == nil {
		p, err = s.Participants.Transition(ctx, p.ID, p.Status, to, &participantstore.Submission{Text: text, URL: url})
	}
	record("participation", lifecycle.ParticipationSubmit, err)
	if err != nil {
		return nil, classify(err)
	}
	return p, nil
}

// ReviewSubmission approves a submission, awarding the challenge XP, or
// returns it for rework. Admin only.
func (s *Service) ReviewSubmission(ctx context.Context, a Actor, participantID primitive.ObjectID, approve bool) (*models.ChallengeParticipant, error) {
	party := lifecycle.PartyOther
	if a.Admin {
		party = lifecycle.PartyAdmin
	}
	action := lifecycle.ParticipationReturn
	if approve {
		action = lifecycle.ParticipationApprove
	}
	p, err := s.Participants.GetByID(ctx, participantID)
	if err != nil {
		return nil, classify(err)
	}
	c, err := s.Challenges.GetByID(ctx, p.ChallengeID)
	if err != nil {
		return nil, classify(err)
	}
	to, err := lifecycle.NextParticipation(p.Status, action, party)
	if err == nil {
		p, err = s.Participants.Transition(ctx, participantID, p.Status, to, nil)
	}
	record("participation", action, err)
	if err != nil {
		return nil, classify(err)
	}

	actx, cancel := s.after(ctx)
	defer cancel()
	s.Audit.SubmissionReviewed(actx, a.Req, a.Ref.ID, p.UserID, c.ID, approve)
	if approve {
		s.AwardXP(actx, p.UserID, c.XPReward, models.XPSourceChallenge, c.ID, fmt.Sprintf("Completed challenge %q", c.Title))
		s.send(actx, notify.Input{
			RecipientID: p.UserID,
			Type:        models.NotifyChallengeCompleted,
			Title:       "Challenge completed",
			Message:     fmt.Sprintf("Your submission for %q was approved. You earned %d XP.", c.Title, c.XPReward),
			EntityKind:  "challenge",
			EntityID:    oid(c.ID),
			Actor:       &a.Ref,
			DedupeKey:   "challenge:" + c.ID.Hex() + ":completed",
		})
	} else {
		s.send(actx, notify.Input{
			RecipientID: p.UserID,
			Type:        models.NotifySystem,
			Title:       "Submission returned",
			Message:     fmt.Sprintf("Your submission for %q needs more work. Update it and submit again.", c.Title),
			EntityKind:  "challenge",
			EntityID:    oid(c.ID),
			Actor:       &a.Ref,
		})
	}
	return p, nil
}
