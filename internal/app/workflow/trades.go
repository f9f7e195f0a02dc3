// internal/app/workflow/trades.go
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tradeya/tradeya/internal/app/policy/tradepolicy"
	tradestore "github.com/tradeya/tradeya/internal/app/store/trades"
	"github.com/tradeya/tradeya/internal/app/system/auditlog"
	"github.com/tradeya/tradeya/internal/app/system/htmlsanitize"
	"github.com/tradeya/tradeya/internal/app/system/notify"
	"github.com/tradeya/tradeya/internal/app/system/txn"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// sweepBatch caps how many trades one sweep run handles.
const sweepBatch = 100

// TradeInput is the editable part of a new trade.
type TradeInput struct {
	Title           string
	Description     string
	Category        string
	OfferedSkills   []models.Skill
	RequestedSkills []models.Skill
}

// CreateTrade opens a trade owned by a.
func (s *Service) CreateTrade(ctx context.Context, a Actor, in TradeInput) (models.Trade, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.Trade{}, Invalid("Title is required.")
	}
	t, err := s.Trades.Create(ctx, models.Trade{
		Title:           in.Title,
		Description:     htmlsanitize.Sanitize(in.Description),
		Category:        in.Category,
		OfferedSkills:   in.OfferedSkills,
		RequestedSkills: in.RequestedSkills,
		CreatorID:       a.Ref.ID,
		CreatorName:     a.Ref.Name,
		CreatorPhoto:    a.Ref.PhotoURL,
	})
	if err != nil {
		return models.Trade{}, classify(err)
	}
	s.Log.Info("trade created", zap.String("trade_id", t.ID.Hex()), zap.String("creator_id", a.Ref.ID.Hex()))
	return t, nil
}

// GetTrade loads a trade.
func (s *Service) GetTrade(ctx context.Context, id primitive.ObjectID) (*models.Trade, error) {
	t, err := s.Trades.GetByID(ctx, id)
	return t, classify(err)
}

// ProposalInput is a proposal on an open trade.
type ProposalInput struct {
	Message       string
	OfferedSkills []models.Skill
}

// Propose sends a proposal on an open trade and notifies its creator.
func (s *Service) Propose(ctx context.Context, a Actor, tradeID primitive.ObjectID, in ProposalInput) (models.Proposal, error) {
	t, err := s.Trades.GetByID(ctx, tradeID)
	if err != nil {
		return models.Proposal{}, classify(err)
	}
	if err := tradepolicy.CanPropose(*t, a.Ref.ID); err != nil {
		return models.Proposal{}, classify(err)
	}
	p, err := s.Proposals.Create(ctx, models.Proposal{
		TradeID:       t.ID,
		ProposerID:    a.Ref.ID,
		ProposerName:  a.Ref.Name,
		ProposerPhoto: a.Ref.PhotoURL,
		Message:       htmlsanitize.PlainText(in.Message),
		OfferedSkills: in.OfferedSkills,
	})
	if err != nil {
		return models.Proposal{}, classify(err)
	}

	actx, cancel := s.after(ctx)
	defer cancel()
	s.send(actx, notify.Input{
		RecipientID: t.CreatorID,
		Type:        models.NotifyTradeProposal,
		Title:       "New proposal",
		Message:     fmt.Sprintf("%s sent a proposal for %q.", a.Ref.Name, t.Title),
		EntityKind:  "trade",
		EntityID:    oid(t.ID),
		Actor:       &a.Ref,
		DedupeKey:   "proposal:" + p.ID.Hex(),
	})
	return p, nil
}

// WithdrawProposal lets the proposer take back a pending proposal.
func (s *Service) WithdrawProposal(ctx context.Context, a Actor, proposalID primitive.ObjectID) (*models.Proposal, error) {
	p, err := s.Proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, classify(err)
	}
	party := lifecycle.PartyOther
	if p.ProposerID == a.Ref.ID {
		party = lifecycle.PartyApplicant
	}
	to, err := lifecycle.NextProposal(p.Status, lifecycle.DecisionWithdraw, party)
	if err == nil {
		p, err = s.Proposals.SetStatus(ctx, proposalID, lifecycle.DecisionPending, to)
	}
	record("proposal", lifecycle.DecisionWithdraw, err)
	if err != nil {
		return nil, classify(err)
	}
	s.Audit.ProposalDecision(ctx, a.Req, a.Ref.ID, p.ID, p.TradeID, auditlog.Transition{
		Action: string(lifecycle.DecisionWithdraw), From: string(lifecycle.DecisionPending), To: string(to),
	})
	return p, nil
}

// proposalContext loads a proposal and its trade and resolves a's party on
// the trade.
func (s *Service) proposalContext(ctx context.Context, a Actor, proposalID primitive.ObjectID) (*models.Proposal, *models.Trade, lifecycle.Party, error) {
	p, err := s.Proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, nil, "", classify(err)
	}
	t, err := s.Trades.GetByID(ctx, p.TradeID)
	if err != nil {
		return nil, nil, "", classify(err)
	}
	return p, t, tradepolicy.PartyOf(*t, a.Ref.ID, a.Admin), nil
}

// AcceptProposal makes the proposer the trade's participant, moves the
// trade to in-progress and rejects every other pending proposal, in one
// transaction.
func (s *Service) AcceptProposal(ctx context.Context, a Actor, proposalID primitive.ObjectID) (*models.Trade, error) {
	p, t, party, err := s.proposalContext(ctx, a, proposalID)
	if err != nil {
		return nil, err
	}
	pTo, err := lifecycle.NextProposal(p.Status, lifecycle.DecisionAccept, party)
	if err != nil {
		record("proposal", lifecycle.DecisionAccept, err)
		return nil, classify(err)
	}
	tTo, err := lifecycle.NextTrade(tradepolicy.State(*t), lifecycle.TradeAcceptProposal, party)
	if err != nil {
		record("trade", lifecycle.TradeAcceptProposal, err)
		return nil, classify(err)
	}

	var (
		updated  *models.Trade
		rejected []models.Proposal
	)
	err = txn.Run(ctx, s.DB, s.Log, func(ctx context.Context) error {
		var err error
		participant := models.UserRef{ID: p.ProposerID, Name: p.ProposerName, PhotoURL: p.ProposerPhoto}
		updated, err = s.Trades.Transition(ctx, t.ID, t.Status, tTo, tradestore.Change{Participant: &participant})
		if err != nil {
			return err
		}
		if _, err = s.Proposals.SetStatus(ctx, p.ID, p.Status, pTo); err != nil {
			return err
		}
		rejected, err = s.Proposals.RejectOthers(ctx, t.ID, p.ID)
		return err
	})
	record("trade", lifecycle.TradeAcceptProposal, err)
	if err != nil {
		return nil, classify(err)
	}

	actx, cancel := s.after(ctx)
	defer cancel()
	s.Audit.TradeTransition(actx, a.Req, a.idPtr(), t.ID, auditlog.Transition{
		Action: string(lifecycle.TradeAcceptProposal), From: string(t.Status), To: string(tTo),
	})
	s.Audit.ProposalDecision(actx, a.Req, a.Ref.ID, p.ID, t.ID, auditlog.Transition{
		Action: string(lifecycle.DecisionAccept), From: string(p.Status), To: string(pTo),
	})
	s.send(actx, notify.Input{
		RecipientID: p.ProposerID,
		Type:        models.NotifyProposalAccepted,
		Title:       "Proposal accepted",
		Message:     fmt.Sprintf("%s accepted your proposal for %q.", a.Ref.Name, t.Title),
		EntityKind:  "trade",
		EntityID:    oid(t.ID),
		Actor:       &a.Ref,
		DedupeKey:   "proposal:" + p.ID.Hex() + ":accepted",
	})
	s.notifyRejectedProposals(actx, a, *t, rejected)
	return updated, nil
}

func (s *Service) notifyRejectedProposals(ctx context.Context, a Actor, t models.Trade, rejected []models.Proposal) {
	for _, r := range rejected {
		s.send(ctx, notify.Input{
			RecipientID: r.ProposerID,
			Type:        models.NotifyProposalRejected,
			Title:       "Proposal not accepted",
			Message:     fmt.Sprintf("Your proposal for %q was not accepted.", t.Title),
			EntityKind:  "trade",
			EntityID:    oid(t.ID),
			Actor:       &a.Ref,
			DedupeKey:   "proposal:" + r.ID.Hex() + ":rejected",
		})
	}
}

// RejectProposal declines one pending proposal.
func (s *Service) RejectProposal(ctx context.Context, a Actor, proposalID primitive.ObjectID) (*models.Proposal, error) {
	p, t, party, err := s.proposalContext(ctx, a, proposalID)
	if err != nil {
		return nil, err
	}
	to, err := lifecycle.NextProposal(p.Status, lifecycle.DecisionReject, party)
	if err == nil {
		p, err = s.Proposals.SetStatus(ctx, proposalID, lifecycle.DecisionPending, to)
	}
	record("proposal", lifecycle.DecisionReject, err)
	if err != nil {
		return nil, classify(err)
	}

	actx, cancel := s.after(ctx)
	defer cancel()
	s.Audit.ProposalDecision(actx, a.Req, a.Ref.ID, p.ID, t.ID, auditlog.Transition{
		Action: string(lifecycle.DecisionReject), From: string(lifecycle.DecisionPending), To: string(to),
	})
	s.notifyRejectedProposals(actx, a, *t, []models.Proposal{*p})
	return p, nil
}

// transition validates action on the trade for a and applies it with ch.
// It returns the trade before and after the change.
func (s *Service) transition(ctx context.Context, a Actor, tradeID primitive.ObjectID, action lifecycle.TradeAction, party *lifecycle.Party, ch func(t models.Trade) tradestore.Change) (before, after *models.Trade, err error) {
	t, err := s.Trades.GetByID(ctx, tradeID)
	if err != nil {
		return nil, nil, classify(err)
	}
	p := tradepolicy.PartyOf(*t, a.Ref.ID, a.Admin)
	if party != nil {
		p = *party
	}
	to, err := lifecycle.NextTrade(tradepolicy.State(*t), action, p)
	if err == nil {
		var change tradestore.Change
		if ch != nil {
			change = ch(*t)
		}
		after, err = s.Trades.Transition(ctx, t.ID, t.Status, to, change)
	}
	record("trade", action, err)
	if err != nil {
		return nil, nil, classify(err)
	}
	s.Audit.TradeTransition(ctx, a.Req, a.idPtr(), t.ID, auditlog.Transition{
		Action: string(action), From: string(t.Status), To: string(to),
	})
	return t, after, nil
}

// CompletionInput accompanies a completion request.
type CompletionInput struct {
	Notes    string
	Evidence []models.Evidence
}

// RequestCompletion asks the other party to confirm the trade is done.
func (s *Service) RequestCompletion(ctx context.Context, a Actor, tradeID primitive.ObjectID, in CompletionInput) (*models.Trade, error) {
	if err := checkEvidence(in.Evidence...); err != nil {
		return nil, err
	}
	for i := range in.Evidence {
		in.Evidence[i].AddedBy = a.Ref.ID
	}
	_, t, err := s.transition(ctx, a, tradeID, lifecycle.TradeRequestCompletion, nil, func(models.Trade) tradestore.Change {
		return tradestore.Change{
			RequestedBy: oid(a.Ref.ID),
			Notes:       htmlsanitize.PlainText(in.Notes),
			Evidence:    in.Evidence,
		}
	})
	if err != nil {
		return nil, err
	}

	actx, cancel := s.after(ctx)
	defer cancel()
	if other, ok := t.Counterparty(a.Ref.ID); ok {
		s.send(actx, notify.Input{
			RecipientID: other,
			Type:        models.NotifyTradeCompletionRequested,
			Title:       "Please confirm completion",
			Message:     fmt.Sprintf("%s marked %q as complete. Confirm or request changes.", a.Ref.Name, t.Title),
			EntityKind:  "trade",
			EntityID:    oid(t.ID),
			Actor:       &a.Ref,
		})
	}
	return t, nil
}

// ConfirmCompletion completes the trade and awards XP to both parties.
func (s *Service) ConfirmCompletion(ctx context.Context, a Actor, tradeID primitive.ObjectID) (*models.Trade, error) {
	_, t, err := s.transition(ctx, a, tradeID, lifecycle.TradeConfirmCompletion, nil, func(models.Trade) tradestore.Change {
		return tradestore.Change{Completed: true}
	})
	if err != nil {
		return nil, err
	}
	s.completed(ctx, a, *t)
	return t, nil
}

// completed awards XP and notifies both parties of a completed trade.
func (s *Service) completed(ctx context.Context, a Actor, t models.Trade) {
	actx, cancel := s.after(ctx)
	defer cancel()

	parties := []primitive.ObjectID{t.CreatorID}
	if t.ParticipantID != nil {
		parties = append(parties, *t.ParticipantID)
	}
	for _, uid := range parties {
		s.AwardXP(actx, uid, s.cfg.TradeXP, models.XPSourceTrade, t.ID, fmt.Sprintf("Completed trade %q", t.Title))
		msg := fmt.Sprintf("%q is complete. You earned %d XP.", t.Title, s.cfg.TradeXP)
		if a.IsSystem() {
			msg = fmt.Sprintf("%q was completed automatically after no response. You earned %d XP.", t.Title, s.cfg.TradeXP)
		}
		// No actor: the confirming party gets the XP notice too.
		s.send(actx, notify.Input{
			RecipientID: uid,
			Type:        models.NotifyTradeCompleted,
			Title:       "Trade completed",
			Message:     msg,
			EntityKind:  "trade",
			EntityID:    oid(t.ID),
			DedupeKey:   "trade:" + t.ID.Hex() + ":completed",
		})
	}
}

// RequestChanges sends the trade back to in-progress with a reason.
func (s *Service) RequestChanges(ctx context.Context, a Actor, tradeID primitive.ObjectID, reason string) (*models.Trade, error) {
	reason = htmlsanitize.PlainText(reason)
	if reason == "" {
		return nil, Invalid("Say what needs to change.")
	}
	before, t, err := s.transition(ctx, a, tradeID, lifecycle.TradeRequestChanges, nil, func(models.Trade) tradestore.Change {
		return tradestore.Change{
			ClearRequest:  true,
			ChangeRequest: &models.ChangeRequest{By: a.Ref.ID, Reason: reason},
		}
	})
	if err != nil {
		return nil, err
	}

	actx, cancel := s.after(ctx)
	defer cancel()
	if before.CompletionRequestedBy != nil {
		s.send(actx, notify.Input{
			RecipientID: *before.CompletionRequestedBy,
			Type:        models.NotifyTradeChangesRequested,
			Title:       "Changes requested",
			Message:     fmt.Sprintf("%s requested changes on %q: %s", a.Ref.Name, t.Title, reason),
			EntityKind:  "trade",
			EntityID:    oid(t.ID),
			Actor:       &a.Ref,
		})
	}
	return t, nil
}

// Dispute flags a completion request for an admin to resolve.
func (s *Service) Dispute(ctx context.Context, a Actor, tradeID primitive.ObjectID, reason string) (*models.Trade, error) {
	reason = htmlsanitize.PlainText(reason)
	if reason == "" {
		return nil, Invalid("A reason is required to open a dispute.")
	}
	_, t, err := s.transition(ctx, a, tradeID, lifecycle.TradeDispute, nil, func(models.Trade) tradestore.Change {
		return tradestore.Change{DisputeReason: reason}
	})
	if err != nil {
		return nil, err
	}

	actx, cancel := s.after(ctx)
	defer cancel()
	if other, ok := t.Counterparty(a.Ref.ID); ok {
		s.send(actx, notify.Input{
			RecipientID: other,
			Type:        models.NotifyTradeDisputed,
			Title:       "Trade disputed",
			Message:     fmt.Sprintf("%s disputed the completion of %q. An admin will review it.", a.Ref.Name, t.Title),
			EntityKind:  "trade",
			EntityID:    oid(t.ID),
			Actor:       &a.Ref,
		})
	}
	return t, nil
}

// ResolveDispute returns a disputed trade to in-progress. Admin only.
func (s *Service) ResolveDispute(ctx context.Context, a Actor, tradeID primitive.ObjectID, resolution string) (*models.Trade, error) {
	if !a.Admin {
		return nil, fail(ErrForbidden, "Only admins can resolve disputes.", nil)
	}
	resolution = htmlsanitize.PlainText(resolution)
	admin := lifecycle.PartyAdmin
	_, t, err := s.transition(ctx, a, tradeID, lifecycle.TradeResolveDispute, &admin, func(models.Trade) tradestore.Change {
		return tradestore.Change{ClearRequest: true}
	})
	if err != nil {
		return nil, err
	}

	actx, cancel := s.after(ctx)
	defer cancel()
	s.Audit.DisputeResolved(actx, a.Req, a.Ref.ID, t.ID, resolution)
	msg := fmt.Sprintf("The dispute on %q was resolved and the trade is back in progress.", t.Title)
	if resolution != "" {
		msg += " " + resolution
	}
	for _, uid := range []primitive.ObjectID{t.CreatorID, derefID(t.ParticipantID)} {
		if uid.IsZero() {
			continue
		}
		s.send(actx, notify.Input{
			RecipientID: uid,
			Type:        models.NotifySystem,
			Title:       "Dispute resolved",
			Message:     msg,
			EntityKind:  "trade",
			EntityID:    oid(t.ID),
			Actor:       &a.Ref,
		})
	}
	return t, nil
}

// CancelTrade cancels an open or in-progress trade. Pending proposals on an
// open trade are rejected.
func (s *Service) CancelTrade(ctx context.Context, a Actor, tradeID primitive.ObjectID) (*models.Trade, error) {
	before, t, err := s.transition(ctx, a, tradeID, lifecycle.TradeCancel, nil, nil)
	if err != nil {
		return nil, err
	}

	actx, cancel := s.after(ctx)
	defer cancel()
	if before.Status == lifecycle.TradeOpen {
		rejected, err := s.Proposals.RejectOthers(actx, t.ID, primitive.NilObjectID)
		if err != nil {
			s.Log.Error("reject proposals of cancelled trade", zap.String("trade_id", t.ID.Hex()), zap.Error(err))
		}
		s.notifyRejectedProposals(actx, a, *t, rejected)
	}
	if other, ok := t.Counterparty(a.Ref.ID); ok {
		s.send(actx, notify.Input{
			RecipientID: other,
			Type:        models.NotifyTradeCancelled,
			Title:       "Trade cancelled",
			Message:     fmt.Sprintf("%s cancelled %q.", a.Ref.Name, t.Title),
			EntityKind:  "trade",
			EntityID:    oid(t.ID),
			Actor:       &a.Ref,
		})
	}
	return t, nil
}

// AddEvidence attaches proof of work while the trade is under way.
func (s *Service) AddEvidence(ctx context.Context, a Actor, tradeID primitive.ObjectID, ev models.Evidence) (models.Evidence, error) {
	t, err := s.Trades.GetByID(ctx, tradeID)
	if err != nil {
		return models.Evidence{}, classify(err)
	}
	if err := tradepolicy.CanAddEvidence(*t, a.Ref.ID); err != nil {
		return models.Evidence{}, classify(err)
	}
	if err := checkEvidence(ev); err != nil {
		return models.Evidence{}, err
	}
	ev.AddedBy = a.Ref.ID
	out, err := s.Trades.AddEvidence(ctx, tradeID,
		[]lifecycle.TradeStatus{lifecycle.TradeInProgress, lifecycle.TradePendingConfirmation}, ev)
	if err != nil {
		return models.Evidence{}, classify(err)
	}
	return out, nil
}

// AutoCompleteStale completes trades whose completion request was made at
// or before requestedBefore and never answered.
func (s *Service) AutoCompleteStale(ctx context.Context, requestedBefore time.Time) (int, error) {
	stale, err := s.Trades.ListPendingOlderThan(ctx, requestedBefore, false, sweepBatch)
	if err != nil {
		return 0, err
	}
	system := lifecycle.PartySystem
	done := 0
	for _, st := range stale {
		_, t, err := s.transition(ctx, SystemActor, st.ID, lifecycle.TradeAutoComplete, &system, func(models.Trade) tradestore.Change {
			return tradestore.Change{Completed: true}
		})
		if err != nil {
			if !errors.Is(err, ErrConflict) {
				s.Log.Warn("auto-complete trade failed", zap.String("trade_id", st.ID.Hex()), zap.Error(err))
			}
			continue
		}
		s.completed(ctx, SystemActor, *t)
		done++
	}
	return done, nil
}

// RemindPending reminds the confirming party of trades waiting since
// requestedBefore. Each completion request is reminded once.
func (s *Service) RemindPending(ctx context.Context, requestedBefore time.Time) (int, error) {
	waiting, err := s.Trades.ListPendingOlderThan(ctx, requestedBefore, true, sweepBatch)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, t := range waiting {
		if t.CompletionRequestedBy == nil {
			continue
		}
		other, ok := t.Counterparty(*t.CompletionRequestedBy)
		if !ok {
			continue
		}
		marked, err := s.Trades.MarkReminderSent(ctx, t.ID)
		if err != nil {
			s.Log.Warn("mark reminder sent failed", zap.String("trade_id", t.ID.Hex()), zap.Error(err))
			continue
		}
		if !marked {
			continue
		}
		key := "reminder:" + t.ID.Hex()
		if t.CompletionRequestedAt != nil {
			key += fmt.Sprintf(":%d", t.CompletionRequestedAt.Unix())
		}
		s.send(ctx, notify.Input{
			RecipientID: other,
			Type:        models.NotifyTradeConfirmationReminder,
			Title:       "Trade waiting for you",
			Message:     fmt.Sprintf("%q is waiting for your confirmation. It will complete automatically if there is no response.", t.Title),
			EntityKind:  "trade",
			EntityID:    oid(t.ID),
			DedupeKey:   key,
		})
		sent++
	}
	return sent, nil
}

func derefID(id *primitive.ObjectID) primitive.ObjectID {
	if id == nil {
		return primitive.NilObjectID
	}
	return *id
}

func checkEvidence(evs ...models.Evidence) error {
	for _, ev := range evs {
		if strings.TrimSpace(ev.URL) == "" {
			return Invalid("Evidence needs a URL.")
		}
	}
	return nil
}
