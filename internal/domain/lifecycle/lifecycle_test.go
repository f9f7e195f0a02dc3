package lifecycle

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestNextTrade(t *testing.T) {
	tests := []struct {
		name    string
		state   TradeState
		action  TradeAction
		party   Party
		want    TradeStatus
		wantErr error
	}{
		{"creator accepts proposal", TradeState{Status: TradeOpen}, TradeAcceptProposal, PartyCreator, TradeInProgress, nil},
		{"other cannot accept proposal", TradeState{Status: TradeOpen}, TradeAcceptProposal, PartyOther, "", ErrNotPermitted},
		{"creator cancels open trade", TradeState{Status: TradeOpen}, TradeCancel, PartyCreator, TradeCancelled, nil},
		{"participant cannot cancel open trade", TradeState{Status: TradeOpen}, TradeCancel, PartyParticipant, "", ErrNotPermitted},
		{"participant requests completion", TradeState{Status: TradeInProgress}, TradeRequestCompletion, PartyParticipant, TradePendingConfirmation, nil},
		{"creator requests completion", TradeState{Status: TradeInProgress}, TradeRequestCompletion, PartyCreator, TradePendingConfirmation, nil},
		{"completion request needs in-progress", TradeState{Status: TradeOpen}, TradeRequestCompletion, PartyCreator, "", ErrInvalidTransition},
		{"participant cancels in-progress", TradeState{Status: TradeInProgress}, TradeCancel, PartyParticipant, TradeCancelled, nil},
		{"other party confirms", TradeState{Status: TradePendingConfirmation, RequestedBy: PartyParticipant}, TradeConfirmCompletion, PartyCreator, TradeCompleted, nil},
		{"requester cannot confirm own request", TradeState{Status: TradePendingConfirmation, RequestedBy: PartyCreator}, TradeConfirmCompletion, PartyCreator, "", ErrNotPermitted},
		{"confirm without requester", TradeState{Status: TradePendingConfirmation}, TradeConfirmCompletion, PartyCreator, "", ErrNotPermitted},
		{"other party requests changes", TradeState{Status: TradePendingConfirmation, RequestedBy: PartyCreator}, TradeRequestChanges, PartyParticipant, TradeInProgress, nil},
		{"other party disputes", TradeState{Status: TradePendingConfirmation, RequestedBy: PartyCreator}, TradeDispute, PartyParticipant, TradeDisputed, nil},
		{"admin resolves dispute", TradeState{Status: TradeDisputed}, TradeResolveDispute, PartyAdmin, TradeInProgress, nil},
		{"creator cannot resolve dispute", TradeState{Status: TradeDisputed}, TradeResolveDispute, PartyCreator, "", ErrNotPermitted},
		{"system auto-completes", TradeState{Status: TradePendingConfirmation, RequestedBy: PartyCreator}, TradeAutoComplete, PartySystem, TradeCompleted, nil},
		{"user cannot auto-complete", TradeState{Status: TradePendingConfirmation}, TradeAutoComplete, PartyCreator, "", ErrNotPermitted},
		{"completed is terminal", TradeState{Status: TradeCompleted}, TradeCancel, PartyCreator, "", ErrInvalidTransition},
		{"cancelled is terminal", TradeState{Status: TradeCancelled}, TradeAcceptProposal, PartyCreator, "", ErrInvalidTransition},
		{"unknown status", TradeState{Status: "proposed"}, TradeCancel, PartyCreator, "", ErrUnknownStatus},
		{"unknown action", TradeState{Status: TradeOpen}, TradeAction("archive"), PartyCreator, "", ErrUnknownAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextTrade(tt.state, tt.action, tt.party)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("NextTrade() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NextTrade() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("NextTrade() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTransitionError_Message(t *testing.T) {
	_, err := NextTrade(TradeState{Status: TradeCompleted}, TradeCancel, PartyCreator)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransitionError, got %T", err)
	}
	if te.Entity != "trade" || te.From != "completed" || te.Action != "cancel" {
		t.Errorf("unexpected fields: %+v", te)
	}
	want := `trade: cannot cancel from "completed" as creator: invalid transition`
	if te.Error() != want {
		t.Errorf("Error() = %q, want %q", te.Error(), want)
	}
}

func TestTradeTerminal(t *testing.T) {
	for _, s := range TradeStatuses {
		want := s == TradeCompleted || s == TradeCancelled
		if got := TradeTerminal(s); got != want {
			t.Errorf("TradeTerminal(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestValidTradeStatus(t *testing.T) {
	if !ValidTradeStatus("pending_confirmation") {
		t.Error("pending_confirmation should be valid")
	}
	if ValidTradeStatus("pending-confirmation") {
		t.Error("pending-confirmation should not be valid")
	}
}

func TestNextProposal(t *testing.T) {
	tests := []struct {
		name    string
		from    DecisionStatus
		action  DecisionAction
		party   Party
		want    DecisionStatus
		wantErr error
	}{
		{"creator accepts", DecisionPending, DecisionAccept, PartyCreator, DecisionAccepted, nil},
		{"creator rejects", DecisionPending, DecisionReject, PartyCreator, DecisionRejected, nil},
		{"system rejects", DecisionPending, DecisionReject, PartySystem, DecisionRejected, nil},
		{"applicant withdraws", DecisionPending, DecisionWithdraw, PartyApplicant, DecisionWithdrawn, nil},
		{"applicant cannot accept", DecisionPending, DecisionAccept, PartyApplicant, "", ErrNotPermitted},
		{"creator cannot withdraw", DecisionPending, DecisionWithdraw, PartyCreator, "", ErrNotPermitted},
		{"accepted is final", DecisionAccepted, DecisionReject, PartyCreator, "", ErrInvalidTransition},
		{"withdrawn is final", DecisionWithdrawn, DecisionAccept, PartyCreator, "", ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextProposal(tt.from, tt.action, tt.party)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NextProposal() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NextProposal() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNextApplication_EntityName(t *testing.T) {
	_, err := NextApplication(DecisionRejected, DecisionAccept, PartyCreator)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransitionError, got %v", err)
	}
	if te.Entity != "application" {
		t.Errorf("Entity = %q, want application", te.Entity)
	}
}

func TestNextCollaboration(t *testing.T) {
	tests := []struct {
		name    string
		state   CollaborationState
		action  CollaborationAction
		party   Party
		want    CollaborationStatus
		wantErr error
	}{
		{"start with filled role", CollaborationState{Status: CollabRecruiting, FilledRoles: 1}, CollabStart, PartyCreator, CollabInProgress, nil},
		{"start without filled role", CollaborationState{Status: CollabRecruiting}, CollabStart, PartyCreator, "", ErrNoFilledRoles},
		{"participant cannot start", CollaborationState{Status: CollabRecruiting, FilledRoles: 2}, CollabStart, PartyParticipant, "", ErrNotPermitted},
		{"complete in progress", CollaborationState{Status: CollabInProgress}, CollabComplete, PartyCreator, CollabCompleted, nil},
		{"cannot complete while recruiting", CollaborationState{Status: CollabRecruiting}, CollabComplete, PartyCreator, "", ErrInvalidTransition},
		{"admin cancels", CollaborationState{Status: CollabInProgress}, CollabCancel, PartyAdmin, CollabCancelled, nil},
		{"completed is final", CollaborationState{Status: CollabCompleted}, CollabCancel, PartyCreator, "", ErrInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextCollaboration(tt.state, tt.action, tt.party)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NextCollaboration() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NextCollaboration() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNextRole(t *testing.T) {
	if got, err := NextRole(RoleOpen, RoleFill, PartyCreator); err != nil || got != RoleFilled {
		t.Errorf("fill open role: got %q, %v", got, err)
	}
	if _, err := NextRole(RoleFilled, RoleFill, PartyCreator); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("fill filled role: got %v, want ErrInvalidTransition", err)
	}
	if got, err := NextRole(RoleClosed, RoleReopen, PartyCreator); err != nil || got != RoleOpen {
		t.Errorf("reopen closed role: got %q, %v", got, err)
	}
}

func TestNextParticipation(t *testing.T) {
	if got, err := NextParticipation(ParticipationJoined, ParticipationSubmit, PartyParticipant); err != nil || got != ParticipationSubmitted {
		t.Errorf("submit: got %q, %v", got, err)
	}
	if got, err := NextParticipation(ParticipationSubmitted, ParticipationApprove, PartyAdmin); err != nil || got != ParticipationCompleted {
		t.Errorf("approve: got %q, %v", got, err)
	}
	if got, err := NextParticipation(ParticipationSubmitted, ParticipationReturn, PartyAdmin); err != nil || got != ParticipationJoined {
		t.Errorf("return: got %q, %v", got, err)
	}
	if _, err := NextParticipation(ParticipationCompleted, ParticipationSubmit, PartyParticipant); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("resubmit completed: got %v, want ErrInvalidTransition", err)
	}
	if _, err := NextParticipation(ParticipationSubmitted, ParticipationApprove, PartyParticipant); !errors.Is(err, ErrNotPermitted) {
		t.Errorf("self approve: got %v, want ErrNotPermitted", err)
	}
}

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp   int64
		want int
	}{
		{-5, 1},
		{0, 1},
		{99, 1},
		{100, 2},
		{249, 2},
		{250, 3},
		{500, 4},
		{999, 4},
		{1000, 5},
		{1999, 5},
		{2000, 6},
		{4000, 7},
		{7999, 7},
		{8000, 8},
	}
	for _, tt := range tests {
		if got := LevelForXP(tt.xp); got != tt.want {
			t.Errorf("LevelForXP(%d) = %d, want %d", tt.xp, got, tt.want)
		}
	}
}

func TestXPForLevel_RoundTrip(t *testing.T) {
	for level := 1; level <= MaxLevel; level++ {
		xp := XPForLevel(level)
		if got := LevelForXP(xp); got != level {
			t.Errorf("LevelForXP(XPForLevel(%d)=%d) = %d", level, xp, got)
		}
		if level > 1 {
			if got := LevelForXP(xp - 1); got != level-1 {
				t.Errorf("LevelForXP(%d) = %d, want %d", xp-1, got, level-1)
			}
		}
	}
}

func TestLevel_SaturatesAtMaxInt64(t *testing.T) {
	done := make(chan int, 1)
	go func() { done <- LevelForXP(math.MaxInt64) }()
	select {
	case got := <-done:
		if got != MaxLevel {
			t.Errorf("LevelForXP(MaxInt64) = %d, want %d", got, MaxLevel)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("LevelForXP(MaxInt64) did not return")
	}

	if MaxLevel != 58 {
		t.Errorf("MaxLevel = %d, want 58", MaxLevel)
	}
	top := XPForLevel(MaxLevel)
	if top <= 0 {
		t.Fatalf("XPForLevel(MaxLevel) = %d, want positive", top)
	}
	for _, level := range []int{MaxLevel + 1, 70, 1000} {
		if got := XPForLevel(level); got != top {
			t.Errorf("XPForLevel(%d) = %d, want %d", level, got, top)
		}
	}
	if got := LevelForXP(top - 1); got != MaxLevel-1 {
		t.Errorf("LevelForXP(%d) = %d, want %d", top-1, got, MaxLevel-1)
	}
}
