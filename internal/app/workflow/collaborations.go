// internal/app/workflow/collaborations.go
package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/tradeya/tradeya/internal/app/policy/collabpolicy"
	"github.com/tradeya/tradeya/internal/app/system/auditlog"
	"github.com/tradeya/tradeya/internal/app/system/htmlsanitize"
	"github.com/tradeya/tradeya/internal/app/system/notify"
	"github.com/tradeya/tradeya/internal/app/system/txn"
	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// RoleInput describes a role to add.
type RoleInput struct {
	Title          string
	Description    string
	RequiredSkills []models.Skill
}

func (in RoleInput) role() models.Role {
	return models.Role{
		Title:          in.Title,
		Description:    htmlsanitize.PlainText(in.Description),
		RequiredSkills: in.RequiredSkills,
	}
}

// CollaborationInput is the editable part of a new collaboration.
type CollaborationInput struct {
	Title       string
	Description string
	Roles       []RoleInput
}

// CreateCollaboration starts recruiting for a new collaboration owned by a.
func (s *Service) CreateCollaboration(ctx context.Context, a Actor, in CollaborationInput) (models.Collaboration, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.Collaboration{}, Invalid("Title is required.")
	}
	roles := make([]models.Role, 0, len(in.Roles))
	for _, r := range in.Roles {
		if strings.TrimSpace(r.Title) == "" {
			return models.Collaboration{}, Invalid("Every role needs a title.")
		}
		roles = append(roles, r.role())
	}
	c, err := s.Collabs.Create(ctx, models.Collaboration{
		Title:        in.Title,
		Description:  htmlsanitize.Sanitize(in.Description),
		CreatorID:    a.Ref.ID,
		CreatorName:  a.Ref.Name,
		CreatorPhoto: a.Ref.PhotoURL,
		Roles:        roles,
	})
	if err != nil {
		return models.Collaboration{}, classify(err)
	}
	s.Log.Info("collaboration created", zap.String("collaboration_id", c.ID.Hex()), zap.Int("roles", len(c.Roles)))
	return c, nil
}

// GetCollaboration loads a collaboration.
func (s *Service) GetCollaboration(ctx context.Context, id primitive.ObjectID) (*models.Collaboration, error) {
	c, err := s.Collabs.GetByID(ctx, id)
	return c, classify(err)
}

// managed loads a collaboration a must be allowed to manage.
func (s *Service) managed(ctx context.Context, a Actor, id primitive.ObjectID) (*models.Collaboration, error) {
	c, err := s.Collabs.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	if err := collabpolicy.CanManage(*c, a.Ref.ID); err != nil {
		return nil, classify(err)
	}
	return c, nil
}

// AddRole adds an open role to a recruiting or in-progress collaboration.
func (s *Service) AddRole(ctx context.Context, a Actor, collabID primitive.ObjectID, in RoleInput) (models.Role, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.Role{}, Invalid("Role title is required.")
	}
	if _, err := s.managed(ctx, a, collabID); err != nil {
		return models.Role{}, err
	}
	r, err := s.Collabs.AddRole(ctx, collabID, in.role())
	if err != nil {
		return models.Role{}, classify(err)
	}
	return r, nil
}

// CloseRole stops a role from receiving applications and rejects the
// pending ones.
func (s *Service) CloseRole(ctx context.Context, a Actor, collabID primitive.ObjectID, roleID string) (*models.Collaboration, error) {
	return s.roleAction(ctx, a, collabID, roleID, lifecycle.RoleClose)
}

// ReopenRole reopens a closed role.
func (s *Service) ReopenRole(ctx context.Context, a Actor, collabID primitive.ObjectID, roleID string) (*models.Collaboration, error) {
	return s.roleAction(ctx, a, collabID, roleID, lifecycle.RoleReopen)
}

func (s *Service) roleAction(ctx context.Context, a Actor, collabID primitive.ObjectID, roleID string, action lifecycle.RoleAction) (*models.Collaboration, error) {
	c, err := s.managed(ctx, a, collabID)
	if err != nil {
		return nil, err
	}
	role, ok := c.Role(roleID)
	if !ok {
		return nil, fail(ErrNotFound, "Role not found.", nil)
	}
	to, err := lifecycle.NextRole(role.Status, action, lifecycle.PartyCreator)
	if err == nil {
		c, err = s.Collabs.SetRoleStatus(ctx, collabID, roleID, role.Status, to)
	}
	record("role", action, err)
	if err != nil {
		return nil, classify(err)
	}
	if to == lifecycle.RoleClosed {
		actx, cancel := s.after(ctx)
		defer cancel()
		s.rejectPending(actx, a, *c, roleID)
	}
	return c, nil
}

// rejectPending rejects the pending applications for the given roles, or for
// every role when none are named, and tells the applicants.
func (s *Service) rejectPending(ctx context.Context, a Actor, c models.Collaboration, roleIDs ...string) {
	if len(roleIDs) == 0 {
		for _, r := range c.Roles {
			roleIDs = append(roleIDs, r.ID)
		}
	}
	for _, roleID := range roleIDs {
		rejected, err := s.Applications.RejectOthers(ctx, c.ID, roleID, primitive.NilObjectID, a.Ref.ID)
		if err != nil {
			s.Log.Error("reject pending applications",
				zap.String("collaboration_id", c.ID.Hex()), zap.String("role_id", roleID), zap.Error(err))
			continue
		}
		s.notifyRejectedApplications(ctx, a, c, rejected)
	}
}

// Apply asks to fill an open role and notifies the collaboration's creator.
func (s *Service) Apply(ctx context.Context, a Actor, collabID primitive.ObjectID, roleID, message string) (models.RoleApplication, error) {
	c, err := s.Collabs.GetByID(ctx, collabID)
	if err != nil {
		return models.RoleApplication{}, classify(err)
	}
	if err := collabpolicy.CanApply(*c, roleID, a.Ref.ID); err != nil {
		return models.RoleApplication{}, classify(err)
	}
	app, err := s.Applications.Create(ctx, models.RoleApplication{
		CollaborationID: c.ID,
		RoleID:          roleID,
		ApplicantID:     a.Ref.ID,
		ApplicantName:   a.Ref.Name,
		ApplicantPhoto:  a.Ref.PhotoURL,
		Message:         htmlsanitize.PlainText(message),
	})
	if err != nil {
		return models.RoleApplication{}, classify(err)
	}

	role, _ := c.Role(roleID)
	actx, cancel := s.after(ctx)
	defer cancel()
	s.send(actx, notify.Input{
		RecipientID: c.CreatorID,
		Type:        models.NotifyRoleApplication,
		Title:       "New role application",
		Message:     fmt.Sprintf("%s applied for %s in %q.", a.Ref.Name, role.Title, c.Title),
		EntityKind:  "collaboration",
		EntityID:    oid(c.ID),
		Actor:       &a.Ref,
		DedupeKey:   "application:" + app.ID.Hex(),
	})
	return app, nil
}

// WithdrawApplication lets the applicant take back a pending application.
func (s *Service) WithdrawApplication(ctx context.Context, a Actor, appID primitive.ObjectID) (*models.RoleApplication, error) {
	app, err := s.Applications.GetByID(ctx, appID)
	if err != nil {
		return nil, classify(err)
	}
	party := lifecycle.PartyOther
	if app.ApplicantID == a.Ref.ID {
		party = lifecycle.PartyApplicant
	}
	to, err := lifecycle.NextApplication(app.Status, lifecycle.DecisionWithdraw, party)
	if err == nil {
		app, err = s.Applications.SetStatus(ctx, appID, lifecycle.DecisionPending, to, nil)
	}
	record("application", lifecycle.DecisionWithdraw, err)
	if err != nil {
		return nil, classify(err)
	}
	s.Audit.ApplicationDecision(ctx, a.Req, a.Ref.ID, app.ID, app.RoleID, auditlog.Transition{
		Action: string(lifecycle.DecisionWithdraw), From: string(lifecycle.DecisionPending), To: string(to),
	})
	return app, nil
}

func (s *Service) applicationContext(ctx context.Context, a Actor, appID primitive.ObjectID) (*models.RoleApplication, *models.Collaboration, lifecycle.Party, error) {
	app, err := s.Applications.GetByID(ctx, appID)
	if err != nil {
		return nil, nil, "", classify(err)
	}
	c, err := s.Collabs.GetByID(ctx, app.CollaborationID)
	if err != nil {
		return nil, nil, "", classify(err)
	}
	return app, c, collabpolicy.PartyOf(*c, a.Ref.ID, a.Admin), nil
}

// AcceptApplication fills the role with the applicant and rejects the other
// pending applications for it, in one transaction.
func (s *Service) AcceptApplication(ctx context.Context, a Actor, appID primitive.ObjectID) (*models.Collaboration, error) {
	app, c, party, err := s.applicationContext(ctx, a, appID)
	if err != nil {
		return nil, err
	}
	to, err := lifecycle.NextApplication(app.Status, lifecycle.DecisionAccept, party)
	if err != nil {
		record("application", lifecycle.DecisionAccept, err)
		return nil, classify(err)
	}
	role, ok := c.Role(app.RoleID)
	if !ok {
		return nil, fail(ErrNotFound, "Role not found.", nil)
	}
	if _, err := lifecycle.NextRole(role.Status, lifecycle.RoleFill, party); err != nil {
		record("role", lifecycle.RoleFill, err)
		return nil, classify(err)
	}
	if c.IsParticipant(app.ApplicantID) {
		return nil, classify(collabpolicy.ErrAlreadyMember)
	}

	var (
		updated  *models.Collaboration
		rejected []models.RoleApplication
	)
	err = txn.Run(ctx, s.DB, s.Log, func(ctx context.Context) error {
		var err error
		assignee := models.UserRef{ID: app.ApplicantID, Name: app.ApplicantName, PhotoURL: app.ApplicantPhoto}
		updated, err = s.Collabs.FillRole(ctx, c.ID, app.RoleID, assignee)
		if err != nil {
			return err
		}
		if _, err = s.Applications.SetStatus(ctx, app.ID, app.Status, to, &a.Ref.ID); err != nil {
			return err
		}
		rejected, err = s.Applications.RejectOthers(ctx, c.ID, app.RoleID, app.ID, a.Ref.ID)
		return err
	})
	record("application", lifecycle.DecisionAccept, err)
	if err != nil {
		return nil, classify(err)
	}

	actx, cancel := s.after(ctx)
	defer cancel()
	s.Audit.ApplicationDecision(actx, a.Req, a.Ref.ID, app.ID, app.RoleID, auditlog.Transition{
		Action: string(lifecycle.DecisionAccept), From: string(app.Status), To: string(to),
	})
	s.send(actx, notify.Input{
		RecipientID: app.ApplicantID,
		Type:        models.NotifyApplicationAccepted,
		Title:       "Application accepted",
		Message:     fmt.Sprintf("You are now %s in %q.", role.Title, c.Title),
		EntityKind:  "collaboration",
		EntityID:    oid(c.ID),
		Actor:       &a.Ref,
		DedupeKey:   "application:" + app.ID.Hex() + ":accepted",
	})
	s.notifyRejectedApplications(actx, a, *c, rejected)
	return updated, nil
}

// RejectApplication declines one pending application.
func (s *Service) RejectApplication(ctx context.Context, a Actor, appID primitive.ObjectID) (*models.RoleApplication, error) {
	app, c, party, err := s.applicationContext(ctx, a, appID)
	if err != nil {
		return nil, err
	}
	to, err := lifecycle.NextApplication(app.Status, lifecycle.DecisionReject, party)
	if err == nil {
		app, err = s.Applications.SetStatus(ctx, appID, lifecycle.DecisionPending, to, &a.Ref.ID)
	}
	record("application", lifecycle.DecisionReject, err)
	if err != nil {
		return nil, classify(err)
	}

	actx, cancel := s.after(ctx)
	defer cancel()
	s.Audit.ApplicationDecision(actx, a.Req, a.Ref.ID, app.ID, app.RoleID, auditlog.Transition{
		Action: string(lifecycle.DecisionReject), From: string(lifecycle.DecisionPending), To: string(to),
	})
	s.notifyRejectedApplications(actx, a, *c, []models.RoleApplication{*app})
	return app, nil
}

func (s *Service) notifyRejectedApplications(ctx context.Context, a Actor, c models.Collaboration, rejected []models.RoleApplication) {
	for _, app := range rejected {
		title := "a role"
		if r, ok := c.Role(app.RoleID); ok {
			title = r.Title
		}
		s.send(ctx, notify.Input{
			RecipientID: app.ApplicantID,
			Type:        models.NotifyApplicationRejected,
			Title:       "Application not accepted",
			Message:     fmt.Sprintf("Your application for %s in %q was not accepted.", title, c.Title),
			EntityKind:  "collaboration",
			EntityID:    oid(c.ID),
			Actor:       &a.Ref,
			DedupeKey:   "application:" + app.ID.Hex() + ":rejected",
		})
	}
}

// StartCollaboration moves a recruiting collaboration with at least one
// filled role to in-progress.
func (s *Service) StartCollaboration(ctx context.Context, a Actor, id primitive.ObjectID) (*models.Collaboration, error) {
	return s.collabTransition(ctx, a, id, lifecycle.CollabStart, models.NotifyCollaborationStarted,
		"Collaboration started", "%q has started.")
}

// CompleteCollaboration marks an in-progress collaboration done. Pending
// applications are rejected.
func (s *Service) CompleteCollaboration(ctx context.Context, a Actor, id primitive.ObjectID) (*models.Collaboration, error) {
	return s.collabTransition(ctx, a, id, lifecycle.CollabComplete, models.NotifyCollaborationCompleted,
		"Collaboration completed", "%q is complete. Thanks for taking part.")
}

// CancelCollaboration cancels a collaboration. The creator or an admin may.
// Pending applications are rejected.
func (s *Service) CancelCollaboration(ctx context.Context, a Actor, id primitive.ObjectID) (*models.Collaboration, error) {
	return s.collabTransition(ctx, a, id, lifecycle.CollabCancel, models.NotifySystem,
		"Collaboration cancelled", "%q was cancelled.")
}

func (s *Service) collabTransition(ctx context.Context, a Actor, id primitive.ObjectID, action lifecycle.CollaborationAction, nt models.NotificationType, title, format string) (*models.Collaboration, error) {
	c, err := s.Collabs.GetByID(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	party := collabpolicy.PartyOf(*c, a.Ref.ID, a.Admin)
	// A participant who is also an admin acts as admin.
	if party == lifecycle.PartyParticipant && a.Admin {
		party = lifecycle.PartyAdmin
	}
	to, err := lifecycle.NextCollaboration(collabpolicy.State(*c), action, party)
	var updated *models.Collaboration
	if err == nil {
		updated, err = s.Collabs.SetStatus(ctx, id, c.Status, to)
	}
	record("collaboration", action, err)
	if err != nil {
		return nil, classify(err)
	}

	actx, cancel := s.after(ctx)
	defer cancel()
	s.Audit.CollaborationTransition(actx, a.Req, a.Ref.ID, id, auditlog.Transition{
		Action: string(action), From: string(c.Status), To: string(to),
	})
	if to == lifecycle.CollabCompleted || to == lifecycle.CollabCancelled {
		s.rejectPending(actx, a, *updated)
	}
	recipients := append([]primitive.ObjectID{c.CreatorID}, updated.ParticipantIDs...)
	ins := make([]notify.Input, 0, len(recipients))
	for _, uid := range recipients {
		ins = append(ins, notify.Input{
			RecipientID: uid,
			Type:        nt,
			Title:       title,
			Message:     fmt.Sprintf(format, c.Title),
			EntityKind:  "collaboration",
			EntityID:    oid(id),
			Actor:       &a.Ref,
			DedupeKey:   fmt.Sprintf("collaboration:%s:%s", id.Hex(), to),
		})
	}
	s.send(actx, ins...)
	return updated, nil
}
