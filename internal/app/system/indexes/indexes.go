// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// collectionIndexes pairs a collection with its desired index set.
type collectionIndexes struct {
	name   string
	models func() []mongo.IndexModel
}

var all = []collectionIndexes{
	{"users", userIndexes},
	{"trades", tradeIndexes},
	{"proposals", proposalIndexes},
	{"collaborations", collaborationIndexes},
	{"role_applications", applicationIndexes},
	{"notifications", notificationIndexes},
	{"challenges", challengeIndexes},
	{"challenge_participants", participantIndexes},
	{"xp_transactions", xpIndexes},
	// profile pages read "recent logins" from login_records
	{"login_records", loginRecordIndexes},
	{"oauth_states", oauthStateIndexes},
	{"audit_events", auditIndexes},
}

/*
EnsureAll is called at startup. Each index set is reconciled idempotently.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, ci := range all {
		if err := ensureIndexSet(ctx, db.Collection(ci.name), ci.models()); err != nil {
			problems = append(problems, ci.name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

// duplicateHint returns a shell snippet that finds the offending documents
// for the unique indexes most likely to hit legacy duplicates.
func duplicateHint(coll, sig string) string {
	switch {
	case coll == "users" && strings.Contains(sig, "email_ci:1"):
		return ". Example finder:\n" +
			`db.users.aggregate([{ $group: { _id: "$email_ci", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
	case coll == "xp_transactions":
		return ". Example finder:\n" +
			`db.xp_transactions.aggregate([{ $group: { _id: { u: "$user_id", s: "$source", id: "$source_id" }, n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
	}
	return ""
}

func createErr(coll, name, sig string, unique *bool, err error) string {
	if isDuplicateKeyErr(err) && unique != nil && *unique {
		return fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)%s", coll, name, duplicateHint(coll, sig))
	}
	return fmt.Sprintf("%s(%s): %v", coll, name, err)
}

func listExisting(ctx context.Context, coll *mongo.Collection) map[string]existingIndex {
	existing := map[string]existingIndex{} // sig -> index
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return existing
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing
}

// recreate drops ex and creates m in its place.
func recreate(ctx context.Context, coll *mongo.Collection, ex existingIndex, m mongo.IndexModel, name, sig string, unique *bool) error {
	if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
		zap.L().Warn("drop existing index failed",
			zap.String("collection", coll.Name()),
			zap.String("name", ex.Name),
			zap.String("keys", sig),
			zap.Error(err))
		return fmt.Errorf("%s(%s): drop failed: %v", coll.Name(), name, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
		return errors.New(createErr(coll.Name(), name, sig, unique, err))
	}
	return nil
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))
		isUnique := desiredUnique != nil && *desiredUnique

		start := time.Now()
		zap.L().Info("ensuring index",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", isUnique))

		existing := listExisting(ctx, coll)

		if ex, ok := existing[desiredSig]; ok {
			switch {
			case sameBoolPtr(desiredUnique, ex.Unique) && (desiredName == "" || ex.Name == desiredName):
				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.String("took", time.Since(start).String()))
			default:
				// Name or uniqueness differs: drop and recreate with the desired options.
				if err := recreate(ctx, coll, ex, m, desiredName, desiredSig, desiredUnique); err != nil {
					errs = append(errs, err.Error())
					continue
				}
				zap.L().Info("index dropped and recreated",
					zap.String("collection", coll.Name()),
					zap.String("name", desiredName),
					zap.String("from", ex.Name),
					zap.String("keys", desiredSig),
					zap.Bool("unique", isUnique),
					zap.String("took", time.Since(start).String()))
			}
			continue
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err == nil {
			zap.L().Info("index ensured",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("created_name", created),
				zap.String("keys", desiredSig),
				zap.Bool("unique", isUnique),
				zap.String("took", time.Since(start).String()))
			continue
		}

		if isOptionsConflictErr(err) {
			if match, ok := listExisting(ctx, coll)[desiredSig]; ok {
				if sameBoolPtr(desiredUnique, match.Unique) {
					zap.L().Info("reusing existing index (post-conflict)",
						zap.String("collection", coll.Name()),
						zap.String("name", match.Name),
						zap.String("keys", desiredSig),
						zap.String("took", time.Since(start).String()))
					continue
				}
				if rerr := recreate(ctx, coll, match, m, desiredName, desiredSig, desiredUnique); rerr != nil {
					errs = append(errs, rerr.Error())
				}
				continue
			}
		}

		zap.L().Warn("index ensure failed",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", isUnique),
			zap.String("took", time.Since(start).String()),
			zap.Error(err))
		errs = append(errs, createErr(coll.Name(), desiredName, desiredSig, desiredUnique, err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func userIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Email is unique across all accounts (case/diacritics folded)
		{
			Keys:    bson.D{{Key: "email_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_users_emailci"),
		},
		// One account per Google subject; password accounts carry no google_sub
		{
			Keys: bson.D{{Key: "google_sub", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"google_sub": bson.M{"$type": "string"}}).
				SetName("uniq_users_googlesub"),
		},
		// Directory listing: name prefix search + stable sort
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "display_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_status_displaynameci__id"),
		},
		// Leaderboard (highest XP first)
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "xp", Value: -1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_users_status_xp__id"),
		},
	}
}

func tradeIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Browse: newest first, optionally filtered by status
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_trades_status__id"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "status", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_trades_category_status__id"),
		},
		// "My trades" as creator and as participant
		{
			Keys:    bson.D{{Key: "creator_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_trades_creator__id"),
		},
		{
			Keys:    bson.D{{Key: "participant_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_trades_participant__id"),
		},
		// Title prefix search
		{
			Keys:    bson.D{{Key: "title_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_trades_titleci__id"),
		},
		// Auto-complete and reminder sweeps
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "completion_requested_at", Value: 1}},
			Options: options.Index().SetName("idx_trades_status_completionrequestedat"),
		},
	}
}

func proposalIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// At most one pending proposal per proposer per trade
		{
			Keys: bson.D{{Key: "trade_id", Value: 1}, {Key: "proposer_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "pending"}).
				SetName("uniq_proposals_trade_proposer_pending"),
		},
		{
			Keys:    bson.D{{Key: "trade_id", Value: 1}, {Key: "status", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_proposals_trade_status__id"),
		},
		{
			Keys:    bson.D{{Key: "proposer_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_proposals_proposer__id"),
		},
	}
}

func collaborationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_collabs_status__id"),
		},
		{
			Keys:    bson.D{{Key: "creator_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_collabs_creator__id"),
		},
		// Multikey: collaborations a user has joined
		{
			Keys:    bson.D{{Key: "participant_ids", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_collabs_participants__id"),
		},
		{
			Keys:    bson.D{{Key: "title_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_collabs_titleci__id"),
		},
	}
}

func applicationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// At most one pending application per applicant per role
		{
			Keys: bson.D{{Key: "collaboration_id", Value: 1}, {Key: "role_id", Value: 1}, {Key: "applicant_id", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": "pending"}).
				SetName("uniq_apps_collab_role_applicant_pending"),
		},
		{
			Keys:    bson.D{{Key: "collaboration_id", Value: 1}, {Key: "status", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_apps_collab_status__id"),
		},
		{
			Keys:    bson.D{{Key: "applicant_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_apps_applicant__id"),
		},
	}
}

func notificationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Idempotent dispatch: a dedupe key is written at most once per recipient
		{
			Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "dedupe_key", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"dedupe_key": bson.M{"$type": "string"}}).
				SetName("uniq_notifications_recipient_dedupe"),
		},
		// Inbox: newest first, optionally by category
		{
			Keys:    bson.D{{Key: "recipient_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_notifications_recipient__id"),
		},
		{
			Keys:    bson.D{{Key: "recipient_id", Value: 1}, {Key: "category", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_notifications_recipient_category__id"),
		},
		// Unread badge count
		{
			Keys:    bson.D{{Key: "recipient_id", Value: 1}, {Key: "read", Value: 1}},
			Options: options.Index().SetName("idx_notifications_recipient_read"),
		},
		// Retention sweep of read notifications
		{
			Keys:    bson.D{{Key: "read", Value: 1}, {Key: "read_at", Value: 1}},
			Options: options.Index().SetName("idx_notifications_read_readat"),
		},
	}
}

func challengeIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_challenges_status__id"),
		},
		// Expiry sweep
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "ends_at", Value: 1}},
			Options: options.Index().SetName("idx_challenges_status_endsat"),
		},
	}
}

func participantIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// A user joins a challenge once
		{
			Keys:    bson.D{{Key: "challenge_id", Value: 1}, {Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_participants_challenge_user"),
		},
		{
			Keys:    bson.D{{Key: "challenge_id", Value: 1}, {Key: "status", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_participants_challenge_status__id"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_participants_user__id"),
		},
	}
}

func xpIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Each source awards a user at most once
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "source", Value: 1}, {Key: "source_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_xp_user_source_sourceid"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "_id", Value: -1}},
			Options: options.Index().SetName("idx_xp_user__id"),
		},
	}
}

func loginRecordIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// Per-user recent logins (latest-first)
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_logins_user_created"),
		},
		// Site-wide recent logins (latest-first)
		{
			Keys:    bson.D{{Key: "created_at", Value: -1}},
			Options: options.Index().SetName("idx_logins_created"),
		},
	}
}

func oauthStateIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "state", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_oauthstate_state"),
		},
		// TTL: Mongo removes states once expires_at has passed
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0).SetName("idx_oauthstate_expires_ttl"),
		},
	}
}

func auditIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_user_timestamp"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "event_type", Value: 1}, {Key: "timestamp", Value: -1}},
			Options: options.Index().SetName("idx_audit_category_event_timestamp"),
		},
	}
}
