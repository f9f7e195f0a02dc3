// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/tradeya/tradeya/internal/domain/lifecycle"
	"github.com/tradeya/tradeya/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
//
// The schemas reject null and undefined values in required fields, so a
// partially built document never reaches the database.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	// helper: ensure collection exists (with truthful logging) and then validator (if provided)
	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			// DocumentDB or other deployments may not support collMod/validators.
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("users", usersSchema())

	// Trades and their proposals
	ensure("trades", tradesSchema())
	ensure("proposals", proposalsSchema())

	// Collaborations and role applications
	ensure("collaborations", collaborationsSchema())
	ensure("role_applications", applicationsSchema())

	ensure("notifications", notificationsSchema())
	ensure("challenges", challengesSchema())
	ensure("challenge_participants", participantsSchema())
	ensure("xp_transactions", xpSchema())

	// These don't strictly need validators; we still ensure the collections exist.
	ensure("login_records", nil)
	ensure("oauth_states", nil)
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
// Uses ListCollectionNames to avoid "created collection" log when it didn't.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	exists, listErr := collectionExists(ctx, db, name)
	if listErr == nil && exists {
		zap.L().Info("collection exists", zap.String("collection", name))
		return false, nil
	}
	// If listing failed, fall back to create-and-handle-race.
	if err := db.CreateCollection(ctx, name); err != nil {
		// NamespaceExists / already exists is fine (race or prior run).
		if isNamespaceExistsErr(err) {
			zap.L().Info("collection exists", zap.String("collection", name))
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

func isNamespaceExistsErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 48 || strings.Contains(strings.ToLower(ce.Message), "already exists")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "already exists") || strings.Contains(s, "namespace exists")
}

func isNoSuchCommand(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 59 || strings.Contains(strings.ToLower(ce.Message), "no such command")) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "no such command")
}

func isNotImplemented(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 115 ||
		strings.Contains(strings.ToLower(ce.Message), "not implemented") ||
		strings.Contains(strings.ToLower(ce.Message), "not supported")) {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "not implemented") || strings.Contains(s, "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

func enumOf[S ~string](values []S) bson.A {
	out := make(bson.A, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}

var (
	nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}
	str      = bson.M{"bsonType": "string"}
	oid      = bson.M{"bsonType": "objectId"}
	date     = bson.M{"bsonType": "date"}
)

func skillsSchema() bson.M {
	return bson.M{
		"bsonType": "array",
		"items": bson.M{
			"bsonType": "object",
			"required": bson.A{"name"},
			"properties": bson.M{
				"name":  nonBlank,
				"level": str,
			},
		},
	}
}

func authMethodEnum() bson.A {
	out := bson.A{}
	for _, m := range models.AllAuthMethods {
		out = append(out, m.Value)
	}
	return out
}

func usersSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"display_name", "display_name_ci", "email_ci", "role", "status", "auth_method"},
			"properties": bson.M{
				"display_name":    nonBlank,
				"display_name_ci": nonBlank,
				"email":           str,
				"email_ci":        nonBlank,
				"role":            bson.M{"enum": bson.A{"user", "admin"}},
				"status":          bson.M{"enum": bson.A{"active", "disabled"}},
				"auth_method":     bson.M{"enum": authMethodEnum()},
				"skills_offered":  skillsSchema(),
				"skills_wanted":   skillsSchema(),
				"xp":              bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 0},
				"level":           bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 1},
			},
		},
	}
}

func tradesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "title_ci", "status", "creator_id", "offered_skills", "requested_skills", "evidence", "change_requests", "created_at"},
			"properties": bson.M{
				"title":            nonBlank,
				"title_ci":         nonBlank,
				"description":      str,
				"category":         str,
				"status":           bson.M{"enum": enumOf(lifecycle.TradeStatuses)},
				"creator_id":       oid,
				"participant_id":   oid,
				"offered_skills":   skillsSchema(),
				"requested_skills": skillsSchema(),
				"evidence": bson.M{
					"bsonType": "array",
					"items": bson.M{
						"bsonType": "object",
						"required": bson.A{"id", "url", "added_by", "added_at"},
						"properties": bson.M{
							"id":       nonBlank,
							"url":      nonBlank,
							"added_by": oid,
							"added_at": date,
						},
					},
				},
				"change_requests":         bson.M{"bsonType": "array"},
				"completion_requested_by": oid,
				"completion_requested_at": date,
				"created_at":              date,
				"updated_at":              date,
			},
		},
	}
}

func proposalsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"trade_id", "proposer_id", "status", "offered_skills", "created_at"},
			"properties": bson.M{
				"trade_id":       oid,
				"proposer_id":    oid,
				"message":        str,
				"offered_skills": skillsSchema(),
				"status":         bson.M{"enum": enumOf(lifecycle.DecisionStatuses)},
				"created_at":     date,
			},
		},
	}
}

func collaborationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "title_ci", "status", "creator_id", "roles", "participant_ids", "created_at"},
			"properties": bson.M{
				"title":      nonBlank,
				"title_ci":   nonBlank,
				"status":     bson.M{"enum": enumOf(lifecycle.CollaborationStatuses)},
				"creator_id": oid,
				"roles": bson.M{
					"bsonType": "array",
					"items": bson.M{
						"bsonType": "object",
						"required": bson.A{"id", "title", "status"},
						"properties": bson.M{
							"id":              nonBlank,
							"title":           nonBlank,
							"status":          bson.M{"enum": enumOf(lifecycle.RoleStatuses)},
							"required_skills": skillsSchema(),
							"assignee_id":     oid,
						},
					},
				},
				"participant_ids": bson.M{"bsonType": "array", "items": oid},
				"created_at":      date,
			},
		},
	}
}

func applicationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"collaboration_id", "role_id", "applicant_id", "status", "created_at"},
			"properties": bson.M{
				"collaboration_id": oid,
				"role_id":          nonBlank,
				"applicant_id":     oid,
				"message":          str,
				"status":           bson.M{"enum": enumOf(lifecycle.DecisionStatuses)},
				"decided_by":       oid,
				"created_at":       date,
			},
		},
	}
}

func notificationsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"recipient_id", "type", "category", "title", "read", "created_at"},
			"properties": bson.M{
				"recipient_id": oid,
				"type":         bson.M{"enum": enumOf(models.AllNotificationTypes)},
				"category":     bson.M{"enum": enumOf(models.AllNotificationCategories)},
				"title":        nonBlank,
				"message":      str,
				"read":         bson.M{"bsonType": "bool"},
				"created_at":   date,
			},
		},
	}
}

func challengesSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"title", "title_ci", "status", "xp_reward", "starts_at", "created_at"},
			"properties": bson.M{
				"title":     nonBlank,
				"title_ci":  nonBlank,
				"status":    bson.M{"enum": bson.A{models.ChallengeActive, models.ChallengeClosed}},
				"xp_reward": bson.M{"bsonType": bson.A{"long", "int"}, "minimum": 0},
				"starts_at": date,
				"ends_at":   date,
			},
		},
	}
}

func participantsSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"challenge_id", "user_id", "status", "joined_at"},
			"properties": bson.M{
				"challenge_id": oid,
				"user_id":      oid,
				"status":       bson.M{"enum": enumOf(lifecycle.ParticipationStatuses)},
				"joined_at":    date,
			},
		},
	}
}

func xpSchema() bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"user_id", "amount", "source", "source_id", "created_at"},
			"properties": bson.M{
				"user_id":    oid,
				"amount":     bson.M{"bsonType": bson.A{"long", "int"}},
				"source":     bson.M{"enum": bson.A{models.XPSourceTrade, models.XPSourceChallenge}},
				"source_id":  oid,
				"created_at": date,
			},
		},
	}
}
