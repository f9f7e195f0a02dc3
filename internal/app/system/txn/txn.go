// Package txn runs multi-document writes in a MongoDB transaction when the
// deployment supports it, and falls back to sequential writes when it does
// not (standalone servers used in development).
package txn

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Run executes fn inside a transaction on db's client. When transactions are
// not supported, fn is executed once without a session and the fallback is
// logged at warn level. fn must only use the ctx it is given.
func Run(ctx context.Context, db *mongo.Database, logger *zap.Logger, fn func(ctx context.Context) error) error {
	sess, err := db.Client().StartSession()
	if err != nil {
		if IsNotSupported(err) {
			return runWithout(ctx, logger, fn, err)
		}
		return err
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	if err != nil && IsNotSupported(err) {
		return runWithout(ctx, logger, fn, err)
	}
	return err
}

func runWithout(ctx context.Context, logger *zap.Logger, fn func(ctx context.Context) error, cause error) error {
	if logger != nil {
		logger.Warn("transactions not supported; running without", zap.Error(cause))
	}
	return fn(ctx)
}

// IsNotSupported reports whether err indicates that the server cannot run
// transactions (no replica set, or a command illegal in a transaction).
func IsNotSupported(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		switch ce.Code {
		case 20, 51, 263: // IllegalOperation, NotAReplicaSet-style, OperationNotSupportedInTransaction
			return true
		}
	}

	s := strings.ToLower(err.Error())
	hits := 0
	for _, kw := range []string{"transaction", "replica set", "session", "not supported", "illegal operation"} {
		if strings.Contains(s, kw) {
			hits++
		}
	}
	return hits >= 2
}
