package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"cuadra/internal/cache"
	apperrors "cuadra/internal/errors"
	"cuadra/internal/models"
)

// writeTx runs fn in a transaction that also bumps the version of the group
// fn reports, then announces the new version once the transaction commits.
func writeTx(ctx context.Context, db *gorm.DB, inv Invalidator, userID string, fn func(tx *gorm.DB) (string, error)) error {
	var change cache.Change
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		groupID, err := fn(tx)
		if err != nil {
			return err
		}
		change, err = inv.InvalidateTx(tx, userID, &groupID)
		return err
	})
	if err != nil {
		return dbError(err)
	}
	inv.Announce(ctx, change)
	return nil
}

// dbError maps a storage failure to an AppError. AppErrors pass through
// unchanged; connectivity failures become UNAVAILABLE so callers can retry.
func dbError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if isUnavailable(err) {
		return apperrors.Wrap(apperrors.ErrUnavailable, err)
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 is connection exceptions; 57P01..57P03 are shutdowns.
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0")
	}

	if pgconn.SafeToRetry(err) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// findMembership loads the caller's row in a group, if any.
func findMembership(db *gorm.DB, userID, groupID string) (*models.GroupMembership, error) {
	var m models.GroupMembership
	err := db.Where("group_id = ? AND user_id = ?", groupID, userID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dbError(err)
	}
	return &m, nil
}

// requireActiveMember returns the caller's active membership or FORBIDDEN.
// The answer is the same whether or not the group exists.
func requireActiveMember(db *gorm.DB, userID, groupID string) (*models.GroupMembership, error) {
	m, err := findMembership(db, userID, groupID)
	if err != nil {
		return nil, err
	}
	if m == nil || !m.IsActive() {
		return nil, apperrors.ErrForbidden
	}
	return m, nil
}

func requireAdmin(db *gorm.DB, userID, groupID string) (*models.GroupMembership, error) {
	m, err := requireActiveMember(db, userID, groupID)
	if err != nil {
		return nil, err
	}
	if !m.IsAdmin() {
		return nil, apperrors.ErrForbidden
	}
	return m, nil
}

// newInviteToken returns a random token and the hash stored in its place.
func newInviteToken() (token, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token = hex.EncodeToString(buf)
	return token, hashToken(token), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
