package infra

import (
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Unique constraint names declared on the models. Services map these to
// field-specific conflict messages.
const (
	ConstraintUserUsername  = "uq_user_username"
	ConstraintUserEmail     = "uq_user_email"
	ConstraintVersionNumero = "uq_version_numero"
	ConstraintOAuthProvider = "uq_oauth_provider_user"

	// IndexUserEmailLower backs the case-insensitive email rule.
	IndexUserEmailLower = "uq_user_email_lower"
)

// indexAliases folds secondary unique indexes onto the constraint callers know.
var indexAliases = map[string]string{
	IndexUserEmailLower: ConstraintUserEmail,
}

// sqlite reports "UNIQUE constraint failed: users.username" with columns,
// not the index name, so columns are mapped back to the declared names.
// Expression indexes are reported as "index 'name'" instead.
var (
	sqliteUnique      = regexp.MustCompile(`UNIQUE constraint failed: ([\w.,\s]+)`)
	sqliteUniqueIndex = regexp.MustCompile(`UNIQUE constraint failed: index '(\w+)'`)
)

var sqliteColumns = map[string]string{
	"users.username":          ConstraintUserUsername,
	"users.email":             ConstraintUserEmail,
	"versions.numero_version": ConstraintVersionNumero,
	"oauth_signin.provider, oauth_signin.provider_user_id": ConstraintOAuthProvider,
}

// IsUniqueViolation reports whether err is a unique-key violation on either
// supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// ConstraintName returns the name of the violated unique constraint, or "" when
// err is not a unique violation or the constraint is unknown.
func ConstraintName(err error) string {
	if !IsUniqueViolation(err) {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if alias, ok := indexAliases[pgErr.ConstraintName]; ok {
			return alias
		}
		return pgErr.ConstraintName
	}
	if m := sqliteUniqueIndex.FindStringSubmatch(err.Error()); m != nil {
		return indexAliases[m[1]]
	}
	m := sqliteUnique.FindStringSubmatch(err.Error())
	if m == nil {
		return ""
	}
	return sqliteColumns[strings.TrimSpace(m[1])]
}
