package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amarflybot/curly-octo-memory/internal/platform/db"
	"github.com/amarflybot/curly-octo-memory/internal/shared"
)

const uniqueViolation = "23505"

// PGStore persists policy tuples in PostgreSQL. Schema:
//
//	CREATE TABLE policy_rules (
//	    id     BIGSERIAL PRIMARY KEY,
//	    ptype  TEXT NOT NULL,
//	    v0     TEXT NOT NULL DEFAULT '',
//	    v1     TEXT NOT NULL DEFAULT '',
//	    v2     TEXT NOT NULL DEFAULT '',
//	    v3     TEXT NOT NULL DEFAULT '',
//	    UNIQUE (ptype, v0, v1, v2, v3)
//	);
//
// The positional layout matches the interchangeable tuple shape: for "g"
// rows (v0, v1, v2) = (user-or-child-role, role, domain); for "p" rows
// (v0, v1, v2, v3) = (subject, domain, object, action).
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a store backed by the provided pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func unavailable(op string, err error) error {
	return fmt.Errorf("policy: %s: %w: %v", op, shared.ErrUnavailable, err)
}

func (s *PGStore) insert(ctx context.Context, ptype string, vals ...string) (bool, error) {
	v := make([]any, 4)
	for i := range v {
		v[i] = ""
		if i < len(vals) {
			v[i] = vals[i]
		}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO policy_rules (ptype, v0, v1, v2, v3) VALUES ($1, $2, $3, $4, $5)`,
		ptype, v[0], v[1], v[2], v[3])
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			// Tuple already present; idempotent no-op.
			return false, nil
		}
		return false, unavailable("insert", err)
	}
	return true, nil
}

func (s *PGStore) remove(ctx context.Context, ptype string, vals ...string) error {
	v := make([]any, 4)
	for i := range v {
		v[i] = ""
		if i < len(vals) {
			v[i] = vals[i]
		}
	}
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM policy_rules WHERE ptype = $1 AND v0 = $2 AND v1 = $3 AND v2 = $4 AND v3 = $5`,
		ptype, v[0], v[1], v[2], v[3])
	if err != nil {
		return unavailable("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("policy: tuple (%s, %s): %w", ptype, strings.Join(vals, ", "), shared.ErrNotFound)
	}
	return nil
}

// AddRoleAssignment inserts a user→role tuple.
func (s *PGStore) AddRoleAssignment(ctx context.Context, a RoleAssignment) (bool, error) {
	return s.insert(ctx, PtypeGrouping, a.User, a.Role, a.Domain)
}

// RemoveRoleAssignment deletes a user→role tuple.
func (s *PGStore) RemoveRoleAssignment(ctx context.Context, a RoleAssignment) error {
	return s.remove(ctx, PtypeGrouping, a.User, a.Role, a.Domain)
}

// AddRoleInclusion inserts a childRole→parentRole tuple.
func (s *PGStore) AddRoleInclusion(ctx context.Context, i RoleInclusion) (bool, error) {
	return s.insert(ctx, PtypeGrouping, i.Child, i.Parent, i.Domain)
}

// RemoveRoleInclusion deletes a childRole→parentRole tuple.
func (s *PGStore) RemoveRoleInclusion(ctx context.Context, i RoleInclusion) error {
	return s.remove(ctx, PtypeGrouping, i.Child, i.Parent, i.Domain)
}

// AddPermissionGrant inserts a permission tuple.
func (s *PGStore) AddPermissionGrant(ctx context.Context, g PermissionGrant) (bool, error) {
	return s.insert(ctx, PtypePermission, g.Subject, g.Domain, g.Object, g.Action)
}

// RemovePermissionGrant deletes a permission tuple.
func (s *PGStore) RemovePermissionGrant(ctx context.Context, g PermissionGrant) error {
	return s.remove(ctx, PtypePermission, g.Subject, g.Domain, g.Object, g.Action)
}

func (s *PGStore) query(ctx context.Context, ptype string, conds map[string]*string) ([][4]string, error) {
	sb := strings.Builder{}
	sb.WriteString(`SELECT v0, v1, v2, v3 FROM policy_rules WHERE ptype = $1`)
	args := []any{ptype}
	for _, col := range []string{"v0", "v1", "v2", "v3"} {
		if val := conds[col]; val != nil {
			args = append(args, *val)
			fmt.Fprintf(&sb, " AND %s = $%d", col, len(args))
		}
	}
	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, unavailable("query", err)
	}
	defer rows.Close()
	var out [][4]string
	for rows.Next() {
		var t [4]string
		if err := rows.Scan(&t[0], &t[1], &t[2], &t[3]); err != nil {
			return nil, unavailable("scan", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("rows", err)
	}
	return out, nil
}

// RoleAssignments returns grouping tuples matching the filter.
func (s *PGStore) RoleAssignments(ctx context.Context, f AssignmentFilter) ([]RoleAssignment, error) {
	rows, err := s.query(ctx, PtypeGrouping, map[string]*string{"v0": f.User, "v2": f.Domain})
	if err != nil {
		return nil, err
	}
	out := make([]RoleAssignment, len(rows))
	for i, t := range rows {
		out[i] = RoleAssignment{User: t[0], Role: t[1], Domain: t[2]}
	}
	return out, nil
}

// RoleInclusions returns grouping tuples matching the filter, viewed as
// child→parent edges.
func (s *PGStore) RoleInclusions(ctx context.Context, f InclusionFilter) ([]RoleInclusion, error) {
	rows, err := s.query(ctx, PtypeGrouping, map[string]*string{"v2": f.Domain})
	if err != nil {
		return nil, err
	}
	out := make([]RoleInclusion, len(rows))
	for i, t := range rows {
		out[i] = RoleInclusion{Child: t[0], Parent: t[1], Domain: t[2]}
	}
	return out, nil
}

// PermissionGrants returns permission tuples matching the filter.
func (s *PGStore) PermissionGrants(ctx context.Context, f GrantFilter) ([]PermissionGrant, error) {
	rows, err := s.query(ctx, PtypePermission, map[string]*string{"v0": f.Subject, "v1": f.Domain, "v2": f.Object, "v3": f.Action})
	if err != nil {
		return nil, err
	}
	out := make([]PermissionGrant, len(rows))
	for i, t := range rows {
		out[i] = PermissionGrant{Subject: t[0], Domain: t[1], Object: t[2], Action: t[3]}
	}
	return out, nil
}

// DeleteUser removes every tuple referencing username in one transaction.
func (s *PGStore) DeleteUser(ctx context.Context, username string) error {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM policy_rules WHERE ptype = $1 AND v0 = $2`, PtypeGrouping, username); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM policy_rules WHERE ptype = $1 AND v0 = $2`, PtypePermission, username); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return unavailable("delete user", err)
	}
	return nil
}

var _ Store = (*PGStore)(nil)
