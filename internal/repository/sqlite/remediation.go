package sqlite

import (
	"context"
	"database/sql"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
)

type remediationRepo struct {
	db *sql.DB
}

func (r *remediationRepo) Upsert(ctx context.Context, candidate *repository.RemediationCandidate) error {
	const query = `INSERT INTO remediation_candidates
        (app_trans_id, order_number, local_status, gateway_trans_id, reason, resolved, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, 0, ?, ?)
        ON CONFLICT(app_trans_id) DO UPDATE SET
            local_status = excluded.local_status,
            gateway_trans_id = excluded.gateway_trans_id,
            reason = excluded.reason,
            resolved = 0,
            updated_at = excluded.updated_at`
	_, err := r.db.ExecContext(ctx, query,
		candidate.AppTransID,
		candidate.OrderNumber,
		candidate.LocalStatus,
		optionalString(candidate.GatewayTransID),
		candidate.Reason,
		candidate.CreatedAt,
		candidate.UpdatedAt,
	)
	return err
}

func (r *remediationRepo) ListOpen(ctx context.Context) ([]*repository.RemediationCandidate, error) {
	const query = `SELECT id, app_trans_id, order_number, local_status, gateway_trans_id, reason, resolved, created_at, updated_at
        FROM remediation_candidates WHERE resolved = 0 ORDER BY created_at ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*repository.RemediationCandidate
	for rows.Next() {
		candidate, err := scanCandidate(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, candidate)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *remediationRepo) Resolve(ctx context.Context, appTransID string, resolvedAt int64) error {
	const query = `UPDATE remediation_candidates SET resolved = 1, updated_at = ? WHERE app_trans_id = ?`
	_, err := r.db.ExecContext(ctx, query, resolvedAt, appTransID)
	return err
}

type candidateScanner interface {
	Scan(dest ...any) error
}

func scanCandidate(scanner candidateScanner) (*repository.RemediationCandidate, error) {
	var (
		id             int64
		appTransID     string
		orderNumber    string
		localStatus    string
		gatewayTransID sql.NullString
		reason         sql.NullString
		resolved       sql.NullBool
		createdAt      int64
		updatedAt      int64
	)

	if err := scanner.Scan(
		&id,
		&appTransID,
		&orderNumber,
		&localStatus,
		&gatewayTransID,
		&reason,
		&resolved,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	candidate := &repository.RemediationCandidate{
		ID:          id,
		AppTransID:  appTransID,
		OrderNumber: orderNumber,
		LocalStatus: localStatus,
		Reason:      reason.String,
		Resolved:    resolved.Bool,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
	if gatewayTransID.Valid {
		candidate.GatewayTransID = &gatewayTransID.String
	}
	return candidate, nil
}
