package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lhkhiem/ipd8-khoahoc-sub002/internal/repository"
)

type orderRepo struct {
	db *sql.DB
}

const orderColumns = `id, order_number, total, payment_method, payment_status, order_status,
        app_trans_id, gateway_trans_id, customer_name, customer_email, customer_phone, created_at, updated_at`

func (r *orderRepo) Create(ctx context.Context, order *repository.Order) (*repository.Order, error) {
	const query = `INSERT INTO orders (order_number, total, payment_method, payment_status, order_status,
        app_trans_id, gateway_trans_id, customer_name, customer_email, customer_phone, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, query,
		order.OrderNumber,
		order.Total,
		order.PaymentMethod,
		order.PaymentStatus,
		order.OrderStatus,
		emptyToNull(order.AppTransID),
		optionalString(order.GatewayTransID),
		order.CustomerName,
		order.CustomerEmail,
		order.CustomerPhone,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	order.ID = id
	return order, nil
}

func (r *orderRepo) FindByID(ctx context.Context, id int64) (*repository.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
}

func (r *orderRepo) FindByOrderNumber(ctx context.Context, number string) (*repository.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = ?`, number)
}

func (r *orderRepo) FindByAppTransID(ctx context.Context, appTransID string) (*repository.Order, error) {
	return r.findOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE app_trans_id = ?`, appTransID)
}

func (r *orderRepo) findOne(ctx context.Context, query string, arg any) (*repository.Order, error) {
	row := r.db.QueryRowContext(ctx, query, arg)
	order, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *orderRepo) AssignAppTransID(ctx context.Context, orderID int64, appTransID string, updatedAt int64) (bool, error) {
	const query = `UPDATE orders SET app_trans_id = ?, updated_at = ?
        WHERE id = ? AND (app_trans_id IS NULL OR app_trans_id = '' OR app_trans_id = ?)`
	res, err := r.db.ExecContext(ctx, query, appTransID, updatedAt, orderID, appTransID)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// UpdatePaymentStatus is the conditional write guarding all payment-state
// transitions. The WHERE clause pins the pre-read payment_status so two
// racing callers cannot both win; order_status is advanced in the same
// statement and is never regressed.
func (r *orderRepo) UpdatePaymentStatus(ctx context.Context, upd repository.PaymentStatusUpdate) (bool, error) {
	const query = `UPDATE orders SET
        payment_status = ?,
        gateway_trans_id = COALESCE(?, gateway_trans_id),
        order_status = CASE WHEN ? = 1 AND order_status = 'pending' THEN 'processing' ELSE order_status END,
        updated_at = ?
        WHERE app_trans_id = ? AND payment_status = ?`
	res, err := r.db.ExecContext(ctx, query,
		upd.ToStatus,
		optionalString(upd.GatewayTransID),
		boolToInt(upd.AdvanceOrder),
		upd.UpdatedAt,
		upd.AppTransID,
		upd.FromStatus,
	)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *orderRepo) ListPendingOlderThan(ctx context.Context, method string, createdBefore int64, limit int) ([]*repository.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders
        WHERE payment_method = ? AND payment_status = 'pending' AND app_trans_id IS NOT NULL AND created_at < ?
        ORDER BY created_at ASC LIMIT ?`
	return r.list(ctx, query, method, createdBefore, limitOrDefault(limit))
}

func (r *orderRepo) ListRemediationTargets(ctx context.Context, filter repository.RemediationFilter) ([]*repository.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders
        WHERE payment_method = ? AND app_trans_id IS NOT NULL AND (
            (gateway_trans_id IS NOT NULL AND payment_status != 'paid')
            OR (payment_status = 'pending' AND created_at < ?)
        )
        ORDER BY created_at ASC LIMIT ?`
	return r.list(ctx, query, filter.PaymentMethod, filter.PendingCreatedLT, limitOrDefault(filter.Limit))
}

func (r *orderRepo) list(ctx context.Context, query string, args ...any) ([]*repository.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*repository.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

type orderScanner interface {
	Scan(dest ...any) error
}

func scanOrder(scanner orderScanner) (*repository.Order, error) {
	var (
		id             int64
		orderNumber    string
		total          int64
		paymentMethod  sql.NullString
		paymentStatus  sql.NullString
		orderStatus    sql.NullString
		appTransID     sql.NullString
		gatewayTransID sql.NullString
		customerName   sql.NullString
		customerEmail  sql.NullString
		customerPhone  sql.NullString
		createdAt      int64
		updatedAt      int64
	)

	if err := scanner.Scan(
		&id,
		&orderNumber,
		&total,
		&paymentMethod,
		&paymentStatus,
		&orderStatus,
		&appTransID,
		&gatewayTransID,
		&customerName,
		&customerEmail,
		&customerPhone,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	order := &repository.Order{
		ID:            id,
		OrderNumber:   orderNumber,
		Total:         total,
		PaymentMethod: paymentMethod.String,
		PaymentStatus: paymentStatus.String,
		OrderStatus:   orderStatus.String,
		AppTransID:    appTransID.String,
		CustomerName:  customerName.String,
		CustomerEmail: customerEmail.String,
		CustomerPhone: customerPhone.String,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
	if gatewayTransID.Valid {
		order.GatewayTransID = &gatewayTransID.String
	}
	return order, nil
}
