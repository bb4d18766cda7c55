package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/MorseWayne/petshop_engine/internal/domain"
)

// OrderRepository 订单数据访问接口。读取不存在的订单返回 nil, nil。
type OrderRepository interface {
	// Create 持久化订单并分配单调递增的ID
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	// List 按条件列出订单，最新的在前
	List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error)
	// UpdateState 仅写回可变字段：状态、支付状态、物流单号与更新时间
	UpdateState(ctx context.Context, o *domain.Order) error
	// Delete 删除订单，用于结算失败时撤销
	Delete(ctx context.Context, id int64) error
}

// orderRepo 基于 MySQL 的实现，订单行与明细行在同一事务内写入
type orderRepo struct {
	db *sql.DB
}

// NewOrderRepository 创建 MySQL 订单仓储
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepo{db: db}
}

// Create 创建订单
func (r *orderRepo) Create(ctx context.Context, o *domain.Order) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO orders (customer_id, customer_name, subtotal, discount, shipping, total, coupon_code,
			status, payment_method, payment_status, shipping_address, tracking_code, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.CustomerID,
		o.CustomerName,
		o.Subtotal,
		o.Discount,
		o.Shipping,
		o.Total,
		o.CouponCode,
		o.Status,
		o.PaymentMethod,
		o.PaymentStatus,
		o.ShippingAddress,
		o.TrackingCode,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i, it := range o.Items {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, line_no, product_id, product_name, unit_price, quantity, stock_at_add_time)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, i, it.ProductID, it.ProductName, it.UnitPrice, it.Quantity, it.StockAtAddTime)
		if err != nil {
			return fmt.Errorf("failed to create order item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	o.ID = id
	return nil
}

const orderColumns = `id, customer_id, customer_name, subtotal, discount, shipping, total, coupon_code,
	status, payment_method, payment_status, shipping_address, tracking_code, created_at, updated_at`

func scanOrder(row rowScanner) (*domain.Order, error) {
	o := &domain.Order{}
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.CustomerName,
		&o.Subtotal,
		&o.Discount,
		&o.Shipping,
		&o.Total,
		&o.CouponCode,
		&o.Status,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.ShippingAddress,
		&o.TrackingCode,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (r *orderRepo) loadItems(ctx context.Context, o *domain.Order) error {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, product_name, unit_price, quantity, stock_at_add_time
		FROM order_items WHERE order_id = ? ORDER BY line_no ASC
	`, o.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	o.Items = []domain.CartItem{}
	for rows.Next() {
		var it domain.CartItem
		if err := rows.Scan(&it.ProductID, &it.ProductName, &it.UnitPrice, &it.Quantity, &it.StockAtAddTime); err != nil {
			return err
		}
		o.Items = append(o.Items, it)
	}
	return rows.Err()
}

// GetByID 根据ID获取订单及明细
func (r *orderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order by id: %w", err)
	}
	if err := r.loadItems(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	return o, nil
}

// List 列出订单，ID 倒序
func (r *orderRepo) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if filter.CustomerID != "" {
		query += ` WHERE customer_id = ?`
		args = append(args, filter.CustomerID)
	}
	query += ` ORDER BY id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	rows.Close()

	// 明细在释放结果集后加载，避免占用两个连接
	for _, o := range orders {
		if err := r.loadItems(ctx, o); err != nil {
			return nil, fmt.Errorf("failed to get order items: %w", err)
		}
	}
	return orders, nil
}

// UpdateState 更新订单可变字段
func (r *orderRepo) UpdateState(ctx context.Context, o *domain.Order) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, payment_status = ?, tracking_code = ?, updated_at = ?
		WHERE id = ?
	`, o.Status, o.PaymentStatus, o.TrackingCode, o.UpdatedAt, o.ID)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// Delete 删除订单，明细由外键级联删除
func (r *orderRepo) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete order: %w", err)
	}
	return nil
}

// memoryOrderRepo 内存实现
type memoryOrderRepo struct {
	mu     sync.RWMutex
	nextID int64
	orders map[int64]*domain.Order
}

// NewMemoryOrderRepository 创建内存订单仓储
func NewMemoryOrderRepository() OrderRepository {
	return &memoryOrderRepo{orders: make(map[int64]*domain.Order)}
}

func (r *memoryOrderRepo) Create(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	o.ID = r.nextID
	r.orders[o.ID] = o.Clone()
	return nil
}

func (r *memoryOrderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	return o.Clone(), nil
}

func (r *memoryOrderRepo) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orders []*domain.Order
	for _, o := range r.orders {
		if filter.CustomerID == "" || o.CustomerID == filter.CustomerID {
			orders = append(orders, o.Clone())
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID > orders[j].ID })
	return orders, nil
}

func (r *memoryOrderRepo) UpdateState(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.orders[o.ID]
	if !ok {
		return ErrRecordNotFound
	}
	stored.Status = o.Status
	stored.PaymentStatus = o.PaymentStatus
	stored.TrackingCode = o.TrackingCode
	stored.UpdatedAt = o.UpdatedAt
	return nil
}

func (r *memoryOrderRepo) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.orders, id)
	return nil
}
