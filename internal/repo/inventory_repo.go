// Package repo 实现数据访问层：商品与库存流水、订单、购物车。
// 每类数据都提供 MySQL（或缓存）实现与内存实现，接口一致。
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"

	"github.com/MorseWayne/petshop_engine/internal/domain"
)

var (
	// ErrDuplicate 主键冲突
	ErrDuplicate = errors.New("record already exists")
	// ErrStockConflict 追加流水时库存与流水记录的变更前库存不一致
	ErrStockConflict = errors.New("stock changed concurrently")
	// ErrRecordNotFound 更新或删除的记录不存在
	ErrRecordNotFound = errors.New("record not found")
)

// InventoryRepository 商品目录与库存流水的数据访问接口。
// 读取不存在的商品返回 nil, nil。
type InventoryRepository interface {
	CreateProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	GetLowStockProducts(ctx context.Context) ([]*domain.Product, error)

	// AppendMovement 原子地追加流水并把商品库存更新为 m.NewStock。
	// 当前库存不等于 m.PreviousStock 时返回 ErrStockConflict，不做任何修改。
	AppendMovement(ctx context.Context, m *domain.StockMovement) error
	// ListMovements 按条件查询流水，最新的在前
	ListMovements(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error)
	// SetStock 对账时直接改写库存投影
	SetStock(ctx context.Context, productID string, stock int) error
}

// inventoryRepo 基于 MySQL 的实现
type inventoryRepo struct {
	db *sql.DB
}

// NewInventoryRepository 创建 MySQL 库存仓储实例
func NewInventoryRepository(db *sql.DB) InventoryRepository {
	return &inventoryRepo{db: db}
}

const productColumns = `id, name, sku, price, unit, stock, initial_stock, min_stock, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	p := &domain.Product{}
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.SKU,
		&p.Price,
		&p.Unit,
		&p.Stock,
		&p.InitialStock,
		&p.MinStock,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func isDuplicateKey(err error) bool {
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// CreateProduct 新增商品
func (r *inventoryRepo) CreateProduct(ctx context.Context, p *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.Name,
		p.SKU,
		p.Price,
		p.Unit,
		p.Stock,
		p.InitialStock,
		p.MinStock,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// GetProduct 根据ID获取商品
func (r *inventoryRepo) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	p, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product by id: %w", err)
	}
	return p, nil
}

func (r *inventoryRepo) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// ListProducts 按ID升序列出全部商品
func (r *inventoryRepo) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	products, err := r.queryProducts(ctx, `SELECT `+productColumns+` FROM products ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// GetLowStockProducts 获取库存不高于最低库存的商品
func (r *inventoryRepo) GetLowStockProducts(ctx context.Context) ([]*domain.Product, error) {
	products, err := r.queryProducts(ctx,
		`SELECT `+productColumns+` FROM products WHERE stock <= min_stock ORDER BY (min_stock - stock) DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to get low stock products: %w", err)
	}
	return products, nil
}

// AppendMovement 在事务内锁定商品行，校验变更前库存后写入流水并更新库存
func (r *inventoryRepo) AppendMovement(ctx context.Context, m *domain.StockMovement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var stock int
	err = tx.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ? FOR UPDATE`, m.ProductID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrRecordNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to lock product: %w", err)
	}
	if stock != m.PreviousStock {
		return ErrStockConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, type, quantity, reason, notes, previous_stock, new_stock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID,
		m.ProductID,
		m.Type,
		m.Quantity,
		m.Reason,
		m.Notes,
		m.PreviousStock,
		m.NewStock,
		m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert stock movement: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE products SET stock = ?, updated_at = ? WHERE id = ?`,
		m.NewStock, m.CreatedAt, m.ProductID)
	if err != nil {
		return fmt.Errorf("failed to update product stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListMovements 查询流水，按写入顺序倒序
func (r *inventoryRepo) ListMovements(ctx context.Context, filter domain.MovementFilter) ([]*domain.StockMovement, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.ProductID != "" {
		conditions = append(conditions, "product_id = ?")
		args = append(args, filter.ProductID)
	}
	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}

	query := `
		SELECT id, product_id, type, quantity, reason, COALESCE(notes, ''), previous_stock, new_stock, created_at
		FROM stock_movements
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY seq DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	defer rows.Close()

	var movements []*domain.StockMovement
	for rows.Next() {
		m := &domain.StockMovement{}
		if err := rows.Scan(
			&m.ID,
			&m.ProductID,
			&m.Type,
			&m.Quantity,
			&m.Reason,
			&m.Notes,
			&m.PreviousStock,
			&m.NewStock,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stock movements: %w", err)
	}
	return movements, nil
}

// SetStock 直接改写库存投影
func (r *inventoryRepo) SetStock(ctx context.Context, productID string, stock int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock = ?, updated_at = CURRENT_TIMESTAMP(6) WHERE id = ? AND ? >= 0`,
		stock, productID, stock)
	if err != nil {
		return fmt.Errorf("failed to set stock: %w", err)
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
