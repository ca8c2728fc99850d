package repo

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/ndmitriev/estore/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

// CheckoutLine is one cart line handed to order creation. Prices are
// not part of it: they are snapshotted from the product table inside
// the creation transaction.
type CheckoutLine struct {
	ProductID uint
	Quantity  uint
}

// CreateOrder persists the order and all its items as one transaction.
// Every product is resolved at read time and its current price is
// frozen into the item. A missing product aborts the whole order.
func (r *GormRepo) CreateOrder(ctx context.Context, userID uint, lines []CheckoutLine) (*models.Order, error) {
	order := &models.Order{
		UserID: userID,
		Status: models.OrderStatusPlaced,
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		total := decimal.Zero
		items := make([]models.OrderItem, 0, len(lines))

		for _, line := range lines {
			var product models.Product
			if err := tx.First(&product, line.ProductID).Error; err != nil {
				return fmt.Errorf("product %d: %w", line.ProductID, err)
			}

			items = append(items, models.OrderItem{
				ProductID: product.ID,
				Quantity:  line.Quantity,
				PriceEach: product.Price,
			})
			total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}

		order.TotalAmount = total
		order.Items = items
		return tx.Create(order).Error
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// SetStatus overwrites the order status. Any non-empty string is
// accepted; the trust boundary sits with the administrative caller.
func (r *GormRepo) SetStatus(ctx context.Context, orderID uint, status string) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).First(&order, orderID).Error; err != nil {
		return nil, err
	}

	order.Status = status
	if err := r.DB.WithContext(ctx).Save(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("Items").First(&order, orderID).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, offset, limit int) ([]models.Order, error) {
	var orders []models.Order
	if err := r.DB.WithContext(ctx).Order("created_at DESC").Offset(offset).Limit(limit).Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
