package cart

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/example/farmcart/internal/datamodels/order"
	"github.com/example/farmcart/internal/datamodels/product"
)

var (
	// MinQuantity 单行最小数量（kg）
	MinQuantity = decimal.RequireFromString("0.25")
	// QuantityStep 每次加减的步长（kg）
	QuantityStep = decimal.RequireFromString("0.25")
)

// ErrLineNotFound 购物车中没有该商品
var ErrLineNotFound = errors.New("item not in cart")

// Cart 购物车，行按加入顺序排列，同一商品只占一行
type Cart struct {
	Lines []order.Line `json:"lines"`
}

// New 基于已有的行构造购物车（例如从设备状态恢复）
func New(lines []order.Line) *Cart {
	c := &Cart{Lines: make([]order.Line, 0, len(lines))}
	for _, l := range lines {
		l.Quantity = quantity(l)
		c.Lines = append(c.Lines, l)
	}
	return c
}

// quantity 旧数据可能没有数量，按最小数量处理
func quantity(l order.Line) decimal.Decimal {
	return l.QuantityOr(MinQuantity)
}

func (c *Cart) index(productID string) int {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// Add 加入商品：新商品以最小数量入车，已存在则加一个步长
func (c *Cart) Add(p *product.Product) {
	if i := c.index(p.ID); i >= 0 {
		c.Lines[i].Quantity = quantity(c.Lines[i]).Add(QuantityStep).Round(2)
		return
	}
	c.Lines = append(c.Lines, order.Line{
		ProductID:   p.ID,
		Title:       p.Title,
		Category:    p.Category,
		Price:       p.Price,
		ActualPrice: p.ActualPrice,
		Weight:      p.Weight,
		Quantity:    MinQuantity,
		ImageURL:    p.ImageURL,
		Description: p.Description,
	})
}

// Increment 数量加一个步长
func (c *Cart) Increment(productID string) error {
	i := c.index(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	c.Lines[i].Quantity = quantity(c.Lines[i]).Add(QuantityStep).Round(2)
	return nil
}

// Decrement 数量减一个步长；已是最小数量时整行移除，返回 removed=true
func (c *Cart) Decrement(productID string) (removed bool, err error) {
	i := c.index(productID)
	if i < 0 {
		return false, ErrLineNotFound
	}
	q := quantity(c.Lines[i])
	if q.GreaterThan(MinQuantity) {
		next := q.Sub(QuantityStep).Round(2)
		if next.LessThan(MinQuantity) {
			next = MinQuantity
		}
		c.Lines[i].Quantity = next
		return false, nil
	}
	c.removeAt(i)
	return true, nil
}

// Remove 移除整行
func (c *Cart) Remove(productID string) error {
	i := c.index(productID)
	if i < 0 {
		return ErrLineNotFound
	}
	c.removeAt(i)
	return nil
}

func (c *Cart) removeAt(i int) {
	c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
}

// Clear 清空（下单成功后调用）
func (c *Cart) Clear() {
	c.Lines = c.Lines[:0]
}

// Empty 购物车是否为空
func (c *Cart) Empty() bool {
	return len(c.Lines) == 0
}

// Subtotal Σ 单价×数量，保留两位小数
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.Price.Mul(quantity(l)))
	}
	return sum.Round(2)
}

// TotalWeight Σ 单位重量×数量，保留两位小数
func (c *Cart) TotalWeight() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range c.Lines {
		sum = sum.Add(l.Weight.Mul(quantity(l)))
	}
	return sum.Round(2)
}

// Snapshot 下单用的行快照，数量已规整
func (c *Cart) Snapshot() []order.Line {
	out := make([]order.Line, len(c.Lines))
	for i, l := range c.Lines {
		l.Quantity = quantity(l)
		out[i] = l
	}
	return out
}
