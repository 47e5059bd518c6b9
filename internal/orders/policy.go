package orders

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/farmcart/internal/datamodels/order"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrReasonRequired    = errors.New("cancellation reason is required")
)

// TransitionPolicy 订单状态流转规则
type TransitionPolicy interface {
	// CanMove 检查是否允许把订单从 from 改为流程内状态 to
	CanMove(from string, to order.Status) error
	Name() string
}

// Loose 后台手工纠正用：流程内任意状态之间都可以切换
type Loose struct{}

func (Loose) Name() string { return "loose" }

func (Loose) CanMove(_ string, to order.Status) error {
	if order.StepIndex(string(to)) < 0 {
		return fmt.Errorf("%w: %q is not a delivery step", ErrInvalidTransition, to)
	}
	return nil
}

// Strict 只能前进；delivered 和 cancelled 是终态。旧状态（不在流程内）可以进入任意步骤。
type Strict struct{}

func (Strict) Name() string { return "strict" }

func (Strict) CanMove(from string, to order.Status) error {
	next := order.StepIndex(string(to))
	if next < 0 {
		return fmt.Errorf("%w: %q is not a delivery step", ErrInvalidTransition, to)
	}
	cur := order.Normalize(from)
	if cur == order.StatusCancelled || cur == order.StatusDelivered {
		return fmt.Errorf("%w: order is %s", ErrInvalidTransition, cur)
	}
	if prev := order.StepIndex(from); prev >= 0 && next <= prev {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, to)
	}
	return nil
}

// PolicyFor 根据配置选择规则
func PolicyFor(strict bool) TransitionPolicy {
	if strict {
		return Strict{}
	}
	return Loose{}
}

// CanCancel 两种规则下都一样：需要原因，已送达或已取消的订单不能再取消
func CanCancel(from, reason string) error {
	if strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	switch order.Normalize(from) {
	case order.StatusDelivered:
		return fmt.Errorf("%w: order already delivered", ErrInvalidTransition)
	case order.StatusCancelled:
		return fmt.Errorf("%w: order already cancelled", ErrInvalidTransition)
	}
	return nil
}
