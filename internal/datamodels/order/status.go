package order

import "strings"

// Status 订单状态。前四个构成配送流程，cancelled 独立于流程之外。
type Status string

const (
	StatusPlaced         Status = "placed"
	StatusHarvested      Status = "harvested"
	StatusOutForDelivery Status = "out for delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// Steps 配送流程，下标即步骤号
var Steps = []Status{StatusPlaced, StatusHarvested, StatusOutForDelivery, StatusDelivered}

// Label 展示用名称
func (s Status) Label() string {
	switch s {
	case StatusPlaced:
		return "Placed"
	case StatusHarvested:
		return "Harvested"
	case StatusOutForDelivery:
		return "Out for Delivery"
	case StatusDelivered:
		return "Delivered"
	case StatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// Normalize 统一大小写与首尾空白
func Normalize(raw string) Status {
	return Status(strings.ToLower(strings.TrimSpace(raw)))
}

// ParseStatus 只接受流程内状态和 cancelled
func ParseStatus(raw string) (Status, bool) {
	s := Normalize(raw)
	if s == StatusCancelled || StepIndex(string(s)) >= 0 {
		return s, true
	}
	return "", false
}

// StepIndex 状态在流程中的下标（大小写不敏感），不在流程内返回 -1
func StepIndex(raw string) int {
	s := Normalize(raw)
	for i, step := range Steps {
		if step == s {
			return i
		}
	}
	return -1
}
