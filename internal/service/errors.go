package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/example/farmcart/internal/orders"
	"github.com/example/farmcart/internal/repository"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrUnauthenticated   = errors.New("sign in required")
	ErrForbidden         = errors.New("permission denied")
	ErrInvalidTransition = orders.ErrInvalidTransition
	ErrConflict          = errors.New("conflict")
)

// ValidationError 带出错字段的校验错误，errors.Is(err, ErrValidation) 成立
type ValidationError struct {
	Fields []string
	Msg    string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Msg, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(msg string, fields ...string) error {
	return &ValidationError{Msg: msg, Fields: fields}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// 报错时使用 json 字段名
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// checkStruct 校验失败时区分"缺失"与"不合法"的字段
func checkStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	var missing, bad []string
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			bad = append(bad, fe.Field())
		}
	}
	if len(missing) > 0 {
		return invalid("missing required fields", missing...)
	}
	return invalid("invalid fields", bad...)
}

// fromRepo 把仓储错误映射为服务错误
func fromRepo(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrConflict
	}
	GetMonitor().RecordDBError()
	return err
}
