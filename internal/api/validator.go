package api

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator はEcho用のバリデーター。エラーはJSONのフィールド名で返す
type CustomValidator struct {
	validator *validator.Validate
}

func NewValidator() *CustomValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return &CustomValidator{validator: v}
}

func (cv *CustomValidator) Validate(i interface{}) error {
	err := cv.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return echo.NewHTTPError(http.StatusBadRequest, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " は必須です"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s は %s 件以上指定してください", field, fe.Param())
		}
		return fmt.Sprintf("%s は %s 文字以上にしてください", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s は %s 件以下にしてください", field, fe.Param())
		}
		return fmt.Sprintf("%s は %s 文字以内にしてください", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s は %s 以上を指定してください", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s は [%s] のいずれかを指定してください", field, fe.Param())
	default:
		return fmt.Sprintf("%s が不正です (%s)", field, fe.Tag())
	}
}
