package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation базовая ошибка валидации, проверяется через errors.Is
var ErrValidation = errors.New("validation failed")

const (
	// MinPasswordLen минимальная длина пароля (проверяется на клиенте до хеширования)
	MinPasswordLen = 8
	// CodeLength длина кода подтверждения
	CodeLength = 6
)

// validate единственный экземпляр валидатора, безопасен для конкурентного использования
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// В сообщениях используем имена полей из json тегов
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return v
}

// NormalizeEmail приводит email к каноническому виду (ключ в хранилищах)
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Struct проверяет структуру запроса по validate тегам
func Struct(s any) error {
	if err := validate.Struct(s); err != nil {
		return translate(err)
	}
	return nil
}

// ValidateEmail проверяет формат email
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("%w: email cannot be empty", ErrValidation)
	}
	if err := validate.Var(email, "email,max=254"); err != nil {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	return nil
}

// ValidatePassword проверяет минимальные требования к паролю
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("%w: password cannot be empty", ErrValidation)
	}
	if len(password) < MinPasswordLen {
		return fmt.Errorf("%w: password must be at least %d characters long", ErrValidation, MinPasswordLen)
	}
	return nil
}

// ValidateCode проверяет формат кода подтверждения (6 цифр)
func ValidateCode(code string) error {
	if err := validate.Var(code, fmt.Sprintf("required,numeric,len=%d", CodeLength)); err != nil {
		return fmt.Errorf("%w: code must be %d digits", ErrValidation, CodeLength)
	}
	return nil
}

// translate превращает ошибки validator в читаемое сообщение
func translate(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}

	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", fe.Field(), fe.Param())
	case "numeric":
		return fe.Field() + " must contain only digits"
	default:
		return fmt.Sprintf("%s failed %q check", fe.Field(), fe.Tag())
	}
}
