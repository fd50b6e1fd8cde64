// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/wastebank/internal/apperr"
	"github.com/mmeshcher/wastebank/internal/model"
)

var phonePattern = regexp.MustCompile(`^\+62\d{10,12}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("idphone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return v
}

type contactInput struct {
	Name    string  `validate:"required,min=3,max=100"`
	Phone   string  `validate:"required,idphone"`
	Address string  `validate:"max=300"`
	Lat     float64 `validate:"latitude"`
	Lng     float64 `validate:"longitude"`
}

// IsValidPhone проверяет номер телефона в формате +62XXXXXXXXXX.
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// Contact проверяет контактные данные заказа. Для вывоза обязательны адрес и координаты.
func Contact(kind model.OrderKind, c model.Contact) error {
	in := contactInput{
		Name:    strings.TrimSpace(c.Name),
		Phone:   c.Phone,
		Address: c.Address,
	}
	if c.Location != nil {
		in.Lat, in.Lng = c.Location.Lat, c.Location.Lng
	}

	if err := validate.Struct(in); err != nil {
		return wrap(err)
	}

	if kind == model.KindPickup {
		if strings.TrimSpace(c.Address) == "" {
			return fmt.Errorf("%w: address is required for pickup", apperr.ErrValidation)
		}
		if c.Location == nil {
			return fmt.Errorf("%w: geoPoint is required for pickup", apperr.ErrValidation)
		}
	}
	return nil
}

// Schedule проверяет, что время обслуживания задано.
func Schedule(t time.Time) error {
	if t.IsZero() {
		return fmt.Errorf("%w: schedule is required", apperr.ErrValidation)
	}
	return nil
}

func wrap(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("%w: %s failed on %q", apperr.ErrValidation, strings.ToLower(fe.Field()), fe.Tag())
	}
	return fmt.Errorf("%w: %v", apperr.ErrValidation, err)
}
