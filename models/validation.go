package models

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	couponCodePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	registerOnce      sync.Once
)

// IsCouponCode reports whether s only uses letters, digits, hyphens and
// underscores.
func IsCouponCode(s string) bool {
	return couponCodePattern.MatchString(s)
}

// RegisterValidators installs the custom binding rules on gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("couponcode", func(fl validator.FieldLevel) bool {
			return IsCouponCode(fl.Field().String())
		})
	})
}

// NewValidator returns a standalone validator carrying the same custom rules,
// for validating inputs that do not arrive through gin binding.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("couponcode", func(fl validator.FieldLevel) bool {
		return IsCouponCode(fl.Field().String())
	})
	return v
}
