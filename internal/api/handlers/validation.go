package handlers

import (
	"sync"

	"krishisetu-api-server/internal/ledger"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var registerOnce sync.Once

// RegisterValidators adds the custom binding tags used by request structs.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("bookingstatus", func(fl validator.FieldLevel) bool {
			_, err := ledger.ParseStatus(fl.Field().String())
			return err == nil
		})
	})
}
