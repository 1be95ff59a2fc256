package model

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// ValidateJob 在写入前校验职位字段。
func ValidateJob(job Job) error {
	if err := validatorInstance().Struct(job); err != nil {
		return fmt.Errorf("validate job %s: %w", job.ID, err)
	}
	return nil
}
