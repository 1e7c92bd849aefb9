package config

import (
	"fmt"
	"os"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	flowerrors "github.com/alexisbeaulieu97/flowcheck/pkg/errors"
)

var (
	validatorOnce sync.Once
	validateInst  *validator.Validate
)

// validatorInstance configures and returns the shared validator instance used across the config package.
func validatorInstance() *validator.Validate {
	validatorOnce.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(field reflect.StructField) string {
			name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
			if name == "" || name == "-" {
				return field.Name
			}
			return name
		})

		_ = v.RegisterValidation("run_mode", func(fl validator.FieldLevel) bool {
			mode := fl.Field().String()
			return mode == ModeInteractive || mode == ModeReplay
		})

		_ = v.RegisterValidation("pipeline_name", func(fl validator.FieldLevel) bool {
			return slices.Contains(KnownPipelines, fl.Field().String())
		})

		validateInst = v
	})

	return validateInst
}

// GetValidator returns a configured validator instance for use outside the config package.
func GetValidator() *validator.Validate {
	return validatorInstance()
}

// Validate performs schema validation shared by every command.
func Validate(cfg *Config) error {
	if cfg == nil {
		return flowerrors.NewValidationError("config", "configuration is nil", nil)
	}
	if err := validatorInstance().Struct(cfg); err != nil {
		return convertValidationError(err)
	}
	return checkDataset(cfg.Dataset)
}

// ValidateFlow adds the checks specific to flow evaluation runs.
func ValidateFlow(cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if cfg.NeedsAgent() && strings.TrimSpace(cfg.Agent.APIKey) == "" {
		return flowerrors.NewValidationError("agent.api_key",
			"an API key is required in interactive mode; set OPENAI_KEY, pass --openai-key, or use --skip-agent", nil)
	}
	return nil
}

// ValidateScreens adds the checks specific to screen-pair and ablation runs.
func ValidateScreens(cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if len(cfg.Screens.Pipelines) == 0 {
		return flowerrors.NewValidationError("screens.pipelines", "at least one pipeline is required", nil)
	}
	return nil
}

func checkDataset(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return flowerrors.NewValidationError("dataset", fmt.Sprintf("dataset path does not exist: %s", path), err)
	}
	if !info.IsDir() {
		return flowerrors.NewValidationError("dataset", fmt.Sprintf("dataset path is not a directory: %s", path), nil)
	}
	return nil
}

func convertValidationError(err error) error {
	if err == nil {
		return nil
	}

	if ves, ok := err.(validator.ValidationErrors); ok {
		ve := ves[0]
		field := yamlishFieldName(ve)
		msg := fmt.Sprintf("%s failed validation for tag '%s'", field, ve.Tag())
		if ve.Tag() == "pipeline_name" {
			msg = fmt.Sprintf("unknown pipeline preset %q; available: %s", ve.Value(), strings.Join(KnownPipelines, ", "))
		}
		return flowerrors.NewValidationError(field, msg, err)
	}

	return flowerrors.NewValidationError("config", err.Error(), err)
}

func yamlishFieldName(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.Join(parts, ".")
}
