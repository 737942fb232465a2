/*
 * Copyright 2026 The Ferry Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package validation provides field validation with translated messages for
// task submissions and configuration.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
)

// kindRegexString constrains filter kind names.
const kindRegexString = `^[a-z0-9_\-]+$`

var (
	kindRegex = regexp.MustCompile(kindRegexString)

	defaultValidator = validator.New()
	defaultEn        = en.New()
	uni              = ut.New(defaultEn, defaultEn)

	trans, _ = uni.GetTranslator(defaultEn.Locale())
)

// FieldError is one translated validation failure.
type FieldError struct {
	Field   string
	Message string
}

// StructError aggregates the failures of one struct validation.
type StructError struct {
	Violations []FieldError
}

// Error returns the aggregated message.
func (e *StructError) Error() string {
	var parts []string
	for _, v := range e.Violations {
		parts = append(parts, v.Message)
	}
	return fmt.Sprintf("invalid fields: %s", strings.Join(parts, ", "))
}

func registerValidation(tag string, fn validator.Func) {
	if err := defaultValidator.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func registerTranslation(tag, msg string) {
	if err := defaultValidator.RegisterTranslation(tag, trans, func(ut ut.Translator) error {
		if err := ut.Add(tag, msg, true); err != nil {
			return fmt.Errorf("add translation: %w", err)
		}
		return nil
	}, func(ut ut.Translator, fe validator.FieldError) string {
		t, _ := ut.T(tag, fe.Field())
		return t
	}); err != nil {
		panic(err)
	}
}

// ValidateStruct validates the given struct by its validate tags.
func ValidateStruct(v any) error {
	if err := defaultValidator.Struct(v); err != nil {
		invalid, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validate struct: %w", err)
		}

		structError := &StructError{}
		for _, fieldError := range invalid {
			structError.Violations = append(structError.Violations, FieldError{
				Field:   fieldError.Field(),
				Message: fieldError.Translate(trans),
			})
		}
		return structError
	}

	return nil
}

// ValidateValue validates a single value with the given tag.
func ValidateValue(v any, tag string) error {
	if err := defaultValidator.Var(v, tag); err != nil {
		invalid, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validate value: %w", err)
		}
		for _, fieldError := range invalid {
			return fmt.Errorf("%s", fieldError.Translate(trans))
		}
	}

	return nil
}

func init() {
	registerValidation("filter_kind", func(fl validator.FieldLevel) bool {
		return kindRegex.MatchString(fl.Field().String())
	})
	registerTranslation("filter_kind", "{0} must be a lowercase identifier")
}
