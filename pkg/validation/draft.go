// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance for struct-tag checks.
var validate = validator.New(validator.WithRequiredStructEnabled())

// OperationDraft is the client-side shape of a new operation, checked
// before a request is sent so obvious mistakes fail fast. The server
// remains the authority.
type OperationDraft struct {
	Title      string   `validate:"required"`
	Purpose    string   `validate:"required"`
	URL        string   `validate:"required,http_url"`
	Components []string `validate:"min=1,dive,required"`
	Locks      []string `validate:"dive,required"`
	Operators  []string `validate:"dive,required"`
}

// CheckOperationDraft validates a draft and reports the first problem
// in plain language.
func CheckOperationDraft(d OperationDraft) error {
	err := validate.Struct(d)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok || len(errs) == 0 {
		return err
	}
	first := errs[0]
	field := first.Field()
	switch {
	case field == "Title":
		return fmt.Errorf("title is required")
	case field == "Purpose":
		return fmt.Errorf("purpose is required")
	case field == "URL":
		return fmt.Errorf("url must be a valid http or https URL")
	case field == "Components":
		return fmt.Errorf("at least one component is required")
	case strings.HasPrefix(field, "Components"):
		return fmt.Errorf("component names must not be empty")
	case strings.HasPrefix(field, "Locks"):
		return fmt.Errorf("lock names must not be empty")
	case strings.HasPrefix(field, "Operators"):
		return fmt.Errorf("operator names must not be empty")
	}
	return first
}
