// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// requestValidator checks submissions before they reach the queue.
type requestValidator struct {
	v *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{v: validator.New()}
}

func (rv *requestValidator) submit(req *submitRequest) error {
	if err := rv.v.Var(req.File.Name, "required"); err != nil {
		return fmt.Errorf("file.name is required")
	}
	if err := rv.v.Var(req.File.SizeBytes, "min=0"); err != nil {
		return fmt.Errorf("file.sizeBytes must not be negative")
	}
	if err := rv.v.Var(req.Metadata.Kind, "required"); err != nil {
		return fmt.Errorf("metadata.kind is required")
	}
	return nil
}
