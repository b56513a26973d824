package validator

import (
	"github.com/opensase/upo/pkg/intent/ast"
	interrors "github.com/opensase/upo/pkg/intent/errors"
)

// Validator orchestrates the validation passes over an intent document.
// Structural validation runs first and batches every schema error; semantic
// validation runs only on structurally sound documents to prevent cascading
// reference errors.
type Validator struct {
	structural *StructuralValidator
	semantic   *SemanticValidator
}

// NewValidator creates a new validator with all passes.
func NewValidator() *Validator {
	return &Validator{
		structural: NewStructuralValidator(),
		semantic:   NewSemanticValidator(),
	}
}

// Validate runs all validation passes on a policy. The returned error, when
// non-nil, is an *errors.ErrorList carrying every detected problem.
func (v *Validator) Validate(policy *ast.IntentPolicy) error {
	errors := interrors.NewErrorList()

	if err := v.structural.Validate(policy); err != nil {
		if errList, ok := err.(*interrors.ErrorList); ok {
			errors.Errors = append(errors.Errors, errList.Errors...)
		}
	}

	if !errors.HasErrorType(interrors.ErrorTypeStructural) {
		if err := v.semantic.Validate(policy); err != nil {
			if errList, ok := err.(*interrors.ErrorList); ok {
				errors.Errors = append(errors.Errors, errList.Errors...)
			}
		}
	}

	return errors.ToError()
}

// ValidateStructural runs only structural validation.
func (v *Validator) ValidateStructural(policy *ast.IntentPolicy) error {
	return v.structural.Validate(policy)
}

// ValidateSemantic runs only semantic validation.
func (v *Validator) ValidateSemantic(policy *ast.IntentPolicy) error {
	return v.semantic.Validate(policy)
}
