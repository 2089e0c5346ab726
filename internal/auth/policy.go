// AngelaMos | 2026
// policy.go

package auth

import (
	"unicode"
)

type ViolationCode string

const (
	PasswordTooShort         ViolationCode = "PasswordTooShort"
	PasswordRequiresDigit    ViolationCode = "PasswordRequiresDigit"
	PasswordRequiresUpper    ViolationCode = "PasswordRequiresUpper"
	PasswordRequiresLower    ViolationCode = "PasswordRequiresLower"
	PasswordRequiresNonAlpha ViolationCode = "PasswordRequiresNonAlphanumeric"
	PasswordRequiresVariety  ViolationCode = "PasswordRequiresCharacterClasses"
)

type Violation struct {
	Code        ViolationCode `json:"code"`
	Description string        `json:"description"`
}

// PasswordPolicy is the strength rule set for new passwords. Every rule is
// evaluated so callers can report all failures at once.
type PasswordPolicy struct {
	MinLength         int
	RequireDigit      bool
	RequireUpper      bool
	RequireLower      bool
	RequireNonAlpha   bool
	MinCharacterKinds int
}

func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:         8,
		RequireDigit:      true,
		RequireUpper:      true,
		RequireLower:      true,
		RequireNonAlpha:   true,
		MinCharacterKinds: 3,
	}
}

// Validate returns nil when password satisfies the policy, otherwise a
// *PolicyError naming every violated rule.
func (p PasswordPolicy) Validate(password string) error {
	violations := p.Check(password)
	if len(violations) == 0 {
		return nil
	}
	return &PolicyError{Violations: violations}
}

func (p PasswordPolicy) Check(password string) []Violation {
	var hasDigit, hasUpper, hasLower, hasOther bool
	length := 0

	for _, r := range password {
		length++
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case !unicode.IsLetter(r):
			hasOther = true
		}
	}

	var violations []Violation

	if length < p.MinLength {
		violations = append(violations, Violation{
			Code:        PasswordTooShort,
			Description: "password is too short",
		})
	}
	if p.RequireDigit && !hasDigit {
		violations = append(violations, Violation{
			Code:        PasswordRequiresDigit,
			Description: "password must contain a digit",
		})
	}
	if p.RequireUpper && !hasUpper {
		violations = append(violations, Violation{
			Code:        PasswordRequiresUpper,
			Description: "password must contain an uppercase letter",
		})
	}
	if p.RequireLower && !hasLower {
		violations = append(violations, Violation{
			Code:        PasswordRequiresLower,
			Description: "password must contain a lowercase letter",
		})
	}
	if p.RequireNonAlpha && !hasOther {
		violations = append(violations, Violation{
			Code:        PasswordRequiresNonAlpha,
			Description: "password must contain a non-alphanumeric character",
		})
	}

	kinds := 0
	for _, present := range []bool{hasDigit, hasUpper, hasLower, hasOther} {
		if present {
			kinds++
		}
	}
	if kinds < p.MinCharacterKinds {
		violations = append(violations, Violation{
			Code:        PasswordRequiresVariety,
			Description: "password must mix at least three kinds of characters",
		})
	}

	return violations
}
