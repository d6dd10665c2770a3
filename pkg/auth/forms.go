// Package auth validates the login and registration forms before any credential
// leaves the web front.
package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"askmynotes/pkg/domain"
)

const (
	MsgFillAllFields    = "Please fill in all fields"
	MsgInvalidEmail     = "Please enter a valid email address"
	MsgPasswordTooShort = "Password must be at least 6 characters long"
	MsgPasswordMismatch = "Passwords do not match"
	MsgAgreeTerms       = "Please agree to the Terms & Conditions"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// LoginForm holds submitted login fields.
type LoginForm struct {
	Email    string `validate:"required,basic_email"`
	Password string `validate:"required"`
}

// RegistrationForm holds submitted sign-up fields.
type RegistrationForm struct {
	Name            string `validate:"required"`
	Email           string `validate:"required,basic_email"`
	Password        string `validate:"required,min=6"`
	ConfirmPassword string `validate:"required,eqfield=Password"`
	AgreeToTerms    bool   `validate:"eq=true"`
}

// tag -> (priority, message). Lower priority wins when several fields fail.
var tagMessages = map[string]struct {
	rank int
	msg  string
}{
	"required":    {0, MsgFillAllFields},
	"basic_email": {1, MsgInvalidEmail},
	"min":         {2, MsgPasswordTooShort},
	"eqfield":     {3, MsgPasswordMismatch},
	"eq":          {4, MsgAgreeTerms},
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		mustRegister(validate, "basic_email", func(fl validator.FieldLevel) bool {
			return emailPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("auth: register %q validation: %v", tag, err))
	}
}

// ValidateLogin trims the email and checks the login form.
func ValidateLogin(form *LoginForm) error {
	form.Email = strings.TrimSpace(form.Email)
	return check(form)
}

// ValidateRegistration trims name and email and checks the registration form.
func ValidateRegistration(form *RegistrationForm) error {
	form.Name = strings.TrimSpace(form.Name)
	form.Email = strings.TrimSpace(form.Email)
	return check(form)
}

func check(form any) error {
	err := formValidator().Struct(form)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	best := -1
	msg := MsgFillAllFields
	for _, fe := range fieldErrs {
		entry, ok := tagMessages[fe.Tag()]
		if !ok {
			continue
		}
		if best == -1 || entry.rank < best {
			best = entry.rank
			msg = entry.msg
		}
	}
	return domain.Invalid(msg)
}
