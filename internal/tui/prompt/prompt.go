// ABOUTME: Interactive credential prompts for sign in and registration
// ABOUTME: Fills only the fields not already given on the command line

package prompt

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/woragis/woragis-posts-frontend/auth"
)

// Required rejects blank input.
func Required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New(field + " is required")
		}
		return nil
	}
}

// Login asks for whichever of email and password is empty.
func Login(in *auth.LoginRequest) error {
	var fields []huh.Field
	if in.Email == "" {
		fields = append(fields, emailInput(&in.Email))
	}
	if in.Password == "" {
		fields = append(fields, passwordInput(&in.Password))
	}
	return run(fields)
}

// Register asks for the missing required registration fields and offers
// the optional name fields.
func Register(in *auth.RegisterRequest) error {
	var fields []huh.Field
	if in.Email == "" {
		fields = append(fields, emailInput(&in.Email))
	}
	if in.Username == "" {
		fields = append(fields, huh.NewInput().
			Title("Username").
			Value(&in.Username).
			Validate(Required("username")))
	}
	if in.Password == "" {
		fields = append(fields, passwordInput(&in.Password))
	}
	if in.FirstName == "" {
		fields = append(fields, huh.NewInput().Title("First name (optional)").Value(&in.FirstName))
	}
	if in.LastName == "" {
		fields = append(fields, huh.NewInput().Title("Last name (optional)").Value(&in.LastName))
	}
	return run(fields)
}

func emailInput(v *string) huh.Field {
	return huh.NewInput().
		Title("Email").
		Value(v).
		Validate(func(s string) error {
			if err := Required("email")(s); err != nil {
				return err
			}
			if !strings.Contains(s, "@") {
				return errors.New("email must contain @")
			}
			return nil
		})
}

func passwordInput(v *string) huh.Field {
	return huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(v).
		Validate(Required("password"))
}

func run(fields []huh.Field) error {
	if len(fields) == 0 {
		return nil
	}
	return huh.NewForm(huh.NewGroup(fields...)).WithTheme(huh.ThemeBase()).Run()
}
