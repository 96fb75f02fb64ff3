package prompt

import (
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
)

// ErrPasswordMismatch is returned when the confirmation entry differs
// from the first password entry.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Password reads a single masked password from the terminal.
func Password(label string) (string, error) {
	entry := promptui.Prompt{
		Label: label,
		Mask:  '*',
	}
	result, err := entry.Run()
	return result, wrapError(err)
}

// PasswordWithConfirmation reads a password twice and rejects mismatched
// entries. The first entry must be at least minLength characters.
func PasswordWithConfirmation(label, confirmLabel string, minLength int) (string, error) {
	entry := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if len(input) < minLength {
				return fmt.Errorf("password must be at least %d characters", minLength)
			}
			return nil
		},
	}
	password, err := entry.Run()
	if err != nil {
		return "", wrapError(err)
	}

	confirm, err := Password(confirmLabel)
	if err != nil {
		return "", err
	}
	if password != confirm {
		return "", ErrPasswordMismatch
	}
	return password, nil
}

// NewPassword prompts for a brand-new password with the standard labels
// and the account minimum length.
func NewPassword() (string, error) {
	return PasswordWithConfirmation("Password", "Confirm password", 8)
}
