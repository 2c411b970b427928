package services

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"

	"contactgate/internal/domain"
)

var (
	namePattern  = regexp.MustCompile(`^[\p{L}\p{M} ]+$`)
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
)

const (
	minNameLength    = 2
	maxNameLength    = 100
	maxEmailLength   = 254
	maxCompanyLength = 100
	minMessageLength = 10
	maxMessageLength = 2000
)

// normalizeSubmission trims every text field. An empty company becomes nil.
func normalizeSubmission(sub domain.Submission) domain.Submission {
	sub.Name = strings.TrimSpace(sub.Name)
	sub.Email = strings.ToLower(strings.TrimSpace(sub.Email))
	sub.Message = strings.TrimSpace(sub.Message)
	if sub.Company != nil {
		c := strings.TrimSpace(*sub.Company)
		if c == "" {
			sub.Company = nil
		} else {
			sub.Company = &c
		}
	}
	return sub
}

// validateFields returns one message per invalid field, nil when all pass.
func validateFields(sub domain.Submission) []string {
	var errs []string

	if sub.Name == "" || sub.Email == "" || sub.Message == "" {
		errs = append(errs, "name, email and message are required")
	}

	if n := utf8.RuneCountInString(sub.Name); sub.Name != "" && (n < minNameLength || n > maxNameLength) {
		errs = append(errs, "name: must be between 2 and 100 characters")
	} else if sub.Name != "" && !namePattern.MatchString(sub.Name) {
		errs = append(errs, "name: only letters and spaces are allowed")
	}

	if sub.Email != "" && !isValidEmail(sub.Email) {
		errs = append(errs, "email: invalid address")
	}

	if sub.Company != nil && utf8.RuneCountInString(*sub.Company) > maxCompanyLength {
		errs = append(errs, "company: must be at most 100 characters")
	}

	if n := utf8.RuneCountInString(sub.Message); sub.Message != "" && (n < minMessageLength || n > maxMessageLength) {
		errs = append(errs, "message: must be between 10 and 2000 characters")
	}

	return errs
}

func isValidEmail(email string) bool {
	if len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}
