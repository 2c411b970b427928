package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"contactgate/internal/domain"
)

func TestNormalizeSubmission(t *testing.T) {
	blank := "   "
	sub := normalizeSubmission(domain.Submission{
		Name:    "  Maria Silva ",
		Email:   " Maria@Example.COM",
		Company: &blank,
		Message: "\nOlá, tudo bem?\n",
	})

	assert.Equal(t, "Maria Silva", sub.Name)
	assert.Equal(t, "maria@example.com", sub.Email)
	assert.Nil(t, sub.Company)
	assert.Equal(t, "Olá, tudo bem?", sub.Message)
}

func TestValidateFields(t *testing.T) {
	long := strings.Repeat("a", 101)
	tests := []struct {
		name    string
		sub     domain.Submission
		wantErr string
	}{
		{
			name: "valid with accents",
			sub:  domain.Submission{Name: "João Conceição", Email: "joao@example.com.br", Message: "Preciso de um orçamento."},
		},
		{
			name:    "missing fields",
			sub:     domain.Submission{Name: "Ana"},
			wantErr: "name, email and message are required",
		},
		{
			name:    "name too short",
			sub:     domain.Submission{Name: "A", Email: "a@example.com", Message: "Mensagem suficiente."},
			wantErr: "name: must be between 2 and 100 characters",
		},
		{
			name:    "name with digits",
			sub:     domain.Submission{Name: "R2D2", Email: "a@example.com", Message: "Mensagem suficiente."},
			wantErr: "name: only letters and spaces are allowed",
		},
		{
			name:    "name with newline",
			sub:     domain.Submission{Name: "Maria\nSilva", Email: "a@example.com", Message: "Mensagem suficiente."},
			wantErr: "name: only letters and spaces are allowed",
		},
		{
			name:    "name with tab",
			sub:     domain.Submission{Name: "Maria\tSilva", Email: "a@example.com", Message: "Mensagem suficiente."},
			wantErr: "name: only letters and spaces are allowed",
		},
		{
			name:    "bad email",
			sub:     domain.Submission{Name: "Ana Paula", Email: "ana@localhost", Message: "Mensagem suficiente."},
			wantErr: "email: invalid address",
		},
		{
			name:    "company too long",
			sub:     domain.Submission{Name: "Ana Paula", Email: "ana@example.com", Company: &long, Message: "Mensagem suficiente."},
			wantErr: "company: must be at most 100 characters",
		},
		{
			name:    "message too short",
			sub:     domain.Submission{Name: "Ana Paula", Email: "ana@example.com", Message: "Oi"},
			wantErr: "message: must be between 10 and 2000 characters",
		},
		{
			name:    "message too long",
			sub:     domain.Submission{Name: "Ana Paula", Email: "ana@example.com", Message: strings.Repeat("x", 2001)},
			wantErr: "message: must be between 10 and 2000 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := validateFields(tt.sub)
			if tt.wantErr == "" {
				assert.Empty(t, errs)
				return
			}
			assert.Contains(t, errs, tt.wantErr)
		})
	}
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, isValidEmail("contato+site@example.com"))
	assert.False(t, isValidEmail("Maria <maria@example.com>"))
	assert.False(t, isValidEmail(strings.Repeat("a", 250)+"@example.com"))
}
