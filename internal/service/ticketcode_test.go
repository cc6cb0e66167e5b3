package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTicketCodeFallbackFormat(t *testing.T) {
	gen := NewTicketCodeGenerator(nil)
	now := time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)

	pattern := regexp.MustCompile(`^SR-20240315-\d{4}$`)
	for i := 0; i < 20; i++ {
		code := gen.Next(context.Background(), now)
		assert.Regexp(t, pattern, code)
	}
}

func TestTicketCodeUsesRequestDate(t *testing.T) {
	gen := NewTicketCodeGenerator(nil)

	code := gen.Next(context.Background(), time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.Regexp(t, regexp.MustCompile(`^SR-20250102-\d{4}$`), code)
}
