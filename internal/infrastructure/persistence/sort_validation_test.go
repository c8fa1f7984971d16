package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"asc", "ASC"},
		{" ASC ", "ASC"},
		{"desc", "DESC"},
		{"", "DESC"},
		{"asc; DROP TABLE quotes", "DESC"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidateSortOrder(tt.in), tt.in)
	}
}

func TestValidateSortField(t *testing.T) {
	assert.Equal(t, "number", ValidateSortField("number", QuoteSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("", QuoteSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("number; --", QuoteSortFields, "created_at"))
	assert.Equal(t, "created_at", ValidateSortField("due_date", QuoteSortFields, "created_at"))
	assert.Equal(t, "due_date", ValidateSortField("due_date", InvoiceSortFields, "created_at"))
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%acme%", likePattern("  ACME "))
}
