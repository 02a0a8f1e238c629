// Copyright (c) 2026 Bazaar. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/taibuivan/bazaar/pkg/normalize"
)

func TestEmail(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"already_canonical", "alice@example.com", "alice@example.com"},
		{"mixed_case", "Alice@Example.COM", "alice@example.com"},
		{"surrounding_space", "  bob@example.com\t", "bob@example.com"},
		{"full_width", "ａｌｉｃｅ@example.com", "alice@example.com"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.Email(tt.in))
		})
	}
}

func TestUsername(t *testing.T) {
	assert.Equal(t, "Seller42", normalize.Username("  Seller42 "))
	assert.Equal(t, "S", normalize.Username("Ｓ"))
}
