package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil stays nil", nil, nil},
		{"keeps first-seen order", []string{"photo", "full_name", "photo"}, []string{"photo", "full_name"}},
		{"trims before comparing", []string{" full_name", "full_name  "}, []string{"full_name"}},
		{"drops blanks", []string{"", "   ", "date_of_birth"}, []string{"date_of_birth"}},
		{"case sensitive", []string{"Photo", "photo"}, []string{"Photo", "photo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DedupeAndTrim(tt.in))
		})
	}
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "requested_fields", ToSnakeCase("RequestedFields"))
	assert.Equal(t, "holder_id", ToSnakeCase("HolderID"))
	assert.Equal(t, "pin", ToSnakeCase("PIN"))
	assert.Equal(t, "ttl", ToSnakeCase("TTL"))
	assert.Equal(t, "expires_on", ToSnakeCase("ExpiresOn"))
}
