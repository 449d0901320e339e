package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "idwallet/pkg/domain-errors"
)

type sampleInput struct {
	HolderName      string   `validate:"required,notblank,max=8"`
	PIN             string   `validate:"omitempty,numeric"`
	IssuedOn        string   `validate:"omitempty,datetime=2006-01-02"`
	Kind            string   `validate:"omitempty,oneof=fayda passport"`
	RequestedFields []string `validate:"omitempty,max=2,dive,notblank"`
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(sampleInput{HolderName: "Abebe", PIN: "1234", IssuedOn: "2024-02-29", Kind: "fayda"}))

	tests := []struct {
		name    string
		input   sampleInput
		message string
	}{
		{"missing", sampleInput{}, "holder_name is required"},
		{"blank", sampleInput{HolderName: "   "}, "holder_name must not be blank"},
		{"too long", sampleInput{HolderName: "Abebe Kebede"}, "holder_name must be at most 8"},
		{"not digits", sampleInput{HolderName: "Abebe", PIN: "12a4"}, "pin must contain only digits"},
		{"bad date", sampleInput{HolderName: "Abebe", IssuedOn: "29/02/2024"}, "issued_on must be a date in 2006-01-02 format"},
		{"not in set", sampleInput{HolderName: "Abebe", Kind: "visa"}, "kind must be one of [fayda passport]"},
		{"blank element", sampleInput{HolderName: "Abebe", RequestedFields: []string{" "}}, "requested_fields[0] must not be blank"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.Equal(t, tt.message, err.Error())
		})
	}
}
