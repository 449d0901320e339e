package validation

import (
	"fmt"

	dErrors "idwallet/pkg/domain-errors"
)

// Slice element count limits
const (
	// MaxRequestedFields is the maximum number of data fields per consent request.
	MaxRequestedFields = 25
)

// String element length limits
const (
	// MaxFieldNameLength is the maximum length of a requested field name.
	MaxFieldNameLength = 64

	// MaxPurposeLength is the maximum length of a consent purpose.
	MaxPurposeLength = 256

	// MaxRequesterIDLength is the maximum length of a requester identifier.
	MaxRequesterIDLength = 128

	// MaxRequesterNameLength is the maximum length of a requester display name.
	MaxRequesterNameLength = 128

	// MaxDocumentNumberLength is the maximum length of an identity document number.
	MaxDocumentNumberLength = 64

	// MaxHolderNameLength is the maximum length of a document holder name.
	MaxHolderNameLength = 128
)

// CheckSliceCount validates that a slice does not exceed the maximum count.
func CheckSliceCount(fieldName string, count, max int) error {
	if count > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("too many %s: max %d allowed", fieldName, max))
	}
	return nil
}

// CheckStringLength validates that a string does not exceed the maximum length.
func CheckStringLength(fieldName, value string, max int) error {
	if len(value) > max {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
	}
	return nil
}

// CheckEachStringLength validates that each string in a slice does not exceed the maximum length.
func CheckEachStringLength(fieldName string, values []string, max int) error {
	for _, v := range values {
		if len(v) > max {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("%s exceeds max length of %d", fieldName, max))
		}
	}
	return nil
}
