/*
Package randx provides functions for generating cryptographically secure random values
and unique identifiers.

It is used for document identifiers (UUID v4) and short Base62 suffixes offered as
private handle suggestions during signup.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))

	// HandleSuffixLength is the length of the random suffix appended to suggested handles.
	HandleSuffixLength = 4
)

// NewID generates a standard UUID v4 string used as a document identifier
// for users and messages.
func NewID() string {
	return uuid.New().String()
}

// Base62String generates a Base62 string of the given length using crypto/rand.
func Base62String(length int) (string, error) {
	result := make([]byte, length)

	for i := 0; i < length; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random base62 character: %v", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// HandleSuffix generates a short random suffix for private handle suggestions,
// e.g. "alex" -> "alex_9xQ2".
func HandleSuffix() (string, error) {
	suffix, err := Base62String(HandleSuffixLength)
	if err != nil {
		return "", err
	}
	return "_" + suffix, nil
}

// IsBase62 reports whether every character of s belongs to the Base62 character set.
func IsBase62(s string) bool {
	for _, char := range s {
		if !strings.ContainsRune(Base62Chars, char) {
			return false
		}
	}
	return len(s) > 0
}
