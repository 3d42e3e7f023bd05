package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// GeneratePickupOTP generates a cryptographically secure 4-digit code for
// the in-person pickup handover.
func GeneratePickupOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate random number: %w", err)
	}
	return fmt.Sprintf("%04d", n.Int64()), nil
}

// GenerateSecureID generates a random ID for bookings and audit rows.
func GenerateSecureID(prefix string) string {
	max := big.NewInt(999999)
	n, _ := rand.Int(rand.Reader, max)

	// Timestamp + random for uniqueness
	return fmt.Sprintf("%s%d%06d", prefix, time.Now().Unix(), n.Int64())
}

// GeneratePaymentID generates the primary key for a payment row.
func GeneratePaymentID() string {
	return "PAY-" + uuid.New().String()
}
