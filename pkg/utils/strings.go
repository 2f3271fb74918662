package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateUUID returns a random UUIDv4 string. Used for merchant order ids,
// which must be unique per checkout attempt.
func GenerateUUID() string {
	return uuid.NewString()
}

// GenerateOrderNumber produces the human-facing order reference,
// e.g. "EDU-20260827-4F2A9C".
func GenerateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("EDU-%s-%s", now.Format("20060102"), suffix)
}

// Round2 rounds a money amount to 2 decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ParseInt parses a string to int with a fallback default value
func ParseInt(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return val
}
