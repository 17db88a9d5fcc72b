package webperf

import "github.com/google/uuid"

// NewMetricID returns a token unique to one metric instance: a UUIDv7,
// millisecond clock plus 74 random bits.
func NewMetricID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
