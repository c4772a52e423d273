package autopayment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSettings_Validate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"max attempts zero", func(s *Settings) { s.MaxAttempts = 0 }},
		{"max attempts eleven", func(s *Settings) { s.MaxAttempts = 11 }},
		{"retry interval too long", func(s *Settings) { s.RetryIntervalSeconds = 3601 }},
		{"ttl too long", func(s *Settings) { s.RedisTTLHours = 169 }},
		{"hour out of range", func(s *Settings) { s.StartHour = 24 }},
		{"minute out of range", func(s *Settings) { s.EndMinute = 60 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			assert.Error(t, s.Validate())
		})
	}
}

func TestSettings_Derived(t *testing.T) {
	s := DefaultSettings()
	s.StartHour, s.StartMinute = 3, 15
	s.EndHour, s.EndMinute = 23, 50

	assert.Equal(t, "15 3 * * *", s.CollectorCron())
	assert.Equal(t, "50 23 * * *", s.SweeperCron())
	assert.Equal(t, time.Minute, s.RetryInterval())
	assert.Equal(t, 48*time.Hour, s.InFlightTTL())
}
