package config

import (
	"testing"
	"time"
)

func TestValidatePositiveDuration(t *testing.T) {
	if err := ValidatePositiveDuration(time.Second); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidatePositiveDuration(0); err == nil {
		t.Error("expected error for zero duration")
	}
	if err := ValidatePositiveDuration(-time.Second); err == nil {
		t.Error("expected error for negative duration")
	}
}

func TestValidateIntRange(t *testing.T) {
	tests := []struct {
		value, min, max int
		wantErr         bool
	}{
		{5, 1, 10, false},
		{1, 1, 10, false},
		{10, 1, 10, false},
		{0, 1, 10, true},
		{11, 1, 10, true},
	}
	for _, tt := range tests {
		err := ValidateIntRange(tt.value, tt.min, tt.max)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateIntRange(%d, %d, %d) error = %v, wantErr %v",
				tt.value, tt.min, tt.max, err, tt.wantErr)
		}
	}
}

func TestValidateFloatRange(t *testing.T) {
	if err := ValidateFloatRange(0.5, 0.01, 1000); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateFloatRange(0, 0.01, 1000); err == nil {
		t.Error("expected error below range")
	}
	if err := ValidateFloatRange(1001, 0.01, 1000); err == nil {
		t.Error("expected error above range")
	}
}

func TestValidateCronSchedule(t *testing.T) {
	valid := []string{
		"*/30 * * * *",
		"30 5 * * *",
		"0 */6 * * *",
		"0 0 1 * *",
	}
	for _, s := range valid {
		if err := ValidateCronSchedule(s); err != nil {
			t.Errorf("ValidateCronSchedule(%q) = %v, want nil", s, err)
		}
	}

	invalid := []string{
		"",
		"every thursday",
		"* * * *",
		"61 * * * *",
	}
	for _, s := range invalid {
		if err := ValidateCronSchedule(s); err == nil {
			t.Errorf("ValidateCronSchedule(%q) = nil, want error", s)
		}
	}
}

func TestValidateTimezone(t *testing.T) {
	for _, tz := range []string{"UTC", "Asia/Tokyo", "America/New_York"} {
		if err := ValidateTimezone(tz); err != nil {
			t.Errorf("ValidateTimezone(%q) = %v, want nil", tz, err)
		}
	}
	for _, tz := range []string{"", "Mars/Olympus", "not a timezone"} {
		if err := ValidateTimezone(tz); err == nil {
			t.Errorf("ValidateTimezone(%q) = nil, want error", tz)
		}
	}
}
