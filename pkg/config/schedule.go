package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts five-field cron expressions and descriptors such
// as "@every 1m" or "@hourly".
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule parses spec with the same rules the sweeper's cron uses.
func ParseSchedule(spec string) (cron.Schedule, error) {
	if spec == "" {
		return nil, fmt.Errorf("invalid cron schedule: cannot be empty")
	}
	s, err := scheduleParser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule '%s': %w", spec, err)
	}
	return s, nil
}

// ValidateCronSchedule returns an error when spec cannot be parsed.
func ValidateCronSchedule(spec string) error {
	_, err := ParseSchedule(spec)
	return err
}

// ScheduleParser exposes the parser for cron.WithParser.
func ScheduleParser() cron.ScheduleParser {
	return scheduleParser
}
