// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation checks identifiers that end up in metric labels,
// InfluxDB tags and measurement names.
//
// Session IDs arrive in URL paths and are copied verbatim into Prometheus
// label values and InfluxDB line protocol, so they are restricted to a
// conservative character set before any lookup.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidIdentifier is returned for a rejected session ID or
// measurement name.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// sessionIDPattern allows UUIDs and short generated names such as "sim-3".
var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// measurementPattern is a lowercase snake_case InfluxDB measurement.
var measurementPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidateSessionID checks a session ID.
//
// Valid IDs:
//   - 1-64 characters
//   - ASCII letters and digits
//   - Dots, underscores and hyphens after the first character
//
// Example:
//
//	if err := validation.ValidateSessionID(c.Param("id")); err != nil {
//	    return err
//	}
func ValidateSessionID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: session id cannot be empty", ErrInvalidIdentifier)
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: session id %q", ErrInvalidIdentifier, id)
	}
	return nil
}

// ValidateMeasurement checks an InfluxDB measurement name.
func ValidateMeasurement(name string) error {
	if !measurementPattern.MatchString(name) {
		return fmt.Errorf("%w: measurement %q (must be lowercase snake_case, at most 64 chars)",
			ErrInvalidIdentifier, name)
	}
	return nil
}

// SanitizeMeasurement trims and lowercases name, then validates it.
func SanitizeMeasurement(name string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	if err := ValidateMeasurement(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}
