package users

import (
	"context"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"reviewflow/internal/platform/apperror"
)

// Roster is the YAML document accepted by bulk import:
//
//	defaultPassword: ChangeMe123!
//	users:
//	  - email: ana@example.com
//	    name: Ana
//	    role: Mentor
//	    department: Engineering
type Roster struct {
	DefaultPassword string        `yaml:"defaultPassword"`
	Users           []CreateInput `yaml:"users"`
}

type ImportResult struct {
	Created []string          `json:"created"`
	Skipped map[string]string `json:"skipped"`
}

func ParseRoster(r io.Reader) (Roster, error) {
	var roster Roster
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&roster); err != nil {
		if err == io.EOF {
			return Roster{}, apperror.Validation("roster is empty")
		}
		return Roster{}, fmt.Errorf("parse roster: %w", err)
	}
	for i := range roster.Users {
		if strings.TrimSpace(roster.Users[i].Password) == "" {
			roster.Users[i].Password = roster.DefaultPassword
		}
	}
	return roster, nil
}

// Import creates every roster entry it can; entries that fail validation
// (duplicate email, bad role) are reported and skipped.
func (s *Service) Import(ctx context.Context, roster Roster) (ImportResult, error) {
	result := ImportResult{Created: []string{}, Skipped: map[string]string{}}
	for _, entry := range roster.Users {
		user, err := s.create(ctx, entry)
		if err != nil {
			if apperror.GetCode(err) == apperror.CodeInternal {
				return result, err
			}
			result.Skipped[entry.Email] = apperror.Message(err)
			continue
		}
		result.Created = append(result.Created, user.Email)
	}
	return result, nil
}
