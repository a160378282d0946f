package store

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/Ashfaaq98/casedesk/internal/backend"
	"github.com/Ashfaaq98/casedesk/internal/model"
	"gopkg.in/yaml.v3"
)

// Fixtures describes seed data for the embedded backend.
type Fixtures struct {
	Users []FixtureUser `yaml:"users"`
}

// FixtureUser is one seeded account.
type FixtureUser struct {
	Email     string        `yaml:"email"`
	Password  string        `yaml:"password"`
	FirstName string        `yaml:"first_name"`
	LastName  string        `yaml:"last_name"`
	Pro       bool          `yaml:"pro"`
	NoProfile bool          `yaml:"no_profile"`
	Cases     []FixtureCase `yaml:"cases"`
}

// FixtureCase is one seeded case. Age backdates its creation time.
type FixtureCase struct {
	Title       string        `yaml:"title"`
	Description string        `yaml:"description"`
	Status      string        `yaml:"status"`
	FileCount   int           `yaml:"file_count"`
	Age         time.Duration `yaml:"age"`
}

// SeedResult summarizes what Seed changed.
type SeedResult struct {
	Users   int
	Skipped int
	Cases   int
}

// DefaultFixtures is the demo data used when no fixture file is given.
func DefaultFixtures() Fixtures {
	return Fixtures{Users: []FixtureUser{
		{
			Email:     "demo@casedesk.local",
			Password:  "demo123",
			FirstName: "Avery",
			LastName:  "Counsel",
			Cases: []FixtureCase{
				{Title: "Smith v. Jones", Description: "Contract dispute over delivery terms", Status: "active", FileCount: 4, Age: 72 * time.Hour},
				{Title: "Estate of Harper", Description: "Probate filing and asset inventory", Status: "pending", FileCount: 9, Age: 48 * time.Hour},
				{Title: "Doe Employment Claim", Status: "closed", FileCount: 2, Age: 24 * time.Hour},
			},
		},
		{
			Email:     "pro@casedesk.local",
			Password:  "demo123",
			FirstName: "Jordan",
			LastName:  "Partner",
			Pro:       true,
		},
	}}
}

// LoadFixtures reads YAML fixtures from path.
func LoadFixtures(path string) (Fixtures, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Fixtures{}, fmt.Errorf("read fixtures: %w", err)
	}
	var f Fixtures
	if err := yaml.Unmarshal(b, &f); err != nil {
		return Fixtures{}, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	return f, nil
}

// Seed creates the fixture users and their cases. Users that already exist
// are skipped along with their cases.
func (s *Store) Seed(ctx context.Context, f Fixtures) (SeedResult, error) {
	var res SeedResult
	for _, fu := range f.Users {
		user, err := s.createUser(ctx, backend.SignUpParams{
			Email:     fu.Email,
			Password:  fu.Password,
			FirstName: fu.FirstName,
			LastName:  fu.LastName,
		}, !fu.NoProfile)
		if backend.CodeOf(err) == backend.CodeUserExists {
			res.Skipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("seed user %s: %w", fu.Email, err)
		}
		res.Users++

		if fu.Pro && !fu.NoProfile {
			if err := s.SetProfilePro(ctx, user.ID, true); err != nil {
				return res, fmt.Errorf("seed pro flag for %s: %w", fu.Email, err)
			}
		}

		now := s.now()
		for _, fc := range fu.Cases {
			status, err := model.ParseStatus(fc.Status)
			if err != nil {
				return res, fmt.Errorf("seed case %q: %w", fc.Title, err)
			}
			if _, err := s.insertCaseAt(ctx, model.NewCase{
				UserID:      user.ID,
				Title:       fc.Title,
				Description: fc.Description,
				Status:      status,
				FileCount:   fc.FileCount,
			}, now.Add(-fc.Age)); err != nil {
				return res, fmt.Errorf("seed case %q: %w", fc.Title, err)
			}
			res.Cases++
		}
	}
	return res, nil
}
