package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jobsift/jobsift/internal/jobs"
	"github.com/jobsift/jobsift/internal/pipeline"
)

// fileSource reads companies and their postings from a JSON snapshot, the
// hand-off format produced by the scraping side.
type fileSource struct {
	companies []pipeline.Company
	postings  map[int64][]jobs.Posting
}

type snapshotFile struct {
	Companies []struct {
		ID       int64  `json:"id"`
		Name     string `json:"name"`
		Postings []struct {
			Title           string     `json:"title"`
			Description     string     `json:"description"`
			Requirements    string     `json:"requirements"`
			PreferredSkills string     `json:"preferred_skills"`
			ExperienceLevel string     `json:"experience_level"`
			EmploymentType  string     `json:"employment_type"`
			Location        string     `json:"location"`
			WorkMode        string     `json:"work_mode"`
			ApplicationURL  string     `json:"application_url"`
			JobFunction     string     `json:"job_function"`
			PostedAt        *time.Time `json:"posted_at"`
		} `json:"postings"`
	} `json:"companies"`
}

func loadFileSource(path string) (*fileSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read postings file: %w", err)
	}
	var snap snapshotFile
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode postings file: %w", err)
	}

	src := &fileSource{postings: map[int64][]jobs.Posting{}}
	for _, c := range snap.Companies {
		src.companies = append(src.companies, pipeline.Company{ID: c.ID, Name: c.Name})
		for _, p := range c.Postings {
			posting := jobs.Posting{
				Title:           p.Title,
				Description:     p.Description,
				Requirements:    p.Requirements,
				PreferredSkills: p.PreferredSkills,
				ExperienceLevel: p.ExperienceLevel,
				EmploymentType:  p.EmploymentType,
				Location:        p.Location,
				WorkMode:        p.WorkMode,
				ApplicationURL:  p.ApplicationURL,
				JobFunction:     p.JobFunction,
			}
			if p.PostedAt != nil {
				posting.PostedAt = *p.PostedAt
			}
			src.postings[c.ID] = append(src.postings[c.ID], posting)
		}
	}
	return src, nil
}

func (s *fileSource) Postings(ctx context.Context, company pipeline.Company) ([]jobs.Posting, error) {
	return s.postings[company.ID], nil
}
