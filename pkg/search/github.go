package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	githubBaseURL = "https://api.github.com"
	// Unauthenticated search allows 10 requests per minute.
	githubAnonymousPerMinute = 10
	githubMinStars           = 10
)

// GitHub searches repositories through the REST search API.
type GitHub struct {
	http    *resty.Client
	limiter *rate.Limiter
	now     func() time.Time
}

// NewGitHub constructs a GitHub search client.
func NewGitHub(opts ...Option) *GitHub {
	o := buildOptions(options{baseURL: githubBaseURL}, opts)
	if o.baseURL == "" {
		o.baseURL = githubBaseURL
	}
	c := o.restClient().
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28")
	if o.token != "" {
		c.SetAuthToken(o.token)
	}
	perMinute := o.perMinute
	if perMinute == 0 && o.token == "" {
		perMinute = githubAnonymousPerMinute
	}
	g := &GitHub{http: c, now: o.now}
	if perMinute > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), 1)
	}
	return g
}

type githubSearchResponse struct {
	TotalCount int `json:"total_count"`
	Items      []struct {
		FullName    string    `json:"full_name"`
		Description string    `json:"description"`
		HTMLURL     string    `json:"html_url"`
		Language    string    `json:"language"`
		Stars       int       `json:"stargazers_count"`
		Forks       int       `json:"forks_count"`
		Topics      []string  `json:"topics"`
		PushedAt    time.Time `json:"pushed_at"`
	} `json:"items"`
	Message string `json:"message"`
}

// GitHubQuery builds the search expression for repositories matching
// keywords with activity in the last days.
func GitHubQuery(keywords string, days int, now time.Time) string {
	since := now.AddDate(0, 0, -days).Format("2006-01-02")
	return fmt.Sprintf("%s stars:>%d pushed:>%s", strings.TrimSpace(keywords), githubMinStars, since)
}

// SearchRepos returns up to limit repositories sorted by stars, most first.
// A 403 or 429 from the API maps to ErrRateLimited.
func (g *GitHub) SearchRepos(ctx context.Context, keywords string, days, limit int) ([]Repo, error) {
	if strings.TrimSpace(keywords) == "" {
		return nil, fmt.Errorf("search: github keywords are required")
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: github limiter: %v", ErrRateLimited, err)
		}
	}
	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":        GitHubQuery(keywords, days, g.now()),
			"sort":     "stars",
			"order":    "desc",
			"per_page": strconv.Itoa(limit),
		}).
		Get("/search/repositories")
	if err != nil {
		return nil, fmt.Errorf("search: github: %w", err)
	}

	var payload githubSearchResponse
	switch code := resp.StatusCode(); {
	case code == http.StatusForbidden || code == http.StatusTooManyRequests:
		_ = json.Unmarshal(resp.Body(), &payload)
		return nil, fmt.Errorf("%w: github: %s", ErrRateLimited, payload.Message)
	case resp.IsError():
		return nil, fmt.Errorf("search: github: http %d", code)
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, fmt.Errorf("search: github: decode: %w", err)
	}

	repos := make([]Repo, 0, len(payload.Items))
	for _, item := range payload.Items {
		if limit > 0 && len(repos) >= limit {
			break
		}
		repos = append(repos, Repo{
			FullName:    item.FullName,
			Description: item.Description,
			URL:         item.HTMLURL,
			Language:    item.Language,
			Stars:       item.Stars,
			Forks:       item.Forks,
			Topics:      item.Topics,
			PushedAt:    item.PushedAt,
		})
	}
	return repos, nil
}
