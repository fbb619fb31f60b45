package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"jobsieve/internal/config"
	"jobsieve/internal/services"
)

const greenhouseBaseURL = "https://boards-api.greenhouse.io/v1/boards"

// Greenhouse fetches a Greenhouse job board in a single request.
type Greenhouse struct {
	client *Client
}

// NewGreenhouse returns the greenhouse adapter.
func NewGreenhouse(client *Client) *Greenhouse {
	return &Greenhouse{client: client}
}

func (g *Greenhouse) Kind() string { return "greenhouse" }

type greenhouseResponse struct {
	Jobs []json.RawMessage `json:"jobs"`
}

type greenhouseJob struct {
	ID             json.Number `json:"id"`
	Title          string      `json:"title"`
	AbsoluteURL    string      `json:"absolute_url"`
	UpdatedAt      string      `json:"updated_at"`
	FirstPublished string      `json:"first_published"`
	CompanyName    string      `json:"company_name"`
	Content        string      `json:"content"`
	Location       struct {
		Name string `json:"name"`
	} `json:"location"`
}

// Fetch returns the whole board as one page.
func (g *Greenhouse) Fetch(ctx context.Context, src config.Source) (Result, error) {
	if err := services.StopRequested(ctx); err != nil {
		return Result{}, &FetchError{Source: src.ID, Page: 1, Err: err}
	}
	base := strings.TrimRight(src.URL, "/")
	if base == "" {
		base = greenhouseBaseURL
	}
	endpoint := fmt.Sprintf("%s/%s/jobs?content=true", base, url.PathEscape(src.Board))

	resp, err := g.client.Get(ctx, src, endpoint, "application/json")
	if err != nil {
		return Result{}, &FetchError{Source: src.ID, Page: 1, Err: err}
	}
	var payload greenhouseResponse
	if err := json.Unmarshal(resp.Body, &payload); err != nil {
		return Result{}, &FetchError{Source: src.ID, Page: 1,
			Err: services.Wrap(services.ErrParse, "greenhouse", "decode board", src.Board, err)}
	}

	page := Page{Source: src.ID, Number: 1}
	for idx, raw := range payload.Jobs {
		var job greenhouseJob
		if err := json.Unmarshal(raw, &job); err != nil {
			page.ParseErrors = append(page.ParseErrors, &ParseError{Source: src.ID, Page: 1, Index: idx + 1, Reason: err.Error()})
			continue
		}
		title := cleanText(job.Title)
		if title == "" || job.AbsoluteURL == "" {
			page.ParseErrors = append(page.ParseErrors, &ParseError{Source: src.ID, Page: 1, Index: idx + 1, Reason: "missing title or url"})
			continue
		}
		company := cleanText(job.CompanyName)
		if company == "" {
			company = src.Board
		}
		description := htmlToText(job.Content)
		location := cleanText(job.Location.Name)
		posting := Posting{
			Source:      src.ID,
			SourceJobID: job.ID.String(),
			URL:         job.AbsoluteURL,
			Title:       title,
			Company:     company,
			Location:    location,
			Description: description,
			Remote:      detectRemote(title, location),
			PostedAt:    parseTime(job.FirstPublished, ""),
			EditedAt:    parseTime(job.UpdatedAt, ""),
		}
		page.Postings = append(page.Postings, posting)
	}
	return Result{Pages: []Page{page}}, nil
}
