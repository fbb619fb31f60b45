package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"jobsieve/internal/config"
	"jobsieve/internal/services"
)

const (
	adzunaBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize = 50
)

// Adzuna fetches the paged Adzuna search API.
type Adzuna struct {
	client *Client
}

// NewAdzuna returns the adzuna adapter.
func NewAdzuna(client *Client) *Adzuna {
	return &Adzuna{client: client}
}

func (a *Adzuna) Kind() string { return "adzuna" }

type adzunaResponse struct {
	Count   int               `json:"count"`
	Results []json.RawMessage `json:"results"`
}

type adzunaResult struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	RedirectURL string  `json:"redirect_url"`
	Created     string  `json:"created"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

// Fetch walks result pages until a short page or max_pages.
func (a *Adzuna) Fetch(ctx context.Context, src config.Source) (Result, error) {
	if src.AppID == "" || src.AppKey == "" {
		return Result{}, services.Wrap(services.ErrConfiguration, "adzuna", "fetch", "app_id and app_key are required", nil)
	}
	var result Result
	for page := 1; page <= src.MaxPages; page++ {
		if err := services.StopRequested(ctx); err != nil {
			return result, &FetchError{Source: src.ID, Page: page, Err: err}
		}
		resp, err := a.client.Get(ctx, src, a.pageURL(src, page), "application/json")
		if err != nil {
			return result, &FetchError{Source: src.ID, Page: page, Err: err}
		}

		var payload adzunaResponse
		if err := json.Unmarshal(resp.Body, &payload); err != nil {
			return result, &FetchError{Source: src.ID, Page: page,
				Err: services.Wrap(services.ErrParse, "adzuna", "decode page", "", err)}
		}
		parsed := a.parsePage(src, page, payload.Results)
		result.Pages = append(result.Pages, parsed)
		if len(payload.Results) < adzunaPageSize {
			break
		}
	}
	return result, nil
}

func (a *Adzuna) pageURL(src config.Source, page int) string {
	base := strings.TrimRight(src.URL, "/")
	if base == "" {
		base = adzunaBaseURL
	}
	params := url.Values{}
	params.Set("app_id", src.AppID)
	params.Set("app_key", src.AppKey)
	params.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	if src.Query != "" {
		params.Set("what", src.Query)
	}
	if src.Location != "" {
		params.Set("where", src.Location)
	}
	params.Set("sort_by", "date")
	return fmt.Sprintf("%s/%s/search/%d?%s", base, src.Country, page, params.Encode())
}

func (a *Adzuna) parsePage(src config.Source, number int, items []json.RawMessage) Page {
	page := Page{Source: src.ID, Number: number}
	currency := src.Currency
	if currency == "" {
		currency = countryCurrency(src.Country)
	}
	for idx, raw := range items {
		var item adzunaResult
		if err := json.Unmarshal(raw, &item); err != nil {
			page.ParseErrors = append(page.ParseErrors, &ParseError{Source: src.ID, Page: number, Index: idx + 1, Reason: err.Error()})
			continue
		}
		title := cleanText(item.Title)
		if title == "" || item.RedirectURL == "" {
			page.ParseErrors = append(page.ParseErrors, &ParseError{Source: src.ID, Page: number, Index: idx + 1, Reason: "missing title or url"})
			continue
		}
		description := htmlToText(item.Description)
		location := cleanText(item.Location.DisplayName)
		posting := Posting{
			Source:      src.ID,
			SourceJobID: item.ID,
			URL:         item.RedirectURL,
			Title:       title,
			Company:     cleanText(item.Company.DisplayName),
			Location:    location,
			Description: description,
			SalaryMin:   floatPtr(item.SalaryMin),
			SalaryMax:   floatPtr(item.SalaryMax),
			Remote:      detectRemote(title, location),
			PostedAt:    parseTime(item.Created, ""),
		}
		if posting.SalaryMin != nil || posting.SalaryMax != nil {
			posting.SalaryCurrency = currency
		}
		page.Postings = append(page.Postings, posting)
	}
	return page
}

func countryCurrency(country string) string {
	switch strings.ToLower(country) {
	case "us":
		return "USD"
	case "gb":
		return "GBP"
	case "ca":
		return "CAD"
	case "au":
		return "AUD"
	case "in":
		return "INR"
	case "de", "fr", "nl", "it", "es", "at", "be":
		return "EUR"
	default:
		return ""
	}
}
