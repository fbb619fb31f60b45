package sources

import (
	"bytes"
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"jobsieve/internal/config"
	"jobsieve/internal/services"
)

// HTML scrapes a server-rendered job board with configured CSS selectors.
type HTML struct {
	client *Client
}

// NewHTML returns the html adapter.
func NewHTML(client *Client) *HTML {
	return &HTML{client: client}
}

func (h *HTML) Kind() string { return "html" }

// Fetch walks pages via the page query parameter until a page yields no
// listings or max_pages is reached.
func (h *HTML) Fetch(ctx context.Context, src config.Source) (Result, error) {
	var result Result
	for page := 1; page <= src.MaxPages; page++ {
		if err := services.StopRequested(ctx); err != nil {
			return result, &FetchError{Source: src.ID, Page: page, Err: err}
		}
		pageURL, err := h.pageURL(src, page)
		if err != nil {
			return result, &FetchError{Source: src.ID, Page: page, Err: err}
		}
		resp, err := h.client.Get(ctx, src, pageURL, "text/html")
		if err != nil {
			return result, &FetchError{Source: src.ID, Page: page, Err: err}
		}
		parsed, items, err := h.parsePage(src, page, resp)
		if err != nil {
			return result, &FetchError{Source: src.ID, Page: page, Err: err}
		}
		if items == 0 {
			break
		}
		result.Pages = append(result.Pages, parsed)
	}
	return result, nil
}

func (h *HTML) pageURL(src config.Source, page int) (string, error) {
	u, err := url.Parse(src.URL)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "html", "parse url", src.URL, err)
	}
	if page > 1 {
		q := u.Query()
		q.Set(src.PageParam, strconv.Itoa(page))
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (h *HTML) parsePage(src config.Source, number int, resp Response) (Page, int, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
	if err != nil {
		return Page{}, 0, services.Wrap(services.ErrParse, "html", "parse document", resp.URL, err)
	}
	base, _ := url.Parse(resp.URL)
	sel := src.Selectors
	page := Page{Source: src.ID, Number: number}

	items := doc.Find(sel.Item)
	items.Each(func(idx int, item *goquery.Selection) {
		posting, reason := extractListing(src, base, item)
		if reason != "" {
			page.ParseErrors = append(page.ParseErrors, &ParseError{Source: src.ID, Page: number, Index: idx + 1, Reason: reason})
			return
		}
		page.Postings = append(page.Postings, posting)
	})
	return page, items.Length(), nil
}

func extractListing(src config.Source, base *url.URL, item *goquery.Selection) (Posting, string) {
	sel := src.Selectors
	title := selectText(item, sel.Title)
	if title == "" {
		return Posting{}, "missing title"
	}

	var link string
	if sel.Link != "" {
		if href, ok := item.Find(sel.Link).First().Attr("href"); ok {
			link = resolveLink(base, href)
		}
	} else if href, ok := item.Find("a[href]").First().Attr("href"); ok {
		link = resolveLink(base, href)
	}

	var id string
	if sel.IDAttr != "" {
		id, _ = item.Attr(sel.IDAttr)
		id = strings.TrimSpace(id)
	}
	if link == "" && id == "" {
		return Posting{}, "missing link and id"
	}

	location := selectText(item, sel.Location)
	description := selectText(item, sel.Description)
	posting := Posting{
		Source:      src.ID,
		SourceJobID: id,
		URL:         link,
		Title:       title,
		Company:     selectText(item, sel.Company),
		Location:    location,
		Description: description,
		Remote:      detectRemote(title, location),
	}
	if sel.Salary != "" {
		if text := selectText(item, sel.Salary); text != "" {
			posting.SalaryMin, posting.SalaryMax, posting.SalaryCurrency = parseSalary(text)
			if posting.SalaryMin != nil && posting.SalaryCurrency == "" {
				posting.SalaryCurrency = src.Currency
			}
		}
	}
	if sel.Posted != "" {
		node := item.Find(sel.Posted).First()
		value, ok := node.Attr("datetime")
		if !ok {
			value = node.Text()
		}
		posting.PostedAt = parseTime(value, src.DateLayout)
	}
	return posting, ""
}

func selectText(item *goquery.Selection, selector string) string {
	if strings.TrimSpace(selector) == "" {
		return ""
	}
	return cleanText(item.Find(selector).First().Text())
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
