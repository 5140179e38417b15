// Package scraper reads the radio station's published playlist page and turns it into [models.ScrapedMention] values.
//
// The page groups tracks into boxed sections headed "A LIST", "B LIST" and so on. Each text node inside
// a paragraph of such a section is one "Artist - Track" line. Sections without a LIST header are ignored,
// so a page whose layout changed yields fewer (or zero) mentions instead of an error.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/log"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/shared"
)

// DefaultURL is the BBC Radio 6 Music playlist article.
const DefaultURL = "https://www.bbc.co.uk/programmes/articles/5JDPyPdDGs3yCLdtPhGgWM7/bbc-radio-6-music-playlist"

const (
	sectionSelector = ".component.component--box.component--box-flushbody-vertical.component--box--primary"
	listSuffix      = "LIST"
	lineSeparator   = " - "
)

// Scraper fetches and parses the playlist page.
type Scraper struct {
	url        string
	httpClient *http.Client
	logger     *log.Logger
}

// New creates a Scraper for url. A nil client gets a 30 second timeout; a nil logger discards output.
func New(url string, client *http.Client, logger *log.Logger) *Scraper {
	if url == "" {
		url = DefaultURL
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Scraper{url: url, httpClient: client, logger: logger}
}

// Scrape fetches the page and returns every mention listed on it, in page order.
func (s *Scraper) Scrape(ctx context.Context) ([]models.ScrapedMention, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: error fetching '%s': %v", shared.ErrScrapeFailed, s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		dump, _ := httputil.DumpResponse(resp, false)
		return nil, fmt.Errorf("%w: http status code %d from '%s':\n%s", shared.ErrScrapeFailed, resp.StatusCode, s.url, dump)
	}

	mentions, err := s.parse(resp.Body)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("scraped playlist page", "url", s.url, "mentions", len(mentions))
	return mentions, nil
}

// ParseMentions extracts mentions from a playlist page document.
func ParseMentions(r io.Reader) ([]models.ScrapedMention, error) {
	return New("", nil, nil).parse(r)
}

func (s *Scraper) parse(r io.Reader) ([]models.ScrapedMention, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: error parsing html: %v", shared.ErrScrapeFailed, err)
	}

	mentions := []models.ScrapedMention{}
	doc.Find(sectionSelector).Each(func(_ int, section *goquery.Selection) {
		header := section.Find("h2").First()
		if header.Length() == 0 {
			return
		}
		title := strings.TrimSpace(header.Text())
		if !strings.HasSuffix(title, listSuffix) {
			s.logger.Debug("skipping section", "header", title)
			return
		}

		section.Find("p").Each(func(_ int, para *goquery.Selection) {
			for _, line := range textNodes(para) {
				mention, ok := parseLine(line)
				if !ok {
					s.logger.Debug("skipping line", "section", title, "text", line)
					continue
				}
				mentions = append(mentions, mention)
			}
		})
	})

	return mentions, nil
}

// textNodes returns the text of every text node below sel, depth first.
func textNodes(sel *goquery.Selection) []string {
	var texts []string
	sel.Contents().Each(func(_ int, child *goquery.Selection) {
		if goquery.NodeName(child) == "#text" {
			texts = append(texts, child.Text())
			return
		}
		texts = append(texts, textNodes(child)...)
	})
	return texts
}

// parseLine splits "Artist - Track". The artist is the text before the first separator
// and the track the text after the last one.
func parseLine(line string) (models.ScrapedMention, bool) {
	first := strings.Index(line, lineSeparator)
	if first < 0 {
		return models.ScrapedMention{}, false
	}
	last := strings.LastIndex(line, lineSeparator)

	mention := models.NewScrapedMention(line[:first], line[last+len(lineSeparator):])
	if mention.Artist == "" || mention.Name == "" {
		return models.ScrapedMention{}, false
	}
	return mention, true
}
