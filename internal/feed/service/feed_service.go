package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"

	"github.com/deevee3/perryMillNews/internal/feed/domain"
)

// ErrUnknownCategory is returned when the requested slug is not in the
// curated registry.
var ErrUnknownCategory = errors.New("unknown feed category")

const maxSubtitleLength = 160

// Service fetches curated feeds and normalizes their entries to plain text.
type Service struct {
	parser *gofeed.Parser
	strip  *bluemonday.Policy
}

func NewService() *Service {
	return &Service{
		parser: gofeed.NewParser(),
		strip:  bluemonday.StrictPolicy(),
	}
}

// Fetch retrieves one curated category. limit caps the number of entries;
// zero or negative means the registry maximum.
func (s *Service) Fetch(ctx context.Context, slug string, limit int) (*domain.Result, error) {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		slug = "top-stories"
	}
	cat := domain.CategoryBySlug(slug)
	if cat == nil {
		return nil, ErrUnknownCategory
	}
	return s.fetchCategory(ctx, cat, limit)
}

func (s *Service) fetchCategory(ctx context.Context, cat *domain.Category, limit int) (*domain.Result, error) {
	feed, err := s.parser.ParseURLWithContext(cat.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", cat.Slug, err)
	}

	if limit <= 0 || limit > domain.MaxItems {
		limit = domain.MaxItems
	}
	items := feed.Items
	if len(items) > limit {
		items = items[:limit]
	}

	entries := make([]*domain.Entry, 0, len(items))
	for _, item := range items {
		entries = append(entries, s.normalize(item))
	}

	title := strings.TrimSpace(feed.Title)
	if title == "" {
		title = "RSS Feed"
	}
	link := strings.TrimSpace(feed.Link)
	if link == "" {
		link = cat.URL
	}
	return &domain.Result{
		FeedTitle:           title,
		FeedLink:            link,
		Category:            cat.Slug,
		CategoryName:        cat.Name,
		CategoryDescription: cat.Description,
		Entries:             entries,
	}, nil
}

func (s *Service) normalize(item *gofeed.Item) *domain.Entry {
	summary := s.plainText(item.Description)
	if summary == "" {
		summary = s.plainText(item.Content)
	}

	published := ""
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.Format("2006-01-02T15:04:05")
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.Format("2006-01-02T15:04:05")
	}

	link := strings.TrimSpace(item.Link)
	return &domain.Entry{
		Title:     strings.TrimSpace(item.Title),
		Summary:   summary,
		Link:      link,
		Published: published,
		Source:    sourceFromLink(link),
		Subtitle:  deriveSubtitle(summary),
		Image:     s.extractImage(item),
	}
}

// plainText strips markup from an HTML fragment and collapses whitespace.
func (s *Service) plainText(fragment string) string {
	if fragment == "" {
		return ""
	}
	text := html.UnescapeString(s.strip.Sanitize(fragment))
	return strings.Join(strings.Fields(text), " ")
}

// extractImage looks for an entry illustration: the item image, an image
// enclosure, the media extension, then the first <img> in the description.
func (s *Service) extractImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image") && enc.URL != "" {
			return enc.URL
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if u := ext.Attrs["url"]; u != "" {
					return u
				}
			}
		}
	}
	if item.Description != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(item.Description)); err == nil {
			if src, ok := doc.Find("img").First().Attr("src"); ok && src != "" {
				return src
			}
		}
	}
	return ""
}

// deriveSubtitle takes the first sentence of the summary, clipped to a
// card-sized length.
func deriveSubtitle(summary string) string {
	if summary == "" {
		return ""
	}
	subtitle := summary
	if i := strings.Index(summary, ". "); i >= 0 {
		subtitle = summary[:i+1]
	}
	subtitle = strings.TrimSpace(subtitle)
	if runes := []rune(subtitle); len(runes) > maxSubtitleLength {
		clipped := strings.TrimRight(string(runes[:maxSubtitleLength-3]), " ")
		return clipped + "…"
	}
	return subtitle
}

func sourceFromLink(link string) string {
	if link == "" {
		return ""
	}
	parsed, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return parsed.Host
}
