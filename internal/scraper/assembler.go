package scraper

import (
	"context"
	"net/url"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"facebook-group-scraper/internal/dom"
	"facebook-group-scraper/internal/selectors"
	"facebook-group-scraper/pkg/types"
)

// RunInfo is the metadata shared by every record of one collect call.
type RunInfo struct {
	RunID     string
	GroupName string
	PageURL   string
	StartedAt time.Time
}

// Assembler fills defaults and run metadata into extracted records.
type Assembler struct {
	now func() time.Time
}

func NewAssembler() *Assembler {
	return &Assembler{now: time.Now}
}

func (a *Assembler) Assemble(p *types.Post, run RunInfo) *types.Post {
	if strings.TrimSpace(p.Timestamp) == "" {
		p.Timestamp = types.UnknownTimestamp
	}
	p.PostURL = absoluteURL(run.PageURL, p.PostURL)
	if p.PostURL == "" {
		p.PostURL = run.PageURL
	}
	p.GroupName = run.GroupName
	if p.GroupName == "" {
		p.GroupName = types.UnknownGroup
	}
	if p.Images == nil {
		p.Images = []types.Image{}
	}
	for i := range p.Images {
		p.Images[i].Src = absoluteURL(run.PageURL, p.Images[i].Src)
	}
	if p.LikesCount < 0 {
		p.LikesCount = 0
	}
	if p.CommentsCount < 0 {
		p.CommentsCount = 0
	}
	if p.SharesCount < 0 {
		p.SharesCount = 0
	}
	p.ScrapedAt = a.now().UTC().Format(time.RFC3339)
	return p
}

func absoluteURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == "" {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// ResolveGroupName reads the group heading, falling back to the slug in the
// page URL and finally to the unknown-group label.
func ResolveGroupName(ctx context.Context, b dom.Browser, catalog *selectors.Catalog, pageURL string) (string, error) {
	m, ok, err := catalog.Resolve(ctx, b, selectors.FieldGroupName, nil)
	if err != nil {
		return "", err
	}
	if ok {
		for _, el := range m.Elements {
			text, err := b.Text(ctx, el)
			if err != nil {
				return "", err
			}
			if name := strings.TrimSpace(text); name != "" && name != "Facebook" {
				return name, nil
			}
		}
	}
	if name := GroupNameFromURL(pageURL); name != "" {
		return name, nil
	}
	return types.UnknownGroup, nil
}

// GroupNameFromURL turns ".../groups/some-group-name/..." into
// "Some Group Name".
func GroupNameFromURL(pageURL string) string {
	_, rest, ok := strings.Cut(pageURL, "/groups/")
	if !ok {
		return ""
	}
	slug, _, _ := strings.Cut(rest, "/")
	slug, _, _ = strings.Cut(slug, "?")
	if slug == "" {
		return ""
	}
	return cases.Title(language.English).String(strings.ReplaceAll(slug, "-", " "))
}

// ValidGroupURL reports whether u points at a group page.
func ValidGroupURL(u string) bool {
	return strings.Contains(u, "facebook.com/groups/")
}
