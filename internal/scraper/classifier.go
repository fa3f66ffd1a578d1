package scraper

import (
	"context"
	"fmt"
	"strings"

	"facebook-group-scraper/internal/dom"
	"facebook-group-scraper/internal/selectors"
)

type RejectReason string

const (
	ReasonNoRoleOrTestID   RejectReason = "no_role_or_testid_match"
	ReasonMissingMessage   RejectReason = "missing_message_content"
	ReasonMissingAuthor    RejectReason = "missing_author"
	ReasonNonPostIndicator RejectReason = "matched_non_post_indicator"
	ReasonWeakSignal       RejectReason = "weak_signal"
)

// Classification is the verdict for one candidate container.
type Classification struct {
	Post   bool
	Reason RejectReason
}

func (c Classification) String() string {
	if c.Post {
		return "post"
	}
	return "not_a_post(" + string(c.Reason) + ")"
}

func accept() Classification { return Classification{Post: true} }

func reject(r RejectReason) Classification { return Classification{Reason: r} }

// ContainerSnapshot holds the container attributes the primary gate reads.
type ContainerSnapshot struct {
	Role    string
	TestID  string
	Classes map[string]struct{}
}

// Snapshot reads role, data-testid and class tokens of el.
func Snapshot(ctx context.Context, b dom.Browser, el dom.Element) (ContainerSnapshot, error) {
	var snap ContainerSnapshot
	var err error

	if snap.Role, _, err = b.Attribute(ctx, el, "role"); err != nil {
		return snap, fmt.Errorf("failed to read role: %w", err)
	}
	if snap.TestID, _, err = b.Attribute(ctx, el, "data-testid"); err != nil {
		return snap, fmt.Errorf("failed to read data-testid: %w", err)
	}
	class, _, err := b.Attribute(ctx, el, "class")
	if err != nil {
		return snap, fmt.Errorf("failed to read class: %w", err)
	}
	snap.Classes = make(map[string]struct{})
	for _, token := range strings.Fields(class) {
		snap.Classes[token] = struct{}{}
	}
	return snap, nil
}

// Classifier decides whether a container is a genuine post. Gates run in a
// fixed order and the first failing gate decides the reason. A container
// passing the structural gates but showing neither modern post classes nor
// engagement is rejected as weak_signal.
type Classifier struct {
	browser  dom.Browser
	catalog  *selectors.Catalog
	validate bool
}

// NewClassifier returns a classifier. With validate false every container
// is accepted without inspection.
func NewClassifier(b dom.Browser, catalog *selectors.Catalog, validate bool) *Classifier {
	return &Classifier{browser: b, catalog: catalog, validate: validate}
}

func (c *Classifier) Classify(ctx context.Context, el dom.Element) (Classification, error) {
	if !c.validate {
		return accept(), nil
	}

	snap, err := Snapshot(ctx, c.browser, el)
	if err != nil {
		return Classification{}, err
	}
	if !c.primaryGate(snap) {
		return reject(ReasonNoRoleOrTestID), nil
	}

	_, ok, err := c.catalog.Resolve(ctx, c.browser, selectors.FieldPostMessage, el)
	if err != nil {
		return Classification{}, err
	}
	if !ok {
		return reject(ReasonMissingMessage), nil
	}

	_, ok, err = c.catalog.Resolve(ctx, c.browser, selectors.FieldAuthor, el)
	if err != nil {
		return Classification{}, err
	}
	if !ok {
		return reject(ReasonMissingAuthor), nil
	}

	for _, f := range []selectors.Field{selectors.FieldComment, selectors.FieldReply, selectors.FieldCommentIndicator} {
		found, err := c.catalog.Exists(ctx, c.browser, f, el)
		if err != nil {
			return Classification{}, err
		}
		if found {
			return reject(ReasonNonPostIndicator), nil
		}
	}

	if c.catalog.HasModernPostClasses(snap.Classes) {
		return accept(), nil
	}
	_, ok, err = c.catalog.Resolve(ctx, c.browser, selectors.FieldEngagement, el)
	if err != nil {
		return Classification{}, err
	}
	if ok {
		return accept(), nil
	}
	return reject(ReasonWeakSignal), nil
}

func (c *Classifier) primaryGate(snap ContainerSnapshot) bool {
	if role := c.catalog.PostRole(); role != "" && snap.Role == role {
		return true
	}
	marker := c.catalog.PostTestIDMarker()
	return marker != "" && strings.Contains(snap.TestID, marker)
}
