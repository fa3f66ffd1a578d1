// Package selectors holds the versioned field-to-selector catalog used to
// locate posts and their fields in group page markup.
package selectors

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"facebook-group-scraper/internal/dom"
)

var ErrInvalidCatalog = errors.New("invalid selector catalog")

// Field is a semantic slot the catalog maps to query expressions.
type Field string

const (
	FieldPostContainer    Field = "post_container"
	FieldPostMessage      Field = "post_message"
	FieldAuthor           Field = "author"
	FieldTimestamp        Field = "timestamp"
	FieldPermalink        Field = "permalink"
	FieldPostID           Field = "post_id"
	FieldLikes            Field = "likes"
	FieldComments         Field = "comments"
	FieldShares           Field = "shares"
	FieldEngagement       Field = "engagement"
	FieldExpandButton     Field = "expand_button"
	FieldComment          Field = "comment"
	FieldReply            Field = "reply"
	FieldCommentIndicator Field = "comment_indicator"
	FieldImages           Field = "images"
	FieldGroupName        Field = "group_name"
	FieldLoggedIn         Field = "logged_in"
	FieldLoginEmail       Field = "login_email"
	FieldLoginPassword    Field = "login_password"
	FieldLoginButton      Field = "login_button"
)

// Fields lists every field a complete catalog must define.
var Fields = []Field{
	FieldPostContainer, FieldPostMessage, FieldAuthor, FieldTimestamp,
	FieldPermalink, FieldPostID, FieldLikes, FieldComments, FieldShares,
	FieldEngagement, FieldExpandButton, FieldComment, FieldReply,
	FieldCommentIndicator, FieldImages, FieldGroupName, FieldLoggedIn,
	FieldLoginEmail, FieldLoginPassword, FieldLoginButton,
}

// Expr is a single query expression. TextContains, when set, keeps only
// elements whose text contains one of the values (case-insensitive).
type Expr struct {
	CSS          string   `yaml:"css"`
	TextContains []string `yaml:"text_contains,omitempty"`
}

// Definition is the serializable form of a catalog.
type Definition struct {
	Version           string           `yaml:"version"`
	PostRole          string           `yaml:"post_role"`
	PostTestIDMarker  string           `yaml:"post_testid_marker"`
	ModernPostClasses [][]string       `yaml:"modern_post_classes"`
	Fields            map[Field][]Expr `yaml:"fields"`
}

// Catalog is immutable once built. Use With to derive a modified copy.
type Catalog struct {
	version           string
	postRole          string
	postTestIDMarker  string
	modernPostClasses [][]string
	rules             map[Field][]Expr
}

// Match is a successful resolution: the visible elements produced by the
// expression at Index.
type Match struct {
	Elements []dom.Element
	Index    int
}

func (m Match) First() dom.Element {
	return m.Elements[0]
}

// New validates def and builds a catalog from it.
func New(def Definition) (*Catalog, error) {
	if def.Version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidCatalog)
	}
	if def.PostRole == "" && def.PostTestIDMarker == "" {
		return nil, fmt.Errorf("%w: post_role or post_testid_marker is required", ErrInvalidCatalog)
	}

	var missing []string
	for _, f := range Fields {
		if _, ok := def.Fields[f]; !ok {
			missing = append(missing, string(f))
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing fields: %s", ErrInvalidCatalog, strings.Join(missing, ", "))
	}

	c := &Catalog{
		version:          def.Version,
		postRole:         def.PostRole,
		postTestIDMarker: def.PostTestIDMarker,
		rules:            make(map[Field][]Expr, len(def.Fields)),
	}
	for _, set := range def.ModernPostClasses {
		if len(set) == 0 {
			continue
		}
		c.modernPostClasses = append(c.modernPostClasses, append([]string(nil), set...))
	}
	for field, exprs := range def.Fields {
		if err := validateExprs(field, exprs); err != nil {
			return nil, err
		}
		c.rules[field] = cloneExprs(exprs)
	}
	return c, nil
}

func validateExprs(field Field, exprs []Expr) error {
	if len(exprs) == 0 {
		return fmt.Errorf("%w: field %s has no expressions", ErrInvalidCatalog, field)
	}
	for i, e := range exprs {
		if strings.TrimSpace(e.CSS) == "" {
			return fmt.Errorf("%w: field %s expression %d has empty css", ErrInvalidCatalog, field, i)
		}
	}
	return nil
}

func cloneExprs(exprs []Expr) []Expr {
	out := make([]Expr, len(exprs))
	for i, e := range exprs {
		out[i] = Expr{CSS: e.CSS, TextContains: append([]string(nil), e.TextContains...)}
	}
	return out
}

func (c *Catalog) Version() string { return c.version }

func (c *Catalog) PostRole() string { return c.postRole }

func (c *Catalog) PostTestIDMarker() string { return c.postTestIDMarker }

func (c *Catalog) ModernPostClasses() [][]string {
	out := make([][]string, len(c.modernPostClasses))
	for i, set := range c.modernPostClasses {
		out[i] = append([]string(nil), set...)
	}
	return out
}

// Exprs returns a copy of the expressions for field.
func (c *Catalog) Exprs(field Field) []Expr {
	return cloneExprs(c.rules[field])
}

// Definition returns the serializable form of the catalog.
func (c *Catalog) Definition() Definition {
	def := Definition{
		Version:           c.version,
		PostRole:          c.postRole,
		PostTestIDMarker:  c.postTestIDMarker,
		ModernPostClasses: c.ModernPostClasses(),
		Fields:            make(map[Field][]Expr, len(c.rules)),
	}
	for f, exprs := range c.rules {
		def.Fields[f] = cloneExprs(exprs)
	}
	return def
}

// With returns a new catalog where field resolves through exprs. The
// receiver is left untouched.
func (c *Catalog) With(field Field, exprs ...Expr) (*Catalog, error) {
	if err := validateExprs(field, exprs); err != nil {
		return nil, err
	}
	def := c.Definition()
	def.Fields[field] = exprs
	return New(def)
}

// WithVersion returns a copy of the catalog tagged with a new version.
func (c *Catalog) WithVersion(version string) (*Catalog, error) {
	def := c.Definition()
	def.Version = version
	return New(def)
}

// Resolve tries the field's expressions in order and returns the visible
// elements of the first expression that yields any. ok is false when no
// expression yields a visible element; err is reserved for browser failures.
func (c *Catalog) Resolve(ctx context.Context, b dom.Browser, field Field, within dom.Element) (Match, bool, error) {
	exprs, err := c.lookup(field)
	if err != nil {
		return Match{}, false, err
	}

	for i, expr := range exprs {
		els, err := c.query(ctx, b, expr, within, true)
		if err != nil {
			return Match{}, false, err
		}
		if len(els) > 0 {
			return Match{Elements: els, Index: i}, true, nil
		}
	}
	return Match{}, false, nil
}

// Exists reports whether any expression of field matches any element,
// visible or not.
func (c *Catalog) Exists(ctx context.Context, b dom.Browser, field Field, within dom.Element) (bool, error) {
	exprs, err := c.lookup(field)
	if err != nil {
		return false, err
	}

	for _, expr := range exprs {
		els, err := c.query(ctx, b, expr, within, false)
		if err != nil {
			return false, err
		}
		if len(els) > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (c *Catalog) lookup(field Field) ([]Expr, error) {
	exprs, ok := c.rules[field]
	if !ok {
		return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidCatalog, field)
	}
	return exprs, nil
}

func (c *Catalog) query(ctx context.Context, b dom.Browser, expr Expr, within dom.Element, visibleOnly bool) ([]dom.Element, error) {
	els, err := b.QueryAll(ctx, expr.CSS, within)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", expr.CSS, err)
	}

	var out []dom.Element
	for _, el := range els {
		if visibleOnly {
			visible, err := b.Visible(ctx, el)
			if err != nil {
				return nil, fmt.Errorf("failed to check visibility for %q: %w", expr.CSS, err)
			}
			if !visible {
				continue
			}
		}
		if len(expr.TextContains) > 0 {
			text, err := b.Text(ctx, el)
			if err != nil {
				return nil, fmt.Errorf("failed to read text for %q: %w", expr.CSS, err)
			}
			if !containsFold(text, expr.TextContains) {
				continue
			}
		}
		out = append(out, el)
	}
	return out, nil
}

// HasModernPostClasses reports whether classes contains every token of at
// least one configured modern post class set.
func (c *Catalog) HasModernPostClasses(classes map[string]struct{}) bool {
	for _, set := range c.modernPostClasses {
		all := true
		for _, token := range set {
			if _, ok := classes[token]; !ok {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// SortedFields returns the defined fields in lexical order.
func (c *Catalog) SortedFields() []Field {
	fields := make([]Field, 0, len(c.rules))
	for f := range c.rules {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

func containsFold(text string, needles []string) bool {
	lower := strings.ToLower(text)
	for _, n := range needles {
		if strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
