// Package csp builds Content-Security-Policy header values from an ordered
// list of directives.
package csp

import (
	"fmt"
	"strings"
)

// Directive is one CSP directive with its source expressions.
// Values may be empty for valueless directives such as upgrade-insecure-requests.
type Directive struct {
	Name   string
	Values []string
}

// String renders the directive as "name v1 v2".
func (d Directive) String() string {
	if len(d.Values) == 0 {
		return d.Name
	}
	return d.Name + " " + strings.Join(d.Values, " ")
}

// Builder provides a fluent interface for constructing a CSP.
//
// Directives keep the order in which they were first added; setting an
// existing directive replaces its values in place. The rendered policy is the
// directives joined with "; ", so two directives can never run together.
//
//	policy := NewBuilder().
//	    DefaultSrc("'self'").
//	    ImgSrc("'self'", "https://images.example.net").
//	    Build()
//	// "default-src 'self'; img-src 'self' https://images.example.net"
//
// Builder is not safe for concurrent use.
type Builder struct {
	directives []Directive
	reportOnly bool
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Set adds or replaces a directive.
func (b *Builder) Set(name string, values ...string) *Builder {
	vals := append([]string(nil), values...)
	for i := range b.directives {
		if b.directives[i].Name == name {
			b.directives[i].Values = vals
			return b
		}
	}
	b.directives = append(b.directives, Directive{Name: name, Values: vals})
	return b
}

// DefaultSrc is the fallback for every fetch directive not set explicitly.
func (b *Builder) DefaultSrc(sources ...string) *Builder { return b.Set("default-src", sources...) }

// ScriptSrc controls where scripts may load from.
func (b *Builder) ScriptSrc(sources ...string) *Builder { return b.Set("script-src", sources...) }

func (b *Builder) StyleSrc(sources ...string) *Builder { return b.Set("style-src", sources...) }

func (b *Builder) ImgSrc(sources ...string) *Builder { return b.Set("img-src", sources...) }

func (b *Builder) FontSrc(sources ...string) *Builder { return b.Set("font-src", sources...) }

// ConnectSrc controls fetch, XMLHttpRequest and WebSocket targets.
func (b *Builder) ConnectSrc(sources ...string) *Builder { return b.Set("connect-src", sources...) }

// FrameAncestors controls who may embed the page; "'none'" blocks clickjacking.
func (b *Builder) FrameAncestors(sources ...string) *Builder {
	return b.Set("frame-ancestors", sources...)
}

func (b *Builder) BaseURI(sources ...string) *Builder { return b.Set("base-uri", sources...) }

func (b *Builder) FormAction(sources ...string) *Builder { return b.Set("form-action", sources...) }

func (b *Builder) ObjectSrc(sources ...string) *Builder { return b.Set("object-src", sources...) }

// UpgradeInsecureRequests asks browsers to rewrite http subresource URLs to https.
func (b *Builder) UpgradeInsecureRequests() *Builder { return b.Set("upgrade-insecure-requests") }

// ReportURI sets where violation reports are sent.
func (b *Builder) ReportURI(uri string) *Builder { return b.Set("report-uri", uri) }

// ReportOnly switches the header to report-only mode.
func (b *Builder) ReportOnly(enabled bool) *Builder {
	b.reportOnly = enabled
	return b
}

// Policy returns an immutable snapshot of the configured directives.
func (b *Builder) Policy() Policy {
	out := make([]Directive, len(b.directives))
	for i, d := range b.directives {
		out[i] = Directive{Name: d.Name, Values: append([]string(nil), d.Values...)}
	}
	return Policy{directives: out, reportOnly: b.reportOnly}
}

// Build renders the policy string.
func (b *Builder) Build() string {
	return b.Policy().String()
}

// Policy is a finished, ordered CSP.
type Policy struct {
	directives []Directive
	reportOnly bool
}

// Directives returns a copy of the ordered directive list.
func (p Policy) Directives() []Directive {
	out := make([]Directive, len(p.directives))
	copy(out, p.directives)
	return out
}

// String joins the directives with "; ".
func (p Policy) String() string {
	parts := make([]string, 0, len(p.directives))
	for _, d := range p.directives {
		parts = append(parts, d.String())
	}
	return strings.Join(parts, "; ")
}

// HeaderName returns the header the policy belongs in.
func (p Policy) HeaderName() string {
	if p.reportOnly {
		return "Content-Security-Policy-Report-Only"
	}
	return "Content-Security-Policy"
}

// Validate rejects directive names or values that would corrupt the rendered
// header: separators, whitespace inside a token, or empty tokens.
func (p Policy) Validate() error {
	for _, d := range p.directives {
		if d.Name == "" || strings.ContainsAny(d.Name, "; ,\t\r\n") {
			return fmt.Errorf("invalid directive name %q", d.Name)
		}
		for _, v := range d.Values {
			if v == "" || strings.ContainsAny(v, "; ,\t\r\n") {
				return fmt.Errorf("directive %s: invalid source %q", d.Name, v)
			}
		}
	}
	return nil
}

// Hosts are the third-party origins the food-diary front end talks to.
type Hosts struct {
	// ImageDelivery serves uploaded meal photos (CDN origin).
	ImageDelivery []string

	// Database is the backend database API the browser reads from directly.
	Database []string
}

// AppPolicy returns the food-diary policy: everything same-origin, plus the
// configured image-delivery and database hosts where the front end needs them.
func AppPolicy(h Hosts) *Builder {
	self := "'self'"
	img := append([]string{self, "data:", "blob:"}, h.ImageDelivery...)
	connect := append(append([]string{self}, h.Database...), h.ImageDelivery...)

	return NewBuilder().
		DefaultSrc(self).
		ScriptSrc(self).
		StyleSrc(self, "'unsafe-inline'").
		ImgSrc(img...).
		FontSrc(self, "data:").
		ConnectSrc(connect...).
		FrameAncestors("'none'").
		BaseURI(self).
		FormAction(self).
		ObjectSrc("'none'").
		UpgradeInsecureRequests()
}

// StrictPolicy returns a policy for JSON-only API responses.
func StrictPolicy() *Builder {
	return NewBuilder().
		DefaultSrc("'none'").
		FrameAncestors("'none'").
		BaseURI("'none'").
		FormAction("'none'")
}
