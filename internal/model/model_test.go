package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://Example.com", "https://example.com/"},
		{"https://example.com/", "https://example.com/"},
		{"https://example.com/contact/", "https://example.com/contact"},
		{"https://example.com/contact#form", "https://example.com/contact"},
		{"HTTP://EXAMPLE.COM:80/About", "http://example.com/about"},
		{"https://example.com:443/a?b=1", "https://example.com/a?b=1"},
		{"https://example.com:8443/a", "https://example.com:8443/a"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeURL(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeURL_Relative(t *testing.T) {
	_, err := NormalizeURL("/contact")
	assert.Error(t, err)
}

func TestCandidateURL_Equal(t *testing.T) {
	a := CandidateURL{URL: "https://sunset.example/contacto/", Provenance: ProvenanceInternalLink}
	b := CandidateURL{URL: "https://SUNSET.example/contacto#top", Provenance: ProvenanceSuffix}
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(CandidateURL{URL: "https://sunset.example/about"}))
}

func TestCandidateURL_EqualIgnoresPathCase(t *testing.T) {
	a := CandidateURL{URL: "https://sunset.example/About"}
	for _, u := range []string{"https://sunset.example/about", "https://SUNSET.example/ABOUT/"} {
		assert.True(t, a.Equal(CandidateURL{URL: u}), u)
	}
	assert.False(t, a.Equal(CandidateURL{URL: "https://sunset.example/about?lang=en"}))
}

func TestSiteHost(t *testing.T) {
	assert.Equal(t, "sunset.example", SiteHost("https://www.Sunset.example/path"))
	assert.Equal(t, "", SiteHost("::not a url"))
}

func TestNewResult_SortsAndDedups(t *testing.T) {
	org := Organization{Name: "Sunset Realty"}
	r := NewResult(org, "https://sunset.example", []string{"Info@Sunset.example", "b@sunset.example", "info@sunset.example", " "}, MethodHomepage)

	assert.Equal(t, []string{"b@sunset.example", "info@sunset.example"}, r.Emails)
	assert.Equal(t, MethodHomepage, r.Method)
	assert.True(t, r.Found())
}

func TestNewResult_EmptyIsNone(t *testing.T) {
	r := NewResult(Organization{Name: "x"}, "", nil, MethodCrawl)
	assert.Equal(t, MethodNone, r.Method)
	assert.Empty(t, r.Emails)
	assert.NotNil(t, r.Emails)
	assert.False(t, r.Found())
}

func TestNewResult_NoneWithEmails(t *testing.T) {
	r := NewResult(Organization{Name: "x"}, "", []string{"a@x.com"}, MethodNone)
	assert.Equal(t, MethodNone, r.Method)
	assert.Empty(t, r.Emails)
}

func TestParseMethod(t *testing.T) {
	m, ok := ParseMethod(" Rendered-Contact-Link ")
	require.True(t, ok)
	assert.Equal(t, MethodRenderedContactLink, m)

	_, ok = ParseMethod("footer")
	assert.False(t, ok)
}

func TestContent_BaseURL(t *testing.T) {
	c := &Content{URL: "http://x.example"}
	assert.Equal(t, "http://x.example", c.BaseURL())
	c.FinalURL = "https://www.x.example/"
	assert.Equal(t, "https://www.x.example/", c.BaseURL())
}

func TestLinkRecord_Fetchable(t *testing.T) {
	assert.True(t, LinkRecord{URL: "https://x.example/a"}.Fetchable())
	assert.False(t, LinkRecord{URL: "https://x.example/a.pdf", Skip: SkipExtension}.Fetchable())
	assert.False(t, LinkRecord{Href: "mailto:a@x.example", Skip: SkipMailto}.Fetchable())
}
