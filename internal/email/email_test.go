package email

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract_PlainText(t *testing.T) {
	got := Extract(`<footer>Write to info@sunset.example or Sales@Sunset.Example.</footer>`)
	assert.Equal(t, []string{"info@sunset.example", "sales@sunset.example"}, got)
}

func TestExtract_Mailto(t *testing.T) {
	html := `<a href="mailto:ventas@costa.es?subject=Hola">Escríbenos</a>
<a href="MAILTO:a%40costa.es,b@costa.es">team</a>`
	got := Extract(html)
	assert.Equal(t, []string{"a@costa.es", "b@costa.es", "ventas@costa.es"}, got)
}

func TestExtract_MailtoEscapesNotLeaked(t *testing.T) {
	got := Extract(`<a href="mailto:%20info@sunset.example">write</a> share?to=%3Cventas@sunset.example`)
	assert.Equal(t, []string{"info@sunset.example", "ventas@sunset.example"}, got)

	v := NewValidator(defaultPolicy(), nil)
	assert.Equal(t, []string{"info@sunset.example", "ventas@sunset.example"}, v.Filter(context.Background(), got))
}

func TestExtract_EntityEncoded(t *testing.T) {
	got := Extract(`<p>info&#64;villa.es</p>`)
	assert.Equal(t, []string{"info@villa.es"}, got)
}

func TestExtract_ScriptMailto(t *testing.T) {
	got := Extract(`<script>window.location='mailto:office@agency.co.uk'</script>`)
	assert.Contains(t, got, "office@agency.co.uk")
}

func TestExtract_DedupCaseInsensitive(t *testing.T) {
	got := Extract("INFO@X.COM info@x.com Info@x.com")
	assert.Equal(t, []string{"info@x.com"}, got)
}

func TestExtract_None(t *testing.T) {
	assert.Empty(t, Extract(`<html><body>No address here @ all</body></html>`))
	assert.Empty(t, Extract(""))
}

func defaultPolicy() Policy {
	return Policy{
		MediaExtensions: []string{"png", "jpg", "jpeg", "gif", "svg", "webp", "mp4", "mp3"},
		NoiseTokens:     []string{"sentry.io", "wixpress.com", "platformhost"},
	}
}

func TestValidate(t *testing.T) {
	v := NewValidator(defaultPolicy(), nil)
	ctx := context.Background()

	tests := []struct {
		in   string
		want bool
	}{
		{"info@sunset.example", true},
		{"first.last+tag@sub.agency.co.uk", true},
		{"logo@2x.png", false},
		{"hero@banner.WEBP", false},
		{"noreply@platformhost.example", false},
		{"abc123@o123.ingest.sentry.io", false},
		{"no-at-sign.example", false},
		{"a@b", false},
		{"spaces in@x.com", false},
		{"a@x.c", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Validate(ctx, tt.in))
		})
	}
}

func TestValidate_NoiseMatchesWholeLabels(t *testing.T) {
	v := NewValidator(Policy{NoiseTokens: []string{"email.com", "domain.com", "yourdomain"}}, nil)
	ctx := context.Background()

	tests := []struct {
		in   string
		want bool
	}{
		{"info@email.com", false},
		{"info@mail.email.com", false},
		{"info@domain.com", false},
		{"you@yourdomain.net", false},
		{"info@myemail.com", true},
		{"info@acme-domain.com", true},
		{"info@yourdomains.net", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Validate(ctx, tt.in))
		})
	}
}

func TestValidate_TLD(t *testing.T) {
	p := defaultPolicy()
	p.CheckTLD = true
	v := NewValidator(p, nil)
	ctx := context.Background()

	assert.True(t, v.Validate(ctx, "info@agency.com"))
	assert.True(t, v.Validate(ctx, "info@agency.co.uk"))
	assert.True(t, v.Validate(ctx, "info@agency.es"))
	assert.False(t, v.Validate(ctx, "info@agency.notatld"))
	assert.False(t, v.Validate(ctx, "info@sunset.example"))
}

type fakeResolver struct {
	calls   atomic.Int32
	records map[string][]*net.MX
	errs    map[string]error
	delay   time.Duration
}

func (f *fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err, ok := f.errs[name]; ok {
		return nil, err
	}
	return f.records[name], nil
}

func TestValidate_MX(t *testing.T) {
	res := &fakeResolver{
		records: map[string][]*net.MX{"agency.com": {{Host: "mx.agency.com.", Pref: 10}}},
		errs:    map[string]error{"gone.com": &net.DNSError{Err: "no such host", Name: "gone.com", IsNotFound: true}},
	}
	p := defaultPolicy()
	p.CheckMX = true
	v := NewValidator(p, NewMXCache(res, time.Second))
	ctx := context.Background()

	assert.True(t, v.Validate(ctx, "info@agency.com"))
	assert.True(t, v.Validate(ctx, "sales@Agency.com"))
	assert.False(t, v.Validate(ctx, "info@gone.com"))
	assert.Equal(t, int32(2), res.calls.Load())
}

func TestValidate_MXWithoutChecker(t *testing.T) {
	p := defaultPolicy()
	p.CheckMX = true
	v := NewValidator(p, nil)
	assert.False(t, v.Validate(context.Background(), "info@agency.com"))
}

func TestMXCache_NullMX(t *testing.T) {
	res := &fakeResolver{records: map[string][]*net.MX{"nomail.com": {{Host: ".", Pref: 0}}}}
	c := NewMXCache(res, time.Second)
	assert.False(t, c.HasMX(context.Background(), "nomail.com"))
}

func TestMXCache_TemporaryFailureAccepts(t *testing.T) {
	res := &fakeResolver{errs: map[string]error{
		"flaky.com": &net.DNSError{Err: "i/o timeout", Name: "flaky.com", IsTimeout: true},
	}}
	c := NewMXCache(res, time.Second)
	assert.True(t, c.HasMX(context.Background(), "flaky.com"))
}

func TestMXCache_ConcurrentLookupsShareQuery(t *testing.T) {
	res := &fakeResolver{
		records: map[string][]*net.MX{"busy.com": {{Host: "mx.busy.com."}}},
		delay:   20 * time.Millisecond,
	}
	c := NewMXCache(res, time.Second)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, c.HasMX(context.Background(), "busy.com"))
		}()
	}
	wg.Wait()

	assert.True(t, c.HasMX(context.Background(), "BUSY.com."))
	assert.Equal(t, int32(1), res.calls.Load())
	assert.Equal(t, 1, c.Len())
}

func TestMXCache_CancelledNotCached(t *testing.T) {
	res := &fakeResolver{records: map[string][]*net.MX{"a.com": {{Host: "mx.a.com."}}}}
	c := NewMXCache(res, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.HasMX(ctx, "a.com")
	assert.Equal(t, 0, c.Len())

	assert.True(t, c.HasMX(context.Background(), "a.com"))
	assert.Equal(t, 1, c.Len())
}

func TestFilter(t *testing.T) {
	v := NewValidator(defaultPolicy(), nil)
	got := v.Filter(context.Background(), []string{"b@x.com", "logo@2x.png", "A@x.com", "a@x.com"})
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, got)
}

// Every address that survives extraction and validation satisfies the
// anchored grammar.
func TestExtractValidate_OnlyGrammaticalSurvive(t *testing.T) {
	v := NewValidator(defaultPolicy(), nil)
	inputs := []string{
		`<a href="mailto:..weird@@x.com">x</a> a.b@c.d.ef foo@bar.c0m`,
		`icon@2x.png user@host.example-.com trailing.dot@domain.com.`,
		`<img src="sprite@3x.jpeg"> contact@agency.es, ventas@agency.es;`,
	}
	for _, in := range inputs {
		for _, got := range v.Filter(context.Background(), Extract(in)) {
			require.Regexp(t, addressRe, got)
		}
	}
}
