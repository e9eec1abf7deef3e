package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-finder/internal/model"
)

var sunset = model.Organization{Name: "Sunset Realty", Website: "http://sunset.example"}

func TestCSVSink_RecordAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails_found.csv")
	s, err := NewCSVSink(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, sunset, []string{"Ventas@sunset.example", "info@sunset.example"}, model.MethodHomepage))
	require.NoError(t, s.Record(ctx, model.Organization{Name: "Ghost"}, nil, model.MethodNone))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, []string{
		"organization,website,email,method",
		"Sunset Realty,http://sunset.example,info@sunset.example,homepage",
		"Sunset Realty,http://sunset.example,ventas@sunset.example,homepage",
		"Ghost,,,none",
	}, lines)

	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, model.MethodNone, rows[2].Method)
	assert.Equal(t, []string{"info@sunset.example", "ventas@sunset.example"}, Emails(rows))

	done, err := s.Recorded(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"Sunset Realty": true, "Ghost": true}, done)
	require.NoError(t, s.Close())
}

func TestCSVSink_AppendsWithoutSecondHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	ctx := context.Background()

	s1, err := NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, s1.Record(ctx, sunset, []string{"info@sunset.example"}, model.MethodHomepage))
	require.NoError(t, s1.Close())

	s2, err := NewCSVSink(path)
	require.NoError(t, err)
	require.NoError(t, s2.Record(ctx, model.Organization{Name: "Luna"}, []string{"hola@luna.example"}, model.MethodCrawl))
	require.NoError(t, s2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "organization,website,email,method"))
	assert.Contains(t, string(data), "Luna,,hola@luna.example,crawl")
}

func TestCSVSink_ClosedRejectsRecord(t *testing.T) {
	s, err := NewCSVSink(filepath.Join(t.TempDir(), "out.csv"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	err = s.Record(context.Background(), sunset, []string{"info@sunset.example"}, model.MethodHomepage)
	require.Error(t, err)
}

func TestCSVSink_CancelledContext(t *testing.T) {
	s, err := NewCSVSink(filepath.Join(t.TempDir(), "out.csv"))
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.Error(t, s.Record(ctx, sunset, nil, model.MethodNone))
}

func TestNewCSVSink_BadPath(t *testing.T) {
	_, err := NewCSVSink(filepath.Join(t.TempDir(), "missing", "out.csv"))
	require.Error(t, err)
}

func TestReadCSVResults_LegacyLayout(t *testing.T) {
	in := "\ufeffAgency Name,Emails\n" +
		"Sunset Realty,\"info@sunset.example; ventas@sunset.example\"\n" +
		"Ghost,\n"

	rows, err := ReadCSVResults(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Sunset Realty", rows[0].Organization)
	assert.Equal(t, "ventas@sunset.example", rows[1].Email)
	assert.Equal(t, Row{Organization: "Ghost", Method: model.MethodNone}, rows[2])
}

func TestReadCSVResults_Errors(t *testing.T) {
	_, err := ReadCSVResults(strings.NewReader("website,email\nx,y\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "organization")

	_, err = ReadCSVResults(strings.NewReader("name,website\nx,y\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")

	rows, err := ReadCSVResults(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRowsFor(t *testing.T) {
	rows := rowsFor(sunset, []string{"B@x.es", "b@x.es", " "}, model.MethodCrawl)
	assert.Equal(t, []Row{{Organization: "Sunset Realty", Website: "http://sunset.example", Email: "b@x.es", Method: model.MethodCrawl}}, rows)

	rows = rowsFor(sunset, nil, model.MethodCrawl)
	assert.Equal(t, model.MethodNone, rows[0].Method)
	assert.Empty(t, rows[0].Email)
}
