package main

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/contact-finder/internal/config"
	"github.com/sells-group/contact-finder/internal/email"
	"github.com/sells-group/contact-finder/internal/model"
	"github.com/sells-group/contact-finder/internal/store"
)

func testValidator() *email.Validator {
	return email.NewValidator(email.Policy{
		MediaExtensions: config.DefaultMediaExtensions,
		NoiseTokens:     config.DefaultNoiseTokens,
	}, nil)
}

func TestCleanRows(t *testing.T) {
	rows := []store.Row{
		{Organization: "Sunset", Email: "info@sunset.es", Method: model.MethodHomepage},
		{Organization: "Sunset", Email: "logo@2x.png", Method: model.MethodHomepage},
		{Organization: "Luna", Email: "user@example.com", Method: model.MethodCrawl},
		{Organization: "Ghost", Method: model.MethodNone},
	}

	kept, removed := cleanRows(context.Background(), rows, testValidator())
	assert.Equal(t, 2, removed)
	assert.Equal(t, []string{"info@sunset.es"}, store.Emails(kept))
	assert.Len(t, kept, 4)
}

func TestWriteRows_GroupsByOrganization(t *testing.T) {
	sink, err := store.NewCSVSink(filepath.Join(t.TempDir(), "cleaned.csv"))
	require.NoError(t, err)
	defer sink.Close() //nolint:errcheck
	ctx := context.Background()

	rows := []store.Row{
		{Organization: "Sunset", Website: "http://sunset.es", Email: "info@sunset.es", Method: model.MethodContactLink},
		{Organization: "Luna", Method: model.MethodNone},
		{Organization: "Sunset", Website: "http://sunset.es", Email: "ventas@sunset.es", Method: model.MethodContactLink},
		{Organization: "Legacy", Email: "hola@legacy.es"},
	}
	require.NoError(t, writeRows(ctx, sink, rows))

	got, err := sink.Rows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []store.Row{
		{Organization: "Sunset", Website: "http://sunset.es", Email: "info@sunset.es", Method: model.MethodContactLink},
		{Organization: "Sunset", Website: "http://sunset.es", Email: "ventas@sunset.es", Method: model.MethodContactLink},
		{Organization: "Luna", Method: model.MethodNone},
		{Organization: "Legacy", Email: "hola@legacy.es", Method: model.MethodHomepage},
	}, got)
}
