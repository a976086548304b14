package analyzer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeAnalyzersFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analyzers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile_Valid(t *testing.T) {
	path := writeAnalyzersFile(t, `
analyzers:
  - name: liquidity
    confidence: 0.9
    metrics: [liquidity_score, turnover_ratio]
    base_url: http://liquidity.internal:8080
  - name: sentiment
    confidence: 0.6
    metrics: [sentiment]
    base_url: http://sentiment.internal:8080
`)

	f, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, f.Analyzers, 2)

	assert.Equal(t, "liquidity", f.Analyzers[0].Name)
	assert.InDelta(t, 0.9, f.Analyzers[0].Confidence, 1e-9)
	assert.Equal(t, []string{"liquidity_score", "turnover_ratio"}, f.Analyzers[0].Metrics)
	assert.Equal(t, "http://liquidity.internal:8080", f.Analyzers[0].BaseURL)
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadFile_MalformedYAML(t *testing.T) {
	path := writeAnalyzersFile(t, "analyzers: [not: {valid")
	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() File {
		return File{Analyzers: []Decl{
			{Name: "a", Confidence: 0.5, Metrics: []string{"momentum"}, BaseURL: "http://a"},
		}}
	}

	cases := []struct {
		name    string
		mutate  func(*File)
		wantErr string
	}{
		{"valid", func(*File) {}, ""},
		{"empty file", func(f *File) { f.Analyzers = nil }, "no analyzers"},
		{"empty name", func(f *File) { f.Analyzers[0].Name = "" }, "name must not be empty"},
		{"duplicate name", func(f *File) { f.Analyzers = append(f.Analyzers, f.Analyzers[0]) }, "declared twice"},
		{"confidence above one", func(f *File) { f.Analyzers[0].Confidence = 1.5 }, "confidence"},
		{"negative confidence", func(f *File) { f.Analyzers[0].Confidence = -0.1 }, "confidence"},
		{"no metrics", func(f *File) { f.Analyzers[0].Metrics = nil }, "at least one metric"},
		{"no base url", func(f *File) { f.Analyzers[0].BaseURL = "" }, "base_url"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := valid()
			tc.mutate(&f)
			err := f.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestBuild_WiresDeclarations(t *testing.T) {
	f := File{Analyzers: []Decl{
		{Name: "a", Confidence: 0.5, Metrics: []string{"momentum"}, BaseURL: "http://a"},
		{Name: "b", Confidence: 0.8, Metrics: []string{"sentiment"}, BaseURL: "http://b"},
	}}

	analyzers := f.Build(NewClient(0))
	require.Len(t, analyzers, 2)
	assert.Equal(t, "a", analyzers[0].Name)
	assert.InDelta(t, 0.5, analyzers[0].Confidence, 1e-9)
	assert.Equal(t, []string{"momentum"}, analyzers[0].Metrics)
	assert.NotNil(t, analyzers[0].Analyze)
}
