package playlist

import (
	"crypto/ed25519"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleItems() []Item {
	return []Item{
		{ID: "item-1", Title: "One", Source: "https://media.example/ipfs/Qm1", Duration: 30, License: LicenseOpen},
		{ID: "item-2", Title: "Two", Source: "https://media.example/ipfs/Qm2", Duration: 30, License: LicenseToken},
		{ID: "item-3", Title: "Three", Source: "https://media.example/ipfs/Qm3", Duration: 45, License: LicenseOpen},
	}
}

func TestBuildArtifactPreservesOrder(t *testing.T) {
	a := BuildArtifact(sampleItems(), "My Show", "", false)
	require.Len(t, a.Items, 3)
	assert.Equal(t, "item-1", a.Items[0].ID)
	assert.Equal(t, "item-3", a.Items[2].ID)
	assert.Equal(t, "my-show", a.Slug)
	assert.Equal(t, DocVersion, a.DocVersion)
	assert.NotEmpty(t, a.ID)
	assert.False(t, a.Created.IsZero())
}

func TestBuildArtifactShuffleKeepsAllItems(t *testing.T) {
	a := BuildArtifact(sampleItems(), "t", "t", true)
	require.Len(t, a.Items, 3)
	seen := map[string]bool{}
	for _, it := range a.Items {
		seen[it.ID] = true
	}
	assert.Len(t, seen, 3)
}

func TestSignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	a := BuildArtifact(sampleItems(), "Signed", "", false)
	require.NoError(t, a.Sign(priv))
	assert.Contains(t, a.Signature, "ed25519:")
	require.NoError(t, a.VerifySignature(pub))

	// tampering invalidates the signature
	a.Title = "Tampered"
	assert.Error(t, a.VerifySignature(pub))
}

func TestWriteReadRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "playlist.json")

	a := BuildArtifact(sampleItems(), "Persisted", "", false)
	require.NoError(t, a.WriteFile(path))

	back, err := ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, a.ID, back.ID)
	assert.Len(t, back.Items, 3)
	assert.Equal(t, a.Items[1].Source, back.Items[1].Source)
}

func TestValidateDocument(t *testing.T) {
	a := BuildArtifact(sampleItems(), "Valid", "", false)
	assert.NoError(t, ValidateDocument(a))
}

func TestValidateDocumentReportsCappedDetails(t *testing.T) {
	bad := BuildArtifact([]Item{
		{ID: "", Source: "", Duration: 0, License: "bogus"},
		{ID: "", Source: "", Duration: -1, License: "worse"},
	}, "Bad", "", false)

	err := ValidateDocument(bad)
	require.Error(t, err)
	verr, ok := err.(*SchemaValidationError)
	require.True(t, ok, "expected *SchemaValidationError, got %T", err)
	assert.LessOrEqual(t, len(verr.Details), 3)
	assert.NotEmpty(t, verr.Details)
	for _, d := range verr.Details {
		assert.NotEmpty(t, d.Message)
	}
}

func TestValidateDocumentEmptyItems(t *testing.T) {
	a := BuildArtifact(nil, "Empty", "", false)
	assert.Error(t, ValidateDocument(a))
}

