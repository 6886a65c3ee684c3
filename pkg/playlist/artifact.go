package playlist

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DocVersion is the playlist document format version emitted in artifacts.
const DocVersion = "1.0.0"

// Artifact is the built playlist document. Artifacts are owned by the run
// registry and referenced by id in all subsequent operations; the model only
// ever sees the id and a minimal summary.
type Artifact struct {
	DocVersion string    `json:"dpVersion"`
	ID         string    `json:"id"`
	Slug       string    `json:"slug,omitempty"`
	Title      string    `json:"title,omitempty"`
	Created    time.Time `json:"created"`
	Items      []Item    `json:"items"`
	Signature  string    `json:"signature,omitempty"`
}

// BuildArtifact constructs an Artifact from fully resolved items. When shuffle
// is set the item order is randomized, otherwise acquisition order is kept.
func BuildArtifact(items []Item, title, slug string, shuffle bool) *Artifact {
	ordered := make([]Item, len(items))
	copy(ordered, items)
	if shuffle {
		rand.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}
	if title == "" {
		title = "Untitled Playlist"
	}
	if slug == "" {
		slug = Slugify(title)
	}
	return &Artifact{
		DocVersion: DocVersion,
		ID:         uuid.NewString(),
		Slug:       slug,
		Title:      title,
		Created:    time.Now().UTC(),
		Items:      ordered,
	}
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a title.
func Slugify(title string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(s, "-")
}

// Sign computes an Ed25519 signature over the canonical document (without the
// signature field) and stores it as "ed25519:<hex>".
func (a *Artifact) Sign(key ed25519.PrivateKey) error {
	if len(key) != ed25519.PrivateKeySize {
		return errors.New("invalid ed25519 private key size")
	}
	digest, err := a.digest()
	if err != nil {
		return err
	}
	sig := ed25519.Sign(key, digest)
	a.Signature = "ed25519:" + hex.EncodeToString(sig)
	return nil
}

// VerifySignature checks the artifact signature against the public key.
func (a *Artifact) VerifySignature(pub ed25519.PublicKey) error {
	if a.Signature == "" {
		return errors.New("artifact is unsigned")
	}
	hexSig := strings.TrimPrefix(a.Signature, "ed25519:")
	sig, err := hex.DecodeString(hexSig)
	if err != nil {
		return errors.Wrap(err, "decode signature")
	}
	digest, err := a.digest()
	if err != nil {
		return err
	}
	if !ed25519.Verify(pub, digest, sig) {
		return errors.New("signature does not match document")
	}
	return nil
}

func (a *Artifact) digest() ([]byte, error) {
	unsigned := *a
	unsigned.Signature = ""
	b, err := json.Marshal(&unsigned)
	if err != nil {
		return nil, errors.Wrap(err, "marshal artifact for signing")
	}
	sum := sha256.Sum256(b)
	return sum[:], nil
}

// WriteFile persists the artifact as JSON to path, creating parent directories.
// Persisting after each successful build lets a later send or publish step act
// on the document without holding the run registry.
func (a *Artifact) WriteFile(path string) error {
	if path == "" {
		return errors.New("empty artifact path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", path)
	}
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal artifact")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "write artifact to %s", path)
	}
	log.Debug().Str("path", path).Str("artifact_id", a.ID).Int("items", len(a.Items)).Msg("artifact persisted")
	return nil
}

// ReadFile loads an artifact document from path.
func ReadFile(path string) (*Artifact, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read artifact from %s", path)
	}
	var a Artifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, errors.Wrapf(err, "parse artifact from %s", path)
	}
	return &a, nil
}
