package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"os"

	"github.com/pkg/errors"

	"top-pick/models"
)

// ErrMalformedResponse is returned when the data source answers with a
// failure status or a body that is not a JSON array.
var ErrMalformedResponse = errors.New("malformed holdings response")

// Source produces the candidate collection.
type Source interface {
	Fetch(ctx context.Context) ([]models.Candidate, error)
}

// DecodeCandidates reads a JSON array of candidates. An empty array decodes
// to an empty slice; selection reports that case.
func DecodeCandidates(r io.Reader) ([]models.Candidate, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading holdings")
	}

	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' {
		return nil, errors.Wrap(ErrMalformedResponse, "expected a JSON array")
	}

	var candidates []models.Candidate
	if err := json.Unmarshal(body, &candidates); err != nil {
		return nil, errors.Wrapf(ErrMalformedResponse, "decoding holdings: %v", err)
	}
	if candidates == nil {
		candidates = []models.Candidate{}
	}
	return candidates, nil
}

// LoadCandidates reads the holdings file at filePath.
func LoadCandidates(filePath string) ([]models.Candidate, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return DecodeCandidates(f)
}

// FileSource serves candidates from a local holdings file.
type FileSource struct {
	Path string
}

func (s FileSource) Fetch(ctx context.Context) ([]models.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadCandidates(s.Path)
}

// ResolveDataURL returns override when set, otherwise defaultPath resolved
// against the URL the widget script was loaded from.
func ResolveDataURL(scriptURL, override, defaultPath string) (string, error) {
	if override != "" {
		return override, nil
	}
	if scriptURL == "" {
		return defaultPath, nil
	}

	base, err := url.Parse(scriptURL)
	if err != nil {
		return "", errors.Wrapf(err, "parsing script url %q", scriptURL)
	}
	ref, err := url.Parse(defaultPath)
	if err != nil {
		return "", errors.Wrapf(err, "parsing data path %q", defaultPath)
	}
	return base.ResolveReference(ref).String(), nil
}
