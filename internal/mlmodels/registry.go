package mlmodels

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/2beens/fitsense/internal/fitness"
	"github.com/2beens/fitsense/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrModelNotFound   = errors.New("model not found")
	ErrFeatureMismatch = errors.New("feature mismatch")
)

const artifactFileSuffix = ".json"

var _ fitness.ModelRepository = (*Registry)(nil)

// Registry holds the models loaded at startup. It is never mutated after
// construction, so concurrent use is safe.
type Registry struct {
	models map[string]*Artifact
}

func NewRegistry(artifacts map[string]*Artifact) (*Registry, error) {
	models := make(map[string]*Artifact, len(artifacts))
	for name, artifact := range artifacts {
		if err := artifact.Validate(); err != nil {
			return nil, fmt.Errorf("model [%s]: %w", name, err)
		}
		models[name] = artifact
	}
	return &Registry{models: models}, nil
}

// LoadDir loads every <identifier>.json artifact in dir. A missing dir yields an
// empty registry, the engine then runs on fallback estimators only.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Warnf("models dir [%s] does not exist, no models loaded", dir)
			return &Registry{models: map[string]*Artifact{}}, nil
		}
		return nil, fmt.Errorf("read models dir: %w", err)
	}

	artifacts := map[string]*Artifact{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), artifactFileSuffix) {
			continue
		}

		name := strings.TrimSuffix(entry.Name(), artifactFileSuffix)
		artifact, err := readArtifact(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("load model [%s]: %w", name, err)
		}
		artifacts[name] = artifact
		log.Debugf("loaded model [%s] (%s, %d features)", name, artifact.Type, len(artifact.Features))
	}

	return NewRegistry(artifacts)
}

func readArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	return &artifact, nil
}

func (r *Registry) List() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Has(name string) bool {
	_, ok := r.models[name]
	return ok
}

// Invoke runs the model. The feature names must match the ones the artifact declares, in order.
func (r *Registry) Invoke(ctx context.Context, name string, features fitness.Features) (_ []float64, err error) {
	_, span := tracing.GlobalTracer.Start(ctx, "mlmodels.invoke")
	span.SetAttributes(attribute.String("model", name))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	artifact, ok := r.models[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}

	if len(features.Names) != len(artifact.Features) {
		return nil, fmt.Errorf("%w: model expects %d features, got %d", ErrFeatureMismatch, len(artifact.Features), len(features.Names))
	}
	for i, expected := range artifact.Features {
		if features.Names[i] != expected {
			return nil, fmt.Errorf("%w: feature %d is %q, expected %q", ErrFeatureMismatch, i, features.Names[i], expected)
		}
	}

	value, err := artifact.Predict(features.Values)
	if err != nil {
		return nil, err
	}
	return []float64{value}, nil
}
