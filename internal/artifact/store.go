package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
)

// Store holds the loaded scaler and model. Immutable after Load; safe for concurrent use.
type Store struct {
	scaler      *StandardScaler
	model       *Ridge
	fingerprint string
}

// Load reads the scaler and model exports. Any error is a deployment error; callers should not retry.
func Load(scalerPath, modelPath string) (*Store, error) {
	scalerRaw, err := readArtifact(scalerPath)
	if err != nil {
		return nil, err
	}
	modelRaw, err := readArtifact(modelPath)
	if err != nil {
		return nil, err
	}
	scaler, err := decodeScaler(scalerRaw)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", scalerPath, err)
	}
	model, err := decodeRidge(modelRaw)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", modelPath, err)
	}

	h := sha256.New()
	h.Write(scalerRaw)
	h.Write(modelRaw)
	return &Store{
		scaler:      scaler,
		model:       model,
		fingerprint: hex.EncodeToString(h.Sum(nil))[:12],
	}, nil
}

// NewStore builds a Store from already-constructed parts. Used by tests and tooling.
func NewStore(scaler *StandardScaler, model *Ridge, fingerprint string) *Store {
	return &Store{scaler: scaler, model: model, fingerprint: fingerprint}
}

func readArtifact(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("artifact not found: %s", path)
		}
		return nil, fmt.Errorf("read artifact %s: %w", path, err)
	}
	return data, nil
}

func decodeScaler(data []byte) (*StandardScaler, error) {
	var f scalerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse scaler: %w", err)
	}
	if err := checkFeatureNames("scaler", f.FeatureNames); err != nil {
		return nil, err
	}
	return NewStandardScaler(f.Mean, f.Scale)
}

func decodeRidge(data []byte) (*Ridge, error) {
	var f ridgeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if err := checkFeatureNames("model", f.FeatureNames); err != nil {
		return nil, err
	}
	if f.Intercept == nil {
		return nil, fmt.Errorf("model: %w: intercept missing", ErrIncompatible)
	}
	return NewRidge(f.Coef, *f.Intercept, f.Alpha)
}

// Scaler returns the loaded scaler.
func (s *Store) Scaler() Scaler { return s.scaler }

// Model returns the loaded model.
func (s *Store) Model() Model { return s.model }

// StandardScaler returns the concrete scaler for inspection.
func (s *Store) StandardScaler() *StandardScaler { return s.scaler }

// Ridge returns the concrete model for inspection.
func (s *Store) Ridge() *Ridge { return s.model }

// Fingerprint is a short hash of both artifact files. Identifies the pair in logs, metrics and cache keys.
func (s *Store) Fingerprint() string { return s.fingerprint }
