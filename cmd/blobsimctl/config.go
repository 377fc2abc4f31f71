package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	simapi "blobsim/pkg/blobsim"
)

// Request files are JSON or YAML, picked by extension. YAML is the
// friendlier hand-written form; JSON round-trips what the API emits.

func loadTrialRequest(path string) (simapi.TrialRequest, error) {
	var req simapi.TrialRequest
	if err := loadRequest(path, &req); err != nil {
		return simapi.TrialRequest{}, err
	}
	return req, nil
}

func loadSweepRequest(path string) (simapi.SweepRequest, error) {
	var req simapi.SweepRequest
	if err := loadRequest(path, &req); err != nil {
		return simapi.SweepRequest{}, err
	}
	return req, nil
}

func loadRequest(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse yaml config %s: %w", path, err)
		}
	case ".json":
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse json config %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config extension: %s", path)
	}
	return nil
}
