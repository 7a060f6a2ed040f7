package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/pulse-assistant/internal/evaluation"
)

// LoadEvalConfig reads an evaluation job description. Relative run and qrels paths are
// resolved against the directory of the YAML file.
func LoadEvalConfig(path string) (evaluation.FileRequest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return evaluation.FileRequest{}, fmt.Errorf("read eval config: %w", err)
	}

	var req evaluation.FileRequest
	if err := yaml.Unmarshal(raw, &req); err != nil {
		return evaluation.FileRequest{}, fmt.Errorf("parse eval config %s: %w", path, err)
	}

	base := filepath.Dir(path)
	req.QrelsPath = resolve(base, req.QrelsPath)
	for i, run := range req.RunPaths {
		req.RunPaths[i] = resolve(base, run)
	}
	return req, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
