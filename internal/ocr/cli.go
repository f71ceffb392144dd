package ocr

import (
	"context"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// CLIConfig points at a tesseract binary.
type CLIConfig struct {
	Binary      string `yaml:"binary"`
	PSM         int    `yaml:"psm"`
	TessdataDir string `yaml:"tessdata_dir"`
}

// DefaultCLIConfig uses tesseract from PATH in fully automatic page mode.
func DefaultCLIConfig() CLIConfig {
	return CLIConfig{Binary: "tesseract", PSM: 3}
}

// CLIEngine shells out to the tesseract command line tool.
type CLIEngine struct {
	cfg       CLIConfig
	languages string
	runner    Runner
}

// NewCLIEngine checks that the binary runs and knows the requested languages.
func NewCLIEngine(ctx context.Context, cfg CLIConfig, languages string, runner Runner) (*CLIEngine, error) {
	if runner == nil {
		runner = ExecRunner{}
	}
	args := []string{"--list-langs"}
	if cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", cfg.TessdataDir)
	}
	out, errb, err := runner.Run(ctx, cfg.Binary, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w (%s)", cfg.Binary, err, strings.TrimSpace(string(errb)))
	}

	// tesseract prints the list on stdout or stderr depending on version.
	installed := map[string]bool{}
	for _, line := range strings.Split(string(out)+"\n"+string(errb), "\n") {
		installed[strings.TrimSpace(line)] = true
	}
	for _, lang := range strings.Split(languages, "+") {
		if !installed[lang] {
			return nil, fmt.Errorf("tesseract language %q is not installed", lang)
		}
	}

	return &CLIEngine{cfg: cfg, languages: languages, runner: runner}, nil
}

// Recognize implements Engine.
func (e *CLIEngine) Recognize(ctx context.Context, img image.Image) (string, error) {
	f, err := os.CreateTemp("", "booksnap-ocr-*.png")
	if err != nil {
		return "", fmt.Errorf("failed to create temp image: %w", err)
	}
	path := f.Name()
	defer os.Remove(path)

	if err := imaging.Encode(f, img, imaging.PNG); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to write temp image: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp image: %w", err)
	}

	// tesseract <file> stdout -l <lang> --psm <n>
	args := []string{path, "stdout", "-l", e.languages}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w (%s)", err, strings.TrimSpace(string(errb)))
	}
	return string(out), nil
}

// Close implements Engine.
func (e *CLIEngine) Close() error {
	return nil
}
