package ocr

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
)

type fakeRunner struct {
	langs string
	text  string
	err   error
	calls [][]string
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.err != nil {
		return nil, []byte("boom"), r.err
	}
	if args[0] == "--list-langs" {
		return []byte("List of available languages (3):\n" + r.langs), nil, nil
	}
	if _, err := os.Stat(args[0]); err != nil {
		return nil, nil, fmt.Errorf("image not written: %w", err)
	}
	return []byte(r.text), nil, nil
}

func TestNewCLIEngine(t *testing.T) {
	tests := []struct {
		name      string
		runner    *fakeRunner
		languages string
		wantErr   bool
	}{
		{"languages installed", &fakeRunner{langs: "eng\nita\nosd\n"}, "ita+eng", false},
		{"missing language", &fakeRunner{langs: "eng\nosd\n"}, "ita+eng", true},
		{"binary missing", &fakeRunner{err: fmt.Errorf("executable file not found")}, "eng", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCLIEngine(context.Background(), DefaultCLIConfig(), tt.languages, tt.runner)
			if (err != nil) != tt.wantErr {
				t.Errorf("Expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCLIEngineRecognize(t *testing.T) {
	runner := &fakeRunner{langs: "eng\nita\n", text: "IL NOME DELLA ROSA\n"}
	engine, err := NewCLIEngine(context.Background(), DefaultCLIConfig(), "ita+eng", runner)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	got, err := engine.Recognize(context.Background(), imaging.New(20, 20, color.White))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got != "IL NOME DELLA ROSA\n" {
		t.Errorf("Expected recognized text, got %q", got)
	}

	last := strings.Join(runner.calls[len(runner.calls)-1][1:], " ")
	if !strings.Contains(last, "stdout -l ita+eng --psm 3") {
		t.Errorf("Unexpected tesseract arguments: %s", last)
	}
}
