// Package testdata provides access to shared sample streams and config for testing
package testdata

import (
	"path/filepath"
	"regexp"
	"runtime"
	"testing"
)

var inputExtPattern = regexp.MustCompile(`-input\.ndjson$`)

var absoluteDirPath string

func init() {
	_, thisFile, _, _ := runtime.Caller(0)
	absoluteDirPath = filepath.Dir(thisFile)
}

// GetConfigPath returns the path of the sample config file
func GetConfigPath() string {
	return filepath.Join(absoluteDirPath, "config_sample.yml")
}

// ListInputFiles lists sample streams matching the pattern under "streams/"
func ListInputFiles(t *testing.T, pattern string) []string {
	fullPattern := filepath.Join(absoluteDirPath, "streams", pattern+"-input.ndjson")

	inFiles, globErr := filepath.Glob(fullPattern)
	if globErr != nil {
		t.Fatalf("failed to scan test files at path %s: %v", fullPattern, globErr)
	}
	if len(inFiles) == 0 {
		t.Fatalf("failed to find test files at path %s: no match", fullPattern)
	}
	return inFiles
}

// GetInputTitle returns the title of a sample stream from its filename
func GetInputTitle(t *testing.T, fn string) string {
	title := inputExtPattern.ReplaceAllString(fn, "")
	if title == fn {
		t.Fatalf("invalid input filename %s", fn)
	}
	return filepath.Base(title)
}

// GetOutputFilename returns the filename of expected output of a sample stream
func GetOutputFilename(t *testing.T, fn string) string {
	outFn := inputExtPattern.ReplaceAllString(fn, "-output.json")
	if outFn == fn {
		t.Fatalf("invalid input filename %s", fn)
	}
	return outFn
}
