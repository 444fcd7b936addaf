package framework

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/mod/modfile"
)

// Resolved when the package is initialized, while the working directory is still the one
// `go test` started the test binary in.
var fakeDir, fakeDirErr = locateFakeDir()

// FakeDir returns the absolute path of the fake_dir data set: a small fixed tree of files and
// directories for tests that add content to the daemon. The path is resolved from this
// package's source location, so it does not depend on the working directory of the test.
func FakeDir() string {
	if fakeDirErr != nil {
		panic(fakeDirErr)
	}
	return fakeDir
}

func locateFakeDir() (string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("could not determine the source location of the framework package")
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	dir, err := sourceDir(file, wd)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "testdata", "fake_dir"), nil
}

// sourceDir returns the directory of a source file as reported by runtime.Caller. Binaries
// built with -trimpath report an import path such as "example.com/mod/pkg/file.go" instead of
// a file system path; that is resolved against the go.mod of the module, found in wd or one of
// its parents.
func sourceDir(file, wd string) (string, error) {
	if filepath.IsAbs(file) {
		return filepath.Dir(file), nil
	}
	pkg := path.Dir(filepath.ToSlash(file))
	dir, err := filepath.Abs(wd)
	if err != nil {
		return "", err
	}
	for {
		if data, err := os.ReadFile(filepath.Join(dir, "go.mod")); err == nil {
			if mod := modfile.ModulePath(data); mod != "" {
				if pkg == mod {
					return dir, nil
				}
				if rest, ok := strings.CutPrefix(pkg, mod+"/"); ok {
					return filepath.Join(dir, filepath.FromSlash(rest)), nil
				}
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no module containing %s found from %s", pkg, wd)
		}
		dir = parent
	}
}
