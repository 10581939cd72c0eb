package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
)

const modulePrefix = "feedwire/"

type listedPackage struct {
	ImportPath   string
	Imports      []string
	TestImports  []string
	XTestImports []string
}

func main() {
	packages, err := listPackages()
	if err != nil {
		fmt.Fprintf(os.Stderr, "arch-check: %v\n", err)
		os.Exit(1)
	}

	violations := collectViolations(packages)
	if len(violations) == 0 {
		_, _ = fmt.Fprintf(os.Stdout, "arch-check: passed\n")
		return
	}

	_, _ = fmt.Fprintf(os.Stdout, "arch-check: architecture violations:\n")
	for _, violation := range violations {
		_, _ = fmt.Fprintf(os.Stdout, "  - %s\n", violation)
	}
	os.Exit(1)
}

func listPackages() ([]listedPackage, error) {
	cmd := exec.Command("go", "list", "-json", "-test", "./...")
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("go list -json -test ./...: %w", err)
	}

	decoder := json.NewDecoder(bytes.NewReader(stdout.Bytes()))
	result := make([]listedPackage, 0, 64)
	for {
		var pkg listedPackage
		if err := decoder.Decode(&pkg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("decode go list output: %w", err)
		}
		if pkg.ImportPath == "" {
			continue
		}
		result = append(result, pkg)
	}

	return result, nil
}

func collectViolations(packages []listedPackage) []string {
	found := make(map[string]struct{})

	for _, pkg := range packages {
		imports := append([]string{}, pkg.Imports...)
		imports = append(imports, pkg.TestImports...)
		imports = append(imports, pkg.XTestImports...)

		for _, imported := range imports {
			reason := violationReason(pkg.ImportPath, imported)
			if reason == "" {
				continue
			}
			entry := fmt.Sprintf("%s -> %s (%s)", pkg.ImportPath, imported, reason)
			found[entry] = struct{}{}
		}
	}

	violations := make([]string, 0, len(found))
	for violation := range found {
		violations = append(violations, violation)
	}
	sort.Strings(violations)

	return violations
}

// violationReason enforces the layering: pkg/feedwire holds contracts only,
// storage and cache adapters stay below the feed and fanout services, and
// nothing outside cmd imports both ends of the wiring.
func violationReason(importer, imported string) string {
	if strings.HasPrefix(importer, modulePrefix+"pkg/feedwire") &&
		strings.HasPrefix(imported, modulePrefix+"internal/") {
		return "pkg/feedwire must not import internal/*"
	}

	adapters := []string{
		modulePrefix + "internal/listcache",
		modulePrefix + "internal/pgstore",
		modulePrefix + "internal/memstore",
		modulePrefix + "internal/pagination",
	}
	services := []string{
		modulePrefix + "internal/feed",
		modulePrefix + "internal/fanout",
		modulePrefix + "internal/dispatch",
	}
	for _, adapter := range adapters {
		if !strings.HasPrefix(importer, adapter) {
			continue
		}
		for _, service := range services {
			if strings.HasPrefix(imported, service) {
				return "storage and cache adapters must not import service packages"
			}
		}
	}

	if strings.HasPrefix(importer, modulePrefix+"internal/dispatch") &&
		strings.HasPrefix(imported, modulePrefix+"internal/fanout") {
		return "internal/dispatch must not import internal/fanout"
	}

	return ""
}
