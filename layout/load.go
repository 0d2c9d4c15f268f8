package layout

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

//go:embed default.hcl
var defaultSource []byte

var ErrRuntimeVersion = errors.New("runtime version not supported by layout")

// Default returns the built-in HPX-5 x86_64 layout.
func Default() *Layout {
	l, err := Parse(defaultSource, "default.hcl")
	if err != nil {
		panic(err)
	}
	return l
}

func Parse(src []byte, filename string) (*Layout, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse layout %s: %w", filename, diags)
	}
	return decode(file.Body, filename)
}

func Load(path string) (*Layout, error) {
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse layout %s: %w", path, diags)
	}
	return decode(file.Body, path)
}

func decode(body hcl.Body, filename string) (*Layout, error) {
	var l Layout
	if diags := gohcl.DecodeBody(body, nil, &l); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode layout %s: %w", filename, diags)
	}
	l.applyDefaults()
	if err := l.Validate(); err != nil {
		return nil, fmt.Errorf("layout %s: %w", filename, err)
	}
	return &l, nil
}

// Check reports whether version satisfies the layout's runtime constraint.
func (r *Runtime) Check(version string) error {
	c, err := semver.NewConstraint(r.Constraint)
	if err != nil {
		return fmt.Errorf("runtime.constraint %q: %w", r.Constraint, err)
	}
	v, err := semver.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrRuntimeVersion, version, err)
	}
	if !c.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrRuntimeVersion, v, c)
	}
	return nil
}
