// Package cargo reads the parts of Cargo.toml that decide which crate is
// analyzed and which bitcode files belong to it.
package cargo

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"panic-list/internal/errors"
)

// ManifestFile is the cargo manifest name.
const ManifestFile = "Cargo.toml"

// Manifest is the subset of Cargo.toml panic-list needs.
type Manifest struct {
	Package   *PackageSection   `toml:"package"`
	Lib       *LibSection       `toml:"lib"`
	Workspace *WorkspaceSection `toml:"workspace"`

	// Path is where the manifest was read from.
	Path string `toml:"-"`
}

// PackageSection is [package]. Only the name is read; version and edition
// may be inherited from the workspace as inline tables.
type PackageSection struct {
	Name string `toml:"name"`
}

// LibSection is [lib]. Name overrides the crate name rustc uses for the
// library target.
type LibSection struct {
	Name      string   `toml:"name"`
	CrateType []string `toml:"crate-type"`
}

// WorkspaceSection is [workspace].
type WorkspaceSection struct {
	Members []string `toml:"members"`
	Exclude []string `toml:"exclude"`
}

// Load parses the Cargo.toml in dir.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewError(errors.ManifestInvalid,
			fmt.Sprintf("cannot read %s", path), err, nil)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m.Path = path
	return m, nil
}

// Parse decodes manifest text.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		e := errors.NewError(errors.ManifestInvalid, "cannot parse "+ManifestFile, err, nil)
		var derr *toml.DecodeError
		if stderrors.As(err, &derr) {
			row, col := derr.Position()
			e.WithDetails(map[string]interface{}{"line": row, "column": col})
		}
		return nil, e
	}
	return &m, nil
}

// IsVirtual reports a workspace root with no package of its own.
func (m *Manifest) IsVirtual() bool {
	return m.Package == nil
}

// PackageName returns [package].name, or "" for a virtual manifest.
func (m *Manifest) PackageName() string {
	if m.Package == nil {
		return ""
	}
	return m.Package.Name
}

// CratePrefix is the file-name prefix rustc gives the crate's bitcode under
// target/<profile>/deps.
func (m *Manifest) CratePrefix() string {
	if m.Lib != nil && m.Lib.Name != "" {
		return m.Lib.Name
	}
	return CrateName(m.PackageName())
}

// CrateName turns a package name into the crate name rustc uses.
func CrateName(pkg string) string {
	return strings.ReplaceAll(pkg, "-", "_")
}

// Target is what one analysis builds: the package handed to cargo and the
// prefix its bitcode files carry.
type Target struct {
	Package string
	Prefix  string
}

// ResolveTarget decides the package to analyze. An explicit name wins;
// otherwise the manifest's own package is used.
func ResolveTarget(m *Manifest, explicit string) (Target, error) {
	if explicit != "" {
		prefix := CrateName(explicit)
		if m != nil && m.PackageName() == explicit {
			prefix = m.CratePrefix()
		}
		return Target{Package: explicit, Prefix: prefix}, nil
	}
	if m == nil || m.PackageName() == "" {
		return Target{}, errors.NewError(errors.ManifestInvalid,
			"no package name given and "+ManifestFile+" has no [package] section", nil,
			[]errors.FixAction{{
				Type:        errors.RunCommand,
				Command:     "panic-list --in-workspace <package>",
				Safe:        true,
				Description: "Name the workspace member to analyze",
			}})
	}
	return Target{Package: m.PackageName(), Prefix: m.CratePrefix()}, nil
}
