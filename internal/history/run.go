// Package history records past analyses in a SQLite database so reports can
// be listed and reprinted without rebuilding the crate.
package history

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"panic-list/internal/callgraph"
)

// Run is one recorded analysis.
type Run struct {
	ID          string    `json:"id" yaml:"id"`
	Package     string    `json:"package" yaml:"package"`
	Profile     string    `json:"profile" yaml:"profile"`
	MaxDepth    int       `json:"maxDepth" yaml:"maxDepth"`
	Root        string    `json:"root" yaml:"root"`
	Exported    int       `json:"exported" yaml:"exported"`
	Chains      int       `json:"chains" yaml:"chains"`
	Lines       int       `json:"lines" yaml:"lines"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	CreatedAt   time.Time `json:"createdAt" yaml:"createdAt"`

	// Report is the text rendering. It is only loaded by Get.
	Report []byte `json:"-" yaml:"-"`
}

// NewRun builds a run from a finished analysis.
func NewRun(pkg, profile string, callGraph []byte, report *callgraph.Report) *Run {
	return &Run{
		ID:          uuid.New().String(),
		Package:     pkg,
		Profile:     profile,
		MaxDepth:    report.MaxDepth,
		Root:        report.Root,
		Exported:    report.Exported,
		Chains:      report.Chains(),
		Lines:       len(report.Lines),
		Fingerprint: Fingerprint(callGraph),
		CreatedAt:   time.Now().UTC(),
		Report:      report.Text(),
	}
}

// Fingerprint identifies call-graph text: the hex BLAKE2b-256 digest.
func Fingerprint(callGraph []byte) string {
	sum := blake2b.Sum256(callGraph)
	return hex.EncodeToString(sum[:])
}

// ShortID is the first eight characters of the id, enough to name a run on
// the command line.
func (r *Run) ShortID() string {
	if len(r.ID) > 8 {
		return r.ID[:8]
	}
	return r.ID
}
