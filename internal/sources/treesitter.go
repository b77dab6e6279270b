//go:build cgo

package sources

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"panic-list/internal/paths"
)

// Indexer parses Rust files with tree-sitter.
type Indexer struct {
	parser *sitter.Parser
}

// NewIndexer creates an indexer for the Rust grammar.
func NewIndexer() *Indexer {
	p := sitter.NewParser()
	p.SetLanguage(rust.GetLanguage())
	return &Indexer{parser: p}
}

// IsAvailable reports whether source indexing is compiled in.
func IsAvailable() bool {
	return true
}

// BuildIndex indexes every function item under <cargoRoot>/src. Files that
// cannot be read are skipped.
func (ix *Indexer) BuildIndex(ctx context.Context, cargoRoot string) (Index, error) {
	idx := make(Index)
	srcDir := filepath.Join(cargoRoot, SourceDir)

	err := filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == srcDir {
				return err
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != srcDir {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) != ".rs" {
			return nil
		}

		source, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, err := paths.CanonicalizePath(path, cargoRoot)
		if err != nil {
			rel = filepath.ToSlash(path)
		}
		return ix.indexSource(ctx, idx, rel, source)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to index %s: %w", srcDir, err)
	}
	return idx, nil
}

// indexSource adds the function items of one file to idx.
func (ix *Indexer) indexSource(ctx context.Context, idx Index, rel string, source []byte) error {
	tree, err := ix.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return fmt.Errorf("parse error in %s: %w", rel, err)
	}

	for _, fn := range findNodes(tree.RootNode(), "function_item") {
		nameNode := fn.ChildByFieldName("name")
		if nameNode == nil {
			continue
		}
		name := string(source[nameNode.StartByte():nameNode.EndByte()])
		idx.Add(name, Location{Path: rel, Line: int(fn.StartPoint().Row) + 1})
	}
	return nil
}

func findNodes(root *sitter.Node, nodeType string) []*sitter.Node {
	var result []*sitter.Node

	var walk func(*sitter.Node)
	walk = func(node *sitter.Node) {
		if node == nil {
			return
		}
		if node.Type() == nodeType {
			result = append(result, node)
		}
		for i := uint32(0); i < node.ChildCount(); i++ {
			walk(node.Child(int(i)))
		}
	}

	walk(root)
	return result
}
