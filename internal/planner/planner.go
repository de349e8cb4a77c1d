// Package planner computes minimal sets of file-system watch points.
//
// Opening one OS watch per tracked file does not scale; the planner collapses
// files that share a directory into a single directory-level watch point
// while keeping isolated files on their own file-level point. The underlying
// notification primitive is non-recursive, so the planner never emits a
// recursive subtree watch even where one would cover more files.
package planner

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/weftworks/weft/internal/types"
)

// pathTree is the intermediate trie built once per Plan call: one node per
// directory segment, holding the base names of files directly inside it.
type pathTree struct {
	children  map[string]*pathTree
	baseNames []string
}

func newPathTree() *pathTree {
	return &pathTree{children: make(map[string]*pathTree)}
}

func (t *pathTree) insert(segments []string, baseName string) {
	node := t
	for _, seg := range segments {
		child, ok := node.children[seg]
		if !ok {
			child = newPathTree()
			node.children[seg] = child
		}
		node = child
	}
	node.baseNames = append(node.baseNames, baseName)
}

// Plan computes watch points covering every input path. It is pure and
// deterministic: output order matches a depth-first traversal of the
// directory tree with children visited in lexical order, and every input
// path appears in exactly one point's CoveredPaths.
//
// At each directory holding more than one input file, one Directory point
// covers all of them; a directory holding exactly one gets a File point for
// that file alone. This is a greedy minimization: it trades one watch per
// sibling group against one watch per lonely file and does not attempt a
// globally optimal cover.
func Plan(paths []string) []types.WatchPoint {
	if len(paths) == 0 {
		return nil
	}

	// Deduplicate and sort so insertion order cannot leak into the output.
	seen := make(map[string]struct{}, len(paths))
	unique := make([]string, 0, len(paths))
	for _, p := range paths {
		clean := filepath.Clean(p)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		unique = append(unique, clean)
	}
	sort.Strings(unique)

	root := newPathTree()
	for _, p := range unique {
		dir, base := filepath.Split(p)
		dir = strings.TrimSuffix(dir, string(filepath.Separator))
		root.insert(splitSegments(dir), base)
	}

	// Depth is counted from the common root: skip the shared directory
	// prefix every input path runs through before the tree first branches
	// or holds a file.
	node, dir := root, ""
	for len(node.baseNames) == 0 && len(node.children) == 1 {
		for name, child := range node.children {
			dir = joinDir(dir, name)
			node = child
		}
	}

	var points []types.WatchPoint
	walk(node, dir, 0, &points)
	return points
}

// splitSegments breaks a directory path into trie segments. The leading
// separator of an absolute path becomes its own root segment so that "/a"
// and "a" never collide.
func splitSegments(dir string) []string {
	if dir == "" {
		return nil
	}
	sep := string(filepath.Separator)
	var segments []string
	if strings.HasPrefix(dir, sep) {
		segments = append(segments, sep)
		dir = strings.TrimPrefix(dir, sep)
	}
	if dir == "" {
		return segments
	}
	for _, seg := range strings.Split(dir, sep) {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

func walk(node *pathTree, dir string, depth int, points *[]types.WatchPoint) {
	if n := len(node.baseNames); n > 0 {
		sort.Strings(node.baseNames)
		covered := make([]string, n)
		for i, base := range node.baseNames {
			covered[i] = joinDir(dir, base)
		}
		if n > 1 {
			*points = append(*points, types.WatchPoint{
				Kind:         types.WatchDirectory,
				Path:         dir,
				Depth:        depth,
				CoveredPaths: covered,
			})
		} else {
			*points = append(*points, types.WatchPoint{
				Kind:         types.WatchFile,
				Path:         covered[0],
				Depth:        depth,
				CoveredPaths: covered,
			})
		}
	}

	names := make([]string, 0, len(node.children))
	for name := range node.children {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		walk(node.children[name], joinDir(dir, name), depth+1, points)
	}
}

func joinDir(dir, name string) string {
	if dir == "" {
		return name
	}
	sep := string(filepath.Separator)
	if dir == sep {
		return sep + name
	}
	return dir + sep + name
}
