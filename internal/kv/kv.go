// Package kv implements the persistent key-value node the container
// supervision core serializes to and restores from: one text file
// per container id under a tmpfs-mounted directory, each holding
// "key = value" lines. The real persistence engine (size-bounded tmpfs, its
// mount lifecycle) is an external collaborator; this package is the typed
// node the core actually touches.
package kv

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/supervisr/core/internal/svcerr"
)

// Node is one container's persisted property map.
type Node map[string]string

// Store is the tmpfs-rooted directory of per-id node files.
type Store struct {
	root string
}

// NewStore opens (creating if necessary) the kv root directory.
func NewStore(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, svcerr.Wrap(err, "create kv root %s", root)
	}
	return &Store{root: root}, nil
}

func (s *Store) pathFor(id int) string {
	return filepath.Join(s.root, fmt.Sprintf("%d", id))
}

// Save writes node to <kvroot>/<id>. Mandatory keys id/name/state are the
// caller's responsibility to include.
func (s *Store) Save(id int, node Node) error {
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tmp := s.pathFor(id) + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return svcerr.Wrap(err, "open kv tmp file for %d", id)
	}
	w := bufio.NewWriter(f)
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s = %s\n", k, node[k]); err != nil {
			f.Close()
			return svcerr.Wrap(err, "write kv node for %d", id)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return svcerr.Wrap(err, "flush kv node for %d", id)
	}
	if err := f.Close(); err != nil {
		return svcerr.Wrap(err, "close kv node for %d", id)
	}
	return os.Rename(tmp, s.pathFor(id))
}

// Load reads <kvroot>/<id> back into a Node.
func (s *Store) Load(id int) (Node, error) {
	f, err := os.Open(s.pathFor(id))
	if err != nil {
		return nil, svcerr.Wrap(err, "open kv node for %d", id)
	}
	defer f.Close()

	node := make(Node)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		node[key] = val
	}
	if err := sc.Err(); err != nil {
		return nil, svcerr.Wrap(err, "scan kv node for %d", id)
	}
	return node, nil
}

// Remove deletes <kvroot>/<id>; idempotent on nonexistence.
func (s *Store) Remove(id int) error {
	if err := os.Remove(s.pathFor(id)); err != nil && !os.IsNotExist(err) {
		return svcerr.Wrap(err, "remove kv node for %d", id)
	}
	return nil
}

// List enumerates every existing node's id, used by Holder.RestoreFromStorage.
func (s *Store) List() ([]int, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, svcerr.Wrap(err, "list kv root %s", s.root)
	}
	var ids []int
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".tmp") {
			continue
		}
		var id int
		if _, err := fmt.Sscanf(e.Name(), "%d", &id); err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids, nil
}
