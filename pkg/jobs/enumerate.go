package jobs

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/prometheus/procfs"

	"colmet/pkg/probing"
)

// Enumerator lists the tasks below a composite entity.
type Enumerator interface {
	// ProcessTasks lists the thread ids of process pid.
	ProcessTasks(pid int) ([]int, error)
	// CGroupTasks lists the thread ids in the cgroup at path.
	CGroupTasks(path string) ([]int, error)
}

// ProcFS enumerates tasks from procfs and cgroupfs.
type ProcFS struct {
	fs  procfs.FS
	err error
}

func NewProcFS(root string) *ProcFS {
	if root == "" {
		root = procfs.DefaultMountPoint
	}
	pfs, err := procfs.NewFS(root)
	return &ProcFS{fs: pfs, err: err}
}

func (p *ProcFS) ProcessTasks(pid int) ([]int, error) {
	if p.err != nil {
		return nil, p.err
	}
	threads, err := p.fs.AllThreads(pid)
	if err != nil {
		return nil, err
	}
	tids := make([]int, 0, len(threads))
	for _, t := range threads {
		tids = append(tids, t.PID)
	}
	sort.Ints(tids)
	return tids, nil
}

// CGroupTasks reads the v1 tasks file, or cgroup.threads on the unified
// hierarchy.
func (p *ProcFS) CGroupTasks(path string) ([]int, error) {
	tids, err := probing.FileInts(filepath.Join(path, "tasks"))
	if errors.Is(err, fs.ErrNotExist) {
		tids, err = probing.FileInts(filepath.Join(path, "cgroup.threads"))
	}
	return tids, err
}

// Discover scans the cpuset root for job directories. Every entry whose
// name matches re yields a job whose id is the first capture group.
func Discover(root string, re *regexp.Regexp) (map[uint64]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	found := make(map[uint64]string)
	for _, e := range entries {
		if !e.IsDir() && e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		m := re.FindStringSubmatch(e.Name())
		if len(m) < 2 {
			continue
		}
		id, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil || id == 0 {
			continue
		}
		found[id] = filepath.Join(root, e.Name())
	}
	return found, nil
}
