package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Info describes one backup file on disk.
type Info struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Trials    int       `json:"trials"`
	Valid     bool      `json:"valid"` // header parsed
}

// Retention decides which backups survive a rotation. Each non-zero limit is
// a separate rule and a backup is kept if any rule keeps it. With every
// limit zero all backups are kept.
type Retention struct {
	MaxCount      int           // keep the newest N
	MaxAge        time.Duration // keep backups younger than this
	MaxTotalBytes int64         // keep newest backups while the total fits
}

// Keep returns the backups retained at time now. backups must be sorted
// newest first, as ListBackups returns them.
func (r Retention) Keep(backups []Info, now time.Time) []Info {
	if r.MaxCount <= 0 && r.MaxAge <= 0 && r.MaxTotalBytes <= 0 {
		return backups
	}

	keep := make([]bool, len(backups))
	if r.MaxCount > 0 {
		for i := 0; i < len(backups) && i < r.MaxCount; i++ {
			keep[i] = true
		}
	}
	if r.MaxAge > 0 {
		cutoff := now.Add(-r.MaxAge)
		for i, b := range backups {
			if b.CreatedAt.After(cutoff) {
				keep[i] = true
			}
		}
	}
	if r.MaxTotalBytes > 0 {
		var total int64
		for i, b := range backups {
			// The newest backup is always kept even if it alone is too big.
			if i > 0 && total+b.Size > r.MaxTotalBytes {
				break
			}
			keep[i] = true
			total += b.Size
		}
	}

	var out []Info
	for i, b := range backups {
		if keep[i] {
			out = append(out, b)
		}
	}
	return out
}

// ListBackups scans dir for gonogo backup files and returns them sorted
// newest first. A missing directory yields no backups.
func ListBackups(dir string) ([]Info, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading backup directory: %w", err)
	}

	var backups []Info
	for _, e := range entries {
		if e.IsDir() || !isBackupFile(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}

		b := Info{
			Path:      filepath.Join(dir, e.Name()),
			Size:      fi.Size(),
			CreatedAt: fi.ModTime(),
		}
		if h, err := ReadHeader(b.Path); err == nil {
			b.CreatedAt = h.CreatedAt
			b.Trials = h.TrialCount
			b.Valid = true
		}
		backups = append(backups, b)
	}

	// Generated names embed the timestamp, so name order is age order.
	sort.Slice(backups, func(i, j int) bool {
		return filepath.Base(backups[i].Path) > filepath.Base(backups[j].Path)
	})
	return backups, nil
}

// ApplyRetention deletes the backups in dir that r does not keep and
// returns their paths.
func ApplyRetention(dir string, r Retention) ([]string, error) {
	backups, err := ListBackups(dir)
	if err != nil {
		return nil, err
	}

	kept := make(map[string]bool)
	for _, b := range r.Keep(backups, time.Now()) {
		kept[b.Path] = true
	}

	var deleted []string
	for _, b := range backups {
		if kept[b.Path] {
			continue
		}
		if err := os.Remove(b.Path); err != nil {
			return deleted, fmt.Errorf("removing %s: %w", filepath.Base(b.Path), err)
		}
		deleted = append(deleted, b.Path)
	}
	return deleted, nil
}

// ParseDuration accepts Go durations ("720h") plus whole days ("30d") and
// weeks ("2w"). The empty string means no limit.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}

	unit := map[byte]time.Duration{'d': 24 * time.Hour, 'w': 7 * 24 * time.Hour}[s[len(s)-1]]
	if unit == 0 {
		return 0, fmt.Errorf("invalid duration %q (use e.g. 720h, 30d, 2w)", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid duration %q (use e.g. 720h, 30d, 2w)", s)
	}
	return time.Duration(n) * unit, nil
}

// ParseSize accepts byte counts with an optional B, KB, MB or GB suffix
// (binary multiples). The empty string means no limit.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	mult := int64(1)
	for _, u := range []struct {
		suffix string
		mult   int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(s, u.suffix) {
			s, mult = strings.TrimSpace(strings.TrimSuffix(s, u.suffix)), u.mult
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid size %q (use e.g. 500MB)", s)
	}
	return n * mult, nil
}
