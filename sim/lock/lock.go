// Package lock freezes a run's outputs into a checksummed snapshot directory
// and verifies snapshots later.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/f1-strategy-lab/strategylab/sim"
)

// ManifestFile is the manifest's name inside a snapshot directory.
const ManifestFile = "manifest.json"

// ErrNotLockable is returned for runs that were not strict runs on real data.
var ErrNotLockable = errors.New("lock: only strict runs on real data can be locked")

// RoundValidation compares the expected calendar with the produced rounds.
type RoundValidation struct {
	ExpectedRounds   int      `json:"expected_rounds"`
	ProducedRounds   int      `json:"produced_rounds"`
	MissingEvents    []string `json:"missing_events"`
	ExtraEvents      []string `json:"extra_events"`
	AllRoundsPresent bool     `json:"all_rounds_present"`
}

// ValidateRounds reports which expected events have no produced round and
// which produced rounds were not expected. Order follows the inputs.
func ValidateRounds(expected, produced []string) RoundValidation {
	want := make(map[string]bool, len(expected))
	for _, e := range expected {
		want[e] = true
	}
	got := make(map[string]bool, len(produced))
	for _, p := range produced {
		got[p] = true
	}
	v := RoundValidation{
		ExpectedRounds: len(expected),
		ProducedRounds: len(produced),
		MissingEvents:  []string{},
		ExtraEvents:    []string{},
	}
	for _, e := range expected {
		if !got[e] {
			v.MissingEvents = append(v.MissingEvents, e)
		}
	}
	for _, p := range produced {
		if !want[p] {
			v.ExtraEvents = append(v.ExtraEvents, p)
		}
	}
	v.AllRoundsPresent = len(v.MissingEvents) == 0 && len(v.ExtraEvents) == 0 && len(expected) > 0
	return v
}

// Manifest describes a snapshot.
type Manifest struct {
	RunID           string            `json:"run_id"`
	CreatedAtUTC    string            `json:"created_at_utc"`
	GoVersion       string            `json:"go_version"`
	Platform        string            `json:"platform"`
	ConfigPath      string            `json:"config_path"`
	Config          any               `json:"config"`
	Summary         any               `json:"summary"`
	RoundValidation RoundValidation   `json:"round_validation"`
	Outputs         map[string]string `json:"outputs"` // name -> file name inside the snapshot
	SHA256          map[string]string `json:"sha256"`  // name -> hex digest
}

// Request is the input to Create.
type Request struct {
	Root       string
	Year       int
	Team       string
	Driver     string
	ConfigPath string
	Config     any
	Summary    any
	Outputs    map[string]string // name -> source path
	Rounds     RoundValidation
	Mode       sim.Mode
	Synthetic  bool      // synthetic tables stood in for missing inputs
	Now        time.Time // zero means time.Now()
}

// Create copies every output into a fresh snapshot directory under
// req.Root, hashing each file, and writes the manifest. It refuses runs that
// were not strict, used synthetic data or failed round validation. Returns
// the snapshot directory.
func Create(req Request) (string, *Manifest, error) {
	if req.Mode != sim.ModeStrict {
		return "", nil, fmt.Errorf("%w: mode is %q", ErrNotLockable, req.Mode)
	}
	if req.Synthetic {
		return "", nil, fmt.Errorf("%w: synthetic tables were substituted", ErrNotLockable)
	}
	if !req.Rounds.AllRoundsPresent {
		return "", nil, &sim.IncompleteScheduleError{
			Expected: req.Rounds.ExpectedRounds,
			Produced: req.Rounds.ProducedRounds,
			Missing:  req.Rounds.MissingEvents,
		}
	}
	if len(req.Outputs) == 0 {
		return "", nil, errors.New("lock: no outputs to snapshot")
	}
	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	dir := filepath.Join(req.Root, slug(req.Year, req.Team, req.Driver, now))
	if _, err := os.Stat(dir); err == nil {
		return "", nil, fmt.Errorf("lock: snapshot %s already exists", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("lock: create snapshot dir: %w", err)
	}

	m := &Manifest{
		RunID:           uuid.NewString(),
		CreatedAtUTC:    now.Format(time.RFC3339),
		GoVersion:       runtime.Version(),
		Platform:        runtime.GOOS + "/" + runtime.GOARCH,
		ConfigPath:      req.ConfigPath,
		Config:          req.Config,
		Summary:         req.Summary,
		RoundValidation: req.Rounds,
		Outputs:         make(map[string]string, len(req.Outputs)),
		SHA256:          make(map[string]string, len(req.Outputs)),
	}
	names := make([]string, 0, len(req.Outputs))
	for name := range req.Outputs {
		names = append(names, name)
	}
	sort.Strings(names)
	used := map[string]string{}
	for _, name := range names {
		src := req.Outputs[name]
		base := filepath.Base(src)
		if other, dup := used[base]; dup {
			return "", nil, fmt.Errorf("lock: outputs %s and %s share file name %s", other, name, base)
		}
		used[base] = name
		sum, err := copyFile(src, filepath.Join(dir, base))
		if err != nil {
			return "", nil, fmt.Errorf("lock: %s: %w", name, err)
		}
		m.Outputs[name] = base
		m.SHA256[name] = sum
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("lock: marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ManifestFile), data, 0o644); err != nil {
		return "", nil, fmt.Errorf("lock: write manifest: %w", err)
	}
	logrus.WithFields(logrus.Fields{"dir": dir, "run_id": m.RunID, "files": len(m.Outputs)}).Info("snapshot locked")
	return dir, m, nil
}

// Mismatch is one snapshot file whose content no longer matches its digest.
type Mismatch struct {
	Name string `json:"name"`
	File string `json:"file"`
	Want string `json:"want"`
	Got  string `json:"got"` // empty when the file is missing
}

// Verify re-hashes every file listed in dir's manifest. A nil slice means
// the snapshot is intact.
func Verify(dir string) ([]Mismatch, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(m.SHA256))
	for name := range m.SHA256 {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []Mismatch
	for _, name := range names {
		file := m.Outputs[name]
		got, err := hashFile(filepath.Join(dir, file))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("lock: hashing %s: %w", file, err)
		}
		if got != m.SHA256[name] {
			out = append(out, Mismatch{Name: name, File: file, Want: m.SHA256[name], Got: got})
		}
	}
	return out, nil
}

// ReadManifest loads the manifest of a snapshot directory.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("lock: reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("lock: parsing manifest: %w", err)
	}
	return &m, nil
}

// slug names a snapshot: <year>_<team>_<driver>_<YYYYmmdd_HHMMSSZ>.
func slug(year int, team, driver string, t time.Time) string {
	clean := func(s string) string {
		return strings.Join(strings.Fields(strings.ToLower(s)), "-")
	}
	return fmt.Sprintf("%d_%s_%s_%s", year, clean(team), clean(driver), t.Format("20060102_150405Z"))
}

func copyFile(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
