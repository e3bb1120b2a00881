// Package dataset loads annotated diagnostic reports: the symptoms to run
// and the organ/location ground truth for each.
package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agenthands/anatomy-eval/internal/config"
	"github.com/agenthands/anatomy-eval/internal/core/model"
)

const filePrefix = "diagnostic_"

// rawSymptom is one entry of a report file.
type rawSymptom struct {
	Symptom string `json:"s_symptom" yaml:"s_symptom"`
	Units   []struct {
		Unit *model.DiagnosisUnit `json:"u_unit" yaml:"u_unit"`
	} `json:"U_unit_set" yaml:"U_unit_set"`
}

// Selection narrows the files of a directory. Zero values are unbounded.
type Selection struct {
	StartID  int
	EndID    int
	MaxFiles int
}

func SelectionFrom(cfg config.DatasetConfig) Selection {
	return Selection{StartID: cfg.StartID, EndID: cfg.EndID, MaxFiles: cfg.MaxFiles}
}

func (s Selection) ranged() bool {
	return s.StartID > 0 || s.EndID > 0
}

type reportFile struct {
	path  string
	id    string
	num   int
	isNum bool
}

// ListFiles returns report files in dir ordered by numeric ID. With an ID
// range set, files whose name carries no numeric ID are skipped.
func ListFiles(dir string, sel Selection) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset dir: %w", err)
	}

	var files []reportFile
	for _, e := range entries {
		if e.IsDir() || !isReportFile(e.Name()) {
			continue
		}
		f := reportFile{path: filepath.Join(dir, e.Name()), id: ReportID(e.Name())}
		if n, err := strconv.Atoi(f.id); err == nil {
			f.num, f.isNum = n, true
		}

		if sel.ranged() {
			if !f.isNum {
				continue
			}
			if sel.StartID > 0 && f.num < sel.StartID {
				continue
			}
			if sel.EndID > 0 && f.num > sel.EndID {
				continue
			}
		}
		files = append(files, f)
	}

	sort.Slice(files, func(i, j int) bool {
		a, b := files[i], files[j]
		if a.isNum != b.isNum {
			return a.isNum
		}
		if a.isNum && a.num != b.num {
			return a.num < b.num
		}
		return a.id < b.id
	})

	if sel.MaxFiles > 0 && len(files) > sel.MaxFiles {
		files = files[:sel.MaxFiles]
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

func isReportFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// ReportID derives the report ID from a file name: diagnostic_12.json -> 12.
func ReportID(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.TrimPrefix(stem, filePrefix)
}

// LoadReport parses one report file. Symptoms with empty text or without any
// annotated unit are skipped; TotalSymptoms still counts them.
func LoadReport(path string) (model.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Report{}, fmt.Errorf("failed to read report: %w", err)
	}

	var raw []rawSymptom
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return model.Report{}, fmt.Errorf("failed to parse report %s: %w", filepath.Base(path), err)
	}

	report := model.Report{
		ID:            ReportID(path),
		Path:          path,
		TotalSymptoms: len(raw),
		Symptoms:      []model.Symptom{},
	}
	for i, rs := range raw {
		text := strings.TrimSpace(rs.Symptom)
		if text == "" {
			continue
		}

		var units []model.DiagnosisUnit
		for _, u := range rs.Units {
			if u.Unit != nil {
				units = append(units, *u.Unit)
			}
		}
		if len(units) == 0 {
			continue
		}

		report.Symptoms = append(report.Symptoms, model.Symptom{
			ID:    fmt.Sprintf("%s_symptom_%d", report.ID, i),
			Index: i,
			Text:  text,
			Units: units,
		})
	}
	return report, nil
}

// LoadDir loads every selected report in dir. A file that fails to parse is
// returned in failed rather than aborting the load.
func LoadDir(dir string, sel Selection) (reports []model.Report, failed map[string]error, err error) {
	paths, err := ListFiles(dir, sel)
	if err != nil {
		return nil, nil, err
	}

	failed = make(map[string]error)
	for _, p := range paths {
		r, err := LoadReport(p)
		if err != nil {
			failed[p] = err
			continue
		}
		reports = append(reports, r)
	}
	return reports, failed, nil
}
