package worker

import (
	"context"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/ppiankov/exposure/internal/model"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Scanner runs one exposure scan for a subject
type Scanner interface {
	Scan(ctx context.Context, info model.PersonalInfo) (*model.RiskReport, error)
}

// Subject is one entry of a batch file
type Subject struct {
	Label              string `yaml:"label"`
	model.PersonalInfo `yaml:",inline"`
}

// SubjectFile is the on-disk batch format
type SubjectFile struct {
	Subjects []Subject `yaml:"subjects"`
}

// ScanJob scans one subject
type ScanJob struct {
	Index   int
	Subject Subject
	Scanner Scanner
}

// Execute executes the scan job
func (j *ScanJob) Execute(ctx context.Context) Result {
	report, err := j.Scanner.Scan(ctx, j.Subject.PersonalInfo)
	return &ScanResult{
		Index:  j.Index,
		Label:  j.Subject.Label,
		Report: report,
		Error:  err,
	}
}

// ScanResult represents the result of a scan job
type ScanResult struct {
	Index  int
	Label  string
	Report *model.RiskReport
	Error  error
}

// GetError returns the error from the scan result
func (r *ScanResult) GetError() error {
	return r.Error
}

// BatchProcessor scans several subjects with bounded concurrency
type BatchProcessor struct {
	scanner     Scanner
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(scanner Scanner, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{
		scanner:     scanner,
		concurrency: concurrency,
	}
}

// ProcessSubjects scans every subject and returns results in input order.
// Subjects not started before ctx ends are reported with the context error.
func (b *BatchProcessor) ProcessSubjects(ctx context.Context, subjects []Subject) []*ScanResult {
	if len(subjects) == 0 {
		return []*ScanResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, s := range subjects {
		if !pool.Submit(&ScanJob{Index: i, Subject: s, Scanner: b.scanner}) {
			break
		}
	}

	results := pool.Wait()

	scanResults := make([]*ScanResult, len(subjects))
	for _, r := range results {
		sr := r.(*ScanResult)
		scanResults[sr.Index] = sr
	}
	for i, sr := range scanResults {
		if sr == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			scanResults[i] = &ScanResult{Index: i, Label: subjects[i].Label, Error: eris.Wrap(err, "subject not scanned")}
		}
	}

	sort.SliceStable(scanResults, func(i, j int) bool { return scanResults[i].Index < scanResults[j].Index })
	return scanResults
}

// ProcessFile reads subjects from a YAML file and scans them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*ScanResult, error) {
	subjects, err := ReadSubjectsFromFile(filePath)
	if err != nil {
		return nil, eris.Wrap(err, "read subjects")
	}

	return b.ProcessSubjects(ctx, subjects), nil
}

// ReadSubjectsFromFile loads a subject file. Entries with no identifying field
// are skipped, exact duplicates are dropped and missing labels are filled in.
func ReadSubjectsFromFile(filePath string) ([]Subject, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, eris.Wrap(err, "open file")
	}

	var file SubjectFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrap(err, "parse subject file")
	}

	var subjects []Subject
	seen := make(map[model.PersonalInfo]bool)

	for _, s := range file.Subjects {
		if s.Validate() != nil {
			continue
		}

		key := model.PersonalInfo{
			Name:    strings.ToLower(s.Value(model.FieldName)),
			Email:   strings.ToLower(s.Value(model.FieldEmail)),
			Phone:   s.Value(model.FieldPhone),
			Address: strings.ToLower(s.Value(model.FieldAddress)),
		}
		if seen[key] {
			continue
		}
		seen[key] = true

		if strings.TrimSpace(s.Label) == "" {
			s.Label = defaultLabel(s.PersonalInfo, len(subjects)+1)
		}
		subjects = append(subjects, s)
	}

	return subjects, nil
}

// defaultLabel names a subject by its most readable identifier
func defaultLabel(info model.PersonalInfo, n int) string {
	if name := info.Value(model.FieldName); name != "" {
		return name
	}
	if email := info.Value(model.FieldEmail); email != "" {
		return email
	}
	return "subject-" + strconv.Itoa(n)
}
