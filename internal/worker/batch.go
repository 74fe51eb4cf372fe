package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/ubotrace/internal/model"
	"github.com/ppiankov/ubotrace/internal/pipeline"
)

// Analyzer defines the interface for analyzing one subject
type Analyzer interface {
	AnalyzeSubject(ctx context.Context, subject string) (*pipeline.AnalysisResult, error)
	Source() pipeline.Source
}

// AnalysisJob represents one subject analysis
type AnalysisJob struct {
	Subject  string
	Analyzer Analyzer
	Limiter  *Limiter
}

// Execute waits for the source's rate limit and analyzes the subject
func (j *AnalysisJob) Execute(ctx context.Context) Result {
	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, j.Analyzer.Source().Name()); err != nil {
			return &AnalysisResult{Subject: j.Subject, Error: fmt.Errorf("rate limit: %w", err)}
		}
	}

	result, err := j.Analyzer.AnalyzeSubject(ctx, j.Subject)
	if err != nil {
		return &AnalysisResult{
			Subject: j.Subject,
			Report:  nil,
			Error:   err,
		}
	}
	return &AnalysisResult{
		Subject: j.Subject,
		Report:  result.Report,
		Cached:  result.Cached,
		Error:   nil,
	}
}

// AnalysisResult represents the result of an analysis job
type AnalysisResult struct {
	Subject string
	Report  *model.Report
	Cached  bool
	Error   error
}

// GetError returns the error from the analysis result
func (r *AnalysisResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes multiple subjects concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a new batch processor. A non-positive
// requestsPerSecond disables rate limiting.
func NewBatchProcessor(analyzer Analyzer, concurrency int, requestsPerSecond float64, burst int) *BatchProcessor {
	b := &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
	if requestsPerSecond > 0 {
		b.limiter = NewLimiter(requestsPerSecond, burst)
	}
	return b
}

// ProcessSubjects analyzes subjects concurrently. Results follow the input
// order; subjects skipped because ctx was cancelled are reported with the
// context error.
func (b *BatchProcessor) ProcessSubjects(ctx context.Context, subjects []string) []*AnalysisResult {
	if len(subjects) == 0 {
		return []*AnalysisResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	jobs := make([]*AnalysisJob, len(subjects))
	for i, subject := range subjects {
		jobs[i] = &AnalysisJob{
			Subject:  subject,
			Analyzer: b.analyzer,
			Limiter:  b.limiter,
		}
		pool.Submit(jobs[i])
	}

	results := pool.Wait()

	byJob := make(map[string]*AnalysisResult, len(results))
	for _, r := range results {
		ar := r.(*AnalysisResult)
		byJob[ar.Subject] = ar
	}

	out := make([]*AnalysisResult, len(subjects))
	for i, job := range jobs {
		if r, ok := byJob[job.Subject]; ok {
			out[i] = r
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		out[i] = &AnalysisResult{Subject: job.Subject, Error: err}
	}
	return out
}

// ProcessFile reads subjects from a file and analyzes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*AnalysisResult, error) {
	subjects, err := ReadSubjectsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read subjects: %w", err)
	}

	return b.ProcessSubjects(ctx, subjects), nil
}

// ReadSubjectsFromFile reads subject names from a file (one per line).
// Blank lines and # comments are skipped, duplicates dropped.
func ReadSubjectsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var subjects []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			subjects = append(subjects, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return subjects, nil
}
