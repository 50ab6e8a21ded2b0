package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"adgm-review-backend/docx"
	"adgm-review-backend/models"
	"adgm-review-backend/repository"
	"adgm-review-backend/storage"

	"github.com/google/uuid"
)

var (
	ErrNoDocuments       = errors.New("no documents provided for review")
	ErrMalformedDocument = errors.New("malformed document")
	ErrJobCreationFailed = errors.New("failed to create review job")
	ErrJobNotFound       = errors.New("review job not found")
)

// processChecklists maps each supported legal process to the document types
// it requires. Evaluated in declaration order; the first matching process
// wins.
var processChecklists = []struct {
	process  models.ProcessTag
	required []models.DocType
}{
	{
		process: models.ProcessCompanyIncorporation,
		required: []models.DocType{
			models.DocTypeArticlesOfAssociation,
			models.DocTypeMemorandumOfAssociation,
			models.DocTypeIncorporationApplication,
			models.DocTypeUBODeclaration,
			models.DocTypeRegisterOfMembers,
		},
	},
	{
		process: models.ProcessCommercialLicensing,
		required: []models.DocType{
			models.DocTypeCommercialLicense,
			"Business Plan",
			models.DocTypeLeaseAgreement,
			"Financial Projections",
		},
	},
	{
		process: models.ProcessEmploymentDocumentation,
		required: []models.DocType{
			models.DocTypeEmploymentContract,
			"Job Description",
			"Salary Certificate",
		},
	},
}

// CitationProvider attaches ADGM citations to issue descriptions
type CitationProvider interface {
	CitationForIssue(ctx context.Context, query string) (*models.Citation, error)
}

// ReviewService runs the full document review pipeline: classification,
// red-flag checks, citation retrieval, annotation, and report consolidation
type ReviewService struct {
	classifier *TypeClassifier
	rules      *RuleEngine
	annotator  *Annotator
	citations  CitationProvider
	jobRepo    *repository.ReviewJobRepository
	store      storage.Storage
}

// ReviewServiceOption is a functional option for ReviewService
type ReviewServiceOption func(*ReviewService)

// ReviewWithCitations sets the citation provider. Without one, reviews run
// with null citations.
func ReviewWithCitations(provider CitationProvider) ReviewServiceOption {
	return func(s *ReviewService) {
		s.citations = provider
	}
}

// ReviewWithJobRepository sets the review job repository
func ReviewWithJobRepository(repo *repository.ReviewJobRepository) ReviewServiceOption {
	return func(s *ReviewService) {
		s.jobRepo = repo
	}
}

// ReviewWithStorage sets the artifact storage backend
func ReviewWithStorage(store storage.Storage) ReviewServiceOption {
	return func(s *ReviewService) {
		s.store = store
	}
}

// ReviewWithAnnotator overrides the default annotator
func ReviewWithAnnotator(annotator *Annotator) ReviewServiceOption {
	return func(s *ReviewService) {
		s.annotator = annotator
	}
}

// NewReviewService creates a review service
func NewReviewService(opts ...ReviewServiceOption) *ReviewService {
	s := &ReviewService{
		classifier: NewTypeClassifier(),
		rules:      NewRuleEngine(),
		annotator:  NewAnnotator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// documentAnalysis is the per-document outcome of the analysis phase
type documentAnalysis struct {
	name         string
	types        []models.DocType
	issues       []models.Issue
	completeness models.CompletenessAnalysis
}

// AnalyzeDocument classifies one document and runs red-flag checks over it.
// Read failures and empty documents become High-severity issues rather than
// errors, so one bad file never sinks a batch.
func (s *ReviewService) AnalyzeDocument(path string) documentAnalysis {
	name := filepath.Base(path)
	analysis := documentAnalysis{name: name}

	doc, err := docx.Open(path)
	if err != nil {
		analysis.types = []models.DocType{models.DocTypeUnknown}
		analysis.issues = []models.Issue{{
			Description: fmt.Sprintf("Error reading document: %v", err),
			Severity:    models.SeverityHigh,
			Section:     "General",
			Document:    name,
		}}
		return analysis
	}

	text := doc.Text()
	if strings.TrimSpace(text) == "" {
		log.Printf("Warning: document %s appears to be empty", name)
		analysis.types = []models.DocType{models.DocTypeUnknown}
		analysis.issues = []models.Issue{{
			Description: "Document appears to be empty",
			Severity:    models.SeverityHigh,
			Section:     "General",
			Document:    name,
		}}
		return analysis
	}

	classifications := s.classifier.Classify(text)
	for _, c := range classifications {
		analysis.types = append(analysis.types, c.Type)
	}

	// type-unknown check path: every type-specific rule family runs
	issues := s.rules.Check(text, models.DocTypeUnknown)
	for i := range issues {
		issues[i].Document = name
		if issues[i].Section == "" {
			issues[i].Section = "General"
		}
	}
	analysis.issues = issues

	analysis.completeness = s.classifier.AnalyzeCompleteness(text, analysis.types)
	analysis.completeness.Document = name

	return analysis
}

// InferProcess picks the legal process whose checklist overlaps the detected
// types by at least 40% (and no fewer than two documents)
func InferProcess(detectedTypes []models.DocType) models.ProcessTag {
	typeSet := make(map[models.DocType]bool, len(detectedTypes))
	for _, t := range detectedTypes {
		typeSet[t] = true
	}

	for _, checklist := range processChecklists {
		overlap := 0
		for _, required := range checklist.required {
			if typeSet[required] {
				overlap++
			}
		}
		threshold := float64(len(checklist.required)) * 0.4
		if threshold < 2 {
			threshold = 2
		}
		if float64(overlap) >= threshold {
			return checklist.process
		}
	}
	return models.ProcessUnknown
}

// requiredDocuments returns the checklist for a process, or nil
func requiredDocuments(process models.ProcessTag) []models.DocType {
	for _, checklist := range processChecklists {
		if checklist.process == process {
			return checklist.required
		}
	}
	return nil
}

// ReviewRequest asks for a batch of DOCX files to be reviewed
type ReviewRequest struct {
	Paths     []string
	OutputDir string
}

// ReviewResult is the outcome of a review run
type ReviewResult struct {
	Report      *models.Report
	OutputFiles []string
	ReportPath  string
}

// ReviewDocuments runs the full pipeline over a batch of documents: analyze
// each, infer the process, attach citations, annotate copies, and write the
// consolidated report
func (s *ReviewService) ReviewDocuments(ctx context.Context, req ReviewRequest) (*ReviewResult, error) {
	if len(req.Paths) == 0 {
		return nil, ErrNoDocuments
	}
	if err := os.MkdirAll(req.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var allTypes []models.DocType
	var allIssues []models.Issue
	var completeness []models.CompletenessAnalysis

	for _, path := range req.Paths {
		log.Printf("Analyzing: %s", filepath.Base(path))
		analysis := s.AnalyzeDocument(path)
		allTypes = append(allTypes, analysis.types...)
		allIssues = append(allIssues, analysis.issues...)
		if len(analysis.completeness.DetectedTypes) > 0 {
			completeness = append(completeness, analysis.completeness)
		}
	}

	process := InferProcess(allTypes)
	log.Printf("Inferred process: %s", process)

	var missing []string
	requiredCount := 0
	if required := requiredDocuments(process); required != nil {
		requiredCount = len(required)
		typeSet := make(map[models.DocType]bool, len(allTypes))
		for _, t := range allTypes {
			typeSet[t] = true
		}
		for _, doc := range required {
			if !typeSet[doc] {
				missing = append(missing, string(doc))
			}
		}
	}

	s.attachCitations(ctx, allIssues)

	var outputFiles []string
	for _, path := range req.Paths {
		name := filepath.Base(path)
		outputPath := filepath.Join(req.OutputDir, "reviewed_"+name)

		var docIssues []models.Issue
		for _, issue := range allIssues {
			if issue.Document == name {
				docIssues = append(docIssues, issue)
			}
		}

		if err := s.annotator.Annotate(path, outputPath, docIssues); err != nil {
			log.Printf("Error annotating document %s: %v", name, err)
			continue
		}
		outputFiles = append(outputFiles, outputPath)
	}

	report := &models.Report{
		Process:           process,
		DocumentsUploaded: len(req.Paths),
		RequiredDocuments: requiredCount,
		MissingDocument:   missing,
		IssuesFound:       allIssues,
		Completeness:      completeness,
	}

	reportPath := filepath.Join(req.OutputDir, "consolidated_report.json")
	if err := WriteReportJSON(report, reportPath); err != nil {
		return nil, err
	}

	return &ReviewResult{
		Report:      report,
		OutputFiles: outputFiles,
		ReportPath:  reportPath,
	}, nil
}

// ReviewSingle reviews one document and places the annotated copy at
// outputPath
func (s *ReviewService) ReviewSingle(ctx context.Context, inputPath, outputPath string) (*models.Report, error) {
	outputDir := filepath.Dir(outputPath)
	result, err := s.ReviewDocuments(ctx, ReviewRequest{
		Paths:     []string{inputPath},
		OutputDir: outputDir,
	})
	if err != nil {
		return nil, err
	}

	if len(result.OutputFiles) > 0 && result.OutputFiles[0] != outputPath {
		if err := os.Rename(result.OutputFiles[0], outputPath); err != nil {
			return nil, fmt.Errorf("failed to move annotated document: %w", err)
		}
	}
	return result.Report, nil
}

// attachCitations asks the citation provider for support on each issue.
// Retrieval failure for one issue degrades that issue's citation to null.
func (s *ReviewService) attachCitations(ctx context.Context, issues []models.Issue) {
	if s.citations == nil {
		return
	}
	log.Printf("Adding ADGM citations to issues...")
	for i := range issues {
		citation, err := s.citations.CitationForIssue(ctx, issues[i].Description)
		if err != nil {
			log.Printf("Error getting citation for issue %q: %v", issues[i].Description, err)
			issues[i].Citation = nil
			continue
		}
		issues[i].Citation = citation
	}
}

// SeverityScore aggregates the severities of a review's issues
func (s *ReviewService) SeverityScore(issues []models.Issue) models.SeverityScore {
	return s.rules.GetSeverityScore(issues)
}

// WriteReportJSON writes the consolidated report with stable formatting.
// HTML escaping is off so legal text round-trips readably.
func WriteReportJSON(report *models.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// MarshalReportJSON renders the consolidated report as a string, with the
// same formatting rules as WriteReportJSON
func MarshalReportJSON(report *models.Report) (string, error) {
	var builder strings.Builder
	enc := json.NewEncoder(&builder)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}
	return strings.TrimRight(builder.String(), "\n"), nil
}

// CreateReviewRequest asks for an asynchronous review of stored documents
type CreateReviewRequest struct {
	InputKeys []string
}

// CreateReviewResult carries the id of the created job
type CreateReviewResult struct {
	JobID uuid.UUID
}

// CreateReview creates a review job and returns immediately; ProcessReview
// does the work in the background
func (s *ReviewService) CreateReview(ctx context.Context, req CreateReviewRequest) (*CreateReviewResult, error) {
	if s.jobRepo == nil {
		return nil, errors.New("review job repository not set")
	}
	if len(req.InputKeys) == 0 {
		return nil, ErrNoDocuments
	}

	job := &models.ReviewJob{
		ID:        uuid.New(),
		Status:    models.JobStatusPending,
		Steps:     initializeReviewSteps(req.InputKeys),
		InputKeys: req.InputKeys,
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, ErrJobCreationFailed
	}

	return &CreateReviewResult{JobID: job.ID}, nil
}

// GetJobStatus retrieves a review job
func (s *ReviewService) GetJobStatus(ctx context.Context, jobID uuid.UUID) (*models.ReviewJob, error) {
	if s.jobRepo == nil {
		return nil, errors.New("review job repository not set")
	}
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// initializeReviewSteps builds the step list shown while a job runs
func initializeReviewSteps(inputKeys []string) models.ReviewSteps {
	steps := make(models.ReviewSteps, 0, len(inputKeys)+2)
	for _, key := range inputKeys {
		steps = append(steps, models.ReviewStep{
			Name:   "Reviewing " + displayName(key),
			Status: "pending",
		})
	}
	steps = append(steps, models.ReviewStep{Name: "Annotating Documents", Status: "pending"})
	steps = append(steps, models.ReviewStep{Name: "Consolidating Report", Status: "pending"})
	return steps
}

// displayName strips the storage shard and file id from a key
func displayName(key string) string {
	base := filepath.Base(key)
	if idx := strings.Index(base, "_"); idx >= 0 && idx < len(base)-1 {
		return base[idx+1:]
	}
	return base
}

// ProcessReview performs the review work for a job in the background:
// download inputs, run the pipeline, upload artifacts, store the report
func (s *ReviewService) ProcessReview(ctx context.Context, jobID uuid.UUID) error {
	if s.jobRepo == nil {
		return errors.New("review job repository not set")
	}
	if s.store == nil {
		return errors.New("storage not set")
	}

	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load review job: %w", err)
	}

	if err := s.jobRepo.UpdateStatus(ctx, jobID, models.JobStatusInProgress); err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	workDir, err := os.MkdirTemp("", "review-"+jobID.String())
	if err != nil {
		s.markJobFailed(ctx, jobID, "failed to create work directory: "+err.Error())
		return err
	}
	defer os.RemoveAll(workDir)

	// 1. Fetch inputs from storage
	var inputPaths []string
	for _, key := range job.InputKeys {
		stepName := "Reviewing " + displayName(key)
		if err := s.updateStepStatus(ctx, jobID, stepName, "in_progress"); err != nil {
			s.markJobFailed(ctx, jobID, "failed to update step: "+err.Error())
			return err
		}

		path, err := s.fetchInput(ctx, workDir, key)
		if err != nil {
			s.markJobFailed(ctx, jobID, fmt.Sprintf("failed to fetch %s: %v", displayName(key), err))
			return err
		}
		inputPaths = append(inputPaths, path)

		if err := s.updateStepStatus(ctx, jobID, stepName, "completed"); err != nil {
			s.markJobFailed(ctx, jobID, "failed to update step: "+err.Error())
			return err
		}
	}

	// 2. Run the pipeline
	if err := s.updateStepStatus(ctx, jobID, "Annotating Documents", "in_progress"); err != nil {
		s.markJobFailed(ctx, jobID, "failed to update step: "+err.Error())
		return err
	}

	result, err := s.ReviewDocuments(ctx, ReviewRequest{
		Paths:     inputPaths,
		OutputDir: filepath.Join(workDir, "out"),
	})
	if err != nil {
		s.markJobFailed(ctx, jobID, "review failed: "+err.Error())
		return err
	}

	if err := s.updateStepStatus(ctx, jobID, "Annotating Documents", "completed"); err != nil {
		s.markJobFailed(ctx, jobID, "failed to update step: "+err.Error())
		return err
	}

	// 3. Upload artifacts and store the report
	if err := s.updateStepStatus(ctx, jobID, "Consolidating Report", "in_progress"); err != nil {
		s.markJobFailed(ctx, jobID, "failed to update step: "+err.Error())
		return err
	}

	outputKeys := make(models.StringList, 0, len(result.OutputFiles)+1)
	for _, path := range append(result.OutputFiles, result.ReportPath) {
		key, err := s.uploadArtifact(ctx, path)
		if err != nil {
			s.markJobFailed(ctx, jobID, fmt.Sprintf("failed to store %s: %v", filepath.Base(path), err))
			return err
		}
		outputKeys = append(outputKeys, key)
	}

	reportJSON, err := MarshalReportJSON(result.Report)
	if err != nil {
		s.markJobFailed(ctx, jobID, "failed to marshal report: "+err.Error())
		return err
	}

	if err := s.updateStepStatus(ctx, jobID, "Consolidating Report", "completed"); err != nil {
		s.markJobFailed(ctx, jobID, "failed to update step: "+err.Error())
		return err
	}

	if err := s.jobRepo.Complete(ctx, jobID, reportJSON, outputKeys); err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}
	return nil
}

func (s *ReviewService) fetchInput(ctx context.Context, workDir, key string) (string, error) {
	body, err := s.store.Download(ctx, key)
	if err != nil {
		return "", err
	}
	defer body.Close()

	path := filepath.Join(workDir, displayName(key))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return "", err
	}
	return path, nil
}

func (s *ReviewService) uploadArtifact(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return s.store.Upload(ctx, uuid.New(), filepath.Base(path), f)
}

// updateStepStatus updates one named step in the job's step list
func (s *ReviewService) updateStepStatus(ctx context.Context, jobID uuid.UUID, stepName, status string) error {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	steps := job.Steps
	var currentStep string
	if job.CurrentStep != nil {
		currentStep = *job.CurrentStep
	}

	for i := range steps {
		if steps[i].Name == stepName {
			steps[i].Status = status
			if status == "in_progress" {
				currentStep = stepName
			}
			break
		}
	}

	return s.jobRepo.UpdateProgress(ctx, jobID, currentStep, steps)
}

// markJobFailed marks a job as failed with an error message
func (s *ReviewService) markJobFailed(ctx context.Context, jobID uuid.UUID, errorMessage string) {
	if err := s.jobRepo.Fail(ctx, jobID, errorMessage); err != nil {
		log.Printf("Error marking job %s failed: %v", jobID, err)
	}
}
