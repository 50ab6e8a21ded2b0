package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"adgm-review-backend/gemini"
	"adgm-review-backend/service"

	"github.com/joho/godotenv"
)

// Reviews DOCX files from the command line without the HTTP server:
//
//	go run ./cmd/review <output_dir> <document.docx> [more.docx...]
func main() {
	if err := godotenv.Load(); err != nil {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Printf("Warning: No .env file found, using environment variables")
		}
	}

	if len(os.Args) < 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <output_dir> <document.docx> [more.docx...]\n", os.Args[0])
		os.Exit(1)
	}
	outputDir := os.Args[1]
	paths := os.Args[2:]

	ctx := context.Background()

	var opts []service.ReviewServiceOption
	if citations := initCitations(ctx); citations != nil {
		opts = append(opts, service.ReviewWithCitations(citations))
	}
	reviewService := service.NewReviewService(opts...)

	result, err := reviewService.ReviewDocuments(ctx, service.ReviewRequest{
		Paths:     paths,
		OutputDir: outputDir,
	})
	if err != nil {
		log.Fatalf("Review failed: %v", err)
	}

	report := result.Report
	score := reviewService.SeverityScore(report.IssuesFound)

	fmt.Printf("\nProcess: %s\n", report.Process)
	fmt.Printf("Documents uploaded: %d / %d required\n", report.DocumentsUploaded, report.RequiredDocuments)
	for _, missing := range report.MissingDocument {
		fmt.Printf("  Missing: %s\n", missing)
	}
	fmt.Printf("Issues found: %d (priority: %s)\n", len(report.IssuesFound), score.Priority)
	for _, issue := range report.IssuesFound {
		fmt.Printf("  [%s] %s (%s, %s)\n", issue.Severity, issue.Description, issue.Document, issue.Section)
	}

	fmt.Printf("\nAnnotated copies:\n")
	for _, path := range result.OutputFiles {
		fmt.Printf("  %s\n", path)
	}
	fmt.Printf("Report: %s\n", result.ReportPath)
}

func initCitations(ctx context.Context) service.CitationProvider {
	client, err := gemini.NewClient(ctx)
	if err != nil {
		log.Printf("Warning: Gemini unavailable, reviewing without citations: %v", err)
		return nil
	}

	indexPath := os.Getenv("ADGM_INDEX_PATH")
	if indexPath == "" {
		indexPath = "./data/adgm.index"
	}
	metaPath := os.Getenv("ADGM_META_PATH")
	if metaPath == "" {
		metaPath = "./data/adgm_meta.json"
	}

	citations, err := service.NewFileCitationService(indexPath, metaPath, client, client)
	if err != nil {
		if errors.Is(err, service.ErrIndexUnavailable) {
			log.Printf("Warning: Citation index not found at %s, reviewing without citations", indexPath)
		} else {
			log.Printf("Warning: Failed to load citation index: %v", err)
		}
		return nil
	}
	return citations
}
