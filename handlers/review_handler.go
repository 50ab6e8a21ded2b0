package handlers

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"adgm-review-backend/models"
	"adgm-review-backend/service"
	"adgm-review-backend/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ReviewHandler handles HTTP requests for document reviews
type ReviewHandler struct {
	reviewService *service.ReviewService
	storage       storage.Storage
	maxFileSize   int64
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(reviewService *service.ReviewService, store storage.Storage) *ReviewHandler {
	return &ReviewHandler{
		reviewService: reviewService,
		storage:       store,
		maxFileSize:   10 * 1024 * 1024, // 10MB
	}
}

// CreateReview handles POST /api/reviews. Documents arrive as a multipart
// form under the "files" field; a review job is created and processed in the
// background.
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": err.Error(),
			},
		})
		return
	}

	fileHeaders := form.File["files"]
	if len(fileHeaders) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_FILES",
				"message": "At least one DOCX file is required under the 'files' field",
			},
		})
		return
	}

	var inputKeys []string
	for _, fileHeader := range fileHeaders {
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".docx") {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_FILE_TYPE",
					"message": fmt.Sprintf("File %s is not a DOCX document", fileHeader.Filename),
				},
			})
			return
		}
		if fileHeader.Size > h.maxFileSize {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FILE_TOO_LARGE",
					"message": fmt.Sprintf("File size exceeds maximum of %d bytes", h.maxFileSize),
				},
			})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FILE_OPEN_ERROR",
					"message": err.Error(),
				},
			})
			return
		}

		key, err := h.storage.Upload(c.Request.Context(), uuid.New(), fileHeader.Filename, file)
		file.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UPLOAD_FAILED",
					"message": fmt.Sprintf("Failed to store file: %v", err),
				},
			})
			return
		}
		inputKeys = append(inputKeys, key)
	}

	result, err := h.reviewService.CreateReview(c.Request.Context(), service.CreateReviewRequest{
		InputKeys: inputKeys,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CREATE_FAILED",
				"message": err.Error(),
			},
		})
		return
	}

	// Spawn background goroutine for actual processing
	// Use background context (not request context) to avoid cancellation
	go func() {
		bgCtx := context.Background()
		if err := h.reviewService.ProcessReview(bgCtx, result.JobID); err != nil {
			// Error is stored in job.ErrorMessage; clients poll status
			log.Printf("Review job %s failed: %v", result.JobID, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"data": gin.H{
			"job_id":  result.JobID,
			"status":  "pending",
			"message": "Review job created. Poll /api/jobs/:id for updates.",
		},
	})
}

// GetJobStatus handles GET /api/jobs/:id
func (h *ReviewHandler) GetJobStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid job ID format",
			},
		})
		return
	}

	job, err := h.reviewService.GetJobStatus(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Review job not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    job,
	})
}

// GetReport handles GET /api/reviews/:id/report. The consolidated report is
// only available once the job has completed.
func (h *ReviewHandler) GetReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid job ID format",
			},
		})
		return
	}

	job, err := h.reviewService.GetJobStatus(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Review job not found",
			},
		})
		return
	}

	if job.Status != models.JobStatusCompleted || job.ReportJSON == nil {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "REPORT_NOT_READY",
				"message": fmt.Sprintf("Review job is %s; report is available once completed", job.Status),
			},
		})
		return
	}

	c.Data(http.StatusOK, "application/json", []byte(*job.ReportJSON))
}

// DownloadArtifact handles GET /api/reviews/:id/files/:index. It streams one
// output artifact (an annotated DOCX or the report file) by its position in
// the job's output list.
func (h *ReviewHandler) DownloadArtifact(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_ID",
				"message": "Invalid job ID format",
			},
		})
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_INDEX",
				"message": "Invalid artifact index",
			},
		})
		return
	}

	job, err := h.reviewService.GetJobStatus(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "Review job not found",
			},
		})
		return
	}

	if index >= len(job.OutputKeys) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "NOT_FOUND",
				"message": "No artifact at that index",
			},
		})
		return
	}

	key := job.OutputKeys[index]
	reader, err := h.storage.Download(c.Request.Context(), key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DOWNLOAD_FAILED",
				"message": fmt.Sprintf("Failed to download artifact: %v", err),
			},
		})
		return
	}
	defer reader.Close()

	filename := filepath.Base(key)
	if idx := strings.Index(filename, "_"); idx >= 0 && idx < len(filename)-1 {
		filename = filename[idx+1:]
	}

	contentType := "application/octet-stream"
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".docx":
		contentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case ".json":
		contentType = "application/json"
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", filename))
	c.DataFromReader(http.StatusOK, -1, contentType, reader, nil)
}
