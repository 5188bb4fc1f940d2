package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/wha7/wha7/internal/utils"
	"github.com/wha7/wha7/pkg/pipeline"
	"github.com/wha7/wha7/pkg/types"
)

// MessageProcessor runs one inbound message through the pipeline.
type MessageProcessor interface {
	Process(ctx context.Context, msg types.InboundMessage) (*pipeline.Result, error)
}

const (
	// maxImages bounds the images of one request, uploaded or by URL.
	maxImages = 10

	// formOverhead covers multipart headers and text fields.
	formOverhead = 1 << 20

	maxJSONBody = 64 << 10
)

type Handler struct {
	processor MessageProcessor
	maxUpload int64
	log       *zap.Logger
}

type searchRequest struct {
	Sender    string   `json:"sender" binding:"required"`
	ImageURLs []string `json:"image_urls"`
	Text      string   `json:"text"`
}

type searchResponse struct {
	ID      string            `json:"id"`
	Gender  types.Gender      `json:"gender,omitempty"`
	Images  int               `json:"images"`
	Items   []types.Candidate `json:"items"`
	Replies []string          `json:"replies"`
}

func NewHandler(processor MessageProcessor, maxUpload int64, log *zap.Logger) *Handler {
	return &Handler{processor: processor, maxUpload: maxUpload, log: log}
}

// Search accepts either a JSON body with image URLs or a multipart form with
// "sender" and one or more "images" files.
func (h *Handler) Search(c *gin.Context) {
	var (
		msg types.InboundMessage
		ok  bool
	)
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		msg, ok = h.bindMultipart(c)
	} else {
		msg, ok = h.bindJSON(c)
	}
	if !ok {
		return
	}

	res, err := h.processor.Process(c.Request.Context(), msg)
	if err != nil {
		if errors.Is(err, pipeline.ErrNoImages) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No images provided"})
			return
		}
		h.log.Error("Failed to process message", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process message"})
		return
	}

	c.JSON(http.StatusOK, searchResponse{
		ID:      res.ID,
		Gender:  res.Gender,
		Images:  res.Images,
		Items:   res.Candidates,
		Replies: pipeline.FormatReply(res),
	})
}

func (h *Handler) bindJSON(c *gin.Context) (types.InboundMessage, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxJSONBody)

	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if tooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return types.InboundMessage{}, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return types.InboundMessage{}, false
	}
	if len(req.ImageURLs) > maxImages {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many images"})
		return types.InboundMessage{}, false
	}

	msg := types.InboundMessage{Sender: req.Sender, Text: req.Text}
	for _, u := range req.ImageURLs {
		msg.Images = append(msg.Images, types.ImageRef{URL: u})
	}
	return msg, true
}

func (h *Handler) bindMultipart(c *gin.Context) (types.InboundMessage, bool) {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload*maxImages+formOverhead)
	}
	form, err := c.MultipartForm()
	if err != nil {
		if tooLarge(err) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return types.InboundMessage{}, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return types.InboundMessage{}, false
	}
	if len(form.File["images"]) > maxImages {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Too many images"})
		return types.InboundMessage{}, false
	}

	msg := types.InboundMessage{Sender: c.PostForm("sender"), Text: c.PostForm("text")}
	if msg.Sender == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Sender is required"})
		return types.InboundMessage{}, false
	}

	for _, file := range form.File["images"] {
		if h.maxUpload > 0 && file.Size > h.maxUpload {
			c.JSON(http.StatusBadRequest, gin.H{"error": "File too large"})
			return types.InboundMessage{}, false
		}
		if !utils.IsImageFile(file.Filename) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file format. Only JPG, PNG, GIF, WEBP allowed"})
			return types.InboundMessage{}, false
		}

		f, err := file.Open()
		if err != nil {
			h.log.Error("Failed to open file", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process file"})
			return types.InboundMessage{}, false
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			h.log.Error("Failed to read file", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
			return types.InboundMessage{}, false
		}

		contentType := file.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = utils.ContentTypeFor(file.Filename)
		}
		msg.Images = append(msg.Images, types.ImageRef{Data: data, ContentType: contentType, Name: file.Filename})
	}
	return msg, true
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}
