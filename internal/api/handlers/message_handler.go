package handlers

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/yoockh/convopilot/internal/models"
	"github.com/yoockh/convopilot/internal/services"
	"github.com/yoockh/convopilot/internal/utils"
)

const maxAnalysisBody = 1 << 20

type MessageHandler struct {
	svc services.MessageService
}

func NewMessageHandler(svc services.MessageService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

type AppendMessageRequest struct {
	Content     string             `json:"content" binding:"required"`
	MessageType models.MessageType `json:"message_type"`
}

type AnalysisRequest struct {
	DetectedErrors  []models.DetectedError `json:"detected_errors"`
	Corrections     []models.Correction    `json:"corrections"`
	ComplexityScore int                    `json:"complexity_score" binding:"required,gte=1,lte=10"`
	Suggestions     []string               `json:"suggestions"`
}

func (h *MessageHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "MessageHandler.List", "limit", 0)
	if !ok {
		return
	}

	rows, err := h.svc.List(c.Request.Context(), userID, c.Param("id"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *MessageHandler) Append(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req AppendMessageRequest
	if !bindJSON(c, "MessageHandler.Append", &req) {
		return
	}

	m, err := h.svc.Append(c.Request.Context(), userID, c.Param("id"), services.AppendMessageInput{
		Content:     req.Content,
		MessageType: req.MessageType,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *MessageHandler) AppendVoice(c *gin.Context) {
	const op = "MessageHandler.AppendVoice"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "missing multipart field 'file'", err))
		return
	}
	if fh.Size <= 0 || fh.Size > services.MaxVoiceBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "audio too large (max 10MB)", nil))
		return
	}

	file, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to open upload", err))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(io.LimitReader(file, services.MaxVoiceBytes+1))
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to read upload", err))
		return
	}

	ct := audioContentType(fh.Header.Get("Content-Type"), audio)
	if ct == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "unsupported audio format", nil))
		return
	}

	m, err := h.svc.AppendVoice(c.Request.Context(), userID, c.Param("id"), audio, ct)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// audioContentType trusts the declared part type when it names audio and
// otherwise sniffs the first bytes.
func audioContentType(declared string, head []byte) string {
	if mt, _, err := mime.ParseMediaType(declared); err == nil && isAudio(mt) {
		return mt
	}
	if len(head) > 512 {
		head = head[:512]
	}
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(head))
	if isAudio(sniffed) {
		return sniffed
	}
	return ""
}

func isAudio(mt string) bool {
	return strings.HasPrefix(mt, "audio/") || mt == "video/webm" || mt == "application/ogg"
}

// Analysis stores a client-provided analysis, or asks the model when the
// body is empty.
func (h *MessageHandler) Analysis(c *gin.Context) {
	const op = "MessageHandler.Analysis"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxAnalysisBody))
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "failed to read body", err))
		return
	}

	messageID := c.Param("id")
	if len(bytes.TrimSpace(body)) == 0 {
		m, err := h.svc.Analyze(c.Request.Context(), userID, messageID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
		return
	}

	var req AnalysisRequest
	if err := binding.JSON.BindBody(body, &req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "invalid request body", err))
		return
	}

	m, err := h.svc.RecordAnalysis(c.Request.Context(), userID, messageID, models.MessageAnalysis{
		DetectedErrors:  req.DetectedErrors,
		Corrections:     req.Corrections,
		ComplexityScore: req.ComplexityScore,
		Suggestions:     req.Suggestions,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *MessageHandler) Audio(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	url, err := h.svc.VoiceURL(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}
