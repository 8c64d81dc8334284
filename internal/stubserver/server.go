package stubserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"messaging-sync/internal/observability"
)

// Server is a local stand-in for the marketplace messaging backend. It
// implements exactly the REST contract the sync manager consumes, plus an
// upload endpoint mirroring the object-storage response shape.
type Server struct {
	store Store
}

// NewServer builds a stub backend over the given store.
func NewServer(store Store) *Server {
	return &Server{store: store}
}

// Router assembles the gin engine.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api", identify)
	api.GET("/messages/conversations", s.listConversations)
	api.GET("/messages/conversation/:user_id", s.listThread)
	api.POST("/messages/", s.createMessage)
	api.POST("/messages/init/:user_id", s.initConversation)
	api.POST("/uploads", s.upload)

	return router
}

// identify reads the caller id from the X-User-Id header, the stub's
// replacement for the session cookie.
func identify(c *gin.Context) {
	id, err := strconv.Atoi(c.GetHeader("X-User-Id"))
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid X-User-Id"})
		return
	}
	c.Set("userID", id)
	c.Next()
}

func conversationJSON(summary ConversationSummary) gin.H {
	return gin.H{
		"id": summary.Partner.ID,
		"artisan": gin.H{
			"id":     summary.Partner.ID,
			"name":   summary.Partner.Name,
			"avatar": summary.Partner.Avatar,
			"online": false,
		},
		"lastMessage":     summary.Last.Text,
		"lastMessageTime": formatTimestamp(summary.Last.CreatedAt),
		"timestamp":       formatTimestamp(summary.Last.CreatedAt),
		"unread":          summary.Unread,
	}
}

func messageJSON(msg StoredMessage, userID int) gin.H {
	sender := "artisan"
	if msg.SenderID == userID {
		sender = "buyer"
	}
	return gin.H{
		"id":              msg.ID,
		"sender":          sender,
		"text":            msg.Text,
		"time":            msg.CreatedAt.Format("15:04"),
		"timestamp":       formatTimestamp(msg.CreatedAt),
		"message_type":    msg.MessageType,
		"attachment_url":  msg.MediaURL,
		"attachment_name": msg.AttachmentName,
		"status":          msg.Status,
		"is_read":         msg.IsRead,
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func (s *Server) listConversations(c *gin.Context) {
	userID := c.GetInt("userID")

	summaries, err := s.store.ListConversations(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}

	out := make([]gin.H, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, conversationJSON(summary))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) listThread(c *gin.Context) {
	partnerID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	userID := c.GetInt("userID")

	msgs, err := s.store.ListThread(c.Request.Context(), userID, partnerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}

	out := make([]gin.H, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, messageJSON(msg, userID))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createMessage(c *gin.Context) {
	userID := c.GetInt("userID")

	var req struct {
		ReceiverID     int    `json:"receiver_id"`
		Message        string `json:"message"`
		MessageType    string `json:"message_type"`
		AttachmentURL  string `json:"attachment_url"`
		AttachmentName string `json:"attachment_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.ReceiverID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receiver_id is required"})
		return
	}
	text := strings.TrimSpace(req.Message)
	if text == "" && req.AttachmentURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either message text or attachment is required"})
		return
	}
	if text == "" {
		text = "Sent attachment"
	}
	msgType := req.MessageType
	if msgType == "" {
		msgType = "text"
	}

	msg, err := s.store.CreateMessage(c.Request.Context(), StoredMessage{
		SenderID:       userID,
		ReceiverID:     req.ReceiverID,
		Text:           text,
		MessageType:    msgType,
		MediaURL:       req.AttachmentURL,
		AttachmentName: req.AttachmentName,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create message"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Message created successfully",
		"message_data": gin.H{
			"id":          msg.ID,
			"sender_id":   msg.SenderID,
			"receiver_id": msg.ReceiverID,
			"message":     msg.Text,
			"media_url":   msg.MediaURL,
			"status":      msg.Status,
		},
	})
}

func (s *Server) initConversation(c *gin.Context) {
	partnerID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	userID := c.GetInt("userID")
	if partnerID == userID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot start a conversation with yourself"})
		return
	}

	partner, err := s.store.GetUser(c.Request.Context(), partnerID)
	if err != nil {
		if err == ErrUserNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}

	summary := ConversationSummary{Partner: partner}
	summaries, err := s.store.ListConversations(c.Request.Context(), userID)
	if err == nil {
		for _, existing := range summaries {
			if existing.Partner.ID == partnerID {
				summary = existing
				break
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{"conversation": conversationJSON(summary)})
}

// upload accepts a multipart file and answers with a fake hosted URL in the
// object-storage response shape.
func (s *Server) upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"secure_url": "http://localhost/uploads/" + uuid.NewString() + "-" + file.Filename,
	})
}
