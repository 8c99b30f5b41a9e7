package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Parley/internal/app"
	"github.com/dkeye/Parley/internal/core"
	"github.com/dkeye/Parley/internal/domain"
)

// registerAPI mounts the CRUD plumbing around the relay core. Persistence
// goes through the core.Store collaborator; a chat event is fanned out only
// after its message is durably stored, so every live event corresponds to
// fetchable history.
func registerAPI(api *gin.RouterGroup, d Deps) {
	api.GET("/users", func(c *gin.Context) {
		users, err := d.Store.ListUsers(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
			return
		}
		c.JSON(http.StatusOK, users)
	})

	api.POST("/users", func(c *gin.Context) {
		var req struct {
			Username     string `json:"username"`
			Email        string `json:"email"`
			PasswordHash string `json:"passwordHash"`
		}
		if err := c.BindJSON(&req); err != nil || req.Username == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user"})
			return
		}
		u, err := d.Store.CreateUser(c.Request.Context(), req.Username, req.Email, req.PasswordHash)
		if err != nil {
			if errors.Is(err, core.ErrUsernameTaken) {
				c.JSON(http.StatusConflict, gin.H{"error": "username taken"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"id": u.ID, "username": u.Username})
	})

	api.GET("/friends/:userId", func(c *gin.Context) {
		friends, err := d.Store.Friends(c.Request.Context(), domain.UserID(c.Param("userId")))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
			return
		}
		c.JSON(http.StatusOK, friends)
	})

	api.POST("/friends", func(c *gin.Context) {
		var req struct {
			UserID         domain.UserID `json:"userId"`
			FriendUsername string        `json:"friendUsername"`
		}
		if err := c.BindJSON(&req); err != nil || req.UserID == "" || req.FriendUsername == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := d.Store.AddFriend(c.Request.Context(), req.UserID, req.FriendUsername); err != nil {
			if errors.Is(err, core.ErrUserNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
			return
		}
		c.Status(http.StatusCreated)
	})

	api.GET("/messages/:userA/:userB", func(c *gin.Context) {
		history, err := d.Store.FetchHistory(c.Request.Context(),
			domain.UserID(c.Param("userA")), domain.UserID(c.Param("userB")))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
			return
		}
		c.JSON(http.StatusOK, history)
	})

	api.POST("/messages", func(c *gin.Context) {
		var req struct {
			SenderID   domain.UserID `json:"senderId"`
			ReceiverID domain.UserID `json:"receiverId"`
			Content    string        `json:"content"`
		}
		if err := c.BindJSON(&req); err != nil || req.SenderID == "" || req.ReceiverID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message"})
			return
		}
		msg, err := d.Store.PersistMessage(c.Request.Context(), req.SenderID, req.ReceiverID, req.Content)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store error"})
			return
		}
		d.Fanout.Publish(msg.SenderID, msg.ReceiverID, app.EventNewMessage, msg)
		c.JSON(http.StatusCreated, gin.H{"id": msg.ID, "created_at": msg.CreatedAt})
	})

	api.PUT("/messages/:id", func(c *gin.Context) {
		var req struct {
			Content string `json:"content"`
		}
		if err := c.BindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message"})
			return
		}
		msg, err := d.Store.UpdateMessage(c.Request.Context(), domain.MessageID(c.Param("id")), req.Content)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		d.Fanout.Publish(msg.SenderID, msg.ReceiverID, app.EventMessageUpdated, msg)
		c.JSON(http.StatusOK, msg)
	})

	api.DELETE("/messages/:id", func(c *gin.Context) {
		msg, err := d.Store.DeleteMessage(c.Request.Context(), domain.MessageID(c.Param("id")))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
			return
		}
		d.Fanout.Publish(msg.SenderID, msg.ReceiverID, app.EventMessageDeleted, msg)
		c.Status(http.StatusNoContent)
	})
}
