package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"taskhub/internal/service"
)

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Role        string `json:"role"`
	AdminSecret string `json:"admin_secret"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type updateUserRequest struct {
	Username    *string `json:"username"`
	Password    *string `json:"password"`
	Role        *string `json:"role"`
	AdminSecret string  `json:"admin_secret"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}

	user, err := h.users.Register(c.Request.Context(), service.RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		Role:        req.Role,
		AdminSecret: req.AdminSecret,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, userToResponse(*user))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	token, expiresAt, err := h.tokens.Issue(*user)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.setSessionCookie(c, token, expiresAt)

	h.logger.WithFields(logrus.Fields{
		"op":      "user.login",
		"user_id": user.ID,
	}).Info("user logged in")
	c.JSON(http.StatusOK, gin.H{"message": "Login successful"})
}

// logout only clears the cookie; tokens already issued stay valid until expiry.
func (h *Handler) logout(c *gin.Context) {
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logout successful"})
}

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.List(c.Request.Context(), mustCaller(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]UserSummaryResponse, len(users))
	for i := range users {
		resp[i] = UserSummaryResponse{ID: users[i].ID, Username: users[i].Username}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) me(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), mustCaller(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) updateUser(c *gin.Context) {
	id, ok := parseID(c, "user")
	if !ok {
		return
	}

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	user, err := h.users.Update(c.Request.Context(), mustCaller(c), id, service.UpdateUserInput{
		Username:    req.Username,
		Password:    req.Password,
		Role:        req.Role,
		AdminSecret: req.AdminSecret,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, userToResponse(*user))
}

func (h *Handler) deleteUser(c *gin.Context) {
	id, ok := parseID(c, "user")
	if !ok {
		return
	}

	caller := mustCaller(c)
	if err := h.users.Delete(c.Request.Context(), caller, id); err != nil {
		h.writeError(c, err)
		return
	}
	if caller.UserID == id {
		h.clearSessionCookie(c)
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
