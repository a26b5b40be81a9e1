package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) exportTasks(c *gin.Context) {
	export, err := h.exports.ExportTasks(c.Request.Context(), mustCaller(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, exportToResponse(*export))
}

func (h *Handler) listExports(c *gin.Context) {
	objects, err := h.exports.ListExports(c.Request.Context(), mustCaller(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, resp)
}
