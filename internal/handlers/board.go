package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/studyhub/internal/services"
	"github.com/huangang/studyhub/pkg/response"
)

type BoardHandler struct {
	board *services.BoardService
}

func NewBoardHandler(board *services.BoardService) *BoardHandler {
	return &BoardHandler{board: board}
}

// postParams reads :studyId and :postId.
func postParams(c *gin.Context) (studyID, postID uint, ok bool) {
	if studyID, ok = idParam(c, "studyId"); !ok {
		return
	}
	postID, ok = idParam(c, "postId")
	return
}

// GET /api/room/:studyId/board
func (h *BoardHandler) List(c *gin.Context) {
	studyID, ok := idParam(c, "studyId")
	if !ok {
		return
	}
	list, err := h.board.List(studyID, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, list)
}

// POST /api/room/:studyId/board
func (h *BoardHandler) Create(c *gin.Context) {
	studyID, ok := idParam(c, "studyId")
	if !ok {
		return
	}
	var req services.PostInput
	if !bindJSON(c, &req) {
		return
	}
	post, err := h.board.Create(studyID, currentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, post)
}

// GET /api/room/:studyId/board/:postId
func (h *BoardHandler) Get(c *gin.Context) {
	studyID, postID, ok := postParams(c)
	if !ok {
		return
	}
	detail, err := h.board.Get(studyID, postID, currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, detail)
}

// PUT /api/room/:studyId/board/:postId
func (h *BoardHandler) Update(c *gin.Context) {
	studyID, postID, ok := postParams(c)
	if !ok {
		return
	}
	var req services.PostInput
	if !bindJSON(c, &req) {
		return
	}
	post, err := h.board.Update(studyID, postID, currentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, post)
}

// POST /api/room/:studyId/board/:postId/delete
func (h *BoardHandler) Delete(c *gin.Context) {
	studyID, postID, ok := postParams(c)
	if !ok {
		return
	}
	if err := h.board.Delete(studyID, postID, currentUser(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": postID})
}

// POST /api/room/:studyId/board/:postId/comments
func (h *BoardHandler) AddComment(c *gin.Context) {
	studyID, postID, ok := postParams(c)
	if !ok {
		return
	}
	var req services.CommentInput
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.board.AddComment(studyID, postID, currentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, comment)
}

// PUT /api/room/:studyId/board/:postId/comments/:commentId
func (h *BoardHandler) UpdateComment(c *gin.Context) {
	studyID, postID, ok := postParams(c)
	if !ok {
		return
	}
	commentID, ok := idParam(c, "commentId")
	if !ok {
		return
	}
	var req services.CommentInput
	if !bindJSON(c, &req) {
		return
	}
	comment, err := h.board.UpdateComment(studyID, postID, commentID, currentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, comment)
}

// POST /api/room/:studyId/board/:postId/comments/:commentId/delete
func (h *BoardHandler) DeleteComment(c *gin.Context) {
	studyID, postID, ok := postParams(c)
	if !ok {
		return
	}
	commentID, ok := idParam(c, "commentId")
	if !ok {
		return
	}
	if err := h.board.DeleteComment(studyID, postID, commentID, currentUser(c)); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": commentID})
}
