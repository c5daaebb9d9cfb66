package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cginside/hobi/internal/knowledge"
)

type DocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// documentID derives the index key from a title, mirroring how uploads are
// named: titles without a text extension get .md appended.
func documentID(title string) string {
	if strings.HasSuffix(title, ".md") || strings.HasSuffix(title, ".txt") {
		return title
	}
	return title + ".md"
}

func (h *Handler) HandleListDocuments(c *gin.Context) {
	docs, err := h.Documents.ListDocuments(c.Request.Context())
	if err != nil {
		h.Logger.WithError(err).Error("문서 목록 조회 실패")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "문서 목록 조회에 실패했습니다."})
		return
	}

	total := 0
	files := make([]gin.H, 0, len(docs))
	for _, doc := range docs {
		count, err := h.Documents.CountChunks(c.Request.Context(), doc.ID)
		if err != nil {
			h.Logger.WithError(err).Error("청크 수 조회 실패")
			c.JSON(http.StatusInternalServerError, gin.H{"detail": "문서 목록 조회에 실패했습니다."})
			return
		}
		total += count
		files = append(files, gin.H{"filename": doc.ID, "chunk_count": count})
	}
	c.JSON(http.StatusOK, gin.H{"total_chunks": total, "files": files})
}

func (h *Handler) HandleGetDocument(c *gin.Context) {
	doc, err := h.Documents.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "문서를 찾을 수 없습니다."})
		return
	}
	c.JSON(http.StatusOK, gin.H{"filename": doc.ID, "content": doc.Content})
}

func (h *Handler) HandleCreateDocument(c *gin.Context) {
	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "title과 content가 필요합니다."})
		return
	}

	id := documentID(req.Title)
	if _, err := h.Documents.GetDocument(c.Request.Context(), id); err == nil {
		c.JSON(http.StatusConflict, gin.H{"detail": "같은 이름의 문서가 이미 존재합니다."})
		return
	}

	count, ok := h.storeAndIndex(c, id, req.Content)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"filename":     id,
		"message":      fmt.Sprintf("문서가 생성되었습니다. (%d개 청크)", count),
		"auto_rebuilt": true,
	})
}

func (h *Handler) HandleUpdateDocument(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.Documents.GetDocument(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "문서를 찾을 수 없습니다."})
		return
	}

	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "잘못된 요청 본문입니다."})
		return
	}

	count, ok := h.storeAndIndex(c, id, req.Content)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"filename":     id,
		"message":      fmt.Sprintf("문서가 수정되었습니다. (%d개 청크)", count),
		"auto_rebuilt": true,
	})
}

// storeAndIndex persists the document row and rebuilds its chunk index.
// An indexing failure leaves the previous index intact, so it is surfaced
// to the caller instead of being swallowed.
func (h *Handler) storeAndIndex(c *gin.Context, id, content string) (int, bool) {
	doc := knowledge.Document{ID: id, Title: id, Content: content}
	if err := h.Documents.UpsertDocument(c.Request.Context(), doc); err != nil {
		h.Logger.WithError(err).Error("문서 저장 실패")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "문서 저장에 실패했습니다."})
		return 0, false
	}
	count, err := h.Indexer.EmbedAndStoreDocument(c.Request.Context(), id, id, content)
	if err != nil {
		h.Logger.WithError(err).Error("문서 인덱싱 실패")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("문서 인덱싱에 실패했습니다: %v", err)})
		return 0, false
	}
	return count, true
}

func (h *Handler) HandleDeleteDocument(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.Documents.GetDocument(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"detail": "문서를 찾을 수 없습니다."})
		return
	}
	if err := h.Documents.DeleteDocument(c.Request.Context(), id); err != nil {
		h.Logger.WithError(err).Error("문서 삭제 실패")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "문서 삭제에 실패했습니다."})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"filename":     id,
		"message":      "문서가 삭제되었습니다.",
		"auto_rebuilt": true,
	})
}

// HandleReindex re-embeds every stored document. A single failing document
// aborts the rebuild.
func (h *Handler) HandleReindex(c *gin.Context) {
	total, err := h.Indexer.RebuildAll(c.Request.Context())
	if err != nil {
		h.Logger.WithError(err).Error("재인덱싱 실패")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": fmt.Sprintf("재인덱싱에 실패했습니다: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_chunks": total,
		"message":      fmt.Sprintf("재인덱싱이 완료되었습니다. (%d개 청크)", total),
	})
}
