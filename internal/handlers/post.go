package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"researchblog/internal/middleware"
	"researchblog/internal/services"
	"researchblog/internal/storage"
)

const (
	maxImages = 20
	maxPDFs   = 1
)

type PostHandler struct {
	posts        *services.PostService
	maxFileBytes int64
}

func NewPostHandler(posts *services.PostService, maxFileBytes int64) *PostHandler {
	return &PostHandler{posts: posts, maxFileBytes: maxFileBytes}
}

// postFields is the JSON form of a create or update. Absent keys stay nil.
type postFields struct {
	Author      *string `json:"author"`
	Description *string `json:"description"`
	Topic       *string `json:"topic"`
	Hyperlink   *string `json:"hyperlink"`
}

// upload is the parsed body of a create or update request.
type upload struct {
	fields postFields
	images []storage.File
	pdf    *storage.File
	files  []multipart.File
}

func (u *upload) close() {
	for _, f := range u.files {
		f.Close()
	}
}

func (h *PostHandler) Create(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized"})
		return
	}

	up, err := h.parse(c)
	if err != nil {
		respondError(c, err, "Error reading upload")
		return
	}
	defer up.close()

	view, err := h.posts.Create(c.Request.Context(), services.CreatePostInput{
		OwnerID:     principal.ID,
		Author:      deref(up.fields.Author),
		Description: deref(up.fields.Description),
		Topic:       up.fields.Topic,
		Hyperlink:   up.fields.Hyperlink,
		Images:      up.images,
		PDF:         up.pdf,
	})
	if err != nil {
		respondError(c, err, "Error creating post")
		return
	}
	c.JSON(http.StatusCreated, view)
}

func (h *PostHandler) List(c *gin.Context) {
	views, err := h.posts.ListPublic(c.Request.Context())
	if err != nil {
		respondError(c, err, "Error fetching posts")
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *PostHandler) ListMine(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized"})
		return
	}
	views, err := h.posts.ListMine(c.Request.Context(), principal.ID)
	if err != nil {
		respondError(c, err, "Error fetching user posts")
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *PostHandler) Get(c *gin.Context) {
	id, ok := postID(c)
	if !ok {
		return
	}
	view, err := h.posts.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "Error fetching post")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *PostHandler) Update(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized"})
		return
	}
	id, ok := postID(c)
	if !ok {
		return
	}

	up, err := h.parse(c)
	if err != nil {
		respondError(c, err, "Error reading upload")
		return
	}
	defer up.close()

	view, err := h.posts.Update(c.Request.Context(), services.UpdatePostInput{
		ID:          id,
		CallerID:    principal.ID,
		Author:      up.fields.Author,
		Description: up.fields.Description,
		Topic:       up.fields.Topic,
		Hyperlink:   up.fields.Hyperlink,
		Images:      up.images,
		PDF:         up.pdf,
	})
	if err != nil {
		respondError(c, err, "Error updating post")
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *PostHandler) Delete(c *gin.Context) {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Not authorized"})
		return
	}
	id, ok := postID(c)
	if !ok {
		return
	}

	if err := h.posts.Delete(c.Request.Context(), id, principal.ID); err != nil {
		respondError(c, err, "Error deleting post")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": services.MsgPostDeleted})
}

// postID answers 404 itself when the id is not a uuid.
func postID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"message": services.ErrPostNotFound.Error()})
		return uuid.Nil, false
	}
	return id, true
}

// parse reads text fields and files from a multipart, urlencoded or JSON body.
func (h *PostHandler) parse(c *gin.Context) (*upload, error) {
	up := &upload{}

	switch c.ContentType() {
	case "application/json":
		if err := c.ShouldBindJSON(&up.fields); err != nil {
			return nil, services.Validation("Invalid request body")
		}
		return up, nil
	case "multipart/form-data":
		limit := int64(maxImages+maxPDFs)*h.maxFileBytes + 1<<20
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		form, err := c.MultipartForm()
		if err != nil {
			return nil, services.Validation(fmt.Sprintf("Invalid multipart body: %v", err))
		}
		up.fields = formFields(form.Value)
		if err := h.collectFiles(up, form.File); err != nil {
			up.close()
			return nil, err
		}
		return up, nil
	default:
		if err := c.Request.ParseForm(); err != nil {
			return nil, services.Validation("Invalid request body")
		}
		up.fields = formFields(c.Request.PostForm)
		return up, nil
	}
}

func formFields(values map[string][]string) postFields {
	get := func(key string) *string {
		v, ok := values[key]
		if !ok || len(v) == 0 {
			return nil
		}
		s := v[0]
		return &s
	}
	return postFields{
		Author:      get("author"),
		Description: get("description"),
		Topic:       get("topic"),
		Hyperlink:   get("hyperlink"),
	}
}

func (h *PostHandler) collectFiles(up *upload, files map[string][]*multipart.FileHeader) error {
	images, pdfs := files["images"], files["pdf"]
	if len(images) > maxImages {
		return services.Validation(fmt.Sprintf("Too many images, at most %d allowed", maxImages))
	}
	if len(pdfs) > maxPDFs {
		return services.Validation("Only one PDF allowed")
	}

	for _, fh := range images {
		if !strings.HasPrefix(fileType(fh), "image/") {
			return services.Validation(fh.Filename + " is not an image")
		}
		f, err := h.open(up, fh)
		if err != nil {
			return err
		}
		up.images = append(up.images, f)
	}
	for _, fh := range pdfs {
		if fileType(fh) != "application/pdf" {
			return services.Validation(fh.Filename + " is not a PDF")
		}
		f, err := h.open(up, fh)
		if err != nil {
			return err
		}
		up.pdf = &f
	}
	return nil
}

func (h *PostHandler) open(up *upload, fh *multipart.FileHeader) (storage.File, error) {
	if fh.Size > h.maxFileBytes {
		return storage.File{}, services.Validation(fmt.Sprintf("%s exceeds the %d MB file limit", fh.Filename, h.maxFileBytes>>20))
	}
	f, err := fh.Open()
	if err != nil {
		return storage.File{}, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	up.files = append(up.files, f)
	return storage.File{
		Filename:    fh.Filename,
		ContentType: fileType(fh),
		Size:        fh.Size,
		Body:        f,
	}, nil
}

func fileType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
