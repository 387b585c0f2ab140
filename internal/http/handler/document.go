package handler

import (
	"encoding/json"
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"diarium/internal/model"
	"diarium/internal/repository"
	"diarium/internal/service"
)

const presignExpiry = 15 * time.Minute

// CreateDocument registers a new document: multipart/form-data with a
// "document" JSON part and zero or more "file" parts.
func CreateDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenant := c.Params("tenant")

		raw := c.FormValue("document")
		if raw == "" {
			return writeError(c, fiber.StatusBadRequest, "DOCUMENT_REQUIRED", "document part is required")
		}
		var desc service.CreateDescriptor
		if err := json.Unmarshal([]byte(raw), &desc); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DOCUMENT", "document part is not valid JSON")
		}

		files, closers, err := formUploads(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer closeAll(closers)

		rev, err := svc.Create(c.UserContext(), tenant, desc, orEmpty(files))
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(rev)
	}
}

// UpdateDocument appends a revision. Fields absent from the "document" part
// are carried forward; omitting file parts carries the previous attachments
// forward as copies.
func UpdateDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tenant := c.Params("tenant")
		regNumber := c.Params("regnum")

		raw := c.FormValue("document")
		if raw == "" {
			return writeError(c, fiber.StatusBadRequest, "DOCUMENT_REQUIRED", "document part is required")
		}
		var patch service.UpdateDescriptor
		if err := json.Unmarshal([]byte(raw), &patch); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_DOCUMENT", "document part is not valid JSON")
		}

		files, closers, err := formUploads(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer closeAll(closers)

		rev, err := svc.Update(c.UserContext(), tenant, regNumber, patch, files)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(rev)
	}
}

// GetLatestDocument returns the highest revision visible to the caller.
func GetLatestDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rev, err := svc.GetLatest(c.UserContext(), c.Params("tenant"), c.Params("regnum"), scopeFromQuery(c))
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(rev)
	}
}

// GetRevision returns one exact revision.
func GetRevision(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		revNumber, err := strconv.Atoi(c.Params("rev"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_REVISION", "invalid revision number")
		}
		rev, err := svc.GetRevision(c.UserContext(), c.Params("tenant"), c.Params("regnum"), revNumber, scopeFromQuery(c))
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(rev)
	}
}

// ListRevisions pages through a document's revision history.
func ListRevisions(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		descending := c.Query("order", "asc") == "desc"
		page, err := pageFromQuery(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid pagination parameters")
		}
		res, err := svc.ListRevisions(c.UserContext(), c.Params("tenant"), c.Params("regnum"), scopeFromQuery(c), descending, page)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(res)
	}
}

// DownloadAttachment streams an attachment of a specific revision, or returns
// a presigned URL when ?presign=1.
func DownloadAttachment(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		revNumber, err := strconv.Atoi(c.Params("rev"))
		// Zero is the internal "latest" sentinel and must not be addressable
		// through the explicit-revision route.
		if err != nil || revNumber < 1 {
			return writeError(c, fiber.StatusBadRequest, "INVALID_REVISION", "invalid revision number")
		}
		return sendAttachment(c, svc, revNumber)
	}
}

// DownloadLatestAttachment streams an attachment of the latest visible revision.
func DownloadLatestAttachment(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return sendAttachment(c, svc, 0)
	}
}

func sendAttachment(c *fiber.Ctx, svc service.DocumentService, revNumber int) error {
	tenant := c.Params("tenant")
	regNumber := c.Params("regnum")
	attachmentID := c.Params("attachmentId")
	scope := scopeFromQuery(c)

	if c.QueryBool("presign") {
		u, err := svc.PresignAttachment(c.UserContext(), tenant, regNumber, revNumber, attachmentID, scope, presignExpiry)
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(fiber.Map{"url": u})
	}

	rc, att, err := svc.OpenAttachment(c.UserContext(), tenant, regNumber, revNumber, attachmentID, scope)
	if err != nil {
		return respondServiceError(c, err)
	}
	c.Set(fiber.HeaderContentType, att.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", att.Filename))
	return c.SendStream(rc, int(att.Size))
}

// SearchDocuments executes a criteria search. Criteria travel in the JSON
// body; visibility, collapse, sorting, and pagination in query parameters.
func SearchDocuments(svc service.SearchService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var criteria model.SearchCriteria
		if len(c.Body()) > 0 {
			if err := json.Unmarshal(c.Body(), &criteria); err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_CRITERIA", "search criteria is not valid JSON")
			}
		}
		page, err := pageFromQuery(c)
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_PAGE", "invalid pagination parameters")
		}

		res, err := svc.Search(c.UserContext(), c.Params("tenant"), service.SearchRequest{
			Criteria:            criteria,
			IncludeConfidential: c.QueryBool("includeConfidential"),
			OnlyLatest:          c.QueryBool("onlyLatest"),
			Sort:                parseSort(c.Query("sort")),
			Page:                page,
		})
		if err != nil {
			return respondServiceError(c, err)
		}
		return c.JSON(res)
	}
}

func scopeFromQuery(c *fiber.Ctx) model.ConfidentialityScope {
	// Absence defaults to public-only.
	return model.ScopeFor(c.QueryBool("includeConfidential"))
}

func pageFromQuery(c *fiber.Ctx) (service.PageRequest, error) {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil {
		return service.PageRequest{}, err
	}
	size, err := strconv.Atoi(c.Query("size", "20"))
	if err != nil {
		return service.PageRequest{}, err
	}
	return service.PageRequest{Page: page, Size: size}, nil
}

// parseSort reads "field:desc,field2" style sort expressions. Unknown fields
// are rejected later by the service.
func parseSort(raw string) []repository.SortField {
	if raw == "" {
		return nil
	}
	var fields []repository.SortField
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, dir, _ := strings.Cut(part, ":")
		fields = append(fields, repository.SortField{
			Field: name,
			Desc:  strings.EqualFold(dir, "desc"),
		})
	}
	return fields
}

// formUploads opens every "file" part of a multipart request. A nil slice
// with no error means the request carried no file parts at all.
func formUploads(c *fiber.Ctx) ([]service.AttachmentUpload, []multipart.File, error) {
	mf, err := c.MultipartForm()
	if err != nil || mf == nil {
		return nil, nil, nil
	}
	headers := mf.File["file"]
	if len(headers) == 0 {
		return nil, nil, nil
	}

	uploads := make([]service.AttachmentUpload, 0, len(headers))
	closers := make([]multipart.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll(closers)
			return nil, nil, err
		}
		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}
		closers = append(closers, f)
		uploads = append(uploads, service.AttachmentUpload{
			Reader:      f,
			Filename:    fh.Filename,
			ContentType: ct,
			Size:        fh.Size,
		})
	}
	return uploads, closers, nil
}

func closeAll(files []multipart.File) {
	for _, f := range files {
		_ = f.Close()
	}
}

// orEmpty keeps create semantics simple: no file parts means no attachments,
// never "inherit" (there is nothing to inherit from).
func orEmpty(files []service.AttachmentUpload) []service.AttachmentUpload {
	if files == nil {
		return []service.AttachmentUpload{}
	}
	return files
}
