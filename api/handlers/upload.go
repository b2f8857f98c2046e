package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/h2non/filetype"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/missingalert/missing-alert-api/api"
	"github.com/missingalert/missing-alert-api/apperrors"
	"github.com/missingalert/missing-alert-api/databases"
	"github.com/missingalert/missing-alert-api/integrations"
	"github.com/missingalert/missing-alert-api/models"
)

const (
	maxUploadFiles    = 10
	uploadConcurrency = 4
	multipartMemory   = 32 << 20
	// filetype needs at most this many leading bytes to identify a format
	sniffLength = 261
)

// Upload exists for dependency injection purposes
type Upload struct {
	Images       integrations.ImageHost
	DB           databases.UserDatabase
	MaxFileSize  int64
	AllowedTypes []string
}

// UploadImagesHandler stores up to ten case photos on the image host
func (u Upload) UploadImagesHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := api.RequesterFromContext(r.Context())
	if !ok {
		writeError(w, errUnauthenticated, "")
		return
	}
	if err := u.parseForm(w, r); err != nil {
		writeError(w, err, "Server error during file upload")
		return
	}

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		writeError(w, apperrors.Validation("No files uploaded"), "")
		return
	}
	if len(files) > maxUploadFiles {
		writeError(w, apperrors.Validation(fmt.Sprintf("Too many files. Maximum %d files allowed.", maxUploadFiles)), "")
		return
	}
	for _, fh := range files {
		if err := u.checkFile(fh); err != nil {
			writeError(w, err, "")
			return
		}
	}

	results := make([]models.UploadedImage, len(files))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(uploadConcurrency)
	for i, fh := range files {
		i, fh := i, fh
		g.Go(func() error {
			publicID := fmt.Sprintf("%s_%d_%s", requester.ID.Hex(), time.Now().UnixMilli(), randomToken())
			img, err := u.store(ctx, fh, integrations.FolderCases, publicID)
			if err != nil {
				zap.S().Warnw("image upload failed", "filename", fh.Filename, "error", err)
				results[i] = models.UploadedImage{Filename: fh.Filename, Size: fh.Size, Error: err.Error()}
				return nil
			}
			results[i] = uploadedImage(fh, img)
			return nil
		})
	}
	_ = g.Wait()

	result := models.UploadResult{
		Uploaded: []models.UploadedImage{},
		Failed:   []models.UploadedImage{},
	}
	for _, res := range results {
		if res.Success {
			result.Uploaded = append(result.Uploaded, res)
		} else {
			result.Failed = append(result.Failed, res)
		}
	}
	result.Summary = models.UploadSummary{
		Total:      len(results),
		Successful: len(result.Uploaded),
		Failed:     len(result.Failed),
	}

	message := fmt.Sprintf("%d files uploaded successfully", len(result.Uploaded))
	if len(result.Failed) > 0 {
		message += fmt.Sprintf(", %d failed", len(result.Failed))
	}
	zap.S().Infow("images uploaded", "userId", requester.ID.Hex(), "successful", len(result.Uploaded), "failed", len(result.Failed))
	writeSuccess(w, http.StatusOK, message, result)
}

// DeleteImageHandler removes an image the caller uploaded. Administrators may remove
// any image.
func (u Upload) DeleteImageHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := api.RequesterFromContext(r.Context())
	if !ok {
		writeError(w, errUnauthenticated, "")
		return
	}
	publicID := mux.Vars(r)["cloudinaryId"]
	if requester.Role != models.RoleAdmin && !ownsImage(publicID, requester.ID.Hex()) {
		writeError(w, apperrors.Forbidden("Access denied. You can only delete your own images."), "")
		return
	}

	err := u.Images.Delete(r.Context(), publicID)
	if errors.Is(err, integrations.ErrImageNotFound) {
		writeError(w, apperrors.Validation("Failed to delete image"), "")
		return
	}
	if err != nil {
		writeError(w, err, "Server error during image deletion")
		return
	}
	writeSuccess(w, http.StatusOK, "Image deleted successfully", map[string]string{
		"cloudinaryId": publicID,
		"deletedAt":    models.Now(time.Now()),
	})
}

// UploadAvatarHandler replaces the caller's avatar
func (u Upload) UploadAvatarHandler(w http.ResponseWriter, r *http.Request) {
	requester, ok := api.RequesterFromContext(r.Context())
	if !ok {
		writeError(w, errUnauthenticated, "")
		return
	}
	if err := u.parseForm(w, r); err != nil {
		writeError(w, err, "Server error during avatar upload")
		return
	}
	files := r.MultipartForm.File["avatar"]
	if len(files) == 0 {
		writeError(w, apperrors.Validation("No avatar file uploaded"), "")
		return
	}
	fh := files[0]
	if err := u.checkFile(fh); err != nil {
		writeError(w, err, "")
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	user, err := u.DB.FindOne(ctx, bson.M{"_id": requester.ID})
	if errors.Is(err, apperrors.ErrNotFound) {
		writeError(w, apperrors.NotFound("User"), "")
		return
	}
	if err != nil {
		writeError(w, err, "Server error during avatar upload")
		return
	}
	if old := user.Profile.Avatar; old != nil && old.CloudinaryID != "" {
		if err := u.Images.Delete(ctx, old.CloudinaryID); err != nil && !errors.Is(err, integrations.ErrImageNotFound) {
			zap.S().Warnw("failed to delete previous avatar", "cloudinaryId", old.CloudinaryID, "error", err)
		}
	}

	img, err := u.store(ctx, fh, integrations.FolderAvatars, "avatar_"+requester.ID.Hex())
	if err != nil {
		writeError(w, err, "Server error during avatar upload")
		return
	}
	avatar := models.Avatar{URL: img.URL, CloudinaryID: img.PublicID}
	err = u.DB.UpdateOne(ctx, bson.M{"_id": requester.ID}, bson.M{
		"$set": bson.M{"profile.avatar": avatar, "updatedAt": time.Now().UTC()},
	})
	if err != nil {
		writeError(w, err, "Server error during avatar upload")
		return
	}
	writeSuccess(w, http.StatusOK, "Avatar uploaded successfully", map[string]models.Avatar{"avatar": avatar})
}

// UploadStatsHandler reports the image host account usage
func (u Upload) UploadStatsHandler(w http.ResponseWriter, r *http.Request) {
	usage, err := u.Images.Usage(r.Context())
	if err != nil {
		writeError(w, err, "Server error while fetching upload statistics")
		return
	}
	writeSuccess(w, http.StatusOK, "", usage)
}

func (u Upload) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, u.MaxFileSize*maxUploadFiles+(1<<20))
	err := r.ParseMultipartForm(multipartMemory)
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return u.tooLarge()
	}
	if err != nil {
		return apperrors.Validation("Invalid multipart form data")
	}
	return nil
}

// checkFile enforces the size limit and the extension allow list
func (u Upload) checkFile(fh *multipart.FileHeader) error {
	if fh.Size > u.MaxFileSize {
		return u.tooLarge()
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fh.Filename)), ".")
	if !u.allowed(ext) {
		return apperrors.Validation(fmt.Sprintf("Invalid file type. Only %s files are allowed.", strings.Join(u.AllowedTypes, ", ")), fh.Filename)
	}
	return nil
}

func (u Upload) tooLarge() error {
	return apperrors.Validation(fmt.Sprintf("File too large. Maximum size is %dMB.", u.MaxFileSize>>20))
}

func (u Upload) allowed(ext string) bool {
	for _, t := range u.AllowedTypes {
		if t == ext {
			return true
		}
	}
	return false
}

// store sniffs the file contents and hands them to the image host
func (u Upload) store(ctx context.Context, fh *multipart.FileHeader, folder, publicID string) (*integrations.HostedImage, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	kind, err := filetype.Match(head[:n])
	if err != nil || !filetype.IsImage(head[:n]) || !u.allowed(kind.Extension) {
		return nil, fmt.Errorf("file content is not an allowed image type")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return u.Images.Upload(ctx, f, folder, publicID)
}

func uploadedImage(fh *multipart.FileHeader, img *integrations.HostedImage) models.UploadedImage {
	return models.UploadedImage{
		Success:      true,
		Filename:     fh.Filename,
		URL:          img.URL,
		CloudinaryID: img.PublicID,
		Size:         fh.Size,
		Format:       img.Format,
		Width:        img.Width,
		Height:       img.Height,
	}
}

// ownsImage reports whether publicID was uploaded by userID. Ids may carry the folder.
func ownsImage(publicID, userID string) bool {
	base := publicID[strings.LastIndex(publicID, "/")+1:]
	return strings.HasPrefix(base, userID+"_") || base == "avatar_"+userID
}

func randomToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
