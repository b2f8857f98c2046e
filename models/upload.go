package models

// UploadedImage describes one file stored on the image host
type UploadedImage struct {
	Success      bool   `json:"success"`
	Filename     string `json:"filename"`
	URL          string `json:"url,omitempty"`
	CloudinaryID string `json:"cloudinaryId,omitempty"`
	Size         int64  `json:"size"`
	Format       string `json:"format,omitempty"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
	Error        string `json:"error,omitempty"`
}

// UploadSummary counts the outcome of a multi file upload
type UploadSummary struct {
	Total      int `json:"total"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// UploadResult is the data returned by POST /upload/images
type UploadResult struct {
	Uploaded []UploadedImage `json:"uploaded"`
	Failed   []UploadedImage `json:"failed"`
	Summary  UploadSummary   `json:"summary"`
}
