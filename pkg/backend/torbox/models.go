package torbox

// dataDto wraps every Torbox API response.
type dataDto[T any] struct {
	Success bool   `json:"success"`
	Detail  string `json:"detail"`
	Data    T      `json:"data"`
}

type listItemDto struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	CreatedAt     string    `json:"created_at"`
	UpdatedAt     string    `json:"updated_at"`
	CachedAt      string    `json:"cached_at"`
	Progress      float64   `json:"progress"`
	DownloadState string    `json:"download_state"`
	Size          int64     `json:"size"`
	Ratio         float64   `json:"ratio"`
	DownloadSpeed int64     `json:"download_speed"`
	UploadSpeed   int64     `json:"upload_speed"`
	ETA           int64     `json:"eta"`
	Files         []fileDto `json:"files"`
}

type fileDto struct {
	ID        int64  `json:"id"`
	Size      int64  `json:"size"`
	ShortName string `json:"short_name"`
	Mimetype  string `json:"mimetype"`
}
