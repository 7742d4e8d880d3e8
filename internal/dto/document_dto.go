package dto

// UploadedFile is one multipart file read into memory
type UploadedFile struct {
	Name string
	Data []byte
}

type FileResult struct {
	Name    string `json:"name"`
	Success bool   `json:"success"`
	Chunks  int    `json:"chunks"`
	Error   string `json:"error,omitempty"`
}

type UploadResponse struct {
	Files         []FileResult `json:"files"`
	Indexed       int          `json:"indexed"`
	Failed        int          `json:"failed"`
	DocumentCount int          `json:"document_count"`
	ChunkCount    int          `json:"chunk_count"`
}

type IndexStatusResponse struct {
	DocumentCount   int    `json:"document_count"`
	HasDocuments    bool   `json:"has_documents"`
	ChunkCount      int    `json:"chunk_count"`
	Generation      int64  `json:"generation"`
	Rebuilding      bool   `json:"rebuilding"`
	SemanticBackend string `json:"semantic_backend"`
}

type PreloadResponse struct {
	Folder string       `json:"folder"`
	Files  []FileResult `json:"files"`
	Chunks int          `json:"chunks"`
}
