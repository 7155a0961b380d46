package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/helionsec/helion/internal/ingest"
	"github.com/helionsec/helion/models"
)

const (
	maxFindingsPerRequest = 10_000
	maxUploadFileBytes    = 50 * 1024 * 1024 // 50 MB
)

type uploadResponse struct {
	Accepted int     `json:"accepted"`
	IDs      []int64 `json:"ids"`
}

// handleUpload accepts scanner findings as a JSON body (single object or
// array) or as a multipart .json file, runs the ingestion pipeline and
// persists the survivors.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	objs, ok := s.readUploadPayload(w, r)
	if !ok {
		return
	}
	if len(objs) == 0 {
		writeJSON(w, http.StatusCreated, uploadResponse{Accepted: 0, IDs: []int64{}})
		return
	}

	pairs := ingest.Process(objs)

	ids := make([]int64, 0, len(pairs))
	for _, p := range pairs {
		rawPayload := "{}"
		if p.Raw.RawPayload != nil {
			if b, err := json.Marshal(p.Raw.RawPayload); err == nil {
				rawPayload = string(b)
			}
		}
		row := models.Finding{
			VulnerabilityID: p.Normalized.VulnerabilityID,
			Severity:        p.Normalized.Severity,
			Repo:            p.Normalized.Repo,
			FilePath:        p.Normalized.FilePath,
			Dependency:      p.Normalized.Dependency,
			CVSSScore:       p.Normalized.CVSSScore,
			Description:     p.Normalized.Description,
			ScannerSource:   p.Raw.ScannerSource,
			RawPayload:      rawPayload,
			CreatedAt:       time.Now().UTC(),
		}
		id, err := s.db.Insert(r.Context(), "findings", &row)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "storing finding: "+err.Error())
			return
		}
		ids = append(ids, id)
	}

	slog.Info("server: findings accepted", "received", len(objs), "accepted", len(ids))
	writeJSON(w, http.StatusCreated, uploadResponse{Accepted: len(ids), IDs: ids})
}

// readUploadPayload pulls the finding objects out of the request, from either
// a JSON body or an uploaded file. On failure it writes the error response
// and returns ok=false.
func (s *Server) readUploadPayload(w http.ResponseWriter, r *http.Request) ([]map[string]any, bool) {
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch contentType {
	case "application/json":
		body, err := io.ReadAll(io.LimitReader(r.Body, maxUploadFileBytes+1))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "reading request body: "+err.Error())
			return nil, false
		}
		if len(body) > maxUploadFileBytes {
			writeError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("Request body must not exceed %d MB.", maxUploadFileBytes/(1024*1024)))
			return nil, false
		}
		return parseFindingObjects(w, body)

	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxUploadFileBytes); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "parsing multipart form: "+err.Error())
			return nil, false
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity,
				"Multipart request must include a 'file' field with a JSON file.")
			return nil, false
		}
		defer file.Close()
		if !strings.HasSuffix(strings.ToLower(header.Filename), ".json") {
			writeError(w, http.StatusUnprocessableEntity, "Uploaded file must have a .json extension.")
			return nil, false
		}
		content, err := io.ReadAll(io.LimitReader(file, maxUploadFileBytes+1))
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "reading uploaded file: "+err.Error())
			return nil, false
		}
		if len(content) > maxUploadFileBytes {
			writeError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("File size must not exceed %d MB.", maxUploadFileBytes/(1024*1024)))
			return nil, false
		}
		return parseFindingObjects(w, content)

	default:
		writeError(w, http.StatusUnsupportedMediaType,
			"Content-Type must be application/json or multipart/form-data.")
		return nil, false
	}
}

// parseFindingObjects decodes a JSON document holding either one finding
// object or an array of them.
func parseFindingObjects(w http.ResponseWriter, data []byte) ([]map[string]any, bool) {
	trimmed := strings.TrimLeftFunc(string(data), func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	var objs []map[string]any
	if strings.HasPrefix(trimmed, "{") {
		var single map[string]any
		if err := json.Unmarshal(data, &single); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "Invalid JSON: "+err.Error())
			return nil, false
		}
		objs = []map[string]any{single}
	} else if strings.HasPrefix(trimmed, "[") {
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			writeError(w, http.StatusUnprocessableEntity, "Invalid JSON: "+err.Error())
			return nil, false
		}
		if len(items) > maxFindingsPerRequest {
			writeError(w, http.StatusUnprocessableEntity,
				fmt.Sprintf("At most %d findings per request.", maxFindingsPerRequest))
			return nil, false
		}
		objs = make([]map[string]any, 0, len(items))
		for i, item := range items {
			var obj map[string]any
			if err := json.Unmarshal(item, &obj); err != nil {
				writeError(w, http.StatusUnprocessableEntity,
					fmt.Sprintf("Finding at index %d must be an object.", i))
				return nil, false
			}
			objs = append(objs, obj)
		}
	} else {
		writeError(w, http.StatusUnprocessableEntity,
			"JSON body must be an array of findings or a single finding object.")
		return nil, false
	}
	if len(objs) > maxFindingsPerRequest {
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("At most %d findings per request.", maxFindingsPerRequest))
		return nil, false
	}
	return objs, true
}
